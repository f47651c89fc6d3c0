package bincodec

import (
	"bytes"
	"testing"
)

func TestWriteBoxFraming(t *testing.T) {
	w := NewWriter(0)
	if err := w.WriteBox("ftyp", []byte("abcd")); err != nil {
		t.Fatalf("WriteBox: %v", err)
	}

	got := w.Bytes()
	if len(got) != 12 {
		t.Fatalf("expected 12 bytes, got %d", len(got))
	}
	if got[4] != 'f' || got[5] != 't' || got[6] != 'y' || got[7] != 'p' {
		t.Fatalf("fourcc mismatch: %q", got[4:8])
	}
	wantSize := []byte{0, 0, 0, 12}
	if !bytes.Equal(got[0:4], wantSize) {
		t.Fatalf("size field = %v, want %v", got[0:4], wantSize)
	}
}

func TestWriteFullBoxHeader(t *testing.T) {
	w := NewWriter(0)
	if err := w.WriteFullBox("tfdt", 1, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("WriteFullBox: %v", err)
	}
	got := w.Bytes()
	// size(4) + fourcc(4) + version(1) + flags(3) + payload(8) = 20
	if len(got) != 20 {
		t.Fatalf("expected 20 bytes, got %d", len(got))
	}
	if got[8] != 1 {
		t.Fatalf("version byte = %d, want 1", got[8])
	}
	if got[9] != 0 || got[10] != 0 || got[11] != 0 {
		t.Fatalf("flags bytes = %v, want zero", got[9:12])
	}
}

func TestWriteContainerConcatenatesChildren(t *testing.T) {
	child1, _ := BuildBox("aaaa", nil)
	child2, _ := BuildBox("bbbb", []byte{1, 2})
	parent, err := BuildContainer("mmmm", child1, child2)
	if err != nil {
		t.Fatalf("BuildContainer: %v", err)
	}
	wantLen := 8 + len(child1) + len(child2)
	if len(parent) != wantLen {
		t.Fatalf("container size = %d, want %d", len(parent), wantLen)
	}
	if !bytes.Equal(parent[8:8+len(child1)], child1) {
		t.Fatalf("first child not preserved verbatim")
	}
}

func TestPatchI32RewritesInPlace(t *testing.T) {
	w := NewWriter(0)
	w.I32(0)
	w.U32(0xDEADBEEF)
	if err := w.PatchI32(0, 42); err != nil {
		t.Fatalf("PatchI32: %v", err)
	}
	got := w.Bytes()
	if got[0] != 0 || got[1] != 0 || got[2] != 0 || got[3] != 42 {
		t.Fatalf("patched bytes = %v, want [0 0 0 42]", got[0:4])
	}
	// Untouched region must survive.
	if got[4] != 0xDE {
		t.Fatalf("unrelated bytes clobbered: %v", got[4:8])
	}
}

func TestPatchI32OutOfRange(t *testing.T) {
	w := NewWriter(0)
	w.U32(1)
	if err := w.PatchI32(4, 1); err == nil {
		t.Fatal("expected error patching past the end of the buffer")
	}
}

func TestFixed16_16EncodesOne(t *testing.T) {
	w := NewWriter(0)
	w.Fixed16_16(1.0)
	got := w.Bytes()
	want := []byte{0x00, 0x01, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("Fixed16_16(1.0) = %v, want %v", got, want)
	}
}
