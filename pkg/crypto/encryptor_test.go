package crypto

import (
	"bytes"
	"testing"

	"github.com/aminofox/swift-hls-kit/pkg/mpegts"
)

func TestWholeSegmentEncryptRoundTrip(t *testing.T) {
	plan, err := NewEncryptionPlan(EncryptionConfig{Method: MethodAes128Cbc, Key: make([]byte, 16)})
	if err != nil {
		t.Fatalf("NewEncryptionPlan: %v", err)
	}
	enc := NewSegmentEncryptor(plan)

	payload := []byte("this is a segment payload of arbitrary length")
	ciphertext, err := enc.EncryptSegment(payload, 3)
	if err != nil {
		t.Fatalf("EncryptSegment: %v", err)
	}
	if bytes.Equal(ciphertext, payload) {
		t.Fatal("ciphertext equals plaintext")
	}

	cbc := NewAesCbc()
	iv := IVForIndex(nil, 3)
	got, err := cbc.Decrypt(ciphertext, plan.Key, iv)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, payload)
	}
}

func TestIVForIndexDerivesFromSequence(t *testing.T) {
	iv := IVForIndex(nil, 5)
	want := make([]byte, 16)
	want[15] = 5
	if !bytes.Equal(iv, want) {
		t.Fatalf("IVForIndex(nil, 5) = %x, want %x", iv, want)
	}
}

func TestRotationPlanSelectsStartIndex(t *testing.T) {
	plan, err := NewEncryptionPlan(EncryptionConfig{
		Method:           MethodAes128Cbc,
		Key:              make([]byte, 16),
		RotationInterval: 10,
	})
	if err != nil {
		t.Fatalf("NewEncryptionPlan: %v", err)
	}
	cases := map[int]int{0: 0, 9: 0, 10: 10, 15: 10, 20: 20}
	for idx, want := range cases {
		if got := plan.RotationPointForIndex(idx); got != want {
			t.Fatalf("RotationPointForIndex(%d) = %d, want %d", idx, got, want)
		}
	}
}

func TestRotationFamiliesUseDistinctKeys(t *testing.T) {
	plan, err := NewEncryptionPlan(EncryptionConfig{
		Method:           MethodAes128Cbc,
		Key:              make([]byte, 16),
		RotationInterval: 2,
	})
	if err != nil {
		t.Fatalf("NewEncryptionPlan: %v", err)
	}

	family0 := plan.RotationEntryForIndex(0)
	family2 := plan.RotationEntryForIndex(3)
	family2Again := plan.RotationEntryForIndex(2)

	if family0.StartIndex != 0 || !bytes.Equal(family0.Key, plan.Key) {
		t.Fatalf("family for index 0 = %+v, want start 0 with the base key", family0)
	}
	if family2.StartIndex != 2 {
		t.Fatalf("family for index 3 has StartIndex %d, want 2", family2.StartIndex)
	}
	if bytes.Equal(family2.Key, family0.Key) {
		t.Fatal("rotation family 2 reused family 0's key")
	}
	if family2.KeyID != family2Again.KeyID || !bytes.Equal(family2.Key, family2Again.Key) {
		t.Fatal("repeated lookups of the same family should return the cached entry")
	}
}

func TestSampleAesCtrRejected(t *testing.T) {
	if _, err := NewEncryptionPlan(EncryptionConfig{Method: MethodSampleAesCtr}); err == nil {
		t.Fatal("expected UnsupportedMethod error for SAMPLE-AES-CTR")
	}
}

func TestSampleAesEncryptPreservesFraming(t *testing.T) {
	m := mpegts.NewMuxer(mpegts.StreamConfig{HasVideo: true})
	nalu := make([]byte, 64)
	for i := range nalu {
		nalu[i] = byte(i)
	}
	nalu[0] = 0x65 // IDR slice nal_unit_type=5
	annexB := append([]byte{0, 0, 0, 1}, nalu...)

	ts, err := m.MuxSegment([]mpegts.AccessUnit{
		{IsVideo: true, Data: annexB, PTS: 1000, DTS: 1000, RandomAccess: true},
	})
	if err != nil {
		t.Fatalf("MuxSegment: %v", err)
	}

	plan, err := NewEncryptionPlan(EncryptionConfig{Method: MethodSampleAes, Key: make([]byte, 16)})
	if err != nil {
		t.Fatalf("NewEncryptionPlan: %v", err)
	}
	enc := NewSegmentEncryptor(plan)
	out, err := enc.EncryptSegment(ts, 0)
	if err != nil {
		t.Fatalf("EncryptSegment: %v", err)
	}

	if len(out) != len(ts) {
		t.Fatalf("SAMPLE-AES changed segment length: got %d, want %d", len(out), len(ts))
	}
	for i := 0; i < len(out); i += mpegts.PacketSize {
		if out[i] != mpegts.SyncByte {
			t.Fatalf("packet at offset %d lost sync byte after encryption", i)
		}
	}
	if bytes.Equal(out, ts) {
		t.Fatal("SAMPLE-AES did not change any bytes")
	}
}
