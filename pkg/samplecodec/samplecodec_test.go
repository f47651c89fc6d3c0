package samplecodec

import (
	"bytes"
	"testing"
)

func annexBFixture() []byte {
	var buf bytes.Buffer
	// SPS (type 7), 3-byte start code.
	buf.Write([]byte{0, 0, 1, 7, 0x64, 0x00, 0x1f})
	// PPS (type 8), 4-byte start code.
	buf.Write([]byte{0, 0, 0, 1, 8, 0xAA})
	// IDR slice (type 5), long enough to be crypt-eligible.
	buf.Write([]byte{0, 0, 0, 1, 5})
	buf.Write(bytes.Repeat([]byte{0x11}, 60))
	return buf.Bytes()
}

func TestScanAnnexBClassifiesTypes(t *testing.T) {
	nalus := ScanAnnexB(annexBFixture())
	if len(nalus) != 3 {
		t.Fatalf("expected 3 NALUs, got %d", len(nalus))
	}
	if nalus[0].Type != NALUTypeSPS {
		t.Fatalf("nalu[0].Type = %v, want SPS", nalus[0].Type)
	}
	if nalus[1].Type != NALUTypePPS {
		t.Fatalf("nalu[1].Type = %v, want PPS", nalus[1].Type)
	}
	if !nalus[2].IsSliceNALU() {
		t.Fatalf("nalu[2] should be a slice NALU")
	}
	if nalus[1].IsSliceNALU() {
		t.Fatal("PPS must never be classified as a slice NALU")
	}
}

func TestLengthPrefixedAnnexBRoundTrip(t *testing.T) {
	annexB := annexBFixture()
	lengthPrefixed := AnnexBToLengthPrefixed(annexB)

	back, err := LengthPrefixedToAnnexB(lengthPrefixed)
	if err != nil {
		t.Fatalf("LengthPrefixedToAnnexB: %v", err)
	}

	wantNalus := ScanAnnexB(annexB)
	gotNalus := ScanAnnexB(back)
	if len(wantNalus) != len(gotNalus) {
		t.Fatalf("round trip changed NALU count: %d vs %d", len(wantNalus), len(gotNalus))
	}
	for i := range wantNalus {
		wantBody := annexB[wantNalus[i].Offset : wantNalus[i].Offset+wantNalus[i].Length]
		gotBody := back[gotNalus[i].Offset : gotNalus[i].Offset+gotNalus[i].Length]
		if !bytes.Equal(wantBody, gotBody) {
			t.Fatalf("nalu %d body mismatch after round trip", i)
		}
	}
}

func TestPlanSliceEncryptionShortNALUSkipped(t *testing.T) {
	span := PlanSliceEncryption(47)
	if span.EligibleForCrypt {
		t.Fatal("NALU shorter than 48 bytes must not be crypt-eligible")
	}
}

func TestPlanSliceEncryptionClearPrefixAndTail(t *testing.T) {
	span := PlanSliceEncryption(80) // 80-32 = 48 -> 3 whole blocks, 0 tail
	if !span.EligibleForCrypt {
		t.Fatal("80-byte NALU should be crypt-eligible")
	}
	if span.ClearPrefix != 32 {
		t.Fatalf("ClearPrefix = %d, want 32", span.ClearPrefix)
	}
	if span.EncryptedBlocks != 3 {
		t.Fatalf("EncryptedBlocks = %d, want 3", span.EncryptedBlocks)
	}
	if span.ClearTailLength >= 16 {
		t.Fatalf("ClearTailLength = %d, must be < 16", span.ClearTailLength)
	}

	span2 := PlanSliceEncryption(90) // 90-32 = 58 -> 3 blocks (48), tail = 10
	if span2.EncryptedBlocks != 3 || span2.ClearTailLength != 10 {
		t.Fatalf("got blocks=%d tail=%d, want blocks=3 tail=10", span2.EncryptedBlocks, span2.ClearTailLength)
	}
}

func adtsFixture(bodyLen int) []byte {
	frameLen := ADTSHeaderLength + bodyLen
	header := []byte{
		0xFF, 0xF1, 0x4C,
		byte((frameLen >> 11) & 0x03),
		byte((frameLen >> 3) & 0xFF),
		byte((frameLen<<5)&0xE0) | 0x1F,
		0xFC,
	}
	frame := append(header, bytes.Repeat([]byte{0x22}, bodyLen)...)
	return frame
}

func TestScanADTSSingleFrame(t *testing.T) {
	data := adtsFixture(40)
	frames, err := ScanADTS(data)
	if err != nil {
		t.Fatalf("ScanADTS: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].BodyLength() != 40 {
		t.Fatalf("BodyLength = %d, want 40", frames[0].BodyLength())
	}
}

func TestScanADTSMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(adtsFixture(32))
	buf.Write(adtsFixture(64))
	frames, err := ScanADTS(buf.Bytes())
	if err != nil {
		t.Fatalf("ScanADTS: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
}

func TestPlanADTSEncryptionShortBodySkipped(t *testing.T) {
	span := PlanADTSEncryption(31)
	if span.EligibleForCrypt {
		t.Fatal("31-byte body must not be crypt-eligible")
	}
}

func TestPlanADTSEncryptionClearPrefix(t *testing.T) {
	span := PlanADTSEncryption(48) // 48-16=32 -> 2 blocks, 0 tail
	if span.ClearPrefix != 16 {
		t.Fatalf("ClearPrefix = %d, want 16", span.ClearPrefix)
	}
	if span.EncryptedBlocks != 2 {
		t.Fatalf("EncryptedBlocks = %d, want 2", span.EncryptedBlocks)
	}
}
