package mpegts

import "testing"

func TestMuxSegmentLengthMultipleOf188(t *testing.T) {
	m := NewMuxer(StreamConfig{HasVideo: true, HasAudio: true})
	units := []AccessUnit{
		{IsVideo: true, Data: make([]byte, 500), PTS: 90000, DTS: 90000, RandomAccess: true},
		{IsVideo: false, Data: make([]byte, 200), PTS: 90000, DTS: 90000},
	}
	out, err := m.MuxSegment(units)
	if err != nil {
		t.Fatalf("MuxSegment: %v", err)
	}
	if len(out)%PacketSize != 0 {
		t.Fatalf("len(out) = %d, not a multiple of %d", len(out), PacketSize)
	}
}

func TestMuxSegmentEveryPacketStartsWithSyncByte(t *testing.T) {
	m := NewMuxer(StreamConfig{HasVideo: true})
	units := []AccessUnit{
		{IsVideo: true, Data: make([]byte, 400), PTS: 1000, DTS: 1000, RandomAccess: true},
	}
	out, err := m.MuxSegment(units)
	if err != nil {
		t.Fatalf("MuxSegment: %v", err)
	}
	for i := 0; i < len(out); i += PacketSize {
		if out[i] != SyncByte {
			t.Fatalf("packet at offset %d missing sync byte, got %#x", i, out[i])
		}
	}
}

func TestMuxSegmentFirstTwoPacketsArePATThenPMT(t *testing.T) {
	m := NewMuxer(StreamConfig{HasVideo: true, HasAudio: true})
	out, err := m.MuxSegment(nil)
	if err != nil {
		t.Fatalf("MuxSegment: %v", err)
	}
	if len(out) < 2*PacketSize {
		t.Fatalf("expected at least 2 packets, got %d bytes", len(out))
	}
	patPID := (uint16(out[1])<<8 | uint16(out[2])) & 0x1FFF
	if patPID != PIDPAT {
		t.Fatalf("first packet PID = %#x, want PAT PID %#x", patPID, PIDPAT)
	}
	pmtPID := (uint16(out[PacketSize+1])<<8 | uint16(out[PacketSize+2])) & 0x1FFF
	if pmtPID != PIDPMT {
		t.Fatalf("second packet PID = %#x, want PMT PID %#x", pmtPID, PIDPMT)
	}
}

func TestContinuityCounterConsecutivePerPID(t *testing.T) {
	m := NewMuxer(StreamConfig{HasVideo: true})
	units := []AccessUnit{
		{IsVideo: true, Data: make([]byte, PacketSize * 3), PTS: 1000, DTS: 1000, RandomAccess: true},
	}
	out, err := m.MuxSegment(units)
	if err != nil {
		t.Fatalf("MuxSegment: %v", err)
	}

	var lastCC = map[uint16]int{}
	for i := 0; i < len(out); i += PacketSize {
		pid := (uint16(out[i+1])<<8 | uint16(out[i+2])) & 0x1FFF
		afc := (out[i+3] >> 4) & 0x03
		cc := int(out[i+3] & 0x0F)
		if afc == 0 {
			continue // no payload, CC not incremented
		}
		if prev, ok := lastCC[pid]; ok {
			want := (prev + 1) & 0x0F
			if cc != want {
				t.Fatalf("pid %#x: CC = %d, want %d (prev %d)", pid, cc, want, prev)
			}
		}
		lastCC[pid] = cc
	}
}

func TestPMTDeclaresStreamTypesForBothTracks(t *testing.T) {
	m := NewMuxer(StreamConfig{HasVideo: true, HasAudio: true})
	pmt, err := m.buildPMT()
	if err != nil {
		t.Fatalf("buildPMT: %v", err)
	}
	foundH264 := false
	foundAAC := false
	for _, b := range pmt {
		if b == StreamTypeH264 {
			foundH264 = true
		}
		if b == StreamTypeAAC {
			foundAAC = true
		}
	}
	if !foundH264 {
		t.Fatal("PMT missing H.264 stream type")
	}
	if !foundAAC {
		t.Fatal("PMT missing AAC stream type")
	}
}

func TestRandomAccessIndicatorSetOnKeyframePacket(t *testing.T) {
	m := NewMuxer(StreamConfig{HasVideo: true})
	units := []AccessUnit{
		{IsVideo: true, Data: make([]byte, 4), PTS: 1000, DTS: 1000, RandomAccess: true},
	}
	out, err := m.MuxSegment(units)
	if err != nil {
		t.Fatalf("MuxSegment: %v", err)
	}
	// Third packet (index 2) is the first PES packet of the video AU.
	pesPacketOffset := 2 * PacketSize
	afc := (out[pesPacketOffset+3] >> 4) & 0x03
	if afc != afcAdaptationPayload {
		t.Fatalf("expected adaptation+payload AFC, got %#x", afc)
	}
	adaptationFlags := out[pesPacketOffset+5]
	if adaptationFlags&0x40 == 0 {
		t.Fatal("random_access_indicator not set on keyframe packet")
	}
	if adaptationFlags&0x10 == 0 {
		t.Fatal("PCR_flag not set on first video packet of segment")
	}
}
