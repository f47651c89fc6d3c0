// Package samplecodec scans H.264/H.265 Annex-B NALU streams and ADTS
// AAC frames, converts between length-prefixed and Annex-B NALU framing,
// and plans the clear/protected byte spans SAMPLE-AES partial encryption
// needs. It never copies a sample's bytes; NALU/frame boundaries are
// returned as offset/length pairs over the caller's own buffer so
// pkg/crypto can encrypt in place.
package samplecodec

import (
	"encoding/binary"

	"github.com/aminofox/swift-hls-kit/pkg/errors"
)

// NALUType is the 5-bit nal_unit_type field of an H.264 NALU header.
type NALUType uint8

const (
	NALUTypeNonIDRSlice NALUType = 1
	NALUTypeIDRSlice    NALUType = 5
	NALUTypeSEI         NALUType = 6
	NALUTypeSPS         NALUType = 7
	NALUTypePPS         NALUType = 8
)

// NALU locates one NAL unit inside an Annex-B buffer, without copying
// its bytes.
type NALU struct {
	// Offset is the byte offset of the NALU body (the byte after the
	// start code), including its one-byte header.
	Offset int
	// Length is the number of bytes in the NALU body (header + payload,
	// excluding the start code and any trailing start code).
	Length int
	// Type is the nal_unit_type carried in the low 5 bits of the first
	// body byte.
	Type NALUType
}

// IsSliceNALU reports whether a NALU type is a coded slice, the only
// candidates for SAMPLE-AES encryption; SPS/PPS/SEI and other NALU
// types always pass through untouched.
func (n NALU) IsSliceNALU() bool {
	return n.Type == NALUTypeNonIDRSlice || n.Type == NALUTypeIDRSlice
}

// ScanAnnexB locates every NAL unit in an Annex-B byte stream delimited
// by 0x000001 or 0x00000001 start codes.
func ScanAnnexB(data []byte) []NALU {
	starts := findStartCodes(data)
	if len(starts) == 0 {
		return nil
	}

	nalus := make([]NALU, 0, len(starts))
	for i, s := range starts {
		bodyStart := s.offset + s.codeLen
		var bodyEnd int
		if i+1 < len(starts) {
			bodyEnd = starts[i+1].offset
		} else {
			bodyEnd = len(data)
		}
		if bodyStart >= bodyEnd {
			continue
		}
		nalus = append(nalus, NALU{
			Offset: bodyStart,
			Length: bodyEnd - bodyStart,
			Type:   NALUType(data[bodyStart] & 0x1F),
		})
	}
	return nalus
}

type startCode struct {
	offset  int
	codeLen int
}

func findStartCodes(data []byte) []startCode {
	var starts []startCode
	for i := 0; i+2 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 {
			continue
		}
		if data[i+2] == 1 {
			starts = append(starts, startCode{offset: i, codeLen: 3})
			i += 2
			continue
		}
		if i+3 < len(data) && data[i+2] == 0 && data[i+3] == 1 {
			starts = append(starts, startCode{offset: i, codeLen: 4})
			i += 3
		}
	}
	return starts
}

// SampleAESSliceClearPrefix is the number of clear leading bytes in a
// slice NALU body before SAMPLE-AES encryption begins.
const SampleAESSliceClearPrefix = 32

// SampleAESSliceMinLength is the minimum slice NALU body length eligible
// for SAMPLE-AES encryption; shorter NALUs are left entirely clear.
const SampleAESSliceMinLength = 48

// ClearProtectedSpan describes the deterministic clear-prefix /
// encrypted-blocks / clear-tail partition SAMPLE-AES applies to one
// sample body.
type ClearProtectedSpan struct {
	ClearPrefix      int // bytes left clear at the start
	EncryptedBlocks  int // number of whole 16-byte AES-CBC blocks
	EncryptedOffset  int // offset of the first encrypted byte within the sample
	ClearTailOffset  int // offset of the first clear trailing byte
	ClearTailLength  int // number of clear trailing bytes (< 16)
	EligibleForCrypt bool
}

// PlanSliceEncryption computes the clear/protected span for one slice
// NALU body of length L, per the SAMPLE-AES Annex-B rule: the first 32
// bytes are always clear, full 16-byte CBC blocks follow, and any
// remainder shorter than 16 bytes stays clear. NALUs shorter than 48
// bytes are skipped entirely.
func PlanSliceEncryption(length int) ClearProtectedSpan {
	if length < SampleAESSliceMinLength {
		return ClearProtectedSpan{EligibleForCrypt: false}
	}
	k := (length - SampleAESSliceClearPrefix) / 16
	encryptedLen := k * 16
	tailOffset := SampleAESSliceClearPrefix + encryptedLen
	return ClearProtectedSpan{
		ClearPrefix:      SampleAESSliceClearPrefix,
		EncryptedBlocks:  k,
		EncryptedOffset:  SampleAESSliceClearPrefix,
		ClearTailOffset:  tailOffset,
		ClearTailLength:  length - tailOffset,
		EligibleForCrypt: k > 0,
	}
}

// LengthPrefixedToAnnexB rewrites a buffer of 4-byte big-endian
// length-prefixed NALUs (the form the ISOBMFF writer emits inside mdat)
// into Annex-B form with 4-byte start codes (the form the TS muxer's PES
// payload requires).
func LengthPrefixedToAnnexB(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)+16)
	startCode4 := []byte{0, 0, 0, 1}

	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			return nil, errors.New(errors.CodeMalformedMedia, "truncated NALU length prefix")
		}
		naluLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if naluLen < 0 || pos+naluLen > len(data) {
			return nil, errors.New(errors.CodeMalformedMedia, "NALU length exceeds buffer")
		}
		out = append(out, startCode4...)
		out = append(out, data[pos:pos+naluLen]...)
		pos += naluLen
	}
	return out, nil
}

// AnnexBToLengthPrefixed rewrites an Annex-B buffer into 4-byte
// big-endian length-prefixed NALU form.
func AnnexBToLengthPrefixed(data []byte) []byte {
	nalus := ScanAnnexB(data)
	out := make([]byte, 0, len(data))
	for _, n := range nalus {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(n.Length))
		out = append(out, lenBuf[:]...)
		out = append(out, data[n.Offset:n.Offset+n.Length]...)
	}
	return out
}
