package samplecodec

import "github.com/aminofox/swift-hls-kit/pkg/errors"

// ADTSHeaderLength is the fixed 7-byte ADTS header length (no CRC).
const ADTSHeaderLength = 7

// ADTSFrame locates one ADTS AAC frame inside a buffer, without copying
// its bytes.
type ADTSFrame struct {
	// Offset is the byte offset of the frame, including its header.
	Offset int
	// Length is the total frame length (header + body) as carried in
	// the 13-bit frame_length field.
	Length int
}

// BodyOffset returns the offset of the frame body (past the header).
func (f ADTSFrame) BodyOffset() int { return f.Offset + ADTSHeaderLength }

// BodyLength returns the frame body length.
func (f ADTSFrame) BodyLength() int { return f.Length - ADTSHeaderLength }

// ScanADTS walks a buffer of back-to-back ADTS frames (0xFFFx syncword)
// using each frame's 13-bit frame_length field to find the next frame.
func ScanADTS(data []byte) ([]ADTSFrame, error) {
	var frames []ADTSFrame
	pos := 0
	for pos+ADTSHeaderLength <= len(data) {
		if data[pos] != 0xFF || data[pos+1]&0xF0 != 0xF0 {
			return nil, errors.New(errors.CodeMalformedMedia, "adts syncword not found")
		}
		frameLength := adtsFrameLength(data[pos : pos+ADTSHeaderLength])
		if frameLength < ADTSHeaderLength || pos+frameLength > len(data) {
			return nil, errors.New(errors.CodeMalformedMedia, "adts frame_length out of range")
		}
		frames = append(frames, ADTSFrame{Offset: pos, Length: frameLength})
		pos += frameLength
	}
	return frames, nil
}

// adtsFrameLength extracts the 13-bit frame_length field spanning bytes
// 3-5 of the ADTS header.
func adtsFrameLength(header []byte) int {
	return int(header[3]&0x03)<<11 | int(header[4])<<3 | int(header[5]>>5)
}

// SampleAESADTSClearPrefix is the number of clear leading body bytes
// before SAMPLE-AES encryption begins for an ADTS frame.
const SampleAESADTSClearPrefix = 16

// SampleAESADTSMinBodyLength is the minimum ADTS body length eligible
// for SAMPLE-AES encryption; shorter bodies are left entirely clear.
const SampleAESADTSMinBodyLength = 32

// PlanADTSEncryption computes the clear/protected span for one ADTS
// frame body of length L: the first 16 bytes are always clear, full
// 16-byte CBC blocks follow from there, and any remainder shorter than
// 16 bytes stays clear. Bodies shorter than 32 bytes are skipped.
func PlanADTSEncryption(bodyLength int) ClearProtectedSpan {
	if bodyLength < SampleAESADTSMinBodyLength {
		return ClearProtectedSpan{EligibleForCrypt: false}
	}
	k := (bodyLength - SampleAESADTSClearPrefix) / 16
	encryptedLen := k * 16
	tailOffset := SampleAESADTSClearPrefix + encryptedLen
	return ClearProtectedSpan{
		ClearPrefix:      SampleAESADTSClearPrefix,
		EncryptedBlocks:  k,
		EncryptedOffset:  SampleAESADTSClearPrefix,
		ClearTailOffset:  tailOffset,
		ClearTailLength:  bodyLength - tailOffset,
		EligibleForCrypt: k > 0,
	}
}
