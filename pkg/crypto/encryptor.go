package crypto

import (
	"github.com/aminofox/swift-hls-kit/pkg/errors"
	"github.com/aminofox/swift-hls-kit/pkg/mpegts"
	"github.com/aminofox/swift-hls-kit/pkg/samplecodec"
)

// SegmentEncryptor applies an EncryptionPlan to completed segment
// payloads. It is pure and immutable: safe to invoke from any
// goroutine, matching AesCbc/IsoBmffWriter (unlike mpegts.Muxer, which
// keeps continuity counters and is not safe for concurrent use).
type SegmentEncryptor struct {
	plan  *EncryptionPlan
	cbc   *AesCbc
}

func NewSegmentEncryptor(plan *EncryptionPlan) *SegmentEncryptor {
	return &SegmentEncryptor{plan: plan, cbc: NewAesCbc()}
}

// EncryptSegment applies the configured method to one segment's final
// byte payload at the given 0-based sequence index. Method NONE passes
// the payload through unchanged.
func (e *SegmentEncryptor) EncryptSegment(payload []byte, index int) ([]byte, error) {
	switch e.plan.Method {
	case MethodNone:
		return payload, nil
	case MethodAes128Cbc:
		key := e.plan.RotationEntryForIndex(index).Key
		iv := IVForIndex(e.plan.IV, index)
		return e.cbc.Encrypt(payload, key, iv)
	case MethodSampleAes:
		key := e.plan.RotationEntryForIndex(index).Key
		iv := IVForIndex(e.plan.IV, index)
		return e.encryptSampleAES(payload, key, iv)
	case MethodSampleAesCtr:
		return nil, errors.UnsupportedMethod("SAMPLE-AES-CTR is declared but not implemented")
	default:
		return nil, errors.UnsupportedMethod("unknown encryption method")
	}
}

// encryptSampleAES walks an MPEG-TS segment PID by PID, encrypting
// slice NALUs (video PID) or ADTS frame bodies (audio PID) in place
// per SampleCodec's clear/protected span planning, leaving the
// 188-byte packet framing and PAT/PMT untouched. Output size always
// equals input size.
func (e *SegmentEncryptor) encryptSampleAES(tsData []byte, key, iv []byte) ([]byte, error) {
	if len(tsData)%mpegts.PacketSize != 0 {
		return nil, errors.New(errors.CodeMalformedMedia, "SAMPLE-AES input is not TS-packet aligned")
	}

	out := make([]byte, len(tsData))
	copy(out, tsData)

	esBuffers := map[uint16][]byte{}
	packetIndices := map[uint16][][2]int{} // payload [start,end) within out, per packet, for each PID

	for off := 0; off < len(out); off += mpegts.PacketSize {
		packet := out[off : off+mpegts.PacketSize]
		pid := (uint16(packet[1])<<8 | uint16(packet[2])) & 0x1FFF
		if pid != mpegts.PIDVideo && pid != mpegts.PIDAudio {
			continue
		}
		afc := (packet[3] >> 4) & 0x03
		if afc == 0 || afc == 2 {
			continue // no payload
		}
		pos := 4
		if afc == 3 {
			adaptationLen := int(packet[4])
			pos += 1 + adaptationLen
		}
		if pos >= mpegts.PacketSize {
			continue
		}
		pusi := packet[1]&0x40 != 0
		payloadStart := pos
		if pusi {
			// PES header: 00 00 01 streamID len(2) flags(2) pes_hdr_len(1) [opt fields]
			if pos+9 > mpegts.PacketSize {
				continue
			}
			pesHdrLen := int(packet[pos+8])
			payloadStart = pos + 9 + pesHdrLen
			if payloadStart > mpegts.PacketSize {
				payloadStart = mpegts.PacketSize
			}
		}
		esBuffers[pid] = append(esBuffers[pid], packet[payloadStart:]...)
		packetIndices[pid] = append(packetIndices[pid], [2]int{off + payloadStart, off + mpegts.PacketSize})
	}

	for pid, es := range esBuffers {
		var encrypted []byte
		var err error
		if pid == mpegts.PIDVideo {
			encrypted, err = e.encryptAnnexB(es, key, iv)
		} else {
			encrypted, err = e.encryptADTS(es, key, iv)
		}
		if err != nil {
			return nil, err
		}
		if len(encrypted) != len(es) {
			return nil, errors.New(errors.CodeMalformedMedia, "SAMPLE-AES stream encryption changed length")
		}
		writeBack(out, packetIndices[pid], encrypted)
	}

	return out, nil
}

// writeBack scatters encrypted (the reassembled elementary stream)
// back across the original per-packet payload spans.
func writeBack(out []byte, spans [][2]int, encrypted []byte) {
	pos := 0
	for _, span := range spans {
		n := span[1] - span[0]
		copy(out[span[0]:span[1]], encrypted[pos:pos+n])
		pos += n
	}
}

func (e *SegmentEncryptor) encryptAnnexB(data, key, iv []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	nalus := samplecodec.ScanAnnexB(data)
	for _, n := range nalus {
		if !n.IsSliceNALU() {
			continue
		}
		body := out[n.Offset : n.Offset+n.Length]
		span := samplecodec.PlanSliceEncryption(n.Length)
		if !span.EligibleForCrypt {
			continue
		}
		if err := e.encryptSpan(body, key, iv, span); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *SegmentEncryptor) encryptADTS(data, key, iv []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	frames, err := samplecodec.ScanADTS(data)
	if err != nil {
		return nil, errors.New(errors.CodeMalformedMedia, err.Error())
	}
	for _, f := range frames {
		body := out[f.BodyOffset() : f.BodyOffset()+f.BodyLength()]
		span := samplecodec.PlanADTSEncryption(f.BodyLength())
		if !span.EligibleForCrypt {
			continue
		}
		if err := e.encryptSpan(body, key, iv, span); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// encryptSpan encrypts span.EncryptedBlocks full 16-byte blocks of body
// starting at span.EncryptedOffset using AES-CBC with no padding
// (SAMPLE-AES never pads; block count is exact by construction).
func (e *SegmentEncryptor) encryptSpan(body, key, iv []byte, span samplecodec.ClearProtectedSpan) error {
	if span.EncryptedBlocks == 0 {
		return nil
	}
	start := span.EncryptedOffset
	n := span.EncryptedBlocks * 16
	block := body[start : start+n]
	ciphertext, err := cbcNoPad(block, key, iv)
	if err != nil {
		return err
	}
	copy(block, ciphertext)
	return nil
}

// cbcNoPad encrypts exactly one or more 16-byte blocks without
// PKCS#7 padding, used for SAMPLE-AES's fixed-length protected spans
// where the boundary is already block-aligned by construction.
func cbcNoPad(plaintext, key, iv []byte) ([]byte, error) {
	if len(plaintext)%16 != 0 {
		return nil, errors.New(errors.CodeMalformedMedia, "SAMPLE-AES protected span is not block-aligned")
	}
	c := NewAesCbc()
	padded, err := c.Encrypt(plaintext, key, iv)
	if err != nil {
		return nil, err
	}
	// Encrypt() PKCS#7-pads; strip the extra padding block it always
	// appends since SAMPLE-AES spans are pre-sized to exact blocks.
	return padded[:len(plaintext)], nil
}
