// Package mpegts packetizes H.264/AAC access units into MPEG-TS segments
// for HLS, with PAT/PMT/PES framing, PCR insertion, and per-PID
// continuity counters.
package mpegts

import (
	"bytes"
	"encoding/binary"

	"github.com/aminofox/swift-hls-kit/pkg/errors"
)

const (
	PacketSize = 188
	SyncByte   = 0x47

	PIDPAT = 0x0000
	PIDPMT = 0x1000
	PIDVideo = 0x0101
	PIDAudio = 0x0102

	StreamTypeH264 = 0x1B
	StreamTypeAAC  = 0x0F

	tableIDPAT = 0x00
	tableIDPMT = 0x02
)

// StreamConfig declares which elementary streams a Muxer's segment
// carries. Video, Audio, or both may be present.
type StreamConfig struct {
	HasVideo bool
	HasAudio bool
}

// AccessUnit is one encoded access unit to packetize into PES: raw
// Annex-B NALU bytes for video, a raw ADTS frame for audio.
type AccessUnit struct {
	IsVideo      bool
	Data         []byte
	PTS          uint64 // 90kHz clock
	DTS          uint64 // 90kHz clock, equals PTS for audio
	RandomAccess bool   // keyframe: sets RAI on the AU's first packet
}

// Muxer packetizes a segment's worth of access units into 188-byte TS
// packets. It is not safe for concurrent use; callers build one TS
// segment at a time from a single goroutine, matching the Segmenter's
// single-writer discipline.
type Muxer struct {
	cfg StreamConfig
	cc  map[uint16]byte
}

func NewMuxer(cfg StreamConfig) *Muxer {
	return &Muxer{cfg: cfg, cc: make(map[uint16]byte)}
}

// MuxSegment produces the full byte stream for one segment: PAT, PMT,
// then PES for every access unit in order. The PCR is derived from the
// first video access unit's PTS (or, audio-only, the first audio AU's).
func (m *Muxer) MuxSegment(units []AccessUnit) ([]byte, error) {
	out := &bytes.Buffer{}

	pat, err := m.buildPAT()
	if err != nil {
		return nil, err
	}
	out.Write(pat)

	pmt, err := m.buildPMT()
	if err != nil {
		return nil, err
	}
	out.Write(pmt)

	pcrWritten := false
	for _, au := range units {
		pid := uint16(PIDAudio)
		streamID := byte(0xC0)
		if au.IsVideo {
			pid = PIDVideo
			streamID = 0xE0
		}

		withPCR := (au.IsVideo || !m.cfg.HasVideo) && !pcrWritten
		if withPCR {
			pcrWritten = true
		}

		packets, err := m.packetizePES(pid, streamID, au, withPCR)
		if err != nil {
			return nil, err
		}
		for _, p := range packets {
			out.Write(p)
		}
	}

	if out.Len()%PacketSize != 0 {
		return nil, errors.New(errors.CodeMalformedMedia, "mpegts: output length not a multiple of 188")
	}
	return out.Bytes(), nil
}

func (m *Muxer) nextCC(pid uint16) byte {
	cc := m.cc[pid]
	m.cc[pid] = (cc + 1) & 0x0F
	return cc
}

// writePacketHeader writes the 4-byte TS header (sync, PUSI/PID,
// scrambling/AFC/CC) into packet[0:4] and returns the write position
// after any adaptation field has been appended.
func (m *Muxer) writePacketHeader(packet []byte, pid uint16, pusi bool, afc byte) int {
	packet[0] = SyncByte

	pidField := pid & 0x1FFF
	if pusi {
		pidField |= 0x4000
	}
	binary.BigEndian.PutUint16(packet[1:3], pidField)

	cc := m.nextCC(pid)
	packet[3] = (afc << 4) | (cc & 0x0F)
	return 4
}

// adaptationFieldControl values.
const (
	afcPayloadOnly       = 0x1
	afcAdaptationPayload = 0x3
)

func writePCR(buf []byte, pts90k uint64) {
	pcrBase := pts90k
	const pcrExt = 0
	buf[0] = byte(pcrBase >> 25)
	buf[1] = byte(pcrBase >> 17)
	buf[2] = byte(pcrBase >> 9)
	buf[3] = byte(pcrBase >> 1)
	buf[4] = byte(((pcrBase & 0x01) << 7) | 0x7E)
	buf[5] = byte(pcrExt)
}

func (m *Muxer) buildPAT() ([]byte, error) {
	section := &bytes.Buffer{}
	section.WriteByte(tableIDPAT)

	body := &bytes.Buffer{}
	binary.Write(body, binary.BigEndian, uint16(0x0001)) // transport_stream_id
	body.WriteByte(0xC1)                                 // reserved(2) version(5) current_next(1)
	body.WriteByte(0x00)                                 // section_number
	body.WriteByte(0x00)                                 // last_section_number
	binary.Write(body, binary.BigEndian, uint16(0x0001))         // program_number
	binary.Write(body, binary.BigEndian, uint16(0xE000|PIDPMT)) // reserved(3) program_map_PID(13)

	sectionLength := body.Len() + 4 // + CRC32
	binary.Write(section, binary.BigEndian, uint16(0xB000|uint16(sectionLength)))
	section.Write(body.Bytes())

	crc := crc32MPEG2(section.Bytes())
	binary.Write(section, binary.BigEndian, crc)

	return m.wrapSection(PIDPAT, section.Bytes())
}

func (m *Muxer) buildPMT() ([]byte, error) {
	section := &bytes.Buffer{}
	section.WriteByte(tableIDPMT)

	pcrPID := uint16(PIDAudio)
	if m.cfg.HasVideo {
		pcrPID = PIDVideo
	}

	body := &bytes.Buffer{}
	binary.Write(body, binary.BigEndian, uint16(0x0001)) // program_number
	body.WriteByte(0xC1)
	body.WriteByte(0x00)
	body.WriteByte(0x00)
	binary.Write(body, binary.BigEndian, uint16(0xE000|pcrPID))
	binary.Write(body, binary.BigEndian, uint16(0xF000)) // program_info_length = 0

	if m.cfg.HasVideo {
		body.WriteByte(StreamTypeH264)
		binary.Write(body, binary.BigEndian, uint16(0xE000|PIDVideo))
		binary.Write(body, binary.BigEndian, uint16(0xF000))
	}
	if m.cfg.HasAudio {
		body.WriteByte(StreamTypeAAC)
		binary.Write(body, binary.BigEndian, uint16(0xE000|PIDAudio))
		binary.Write(body, binary.BigEndian, uint16(0xF000))
	}

	sectionLength := body.Len() + 4
	binary.Write(section, binary.BigEndian, uint16(0xB000|uint16(sectionLength)))
	section.Write(body.Bytes())

	crc := crc32MPEG2(section.Bytes())
	binary.Write(section, binary.BigEndian, crc)

	return m.wrapSection(PIDPMT, section.Bytes())
}

// wrapSection frames a PSI section (PAT or PMT) as a single TS packet:
// pointer_field(0x00) + section, stuffed to 188 bytes with 0xFF.
func (m *Muxer) wrapSection(pid uint16, section []byte) ([]byte, error) {
	packet := make([]byte, PacketSize)
	pos := m.writePacketHeader(packet, pid, true, afcPayloadOnly)
	packet[pos] = 0x00 // pointer_field
	pos++
	if pos+len(section) > PacketSize {
		return nil, errors.New(errors.CodeMalformedMedia, "mpegts: PSI section exceeds one TS packet")
	}
	copy(packet[pos:], section)
	for i := pos + len(section); i < PacketSize; i++ {
		packet[i] = 0xFF
	}
	return packet, nil
}

// packetizePES builds a complete PES packet for one access unit and
// fragments it across 188-byte TS packets, inserting PCR and RAI on the
// first packet when requested.
func (m *Muxer) packetizePES(pid uint16, streamID byte, au AccessUnit, withPCR bool) ([][]byte, error) {
	header := &bytes.Buffer{}
	header.Write([]byte{0x00, 0x00, 0x01})
	header.WriteByte(streamID)

	hasDTS := au.IsVideo && au.DTS != au.PTS
	if au.IsVideo {
		binary.Write(header, binary.BigEndian, uint16(0)) // unbounded length for video
	} else {
		binary.Write(header, binary.BigEndian, uint16(len(au.Data)+8))
	}

	header.WriteByte(0x80) // marker(2) scrambling(2) priority(1) alignment(1) copyright(1) original(1)

	ptsDTSFlags := byte(0x80)
	headerDataLength := byte(5)
	if hasDTS {
		ptsDTSFlags = 0xC0
		headerDataLength = 10
	}
	header.WriteByte(ptsDTSFlags)
	header.WriteByte(headerDataLength)

	writePTSField(header, au.PTS, ptsDTSFlags>>6)
	if hasDTS {
		writePTSField(header, au.DTS, 0x01)
	}

	pes := append(header.Bytes(), au.Data...)

	var packets [][]byte
	offset := 0
	first := true
	for offset < len(pes) {
		packet := make([]byte, PacketSize)
		afc := byte(afcPayloadOnly)
		if first && (withPCR || au.RandomAccess) {
			afc = afcAdaptationPayload
		}

		pos := m.writePacketHeader(packet, pid, first, afc)

		if afc == afcAdaptationPayload {
			adaptationLen := 1
			if withPCR && first {
				adaptationLen += 6
			}
			packet[pos] = byte(adaptationLen)
			pos++
			flags := byte(0)
			if au.RandomAccess && first {
				flags |= 0x40 // random_access_indicator
			}
			if withPCR && first {
				flags |= 0x10 // PCR_flag
			}
			packet[pos] = flags
			pos++
			if withPCR && first {
				writePCR(packet[pos:pos+6], au.PTS)
				pos += 6
			}
		}

		avail := PacketSize - pos
		n := len(pes) - offset
		if n > avail {
			n = avail
		}
		copy(packet[pos:], pes[offset:offset+n])
		pos += n
		for i := pos; i < PacketSize; i++ {
			packet[i] = 0xFF
		}

		packets = append(packets, packet)
		offset += n
		first = false
	}

	return packets, nil
}

// writePTSField writes a 5-byte 33-bit packed PTS/DTS timestamp with
// the given 4-bit marker prefix: 0x2 for a lone PTS, 0x3 for the PTS of
// a PTS+DTS pair (both passed as the caller's ptsDTSFlags>>6), 0x1 for
// the DTS.
func writePTSField(buf *bytes.Buffer, ts uint64, marker byte) {
	buf.WriteByte((marker << 4) | byte((ts>>29)&0x0E) | 0x01)
	binary.Write(buf, binary.BigEndian, uint16((ts>>14)&0xFFFE)|0x0001)
	binary.Write(buf, binary.BigEndian, uint16((ts<<1)&0xFFFE)|0x0001)
}
