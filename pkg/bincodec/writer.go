// Package bincodec provides the big-endian primitive writer and ISOBMFF
// box-framing helpers used by pkg/isobmff. It never
// allocates beyond the buffer it is asked to grow, and it is the only
// place in the module that patches bytes in an already-emitted buffer.
package bincodec

import (
	"encoding/binary"
	"math"

	"github.com/aminofox/swift-hls-kit/pkg/errors"
)

// Writer accumulates big-endian bytes into a growable backing slice. The
// zero value is usable.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer with the given capacity hint.
func NewWriter(capacityHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capacityHint)}
}

// Bytes returns the live backing slice. Callers that need a stable copy
// must clone it themselves; PatchI32 relies on this being a live view.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// U8 appends a single byte.
func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

// U16 appends a big-endian uint16.
func (w *Writer) U16(v uint16) *Writer {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// U32 appends a big-endian uint32.
func (w *Writer) U32(v uint32) *Writer {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// I32 appends a big-endian int32.
func (w *Writer) I32(v int32) *Writer {
	return w.U32(uint32(v))
}

// U64 appends a big-endian uint64.
func (w *Writer) U64(v uint64) *Writer {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

// U24 appends a 3-byte big-endian unsigned integer (used for ISOBMFF
// FullBox flags and MPEG-TS section lengths).
func (w *Writer) U24(v uint32) *Writer {
	w.buf = append(w.buf, byte(v>>16), byte(v>>8), byte(v))
	return w
}

// FourCC appends a 4-character box type tag.
func (w *Writer) FourCC(tag string) *Writer {
	if len(tag) != 4 {
		panic("bincodec: fourcc must be exactly 4 characters: " + tag)
	}
	w.buf = append(w.buf, tag...)
	return w
}

// Zeros appends n zero bytes.
func (w *Writer) Zeros(n int) *Writer {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
	return w
}

// Fixed16_16 appends a 16.16 fixed-point encoding of a float64, the
// format ISOBMFF uses for matrix entries and track width/height.
func (w *Writer) Fixed16_16(v float64) *Writer {
	return w.I32(int32(math.Round(v * 65536)))
}

// Fixed8_8 appends an 8.8 fixed-point encoding, used by mvhd/tkhd rate
// and volume fields.
func (w *Writer) Fixed8_8(v float64) *Writer {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(int16(v*256)))
	w.buf = append(w.buf, b[:]...)
	return w
}

// Raw appends a raw byte slice.
func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// WriteBox emits size(u32) || fourcc || payload, failing if the total
// size would overflow a 32-bit box size (callers needing extended size
// must build one by hand; this module's boxes never approach that size).
func (w *Writer) WriteBox(boxType string, payload []byte) error {
	total := uint64(8 + len(payload))
	if total >= uint64(math.MaxUint32) {
		return errors.Newf(errors.CodeMalformedMedia, "box %q size %d overflows 32-bit box size", boxType, total)
	}
	w.U32(uint32(total))
	w.FourCC(boxType)
	w.Raw(payload)
	return nil
}

// WriteFullBox emits size || fourcc || version(u8) || flags(u24) ||
// payload — the "full box" header ISOBMFF uses for versioned boxes like
// tfdt and trun.
func (w *Writer) WriteFullBox(boxType string, version uint8, flags uint32, payload []byte) error {
	fb := NewWriter(4 + len(payload))
	fb.U8(version)
	fb.U24(flags)
	fb.Raw(payload)
	return w.WriteBox(boxType, fb.Bytes())
}

// WriteContainer concatenates already-serialized children into a single
// container box, the composition rule every box type with sub-boxes
// (moov, trak, mdia, minf, stbl, mvex, moof, traf) follows.
func (w *Writer) WriteContainer(boxType string, children ...[]byte) error {
	size := 0
	for _, c := range children {
		size += len(c)
	}
	payload := make([]byte, 0, size)
	for _, c := range children {
		payload = append(payload, c...)
	}
	return w.WriteBox(boxType, payload)
}

// PatchI32 rewrites four bytes at offset in place, the primitive behind
// the two-pass trun.data_offset fix-up: write the full box with
// data_offset=0, measure the result, then overwrite the placeholder.
func (w *Writer) PatchI32(offset int, value int32) error {
	if offset < 0 || offset+4 > len(w.buf) {
		return errors.Newf(errors.CodeMalformedMedia, "patch offset %d out of range (len=%d)", offset, len(w.buf))
	}
	binary.BigEndian.PutUint32(w.buf[offset:offset+4], uint32(value))
	return nil
}

// BuildBox is a free function for callers that only need one box's
// bytes without holding onto a Writer (e.g. composing siblings before a
// container call).
func BuildBox(boxType string, payload []byte) ([]byte, error) {
	w := NewWriter(8 + len(payload))
	if err := w.WriteBox(boxType, payload); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// BuildFullBox is the free-function equivalent of WriteFullBox.
func BuildFullBox(boxType string, version uint8, flags uint32, payload []byte) ([]byte, error) {
	w := NewWriter(12 + len(payload))
	if err := w.WriteFullBox(boxType, version, flags, payload); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// BuildContainer is the free-function equivalent of WriteContainer.
func BuildContainer(boxType string, children ...[]byte) ([]byte, error) {
	w := NewWriter(8)
	if err := w.WriteContainer(boxType, children...); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
