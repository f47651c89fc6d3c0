package isobmff

import (
	"github.com/aminofox/swift-hls-kit/pkg/bincodec"
)

// trun flag bits, combined per track composition.
const (
	trunFlagDataOffsetPresent   = 0x000001
	trunFlagSampleDuration      = 0x000100
	trunFlagSampleSize          = 0x000200
	trunFlagSampleFlagsPresent  = 0x000400
	tfhdFlagDefaultBaseIsMoof   = 0x020000
)

// syncSampleFlags / nonSyncSampleFlags are the trun per-sample flags
// values for keyframe vs non-keyframe video samples: depends_on=2
// (leading, no dependents) for keyframes, depends_on=1 otherwise.
const (
	syncSampleFlags    = 0x02000000
	nonSyncSampleFlags = 0x01010000
)

// BuildMediaSegment builds a full media segment (styp + moof + mdat) for
// one track's batch of samples. isVideo controls whether trun carries
// per-sample flags and whether IsKeyframe participates in them.
func BuildMediaSegment(trackID uint32, timescale uint32, sequenceNumber uint32, baseMediaDecodeTime uint64, samples []Sample, isVideo bool) ([]byte, error) {
	styp, err := buildStyp()
	if err != nil {
		return nil, err
	}
	moofAndMdat, err := buildMoofAndMdat(trackID, sequenceNumber, baseMediaDecodeTime, samples, isVideo)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(styp)+len(moofAndMdat))
	out = append(out, styp...)
	out = append(out, moofAndMdat...)
	return out, nil
}

// BuildPartialSegment builds a partial (LL-HLS) segment: identical to a
// full media segment but without the leading styp.
func BuildPartialSegment(trackID uint32, timescale uint32, sequenceNumber uint32, baseMediaDecodeTime uint64, samples []Sample, isVideo bool) ([]byte, error) {
	return buildMoofAndMdat(trackID, sequenceNumber, baseMediaDecodeTime, samples, isVideo)
}

func buildStyp() ([]byte, error) {
	w := bincodec.NewWriter(24)
	w.FourCC("msdh")
	w.U32(0)
	w.FourCC("msdh")
	w.FourCC("msix")
	w.FourCC("isom")
	return bincodec.BuildBox("styp", w.Bytes())
}

// buildMoofAndMdat is the shared core of BuildMediaSegment and
// BuildPartialSegment. It implements the two-pass data_offset fix-up
// mandated by spec: trun is written with data_offset=0, the resulting
// moof size is measured, and the placeholder is patched with
// moof.size+8 before mdat is appended.
func buildMoofAndMdat(trackID uint32, sequenceNumber uint32, baseMediaDecodeTime uint64, samples []Sample, isVideo bool) ([]byte, error) {
	mfhd, err := buildMfhd(sequenceNumber)
	if err != nil {
		return nil, err
	}
	tfhd, err := buildTfhd(trackID)
	if err != nil {
		return nil, err
	}
	tfdt, err := buildTfdt(baseMediaDecodeTime)
	if err != nil {
		return nil, err
	}

	trunWriter := bincodec.NewWriter(0)
	trunPayload := buildTrunPayload(samples, isVideo, 0)
	if err := trunWriter.WriteFullBox("trun", 1, trunFlags(isVideo), trunPayload); err != nil {
		return nil, err
	}
	trun := trunWriter.Bytes()

	traf, err := bincodec.BuildContainer("traf", tfhd, tfdt, trun)
	if err != nil {
		return nil, err
	}

	moofWriter := bincodec.NewWriter(0)
	if err := moofWriter.WriteContainer("moof", mfhd, traf); err != nil {
		return nil, err
	}
	moof := moofWriter.Bytes()
	moofSize := len(moof)

	// Locate the data_offset field within moof: it's the first 4 bytes
	// of the trun payload (right after the FullBox version/flags
	// header), at the end of the buffer since trun is traf's last
	// child and traf is moof's last child.
	// trun layout: size(4) fourcc(4) version(1) flags(3) sample_count(4) data_offset(4) ...
	dataOffsetFieldOffset := moofSize - len(trun) + 16
	w := bincodec.NewWriter(moofSize)
	w.Raw(moof)
	if err := w.PatchI32(dataOffsetFieldOffset, int32(moofSize+8)); err != nil {
		return nil, err
	}

	mdatPayload := concatSampleData(samples)
	mdatWriter := bincodec.NewWriter(8 + len(mdatPayload))
	if err := mdatWriter.WriteBox("mdat", mdatPayload); err != nil {
		return nil, err
	}

	out := make([]byte, 0, w.Len()+mdatWriter.Len())
	out = append(out, w.Bytes()...)
	out = append(out, mdatWriter.Bytes()...)
	return out, nil
}

func trunFlags(isVideo bool) uint32 {
	flags := uint32(trunFlagDataOffsetPresent | trunFlagSampleDuration | trunFlagSampleSize)
	if isVideo {
		flags |= trunFlagSampleFlagsPresent
	}
	return flags
}

func buildMfhd(sequenceNumber uint32) ([]byte, error) {
	w := bincodec.NewWriter(4)
	w.U32(sequenceNumber)
	return bincodec.BuildFullBox("mfhd", 0, 0, w.Bytes())
}

func buildTfhd(trackID uint32) ([]byte, error) {
	w := bincodec.NewWriter(4)
	w.U32(trackID)
	return bincodec.BuildFullBox("tfhd", 0, tfhdFlagDefaultBaseIsMoof, w.Bytes())
}

func buildTfdt(baseMediaDecodeTime uint64) ([]byte, error) {
	w := bincodec.NewWriter(8)
	w.U64(baseMediaDecodeTime)
	return bincodec.BuildFullBox("tfdt", 1, 0, w.Bytes())
}

// buildTrunPayload builds the trun body (sample_count + data_offset +
// per-sample duration/size[/flags]) with the given placeholder
// data_offset; the caller patches the real value in afterward.
func buildTrunPayload(samples []Sample, isVideo bool, dataOffsetPlaceholder int32) []byte {
	w := bincodec.NewWriter(8 + len(samples)*12)
	w.U32(uint32(len(samples)))
	w.I32(dataOffsetPlaceholder)
	for _, s := range samples {
		w.U32(s.Duration)
		w.U32(uint32(len(s.Data)))
		if isVideo {
			if s.IsKeyframe {
				w.U32(syncSampleFlags)
			} else {
				w.U32(nonSyncSampleFlags)
			}
		}
	}
	return w.Bytes()
}

func concatSampleData(samples []Sample) []byte {
	size := 0
	for _, s := range samples {
		size += len(s.Data)
	}
	out := make([]byte, 0, size)
	for _, s := range samples {
		out = append(out, s.Data...)
	}
	return out
}
