package isobmff

import (
	"github.com/aminofox/swift-hls-kit/pkg/bincodec"
)

// BuildInitSegment builds the ftyp+moov initialization segment for a
// fragmented stream carrying videoCfg and/or audioCfg (either may be
// nil, but not both). moov's sample tables are empty; mvex/trex declare
// the per-fragment defaults every moof/trun then overrides explicitly.
func BuildInitSegment(videoCfg *VideoTrackConfig, audioCfg *AudioTrackConfig) ([]byte, error) {
	ftyp, err := buildFtyp()
	if err != nil {
		return nil, err
	}

	moov, err := buildMoov(videoCfg, audioCfg)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(ftyp)+len(moov))
	out = append(out, ftyp...)
	out = append(out, moov...)
	return out, nil
}

func buildFtyp() ([]byte, error) {
	w := bincodec.NewWriter(24)
	w.FourCC("cmfc") // major_brand
	w.U32(0)         // minor_version
	w.FourCC("cmfc") // compatible_brands
	w.FourCC("iso6")
	w.FourCC("isom")
	return bincodec.BuildBox("ftyp", w.Bytes())
}

func buildMoov(videoCfg *VideoTrackConfig, audioCfg *AudioTrackConfig) ([]byte, error) {
	movieTimescale := uint32(90000)
	if videoCfg == nil && audioCfg != nil {
		movieTimescale = audioCfg.Timescale
	}

	mvhd, err := buildMvhd(movieTimescale)
	if err != nil {
		return nil, err
	}

	var traks [][]byte
	var trexes [][]byte

	if videoCfg != nil {
		trak, err := buildVideoTrak(*videoCfg)
		if err != nil {
			return nil, err
		}
		traks = append(traks, trak)
		trex, err := buildTrex(VideoTrackID)
		if err != nil {
			return nil, err
		}
		trexes = append(trexes, trex)
	}

	if audioCfg != nil {
		trak, err := buildAudioTrak(*audioCfg)
		if err != nil {
			return nil, err
		}
		traks = append(traks, trak)
		trex, err := buildTrex(AudioTrackID)
		if err != nil {
			return nil, err
		}
		trexes = append(trexes, trex)
	}

	mvex, err := bincodec.BuildContainer("mvex", trexes...)
	if err != nil {
		return nil, err
	}

	children := make([][]byte, 0, 2+len(traks))
	children = append(children, mvhd)
	children = append(children, traks...)
	children = append(children, mvex)
	return bincodec.BuildContainer("moov", children...)
}

// buildMvhd builds a movie header with duration=0 (fragmented movies
// carry no overall duration) and the identity transform matrix.
func buildMvhd(timescale uint32) ([]byte, error) {
	w := bincodec.NewWriter(96)
	w.U32(0) // creation_time
	w.U32(0) // modification_time
	w.U32(timescale)
	w.U32(0) // duration
	w.Fixed16_16(1.0) // rate
	w.Fixed8_8(1.0)   // volume
	w.Zeros(2)        // reserved
	w.Zeros(8)        // reserved[2]
	writeIdentityMatrix(w)
	w.Zeros(24) // pre_defined[6]
	w.U32(3)    // next_track_ID (1=video, 2=audio)
	return bincodec.BuildFullBox("mvhd", 0, 0, w.Bytes())
}

func writeIdentityMatrix(w *bincodec.Writer) {
	w.Fixed16_16(1) // a
	w.Fixed16_16(0)
	w.U32(0)
	w.Fixed16_16(0)
	w.Fixed16_16(1) // d
	w.U32(0)
	w.U32(0)
	w.U32(0)
	w.I32(1 << 30) // w, 2.30 fixed point 1.0
}

func buildTrex(trackID uint32) ([]byte, error) {
	w := bincodec.NewWriter(20)
	w.U32(trackID)
	w.U32(1) // default_sample_description_index
	w.U32(0) // default_sample_duration
	w.U32(0) // default_sample_size
	w.U32(0) // default_sample_flags
	return bincodec.BuildFullBox("trex", 0, 0, w.Bytes())
}

func buildVideoTrak(cfg VideoTrackConfig) ([]byte, error) {
	tkhd, err := buildTkhd(VideoTrackID, float64(cfg.Width), float64(cfg.Height))
	if err != nil {
		return nil, err
	}

	mdhd, err := buildMdhd(cfg.Timescale)
	if err != nil {
		return nil, err
	}
	hdlr, err := buildHdlr("vide", "VideoHandler")
	if err != nil {
		return nil, err
	}
	vmhd, err := buildVmhd()
	if err != nil {
		return nil, err
	}
	dinf, err := buildDinf()
	if err != nil {
		return nil, err
	}
	avc1, err := buildAVC1(cfg)
	if err != nil {
		return nil, err
	}
	stbl, err := buildStbl(avc1)
	if err != nil {
		return nil, err
	}

	minf, err := bincodec.BuildContainer("minf", vmhd, dinf, stbl)
	if err != nil {
		return nil, err
	}
	mdia, err := bincodec.BuildContainer("mdia", mdhd, hdlr, minf)
	if err != nil {
		return nil, err
	}
	return bincodec.BuildContainer("trak", tkhd, mdia)
}

func buildAudioTrak(cfg AudioTrackConfig) ([]byte, error) {
	tkhd, err := buildTkhd(AudioTrackID, 0, 0)
	if err != nil {
		return nil, err
	}
	mdhd, err := buildMdhd(cfg.Timescale)
	if err != nil {
		return nil, err
	}
	hdlr, err := buildHdlr("soun", "SoundHandler")
	if err != nil {
		return nil, err
	}
	smhd, err := buildSmhd()
	if err != nil {
		return nil, err
	}
	dinf, err := buildDinf()
	if err != nil {
		return nil, err
	}
	mp4a, err := buildMP4A(cfg)
	if err != nil {
		return nil, err
	}
	stbl, err := buildStbl(mp4a)
	if err != nil {
		return nil, err
	}

	minf, err := bincodec.BuildContainer("minf", smhd, dinf, stbl)
	if err != nil {
		return nil, err
	}
	mdia, err := bincodec.BuildContainer("mdia", mdhd, hdlr, minf)
	if err != nil {
		return nil, err
	}
	return bincodec.BuildContainer("trak", tkhd, mdia)
}

// buildTkhd builds a track header: enabled flag (0x03), zero duration,
// the identity matrix, and width/height in 16.16 fixed point (zero for
// audio).
func buildTkhd(trackID uint32, width, height float64) ([]byte, error) {
	w := bincodec.NewWriter(80)
	w.U32(0) // creation_time
	w.U32(0) // modification_time
	w.U32(trackID)
	w.U32(0) // reserved
	w.U32(0) // duration
	w.Zeros(8) // reserved[2]
	w.U16(0)   // layer
	w.U16(0)   // alternate_group
	w.Fixed8_8(0) // volume (video = 0)
	w.U16(0)      // reserved
	writeIdentityMatrix(w)
	w.Fixed16_16(width)
	w.Fixed16_16(height)
	return bincodec.BuildFullBox("tkhd", 0, 0x000003, w.Bytes())
}

func buildMdhd(timescale uint32) ([]byte, error) {
	w := bincodec.NewWriter(20)
	w.U32(0) // creation_time
	w.U32(0) // modification_time
	w.U32(timescale)
	w.U32(0) // duration
	w.U16(langUnd())
	w.U16(0) // pre_defined
	return bincodec.BuildFullBox("mdhd", 0, 0, w.Bytes())
}

// langUnd packs the ISO-639-2/T code "und" as three 5-bit characters
// biased by 0x60, the way ISOBMFF mdhd always does.
func langUnd() uint16 {
	const bias = 0x60
	u, n, d := uint16('u'-bias), uint16('n'-bias), uint16('d'-bias)
	return (u << 10) | (n << 5) | d
}

func buildHdlr(handlerType, name string) ([]byte, error) {
	w := bincodec.NewWriter(24 + len(name) + 1)
	w.U32(0) // pre_defined
	w.FourCC(handlerType)
	w.Zeros(12) // reserved
	w.Raw([]byte(name))
	w.U8(0) // NUL-terminated name
	return bincodec.BuildFullBox("hdlr", 0, 0, w.Bytes())
}

func buildVmhd() ([]byte, error) {
	w := bincodec.NewWriter(8)
	w.U16(0) // graphicsmode
	w.U16(0)
	w.U16(0)
	w.U16(0) // opcolor[3]
	return bincodec.BuildFullBox("vmhd", 0, 1, w.Bytes())
}

func buildSmhd() ([]byte, error) {
	w := bincodec.NewWriter(4)
	w.Fixed8_8(0) // balance, mono
	w.U16(0)      // reserved
	return bincodec.BuildFullBox("smhd", 0, 0, w.Bytes())
}

func buildDinf() ([]byte, error) {
	urlBox, err := bincodec.BuildFullBox("url ", 0, 1, nil) // flags=1: self-contained
	if err != nil {
		return nil, err
	}
	dref := bincodec.NewWriter(8 + len(urlBox))
	dref.U32(1) // entry_count
	dref.Raw(urlBox)
	drefBox, err := bincodec.BuildFullBox("dref", 0, 0, dref.Bytes())
	if err != nil {
		return nil, err
	}
	return bincodec.BuildContainer("dinf", drefBox)
}

func buildStbl(sampleEntry []byte) ([]byte, error) {
	stsd := bincodec.NewWriter(8 + len(sampleEntry))
	stsd.U32(1) // entry_count
	stsd.Raw(sampleEntry)
	stsdBox, err := bincodec.BuildFullBox("stsd", 0, 0, stsd.Bytes())
	if err != nil {
		return nil, err
	}

	stts, err := bincodec.BuildFullBox("stts", 0, 0, u32(0))
	if err != nil {
		return nil, err
	}
	stsc, err := bincodec.BuildFullBox("stsc", 0, 0, u32(0))
	if err != nil {
		return nil, err
	}
	stsz := bincodec.NewWriter(8)
	stsz.U32(0) // sample_size
	stsz.U32(0) // sample_count
	stszBox, err := bincodec.BuildFullBox("stsz", 0, 0, stsz.Bytes())
	if err != nil {
		return nil, err
	}
	stco, err := bincodec.BuildFullBox("stco", 0, 0, u32(0))
	if err != nil {
		return nil, err
	}

	return bincodec.BuildContainer("stbl", stsdBox, stts, stsc, stszBox, stco)
}

// u32 returns a 4-byte big-endian encoding of a single uint32 entry
// count, the shape every empty stbl table box shares.
func u32(v uint32) []byte {
	w := bincodec.NewWriter(4)
	w.U32(v)
	return w.Bytes()
}
