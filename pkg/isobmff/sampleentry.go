package isobmff

import (
	"github.com/aminofox/swift-hls-kit/pkg/bincodec"
	"github.com/aminofox/swift-hls-kit/pkg/errors"
)

// buildAVCC builds the avcC configuration box: version 1, the SPS's
// profile/compatibility/level bytes, lengthSizeMinusOne encoded as
// 0xFF (length-size 4), a single SPS, and a single PPS.
func buildAVCC(sps, pps []byte) ([]byte, error) {
	if len(sps) < 4 {
		return nil, errors.New(errors.CodeInvalidConfiguration, "SPS too short to carry profile/compat/level bytes")
	}
	w := bincodec.NewWriter(16 + len(sps) + len(pps))
	w.U8(1)       // configurationVersion
	w.U8(sps[1])  // AVCProfileIndication
	w.U8(sps[2])  // profile_compatibility
	w.U8(sps[3])  // AVCLevelIndication
	w.U8(0xFF)    // reserved(6) + lengthSizeMinusOne(2) = 3 -> 0xFF
	w.U8(0xE1)    // reserved(3) + numOfSequenceParameterSets(5) = 1 -> 0xE1
	w.U16(uint16(len(sps)))
	w.Raw(sps)
	w.U8(1) // numOfPictureParameterSets
	w.U16(uint16(len(pps)))
	w.Raw(pps)
	return bincodec.BuildBox("avcC", w.Bytes())
}

// buildAVC1 builds the avc1 visual sample entry, wrapping avcC.
func buildAVC1(cfg VideoTrackConfig) ([]byte, error) {
	avcc, err := buildAVCC(cfg.SPS, cfg.PPS)
	if err != nil {
		return nil, err
	}

	w := bincodec.NewWriter(78 + len(avcc))
	w.Zeros(6)                  // reserved
	w.U16(1)                    // data_reference_index
	w.U16(0)                    // pre_defined
	w.U16(0)                    // reserved
	w.Zeros(12)                 // pre_defined[3]
	w.U16(cfg.Width)
	w.U16(cfg.Height)
	w.Fixed16_16(72) // horizresolution, 72 dpi
	w.Fixed16_16(72) // vertresolution, 72 dpi
	w.U32(0)         // reserved
	w.U16(1)         // frame_count
	w.Zeros(32)       // compressorname
	w.U16(0x0018)     // depth
	w.U16(0xFFFF)     // pre_defined = -1
	w.Raw(avcc)

	return bincodec.BuildBox("avc1", w.Bytes())
}

// esDescriptorTags, per the MPEG-4 ES_Descriptor/DecoderConfigDescriptor
// framing used inside esds.
const (
	tagES                = 0x03
	tagDecoderConfig     = 0x04
	tagDecoderSpecific   = 0x05
	tagSLConfig          = 0x06
	objectTypeIndicationAudioISO = 0x40
	streamTypeAudioFlags         = 0x15 // streamType(6)=5(audio) + upStream(1)=0 + reserved(1)=1
)

// writeDescriptorLength encodes a descriptor's length using the MPEG-4
// expandable-length convention (a single byte suffices for every length
// this writer ever produces).
func writeDescriptorLength(w *bincodec.Writer, n int) {
	w.U8(uint8(n))
}

// buildESDS builds the esds full box wrapping an ES_Descriptor with a
// DecoderConfigDescriptor (objectTypeIndication=0x40, audio) and a
// DecoderSpecificInfo carrying the 2-byte AudioSpecificConfig.
func buildESDS(cfg AudioTrackConfig) ([]byte, error) {
	asc := AudioSpecificConfig(cfg.ObjectType, cfg.SampleRate, cfg.Channels)

	dsi := bincodec.NewWriter(2)
	dsi.U8(tagDecoderSpecific)
	writeDescriptorLength(dsi, 2)
	dsi.Raw(asc[:])

	dcd := bincodec.NewWriter(20)
	dcd.U8(tagDecoderConfig)
	writeDescriptorLength(dcd, 13+len(dsi.Bytes()))
	dcd.U8(objectTypeIndicationAudioISO)
	dcd.U8(streamTypeAudioFlags)
	dcd.U24(0) // bufferSizeDB
	dcd.U32(0) // maxBitrate
	dcd.U32(0) // avgBitrate
	dcd.Raw(dsi.Bytes())

	slc := bincodec.NewWriter(3)
	slc.U8(tagSLConfig)
	writeDescriptorLength(slc, 1)
	slc.U8(0x02) // predefined: MP4 SLConfigDescriptor

	es := bincodec.NewWriter(5)
	es.U8(tagES)
	writeDescriptorLength(es, 3+len(dcd.Bytes())+len(slc.Bytes()))
	es.U16(0) // ES_ID
	es.U8(0)  // flags
	es.Raw(dcd.Bytes())
	es.Raw(slc.Bytes())

	return bincodec.BuildFullBox("esds", 0, 0, es.Bytes())
}

// buildMP4A builds the mp4a audio sample entry, wrapping esds.
func buildMP4A(cfg AudioTrackConfig) ([]byte, error) {
	esds, err := buildESDS(cfg)
	if err != nil {
		return nil, err
	}

	w := bincodec.NewWriter(28 + len(esds))
	w.Zeros(6) // reserved
	w.U16(1)   // data_reference_index
	w.Zeros(8) // version/revision/vendor
	w.U16(uint16(cfg.Channels))
	w.U16(16) // samplesize
	w.U32(0)  // reserved
	w.U32(uint32(cfg.SampleRate) << 16)
	w.Raw(esds)

	return bincodec.BuildBox("mp4a", w.Bytes())
}
