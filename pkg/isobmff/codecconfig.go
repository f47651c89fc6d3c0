package isobmff

// AudioObjectType is the MPEG-4 Audio objectTypeIndication carried in
// AudioSpecificConfig.
type AudioObjectType uint8

const (
	AACObjectLC    AudioObjectType = 2
	AACObjectHE    AudioObjectType = 5
	AACObjectHEv2  AudioObjectType = 29
	AACObjectLD    AudioObjectType = 23
	AACObjectELD   AudioObjectType = 39
)

// aacSampleRateTable is the MPEG-4 sample-rate index table; index 15
// means "rate not present in the table."
var aacSampleRateTable = []int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// AACSampleRateIndex returns the MPEG-4 sample-rate index for sampleRate,
// or 15 ("not in table") when no exact match exists.
func AACSampleRateIndex(sampleRate int) uint8 {
	for i, rate := range aacSampleRateTable {
		if rate == sampleRate {
			return uint8(i)
		}
	}
	return 15
}

// AudioSpecificConfig is the 2-byte AAC AudioSpecificConfig embedded in
// an esds DecoderSpecificInfo: (objectType<<3)|(srIndex>>1),
// ((srIndex&1)<<7)|(channelConfig<<3).
func AudioSpecificConfig(objectType AudioObjectType, sampleRate, channels int) [2]byte {
	srIndex := AACSampleRateIndex(sampleRate)
	channelConfig := byte(channels)
	if channelConfig > 7 {
		channelConfig = 7
	}
	var cfg [2]byte
	cfg[0] = (byte(objectType) << 3) | (srIndex >> 1)
	cfg[1] = ((srIndex & 1) << 7) | (channelConfig << 3)
	return cfg
}
