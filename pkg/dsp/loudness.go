package dsp

import (
	"math"
	"sort"

	"github.com/aminofox/swift-hls-kit/pkg/errors"
)

// ChannelWeight is the ITU-R BS.1770-4 per-channel weighting applied
// before summing mean-square power across channels. Surround channels
// (left-surround/right-surround) are weighted 1.41; L/R/C (or mono) are
// 1.0. LFE is excluded entirely (WeightExcluded, weight 0).
type ChannelWeight float64

const (
	WeightStandard ChannelWeight = 1.0
	WeightSurround ChannelWeight = 1.41
	WeightExcluded ChannelWeight = 0.0
)

// gateBlockSeconds and gateHopSeconds are the BS.1770-4 gating block
// size (400 ms) and hop (100 ms, 75% overlap).
const (
	gateBlockSeconds = 0.4
	gateHopSeconds   = 0.1

	absoluteGateLUFS = -70.0
	relativeGateLU   = -10.0
)

// KWeight applies the BS.1770-4 K-weighting pre-filter (a high-shelf
// stage followed by a high-pass stage) to one channel of audio at the
// given sample rate.
func KWeight(samples []float32, sampleRate int) []float32 {
	stage1 := biquad(samples, preFilterCoeffs(sampleRate))
	return biquad(stage1, highPassCoeffs(sampleRate))
}

type biquadCoeffs struct{ b0, b1, b2, a1, a2 float64 }

// preFilterCoeffs and highPassCoeffs are the standard BS.1770-4
// coefficients for the 48 kHz reference design, re-derived for an
// arbitrary sample rate via the documented analog-prototype mapping.
// At 48 kHz the pre-filter reduces to the published reference
// coefficients; the high-pass numerator is normalised by a0, so its
// b0/b1/b2 differ slightly from the published 1, -2, 1.
func preFilterCoeffs(sampleRate int) biquadCoeffs {
	fs := float64(sampleRate)
	db := 3.999843853973347
	f0 := 1681.9743509866355
	q := 0.7071752369554196
	k := math.Tan(math.Pi * f0 / fs)
	vh := math.Pow(10, db/20)
	vb := math.Pow(vh, 0.4996667741545416)
	a0 := 1 + k/q + k*k
	b0 := (vh + vb*k/q + k*k) / a0
	b1 := 2 * (k*k - vh) / a0
	b2 := (vh - vb*k/q + k*k) / a0
	a1 := 2 * (k*k - 1) / a0
	a2 := (1 - k/q + k*k) / a0
	return biquadCoeffs{b0: b0, b1: b1, b2: b2, a1: a1, a2: a2}
}

func highPassCoeffs(sampleRate int) biquadCoeffs {
	fs := float64(sampleRate)
	f0 := 38.13547087602444
	q := 0.5003270373238773
	k := math.Tan(math.Pi * f0 / fs)
	a0 := 1 + k/q + k*k
	b0 := 1.0
	b1 := -2.0
	b2 := 1.0
	a1 := 2 * (k*k - 1) / a0
	a2 := (1 - k/q + k*k) / a0
	return biquadCoeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1, a2: a2}
}

func biquad(in []float32, c biquadCoeffs) []float32 {
	out := make([]float32, len(in))
	var x1, x2, y1, y2 float64
	for i, s := range in {
		x0 := float64(s)
		y0 := c.b0*x0 + c.b1*x1 + c.b2*x2 - c.a1*y1 - c.a2*y2
		out[i] = float32(y0)
		x2, x1 = x1, x0
		y2, y1 = y1, y0
	}
	return out
}

// GatedLoudness measures integrated program loudness (LUFS) and the
// loudness range (LRA, in LU) across a multi-channel, K-weighted,
// planar signal per ITU-R BS.1770-4 / EBU Tech 3342, with an absolute
// gate at -70 LUFS followed by a relative gate at -10 LU below the
// ungated mean.
type GatedLoudness struct {
	IntegratedLUFS float64
	LoudnessRange  float64 // LU
}

// MeasureGatedLoudness takes one already-K-weighted planar channel set
// (see KWeight) plus its per-channel weights, and returns the gated
// integrated loudness and loudness range.
func MeasureGatedLoudness(weighted [][]float32, weights []ChannelWeight, sampleRate int) (GatedLoudness, error) {
	if len(weighted) == 0 || len(weighted) != len(weights) {
		return GatedLoudness{}, errors.InvalidConfiguration("gated loudness: channel/weight count mismatch")
	}
	frames := len(weighted[0])
	for _, ch := range weighted {
		if len(ch) != frames {
			return GatedLoudness{}, errors.InvalidConfiguration("gated loudness: channel length mismatch")
		}
	}

	blockLen := int(gateBlockSeconds * float64(sampleRate))
	hopLen := int(gateHopSeconds * float64(sampleRate))
	if blockLen <= 0 || hopLen <= 0 || frames < blockLen {
		return GatedLoudness{}, errors.InvalidConfiguration("gated loudness: signal shorter than one gating block")
	}

	var blockPowers []float64
	for start := 0; start+blockLen <= frames; start += hopLen {
		var power float64
		for c, ch := range weighted {
			var sumSq float64
			for _, s := range ch[start : start+blockLen] {
				sumSq += float64(s) * float64(s)
			}
			power += float64(weights[c]) * sumSq / float64(blockLen)
		}
		blockPowers = append(blockPowers, power)
	}

	gated := gateBlocks(blockPowers, absoluteGateLUFS, nil)
	if len(gated) == 0 {
		return GatedLoudness{IntegratedLUFS: math.Inf(-1)}, nil
	}
	ungatedMean := meanPower(gated)
	relativeThreshold := ungatedMean
	gated = gateBlocks(blockPowers, absoluteGateLUFS, &relativeThreshold)
	if len(gated) == 0 {
		return GatedLoudness{IntegratedLUFS: math.Inf(-1)}, nil
	}

	integrated := powerToLUFS(meanPower(gated))
	lra := loudnessRange(gated)

	return GatedLoudness{IntegratedLUFS: integrated, LoudnessRange: lra}, nil
}

func powerToLUFS(power float64) float64 {
	if power <= 0 {
		return math.Inf(-1)
	}
	return -0.691 + 10*math.Log10(power)
}

// gateBlocks keeps blocks whose loudness exceeds absoluteLUFS and,
// when relativeThreshold (a mean power, not LUFS) is supplied, also
// exceeds relativeThreshold's loudness minus relativeGateLU.
func gateBlocks(powers []float64, absoluteLUFS float64, relativeThreshold *float64) []float64 {
	var relLUFS float64
	if relativeThreshold != nil {
		relLUFS = powerToLUFS(*relativeThreshold) + relativeGateLU
	}
	out := make([]float64, 0, len(powers))
	for _, p := range powers {
		l := powerToLUFS(p)
		if l <= absoluteLUFS {
			continue
		}
		if relativeThreshold != nil && l <= relLUFS {
			continue
		}
		out = append(out, p)
	}
	return out
}

func meanPower(powers []float64) float64 {
	var sum float64
	for _, p := range powers {
		sum += p
	}
	return sum / float64(len(powers))
}

// loudnessRange implements EBU Tech 3342's LRA: gate blocks at -20 LU
// relative to the mean power of the blocks passed in, then take the spread between the 10th
// and 95th percentile of the surviving blocks' loudness. Percentile
// indices are truncated (int(count*p)), not half-up rounded, per this
// module's preserved interpretation of the reference implementation's
// behaviour at small sample counts.
func loudnessRange(gatedPowers []float64) float64 {
	const lraRelativeGateLU = -20.0
	mean := meanPower(gatedPowers)
	threshold := powerToLUFS(mean) + lraRelativeGateLU

	var lufs []float64
	for _, p := range gatedPowers {
		l := powerToLUFS(p)
		if l > threshold {
			lufs = append(lufs, l)
		}
	}
	if len(lufs) == 0 {
		return 0
	}
	sort.Float64s(lufs)

	lo := int(float64(len(lufs)) * 0.10)
	hi := int(float64(len(lufs)) * 0.95)
	if hi >= len(lufs) {
		hi = len(lufs) - 1
	}
	if lo >= len(lufs) {
		lo = len(lufs) - 1
	}
	return lufs[hi] - lufs[lo]
}
