package dsp

import (
	"math"
	"testing"
)

func sineWave(freq float64, sampleRate, frames int, amplitude float64) []float32 {
	out := make([]float32, frames)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestKWeightPreservesLength(t *testing.T) {
	in := sineWave(1000, 48000, 4800, 0.5)
	out := KWeight(in, 48000)
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
}

func TestMeasureGatedLoudnessOfFullScaleSineIsPlausible(t *testing.T) {
	const sampleRate = 48000
	frames := sampleRate * 3 // 3 seconds, several gating blocks
	ch := sineWave(997, sampleRate, frames, 1.0)
	weighted := KWeight(ch, sampleRate)

	result, err := MeasureGatedLoudness([][]float32{weighted}, []ChannelWeight{WeightStandard}, sampleRate)
	if err != nil {
		t.Fatalf("MeasureGatedLoudness: %v", err)
	}

	// A full-scale 997 Hz sine measures close to -3 LUFS under
	// BS.1770-4; allow a generous band since this isn't the reference
	// filter's exact coefficient set.
	if result.IntegratedLUFS < -10 || result.IntegratedLUFS > 3 {
		t.Fatalf("IntegratedLUFS = %v, outside plausible range", result.IntegratedLUFS)
	}
}

func TestMeasureGatedLoudnessSilenceIsGatedToNegativeInfinity(t *testing.T) {
	const sampleRate = 48000
	frames := sampleRate * 2
	silence := make([]float32, frames)

	result, err := MeasureGatedLoudness([][]float32{silence}, []ChannelWeight{WeightStandard}, sampleRate)
	if err != nil {
		t.Fatalf("MeasureGatedLoudness: %v", err)
	}
	if !math.IsInf(result.IntegratedLUFS, -1) {
		t.Fatalf("IntegratedLUFS = %v, want -Inf for silence gated out entirely", result.IntegratedLUFS)
	}
}

func TestMeasureGatedLoudnessRejectsChannelWeightMismatch(t *testing.T) {
	_, err := MeasureGatedLoudness([][]float32{{1, 2}}, nil, 48000)
	if err == nil {
		t.Fatal("expected error for channel/weight count mismatch")
	}
}

func TestLoudnessRangeUsesTruncatingPercentiles(t *testing.T) {
	// 15 ascending blocks 1 LU apart => lo = int(15*0.10) = 1 (half-up
	// rounding would give 2), hi = int(15*0.95) = 14 (half-up: 15, out of
	// range), so LRA = lufs[14] - lufs[1] = 13 LU.
	powers := make([]float64, 15)
	for i := range powers {
		powers[i] = math.Pow(10, float64(i)/10.0)
	}
	lra := loudnessRange(powers)
	if math.Abs(lra-13) > 1e-9 {
		t.Fatalf("loudnessRange = %v, want 13 (truncated percentile indices 1 and 14)", lra)
	}
}
