// Package dsp provides the bounded, side-effect-free audio transforms
// that sit upstream of the segmentation core: PCM layout conversion,
// channel mixing, resampling, and ITU-R BS.1770-4 loudness measurement.
// None of these types interact with the Segmenter; each is a pure
// function over float32 PCM slices, consumed by an encoder stage
// outside this module's scope.
package dsp

import "github.com/aminofox/swift-hls-kit/pkg/errors"

// Interleave packs per-channel planar buffers (one []float32 per
// channel, all the same length) into a single interleaved buffer of
// length frames*channels.
func Interleave(planar [][]float32) ([]float32, error) {
	if len(planar) == 0 {
		return nil, errors.InvalidConfiguration("interleave requires at least one channel")
	}
	frames := len(planar[0])
	for _, ch := range planar {
		if len(ch) != frames {
			return nil, errors.InvalidConfiguration("interleave: channel length mismatch")
		}
	}

	channels := len(planar)
	out := make([]float32, frames*channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			out[f*channels+c] = planar[c][f]
		}
	}
	return out, nil
}

// Planar splits an interleaved buffer into one []float32 per channel.
func Planar(interleaved []float32, channels int) ([][]float32, error) {
	if channels <= 0 {
		return nil, errors.InvalidConfiguration("planar: channels must be positive")
	}
	if len(interleaved)%channels != 0 {
		return nil, errors.InvalidConfiguration("planar: buffer length not a multiple of channel count")
	}

	frames := len(interleaved) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			out[c][f] = interleaved[f*channels+c]
		}
	}
	return out, nil
}

// MixMatrix applies an outChannels x inChannels mix matrix to one frame
// of interleaved input, producing one frame of interleaved output.
// matrix[o][i] is the gain applied from input channel i into output
// channel o (e.g. the standard stereo-to-mono matrix is
// [][]float32{{0.5, 0.5}}).
type MixMatrix [][]float32

// Apply mixes an entire interleaved buffer frame by frame through m.
func (m MixMatrix) Apply(interleaved []float32, inChannels int) ([]float32, error) {
	if inChannels <= 0 || len(interleaved)%inChannels != 0 {
		return nil, errors.InvalidConfiguration("mix: invalid input channel count")
	}
	outChannels := len(m)
	for _, row := range m {
		if len(row) != inChannels {
			return nil, errors.InvalidConfiguration("mix: matrix row width does not match input channel count")
		}
	}

	frames := len(interleaved) / inChannels
	out := make([]float32, frames*outChannels)
	for f := 0; f < frames; f++ {
		in := interleaved[f*inChannels : f*inChannels+inChannels]
		for o, row := range m {
			var acc float32
			for i, gain := range row {
				acc += gain * in[i]
			}
			out[f*outChannels+o] = acc
		}
	}
	return out, nil
}

// StereoToMono is the standard equal-gain downmix matrix.
var StereoToMono = MixMatrix{{0.5, 0.5}}

// MonoToStereo duplicates a mono channel into both stereo channels.
var MonoToStereo = MixMatrix{{1}, {1}}
