package playback

import (
	"fmt"
	"math"
)

// SampleConverter reformats interleaved decoder output into the planar
// float32 output contract. One converter persists across all frames of a
// stream because reformat state must survive frame boundaries.
type SampleConverter struct {
	format   SampleFormat
	channels int
}

// NewSampleConverter creates a converter for the given decoded format.
func NewSampleConverter(format SampleFormat, channels int) *SampleConverter {
	return &SampleConverter{format: format, channels: channels}
}

// Convert writes the frame's effective sample window into dst at the given
// per-channel sample offset and returns the number of samples written.
func (c *SampleConverter) Convert(f *Frame, dst [][]float32, offset int) (int, error) {
	rng := f.Range()
	if len(dst) < f.Channels {
		return 0, fmt.Errorf("convert: %d output channels, frame has %d", len(dst), f.Channels)
	}

	switch c.format {
	case FormatS16LE:
		bytesPerFrame := f.Channels * 2
		src := f.Raw[rng.Offset*bytesPerFrame:]
		for i := 0; i < rng.Count; i++ {
			base := i * bytesPerFrame
			for ch := 0; ch < f.Channels; ch++ {
				o := base + ch*2
				s := int16(src[o]) | int16(src[o+1])<<8
				dst[ch][offset+i] = float32(s) / 32768.0
			}
		}
	case FormatF32LE:
		bytesPerFrame := f.Channels * 4
		src := f.Raw[rng.Offset*bytesPerFrame:]
		for i := 0; i < rng.Count; i++ {
			base := i * bytesPerFrame
			for ch := 0; ch < f.Channels; ch++ {
				o := base + ch*4
				bits := uint32(src[o]) | uint32(src[o+1])<<8 | uint32(src[o+2])<<16 | uint32(src[o+3])<<24
				dst[ch][offset+i] = math.Float32frombits(bits)
			}
		}
	default:
		return 0, fmt.Errorf("convert: unsupported source format %s", c.format)
	}

	return rng.Count, nil
}
