package playback

import "fmt"

// FrameBuffer is an ordered aggregation of decoded frames making up one
// schedulable output chunk. The sum of the frames' effective sample counts
// is the buffer's declared total; downstream buffer allocation depends on
// that equality holding exactly.
type FrameBuffer struct {
	Channels   int
	SampleRate int

	frames  []*Frame
	total   int
	convert bool
}

// NewFrameBuffer creates an empty frame buffer for the given output layout.
// convert must be true when the decoded sample format differs from the
// planar float32 output contract.
func NewFrameBuffer(channels, sampleRate int, convert bool) *FrameBuffer {
	return &FrameBuffer{
		Channels:   channels,
		SampleRate: sampleRate,
		convert:    convert,
	}
}

// Append adds a frame. The frame's effective (possibly truncated) sample
// count is what contributes to the buffer total.
func (b *FrameBuffer) Append(f *Frame) {
	b.frames = append(b.frames, f)
	b.total += f.EffectiveSamples()
}

// Len returns the number of frames.
func (b *FrameBuffer) Len() int { return len(b.frames) }

// TotalSamples returns the declared per-channel sample total.
func (b *FrameBuffer) TotalSamples() int { return b.total }

// Fill copies every frame's effective sample window into dst at a running
// per-channel offset and stamps dst with the exact number of samples
// written. The running offset advances by each frame's effective count, not
// its decoded count, so partially played frames never leave gaps.
func (b *FrameBuffer) Fill(dst *PCMBuffer, conv *SampleConverter) error {
	if dst.Capacity() < b.total {
		return fmt.Errorf("framebuffer: output capacity %d < %d samples", dst.Capacity(), b.total)
	}

	offset := 0
	for _, f := range b.frames {
		if b.convert {
			n, err := conv.Convert(f, dst.Data, offset)
			if err != nil {
				return err
			}
			offset += n
			continue
		}

		rng := f.Range()
		for ch := 0; ch < f.Channels && ch < dst.Channels; ch++ {
			copy(dst.Data[ch][offset:offset+rng.Count], f.Planar[ch][rng.Offset:rng.Offset+rng.Count])
		}
		offset += rng.Count
	}

	if offset != b.total {
		return fmt.Errorf("framebuffer: wrote %d samples, declared %d", offset, b.total)
	}
	dst.Frames = offset
	return nil
}
