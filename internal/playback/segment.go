package playback

// Segment is a contiguous sample range of a track scheduled as one unit.
type Segment struct {
	FirstFrame int64
	FrameCount int64
}

// LastFrame returns the exclusive end frame.
func (s Segment) LastFrame() int64 { return s.FirstFrame + s.FrameCount }

// computeSegment converts a time window into a sample-frame range within the
// context's track. endTime nil means to end of track. Both bounds are
// sanitized and clamped to the track length.
func computeSegment(ctx *PlaybackContext, startTime float64, endTime *float64) Segment {
	rate := int64(ctx.SampleRate())
	total := ctx.TotalFrames()

	first := int64(SanitizeTime(startTime, 0) * float64(rate))
	if total >= 0 && first > total {
		first = total
	}

	last := total
	if endTime != nil {
		last = int64(SanitizeTime(*endTime, ctx.Duration()) * float64(rate))
		if total >= 0 && last > total {
			last = total
		}
	}
	if last < first {
		last = first
	}

	return Segment{FirstFrame: first, FrameCount: last - first}
}

// clampToLoop clamps a seek time into a complete loop's bounds.
func clampToLoop(t float64, loop *Loop) float64 {
	if t < loop.Start {
		return loop.Start
	}
	if loop.End != nil && t > *loop.End {
		return *loop.End
	}
	return t
}
