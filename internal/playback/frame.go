package playback

// SampleFormat identifies the in-memory layout of a frame's payload.
type SampleFormat int

const (
	// FormatS16LE is interleaved signed 16-bit little-endian PCM, the
	// payload format the software decoder produces.
	FormatS16LE SampleFormat = iota
	// FormatF32LE is interleaved 32-bit float PCM.
	FormatF32LE
	// FormatF32Planar is one contiguous float32 slice per channel. This is
	// the output-stage contract; frames already in this format are copied
	// into output buffers without conversion.
	FormatF32Planar
)

// BytesPerSample returns the per-channel sample width for interleaved
// formats.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatS16LE:
		return 2
	default:
		return 4
	}
}

// String returns the format name.
func (f SampleFormat) String() string {
	switch f {
	case FormatS16LE:
		return "s16le"
	case FormatF32LE:
		return "f32le"
	case FormatF32Planar:
		return "f32p"
	default:
		return "unknown"
	}
}

// SampleRange is a frame's effective sample window. A non-positive count
// means the full decoded frame, so a zero-value range is untruncated.
// Modeling truncation as an explicit range avoids hidden mutable state if
// frames are ever aliased.
type SampleRange struct {
	Offset int
	Count  int
}

// Frame is one decoded unit of PCM audio. PTS carries the best-effort
// presentation time in seconds; RawPTS is the stream-time-base timestamp used
// to restore a total order when decode work is parallelized.
type Frame struct {
	Channels   int
	Format     SampleFormat
	SampleRate int
	Samples    int // decoded sample count per channel
	PTS        float64
	RawPTS     int64

	// Payload: Planar when Format == FormatF32Planar, Raw (interleaved)
	// otherwise. Owned by the producing decoder until consumed into an
	// output buffer.
	Planar [][]float32
	Raw    []byte

	rng SampleRange
}

// Range returns the frame's effective sample window.
func (f *Frame) Range() SampleRange {
	r := f.rng
	if r.Count <= 0 {
		r.Count = f.Samples
	}
	return r
}

// EffectiveSamples returns the truncated sample count, or the full decoded
// count when no truncation has been applied.
func (f *Frame) EffectiveSamples() int {
	if f.rng.Count <= 0 {
		return f.Samples
	}
	return f.rng.Count
}

// KeepLast clips the frame's start so that only its final n samples play,
// used to begin playback partway through a frame after a seek or at a loop
// start. n >= the decoded count leaves the frame unmodified.
func (f *Frame) KeepLast(n int) {
	if n >= f.Samples || n <= 0 {
		return
	}
	f.rng.Offset = f.Samples - n
	f.rng.Count = n
}

// KeepFirst clips the frame's end so that only its first n samples play,
// used to stop exactly at a loop end or segment boundary. n >= the decoded
// count leaves the frame unmodified.
func (f *Frame) KeepFirst(n int) {
	if n >= f.Samples || n <= 0 {
		return
	}
	f.rng.Count = n
}
