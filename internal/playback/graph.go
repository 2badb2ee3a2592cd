package playback

// PCMBuffer is one schedulable chunk of output audio in the planar float32
// contract: one contiguous slice per channel. Frames is the valid sample
// count per channel, which may be shorter than capacity when the decoder ran
// out of frames.
type PCMBuffer struct {
	Channels   int
	SampleRate int
	Data       [][]float32
	Frames     int
}

// NewPCMBuffer allocates a planar buffer with the given per-channel capacity.
func NewPCMBuffer(channels, capacity, sampleRate int) *PCMBuffer {
	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, capacity)
	}
	return &PCMBuffer{
		Channels:   channels,
		SampleRate: sampleRate,
		Data:       data,
	}
}

// Capacity returns the per-channel sample capacity.
func (b *PCMBuffer) Capacity() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// SegmentSource provides random access to decoded PCM for natively decodable
// tracks. Implementations are not required to be safe for concurrent use;
// the output graph reads from a single feeding goroutine.
type SegmentSource interface {
	// ReadPlanarAt decodes up to len(dst[0]) sample frames starting at the
	// given absolute frame offset into dst. Returns the number of frames
	// read; io.EOF past end of stream.
	ReadPlanarAt(firstFrame int64, dst [][]float32) (int, error)
	TotalFrames() int64
	SampleRate() int
	Channels() int
}

// OutputGraph is the audio output boundary the schedulers talk to. Both
// scheduling entry points register a completion callback; the graph invokes
// it on its dedicated callback goroutine once the scheduled audio has been
// fully consumed. Stop discards anything scheduled but not yet played,
// including pending callbacks.
type OutputGraph interface {
	// ScheduleSegment schedules frameCount sample frames of src starting
	// at firstFrame. Used by the native path.
	ScheduleSegment(src SegmentSource, firstFrame, frameCount int64, onDone func())

	// EnqueueBuffer appends one planar float chunk to the output stream.
	// Used by the software-decode path.
	EnqueueBuffer(buf *PCMBuffer, onDone func())

	Play()
	Pause()
	Stop()
	IsPlaying() bool
}
