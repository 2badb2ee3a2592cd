package playback

// Decoder is the pull-style software decoder boundary. NextFrame returns
// frames in decode order, which may differ from presentation order when
// decode work is parallelized; callers reorder by RawPTS before assembly.
// NextFrame returns io.EOF once the stream is exhausted.
type Decoder interface {
	Open(path string) error
	Close() error
	NextFrame() (*Frame, error)
	SampleRate() int
	Channels() int
	Format() SampleFormat
}
