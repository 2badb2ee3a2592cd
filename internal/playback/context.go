package playback

import "io"

// PlaybackContext owns the opened decode handle for one track: a seekable
// segment source on the native path, or a software decoder. Exactly one
// context is open for output at a time; it is opened before use and closed
// on stop.
type PlaybackContext struct {
	path   string
	src    SegmentSource
	closer io.Closer
	dec    Decoder
	opened bool
}

// NewSegmentContext wraps a natively decodable track. closer releases the
// underlying stream on Close and may be nil.
func NewSegmentContext(path string, src SegmentSource, closer io.Closer) *PlaybackContext {
	return &PlaybackContext{path: path, src: src, closer: closer, opened: src != nil}
}

// NewDecoderContext wraps a software-decoded track. The decoder is opened
// lazily via Open.
func NewDecoderContext(path string, dec Decoder) *PlaybackContext {
	return &PlaybackContext{path: path, dec: dec}
}

// Path returns the track path.
func (c *PlaybackContext) Path() string { return c.path }

// Source returns the native segment source, or nil on the software path.
func (c *PlaybackContext) Source() SegmentSource { return c.src }

// Decoder returns the software decoder, or nil on the native path.
func (c *PlaybackContext) Decoder() Decoder { return c.dec }

// Opened reports whether the decode handle is ready for scheduling.
func (c *PlaybackContext) Opened() bool { return c.opened }

// Open opens the underlying decode handle. Native contexts are open from
// construction; software contexts open their decoder here.
func (c *PlaybackContext) Open() error {
	if c.opened {
		return nil
	}
	if c.dec != nil {
		if err := c.dec.Open(c.path); err != nil {
			return err
		}
	}
	c.opened = true
	return nil
}

// Close releases the decode handle.
func (c *PlaybackContext) Close() error {
	if !c.opened {
		return nil
	}
	c.opened = false
	if c.dec != nil {
		return c.dec.Close()
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// SampleRate returns the stream sample rate.
func (c *PlaybackContext) SampleRate() int {
	if c.src != nil {
		return c.src.SampleRate()
	}
	if c.dec != nil {
		return c.dec.SampleRate()
	}
	return 0
}

// Channels returns the stream channel count.
func (c *PlaybackContext) Channels() int {
	if c.src != nil {
		return c.src.Channels()
	}
	if c.dec != nil {
		return c.dec.Channels()
	}
	return 0
}

// TotalFrames returns the track length in sample frames, or -1 when the
// length is unknown (software path, where the decoder runs to exhaustion).
func (c *PlaybackContext) TotalFrames() int64 {
	if c.src != nil {
		return c.src.TotalFrames()
	}
	return -1
}

// Duration returns the track duration in seconds, or 0 when unknown.
func (c *PlaybackContext) Duration() float64 {
	total := c.TotalFrames()
	rate := c.SampleRate()
	if total < 0 || rate <= 0 {
		return 0
	}
	return float64(total) / float64(rate)
}
