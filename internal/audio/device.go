package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/hajimehoshi/oto/v2"

	"github.com/gapless-audio/gaplessd/internal/playback"
)

const (
	defaultSampleRate = 44100
	defaultChannels   = 2
	bytesPerSample    = 2 // s16le

	// Per-channel frames read from a segment source per feeder iteration.
	segmentBlockFrames = 4096
)

// chunk is one queued run of interleaved s16le audio. onDone, when set,
// fires on the callback goroutine once the chunk has been fully handed to
// the output stream.
type chunk struct {
	data   []byte
	pos    int
	onDone func()
}

// Device is the oto-backed output graph. Scheduled audio is queued as s16le
// chunks and drained through Read by the oto player; completion callbacks
// run on a dedicated goroutine so they never execute under the device lock
// or on the audio pull path.
type Device struct {
	context    *oto.Context
	player     oto.Player
	sampleRate int
	channels   int

	mu   sync.Mutex
	cond *sync.Cond

	queue       []*chunk
	queuedBytes int
	maxQueued   int

	volume  float64
	paused  bool
	playing bool
	closed  bool

	// feedGen invalidates segment feeders superseded by Stop or a newer
	// ScheduleSegment.
	feedGen uint64

	callbacks chan func()
	done      chan struct{}

	analyzer *Analyzer
}

// NewDevice opens the default output at 44.1kHz stereo.
func NewDevice() (*Device, error) {
	return NewDeviceWithConfig(defaultSampleRate, defaultChannels)
}

// NewDeviceWithConfig opens the output with a custom stream format.
func NewDeviceWithConfig(sampleRate, channels int) (*Device, error) {
	ctx, ready, err := oto.NewContext(sampleRate, channels, bytesPerSample)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	d := &Device{
		context:    ctx,
		sampleRate: sampleRate,
		channels:   channels,
		// ~200ms of queue. Keeps the feeder from racing ahead of what
		// the user actually hears.
		maxQueued: sampleRate * channels * bytesPerSample / 5,
		volume:    1.0,
		callbacks: make(chan func(), 64),
		done:      make(chan struct{}),
		analyzer:  NewAnalyzer(sampleRate, channels),
	}
	d.cond = sync.NewCond(&d.mu)
	d.player = ctx.NewPlayer(d)

	go d.runCallbacks()

	return d, nil
}

func (d *Device) runCallbacks() {
	for {
		select {
		case cb := <-d.callbacks:
			cb()
		case <-d.done:
			return
		}
	}
}

// Read implements io.Reader for the oto player. It blocks while paused,
// returns silence when nothing is queued to keep the stream alive, and
// dispatches completion callbacks for chunks it fully consumes.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()

	for d.paused && !d.closed {
		d.cond.Wait()
	}
	if d.closed {
		d.mu.Unlock()
		return 0, io.EOF
	}

	var finished []func()
	n := 0
	for n < len(p) && len(d.queue) > 0 {
		c := d.queue[0]
		take := copy(p[n:], c.data[c.pos:])
		c.pos += take
		n += take
		d.queuedBytes -= take
		if c.pos >= len(c.data) {
			if c.onDone != nil {
				finished = append(finished, c.onDone)
			}
			d.queue = d.queue[1:]
		}
	}
	if n > 0 || len(finished) > 0 {
		// Wake feeders throttled on queue depth.
		d.cond.Broadcast()
	}

	if n > 0 {
		if d.analyzer != nil {
			d.analyzer.ProcessSamples(p[:n])
		}
		if d.volume < 1.0 {
			applyVolume(p[:n], d.volume)
		}
	}
	d.mu.Unlock()

	// Zero-length chunks carry completions too (an empty segment signals its
	// end this way), so callbacks dispatch even when the read drained no
	// bytes and the stream gets padded with silence.
	for _, cb := range finished {
		select {
		case d.callbacks <- cb:
		case <-d.done:
		}
	}

	if n == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	return n, nil
}

// applyVolume scales interleaved s16le samples in place.
func applyVolume(data []byte, vol float64) {
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(data[i]) | int16(data[i+1])<<8
		scaled := int16(float64(sample) * vol)
		data[i] = byte(scaled)
		data[i+1] = byte(scaled >> 8)
	}
}

// ScheduleSegment feeds frameCount sample frames of src starting at
// firstFrame through the queue. Decoding runs on a feeder goroutine that is
// throttled against queue depth; a Stop or a newer schedule supersedes it.
func (d *Device) ScheduleSegment(src playback.SegmentSource, firstFrame, frameCount int64, onDone func()) {
	d.mu.Lock()
	d.feedGen++
	gen := d.feedGen
	d.mu.Unlock()

	go d.feedSegment(gen, src, firstFrame, frameCount, onDone)
}

func (d *Device) feedSegment(gen uint64, src playback.SegmentSource, firstFrame, frameCount int64, onDone func()) {
	channels := src.Channels()
	dst := make([][]float32, channels)
	for ch := range dst {
		dst[ch] = make([]float32, segmentBlockFrames)
	}

	pos := firstFrame
	remaining := frameCount
	for remaining > 0 {
		want := int64(segmentBlockFrames)
		if want > remaining {
			want = remaining
		}
		block := dst
		if want < segmentBlockFrames {
			block = make([][]float32, channels)
			for ch := range block {
				block[ch] = dst[ch][:want]
			}
		}

		n, err := src.ReadPlanarAt(pos, block)
		if n > 0 {
			last := int64(n) >= remaining || err != nil
			if !d.enqueueSegmentBlock(gen, block, n, last, onDone) {
				return
			}
			pos += int64(n)
			remaining -= int64(n)
			if last {
				return
			}
		}
		if err != nil {
			// Source ran out before the declared segment end; the audio
			// already queued still completes the segment.
			if n == 0 {
				d.enqueueSegmentBlock(gen, nil, 0, true, onDone)
			}
			return
		}
	}

	if frameCount <= 0 {
		// Empty segment: completion still fires once "everything" queued
		// ahead of it has drained.
		d.enqueueSegmentBlock(gen, nil, 0, true, onDone)
	}
}

// enqueueSegmentBlock converts one planar block to s16le and appends it,
// waiting while the queue is at depth. Returns false when the feeder's
// schedule has been superseded.
func (d *Device) enqueueSegmentBlock(gen uint64, block [][]float32, frames int, last bool, onDone func()) bool {
	data := interleaveS16(block, frames)

	d.mu.Lock()
	for d.queuedBytes >= d.maxQueued && d.feedGen == gen && !d.closed {
		d.cond.Wait()
	}
	if d.feedGen != gen || d.closed {
		d.mu.Unlock()
		return false
	}

	c := &chunk{data: data}
	if last {
		c.onDone = onDone
	}
	d.queue = append(d.queue, c)
	d.queuedBytes += len(data)
	d.mu.Unlock()
	return true
}

// EnqueueBuffer appends one planar chunk to the output stream. Used by the
// software-decode path, which does its own pacing against the onDone
// callbacks.
func (d *Device) EnqueueBuffer(buf *playback.PCMBuffer, onDone func()) {
	data := interleaveS16(buf.Data, buf.Frames)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, &chunk{data: data, onDone: onDone})
	d.queuedBytes += len(data)
	d.mu.Unlock()
}

// interleaveS16 converts planar float32 samples to interleaved s16le with
// clipping.
func interleaveS16(planar [][]float32, frames int) []byte {
	channels := len(planar)
	if channels == 0 || frames <= 0 {
		return nil
	}
	data := make([]byte, frames*channels*bytesPerSample)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := planar[ch][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			s := int16(v * 32767)
			off := (i*channels + ch) * bytesPerSample
			data[off] = byte(s)
			data[off+1] = byte(s >> 8)
		}
	}
	return data
}

// Play starts or resumes output.
func (d *Device) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.paused = false
	d.playing = true
	d.cond.Broadcast()
	if d.player != nil && !d.player.IsPlaying() {
		d.player.Play()
	}
}

// Pause halts output without discarding queued audio.
func (d *Device) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.paused = true
	d.playing = false
	if d.player != nil && d.player.IsPlaying() {
		d.player.Pause()
	}
}

// Stop halts output and discards everything queued but not yet played,
// including pending completion callbacks.
func (d *Device) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.feedGen++
	d.paused = false
	d.playing = false
	d.queue = nil
	d.queuedBytes = 0
	d.cond.Broadcast()
	if d.player != nil {
		d.player.Pause()
	}
}

// IsPlaying reports whether output is running.
func (d *Device) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// SetVolume sets the playback volume (0.0 - 1.0).
func (d *Device) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	d.volume = v
}

// GetVolume returns the current volume.
func (d *Device) GetVolume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

// SampleRate returns the output stream sample rate.
func (d *Device) SampleRate() int { return d.sampleRate }

// Channels returns the output stream channel count.
func (d *Device) Channels() int { return d.channels }

// GetAudioBands returns the current frequency bands for visualization.
func (d *Device) GetAudioBands() []uint8 {
	if d.analyzer != nil {
		return d.analyzer.GetBands()
	}
	return make([]uint8, numBands)
}

// ResetAnalyzer clears the analyzer state.
func (d *Device) ResetAnalyzer() {
	if d.analyzer != nil {
		d.analyzer.Reset()
	}
}

// SetAudioCallback registers a callback for real-time audio analysis push.
func (d *Device) SetAudioCallback(cb AudioDataCallback) {
	if d.analyzer != nil {
		d.analyzer.SetCallback(cb)
	}
}

// Close releases the output.
func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	d.feedGen++
	d.cond.Broadcast()
	player := d.player
	d.mu.Unlock()

	close(d.done)

	if player != nil {
		return player.Close()
	}
	return nil
}

var (
	_ io.Reader            = (*Device)(nil)
	_ playback.OutputGraph = (*Device)(nil)
)
