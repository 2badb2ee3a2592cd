package playback

import (
	"errors"
	"io"
	"log"
	"math"
	"sync"
)

// DefaultChunkFrames is the per-channel sample count of one scheduled chunk
// on the software-decode path.
const DefaultChunkFrames = 4096

// maxPendingChunks bounds how many chunks a pump may have outstanding on the
// output graph. The pump blocks in flush until the device consumes one, so
// decode stays a fixed distance ahead of playback instead of buffering the
// whole track.
const maxPendingChunks = 4

// SeekingDecoder is implemented by decoders that can reposition their stream
// cheaply. Decoders without it are drained from the start and leading frames
// are skipped.
type SeekingDecoder interface {
	Decoder
	SeekTo(t float64) error
}

// BufferScheduler drives the software-decode path: it pulls frames from a
// decoder, restores presentation order, truncates at segment boundaries,
// converts to the planar float contract, and enqueues chunks on the output
// graph. Session validity and pause-deferral follow the same contract as the
// native-path Scheduler.
type BufferScheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	graph    OutputGraph
	sessions *SessionRegistry
	resolve  ContextResolver

	onComplete CompletionFunc

	chunkFrames int
	window      int

	ctx *PlaybackContext

	completedWhilePaused bool

	// generation invalidates pumps superseded by a later schedule under the
	// same session identity (seek outside a loop restarts scheduling
	// without changing the session).
	generation uint64

	// decMu serializes decoder access between pumps. A superseded pump
	// re-checks liveness under it before every pull, so once the live pump
	// has repositioned the stream no stale pump can consume from it.
	decMu sync.Mutex
}

// pumpState is the bookkeeping shared between one pump goroutine and the
// completion callbacks of the chunks it enqueued. Guarded by the
// scheduler mutex.
type pumpState struct {
	sess       *Session
	generation uint64
	pending    int
	exhausted  bool
}

// NewBufferScheduler creates a software-path scheduler. chunkFrames <= 0
// selects DefaultChunkFrames.
func NewBufferScheduler(graph OutputGraph, sessions *SessionRegistry, resolve ContextResolver, onComplete CompletionFunc, chunkFrames int) *BufferScheduler {
	if chunkFrames <= 0 {
		chunkFrames = DefaultChunkFrames
	}
	s := &BufferScheduler{
		graph:       graph,
		sessions:    sessions,
		resolve:     resolve,
		onComplete:  onComplete,
		chunkFrames: chunkFrames,
		window:      defaultReorderWindow,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// PlayTrack schedules the session's track from startTime and begins output.
func (s *BufferScheduler) PlayTrack(sess *Session, startTime float64) {
	s.SeekToTime(sess, startTime, true)
}

// SeekToTime schedules playback from t, clamped into the session's loop when
// one is complete. Prior output is halted unconditionally; in-flight decode
// work from a previous schedule is not cancelled, its chunks are simply
// filtered out by generation and session checks when they surface.
func (s *BufferScheduler) SeekToTime(sess *Session, t float64, beginPlayback bool) {
	if sess == nil {
		return
	}
	t = SanitizeTime(t, 0)

	var endTime *float64
	if loop := sess.Loop(); loop.Complete() {
		t = clampToLoop(t, loop)
		endTime = loop.End
	}

	s.mu.Lock()
	s.graph.Stop()
	s.generation++
	gen := s.generation
	s.cond.Broadcast()

	ctx := s.contextLocked(sess)
	if ctx == nil || !ctx.Opened() || ctx.Decoder() == nil {
		s.mu.Unlock()
		log.Printf("[SCHED] no playable context for %s, nothing scheduled", sess.Path())
		return
	}

	dec := ctx.Decoder()
	rate := int64(dec.SampleRate())
	startSample := int64(t * float64(rate))
	endSample := int64(-1)
	if endTime != nil {
		endSample = int64(SanitizeTime(*endTime, 0) * float64(rate))
	}

	state := &pumpState{sess: sess, generation: gen}
	s.mu.Unlock()

	go s.pump(state, dec, t, startSample, endSample)
	if beginPlayback {
		s.graph.Play()
	}
}

// contextLocked resolves and caches the context for the session's track.
func (s *BufferScheduler) contextLocked(sess *Session) *PlaybackContext {
	if s.ctx != nil && s.ctx.Path() == sess.Path() {
		return s.ctx
	}
	if s.ctx != nil {
		s.ctx.Close()
		s.ctx = nil
	}
	if s.resolve == nil {
		return nil
	}

	ctx, err := s.resolve(sess.Path())
	if err != nil || ctx == nil {
		if err != nil {
			log.Printf("[SCHED] resolve %s: %v", sess.Path(), err)
		}
		return nil
	}
	if err := ctx.Open(); err != nil {
		log.Printf("[SCHED] open %s: %v", sess.Path(), err)
		return nil
	}

	s.ctx = ctx
	return ctx
}

// pump pulls frames in presentation order, assembles them into frame
// buffers of chunkFrames samples, truncates the first frame after a
// mid-frame start and the last frame at the segment end, and enqueues the
// resulting planar chunks. A decoder that stops producing simply yields a
// final short chunk; the pump never blocks the scheduler.
func (s *BufferScheduler) pump(state *pumpState, dec Decoder, startTime float64, startSample, endSample int64) {
	rate := float64(dec.SampleRate())
	convert := dec.Format() != FormatF32Planar
	var conv *SampleConverter
	if convert {
		conv = NewSampleConverter(dec.Format(), dec.Channels())
	}

	// Reposition under decMu: any superseded pump still mid-pull finishes
	// that pull first, and its next liveness check fails before it can read
	// past the new position.
	s.decMu.Lock()
	if !s.pumpAlive(state) {
		s.decMu.Unlock()
		return
	}
	if seeker, ok := dec.(SeekingDecoder); ok {
		if err := seeker.SeekTo(startTime); err != nil {
			s.decMu.Unlock()
			log.Printf("[SCHED] seek %s to %.3fs: %v", state.sess.Path(), startTime, err)
			return
		}
	}
	s.decMu.Unlock()

	reorder := newFrameReorderer(dec, s.window)
	buf := NewFrameBuffer(dec.Channels(), dec.SampleRate(), convert)
	first := true

	for {
		s.decMu.Lock()
		if !s.pumpAlive(state) {
			s.decMu.Unlock()
			return
		}

		f, err := reorder.Next()
		s.decMu.Unlock()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("[SCHED] decode: %v", err)
			}
			break
		}

		framePos := int64(math.Round(f.PTS * rate))

		if first {
			if framePos+int64(f.Samples) <= startSample {
				// Wholly before the requested start; drop.
				continue
			}
			if framePos < startSample {
				f.KeepLast(int(framePos + int64(f.Samples) - startSample))
				framePos = startSample
			}
			first = false
		}

		if endSample >= 0 {
			if framePos >= endSample {
				break
			}
			if want := endSample - framePos; want < int64(f.EffectiveSamples()) {
				f.KeepFirst(int(want))
				buf.Append(f)
				break
			}
		}

		buf.Append(f)

		if buf.TotalSamples() >= s.chunkFrames {
			if !s.flush(state, buf, conv) {
				return
			}
			buf = NewFrameBuffer(dec.Channels(), dec.SampleRate(), convert)
		}
	}

	if buf.TotalSamples() > 0 {
		if !s.flush(state, buf, conv) {
			return
		}
	}

	s.mu.Lock()
	state.exhausted = true
	done := state.pending == 0
	s.mu.Unlock()

	if done {
		s.finishChunk(state, 0)
	}
}

// pumpAlive reports whether the pump's schedule is still the live one.
func (s *BufferScheduler) pumpAlive(state *pumpState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == state.generation && s.sessions.IsCurrent(state.sess)
}

// flush converts one assembled frame buffer into a planar chunk and
// enqueues it, blocking while maxPendingChunks are already outstanding.
// Returns false when the schedule has been superseded.
func (s *BufferScheduler) flush(state *pumpState, buf *FrameBuffer, conv *SampleConverter) bool {
	out := NewPCMBuffer(buf.Channels, buf.TotalSamples(), buf.SampleRate)
	if err := buf.Fill(out, conv); err != nil {
		log.Printf("[SCHED] fill chunk: %v", err)
		return false
	}

	s.mu.Lock()
	for state.pending >= maxPendingChunks &&
		s.generation == state.generation && s.sessions.IsCurrent(state.sess) {
		s.cond.Wait()
	}
	if s.generation != state.generation || !s.sessions.IsCurrent(state.sess) {
		s.mu.Unlock()
		return false
	}
	state.pending++
	s.mu.Unlock()

	s.graph.EnqueueBuffer(out, func() { s.finishChunk(state, 1) })
	return true
}

// finishChunk runs on the graph's callback goroutine when a chunk has been
// consumed (delta 1), or synchronously when the pump exhausted with nothing
// outstanding (delta 0). Once the decoder is exhausted and the last chunk
// has rendered, completion is published or deferred exactly as on the
// native path.
func (s *BufferScheduler) finishChunk(state *pumpState, delta int) {
	s.mu.Lock()
	state.pending -= delta
	s.cond.Broadcast()
	if s.generation != state.generation || !s.sessions.IsCurrent(state.sess) {
		s.mu.Unlock()
		return
	}
	if !state.exhausted || state.pending > 0 {
		s.mu.Unlock()
		return
	}
	if !s.graph.IsPlaying() {
		s.completedWhilePaused = true
		s.mu.Unlock()
		return
	}
	cb := s.onComplete
	s.mu.Unlock()

	if cb != nil {
		cb(state.sess)
	}
}

// Pause halts output without discarding enqueued chunks.
func (s *BufferScheduler) Pause() {
	s.graph.Pause()
}

// Resume restarts output, publishing a completion deferred during pause
// instead when one is waiting.
func (s *BufferScheduler) Resume() {
	s.mu.Lock()
	if s.completedWhilePaused {
		s.completedWhilePaused = false
		sess := s.sessions.Current()
		cb := s.onComplete
		s.mu.Unlock()

		if cb != nil && sess != nil {
			cb(sess)
		}
		return
	}
	s.mu.Unlock()

	s.graph.Play()
}

// Stop halts output, invalidates the running pump, closes the context, and
// ends the current session.
func (s *BufferScheduler) Stop() {
	s.mu.Lock()
	s.completedWhilePaused = false
	s.generation++
	s.cond.Broadcast()
	ctx := s.ctx
	s.ctx = nil
	s.mu.Unlock()

	s.graph.Stop()
	if ctx != nil {
		ctx.Close()
	}
	s.sessions.End()
}
