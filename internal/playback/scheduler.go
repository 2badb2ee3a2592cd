package playback

import (
	"log"
	"sync"
)

// CompletionFunc receives the track-completed event for a session. It is
// invoked from the output graph's callback goroutine and must return
// quickly.
type CompletionFunc func(*Session)

// ContextResolver resolves a track path to a playback context. A nil result
// means the track is not playable; the scheduler treats that as a silent
// scheduling no-op, since upstream validation is expected to have rejected
// unplayable tracks already.
type ContextResolver func(path string) (*PlaybackContext, error)

// Scheduler drives the native-context path: it converts seek times to
// sample-frame offsets, schedules segments on the output graph, and tracks
// completion per session. The current-session and completedWhilePaused state
// is shared between the control goroutine and the graph's callback
// goroutine, so all of it lives behind one mutex.
type Scheduler struct {
	mu       sync.Mutex
	graph    OutputGraph
	sessions *SessionRegistry
	resolve  ContextResolver

	onComplete CompletionFunc

	ctx *PlaybackContext

	// Some output graphs report "segment fully consumed" slightly before
	// the final frame is physically rendered. When that callback arrives
	// while paused it cannot be distinguished from end-of-track yet, so it
	// is deferred until the next Resume.
	completedWhilePaused bool

	// Loop segment cache: recomputing on every seek-within-loop would be
	// redundant while the bounds are unchanged.
	cachedLoopBounds    *Loop
	cachedLoopSegment   *Segment
	segmentComputations int
}

// NewScheduler creates a scheduler over the given output graph.
func NewScheduler(graph OutputGraph, sessions *SessionRegistry, resolve ContextResolver, onComplete CompletionFunc) *Scheduler {
	return &Scheduler{
		graph:      graph,
		sessions:   sessions,
		resolve:    resolve,
		onComplete: onComplete,
	}
}

// Context returns the currently resolved playback context, or nil.
func (s *Scheduler) Context() *PlaybackContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// PlayTrack schedules the session's track from startTime and begins output.
func (s *Scheduler) PlayTrack(sess *Session, startTime float64) {
	s.SeekToTime(sess, startTime, true)
}

// SeekToTime schedules playback of the session's track from t. With a
// complete loop attached, t is clamped into the loop and the loop window is
// scheduled; otherwise prior output is halted unconditionally and the track
// is scheduled from t to end of track.
func (s *Scheduler) SeekToTime(sess *Session, t float64, beginPlayback bool) {
	if sess == nil {
		return
	}
	t = SanitizeTime(t, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	if loop := sess.Loop(); loop.Complete() {
		s.scheduleLoopLocked(sess, loop, t, beginPlayback)
		return
	}

	// Halting marks the end of the prior playback at the graph level even
	// when the logical session is unchanged.
	s.graph.Stop()

	ctx := s.contextLocked(sess)
	if ctx == nil || !ctx.Opened() {
		log.Printf("[SCHED] no playable context for %s, nothing scheduled", sess.Path())
		return
	}

	seg := computeSegment(ctx, t, nil)
	s.segmentComputations++
	s.graph.ScheduleSegment(ctx.Source(), seg.FirstFrame, seg.FrameCount, s.completionFor(sess))
	if beginPlayback {
		s.graph.Play()
	}
}

// scheduleLoopLocked handles seeks within a complete loop. The loop's
// segment is cached and reused while the bounds are unchanged; seeking
// inside a loop is a within-session operation and never discards identity.
func (s *Scheduler) scheduleLoopLocked(sess *Session, loop *Loop, t float64, beginPlayback bool) {
	s.graph.Stop()

	ctx := s.contextLocked(sess)
	if ctx == nil || !ctx.Opened() {
		log.Printf("[SCHED] no playable context for %s, nothing scheduled", sess.Path())
		return
	}

	if s.cachedLoopSegment == nil || !s.cachedLoopBounds.equalBounds(loop) {
		seg := computeSegment(ctx, loop.Start, loop.End)
		s.segmentComputations++
		s.cachedLoopSegment = &seg
		s.cachedLoopBounds = &Loop{Start: loop.Start, End: loop.End}
	}
	seg := *s.cachedLoopSegment

	t = clampToLoop(t, loop)
	first := int64(t * float64(ctx.SampleRate()))
	if first < seg.FirstFrame {
		first = seg.FirstFrame
	}
	if first > seg.LastFrame() {
		first = seg.LastFrame()
	}

	s.graph.ScheduleSegment(ctx.Source(), first, seg.LastFrame()-first, s.completionFor(sess))
	if beginPlayback {
		s.graph.Play()
	}
}

// contextLocked resolves and caches the context for the session's track,
// opening it lazily. Resolution failure is recoverable: it logs and returns
// nil so the caller schedules nothing.
func (s *Scheduler) contextLocked(sess *Session) *PlaybackContext {
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
	s.cachedLoopSegment = nil
	s.cachedLoopBounds = nil
	return ctx
}

// completionFor builds the completion handler for one scheduled segment.
// The handler runs on the graph's callback goroutine: it validates the
// session, then either publishes completion (output playing) or defers it
// (output paused).
func (s *Scheduler) completionFor(sess *Session) func() {
	return func() {
		s.mu.Lock()
		if !s.sessions.IsCurrent(sess) {
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
			cb(sess)
		}
	}
}

// Pause halts output without discarding scheduled audio.
func (s *Scheduler) Pause() {
	s.graph.Pause()
}

// Resume restarts output. If a completion arrived while paused there is
// nothing left to play: the deferred completion is published exactly once
// instead.
func (s *Scheduler) Resume() {
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

// Stop halts output, closes the context, and ends the current session.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.completedWhilePaused = false
	s.cachedLoopSegment = nil
	s.cachedLoopBounds = nil
	ctx := s.ctx
	s.ctx = nil
	s.mu.Unlock()

	s.graph.Stop()
	if ctx != nil {
		ctx.Close()
	}
	s.sessions.End()
}
