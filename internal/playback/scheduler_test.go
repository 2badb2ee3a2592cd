package playback

import (
	"sync"
	"testing"
	"time"
)

// stubSource is a seekable PCM source of silence with a fixed length.
type stubSource struct {
	rate     int
	channels int
	total    int64
}

func (s *stubSource) ReadPlanarAt(firstFrame int64, dst [][]float32) (int, error) {
	n := len(dst[0])
	if rem := s.total - firstFrame; rem < int64(n) {
		n = int(rem)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (s *stubSource) TotalFrames() int64 { return s.total }
func (s *stubSource) SampleRate() int    { return s.rate }
func (s *stubSource) Channels() int      { return s.channels }

type scheduledSegment struct {
	src    SegmentSource
	first  int64
	count  int64
	onDone func()
}

// mockGraph records everything scheduled on it. With autoDone set, enqueued
// chunks report consumption immediately.
type mockGraph struct {
	mu        sync.Mutex
	playing   bool
	stops     int
	segments  []scheduledSegment
	chunks    []*PCMBuffer
	chunkDone []func()
	consumed  int
	autoDone  bool
}

func (g *mockGraph) ScheduleSegment(src SegmentSource, firstFrame, frameCount int64, onDone func()) {
	g.mu.Lock()
	g.segments = append(g.segments, scheduledSegment{src, firstFrame, frameCount, onDone})
	g.mu.Unlock()
}

func (g *mockGraph) EnqueueBuffer(buf *PCMBuffer, onDone func()) {
	g.mu.Lock()
	g.chunks = append(g.chunks, buf)
	g.chunkDone = append(g.chunkDone, onDone)
	auto := g.autoDone
	g.mu.Unlock()

	if auto && onDone != nil {
		onDone()
	}
}

func (g *mockGraph) Play() {
	g.mu.Lock()
	g.playing = true
	g.mu.Unlock()
}

func (g *mockGraph) Pause() {
	g.mu.Lock()
	g.playing = false
	g.mu.Unlock()
}

func (g *mockGraph) Stop() {
	g.mu.Lock()
	g.playing = false
	g.stops++
	g.mu.Unlock()
}

func (g *mockGraph) IsPlaying() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playing
}

func (g *mockGraph) segmentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.segments)
}

func (g *mockGraph) lastSegment(t *testing.T) scheduledSegment {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.segments) == 0 {
		t.Fatal("No segment scheduled")
	}
	return g.segments[len(g.segments)-1]
}

func (g *mockGraph) chunkCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.chunks)
}

// consumeChunk fires the completion of the oldest unconsumed chunk, playing
// the role of the device rendering it. Reports whether one was available.
func (g *mockGraph) consumeChunk() bool {
	g.mu.Lock()
	if g.consumed >= len(g.chunkDone) {
		g.mu.Unlock()
		return false
	}
	cb := g.chunkDone[g.consumed]
	g.consumed++
	g.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}

func (g *mockGraph) totalChunkFrames() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, c := range g.chunks {
		total += c.Frames
	}
	return total
}

func newTestScheduler(total int64, rate int) (*Scheduler, *mockGraph, *SessionRegistry, chan *Session) {
	graph := &mockGraph{}
	registry := NewSessionRegistry()
	completions := make(chan *Session, 8)

	resolve := func(path string) (*PlaybackContext, error) {
		src := &stubSource{rate: rate, channels: 2, total: total}
		return NewSegmentContext(path, src, nil), nil
	}
	sched := NewScheduler(graph, registry, resolve, func(sess *Session) {
		completions <- sess
	})
	return sched, graph, registry, completions
}

func expectNoCompletion(t *testing.T, completions chan *Session) {
	t.Helper()
	select {
	case sess := <-completions:
		t.Fatalf("Unexpected completion for session %d", sess.ID())
	case <-time.After(50 * time.Millisecond):
	}
}

func expectCompletion(t *testing.T, completions chan *Session) *Session {
	t.Helper()
	select {
	case sess := <-completions:
		return sess
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for completion")
		return nil
	}
}

func TestPlayTrackSchedulesFullTrack(t *testing.T) {
	sched, graph, registry, _ := newTestScheduler(1_000_000, 44100)
	sess := registry.Begin("/music/track.flac")

	sched.PlayTrack(sess, 0)

	seg := graph.lastSegment(t)
	if seg.first != 0 {
		t.Errorf("Expected first frame 0, got %d", seg.first)
	}
	if seg.count != 1_000_000 {
		t.Errorf("Expected frame count 1000000, got %d", seg.count)
	}
	if !graph.IsPlaying() {
		t.Error("Expected output to be playing after PlayTrack")
	}
}

func TestSeekConvertsTimeToSampleOffset(t *testing.T) {
	sched, graph, registry, _ := newTestScheduler(1_000_000, 44100)
	sess := registry.Begin("/music/track.flac")

	sched.SeekToTime(sess, 10.0, true)

	seg := graph.lastSegment(t)
	if seg.first != 441_000 {
		t.Errorf("Expected first frame 441000, got %d", seg.first)
	}
	if seg.count != 1_000_000-441_000 {
		t.Errorf("Expected frame count %d, got %d", 1_000_000-441_000, seg.count)
	}
}

func TestSeekNegativeTimeClampsToZero(t *testing.T) {
	sched, graph, registry, _ := newTestScheduler(1000, 44100)
	sess := registry.Begin("/music/track.flac")

	sched.SeekToTime(sess, -5.0, true)

	seg := graph.lastSegment(t)
	if seg.first != 0 {
		t.Errorf("Expected first frame 0 for negative seek, got %d", seg.first)
	}
}

func TestSeekPastEndSchedulesEmptySegment(t *testing.T) {
	sched, graph, registry, _ := newTestScheduler(44100, 44100) // 1s track
	sess := registry.Begin("/music/track.flac")

	sched.SeekToTime(sess, 100.0, true)

	seg := graph.lastSegment(t)
	if seg.first != 44100 {
		t.Errorf("Expected first frame clamped to 44100, got %d", seg.first)
	}
	if seg.count != 0 {
		t.Errorf("Expected zero frame count past end, got %d", seg.count)
	}
}

func TestUnresolvableTrackSchedulesNothing(t *testing.T) {
	graph := &mockGraph{}
	registry := NewSessionRegistry()
	sched := NewScheduler(graph, registry, func(path string) (*PlaybackContext, error) {
		return nil, nil
	}, nil)

	sess := registry.Begin("/music/missing.flac")
	sched.PlayTrack(sess, 0)

	if graph.segmentCount() != 0 {
		t.Errorf("Expected no segments for unresolvable track, got %d", graph.segmentCount())
	}
	if graph.IsPlaying() {
		t.Error("Output should not be playing when nothing was scheduled")
	}
}

func TestContextResolvedOnceAcrossSeeks(t *testing.T) {
	graph := &mockGraph{}
	registry := NewSessionRegistry()
	resolves := 0
	sched := NewScheduler(graph, registry, func(path string) (*PlaybackContext, error) {
		resolves++
		src := &stubSource{rate: 44100, channels: 2, total: 1_000_000}
		return NewSegmentContext(path, src, nil), nil
	}, nil)

	sess := registry.Begin("/music/track.flac")
	sched.PlayTrack(sess, 0)
	sched.SeekToTime(sess, 5.0, true)
	sched.SeekToTime(sess, 2.0, true)

	if resolves != 1 {
		t.Errorf("Expected 1 resolve for repeated seeks of the same track, got %d", resolves)
	}
}

func TestStaleCompletionIgnored(t *testing.T) {
	sched, graph, registry, completions := newTestScheduler(1000, 44100)
	sess := registry.Begin("/music/first.flac")
	sched.PlayTrack(sess, 0)
	seg := graph.lastSegment(t)

	// A newer session supersedes the one the callback was created for.
	registry.Begin("/music/second.flac")
	seg.onDone()

	expectNoCompletion(t, completions)
}

func TestCompletionPublishedWhilePlaying(t *testing.T) {
	sched, graph, registry, completions := newTestScheduler(1000, 44100)
	sess := registry.Begin("/music/track.flac")
	sched.PlayTrack(sess, 0)

	graph.lastSegment(t).onDone()

	done := expectCompletion(t, completions)
	if done.ID() != sess.ID() {
		t.Errorf("Completion for session %d, expected %d", done.ID(), sess.ID())
	}
}

func TestCompletionDeferredWhilePaused(t *testing.T) {
	sched, graph, registry, completions := newTestScheduler(1000, 44100)
	sess := registry.Begin("/music/track.flac")
	sched.PlayTrack(sess, 0)

	sched.Pause()
	graph.lastSegment(t).onDone()
	expectNoCompletion(t, completions)

	// Resume publishes the deferred completion exactly once.
	sched.Resume()
	done := expectCompletion(t, completions)
	if done.ID() != sess.ID() {
		t.Errorf("Completion for session %d, expected %d", done.ID(), sess.ID())
	}

	sched.Resume()
	expectNoCompletion(t, completions)
}

func TestDeferredCompletionSurvivesRepeatedPause(t *testing.T) {
	sched, graph, registry, completions := newTestScheduler(1000, 44100)
	sess := registry.Begin("/music/track.flac")
	sched.PlayTrack(sess, 0)

	sched.Pause()
	graph.lastSegment(t).onDone()
	sched.Resume()
	expectCompletion(t, completions)

	// A second cycle on a fresh schedule defers and publishes independently.
	sched.PlayTrack(sess, 0)
	sched.Pause()
	graph.lastSegment(t).onDone()
	expectNoCompletion(t, completions)
	sched.Resume()
	expectCompletion(t, completions)
}

func TestStopDropsPendingCompletion(t *testing.T) {
	sched, graph, registry, completions := newTestScheduler(1000, 44100)
	sess := registry.Begin("/music/track.flac")
	sched.PlayTrack(sess, 0)
	seg := graph.lastSegment(t)

	sched.Stop()
	if registry.Current() != nil {
		t.Error("Expected no current session after Stop")
	}

	seg.onDone()
	expectNoCompletion(t, completions)
}

func TestLoopSegmentCachedAcrossSeeks(t *testing.T) {
	sched, graph, registry, _ := newTestScheduler(1_000_000, 44100)
	sess := registry.Begin("/music/track.flac")

	end := 20.0
	sess.SetLoop(&Loop{Start: 10.0, End: &end})

	sched.SeekToTime(sess, 12.0, true)
	sched.SeekToTime(sess, 15.0, true)
	sched.SeekToTime(sess, 11.5, true)

	sched.mu.Lock()
	computations := sched.segmentComputations
	sched.mu.Unlock()
	if computations != 1 {
		t.Errorf("Expected 1 segment computation for unchanged loop bounds, got %d", computations)
	}

	seg := graph.lastSegment(t)
	wantFirst := int64(11.5 * 44100)
	if seg.first != wantFirst {
		t.Errorf("Expected first frame %d, got %d", wantFirst, seg.first)
	}
	wantLast := int64(20.0 * 44100)
	if seg.first+seg.count != wantLast {
		t.Errorf("Expected segment to end at %d, got %d", wantLast, seg.first+seg.count)
	}
}

func TestLoopBoundsChangeRecomputesSegment(t *testing.T) {
	sched, _, registry, _ := newTestScheduler(1_000_000, 44100)
	sess := registry.Begin("/music/track.flac")

	end := 20.0
	sess.SetLoop(&Loop{Start: 10.0, End: &end})
	sched.SeekToTime(sess, 12.0, true)

	end2 := 21.0
	sess.SetLoop(&Loop{Start: 10.0, End: &end2})
	sched.SeekToTime(sess, 12.0, true)

	sched.mu.Lock()
	computations := sched.segmentComputations
	sched.mu.Unlock()
	if computations != 2 {
		t.Errorf("Expected 2 segment computations after bounds change, got %d", computations)
	}
}

func TestSeekClampsIntoLoop(t *testing.T) {
	sched, graph, registry, _ := newTestScheduler(1_000_000, 44100)
	sess := registry.Begin("/music/track.flac")

	end := 20.0
	sess.SetLoop(&Loop{Start: 10.0, End: &end})

	// Below the loop clamps to the loop start.
	sched.SeekToTime(sess, 3.0, true)
	seg := graph.lastSegment(t)
	if seg.first != int64(10.0*44100) {
		t.Errorf("Expected seek below loop to clamp to %d, got %d", int64(10.0*44100), seg.first)
	}

	// Above the loop clamps to the loop end.
	sched.SeekToTime(sess, 25.0, true)
	seg = graph.lastSegment(t)
	if seg.first != int64(20.0*44100) {
		t.Errorf("Expected seek above loop to clamp to %d, got %d", int64(20.0*44100), seg.first)
	}
	if seg.count != 0 {
		t.Errorf("Expected empty segment at loop end, got count %d", seg.count)
	}
}

func TestIncompleteLoopBehavesAsPlainSeek(t *testing.T) {
	sched, graph, registry, _ := newTestScheduler(1_000_000, 44100)
	sess := registry.Begin("/music/track.flac")

	sess.SetLoop(&Loop{Start: 10.0})
	sched.SeekToTime(sess, 3.0, true)

	// Incomplete loop does not clamp; it plays open-ended from the seek.
	seg := graph.lastSegment(t)
	if seg.first != int64(3.0*44100) {
		t.Errorf("Expected first frame %d, got %d", int64(3.0*44100), seg.first)
	}
	if seg.first+seg.count != 1_000_000 {
		t.Errorf("Expected open-ended segment to end at track end, got %d", seg.first+seg.count)
	}
}

func TestSeekWithinLoopPreservesSessionIdentity(t *testing.T) {
	sched, _, registry, _ := newTestScheduler(1_000_000, 44100)
	sess := registry.Begin("/music/track.flac")

	end := 20.0
	sess.SetLoop(&Loop{Start: 10.0, End: &end})
	sched.SeekToTime(sess, 12.0, true)
	sched.SeekToTime(sess, 18.0, true)

	if !registry.IsCurrent(sess) {
		t.Error("Seeking within a loop must not supersede the session")
	}
	if got := registry.Current(); got == nil || got.ID() != sess.ID() {
		t.Error("Current session changed across loop seeks")
	}
}
