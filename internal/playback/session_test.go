package playback

import "testing"

func TestSessionIDsMonotonic(t *testing.T) {
	r := NewSessionRegistry()

	first := r.Begin("/music/a.flac")
	second := r.Begin("/music/b.flac")
	third := r.Begin("/music/a.flac")

	if second.ID() <= first.ID() {
		t.Errorf("Expected ID %d > %d", second.ID(), first.ID())
	}
	if third.ID() <= second.ID() {
		t.Errorf("Expected ID %d > %d", third.ID(), second.ID())
	}
}

func TestBeginSupersedesCurrent(t *testing.T) {
	r := NewSessionRegistry()

	first := r.Begin("/music/a.flac")
	if !r.IsCurrent(first) {
		t.Fatal("Fresh session should be current")
	}

	second := r.Begin("/music/b.flac")
	if r.IsCurrent(first) {
		t.Error("Superseded session should no longer be current")
	}
	if !r.IsCurrent(second) {
		t.Error("New session should be current")
	}
}

func TestSamePathNewIdentity(t *testing.T) {
	r := NewSessionRegistry()

	first := r.Begin("/music/a.flac")
	second := r.Begin("/music/a.flac")

	if first.ID() == second.ID() {
		t.Error("Replaying the same track must produce a new identity")
	}
	if r.IsCurrent(first) {
		t.Error("First attempt should be stale after replay")
	}
}

func TestEndClearsCurrent(t *testing.T) {
	r := NewSessionRegistry()

	sess := r.Begin("/music/a.flac")
	r.End()

	if r.Current() != nil {
		t.Error("Expected no current session after End")
	}
	if r.IsCurrent(sess) {
		t.Error("Ended session should not be current")
	}
}

func TestIsCurrentNil(t *testing.T) {
	r := NewSessionRegistry()
	if r.IsCurrent(nil) {
		t.Error("nil session should never be current")
	}
}

func TestLoopComplete(t *testing.T) {
	var nilLoop *Loop
	if nilLoop.Complete() {
		t.Error("nil loop should not be complete")
	}

	open := &Loop{Start: 5.0}
	if open.Complete() {
		t.Error("Loop without end should not be complete")
	}

	end := 10.0
	full := &Loop{Start: 5.0, End: &end}
	if !full.Complete() {
		t.Error("Loop with both bounds should be complete")
	}
}

func TestSetLoopPreservesIdentity(t *testing.T) {
	r := NewSessionRegistry()
	sess := r.Begin("/music/a.flac")
	id := sess.ID()

	end := 10.0
	sess.SetLoop(&Loop{Start: 5.0, End: &end})
	if sess.ID() != id || !r.IsCurrent(sess) {
		t.Error("SetLoop must not change session identity")
	}

	if loop := sess.Loop(); loop == nil || loop.Start != 5.0 {
		t.Error("Expected attached loop with start 5.0")
	}

	sess.ClearLoop()
	if sess.ID() != id || !r.IsCurrent(sess) {
		t.Error("ClearLoop must not change session identity")
	}
	if sess.Loop() != nil {
		t.Error("Expected no loop after ClearLoop")
	}
}

func TestLoopEqualBounds(t *testing.T) {
	endA := 10.0
	endB := 10.0
	endC := 12.0

	a := &Loop{Start: 5.0, End: &endA}
	b := &Loop{Start: 5.0, End: &endB}
	c := &Loop{Start: 5.0, End: &endC}
	open := &Loop{Start: 5.0}

	if !a.equalBounds(b) {
		t.Error("Loops with identical bounds should compare equal")
	}
	if a.equalBounds(c) {
		t.Error("Loops with different ends should not compare equal")
	}
	if a.equalBounds(open) {
		t.Error("Complete and open loops should not compare equal")
	}
	if !open.equalBounds(&Loop{Start: 5.0}) {
		t.Error("Open loops with the same start should compare equal")
	}
}
