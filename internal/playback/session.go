// Package playback implements the gapless, sample-accurate playback core:
// playback sessions, segment scheduling against an output graph, and the
// frame pipeline used for software-decoded tracks.
package playback

import "sync"

// Loop is a user-defined A/B repeat region within a track. End is nil while
// only the A point has been set; an incomplete loop behaves like an
// open-ended seek to Start.
type Loop struct {
	Start float64
	End   *float64
}

// Complete reports whether both loop bounds are set.
func (l *Loop) Complete() bool {
	return l != nil && l.End != nil
}

// equalBounds reports whether two loops describe the same region.
func (l *Loop) equalBounds(other *Loop) bool {
	if l == nil || other == nil {
		return l == other
	}
	if l.Start != other.Start {
		return false
	}
	if (l.End == nil) != (other.End == nil) {
		return false
	}
	return l.End == nil || *l.End == *other.End
}

// Session identifies one logical attempt to play a track. A session becomes
// stale the instant a newer one is begun; asynchronous callbacks carry the
// session they were created for and are checked against the registry before
// taking effect.
type Session struct {
	id   uint64
	path string

	mu   sync.Mutex
	loop *Loop
}

// ID returns the session's identity token.
func (s *Session) ID() uint64 { return s.id }

// Path returns the track path this session plays.
func (s *Session) Path() string { return s.path }

// Loop returns the currently attached loop, or nil.
func (s *Session) Loop() *Loop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// SetLoop attaches a loop to the session in place. Identity is unchanged.
func (s *Session) SetLoop(l *Loop) {
	s.mu.Lock()
	s.loop = l
	s.mu.Unlock()
}

// ClearLoop detaches the session's loop. Identity is unchanged.
func (s *Session) ClearLoop() {
	s.SetLoop(nil)
}

// SessionRegistry owns the single "current session" slot. All staleness
// comparisons go through this registry; both the control goroutine and the
// output graph's callback goroutine touch it, so every access is guarded.
type SessionRegistry struct {
	mu      sync.Mutex
	nextID  uint64
	current *Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

// Begin creates a new current session for the given track, superseding any
// previous one.
func (r *SessionRegistry) Begin(path string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.current = &Session{id: r.nextID, path: path}
	return r.current
}

// Current returns the current session, or nil when stopped.
func (r *SessionRegistry) Current() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// IsCurrent reports whether s is still the current session.
func (r *SessionRegistry) IsCurrent(s *Session) bool {
	if s == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil && r.current.id == s.id
}

// End clears the current session. Callbacks tagged with the old identity are
// ignored from this point on.
func (r *SessionRegistry) End() {
	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
}
