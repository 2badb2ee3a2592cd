// Package audio handles decoding and playback: a native in-process decode
// path for common containers and an FFmpeg pipe for everything else, both
// scheduled sample-accurately onto an Oto output device.
package audio

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gapless-audio/gaplessd/internal/media"
	"github.com/gapless-audio/gaplessd/internal/playback"
)

// FindAlbumArt looks for album art in the track's directory or parent
// directory, checking common art filenames.
func FindAlbumArt(trackPath string) string {
	if trackPath == "" {
		return ""
	}

	dir := filepath.Dir(trackPath)

	artFilenames := []string{
		"folder.jpg", "folder.png",
		"cover.jpg", "cover.png",
		"album.jpg", "album.png",
		"front.jpg", "front.png",
		"Folder.jpg", "Folder.png",
		"Cover.jpg", "Cover.png",
	}

	for _, name := range artFilenames {
		artPath := filepath.Join(dir, name)
		if _, err := os.Stat(artPath); err == nil {
			return artPath
		}
	}

	// Artist folder one level up
	parentDir := filepath.Dir(dir)
	for _, name := range []string{"folder.jpg", "folder.png", "Folder.jpg", "Folder.png"} {
		artPath := filepath.Join(parentDir, name)
		if _, err := os.Stat(artPath); err == nil {
			return artPath
		}
	}

	return ""
}

// PlaybackState represents the current state of the player
type PlaybackState string

const (
	StateStopped PlaybackState = "stopped"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// TrackMetadata contains metadata to display in OS media sessions
type TrackMetadata struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Duration int64  `json:"duration,omitempty"` // milliseconds
	ArtPath  string `json:"artPath,omitempty"`
}

// Status represents the current playback status
type Status struct {
	State     PlaybackState  `json:"state"`
	Path      string         `json:"path,omitempty"`
	Position  int64          `json:"position"` // milliseconds
	Duration  int64          `json:"duration"` // milliseconds
	Volume    float64        `json:"volume"`   // 0.0 - 1.0
	LoopStart *float64       `json:"loopStart,omitempty"`
	LoopEnd   *float64       `json:"loopEnd,omitempty"`
	Metadata  *TrackMetadata `json:"metadata,omitempty"`
}

// TrackEndCallback is called when a track finishes playing naturally
type TrackEndCallback func(path string)

// QueueCallback is called for next/previous track requests (from OS media controls)
type QueueCallback func()

// LoopCallback is called when loop/repeat mode changes from OS media controls
type LoopCallback func(status media.LoopStatus)

// trackScheduler is the contract both scheduling paths expose to the player.
type trackScheduler interface {
	PlayTrack(sess *playback.Session, startTime float64)
	SeekToTime(sess *playback.Session, t float64, beginPlayback bool)
	Pause()
	Resume()
	Stop()
}

// Player orchestrates playback: it owns the session registry, routes each
// track to the native or software scheduling path, and tracks position and
// state for the IPC and OS media surfaces.
type Player struct {
	mu           sync.RWMutex
	state        PlaybackState
	duration     time.Duration
	volume       float64
	metadata     *TrackMetadata
	mediaSession media.Session

	registry *playback.SessionRegistry
	native   *playback.Scheduler
	soft     *playback.BufferScheduler
	sched    trackScheduler // path driving the current track
	sess     *playback.Session

	device *Device
	prober *Prober

	// Position is wall-clock derived: posBase is the position at the last
	// state change, playStart the instant playback (re)started.
	posBase   time.Duration
	playStart time.Time

	onTrackEnd TrackEndCallback
	onNext     QueueCallback
	onPrevious QueueCallback
	onLoop     LoopCallback

	closed chan struct{}
}

// NewPlayer creates a player bound to the default output device.
func NewPlayer(mediaSession media.Session) (*Player, error) {
	device, err := NewDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to create audio output: %w", err)
	}

	prober, err := NewProber()
	if err != nil {
		device.Close()
		return nil, fmt.Errorf("failed to create prober: %w", err)
	}

	p := &Player{
		state:        StateStopped,
		volume:       1.0,
		mediaSession: mediaSession,
		registry:     playback.NewSessionRegistry(),
		device:       device,
		prober:       prober,
		closed:       make(chan struct{}),
	}
	p.native = playback.NewScheduler(device, p.registry, p.resolveNative, p.handleSegmentComplete)
	p.soft = playback.NewBufferScheduler(device, p.registry, p.resolveSoftware, p.handleSegmentComplete, playback.DefaultChunkFrames)

	go p.syncMediaPosition()

	return p, nil
}

func (p *Player) resolveNative(path string) (*playback.PlaybackContext, error) {
	return NewNativeContext(path)
}

func (p *Player) resolveSoftware(path string) (*playback.PlaybackContext, error) {
	dec, err := NewFFmpegDecoder(p.device.SampleRate(), p.device.Channels())
	if err != nil {
		return nil, err
	}
	return playback.NewDecoderContext(path, dec), nil
}

// syncMediaPosition keeps the OS media session's position in sync while
// playing.
func (p *Player) syncMediaPosition() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.closed:
			return
		case <-ticker.C:
			p.mu.RLock()
			playing := p.state == StatePlaying
			pos := p.positionLocked()
			session := p.mediaSession
			p.mu.RUnlock()

			if playing && session != nil {
				session.UpdatePlaybackState(media.StatePlaying, pos)
			}
		}
	}
}

// positionLocked returns the current position. Callers hold p.mu.
func (p *Player) positionLocked() time.Duration {
	pos := p.posBase
	if p.state == StatePlaying {
		pos += time.Since(p.playStart)
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	return pos
}

// handleSegmentComplete runs when a scheduled segment has been fully
// rendered for a still-current session. A complete A/B loop repeats; an
// unlooped track ends.
func (p *Player) handleSegmentComplete(sess *playback.Session) {
	if loop := sess.Loop(); loop.Complete() {
		p.mu.Lock()
		if !p.registry.IsCurrent(sess) || p.sched == nil {
			p.mu.Unlock()
			return
		}
		sched := p.sched
		playing := p.state == StatePlaying
		p.posBase = time.Duration(loop.Start * float64(time.Second))
		p.playStart = time.Now()
		p.mu.Unlock()

		sched.SeekToTime(sess, loop.Start, playing)
		return
	}

	p.mu.Lock()
	if !p.registry.IsCurrent(sess) {
		p.mu.Unlock()
		return
	}
	path := sess.Path()
	callback := p.onTrackEnd
	sched := p.sched

	p.state = StateStopped
	p.sched = nil
	p.sess = nil
	p.posBase = 0
	p.metadata = nil
	session := p.mediaSession
	p.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	if session != nil {
		session.UpdatePlaybackState(media.StateStopped, 0)
	}

	log.Printf("[PLAYER] Track ended naturally: %s", path)
	if callback != nil {
		callback(path)
	}
}

// SetOnTrackEnd sets a callback to be called when a track finishes playing naturally
func (p *Player) SetOnTrackEnd(callback TrackEndCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrackEnd = callback
}

// SetOnNext sets a callback for next track requests (from OS media controls)
func (p *Player) SetOnNext(callback QueueCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNext = callback
}

// SetOnPrevious sets a callback for previous track requests (from OS media controls)
func (p *Player) SetOnPrevious(callback QueueCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPrevious = callback
}

// SetOnLoop sets a callback for loop/repeat mode changes (from OS media controls)
func (p *Player) SetOnLoop(callback LoopCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLoop = callback
}

// Play starts playback of the specified file from the beginning.
func (p *Player) Play(path string, metadata *TrackMetadata) error {
	return p.PlayFrom(path, metadata, 0)
}

// PlayFrom starts playback of the specified file from a position in
// milliseconds. The previous track's scheduling is torn down first; the new
// session supersedes any callbacks still in flight from the old one.
func (p *Player) PlayFrom(path string, metadata *TrackMetadata, startMs int64) error {
	p.mu.Lock()
	old := p.sched
	p.sched = nil
	p.sess = nil
	p.mu.Unlock()

	if old != nil {
		old.Stop()
	}

	var duration time.Duration
	if metadata != nil && metadata.Duration > 0 {
		duration = time.Duration(metadata.Duration) * time.Millisecond
	} else {
		var err error
		duration, err = p.prober.Duration(path)
		if err != nil {
			return fmt.Errorf("failed to get duration: %w", err)
		}
	}

	sess := p.registry.Begin(path)

	var sched trackScheduler
	if CanDecodeNatively(path) {
		sched = p.native
	} else {
		sched = p.soft
	}

	p.mu.Lock()
	p.sess = sess
	p.sched = sched
	p.state = StatePlaying
	p.duration = duration
	p.metadata = metadata
	p.posBase = time.Duration(startMs) * time.Millisecond
	p.playStart = time.Now()
	session := p.mediaSession
	p.mu.Unlock()

	// Fill in missing metadata asynchronously; results only apply while
	// this session is still current.
	if metadata == nil || (metadata.Title == "" && metadata.Artist == "") {
		go p.extractMetadata(sess)
	}

	if session != nil {
		artPath := ""
		var title, artist, album string
		if metadata != nil {
			title, artist, album = metadata.Title, metadata.Artist, metadata.Album
			artPath = metadata.ArtPath
		}
		if artPath == "" {
			artPath = FindAlbumArt(path)
		}
		session.UpdateMetadata(media.Metadata{
			Title:    title,
			Artist:   artist,
			Album:    album,
			Duration: duration,
			ArtPath:  artPath,
		})
		session.UpdatePlaybackState(media.StatePlaying, time.Duration(startMs)*time.Millisecond)
	}

	log.Printf("[PLAYER] Starting playback (session %d): %s", sess.ID(), path)
	sched.PlayTrack(sess, float64(startMs)/1000.0)

	return nil
}

// extractMetadata probes tags and album art for the session's track and
// applies them if the session is still current.
func (p *Player) extractMetadata(sess *playback.Session) {
	fileMeta, err := p.prober.Metadata(sess.Path())
	if err != nil {
		log.Printf("[PLAYER] Failed to extract metadata: %v", err)
		return
	}
	log.Printf("[PLAYER] Extracted metadata: %s - %s (%s)", fileMeta.Artist, fileMeta.Title, fileMeta.Album)

	artPath := FindAlbumArt(sess.Path())

	p.mu.Lock()
	if !p.registry.IsCurrent(sess) {
		p.mu.Unlock()
		return
	}
	p.metadata = &TrackMetadata{
		Title:    fileMeta.Title,
		Artist:   fileMeta.Artist,
		Album:    fileMeta.Album,
		Duration: fileMeta.Duration.Milliseconds(),
		ArtPath:  artPath,
	}
	session := p.mediaSession
	p.mu.Unlock()

	if session != nil {
		session.UpdateMetadata(media.Metadata{
			Title:    fileMeta.Title,
			Artist:   fileMeta.Artist,
			Album:    fileMeta.Album,
			Duration: fileMeta.Duration,
			ArtPath:  artPath,
		})
	}
}

// Pause pauses playback (idempotent - no error if already paused or stopped)
func (p *Player) Pause() error {
	p.mu.Lock()
	if p.state != StatePlaying {
		p.mu.Unlock()
		return nil
	}

	p.posBase = p.positionLocked()
	p.state = StatePaused
	sched := p.sched
	pos := p.posBase
	session := p.mediaSession
	p.mu.Unlock()

	if sched != nil {
		sched.Pause()
	}
	if session != nil {
		session.UpdatePlaybackState(media.StatePaused, pos)
	}

	log.Printf("[PLAYER] Paused at position %dms", pos.Milliseconds())
	return nil
}

// Resume resumes playback (idempotent - no error if already playing or
// stopped). If the track completed while paused, resuming publishes that
// completion instead of restarting output.
func (p *Player) Resume() error {
	p.mu.Lock()
	if p.state != StatePaused {
		p.mu.Unlock()
		return nil
	}

	p.state = StatePlaying
	p.playStart = time.Now()
	sched := p.sched
	pos := p.posBase
	session := p.mediaSession
	p.mu.Unlock()

	if sched != nil {
		sched.Resume()
	}
	if session != nil {
		session.UpdatePlaybackState(media.StatePlaying, pos)
	}

	log.Printf("[PLAYER] Resumed at position %dms", pos.Milliseconds())
	return nil
}

// Stop stops playback
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return nil
	}

	p.state = StateStopped
	p.posBase = 0
	p.metadata = nil
	sched := p.sched
	p.sched = nil
	p.sess = nil
	session := p.mediaSession
	p.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	if session != nil {
		session.UpdatePlaybackState(media.StateStopped, 0)
	}

	log.Printf("[PLAYER] Stopped playback")
	return nil
}

// Seek seeks to the specified position in milliseconds. Within a complete
// loop the position clamps into the loop bounds and the session identity is
// preserved; otherwise scheduling restarts from the new position under the
// same identity.
func (p *Player) Seek(positionMs int64) error {
	p.mu.Lock()
	if p.state == StateStopped || p.sess == nil {
		p.mu.Unlock()
		return errors.New("not playing")
	}

	if positionMs < 0 {
		positionMs = 0
	}
	if max := p.duration.Milliseconds(); positionMs > max {
		positionMs = max
	}
	t := float64(positionMs) / 1000.0

	sess := p.sess
	sched := p.sched
	playing := p.state == StatePlaying

	if loop := sess.Loop(); loop.Complete() {
		if t < loop.Start {
			t = loop.Start
		}
		if t > *loop.End {
			t = *loop.End
		}
	}

	p.posBase = time.Duration(t * float64(time.Second))
	p.playStart = time.Now()
	pos := p.posBase
	session := p.mediaSession
	p.mu.Unlock()

	log.Printf("[PLAYER] Seeking to %dms in %s", pos.Milliseconds(), sess.Path())
	sched.SeekToTime(sess, t, playing)

	if session != nil {
		state := media.StatePaused
		if playing {
			state = media.StatePlaying
		}
		session.UpdatePlaybackState(state, pos)
	}
	return nil
}

// SetLoopPoint attaches an A/B loop to the current session. end nil sets an
// incomplete loop (A point only); a complete loop reschedules immediately,
// clamping the current position into the loop.
func (p *Player) SetLoopPoint(start float64, end *float64) error {
	start = playback.SanitizeTime(start, 0)
	if end != nil && *end <= start {
		return errors.New("loop end must be after loop start")
	}

	p.mu.Lock()
	if p.sess == nil {
		p.mu.Unlock()
		return errors.New("not playing")
	}
	sess := p.sess
	sched := p.sched
	playing := p.state == StatePlaying
	t := p.positionLocked().Seconds()
	p.mu.Unlock()

	loop := &playback.Loop{Start: start, End: end}
	sess.SetLoop(loop)

	if !loop.Complete() {
		log.Printf("[PLAYER] Loop A point set at %.3fs", start)
		return nil
	}

	log.Printf("[PLAYER] Loop set [%.3fs, %.3fs)", start, *end)

	if t < start {
		t = start
	}
	if t > *end {
		t = *end
	}
	p.mu.Lock()
	p.posBase = time.Duration(t * float64(time.Second))
	p.playStart = time.Now()
	session := p.mediaSession
	p.mu.Unlock()

	sched.SeekToTime(sess, t, playing)

	if session != nil {
		session.UpdateLoopStatus(media.LoopTrack)
	}
	return nil
}

// ClearLoop detaches the current session's loop. Playback continues; the
// next segment completion publishes track end normally.
func (p *Player) ClearLoop() error {
	p.mu.RLock()
	sess := p.sess
	session := p.mediaSession
	p.mu.RUnlock()

	if sess == nil {
		return errors.New("not playing")
	}
	sess.ClearLoop()
	log.Printf("[PLAYER] Loop cleared")

	if session != nil {
		session.UpdateLoopStatus(media.LoopNone)
	}
	return nil
}

// Chapters returns the chapter markers of path, or of the current track
// when path is empty.
func (p *Player) Chapters(path string) ([]playback.Chapter, error) {
	if path == "" {
		p.mu.RLock()
		if p.sess != nil {
			path = p.sess.Path()
		}
		p.mu.RUnlock()
	}
	if path == "" {
		return nil, errors.New("no track")
	}
	return p.prober.Chapters(path)
}

// SetVolume sets the playback volume (0.0 - 1.0)
func (p *Player) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return errors.New("volume must be between 0.0 and 1.0")
	}

	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()

	p.device.SetVolume(volume)
	return nil
}

// Status returns the current playback status
func (p *Player) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{
		State:    p.state,
		Position: p.positionLocked().Milliseconds(),
		Duration: p.duration.Milliseconds(),
		Volume:   p.volume,
		Metadata: p.metadata,
	}
	if p.sess != nil {
		s.Path = p.sess.Path()
		if loop := p.sess.Loop(); loop != nil {
			start := loop.Start
			s.LoopStart = &start
			s.LoopEnd = loop.End
		}
	}
	return s
}

// GetAudioBands returns current frequency bands for visualization
func (p *Player) GetAudioBands() []uint8 {
	return p.device.GetAudioBands()
}

// SetAudioCallback registers a callback for real-time audio data push
func (p *Player) SetAudioCallback(cb AudioDataCallback) {
	p.device.SetAudioCallback(cb)
}

// UpdateLoopStatus updates the loop/repeat mode in the OS media session
func (p *Player) UpdateLoopStatus(status media.LoopStatus) error {
	p.mu.RLock()
	session := p.mediaSession
	p.mu.RUnlock()

	if session != nil {
		return session.UpdateLoopStatus(status)
	}
	return nil
}

// Close releases all resources
func (p *Player) Close() error {
	p.Stop()
	close(p.closed)
	return p.device.Close()
}

// OnCommand implements media.CommandHandler for MPRIS/OS media control integration
func (p *Player) OnCommand(cmd media.Command, data interface{}) error {
	if cmd != media.CmdSeek {
		log.Printf("[PLAYER] Received OS media command: %s", cmd)
	}

	switch cmd {
	case media.CmdPlay:
		return p.Resume()

	case media.CmdPause:
		return p.Pause()

	case media.CmdPlayPause:
		p.mu.RLock()
		state := p.state
		p.mu.RUnlock()
		if state == StatePlaying {
			return p.Pause()
		} else if state == StatePaused {
			return p.Resume()
		}
		return nil

	case media.CmdStop:
		return p.Stop()

	case media.CmdNext:
		p.mu.RLock()
		callback := p.onNext
		p.mu.RUnlock()
		if callback != nil {
			callback()
		}
		return nil

	case media.CmdPrevious:
		p.mu.RLock()
		callback := p.onPrevious
		p.mu.RUnlock()
		if callback != nil {
			callback()
		}
		return nil

	case media.CmdSeek:
		if pos, ok := data.(time.Duration); ok {
			return p.Seek(pos.Milliseconds())
		}
		return nil

	case media.CmdSetLoopStatus:
		if status, ok := data.(media.LoopStatus); ok {
			log.Printf("[PLAYER] Loop status changed from OS: %s", status)
			p.mu.RLock()
			callback := p.onLoop
			p.mu.RUnlock()
			if callback != nil {
				callback(status)
			}
		}
		return nil
	}

	return nil
}
