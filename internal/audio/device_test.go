package audio

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/gapless-audio/gaplessd/internal/playback"
)

// newTestDevice builds a Device around the chunk queue alone, without an
// audio backend, so Read behavior can be driven directly.
func newTestDevice() *Device {
	d := &Device{
		sampleRate: defaultSampleRate,
		channels:   defaultChannels,
		maxQueued:  1 << 20,
		volume:     1.0,
		callbacks:  make(chan func(), 64),
		done:       make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.runCallbacks()
	return d
}

func expectFired(t *testing.T, fired chan struct{}, what string) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("Completion for %s never dispatched", what)
	}
}

func TestReadDispatchesCompletionForEmptyChunk(t *testing.T) {
	d := newTestDevice()
	defer d.Close()

	fired := make(chan struct{})
	d.EnqueueBuffer(playback.NewPCMBuffer(2, 0, 44100), func() { close(fired) })

	p := make([]byte, 256)
	n, err := d.Read(p)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(p) {
		t.Errorf("Expected a full silence read, got %d of %d bytes", n, len(p))
	}
	for i, b := range p {
		if b != 0 {
			t.Errorf("Expected silence, byte %d = %d", i, b)
			break
		}
	}

	expectFired(t, fired, "empty chunk")
}

func TestReadDispatchesCompletionsInQueueOrder(t *testing.T) {
	d := newTestDevice()
	defer d.Close()

	buf := playback.NewPCMBuffer(2, 16, 44100)
	buf.Frames = 16
	dataDone := make(chan struct{})
	emptyDone := make(chan struct{})
	d.EnqueueBuffer(buf, func() { close(dataDone) })
	d.EnqueueBuffer(playback.NewPCMBuffer(2, 0, 44100), func() { close(emptyDone) })

	// Large enough to drain the data chunk and the trailing empty one.
	p := make([]byte, 256)
	if _, err := d.Read(p); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	expectFired(t, dataDone, "data chunk")
	expectFired(t, emptyDone, "trailing empty chunk")
}

func TestInterleaveS16(t *testing.T) {
	planar := [][]float32{
		{0.5, -0.5},
		{1.5, -2.0}, // out of range, must clip
	}

	data := interleaveS16(planar, 2)
	if len(data) != 8 {
		t.Fatalf("Expected 8 bytes for 2 stereo frames, got %d", len(data))
	}

	want := []int16{16383, 32767, -16383, -32767}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if got != w {
			t.Errorf("Sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestInterleaveS16Empty(t *testing.T) {
	if data := interleaveS16(nil, 0); data != nil {
		t.Errorf("Expected nil for empty input, got %d bytes", len(data))
	}
	if data := interleaveS16([][]float32{{1, 2, 3}}, 0); data != nil {
		t.Errorf("Expected nil for zero frames, got %d bytes", len(data))
	}
}

func TestApplyVolume(t *testing.T) {
	data := make([]byte, 4)
	pos := int16(1000)
	neg := int16(-2000)
	binary.LittleEndian.PutUint16(data[0:], uint16(pos))
	binary.LittleEndian.PutUint16(data[2:], uint16(neg))

	applyVolume(data, 0.5)

	if got := int16(binary.LittleEndian.Uint16(data[0:])); got != 500 {
		t.Errorf("Expected 500, got %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(data[2:])); got != -1000 {
		t.Errorf("Expected -1000, got %d", got)
	}
}

func TestCanDecodeNatively(t *testing.T) {
	native := []string{"/music/a.wav", "/music/b.MP3", "/music/c.flac"}
	for _, path := range native {
		if !CanDecodeNatively(path) {
			t.Errorf("Expected native decode for %s", path)
		}
	}

	software := []string{"/music/a.ogg", "/music/b.m4a", "/music/c.opus", "/music/noext"}
	for _, path := range software {
		if CanDecodeNatively(path) {
			t.Errorf("Expected software decode for %s", path)
		}
	}
}
