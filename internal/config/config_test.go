package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Errorf("Load should write a default config file: %v", err)
	}

	cfg := m.Get()
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("Expected default sample rate 44100, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.ChunkFrames != 4096 {
		t.Errorf("Expected default chunk frames 4096, got %d", cfg.Audio.ChunkFrames)
	}
	if cfg.Audio.DefaultVolume != 1.0 {
		t.Errorf("Expected default volume 1.0, got %v", cfg.Audio.DefaultVolume)
	}
	if cfg.Behavior.ResumeOnStart {
		t.Error("ResumeOnStart should default to false")
	}
	if !cfg.Behavior.RememberQueue {
		t.Error("RememberQueue should default to true")
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	cfg.Audio.SampleRate = 48000
	cfg.Audio.DefaultVolume = 0.5
	cfg.Behavior.ResumeOnStart = true
	if err := m.Update(cfg); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := NewManager(dir)
	if err := fresh.Load(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	got := fresh.Get()
	if got.Audio.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000 after reload, got %d", got.Audio.SampleRate)
	}
	if got.Audio.DefaultVolume != 0.5 {
		t.Errorf("Expected volume 0.5 after reload, got %v", got.Audio.DefaultVolume)
	}
	if !got.Behavior.ResumeOnStart {
		t.Error("ResumeOnStart should survive reload")
	}
}

func TestLoadMergesPartialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"audio": {"sampleRate": 96000}}`), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	m := NewManager(dir)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Audio.SampleRate != 96000 {
		t.Errorf("Expected sample rate 96000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.ChunkFrames != 4096 {
		t.Errorf("Unset fields should keep defaults, got chunk frames %d", cfg.Audio.ChunkFrames)
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	m := NewManager(dir)
	if err := m.Load(); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestGetPath(t *testing.T) {
	m := NewManager("/tmp/gaplessd-test")
	if m.GetPath() != "/tmp/gaplessd-test/config.json" {
		t.Errorf("Unexpected config path: %s", m.GetPath())
	}
}
