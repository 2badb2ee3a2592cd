package audio

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gapless-audio/gaplessd/internal/playback"
)

// FileMetadata contains metadata extracted from an audio file.
type FileMetadata struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// Prober extracts stream information from audio files using ffprobe.
type Prober struct {
	ffprobePath string
}

// NewProber locates ffprobe in PATH.
func NewProber() (*Prober, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	return &Prober{ffprobePath: ffprobePath}, nil
}

// Duration returns the duration of an audio file.
func (p *Prober) Duration(path string) (time.Duration, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.Command(p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	durationSec, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return time.Duration(durationSec * float64(time.Second)), nil
}

// Metadata extracts tag metadata from an audio file.
func (p *Prober) Metadata(path string) (*FileMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}

	cmd := exec.Command(p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probeResult struct {
		Format struct {
			Duration string            `json:"duration"`
			Tags     map[string]string `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probeResult); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := &FileMetadata{}

	for key, value := range probeResult.Format.Tags {
		switch strings.ToLower(key) {
		case "title":
			meta.Title = value
		case "artist":
			meta.Artist = value
		case "album":
			meta.Album = value
		case "album_artist":
			if meta.Artist == "" {
				meta.Artist = value
			}
		}
	}

	if probeResult.Format.Duration != "" {
		if durationSec, err := strconv.ParseFloat(probeResult.Format.Duration, 64); err == nil {
			meta.Duration = time.Duration(durationSec * float64(time.Second))
		}
	}

	// Fallback to filename if no title
	if meta.Title == "" {
		base := filepath.Base(path)
		meta.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return meta, nil
}

// Chapters returns the file's chapter markers with sanitized bounds: a
// missing or invalid start clamps to 0, a missing or invalid end clamps to
// the track duration.
func (p *Prober) Chapters(path string) ([]playback.Chapter, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_chapters",
		"-show_entries", "format=duration",
		path,
	}

	cmd := exec.Command(p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseChapters(output)
}

// parseChapters decodes ffprobe -show_chapters JSON output.
func parseChapters(data []byte) ([]playback.Chapter, error) {
	var probeResult struct {
		Chapters []struct {
			StartTime string            `json:"start_time"`
			EndTime   string            `json:"end_time"`
			Tags      map[string]string `json:"tags"`
		} `json:"chapters"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(data, &probeResult); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	duration, _ := strconv.ParseFloat(probeResult.Format.Duration, 64)

	chapters := make([]playback.Chapter, 0, len(probeResult.Chapters))
	for _, raw := range probeResult.Chapters {
		c := playback.Chapter{Title: raw.Tags["title"]}
		c.Start, _ = strconv.ParseFloat(raw.StartTime, 64)
		if end, err := strconv.ParseFloat(raw.EndTime, 64); err == nil {
			c.End = end
		} else {
			c.End = duration
		}
		chapters = append(chapters, playback.SanitizeChapter(c, duration))
	}
	return chapters, nil
}
