package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"github.com/gapless-audio/gaplessd/internal/playback"
)

// CanDecodeNatively reports whether the file's container can be decoded
// in-process with sample-accurate random access. Everything else goes
// through the software decoder.
func CanDecodeNatively(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".mp3", ".flac":
		return true
	default:
		return false
	}
}

// StreamSource adapts a seekable decoded stream to random-access planar
// reads. Seeks only when the requested offset differs from the stream
// position, so sequential segment feeding stays a straight decode.
type StreamSource struct {
	mu      sync.Mutex
	stream  beep.StreamSeekCloser
	format  beep.Format
	scratch [][2]float64
}

// OpenStreamSource opens path with the decoder matching its extension.
func OpenStreamSource(path string) (*StreamSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".flac":
		stream, format, err = flac.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("no native decoder for %s", path)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return &StreamSource{stream: stream, format: format}, nil
}

// NewNativeContext opens path as a native playback context.
func NewNativeContext(path string) (*playback.PlaybackContext, error) {
	src, err := OpenStreamSource(path)
	if err != nil {
		return nil, err
	}
	return playback.NewSegmentContext(path, src, src), nil
}

// ReadPlanarAt decodes up to len(dst[0]) sample frames starting at the
// absolute frame offset firstFrame. Returns io.EOF past end of stream.
func (s *StreamSource) ReadPlanarAt(firstFrame int64, dst [][]float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(dst) == 0 || len(dst[0]) == 0 {
		return 0, nil
	}
	if firstFrame >= int64(s.stream.Len()) {
		return 0, io.EOF
	}

	if int64(s.stream.Position()) != firstFrame {
		if err := s.stream.Seek(int(firstFrame)); err != nil {
			return 0, fmt.Errorf("failed to seek to frame %d: %w", firstFrame, err)
		}
	}

	want := len(dst[0])
	if cap(s.scratch) < want {
		s.scratch = make([][2]float64, want)
	}
	scratch := s.scratch[:want]

	total := 0
	for total < want {
		n, ok := s.stream.Stream(scratch[total:])
		for i := 0; i < n; i++ {
			frame := scratch[total+i]
			if len(dst) == 1 {
				dst[0][total+i] = float32((frame[0] + frame[1]) / 2)
				continue
			}
			dst[0][total+i] = float32(frame[0])
			dst[1][total+i] = float32(frame[1])
		}
		total += n
		if !ok {
			if err := s.stream.Err(); err != nil {
				return total, err
			}
			break
		}
	}

	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// TotalFrames returns the stream length in sample frames.
func (s *StreamSource) TotalFrames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.stream.Len())
}

// SampleRate returns the stream sample rate.
func (s *StreamSource) SampleRate() int {
	return int(s.format.SampleRate)
}

// Channels returns the stream channel count, capped at stereo.
func (s *StreamSource) Channels() int {
	if s.format.NumChannels == 1 {
		return 1
	}
	return 2
}

// Close releases the stream and its underlying file.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.Close()
}

var _ playback.SegmentSource = (*StreamSource)(nil)
