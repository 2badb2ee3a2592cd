package audio

import (
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/gapless-audio/gaplessd/internal/playback"
)

// Samples per channel in one decoded frame pulled off the pipe.
const ffmpegFrameSamples = 1024

// FFmpegDecoder decodes arbitrary containers to s16le PCM through an
// ffmpeg pipe. Frames carry a synthesized PTS from the running sample
// position; ffmpeg delivers the pipe in presentation order, so RawPTS is
// already monotonic here.
type FFmpegDecoder struct {
	ffmpegPath string
	sampleRate int
	channels   int

	mu        sync.Mutex
	path      string
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	samplePos int64
	buf       []byte
}

// NewFFmpegDecoder creates a decoder producing PCM at the given stream
// format.
func NewFFmpegDecoder(sampleRate, channels int) (*FFmpegDecoder, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return &FFmpegDecoder{
		ffmpegPath: ffmpegPath,
		sampleRate: sampleRate,
		channels:   channels,
		buf:        make([]byte, ffmpegFrameSamples*channels*bytesPerSample),
	}, nil
}

// Open starts decoding path from the beginning.
func (d *FFmpegDecoder) Open(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.path = path
	return d.startLocked(0)
}

// SeekTo restarts the pipe at t seconds.
func (d *FFmpegDecoder) SeekTo(t float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.path == "" {
		return fmt.Errorf("decoder not open")
	}
	d.stopLocked()
	return d.startLocked(t)
}

func (d *FFmpegDecoder) startLocked(t float64) error {
	args := []string{}
	if t > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", t))
	}
	args = append(args,
		"-i", d.path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", fmt.Sprintf("%d", d.channels),
		"-ar", fmt.Sprintf("%d", d.sampleRate),
		"-",
	)

	cmd := exec.Command(d.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	d.cmd = cmd
	d.stdout = stdout
	d.samplePos = int64(t * float64(d.sampleRate))
	return nil
}

func (d *FFmpegDecoder) stopLocked() {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
		d.cmd.Wait() // reap
	}
	d.cmd = nil
	d.stdout = nil
}

// NextFrame reads one frame off the pipe. Returns io.EOF once ffmpeg has
// closed its end and the final partial frame has been delivered.
func (d *FFmpegDecoder) NextFrame() (*playback.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stdout == nil {
		return nil, io.EOF
	}

	n, err := io.ReadFull(d.stdout, d.buf)
	frameBytes := d.channels * bytesPerSample
	samples := n / frameBytes
	if samples == 0 {
		d.stopLocked()
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("ffmpeg read: %w", err)
		}
		return nil, io.EOF
	}

	raw := make([]byte, samples*frameBytes)
	copy(raw, d.buf[:samples*frameBytes])

	f := &playback.Frame{
		Channels:   d.channels,
		Format:     playback.FormatS16LE,
		SampleRate: d.sampleRate,
		Samples:    samples,
		PTS:        float64(d.samplePos) / float64(d.sampleRate),
		RawPTS:     d.samplePos,
		Raw:        raw,
	}
	d.samplePos += int64(samples)

	if err == io.EOF || err == io.ErrUnexpectedEOF {
		d.stopLocked()
	}
	return f, nil
}

// Close kills the pipe and reaps the process.
func (d *FFmpegDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	return nil
}

// SampleRate returns the decoded stream sample rate.
func (d *FFmpegDecoder) SampleRate() int { return d.sampleRate }

// Channels returns the decoded stream channel count.
func (d *FFmpegDecoder) Channels() int { return d.channels }

// Format returns the decoded payload format.
func (d *FFmpegDecoder) Format() playback.SampleFormat { return playback.FormatS16LE }

var (
	_ playback.Decoder        = (*FFmpegDecoder)(nil)
	_ playback.SeekingDecoder = (*FFmpegDecoder)(nil)
)
