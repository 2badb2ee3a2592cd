package audio

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFT size, power of 2. At 44100Hz this yields ~21 analysis frames/sec.
	fftSize = 2048
	// Frequency bands pushed to subscribers.
	numBands = 128
	// Temporal smoothing factor between analysis frames.
	smoothingFactor = 0.5
)

// AudioDataCallback is called when new analysis data is ready.
type AudioDataCallback func(bands []uint8)

// Analyzer performs real-time FFT analysis on the audio stream feeding the
// output device.
type Analyzer struct {
	mu sync.RWMutex

	fft *fourier.FFT

	sampleBuffer []float64
	bufferIndex  int

	// Hanning window
	window []float64

	bands         []float64
	smoothedBands []float64

	sampleRate int
	channels   int

	ready bool

	callback AudioDataCallback
}

// NewAnalyzer creates an analyzer for an s16le stream of the given format.
func NewAnalyzer(sampleRate, channels int) *Analyzer {
	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	return &Analyzer{
		fft:           fourier.NewFFT(fftSize),
		sampleBuffer:  make([]float64, fftSize),
		window:        window,
		bands:         make([]float64, numBands),
		smoothedBands: make([]float64, numBands),
		sampleRate:    sampleRate,
		channels:      channels,
	}
}

// ProcessSamples consumes interleaved s16le samples, mixing to mono and
// computing a new band frame each time the FFT window fills.
func (a *Analyzer) ProcessSamples(data []byte) {
	var shouldNotify bool
	var bands []uint8

	a.mu.Lock()

	frameBytes := bytesPerSample * a.channels
	for i := 0; i+frameBytes <= len(data); i += frameBytes {
		var sum float64
		for ch := 0; ch < a.channels; ch++ {
			off := i + ch*bytesPerSample
			sample := int16(data[off]) | int16(data[off+1])<<8
			sum += float64(sample) / 32768.0
		}
		mono := sum / float64(a.channels)

		a.sampleBuffer[a.bufferIndex] = mono
		a.bufferIndex = (a.bufferIndex + 1) % fftSize

		if a.bufferIndex == 0 {
			a.computeFFT()
			a.ready = true
			shouldNotify = a.callback != nil
			if shouldNotify {
				bands = clampBands(a.smoothedBands)
			}
		}
	}

	callback := a.callback
	a.mu.Unlock()

	// Push outside the lock.
	if shouldNotify && callback != nil {
		callback(bands)
	}
}

func clampBands(src []float64) []uint8 {
	out := make([]uint8, len(src))
	for i, v := range src {
		switch {
		case v > 255:
			out[i] = 255
		case v < 0:
			out[i] = 0
		default:
			out[i] = uint8(v)
		}
	}
	return out
}

// computeFFT maps the windowed sample buffer onto logarithmically spaced
// frequency bands, dB-scaled over a -60dB..0dB range.
func (a *Analyzer) computeFFT() {
	windowed := make([]float64, fftSize)
	for i := 0; i < fftSize; i++ {
		idx := (a.bufferIndex + i) % fftSize
		windowed[i] = a.sampleBuffer[idx] * a.window[i]
	}

	coeffs := a.fft.Coefficients(nil, windowed)

	nyquist := fftSize / 2
	freqPerBin := float64(a.sampleRate) / float64(fftSize)

	for i := range a.bands {
		a.bands[i] = 0
	}

	minFreq := 20.0
	maxFreq := 20000.0
	if float64(a.sampleRate)/2 < maxFreq {
		maxFreq = float64(a.sampleRate) / 2
	}

	logMin := math.Log10(minFreq)
	logRange := math.Log10(maxFreq) - logMin

	bandCounts := make([]int, numBands)

	for bin := 1; bin < nyquist; bin++ {
		freq := float64(bin) * freqPerBin
		if freq < minFreq || freq > maxFreq {
			continue
		}

		band := int((math.Log10(freq) - logMin) / logRange * float64(numBands))
		if band >= numBands {
			band = numBands - 1
		}
		if band < 0 {
			band = 0
		}

		re := real(coeffs[bin])
		im := imag(coeffs[bin])
		magnitude := math.Sqrt(re*re + im*im)

		db := 20 * math.Log10(magnitude/float64(fftSize)+1e-10)
		normalized := (db + 60) / 60 * 255
		if normalized < 0 {
			normalized = 0
		}
		if normalized > 255 {
			normalized = 255
		}

		a.bands[band] += normalized
		bandCounts[band]++
	}

	for i := range a.bands {
		if bandCounts[i] > 0 {
			a.bands[i] /= float64(bandCounts[i])
		}
	}

	// Spread into adjacent bands to fill gaps where no bin maps directly.
	spread := make([]float64, numBands)
	for i := range a.bands {
		spread[i] = a.bands[i]
		if i > 0 {
			spread[i] += a.bands[i-1] * 0.3
		}
		if i < numBands-1 {
			spread[i] += a.bands[i+1] * 0.3
		}
		if spread[i] > 255 {
			spread[i] = 255
		}
	}

	for i := range a.smoothedBands {
		a.smoothedBands[i] = smoothingFactor*a.smoothedBands[i] + (1-smoothingFactor)*spread[i]
	}
}

// GetBands returns the current frequency bands as 0-255 values.
func (a *Analyzer) GetBands() []uint8 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return clampBands(a.smoothedBands)
}

// SetCallback registers a push callback invoked whenever a new band frame
// is ready.
func (a *Analyzer) SetCallback(cb AudioDataCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callback = cb
}

// IsReady reports whether a full FFT window has been processed.
func (a *Analyzer) IsReady() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// Reset clears the analyzer state.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.bufferIndex = 0
	a.ready = false
	for i := range a.sampleBuffer {
		a.sampleBuffer[i] = 0
	}
	for i := range a.bands {
		a.bands[i] = 0
	}
	for i := range a.smoothedBands {
		a.smoothedBands[i] = 0
	}
}
