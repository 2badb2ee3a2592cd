package playback

import (
	"encoding/binary"
	"math"
	"testing"
)

func s16leFrame(channels int, samples []int16) *Frame {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	return &Frame{
		Channels: channels,
		Format:   FormatS16LE,
		Samples:  len(samples) / channels,
		Raw:      raw,
	}
}

func TestConvertS16LEStereo(t *testing.T) {
	// Interleaved L/R pairs.
	f := s16leFrame(2, []int16{0, 16384, -16384, 32767, -32768, 8192})
	conv := NewSampleConverter(FormatS16LE, 2)

	dst := [][]float32{make([]float32, 3), make([]float32, 3)}
	n, err := conv.Convert(f, dst, 0)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("Expected 3 samples written, got %d", n)
	}

	wantL := []float32{0, -0.5, -1.0}
	wantR := []float32{0.5, 32767.0 / 32768.0, 8192.0 / 32768.0}
	for i := range wantL {
		if math.Abs(float64(dst[0][i]-wantL[i])) > 1e-6 {
			t.Errorf("Left[%d] = %v, want %v", i, dst[0][i], wantL[i])
		}
		if math.Abs(float64(dst[1][i]-wantR[i])) > 1e-6 {
			t.Errorf("Right[%d] = %v, want %v", i, dst[1][i], wantR[i])
		}
	}
}

func TestConvertRespectsTruncation(t *testing.T) {
	f := s16leFrame(1, []int16{100, 200, 300, 400})
	f.KeepLast(2)
	conv := NewSampleConverter(FormatS16LE, 1)

	dst := [][]float32{make([]float32, 4)}
	n, err := conv.Convert(f, dst, 0)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 samples for truncated frame, got %d", n)
	}

	if math.Abs(float64(dst[0][0]-300.0/32768.0)) > 1e-6 {
		t.Errorf("Expected first converted sample from offset 2, got %v", dst[0][0])
	}
}

func TestConvertWritesAtOffset(t *testing.T) {
	f := s16leFrame(1, []int16{16384, -16384})
	conv := NewSampleConverter(FormatS16LE, 1)

	dst := [][]float32{make([]float32, 6)}
	if _, err := conv.Convert(f, dst, 3); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if dst[0][2] != 0 {
		t.Errorf("Sample before offset should be untouched, got %v", dst[0][2])
	}
	if dst[0][3] != 0.5 {
		t.Errorf("Expected 0.5 at offset 3, got %v", dst[0][3])
	}
	if dst[0][4] != -0.5 {
		t.Errorf("Expected -0.5 at offset 4, got %v", dst[0][4])
	}
}

func TestConvertF32LE(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-0.75))
	f := &Frame{Channels: 1, Format: FormatF32LE, Samples: 2, Raw: raw}

	conv := NewSampleConverter(FormatF32LE, 1)
	dst := [][]float32{make([]float32, 2)}
	n, err := conv.Convert(f, dst, 0)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 samples, got %d", n)
	}
	if dst[0][0] != 0.25 || dst[0][1] != -0.75 {
		t.Errorf("Expected [0.25, -0.75], got %v", dst[0])
	}
}

func TestConvertChannelMismatch(t *testing.T) {
	f := s16leFrame(2, []int16{0, 0})
	conv := NewSampleConverter(FormatS16LE, 2)

	dst := [][]float32{make([]float32, 1)} // one channel short
	if _, err := conv.Convert(f, dst, 0); err == nil {
		t.Error("Expected error for too few output channels")
	}
}
