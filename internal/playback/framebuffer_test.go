package playback

import "testing"

func planarFrame(channels, samples int, fill float32) *Frame {
	planar := make([][]float32, channels)
	for ch := range planar {
		planar[ch] = make([]float32, samples)
		for i := range planar[ch] {
			planar[ch][i] = fill
		}
	}
	return &Frame{
		Channels: channels,
		Format:   FormatF32Planar,
		Samples:  samples,
		Planar:   planar,
	}
}

func TestFrameBufferConservesSamples(t *testing.T) {
	buf := NewFrameBuffer(2, 44100, false)
	buf.Append(planarFrame(2, 100, 0.1))
	buf.Append(planarFrame(2, 250, 0.2))
	buf.Append(planarFrame(2, 50, 0.3))

	if buf.TotalSamples() != 400 {
		t.Fatalf("Expected 400 declared samples, got %d", buf.TotalSamples())
	}

	out := NewPCMBuffer(2, 400, 44100)
	if err := buf.Fill(out, nil); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if out.Frames != 400 {
		t.Errorf("Expected 400 written samples, got %d", out.Frames)
	}

	// Frame boundaries land exactly where the running totals say.
	if out.Data[0][99] != 0.1 || out.Data[0][100] != 0.2 {
		t.Errorf("First boundary wrong: %v, %v", out.Data[0][99], out.Data[0][100])
	}
	if out.Data[1][349] != 0.2 || out.Data[1][350] != 0.3 {
		t.Errorf("Second boundary wrong: %v, %v", out.Data[1][349], out.Data[1][350])
	}
}

func TestFrameBufferTruncatedFramesLeaveNoGaps(t *testing.T) {
	first := planarFrame(2, 100, 0.1)
	first.KeepLast(30)
	last := planarFrame(2, 100, 0.2)
	last.KeepFirst(45)

	buf := NewFrameBuffer(2, 44100, false)
	buf.Append(first)
	buf.Append(last)

	if buf.TotalSamples() != 75 {
		t.Fatalf("Expected 75 declared samples, got %d", buf.TotalSamples())
	}

	out := NewPCMBuffer(2, 75, 44100)
	if err := buf.Fill(out, nil); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if out.Frames != 75 {
		t.Errorf("Expected 75 written samples, got %d", out.Frames)
	}
	if out.Data[0][29] != 0.1 || out.Data[0][30] != 0.2 {
		t.Errorf("Truncated boundary wrong: %v, %v", out.Data[0][29], out.Data[0][30])
	}
}

func TestFrameBufferCapacityError(t *testing.T) {
	buf := NewFrameBuffer(2, 44100, false)
	buf.Append(planarFrame(2, 100, 0))

	out := NewPCMBuffer(2, 50, 44100)
	if err := buf.Fill(out, nil); err == nil {
		t.Error("Expected error for undersized output buffer")
	}
}

func TestFrameBufferConvertingFill(t *testing.T) {
	f := s16leFrame(1, []int16{16384, -16384, 0})
	buf := NewFrameBuffer(1, 44100, true)
	buf.Append(f)

	conv := NewSampleConverter(FormatS16LE, 1)
	out := NewPCMBuffer(1, 3, 44100)
	if err := buf.Fill(out, conv); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	if out.Frames != 3 {
		t.Errorf("Expected 3 samples, got %d", out.Frames)
	}
	if out.Data[0][0] != 0.5 || out.Data[0][1] != -0.5 || out.Data[0][2] != 0 {
		t.Errorf("Converted samples wrong: %v", out.Data[0])
	}
}
