package playback

import "testing"

func TestFrameFullRangeByDefault(t *testing.T) {
	f := &Frame{Samples: 1024}

	if f.EffectiveSamples() != 1024 {
		t.Errorf("Expected 1024 effective samples, got %d", f.EffectiveSamples())
	}
	r := f.Range()
	if r.Offset != 0 || r.Count != 1024 {
		t.Errorf("Expected full range {0, 1024}, got {%d, %d}", r.Offset, r.Count)
	}
}

func TestKeepLast(t *testing.T) {
	f := &Frame{Samples: 1024}
	f.KeepLast(100)

	r := f.Range()
	if r.Offset != 924 {
		t.Errorf("Expected offset 924, got %d", r.Offset)
	}
	if r.Count != 100 {
		t.Errorf("Expected count 100, got %d", r.Count)
	}
	if f.EffectiveSamples() != 100 {
		t.Errorf("Expected 100 effective samples, got %d", f.EffectiveSamples())
	}
}

func TestKeepFirst(t *testing.T) {
	f := &Frame{Samples: 1024}
	f.KeepFirst(100)

	r := f.Range()
	if r.Offset != 0 {
		t.Errorf("Expected offset 0, got %d", r.Offset)
	}
	if r.Count != 100 {
		t.Errorf("Expected count 100, got %d", r.Count)
	}
}

func TestTruncationNoOpWhenCountCoversFrame(t *testing.T) {
	f := &Frame{Samples: 512}

	f.KeepLast(512)
	if f.EffectiveSamples() != 512 {
		t.Errorf("KeepLast(Samples) should be a no-op, got %d", f.EffectiveSamples())
	}

	f.KeepFirst(4096)
	if f.EffectiveSamples() != 512 {
		t.Errorf("KeepFirst beyond frame should be a no-op, got %d", f.EffectiveSamples())
	}

	f.KeepLast(-1)
	if f.EffectiveSamples() != 512 {
		t.Errorf("Negative KeepLast should be a no-op, got %d", f.EffectiveSamples())
	}
}

func TestKeepFirstAfterKeepLast(t *testing.T) {
	// Both boundaries can apply to one frame when a loop fits inside it.
	f := &Frame{Samples: 1000}
	f.KeepLast(600) // play from sample 400
	f.KeepFirst(250)

	r := f.Range()
	if r.Offset != 400 {
		t.Errorf("Expected offset 400, got %d", r.Offset)
	}
	if r.Count != 250 {
		t.Errorf("Expected count 250, got %d", r.Count)
	}
}

func TestSampleFormatBytesPerSample(t *testing.T) {
	if FormatS16LE.BytesPerSample() != 2 {
		t.Errorf("s16le should be 2 bytes, got %d", FormatS16LE.BytesPerSample())
	}
	if FormatF32LE.BytesPerSample() != 4 {
		t.Errorf("f32le should be 4 bytes, got %d", FormatF32LE.BytesPerSample())
	}
}
