package audio

import "testing"

func TestParseChapters(t *testing.T) {
	data := []byte(`{
		"chapters": [
			{"start_time": "0.000000", "end_time": "150.500000", "tags": {"title": "Opening"}},
			{"start_time": "150.500000", "end_time": "412.250000", "tags": {"title": "Part Two"}},
			{"start_time": "412.250000", "end_time": "600.000000", "tags": {}}
		],
		"format": {"duration": "600.000000"}
	}`)

	chapters, err := parseChapters(data)
	if err != nil {
		t.Fatalf("parseChapters failed: %v", err)
	}
	if len(chapters) != 3 {
		t.Fatalf("Expected 3 chapters, got %d", len(chapters))
	}

	if chapters[0].Title != "Opening" || chapters[0].Start != 0 || chapters[0].End != 150.5 {
		t.Errorf("Chapter 0 wrong: %+v", chapters[0])
	}
	if chapters[1].Start != 150.5 || chapters[1].End != 412.25 {
		t.Errorf("Chapter 1 bounds wrong: %+v", chapters[1])
	}
	if chapters[2].Title != "" {
		t.Errorf("Untitled chapter should have empty title, got %q", chapters[2].Title)
	}
}

func TestParseChaptersSanitizesBounds(t *testing.T) {
	data := []byte(`{
		"chapters": [
			{"start_time": "-5.000000", "end_time": "100.000000", "tags": {"title": "Bad start"}},
			{"start_time": "100.000000", "tags": {"title": "No end"}},
			{"start_time": "200.000000", "end_time": "garbage", "tags": {"title": "Bad end"}}
		],
		"format": {"duration": "300.000000"}
	}`)

	chapters, err := parseChapters(data)
	if err != nil {
		t.Fatalf("parseChapters failed: %v", err)
	}

	if chapters[0].Start != 0 {
		t.Errorf("Negative start should clamp to 0, got %v", chapters[0].Start)
	}
	if chapters[1].End != 300 {
		t.Errorf("Missing end should fall back to duration, got %v", chapters[1].End)
	}
	if chapters[2].End != 300 {
		t.Errorf("Unparseable end should fall back to duration, got %v", chapters[2].End)
	}
}

func TestParseChaptersNoChapters(t *testing.T) {
	chapters, err := parseChapters([]byte(`{"format": {"duration": "180.0"}}`))
	if err != nil {
		t.Fatalf("parseChapters failed: %v", err)
	}
	if len(chapters) != 0 {
		t.Errorf("Expected no chapters, got %d", len(chapters))
	}
}

func TestParseChaptersInvalidJSON(t *testing.T) {
	if _, err := parseChapters([]byte("not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
