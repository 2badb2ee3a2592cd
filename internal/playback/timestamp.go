package playback

import "math"

// SanitizeTime validates a time value obtained from stream-embedded metadata.
// NaN or negative values are replaced with the fallback so that malformed
// metadata can never propagate into sample-offset arithmetic.
func SanitizeTime(t, fallback float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return fallback
	}
	return t
}

// Chapter is a stream-embedded chapter boundary, in seconds.
type Chapter struct {
	Title string  `json:"title,omitempty"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SanitizeChapter clamps a chapter's bounds: a malformed start falls back to
// 0, a malformed end to fallbackEnd (typically the track duration).
func SanitizeChapter(c Chapter, fallbackEnd float64) Chapter {
	c.Start = SanitizeTime(c.Start, 0)
	c.End = SanitizeTime(c.End, fallbackEnd)
	return c
}
