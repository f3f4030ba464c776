package provider

import (
	"regexp"
	"strconv"
	"strings"
)

// Best-effort extraction of structured fields from free-form model output.
// The upstream format is not contractually guaranteed, so every extractor
// has an explicit fallback instead of failing the call.

var percentRe = regexp.MustCompile(`(\d+)%`)

// ExtractPercent returns the first percentage found in text scaled to
// [0,1], or def when none is present.
func ExtractPercent(text string, def float64) float64 {
	m := percentRe.FindStringSubmatch(text)
	if m == nil {
		return def
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 || n > 100 {
		return def
	}
	return float64(n) / 100
}

// ExtractHoaxVerdict scans a structured-answer reply for the HOAX token.
// An explicit BUKAN_HOAX verdict wins over a bare HOAX mention.
func ExtractHoaxVerdict(text string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, "HOAX") && !strings.Contains(upper, "BUKAN_HOAX")
}

// ExtractSentimentVerdict maps a POSITIF/NEGATIF/NETRAL reply onto the
// shared 3-way scheme, defaulting to neutral.
func ExtractSentimentVerdict(text string) string {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "POSITIF"):
		return SentimentPositive
	case strings.Contains(upper, "NEGATIF"):
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
