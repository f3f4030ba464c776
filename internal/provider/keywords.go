package provider

import "strings"

// Fixed indicator lists for the deterministic rule backend. These are
// heuristics over Indonesian promotional and review vocabulary, not a
// trained model.

var hoaxIndicators = []string{
	"gratis", "menang", "jutaan", "klik sekarang", "terbatas",
	"segera", "jangan sampai terlewat", "kesempatan emas",
	"hadiah", "promo terbatas", "100% gratis",
}

var positiveWords = []string{"bagus", "senang", "puas", "recommended", "mantap", "suka"}

var negativeWords = []string{"buruk", "kecewa", "jelek", "lambat", "mahal", "tidak suka"}

func matchIndicators(text string, indicators []string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, word := range indicators {
		if strings.Contains(lower, word) {
			hits = append(hits, word)
		}
	}
	return hits
}

// keywordHoax flags text by counting promotional indicators. Two or more
// matches escalate confidence by 0.1 per match capped at 0.95; a single
// match is flagged at 0.7; no match is reported clean at 0.8.
func keywordHoax(text string) HoaxResult {
	hits := matchIndicators(text, hoaxIndicators)
	res := HoaxResult{
		Model: "keyword-rules",
		Meta:  map[string]any{"indicators": hits},
	}
	switch {
	case len(hits) >= 2:
		res.IsHoax = true
		res.Confidence = min(0.95, 0.6+float64(len(hits))*0.1)
		res.Explanation = "Terdeteksi indikator hoax: " + strings.Join(hits, ", ")
	case len(hits) == 1:
		res.IsHoax = true
		res.Confidence = 0.7
		res.Explanation = "Terdeteksi indikator mencurigakan: " + hits[0]
	default:
		res.IsHoax = false
		res.Confidence = 0.8
		res.Explanation = "Tidak terdeteksi indikator hoax"
	}
	return res
}

// keywordSentiment derives sentiment from which word list matches more
// often. Ties, including no matches at all, are neutral at 0.6.
func keywordSentiment(text string) SentimentResult {
	posHits := len(matchIndicators(text, positiveWords))
	negHits := len(matchIndicators(text, negativeWords))

	res := SentimentResult{Model: "keyword-rules"}
	switch {
	case posHits > negHits:
		res.Sentiment = SentimentPositive
		res.Confidence = min(0.8, 0.5+float64(posHits)*0.1)
	case negHits > posHits:
		res.Sentiment = SentimentNegative
		res.Confidence = min(0.8, 0.5+float64(negHits)*0.1)
	default:
		res.Sentiment = SentimentNeutral
		res.Confidence = 0.6
	}
	res.Emotions = keywordEmotionProfile(res.Sentiment)
	return res
}
