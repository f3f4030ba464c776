package provider

// Fixed 8-dimension emotion templates. The breakdown is derived from the
// coarse sentiment label, not measured; each backend historically tuned
// its own weights, so the variants are kept separate on purpose.

func starterEmotionProfile(sentiment string) map[string]float64 {
	if sentiment == SentimentPositive {
		return map[string]float64{
			"joy": 0.8, "trust": 0.7, "anticipation": 0.4,
			"surprise": 0.2, "fear": 0.1, "sadness": 0.1,
			"disgust": 0.1, "anger": 0.1,
		}
	}
	return map[string]float64{
		"joy": 0.2, "trust": 0.3, "anticipation": 0.4,
		"surprise": 0.2, "fear": 0.6, "sadness": 0.7,
		"disgust": 0.5, "anger": 0.6,
	}
}

func promptedEmotionProfile(sentiment string) map[string]float64 {
	switch sentiment {
	case SentimentPositive:
		return map[string]float64{
			"joy": 0.8, "trust": 0.7, "anticipation": 0.6,
			"surprise": 0.3, "fear": 0.1, "sadness": 0.1,
			"disgust": 0.1, "anger": 0.1,
		}
	case SentimentNegative:
		return map[string]float64{
			"joy": 0.1, "trust": 0.2, "anticipation": 0.3,
			"surprise": 0.3, "fear": 0.6, "sadness": 0.7,
			"disgust": 0.5, "anger": 0.6,
		}
	default:
		return map[string]float64{
			"joy": 0.4, "trust": 0.4, "anticipation": 0.4,
			"surprise": 0.3, "fear": 0.3, "sadness": 0.3,
			"disgust": 0.2, "anger": 0.2,
		}
	}
}

func keywordEmotionProfile(sentiment string) map[string]float64 {
	if sentiment == SentimentPositive {
		return map[string]float64{
			"joy": 0.7, "trust": 0.6, "anticipation": 0.4,
			"surprise": 0.3, "fear": 0.2, "sadness": 0.1,
			"disgust": 0.1, "anger": 0.1,
		}
	}
	return map[string]float64{
		"joy": 0.2, "trust": 0.3, "anticipation": 0.4,
		"surprise": 0.3, "fear": 0.6, "sadness": 0.7,
		"disgust": 0.5, "anger": 0.6,
	}
}
