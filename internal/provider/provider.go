package provider

import "context"

// Sentiment labels shared by every backend.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// ChatRequest is one chat turn. Model optionally overrides the backend's
// default generation model.
type ChatRequest struct {
	Message string
	Context string
	Model   string
}

// GenerationResult is the normalized reply of a text-generation call.
// It is a total value: transport and decode failures are reported through
// Err together with a user-facing apology in Response, never as a Go error.
type GenerationResult struct {
	Response   string
	Confidence float64
	Model      string
	TokenCount int
	Err        string
	Meta       map[string]any
}

// HoaxResult is the normalized output of misinformation screening.
type HoaxResult struct {
	IsHoax      bool
	Confidence  float64
	Explanation string
	Model       string
	Err         string
	Meta        map[string]any
}

// SentimentResult is the normalized output of sentiment analysis.
// Emotions is a fixed 8-dimension breakdown derived from the coarse label.
type SentimentResult struct {
	Sentiment  string
	Confidence float64
	Emotions   map[string]float64
	Model      string
	Err        string
	Meta       map[string]any
}

// Client is implemented by every AI backend. Implementations never return
// Go errors from capability calls; a failed call yields a result with Err
// set and zero confidence.
type Client interface {
	Name() string
	GenerateChatResponse(ctx context.Context, req ChatRequest) GenerationResult
	DetectHoax(ctx context.Context, text string) HoaxResult
	AnalyzeSentiment(ctx context.Context, text string) SentimentResult
}

func (r GenerationResult) Failed() bool { return r.Err != "" }

func failedGeneration(model, apology, errMsg string) GenerationResult {
	return GenerationResult{
		Response:   apology,
		Confidence: 0,
		Model:      model,
		Err:        errMsg,
	}
}
