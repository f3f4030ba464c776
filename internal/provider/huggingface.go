package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"
)

// minUsefulReply is the shortest generation considered worth returning.
// Anything below it triggers one retry against the backend's fallback
// model before the call is given up on.
const minUsefulReply = 20

const hoaxConfidenceThreshold = 0.6

// HuggingFace wraps the hosted inference API. Chat uses a completion-style
// text-generation model, hoax screening uses zero-shot classification and
// sentiment uses a multilingual star-rating model.
type HuggingFace struct {
	Token          string
	BaseURL        string
	Model          string
	FallbackModel  string
	HoaxModel      string
	SentimentModel string
	Client         *http.Client
}

func NewHuggingFace(token, model, fallbackModel string) (*HuggingFace, error) {
	if token == "" {
		return nil, errors.New("huggingface api token not configured")
	}
	if model == "" {
		model = "openai/gpt-oss-20b"
	}
	if fallbackModel == "" {
		fallbackModel = "google/flan-t5-base"
	}
	return &HuggingFace{
		Token:          token,
		BaseURL:        "https://api-inference.huggingface.co/models",
		Model:          model,
		FallbackModel:  fallbackModel,
		HoaxModel:      "facebook/bart-large-mnli",
		SentimentModel: "nlptown/bert-base-multilingual-uncased-sentiment",
		Client:         &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *HuggingFace) Name() string { return "Hugging Face" }

func (c *HuggingFace) GenerateChatResponse(ctx context.Context, req ChatRequest) GenerationResult {
	prompt := BuildChatPrompt(req.Message, req.Context)

	model := req.Model
	if model == "" {
		model = c.Model
	}

	// Two-step policy: one attempt on the requested model, then a single
	// bounded retry on the fallback model when the reply is unusable.
	res := c.generateOnce(ctx, model, prompt)
	if model != c.FallbackModel && (res.Failed() || len(res.Response) < minUsefulReply) {
		log.Printf("huggingface: reply from %s unusable, retrying with %s", model, c.FallbackModel)
		retry := c.generateOnce(ctx, c.FallbackModel, prompt)
		if !retry.Failed() {
			return retry
		}
	}
	return res
}

func (c *HuggingFace) generateOnce(ctx context.Context, model, prompt string) GenerationResult {
	payload := map[string]any{
		"inputs": prompt,
		"parameters": map[string]any{
			"max_new_tokens":     300,
			"temperature":        0.8,
			"do_sample":          true,
			"return_full_text":   false,
			"top_p":              0.9,
			"repetition_penalty": 1.1,
		},
	}

	var decoded []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := c.query(ctx, model, payload, &decoded); err != nil {
		log.Printf("huggingface: generation on %s failed: %v", model, err)
		return failedGeneration(model, apologySystem, err.Error())
	}
	if len(decoded) == 0 {
		return failedGeneration(model, apologyNoResult, "no results returned")
	}

	return GenerationResult{
		Response:   CleanReply(decoded[0].GeneratedText, prompt),
		Confidence: 0.85,
		Model:      model,
	}
}

// DetectHoax classifies text zero-shot against a fixed label set and takes
// the best score among the hoax-aligned labels.
func (c *HuggingFace) DetectHoax(ctx context.Context, text string) HoaxResult {
	payload := map[string]any{
		"inputs": "Classify this text as hoax or not hoax: " + text,
		"parameters": map[string]any{
			"candidate_labels": []string{"hoax", "not hoax", "misinformation", "factual"},
		},
	}

	var decoded struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
	}
	if err := c.query(ctx, c.HoaxModel, payload, &decoded); err != nil {
		log.Printf("huggingface: hoax detection failed: %v", err)
		return HoaxResult{
			Explanation: "Terjadi kesalahan saat menganalisis: " + err.Error(),
			Model:       c.HoaxModel,
			Err:         err.Error(),
		}
	}
	if len(decoded.Labels) == 0 || len(decoded.Labels) != len(decoded.Scores) {
		return HoaxResult{
			Confidence:  0.5,
			Explanation: "Tidak dapat menganalisis teks secara menyeluruh. Silakan verifikasi secara manual.",
			Model:       c.HoaxModel,
		}
	}

	var hoaxScore float64
	for i, label := range decoded.Labels {
		if label == "hoax" || label == "misinformation" {
			hoaxScore = max(hoaxScore, decoded.Scores[i])
		}
	}

	res := HoaxResult{
		IsHoax:     hoaxScore > hoaxConfidenceThreshold,
		Confidence: hoaxScore,
		Model:      c.HoaxModel,
		Meta: map[string]any{
			"labels": decoded.Labels,
			"scores": decoded.Scores,
		},
	}
	if res.IsHoax {
		res.Explanation = fmt.Sprintf("Analisis AI menunjukkan tingkat kepercayaan %.0f%% bahwa teks ini mengandung misinformasi.", hoaxScore*100)
	} else {
		res.Explanation = "Teks ini tampaknya tidak mengandung misinformasi berdasarkan analisis AI."
	}
	return res
}

// star-rating and coarse labels reported by the sentiment model, mapped
// onto the shared 3-way scheme.
var sentimentLabelMap = map[string]string{
	"POSITIVE": SentimentPositive,
	"NEGATIVE": SentimentNegative,
	"NEUTRAL":  SentimentNeutral,
	"1 star":   SentimentNegative,
	"2 stars":  SentimentNegative,
	"3 stars":  SentimentNeutral,
	"4 stars":  SentimentPositive,
	"5 stars":  SentimentPositive,
}

func (c *HuggingFace) AnalyzeSentiment(ctx context.Context, text string) SentimentResult {
	payload := map[string]any{"inputs": text}

	var decoded [][]struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := c.query(ctx, c.SentimentModel, payload, &decoded); err != nil {
		log.Printf("huggingface: sentiment analysis failed: %v", err)
		return SentimentResult{
			Sentiment: SentimentNeutral,
			Emotions:  map[string]float64{},
			Model:     c.SentimentModel,
			Err:       err.Error(),
		}
	}
	if len(decoded) == 0 || len(decoded[0]) == 0 {
		return SentimentResult{
			Sentiment:  SentimentNeutral,
			Confidence: 0.5,
			Emotions:   promptedEmotionProfile(SentimentNeutral),
			Model:      c.SentimentModel,
		}
	}

	scored := decoded[0]
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	top := scored[0]

	sentiment, ok := sentimentLabelMap[top.Label]
	if !ok {
		sentiment = SentimentNeutral
	}

	return SentimentResult{
		Sentiment:  sentiment,
		Confidence: top.Score,
		Emotions:   starterEmotionProfile(sentiment),
		Model:      c.SentimentModel,
		Meta:       map[string]any{"label": top.Label},
	}
}

// query posts a backend-specific payload to one hosted model and decodes
// the reply into out.
func (c *HuggingFace) query(ctx context.Context, model string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+model, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("huggingface: query %s failed: %s", model, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
