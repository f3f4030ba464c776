package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Replicate runs generation models through the predictions API. A call is
// asynchronous on the backend side: the prediction is submitted, then
// polled until it reaches a terminal state or the poll budget runs out.
// Hoax and sentiment screening are served by the deterministic keyword
// rules, which this backend uses instead of a hosted classifier.
type Replicate struct {
	Token         string
	BaseURL       string
	Model         string
	FallbackModel string
	PollInterval  time.Duration
	MaxPolls      int
	Client        *http.Client
}

func NewReplicate(token, model, fallbackModel string) (*Replicate, error) {
	if token == "" {
		return nil, errors.New("replicate api token not configured")
	}
	if model == "" {
		model = "ibm-granite/granite-3.3-8b-instruct"
	}
	if fallbackModel == "" {
		fallbackModel = "meta/llama-2-70b-chat:02e509c789964a7ea8736978a43525956ef40397be9033abf9fd2badfe68c9e3"
	}
	return &Replicate{
		Token:         token,
		BaseURL:       "https://api.replicate.com/v1",
		Model:         model,
		FallbackModel: fallbackModel,
		PollInterval:  time.Second,
		MaxPolls:      60,
		Client:        &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Replicate) Name() string { return "Replicate" }

type prediction struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
	Metrics map[string]any `json:"metrics"`
}

func (c *Replicate) GenerateChatResponse(ctx context.Context, req ChatRequest) GenerationResult {
	prompt := BuildChatPrompt(req.Message, req.Context)

	model := req.Model
	if model == "" {
		model = c.Model
	}

	res := c.generateOnce(ctx, model, prompt)
	if !res.Failed() {
		return res
	}
	log.Printf("replicate: model %s failed (%s), trying fallback %s", model, res.Err, c.FallbackModel)

	res = c.generateOnce(ctx, c.FallbackModel, prompt)
	if !res.Failed() {
		return res
	}
	log.Printf("replicate: fallback model failed: %s", res.Err)

	return failedGeneration("none", apologyDegraded, "both models failed")
}

func (c *Replicate) generateOnce(ctx context.Context, model, prompt string) GenerationResult {
	input := map[string]any{
		"prompt":             prompt,
		"max_new_tokens":     300,
		"temperature":        0.8,
		"top_p":              0.9,
		"repetition_penalty": 1.1,
	}
	pred, err := c.runModel(ctx, model, input)
	if err != nil {
		return failedGeneration(model, apologyRetryLater, err.Error())
	}

	text := CleanReply(decodeOutput(pred.Output), prompt)
	return GenerationResult{
		Response:   text,
		Confidence: 0.9,
		Model:      model,
		Meta:       map[string]any{"metrics": pred.Metrics},
	}
}

func (c *Replicate) DetectHoax(_ context.Context, text string) HoaxResult {
	return keywordHoax(text)
}

func (c *Replicate) AnalyzeSentiment(_ context.Context, text string) SentimentResult {
	return keywordSentiment(text)
}

// runModel submits a prediction and waits for it to complete.
func (c *Replicate) runModel(ctx context.Context, model string, input map[string]any) (prediction, error) {
	payload := map[string]any{
		"version": model,
		"input":   input,
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return prediction{}, err
	}
	req.Header.Set("Authorization", "Token "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return prediction{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return prediction{}, fmt.Errorf("replicate: create prediction failed: %s", resp.Status)
	}

	var pred prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return prediction{}, err
	}
	return c.pollPrediction(ctx, pred.URLs.Get)
}

// pollPrediction follows submitted -> processing -> succeeded|failed at a
// fixed interval. Exceeding MaxPolls is a timeout, never an unbounded wait.
func (c *Replicate) pollPrediction(ctx context.Context, url string) (prediction, error) {
	for i := 0; i < c.MaxPolls; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return prediction{}, err
		}
		req.Header.Set("Authorization", "Token "+c.Token)

		resp, err := c.Client.Do(req)
		if err != nil {
			return prediction{}, err
		}
		var pred prediction
		decodeErr := json.NewDecoder(resp.Body).Decode(&pred)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return prediction{}, fmt.Errorf("replicate: poll failed: %s", resp.Status)
		}
		if decodeErr != nil {
			return prediction{}, decodeErr
		}

		switch pred.Status {
		case "succeeded":
			return pred, nil
		case "failed", "canceled":
			msg := pred.Error
			if msg == "" {
				msg = "prediction failed"
			}
			return prediction{}, errors.New("replicate: " + msg)
		case "starting", "processing":
			select {
			case <-ctx.Done():
				return prediction{}, ctx.Err()
			case <-time.After(c.PollInterval):
			}
		default:
			return prediction{}, fmt.Errorf("replicate: unexpected prediction status %q", pred.Status)
		}
	}
	return prediction{}, errors.New("replicate: prediction timed out")
}

// decodeOutput joins the output, which arrives either as a token list or a
// single string.
func decodeOutput(raw json.RawMessage) string {
	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.TrimSpace(strings.Join(parts, ""))
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	return strings.TrimSpace(string(raw))
}
