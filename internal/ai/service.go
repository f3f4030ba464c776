package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"wira/internal/provider"
)

// Tier records which provider rank produced a result.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierFallback  Tier = "fallback"
	TierNone      Tier = "none"
	TierError     Tier = "error"
)

// ChatResult is a provider generation stamped with its origin.
type ChatResult struct {
	provider.GenerationResult
	Tier      Tier
	Provider  string
	ChatbotID string
	Timestamp time.Time
}

// HoaxVerdict is a provider hoax screening stamped with its origin.
type HoaxVerdict struct {
	provider.HoaxResult
	Tier     Tier
	Provider string
}

// SentimentVerdict is a provider sentiment reading stamped with its origin.
type SentimentVerdict struct {
	provider.SentimentResult
	Tier     Tier
	Provider string
}

type tierClient struct {
	tier   Tier
	client provider.Client
}

// Service fronts the configured provider clients in a fixed priority
// order. Providers differ sharply in quality and price, so tiers are
// tried strictly one at a time: a lower tier only pays for a call when
// every tier above it was rejected by the quality gate.
//
// Every capability is a total function. Exhausting all tiers yields a
// fixed safe default, never an error.
type Service struct {
	tiers []tierClient
	now   func() time.Time
}

// NewService wires the tier order. A nil client means that tier failed to
// construct and is skipped, not retried.
func NewService(primary, secondary, fallback provider.Client) *Service {
	svc := &Service{now: time.Now}
	for _, tc := range []tierClient{
		{TierPrimary, primary},
		{TierSecondary, secondary},
		{TierFallback, fallback},
	} {
		if tc.client != nil {
			svc.tiers = append(svc.tiers, tc)
		}
	}
	return svc
}

// chatAcceptable is the quality gate for generation: no provider error and
// enough text to plausibly be an answer.
func chatAcceptable(res provider.GenerationResult) bool {
	return res.Err == "" && len(res.Response) > 10
}

func (s *Service) GenerateChatResponse(ctx context.Context, message, contextText, chatbotID string) (out ChatResult) {
	defer s.recoverChat(&out, chatbotID)

	req := provider.ChatRequest{Message: message, Context: contextText}
	for _, tc := range s.tiers {
		log.Printf("ai: trying %s chat client %s", tc.tier, tc.client.Name())
		res := tc.client.GenerateChatResponse(ctx, req)
		if chatAcceptable(res) {
			return ChatResult{
				GenerationResult: res,
				Tier:             tc.tier,
				Provider:         tc.client.Name(),
				ChatbotID:        chatbotID,
				Timestamp:        s.now().UTC(),
			}
		}
		log.Printf("ai: %s chat response quality insufficient: %s", tc.tier, rejectedReason(res))
	}

	log.Printf("ai: all chat clients failed")
	return ChatResult{
		GenerationResult: provider.GenerationResult{
			Response:   "Maaf, saya sedang mengalami kesulitan teknis. Silakan coba lagi dalam beberapa saat atau hubungi tim support kami.",
			Confidence: 0,
			Err:        "all AI clients failed",
		},
		Tier:      TierNone,
		Provider:  "none",
		ChatbotID: chatbotID,
		Timestamp: s.now().UTC(),
	}
}

func (s *Service) DetectHoax(ctx context.Context, text string) (out HoaxVerdict) {
	defer s.recoverHoax(&out)

	for _, tc := range s.tiers {
		log.Printf("ai: trying %s hoax detection via %s", tc.tier, tc.client.Name())
		res := tc.client.DetectHoax(ctx, text)
		if res.Err == "" {
			return HoaxVerdict{HoaxResult: res, Tier: tc.tier, Provider: tc.client.Name()}
		}
		log.Printf("ai: %s hoax detection failed: %s", tc.tier, res.Err)
	}

	log.Printf("ai: all hoax detection clients failed, returning safe default")
	return HoaxVerdict{
		HoaxResult: provider.HoaxResult{
			IsHoax:      false,
			Confidence:  0,
			Explanation: "AI service unavailable, defaulting to safe",
			Err:         "all clients failed",
		},
		Tier:     TierNone,
		Provider: "none",
	}
}

func (s *Service) AnalyzeSentiment(ctx context.Context, text string) (out SentimentVerdict) {
	defer s.recoverSentiment(&out)

	for _, tc := range s.tiers {
		log.Printf("ai: trying %s sentiment analysis via %s", tc.tier, tc.client.Name())
		res := tc.client.AnalyzeSentiment(ctx, text)
		if res.Err == "" {
			return SentimentVerdict{SentimentResult: res, Tier: tc.tier, Provider: tc.client.Name()}
		}
		log.Printf("ai: %s sentiment analysis failed: %s", tc.tier, res.Err)
	}

	log.Printf("ai: all sentiment clients failed, returning neutral")
	return SentimentVerdict{
		SentimentResult: provider.SentimentResult{
			Sentiment:  provider.SentimentNeutral,
			Confidence: 0,
			Err:        "all clients failed",
		},
		Tier:     TierNone,
		Provider: "none",
	}
}

// Status reports which tiers are configured, for the health surface.
type Status struct {
	Primary        string    `json:"primary_service"`
	Secondary      string    `json:"secondary_service"`
	Fallback       string    `json:"fallback_service"`
	TotalProviders int       `json:"total_providers"`
	Timestamp      time.Time `json:"timestamp"`
}

func (s *Service) Status() Status {
	st := Status{
		Primary:   "not configured",
		Secondary: "not configured",
		Fallback:  "not configured",
		Timestamp: s.now().UTC(),
	}
	for _, tc := range s.tiers {
		st.TotalProviders++
		switch tc.tier {
		case TierPrimary:
			st.Primary = tc.client.Name()
		case TierSecondary:
			st.Secondary = tc.client.Name()
		case TierFallback:
			st.Fallback = tc.client.Name()
		}
	}
	return st
}

// A panicking client must not take down the request: the capability
// degrades to its safe default stamped with the error tier.
func (s *Service) recoverChat(out *ChatResult, chatbotID string) {
	if r := recover(); r != nil {
		log.Printf("ai: chat generation panic: %v", r)
		*out = ChatResult{
			GenerationResult: provider.GenerationResult{
				Response: "Maaf, saya sedang mengalami gangguan teknis. Silakan coba lagi dalam beberapa saat.",
				Err:      fmt.Sprint(r),
			},
			Tier:      TierError,
			Provider:  "error",
			ChatbotID: chatbotID,
			Timestamp: s.now().UTC(),
		}
	}
}

func (s *Service) recoverHoax(out *HoaxVerdict) {
	if r := recover(); r != nil {
		log.Printf("ai: hoax detection panic: %v", r)
		*out = HoaxVerdict{
			HoaxResult: provider.HoaxResult{
				Explanation: "Error occurred, defaulting to safe",
				Err:         fmt.Sprint(r),
			},
			Tier:     TierError,
			Provider: "error",
		}
	}
}

func (s *Service) recoverSentiment(out *SentimentVerdict) {
	if r := recover(); r != nil {
		log.Printf("ai: sentiment analysis panic: %v", r)
		*out = SentimentVerdict{
			SentimentResult: provider.SentimentResult{
				Sentiment: provider.SentimentNeutral,
				Err:       fmt.Sprint(r),
			},
			Tier:     TierError,
			Provider: "error",
		}
	}
}

func rejectedReason(res provider.GenerationResult) string {
	if res.Err != "" {
		return res.Err
	}
	return "response too short"
}
