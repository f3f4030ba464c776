package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"wira/internal/ai"
	"wira/internal/auth"
	"wira/internal/queue"
	"wira/internal/store"
)

// Datastore is the slice of the store the handlers need.
type Datastore interface {
	CreateUserProfile(ctx context.Context, p store.UserProfile) (store.UserProfile, error)
	GetUserProfile(ctx context.Context, id string) (store.UserProfile, error)
	CreateChatbot(ctx context.Context, userID, name string, description, industry *string) (store.Chatbot, error)
	ListChatbots(ctx context.Context, userID string) ([]store.Chatbot, error)
	GetChatbot(ctx context.Context, id, userID string) (store.Chatbot, error)
	UpdateChatbot(ctx context.Context, id, userID string, upd store.ChatbotUpdate) (store.Chatbot, error)
	AddKnowledgeItem(ctx context.Context, chatbotID, content string, source, category *string) (store.KnowledgeItem, error)
	ListKnowledge(ctx context.Context, chatbotID string) ([]store.KnowledgeItem, error)
	LogConversation(ctx context.Context, conv store.Conversation) (store.Conversation, error)
	SentimentAnalytics(ctx context.Context, chatbotID string, days int) (store.Analytics, error)
	Ping(ctx context.Context) error
}

// ConversationLogger is the async logging path; nil means conversations
// are written synchronously off-request.
type ConversationLogger interface {
	PushConversationLog(ctx context.Context, job queue.ConversationJob) error
	Depth(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type Authenticator interface {
	AuthenticateRequest(r *http.Request) (auth.Principal, error)
}

type Handler struct {
	AI           *ai.Service
	Store        Datastore
	Queue        ConversationLogger
	Auth         Authenticator
	ContextItems int
}

func NewHandler(aiSvc *ai.Service, st Datastore, q ConversationLogger, authn Authenticator, contextItems int) *Handler {
	if contextItems <= 0 {
		contextItems = 3
	}
	return &Handler{
		AI:           aiSvc,
		Store:        st,
		Queue:        q,
		Auth:         authn,
		ContextItems: contextItems,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
	r.Get("/readyz", h.handleReady)

	r.Post("/chat", h.handleChat)
	r.Get("/ai/status", h.handleAIStatus)
	r.Post("/ai/hoax-detection", h.handleHoaxDetection)
	r.Post("/ai/sentiment-analysis", h.handleSentimentAnalysis)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/profile", h.handleCreateProfile)
		r.Get("/profile", h.handleGetProfile)
		r.Post("/chatbots", h.handleCreateChatbot)
		r.Get("/chatbots", h.handleListChatbots)
		r.Get("/chatbots/{chatbotID}", h.handleGetChatbot)
		r.Patch("/chatbots/{chatbotID}", h.handleUpdateChatbot)
		r.Post("/chatbots/{chatbotID}/knowledge", h.handleAddKnowledge)
		r.Get("/chatbots/{chatbotID}/knowledge", h.handleListKnowledge)
		r.Get("/chatbots/{chatbotID}/analytics", h.handleAnalytics)
	})
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Wira API",
		"version": "1.0.0",
		"status":  "active",
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "wira-api"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Store.Ping(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if h.Queue != nil {
		if err := h.Queue.Ping(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *Handler) handleAIStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.AI.Status())
}

type chatRequest struct {
	Message   string `json:"message"`
	ChatbotID string `json:"chatbot_id"`
	Context   string `json:"context"`
}

type chatResponse struct {
	Response       string  `json:"response"`
	Confidence     float64 `json:"confidence"`
	Sentiment      string  `json:"sentiment,omitempty"`
	IsHoaxDetected bool    `json:"is_hoax_detected"`
}

// Trigger words that make a chat message worth screening for hoax content.
var hoaxTriggerWords = []string{"gratis", "menang", "jutaan"}

func needsHoaxCheck(message string) bool {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "http") {
		return true
	}
	for _, word := range hoaxTriggerWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// handleChat always answers with a well-formed chat response; a degraded
// AI path shows up as confidence 0, never as a 5xx.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeValidated(r.Body, chatSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()

	contextText := req.Context
	if contextText == "" {
		contextText = h.knowledgeContext(ctx, req.ChatbotID)
	}

	chat := h.AI.GenerateChatResponse(ctx, req.Message, contextText, req.ChatbotID)
	sentiment := h.AI.AnalyzeSentiment(ctx, req.Message)

	hoaxDetected := false
	if needsHoaxCheck(req.Message) {
		hoax := h.AI.DetectHoax(ctx, req.Message)
		hoaxDetected = hoax.IsHoax
	}

	h.logConversation(queue.ConversationJob{
		ChatbotID:      req.ChatbotID,
		UserMessage:    req.Message,
		BotResponse:    chat.Response,
		Sentiment:      &sentiment.Sentiment,
		Confidence:     &chat.Confidence,
		IsHoaxDetected: &hoaxDetected,
		Tier:           string(chat.Tier),
		Provider:       chat.Provider,
	})

	writeJSON(w, http.StatusOK, chatResponse{
		Response:       chat.Response,
		Confidence:     chat.Confidence,
		Sentiment:      sentiment.Sentiment,
		IsHoaxDetected: hoaxDetected,
	})
}

// knowledgeContext concatenates the first few knowledge items as literal
// context text. Plain recency order stands in for retrieval here.
func (h *Handler) knowledgeContext(ctx context.Context, chatbotID string) string {
	items, err := h.Store.ListKnowledge(ctx, chatbotID)
	if err != nil {
		log.Printf("api: knowledge lookup failed for chatbot %s: %v", chatbotID, err)
		return ""
	}
	if len(items) > h.ContextItems {
		items = items[:h.ContextItems]
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.Content)
	}
	return strings.Join(parts, "\n")
}

// logConversation is fire-and-forget: the response has already been
// computed, so a logging failure is only logged, never surfaced.
func (h *Handler) logConversation(job queue.ConversationJob) {
	if h.Queue != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.Queue.PushConversationLog(ctx, job); err != nil {
				log.Printf("api: conversation log enqueue failed: %v", err)
			}
		}()
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := h.Store.LogConversation(ctx, conversationFromJob(job)); err != nil {
			log.Printf("api: conversation log write failed: %v", err)
		}
	}()
}

func conversationFromJob(job queue.ConversationJob) store.Conversation {
	return store.Conversation{
		ChatbotID:      job.ChatbotID,
		UserMessage:    job.UserMessage,
		BotResponse:    job.BotResponse,
		Sentiment:      job.Sentiment,
		Confidence:     job.Confidence,
		IsHoaxDetected: job.IsHoaxDetected,
		Tier:           job.Tier,
		Provider:       job.Provider,
	}
}

type analysisRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleHoaxDetection(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := decodeValidated(r.Body, analysisSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	verdict := h.AI.DetectHoax(r.Context(), req.Text)
	writeJSON(w, http.StatusOK, map[string]any{
		"text":        req.Text,
		"is_hoax":     verdict.IsHoax,
		"confidence":  verdict.Confidence,
		"explanation": verdict.Explanation,
		"ai_tier":     verdict.Tier,
		"ai_provider": verdict.Provider,
	})
}

func (h *Handler) handleSentimentAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := decodeValidated(r.Body, analysisSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	verdict := h.AI.AnalyzeSentiment(r.Context(), req.Text)
	emotions := verdict.Emotions
	if emotions == nil {
		emotions = map[string]float64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":        req.Text,
		"sentiment":   verdict.Sentiment,
		"confidence":  verdict.Confidence,
		"emotions":    emotions,
		"ai_tier":     verdict.Tier,
		"ai_provider": verdict.Provider,
	})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := h.Auth.AuthenticateRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
