package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"wira/internal/auth"
	"wira/internal/store"
)

type chatbotDTO struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        *string   `json:"description"`
	Industry           *string   `json:"industry"`
	Status             string    `json:"status"`
	KnowledgeBaseSize  int       `json:"knowledge_base_size"`
	TotalConversations int       `json:"total_conversations"`
	DeploymentURL      *string   `json:"deployment_url"`
	CreatedAt          time.Time `json:"created_at"`
}

func chatbotToDTO(b store.Chatbot) chatbotDTO {
	return chatbotDTO{
		ID:                 b.ID,
		Name:               b.Name,
		Description:        b.Description,
		Industry:           b.Industry,
		Status:             b.Status,
		KnowledgeBaseSize:  b.KnowledgeBaseSize,
		TotalConversations: b.TotalConversations,
		DeploymentURL:      b.DeploymentURL,
		CreatedAt:          b.CreatedAt,
	}
}

func (h *Handler) handleCreateChatbot(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
		Industry    *string `json:"industry"`
	}
	if err := decodeValidated(r.Body, createChatbotSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bot, err := h.Store.CreateChatbot(r.Context(), principal.UserID, req.Name, req.Description, req.Industry)
	if err != nil {
		log.Printf("api: create chatbot failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create chatbot")
		return
	}
	writeJSON(w, http.StatusCreated, chatbotToDTO(bot))
}

func (h *Handler) handleListChatbots(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	bots, err := h.Store.ListChatbots(r.Context(), principal.UserID)
	if err != nil {
		log.Printf("api: list chatbots failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch chatbots")
		return
	}
	out := make([]chatbotDTO, 0, len(bots))
	for _, b := range bots {
		out = append(out, chatbotToDTO(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetChatbot(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	bot, err := h.Store.GetChatbot(r.Context(), chi.URLParam(r, "chatbotID"), principal.UserID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chatbot not found")
		return
	}
	if err != nil {
		log.Printf("api: get chatbot failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch chatbot")
		return
	}
	writeJSON(w, http.StatusOK, chatbotToDTO(bot))
}

func (h *Handler) handleUpdateChatbot(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req struct {
		Name          *string `json:"name"`
		Description   *string `json:"description"`
		Industry      *string `json:"industry"`
		Status        *string `json:"status"`
		DeploymentURL *string `json:"deployment_url"`
	}
	if err := decodeValidated(r.Body, updateChatbotSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bot, err := h.Store.UpdateChatbot(r.Context(), chi.URLParam(r, "chatbotID"), principal.UserID, store.ChatbotUpdate{
		Name:          req.Name,
		Description:   req.Description,
		Industry:      req.Industry,
		Status:        req.Status,
		DeploymentURL: req.DeploymentURL,
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chatbot not found")
		return
	}
	if err != nil {
		log.Printf("api: update chatbot failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update chatbot")
		return
	}
	writeJSON(w, http.StatusOK, chatbotToDTO(bot))
}

func (h *Handler) handleAddKnowledge(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	chatbotID := chi.URLParam(r, "chatbotID")

	// Ownership check before touching the knowledge base.
	if _, err := h.Store.GetChatbot(r.Context(), chatbotID, principal.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chatbot not found")
			return
		}
		log.Printf("api: chatbot lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to add knowledge base item")
		return
	}

	var req struct {
		Content  string  `json:"content"`
		Source   *string `json:"source"`
		Category *string `json:"category"`
	}
	if err := decodeValidated(r.Body, knowledgeSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.Store.AddKnowledgeItem(r.Context(), chatbotID, req.Content, req.Source, req.Category)
	if err != nil {
		log.Printf("api: add knowledge item failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to add knowledge base item")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         item.ID,
		"chatbot_id": item.ChatbotID,
		"content":    item.Content,
		"source":     item.Source,
		"category":   item.Category,
		"created_at": item.CreatedAt,
	})
}

func (h *Handler) handleListKnowledge(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	chatbotID := chi.URLParam(r, "chatbotID")

	if _, err := h.Store.GetChatbot(r.Context(), chatbotID, principal.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chatbot not found")
			return
		}
		log.Printf("api: chatbot lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch knowledge base")
		return
	}

	items, err := h.Store.ListKnowledge(r.Context(), chatbotID)
	if err != nil {
		log.Printf("api: list knowledge failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch knowledge base")
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"id":         item.ID,
			"content":    item.Content,
			"source":     item.Source,
			"category":   item.Category,
			"created_at": item.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	chatbotID := chi.URLParam(r, "chatbotID")

	if _, err := h.Store.GetChatbot(r.Context(), chatbotID, principal.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chatbot not found")
			return
		}
		log.Printf("api: chatbot lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch analytics")
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			days = n
		}
	}

	analytics, err := h.Store.SentimentAnalytics(r.Context(), chatbotID, days)
	if err != nil {
		log.Printf("api: analytics query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch analytics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_conversations":    analytics.TotalConversations,
		"sentiment_distribution": analytics.SentimentDistribution,
		"period_days":            analytics.PeriodDays,
	})
}
