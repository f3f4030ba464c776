package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"wira/internal/auth"
	"wira/internal/store"
)

type profileDTO struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     *string   `json:"full_name"`
	BusinessName *string   `json:"business_name"`
	Industry     *string   `json:"industry"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func profileToDTO(p store.UserProfile) profileDTO {
	return profileDTO{
		ID:           p.ID,
		Email:        p.Email,
		FullName:     p.FullName,
		BusinessName: p.BusinessName,
		Industry:     p.Industry,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// handleCreateProfile records the caller's profile under their verified
// identity. Identity and email come from the token, never from the body.
func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req struct {
		FullName     *string `json:"full_name"`
		BusinessName *string `json:"business_name"`
		Industry     *string `json:"industry"`
	}
	if err := decodeValidated(r.Body, profileSchema, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.Store.CreateUserProfile(r.Context(), store.UserProfile{
		ID:           principal.UserID,
		Email:        principal.Email,
		FullName:     req.FullName,
		BusinessName: req.BusinessName,
		Industry:     req.Industry,
	})
	if err != nil {
		log.Printf("api: create profile failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}
	writeJSON(w, http.StatusCreated, profileToDTO(profile))
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	profile, err := h.Store.GetUserProfile(r.Context(), principal.UserID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		log.Printf("api: get profile failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch profile")
		return
	}
	writeJSON(w, http.StatusOK, profileToDTO(profile))
}
