package main

import (
	"context"
	"encoding/json"
	"net/http"

	auth "github.com/niyiment/vaccination-auth"
	"github.com/niyiment/vaccination-auth/internal/observability"
	"github.com/niyiment/vaccination-auth/middleware"
)

const maxBodyBytes = 1 << 20

type handler struct {
	engine *auth.Engine
	logger *observability.Logger
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	Identifier string `json:"identifier"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.engine.Register(requestContext(r), auth.RegisterRequest{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       account.ID,
		"username": account.Username,
		"email":    account.Email,
		"roles":    account.Roles,
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.engine.Login(requestContext(r), req.Identifier, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.engine.Refresh(requestContext(r), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.Logout(requestContext(r), req.Identifier); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       claims.UserID,
		"username": claims.Subject,
		"email":    claims.Email,
		"roles":    claims.Roles,
	})
}

func (h *handler) unlock(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.UnlockAccount(requestContext(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

func (h *handler) revokeSessions(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RevokeAllSessions(requestContext(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sessions_revoked"})
}

func (h *handler) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Metrics().Snapshot())
}

// requestContext enriches the request context with audit metadata.
func requestContext(r *http.Request) context.Context {
	ctx := auth.WithClientIP(r.Context(), observability.ClientIP(r))
	if ua := r.UserAgent(); ua != "" {
		ctx = auth.WithUserAgent(ctx, ua)
	}
	return ctx
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch auth.Kind(err) {
	case auth.KindInvalidCredentials, auth.KindInvalidRefreshToken,
		auth.KindTokenMalformed, auth.KindTokenExpired,
		auth.KindTokenBadSignature, auth.KindTokenUnsupported:
		status = http.StatusUnauthorized
	case auth.KindAccountLocked:
		status = http.StatusLocked
	case auth.KindAccountDisabled:
		status = http.StatusForbidden
	case auth.KindDuplicateAccount:
		status = http.StatusConflict
	case auth.KindNotFound:
		status = http.StatusNotFound
	case auth.KindTransient:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": auth.Kind(err).String()})
}
