package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Ard-Skelling/autogen/internal/auth"
)

// TokenHandler exchanges an API key for a short-lived access token.
type TokenHandler struct {
	keys   *auth.APIKeyService
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewTokenHandler(keys *auth.APIKeyService, tokens *auth.TokenService, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{
		keys:   keys,
		tokens: tokens,
		logger: logger,
	}
}

type tokenRequest struct {
	APIKey string `json:"apiKey"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

// HandleToken verifies the presented API key and issues a JWT.
//
// HTTP: POST /api/token
// REQUEST BODY: {"apiKey":"..."}
func (h *TokenHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_body",
			Message: "request body must be valid JSON",
		})
		return
	}

	if err := h.keys.Verify(req.APIKey); err != nil {
		// Same response for wrong and empty keys, nothing to enumerate.
		h.logger.Warn("rejected API key", slog.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "invalid API key",
		})
		return
	}

	token, err := h.tokens.Generate("api-client")
	if err != nil {
		h.logger.Error("failed to issue token", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresIn: int(auth.TokenLifetime.Seconds()),
	})
}
