// Package handler contains the HTTP layer: request parsing, response
// writing, and nothing else. Business rules live in the service layer.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Ard-Skelling/autogen/internal/auth"
	"github.com/Ard-Skelling/autogen/internal/executor"
	"github.com/Ard-Skelling/autogen/internal/service"
)

// ExecuteHandler handles code execution requests.
type ExecuteHandler struct {
	svc    *service.ExecutionService
	logger *slog.Logger
}

func NewExecuteHandler(svc *service.ExecutionService, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		svc:    svc,
		logger: logger,
	}
}

// executeRequest is the request body for POST /api/execute.
type executeRequest struct {
	Blocks []executor.CodeBlock `json:"blocks"`
}

// HandleExecute runs the submitted code blocks and returns the recorded run.
//
// HTTP: POST /api/execute
// REQUEST BODY: {"blocks":[{"language":"python","code":"print(1)"}]}
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_body",
			Message: "request body must be valid JSON",
		})
		return
	}

	subject, _ := auth.SubjectFromContext(r.Context())
	h.logger.Info("execution requested",
		slog.Int("blocks", len(req.Blocks)),
		slog.String("subject", subject),
	)

	run, err := h.svc.Execute(r.Context(), req.Blocks)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}
