package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Ard-Skelling/autogen/internal/service"
)

// RunHandler serves the recorded run history.
type RunHandler struct {
	svc    *service.ExecutionService
	logger *slog.Logger
}

func NewRunHandler(svc *service.ExecutionService, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		svc:    svc,
		logger: logger,
	}
}

// HandleList returns recorded runs, newest first.
//
// HTTP: GET /api/runs?limit=20&offset=0
func (h *RunHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	runs, err := h.svc.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

// HandleGet returns a single recorded run.
//
// HTTP: GET /api/runs/{id}
func (h *RunHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// queryInt parses an integer query parameter, falling back to def when
// the parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
