package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/runbox/internal/apperror"
	"github.com/sakif/runbox/internal/executor"
	"github.com/sakif/runbox/internal/service"
)

// ExecuteResponse is the result envelope returned to the caller. Output is
// the program's stdout; Error carries either the program's stderr or an
// orchestrator-level message (compile failure, timeout).
type ExecuteResponse struct {
	ID         string `json:"id"`
	Language   string `json:"language"`
	Status     string `json:"status"`
	Output     string `json:"output"`
	Error      string `json:"error"`
	ExitCode   int    `json:"exitCode"`
	DurationMS int64  `json:"durationMs"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// ExecuteHandler handles code execution requests.
type ExecuteHandler struct {
	runs           *service.RunService
	logger         *slog.Logger
	maxPayloadSize int64
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(runs *service.RunService, maxPayloadSize int64, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		runs:           runs,
		logger:         logger,
		maxPayloadSize: maxPayloadSize,
	}
}

// HandleExecute processes an incoming code execution request.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxPayloadSize)

	var req executor.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "invalid request body"))
		return
	}

	result, err := h.runs.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ExecuteResponse{
		ID:         result.ID,
		Language:   result.Language,
		Status:     string(result.Status),
		Output:     result.Stdout,
		Error:      result.Stderr,
		ExitCode:   result.ExitCode,
		DurationMS: result.Duration.Milliseconds(),
		Truncated:  result.Truncated,
	}
	writeJSON(w, http.StatusOK, resp)
}
