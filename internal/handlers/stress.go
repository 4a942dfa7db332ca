package handlers

import (
	"context"
	"net/http"

	"hatitenang-backend/internal/models"
)

type stressAnalyzer interface {
	Analyze(ctx context.Context, message string) (int, error)
}

type StressHandler struct {
	analyzer stressAnalyzer
}

func NewStressHandler(analyzer stressAnalyzer) *StressHandler {
	return &StressHandler{analyzer: analyzer}
}

// Analyze handles POST /analyze-stress.
func (h *StressHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeStressRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	delta, err := h.analyzer.Analyze(r.Context(), req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.AnalyzeStressResponse{StressChange: delta})
}
