package handlers

import (
	"context"
	"net/http"

	"hatitenang-backend/internal/models"
)

type conversationResponder interface {
	Respond(ctx context.Context, history []models.ChatTurn, currentScore int) (models.ReplyEnvelope, error)
}

type ConversationHandler struct {
	responder conversationResponder
}

func NewConversationHandler(responder conversationResponder) *ConversationHandler {
	return &ConversationHandler{responder: responder}
}

// Generate handles POST /generate-response.
func (h *ConversationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	envelope, err := h.responder.Respond(r.Context(), req.ChatHistory, req.CurrentStressScore)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}
