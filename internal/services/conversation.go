package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"hatitenang-backend/internal/logger"
	"hatitenang-backend/internal/models"
)

// EscalationThreshold is the stress score from which replies are tagged as escalation.
const EscalationThreshold = 75

// FallbackReplies are served when the provider cannot produce a reply.
var FallbackReplies = []string{
	"Aku mengerti.",
	"Terima kasih sudah berbagi.",
	"Itu pasti terasa berat ya.",
	"Aku di sini mendengarkan.",
	"Perasaanmu itu valid.",
}

// PickFunc returns an index in [0, n).
type PickFunc func(n int) int

type ConversationResponder struct {
	client   ModelClient
	recorder UsageRecorder
	pick     PickFunc
}

// NewConversationResponder builds a responder. A nil pick uses math/rand/v2.
func NewConversationResponder(client ModelClient, recorder UsageRecorder, pick PickFunc) *ConversationResponder {
	if recorder == nil {
		recorder = LogRecorder{}
	}
	if pick == nil {
		pick = rand.IntN
	}
	return &ConversationResponder{
		client:   client,
		recorder: recorder,
		pick:     pick,
	}
}

// ReplyType tags a reply purely from the caller's stress score.
func ReplyType(score int) string {
	if score >= EscalationThreshold {
		return models.ReplyEscalation
	}
	return models.ReplyStandard
}

// Respond produces the next reply for history. Only invalid input is an error;
// provider failures yield a standard reply drawn from FallbackReplies.
func (c *ConversationResponder) Respond(ctx context.Context, history []models.ChatTurn, currentScore int) (models.ReplyEnvelope, error) {
	if len(history) == 0 {
		return models.ReplyEnvelope{}, &ValidationError{Message: "Chat history must not be empty"}
	}

	turns := make([]models.ChatTurn, 0, len(history))
	for i, turn := range history {
		if turn.Role != models.RoleUser && turn.Role != models.RoleModel {
			return models.ReplyEnvelope{}, &ValidationError{
				Message: fmt.Sprintf("chatHistory[%d].role must be %q or %q", i, models.RoleUser, models.RoleModel),
			}
		}
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		turns = append(turns, turn)
	}
	if len(turns) == 0 {
		return models.ReplyEnvelope{}, &ValidationError{Message: "Chat history must contain at least one message"}
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "conversation"})
	start := time.Now()
	reply, err := c.client.Complete(ctx, CompletionRequest{
		SystemPrompt: buildConversationPrompt(currentScore),
		Turns:        turns,
		Format:       FormatText,
	})
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = &ProviderError{Provider: c.client.Name(), Err: errors.New("empty reply")}
	}

	envelope := models.ReplyEnvelope{Type: ReplyType(currentScore), Message: reply}
	outcome := models.OutcomeOK
	if err != nil {
		slog.WarnContext(ctx, "conversation fell back: provider call failed",
			"error", err,
			"turns", len(turns),
		)
		envelope = models.ReplyEnvelope{Type: models.ReplyStandard, Message: c.fallback()}
		outcome = models.OutcomeFallback
	}

	slog.InfoContext(ctx, "conversation reply generated",
		"turns", len(turns),
		"stress_score", currentScore,
		"type", envelope.Type,
		"outcome", outcome,
	)

	c.recorder.Record(ctx, models.UsageEvent{
		ID:        uuid.New(),
		Endpoint:  "generate-response",
		Outcome:   outcome,
		Provider:  c.client.Name(),
		LatencyMS: time.Since(start).Milliseconds(),
		CreatedAt: time.Now().UTC(),
	})

	return envelope, nil
}

func (c *ConversationResponder) fallback() string {
	i := c.pick(len(FallbackReplies))
	if i < 0 || i >= len(FallbackReplies) {
		i = 0
	}
	return FallbackReplies[i]
}

func buildConversationPrompt(score int) string {
	var b strings.Builder

	// Persona
	b.WriteString(`You are "Teman Cerita AI", a deeply empathetic, warm and supportive listening companion. `)
	b.WriteString("Your job is to listen, validate the user's feelings and ask gentle reflective questions.\n")
	b.WriteString("Do NOT give advice unless the user explicitly asks for it. Do NOT use numbered lists or bullet points. ")
	b.WriteString("Keep your reply short and make it feel like a natural conversation. Reply in the language the user writes in.\n\n")

	// Score context
	b.WriteString(fmt.Sprintf("Context: the user's current stress level is %d out of 100.\n", score))
	b.WriteString("- If stress is below 40, be supportive and curious.\n")
	b.WriteString("- If stress is between 40 and 75, increase empathy and validate their feelings.\n")
	b.WriteString("- If stress is 75 or above, your reply MUST gently encourage them to consider professional help, without pushing.\n\n")

	b.WriteString("Task: write the reply to the user's latest message.")

	return b.String()
}
