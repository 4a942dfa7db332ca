package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Chat roles as sent by the front-end.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Reply envelope types.
const (
	ReplyStandard   = "standard"
	ReplyEscalation = "escalation"
)

// ChatTurn represents a single message in a conversation.
type ChatTurn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// UnmarshalJSON accepts the text under "text", or under Gemini-style "parts"
// given either as a plain string or as a list of {"text": ...} objects.
func (t *ChatTurn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role  string          `json:"role"`
		Text  *string         `json:"text"`
		Parts json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Role = raw.Role
	t.Text = ""
	if raw.Text != nil {
		t.Text = *raw.Text
		return nil
	}
	if len(raw.Parts) == 0 || string(raw.Parts) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw.Parts, &single); err == nil {
		t.Text = single
		return nil
	}

	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw.Parts, &parts); err != nil {
		return fmt.Errorf("parts must be a string or a list of {text} objects")
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		texts = append(texts, p.Text)
	}
	t.Text = strings.Join(texts, "\n")
	return nil
}

// AnalyzeStressRequest is the payload of POST /analyze-stress.
type AnalyzeStressRequest struct {
	Message string `json:"message"`
}

// AnalyzeStressResponse carries the stress delta for the caller to apply.
type AnalyzeStressResponse struct {
	StressChange int `json:"stressChange"`
}

// GenerateResponseRequest is the payload of POST /generate-response.
type GenerateResponseRequest struct {
	ChatHistory        []ChatTurn `json:"chatHistory"`
	CurrentStressScore int        `json:"currentStressScore"`
}

// ReplyEnvelope is the next conversational turn.
type ReplyEnvelope struct {
	Type    string `json:"type"` // "standard" | "escalation"
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
