package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"hatitenang-backend/internal/models"
)

// GeminiClient is the ModelClient backed by the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	modelName   string
	temperature float32
}

func NewGeminiClient(ctx context.Context, apiKey, modelName string, temperature float32) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		modelName:   modelName,
		temperature: temperature,
	}, nil
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) Close() error {
	return g.client.Close()
}

func (g *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	history, last := geminiContents(req.Turns)
	if last == nil {
		return "", &ProviderError{Provider: g.Name(), Err: errors.New("no turns to send")}
	}

	// A fresh model per call keeps per-request settings out of shared state.
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(g.temperature)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	if req.Format == FormatJSON {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = geminiSchema(req.Schema)
	}

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", &ProviderError{Provider: g.Name(), Err: fmt.Errorf("Gemini API error: %w", err)}
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			slog.WarnContext(ctx, "Gemini candidate did not finish cleanly",
				"candidate", i,
				"finish_reason", cand.FinishReason.String(),
			)
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", &ProviderError{Provider: g.Name(), Err: errors.New("Gemini returned empty text")}
	}
	return text, nil
}

// geminiContents maps turns to Gemini contents. Consecutive turns from the same
// role are merged and leading model turns are dropped, since Gemini expects the
// history to open with the user and alternate. The final user content is split
// off as the message to send.
func geminiContents(turns []models.ChatTurn) (history []*genai.Content, last *genai.Content) {
	var contents []*genai.Content
	for _, turn := range turns {
		role := "user"
		if turn.Role == models.RoleModel {
			role = "model"
		}
		if len(contents) == 0 && role == "model" {
			continue
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.Text(turn.Text))
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(turn.Text)}})
	}

	if len(contents) == 0 {
		return nil, nil
	}

	// Trailing model turns have nothing to answer; drop them.
	for len(contents) > 0 && contents[len(contents)-1].Role == "model" {
		contents = contents[:len(contents)-1]
	}
	if len(contents) == 0 {
		return nil, nil
	}

	return contents[:len(contents)-1], contents[len(contents)-1]
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
