package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"hatitenang-backend/internal/models"
)

// OpenAIClient is the ModelClient backed by an OpenAI-compatible Chat Completions API.
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float64
	// strictSchema sends json_schema response formats. Compatible gateways
	// such as Groq only get json_object.
	strictSchema bool
}

func NewOpenAIClient(apiKey, baseURL, model string, temperature float64) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// No retries: a failed call goes straight to the fallback path.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIClient{
		client:       openai.NewClient(opts...),
		model:        model,
		temperature:  temperature,
		strictSchema: baseURL == "",
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    openAIMessages(req),
		Temperature: openai.Float(c.temperature),
	}

	if req.Format == FormatJSON {
		params.ResponseFormat = c.responseFormat(req)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Err: fmt.Errorf("openai chat: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: c.Name(), Err: errors.New("no choices in response")}
	}

	slog.DebugContext(ctx, "llm chat completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
	)

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", &ProviderError{Provider: c.Name(), Err: errors.New("empty completion")}
	}
	return content, nil
}

func (c *OpenAIClient) responseFormat(req CompletionRequest) openai.ChatCompletionNewParamsResponseFormatUnion {
	if c.strictSchema && req.Schema != nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}
}

func openAIMessages(req CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, turn := range req.Turns {
		if turn.Role == models.RoleModel {
			messages = append(messages, openai.AssistantMessage(turn.Text))
		} else {
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}
	return messages
}
