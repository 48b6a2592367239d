package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/spec-kit/triage-service/internal/config"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

const classifySystemPrompt = "You are a support ticket triage assistant. " +
	"Respond with a single JSON object and nothing else."

const generateSystemPrompt = "You are a support agent drafting a reply to a customer. " +
	"Respond with the reply text only."

// OpenAIClient implements TextCompleter over the OpenAI chat completions API.
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
	cfg    config.LLMConfig
}

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  openai.ChatModel(cfg.Model),
		cfg:    cfg,
	}
}

// Classify requests a JSON-object completion for triage classification.
func (c *OpenAIClient) Classify(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifySystemPrompt),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0),
	}
	return c.complete(ctx, params)
}

// Generate requests a free-text completion for draft generation.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(generateSystemPrompt),
			openai.UserMessage(prompt),
		},
	}
	return c.complete(ctx, params)
}

func (c *OpenAIClient) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", mapAPIError(err)
	}
	if len(completion.Choices) == 0 {
		return "", apperrors.NewMalformedResponse("completion returned no choices", nil)
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", apperrors.NewMalformedResponse("completion returned empty content", nil)
	}
	return content, nil
}

func mapAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return apperrors.NewRateLimited("model rate limit exceeded", err)
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return apperrors.NewTransientFailure("model service unavailable", err)
		default:
			return apperrors.NewTransientFailure("model request failed", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTransientFailure("model request timed out", err)
	}
	return apperrors.NewTransientFailure("model request failed", err)
}
