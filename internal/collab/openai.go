package collab

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/trika-ai/trika-engine/pkg/schema"
)

const defaultCompletionModel = "gpt-4o-mini"

// OpenAICompleter implements Completer using the OpenAI Chat Completions API.
// A custom base URL makes it work against any OpenAI-compatible provider.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

// NewOpenAICompleter creates a completer. model is the default used when a
// request does not name one; baseURL may be empty for the official API.
func NewOpenAICompleter(apiKey, model, baseURL string) *OpenAICompleter {
	if model == "" {
		model = defaultCompletionModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompleter{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Complete sends a chat completion request and returns the assistant text.
func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution,
			"completion request failed: %s", err.Error()).WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return "", schema.NewError(schema.ErrCodeExecution, "completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

var _ Completer = (*OpenAICompleter)(nil)
