package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
)

// Client talks to the OpenAI embedding and chat completion endpoints.
type Client struct {
	api     openai.Client
	cfg     Config
	enabled bool
}

// New creates a client from config. An offline config still yields a usable
// client; every call on it reports ErrUnavailable.
func New(cfg Config) *Client {
	enabled := !cfg.Offline && cfg.APIKey != ""

	var opts []option.RequestOption
	if enabled {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	return &Client{
		api:     openai.NewClient(opts...),
		cfg:     cfg,
		enabled: enabled,
	}
}

// Dimension returns the configured embedding dimension.
func (c *Client) Dimension() int {
	return c.cfg.EmbeddingDim
}

// Embed computes the embedding vector for a text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.enabled {
		return nil, ErrUnavailable
	}

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
	})
	if err != nil {
		return nil, errors.WithMessage(ErrUnavailable, err.Error())
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.WithMessage(ErrUnavailable, "empty embedding response")
	}

	raw := resp.Data[0].Embedding
	embedding := make([]float32, len(raw))
	for i, v := range raw {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// CompleteChat runs a single system+user completion without tools.
func (c *Client) CompleteChat(ctx context.Context, system, user string, opts Options) (*Response, error) {
	if !c.enabled {
		return nil, ErrUnavailable
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.ChatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	applyOptions(&params, opts)

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.WithMessage(ErrUnavailable, err.Error())
	}

	return parseCompletion(completion)
}

// StartToolConversation opens a tool-calling exchange seeded with a system
// prompt and the user query.
func (c *Client) StartToolConversation(system, user string) ToolConversation {
	return &toolConversation{
		client: c,
		messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
}

type toolConversation struct {
	client   *Client
	messages []openai.ChatCompletionMessageParamUnion
}

func (t *toolConversation) Complete(ctx context.Context, tools []ToolDefinition) (*Response, error) {
	if !t.client.enabled {
		return nil, ErrUnavailable
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(t.client.cfg.ChatModel),
		Messages: t.messages,
	}
	for _, td := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        td.Name,
				Description: openai.String(td.Description),
				Parameters:  openai.FunctionParameters(td.Parameters),
			},
		})
	}

	completion, err := t.client.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.WithMessage(ErrUnavailable, err.Error())
	}
	if len(completion.Choices) == 0 {
		return nil, errors.WithMessage(ErrUnavailable, "empty completion response")
	}

	// Keep the assistant turn, tool calls included, so tool results attach
	// to their originating call ids on the follow-up request.
	t.messages = append(t.messages, completion.Choices[0].Message.ToParam())

	return parseCompletion(completion)
}

func (t *toolConversation) AddToolResult(callID, name string, content string) {
	_ = name // identified by call id on the wire
	t.messages = append(t.messages, openai.ToolMessage(content, callID))
}

func (t *toolConversation) Finish(ctx context.Context) (*Response, error) {
	if !t.client.enabled {
		return nil, ErrUnavailable
	}

	completion, err := t.client.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(t.client.cfg.ChatModel),
		Messages: t.messages,
	})
	if err != nil {
		return nil, errors.WithMessage(ErrUnavailable, err.Error())
	}

	return parseCompletion(completion)
}

func applyOptions(params *openai.ChatCompletionNewParams, opts Options) {
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens != nil {
		params.MaxTokens = openai.Int(*opts.MaxTokens)
	}
}

func parseCompletion(completion *openai.ChatCompletion) (*Response, error) {
	if len(completion.Choices) == 0 {
		return nil, errors.WithMessage(ErrUnavailable, "empty completion response")
	}

	choice := completion.Choices[0]
	resp := &Response{
		Content:      choice.Message.Content,
		Model:        completion.Model,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return resp, nil
}
