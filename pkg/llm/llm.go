// Package llm wraps the OpenAI API for the two external services the core
// depends on: text embeddings and chat completions (with optional tool use).
//
// A Client constructed in offline mode, or without an API key, reports
// ErrUnavailable from every call instead of reaching the network; callers
// degrade to their fallback paths.
package llm

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnavailable marks an embedding or completion transport failure. Callers
// check for it with errors.Is and switch to degraded mode; it is never fatal.
var ErrUnavailable = errors.New("llm service unavailable")

// Config holds OpenAI client configuration
type Config struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	ChatModel      string `toml:"chat_model"`
	EmbeddingModel string `toml:"embedding_model"`
	EmbeddingDim   int    `toml:"embedding_dim"`
	Offline        bool   `toml:"offline"` // true forces fallback mode, no API calls
}

// Validate checks client configuration and fills defaults
func (c *Config) Validate() error {
	if c.ChatModel == "" {
		c.ChatModel = "gpt-3.5-turbo"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "text-embedding-ada-002"
	}
	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = 1536
	}
	if !c.Offline && c.APIKey == "" {
		return fmt.Errorf("api_key is required unless offline is set")
	}
	return nil
}

// ToolDefinition describes one callable tool offered to the completion model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one tool invocation requested by the model. Arguments is the
// raw JSON object produced by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Usage records token counts for one completion.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Response is the parsed outcome of one completion call.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	Model        string
	FinishReason string
	Usage        Usage
}

// Options tunes a single completion call.
type Options struct {
	Temperature *float64
	MaxTokens   *int64
}

// ToolConversation is a multi-turn completion exchange where the model may
// request tool calls and receive their results before producing a final
// answer. Implementations keep the full transcript internally.
type ToolConversation interface {
	// Complete sends the transcript with the given tool catalog and records
	// the assistant reply (including any requested tool calls).
	Complete(ctx context.Context, tools []ToolDefinition) (*Response, error)
	// AddToolResult appends a tool result message tied to its originating call.
	AddToolResult(callID, name, content string)
	// Finish sends the transcript once more, without tools, for the final answer.
	Finish(ctx context.Context) (*Response, error)
}
