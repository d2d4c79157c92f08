package domain

import (
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Document is one embedded entry in the knowledge base. Documents are
// append-only; once written they are never mutated, only cleared together
// with the whole collection.
type Document struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Title returns the document title from metadata, or empty string.
func (d *Document) Title() string {
	if d.Metadata == nil {
		return ""
	}
	if title, ok := d.Metadata["title"].(string); ok {
		return title
	}
	return ""
}

// SearchResult pairs a document with its similarity to a query. Computed per
// query, never persisted.
type SearchResult struct {
	Document   Document `json:"document"`
	Similarity float64  `json:"similarity"`
}

// Message is one entry in a completion transcript.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// TokenUsage records completion token counts.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// CompletionMeta carries raw completion metadata for inspection.
type CompletionMeta struct {
	Model        string     `json:"model"`
	FinishReason string     `json:"finish_reason"`
	Usage        TokenUsage `json:"usage"`
}

// Conversation records everything exchanged with the completion service for
// one query, including the system prompt. Fallback mode fabricates an
// equivalent shape so callers can always inspect the trace.
type Conversation struct {
	SystemPrompt string         `json:"system_prompt"`
	Messages     []Message      `json:"messages"`
	RawResponse  CompletionMeta `json:"raw_response"`
}

// QueryResult is the outcome of one retrieval-augmented query. Sources always
// lists exactly the documents used to build Context.
type QueryResult struct {
	Question     string         `json:"question"`
	Answer       string         `json:"answer"`
	Context      string         `json:"context"`
	Sources      []SearchResult `json:"sources"`
	Conversation Conversation   `json:"conversation"`
}

// ToolCall is one tool invocation requested by the completion model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult pairs a requested call with the registry's answer, reported in
// the original request order.
type ToolResult struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result"`
}

// SessionResult is the outcome of one tool-calling round.
type SessionResult struct {
	Response    string       `json:"response"`
	ToolCalls   []ToolCall   `json:"tool_calls"`
	ToolResults []ToolResult `json:"tool_results"`
}

// MemoryRecord is one entry in the conversation memory store.
type MemoryRecord struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Type      string         `json:"type"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}
