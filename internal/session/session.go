// Package session orchestrates tool-calling rounds: it hands the completion
// model the tool catalog, executes the calls the model requests against the
// registry server, and feeds results back for a final answer.
package session

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/nextrun/augment/internal/domain"
	"github.com/nextrun/augment/internal/tool"
	"github.com/nextrun/augment/pkg/llm"
	"github.com/nextrun/augment/pkg/log"
)

const defaultSystemPrompt = `You are an AI assistant with the ability to use external tools.
Based on the user's request, you can call tools to help answer their question.
If a tool call is needed, please use the provided tools.`

// noToolsResponse is returned when discovery yields an empty catalog.
const noToolsResponse = "No tools available from MCP server"

// ToolClient is the registry access the session needs.
type ToolClient interface {
	ListTools(ctx context.Context) ([]tool.Definition, error)
	CallTool(ctx context.Context, name string, params map[string]any) (any, error)
}

// Conversations opens tool-calling exchanges with the completion service.
type Conversations interface {
	StartToolConversation(system, user string) llm.ToolConversation
}

// Session runs tool-calling rounds against one tool server.
type Session struct {
	logger *slog.Logger
	tools  ToolClient
	llm    Conversations
}

// NewSession creates a session over the given tool client and completion
// service.
func NewSession(tools ToolClient, conversations Conversations) *Session {
	return &Session{
		logger: log.Logger("session"),
		tools:  tools,
		llm:    conversations,
	}
}

// Run processes one query. Requested tool calls execute sequentially in
// request order, each result is appended to the transcript tagged by its
// originating call, and one follow-up completion produces the final answer.
func (s *Session) Run(ctx context.Context, query, systemPrompt string) (*domain.SessionResult, error) {
	catalog, err := s.tools.ListTools(ctx)
	if err != nil {
		s.logger.Warn("tool discovery failed", "error", err)
		catalog = nil
	}
	if len(catalog) == 0 {
		return &domain.SessionResult{
			Response:    noToolsResponse,
			ToolCalls:   []domain.ToolCall{},
			ToolResults: []domain.ToolResult{},
		}, nil
	}

	defs := make([]llm.ToolDefinition, 0, len(catalog))
	for _, t := range catalog {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}

	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	conversation := s.llm.StartToolConversation(systemPrompt, query)
	resp, err := conversation.Complete(ctx, defs)
	if err != nil {
		return nil, errors.WithMessage(err, "completion with tools")
	}

	if len(resp.ToolCalls) == 0 {
		return &domain.SessionResult{
			Response:    resp.Content,
			ToolCalls:   []domain.ToolCall{},
			ToolResults: []domain.ToolResult{},
		}, nil
	}

	calls, results := s.executeCalls(ctx, conversation, resp.ToolCalls)

	final, err := conversation.Finish(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "final completion")
	}

	s.logger.Info("session completed", "query", query, "tool_calls", len(calls))
	return &domain.SessionResult{
		Response:    final.Content,
		ToolCalls:   calls,
		ToolResults: results,
	}, nil
}

// executeCalls runs the requested calls in order. A failed call becomes a
// structured error result and the round continues; results keep request
// order.
func (s *Session) executeCalls(ctx context.Context, conversation llm.ToolConversation, requested []llm.ToolCall) ([]domain.ToolCall, []domain.ToolResult) {
	calls := make([]domain.ToolCall, 0, len(requested))
	results := make([]domain.ToolResult, 0, len(requested))

	for _, tc := range requested {
		args := map[string]any{}
		var result any

		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			result = map[string]any{"error": "invalid arguments: " + err.Error(), "success": false}
		} else if value, err := s.tools.CallTool(ctx, tc.Name, args); err != nil {
			s.logger.Warn("tool call failed", "name", tc.Name, "error", err)
			result = map[string]any{"error": err.Error(), "success": false}
		} else {
			result = value
		}

		calls = append(calls, domain.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: args})
		results = append(results, domain.ToolResult{Name: tc.Name, Arguments: args, Result: result})

		content, err := json.Marshal(result)
		if err != nil {
			content = []byte(`{"error":"unserializable tool result"}`)
		}
		conversation.AddToolResult(tc.ID, tc.Name, string(content))
	}

	return calls, results
}
