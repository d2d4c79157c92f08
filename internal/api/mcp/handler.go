package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nextrun/augment/internal/tool"
)

// Handler dispatches MCP tool calls to the registry
type Handler struct {
	registry *tool.Registry
}

// NewHandler creates a new MCP handler
func NewHandler(registry *tool.Registry) *Handler {
	return &Handler{
		registry: registry,
	}
}

// Tool describes a tool in the MCP tools/list format
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolCallRequest represents an MCP tool call request
type ToolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResponse represents an MCP tool call response
type ToolCallResponse struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Tools returns the registered tools in MCP format
func (h *Handler) Tools() []Tool {
	defs := h.registry.List()

	tools := make([]Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Parameters,
		})
	}
	return tools
}

// HandleToolCall handles an MCP tool call
func (h *Handler) HandleToolCall(ctx context.Context, req ToolCallRequest) ToolCallResponse {
	var params map[string]any
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &params); err != nil {
			return errorResponse(fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	result, err := h.registry.Invoke(ctx, req.Name, params)
	if err != nil {
		return errorResponse(err.Error())
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(fmt.Sprintf("encode result: %v", err))
	}

	return successResponse(string(data))
}

// Helper functions

func successResponse(text string) ToolCallResponse {
	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
	}
}

func errorResponse(text string) ToolCallResponse {
	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
		IsError: true,
	}
}
