package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/nextrun/augment/internal/domain"
	"github.com/nextrun/augment/internal/knowledge"
	"github.com/nextrun/augment/internal/memory"
	"github.com/nextrun/augment/internal/rag"
	"github.com/nextrun/augment/internal/tool"
	"github.com/nextrun/augment/pkg/log"
)

// Handler handles HTTP API requests
type Handler struct {
	logger   *slog.Logger
	registry *tool.Registry
	store    *knowledge.Store
	pipeline *rag.Pipeline
	memories *memory.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(registry *tool.Registry, store *knowledge.Store, pipeline *rag.Pipeline, memories *memory.Store) *Handler {
	return &Handler{
		logger:   log.Logger("http.handler"),
		registry: registry,
		store:    store,
		pipeline: pipeline,
		memories: memories,
	}
}

// Response represents a standard API response for the /api/v1 surface
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Tool discovery and invocation (wire shapes are fixed; clients depend
	// on them directly, without the /api/v1 response envelope)
	mux.HandleFunc("GET /tools", h.ListTools)
	mux.HandleFunc("GET /tools/{name}", h.GetTool)
	mux.HandleFunc("POST /tools/{name}/call", h.CallTool)

	// Knowledge base operations
	mux.HandleFunc("POST /api/v1/documents", h.AddDocument)
	mux.HandleFunc("GET /api/v1/documents", h.ListDocuments)
	mux.HandleFunc("DELETE /api/v1/documents", h.ClearDocuments)
	mux.HandleFunc("POST /api/v1/documents/seed", h.SeedDocuments)

	// Retrieval-augmented queries
	mux.HandleFunc("POST /api/v1/query", h.Query)
	mux.HandleFunc("POST /api/v1/query/reset", h.ResetQuery)

	// Conversation memory
	mux.HandleFunc("POST /api/v1/memories", h.AddMemory)
	mux.HandleFunc("GET /api/v1/memories", h.ListMemories)
	mux.HandleFunc("DELETE /api/v1/memories", h.ClearMemories)

	// Health check
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// ListTools handles GET /tools
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.registry.List())
}

// GetTool handles GET /tools/{name}
func (h *Handler) GetTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	def, ok := h.registry.Get(name)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "tool '" + name + "' not found",
		})
		return
	}
	h.writeJSON(w, http.StatusOK, def)
}

// ToolCallRequest is the body of POST /tools/{name}/call
type ToolCallRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// CallTool handles POST /tools/{name}/call
func (h *Handler) CallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req ToolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.registry.Invoke(r.Context(), name, req.Parameters)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, tool.ErrNotFound) {
			status = http.StatusNotFound
		}
		h.writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// AddDocumentRequest is the body of POST /api/v1/documents
type AddDocumentRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// AddDocument handles POST /api/v1/documents
func (h *Handler) AddDocument(w http.ResponseWriter, r *http.Request) {
	var req AddDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" {
		h.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	id, err := h.store.Add(r.Context(), req.Text, req.Metadata)
	if err != nil {
		h.logger.Error("add document failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"id": id},
	})
}

// ListDocuments handles GET /api/v1/documents
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := h.store.ListAll()
	if docs == nil {
		docs = []domain.Document{}
	}
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    docs,
	})
}

// ClearDocuments handles DELETE /api/v1/documents
func (h *Handler) ClearDocuments(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(); err != nil {
		h.logger.Error("clear documents failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"cleared": "knowledge_base"},
	})
}

// SeedDocuments handles POST /api/v1/documents/seed
func (h *Handler) SeedDocuments(w http.ResponseWriter, r *http.Request) {
	count, err := knowledge.Seed(r.Context(), h.store)
	if err != nil {
		h.logger.Error("seed documents failed", "error", err, "written", count)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]int{"created": count},
	})
}

// QueryRequest is the body of POST /api/v1/query
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// Query handles POST /api/v1/query
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		h.writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := h.pipeline.Query(r.Context(), req.Question, req.TopK)
	if err != nil {
		h.logger.Error("query failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// ResetQuery handles POST /api/v1/query/reset
func (h *Handler) ResetQuery(w http.ResponseWriter, r *http.Request) {
	h.pipeline.Reset()
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"reset": "fallback"},
	})
}

// AddMemoryRequest is the body of POST /api/v1/memories
type AddMemoryRequest struct {
	Content  string         `json:"content"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata"`
}

// AddMemory handles POST /api/v1/memories
func (h *Handler) AddMemory(w http.ResponseWriter, r *http.Request) {
	var req AddMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Content == "" {
		h.writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	id, err := h.memories.Add(req.Content, req.Type, req.Metadata)
	if err != nil {
		h.logger.Error("add memory failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"id": id},
	})
}

// ListMemories handles GET /api/v1/memories
func (h *Handler) ListMemories(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	records := h.memories.List(r.URL.Query().Get("type"), limit)
	if records == nil {
		records = []domain.MemoryRecord{}
	}
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    records,
	})
}

// ClearMemories handles DELETE /api/v1/memories
func (h *Handler) ClearMemories(w http.ResponseWriter, r *http.Request) {
	if err := h.memories.Clear(r.URL.Query().Get("type")); err != nil {
		h.logger.Error("clear memories failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"cleared": "memories"},
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}
