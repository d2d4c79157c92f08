// Package rag implements the retrieval-augmented generation pipeline: top-k
// retrieval, grounded completion, and a deterministic local answer path when
// the completion service is unreachable.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nextrun/augment/internal/domain"
	"github.com/nextrun/augment/pkg/llm"
	"github.com/nextrun/augment/pkg/log"
)

const (
	// DefaultTopK is the retrieval depth when the caller does not choose one.
	DefaultTopK = 3

	// minStoreSize is the document count below which the store is considered
	// cold and the backup corpus grounds the answer instead.
	minStoreSize = 3

	// uncertainSimilarity is the score below which the fallback answer hedges
	// instead of quoting its closest source.
	uncertainSimilarity = 0.5

	fallbackModel = "local-fallback"
)

const systemPromptTemplate = `You are an AI assistant that answers questions based on the provided context.

IMPORTANT INSTRUCTIONS:
1. Base your answers ONLY on the information provided in the context below
2. If the context contains the information, provide a comprehensive answer
3. Include specific details from the context to support your answer
4. If the context doesn't contain relevant information to answer the question,
   state that you don't have sufficient information
5. Do NOT make up information that isn't in the context

CONTEXT:
%s`

// Retriever is the slice of the knowledge store the pipeline depends on.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) []domain.SearchResult
	Count() int
}

// Completer runs a single grounded completion.
type Completer interface {
	CompleteChat(ctx context.Context, system, user string, opts llm.Options) (*llm.Response, error)
}

// Pipeline answers questions grounded in retrieved documents. Once a
// completion failure switches it to fallback mode it stays there — avoiding
// repeated slow timeouts against a known-down service — until Reset.
type Pipeline struct {
	logger    *slog.Logger
	retriever Retriever
	completer Completer

	mu       sync.Mutex
	fallback bool
}

// NewPipeline creates a pipeline. With offline set it starts in fallback mode
// and never touches the completion service.
func NewPipeline(retriever Retriever, completer Completer, offline bool) *Pipeline {
	return &Pipeline{
		logger:    log.Logger("rag"),
		retriever: retriever,
		completer: completer,
		fallback:  offline,
	}
}

// Reset clears fallback mode so the next query tries the completion service
// again.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.fallback = false
	p.mu.Unlock()
	p.logger.Info("fallback mode reset")
}

// Query answers a question from retrieved context. Sources always lists
// exactly the documents that grounded the answer, and the conversation trace
// is present even in fallback mode.
func (p *Pipeline) Query(ctx context.Context, question string, topK int) (*domain.QueryResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	sources := p.retrieve(ctx, question, topK)
	contextText := buildContext(sources)
	systemPrompt := fmt.Sprintf(systemPromptTemplate, contextText)

	result := &domain.QueryResult{
		Question: question,
		Context:  contextText,
		Sources:  sources,
	}

	if p.inFallback() {
		p.completeOffline(result, systemPrompt)
		return result, nil
	}

	temperature := 0.3
	maxTokens := int64(500)
	resp, err := p.completer.CompleteChat(ctx, systemPrompt, question, llm.Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		p.logger.Warn("completion failed, switching to fallback mode", "error", err)
		p.enterFallback()
		p.completeOffline(result, systemPrompt)
		return result, nil
	}

	result.Answer = resp.Content
	result.Conversation = domain.Conversation{
		SystemPrompt: systemPrompt,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: systemPrompt},
			{Role: domain.RoleUser, Content: question},
			{Role: domain.RoleAssistant, Content: resp.Content},
		},
		RawResponse: domain.CompletionMeta{
			Model:        resp.Model,
			FinishReason: resp.FinishReason,
			Usage: domain.TokenUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		},
	}

	p.logger.Info("query answered",
		"question", question,
		"sources", len(sources),
		"tokens", resp.Usage.TotalTokens,
	)
	return result, nil
}

// retrieve picks real search results, or the backup corpus when the store is
// too cold to ground an answer.
func (p *Pipeline) retrieve(ctx context.Context, question string, topK int) []domain.SearchResult {
	if count := p.retriever.Count(); count < minStoreSize {
		p.logger.Warn("knowledge base too small, using backup corpus", "count", count)
		return selectBackup(question)
	}
	return p.retriever.Search(ctx, question, topK)
}

func (p *Pipeline) inFallback() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fallback
}

func (p *Pipeline) enterFallback() {
	p.mu.Lock()
	p.fallback = true
	p.mu.Unlock()
}

// completeOffline fills the result with the deterministic local answer and a
// fabricated trace of the same shape a live completion produces.
func (p *Pipeline) completeOffline(result *domain.QueryResult, systemPrompt string) {
	answer := fallbackAnswer(result.Sources)
	result.Answer = answer
	result.Conversation = domain.Conversation{
		SystemPrompt: systemPrompt,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: systemPrompt},
			{Role: domain.RoleUser, Content: result.Question},
			{Role: domain.RoleAssistant, Content: answer},
		},
		RawResponse: domain.CompletionMeta{
			Model:        fallbackModel,
			FinishReason: "stop",
		},
	}
}

// fallbackAnswer generates the offline-mode reply from the retrieved sources.
func fallbackAnswer(sources []domain.SearchResult) string {
	if len(sources) == 0 {
		return "I don't have any information on that topic. (Offline mode: the completion service is unavailable and no relevant documents were found.)"
	}

	top := sources[0]
	title := top.Document.Title()
	if title == "" {
		title = top.Document.ID
	}

	if top.Similarity < uncertainSimilarity {
		return fmt.Sprintf(
			"(Offline mode) I'm not confident I have relevant information. The closest document I found is %q, but its relevance is low (%.2f).",
			title, top.Similarity,
		)
	}

	return fmt.Sprintf("(Offline mode: answering directly from the top source %q.)\n\n%s", title, top.Document.Text)
}

// buildContext concatenates retrieved documents into the grounding context:
// per document a title header, a relevance annotation, then the text, blocks
// separated by blank lines.
func buildContext(sources []domain.SearchResult) string {
	if len(sources) == 0 {
		return "No relevant documents found in knowledge base."
	}

	parts := make([]string, 0, len(sources))
	for i, source := range sources {
		title := source.Document.Title()
		if title == "" {
			title = fmt.Sprintf("Document %d", i+1)
		}
		parts = append(parts, fmt.Sprintf("### %s (Relevance: %.2f)\n%s",
			title, source.Similarity, source.Document.Text))
	}

	return "\n\n" + strings.Join(parts, "\n\n")
}
