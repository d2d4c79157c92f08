package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextrun/augment/internal/domain"
	"github.com/nextrun/augment/internal/knowledge"
	"github.com/nextrun/augment/pkg/llm"
)

// stubRetriever serves a fixed result set and records the last requested topK.
type stubRetriever struct {
	count    int
	results  []domain.SearchResult
	lastTopK int
}

func (s *stubRetriever) Search(ctx context.Context, query string, topK int) []domain.SearchResult {
	s.lastTopK = topK
	if len(s.results) > topK {
		return s.results[:topK]
	}
	return s.results
}

func (s *stubRetriever) Count() int { return s.count }

// stubCompleter either answers or always fails, counting calls.
type stubCompleter struct {
	answer string
	fail   bool
	calls  int
}

func (s *stubCompleter) CompleteChat(ctx context.Context, system, user string, opts llm.Options) (*llm.Response, error) {
	s.calls++
	if s.fail {
		return nil, errors.WithMessage(llm.ErrUnavailable, "connection refused")
	}
	return &llm.Response{
		Content:      s.answer,
		Model:        "gpt-test",
		FinishReason: "stop",
		Usage:        llm.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}, nil
}

func result(id, title, text string, similarity float64) domain.SearchResult {
	return domain.SearchResult{
		Document: domain.Document{
			ID:       id,
			Text:     text,
			Metadata: map[string]any{"title": title},
		},
		Similarity: similarity,
	}
}

func warmRetriever() *stubRetriever {
	return &stubRetriever{
		count: 12,
		results: []domain.SearchResult{
			result("doc_a", "Augmented LLM Overview", "Augmented LLM systems have four key characteristics.", 0.91),
			result("doc_b", "Retrieval Augmented Generation", "RAG retrieves relevant external knowledge.", 0.77),
			result("doc_c", "Embeddings and Vector Databases", "Embeddings are numerical representations.", 0.64),
		},
	}
}

func TestQueryOnline(t *testing.T) {
	ctx := context.Background()
	retriever := warmRetriever()
	completer := &stubCompleter{answer: "Augmented LLMs combine memory, retrieval, tools, and workflow control."}
	p := NewPipeline(retriever, completer, false)

	res, err := p.Query(ctx, "What are the key concepts of augmented LLMs?", 0)
	require.NoError(t, err)

	assert.Equal(t, "What are the key concepts of augmented LLMs?", res.Question)
	assert.Equal(t, completer.answer, res.Answer)
	assert.Equal(t, DefaultTopK, retriever.lastTopK)
	require.Len(t, res.Sources, 3)
	assert.Equal(t, "Augmented LLM Overview", res.Sources[0].Document.Title())

	// The grounding context lists every source with its relevance.
	assert.Contains(t, res.Context, "### Augmented LLM Overview (Relevance: 0.91)")
	assert.Contains(t, res.Context, "### Embeddings and Vector Databases (Relevance: 0.64)")

	// Full conversation trace.
	conv := res.Conversation
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, domain.RoleSystem, conv.Messages[0].Role)
	assert.Equal(t, domain.RoleUser, conv.Messages[1].Role)
	assert.Equal(t, domain.RoleAssistant, conv.Messages[2].Role)
	assert.Contains(t, conv.SystemPrompt, "IMPORTANT INSTRUCTIONS")
	assert.Contains(t, conv.SystemPrompt, res.Context)
	assert.Equal(t, "gpt-test", conv.RawResponse.Model)
	assert.Equal(t, int64(120), conv.RawResponse.Usage.TotalTokens)
}

func TestQueryHonorsTopK(t *testing.T) {
	ctx := context.Background()
	retriever := warmRetriever()
	p := NewPipeline(retriever, &stubCompleter{answer: "ok"}, false)

	res, err := p.Query(ctx, "embeddings", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, retriever.lastTopK)
	assert.Len(t, res.Sources, 1)
}

func TestQueryFallbackIsSticky(t *testing.T) {
	ctx := context.Background()
	retriever := warmRetriever()
	completer := &stubCompleter{fail: true}
	p := NewPipeline(retriever, completer, false)

	// First query hits the completer, fails, and degrades.
	res, err := p.Query(ctx, "what is rag", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, completer.calls)
	assert.Contains(t, res.Answer, "Offline mode")
	assert.NotEmpty(t, res.Sources, "fallback answers still carry their sources")
	assert.Equal(t, "local-fallback", res.Conversation.RawResponse.Model)
	require.Len(t, res.Conversation.Messages, 3)

	// Subsequent queries stay local; the dead service is not retried.
	completer.fail = false
	res, err = p.Query(ctx, "what is rag", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, completer.calls)
	assert.Contains(t, res.Answer, "Offline mode")

	// Reset re-enables the completion path.
	p.Reset()
	res, err = p.Query(ctx, "what is rag", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, completer.calls)
	assert.NotContains(t, res.Answer, "Offline mode")
}

func TestQueryOfflineFromStart(t *testing.T) {
	ctx := context.Background()
	completer := &stubCompleter{answer: "never seen"}
	p := NewPipeline(warmRetriever(), completer, true)

	res, err := p.Query(ctx, "what is rag", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, completer.calls, "offline pipeline must not touch the completion service")
	assert.Contains(t, res.Answer, "Offline mode")
}

func TestFallbackAnswerShapes(t *testing.T) {
	t.Run("no sources", func(t *testing.T) {
		answer := fallbackAnswer(nil)
		assert.Contains(t, answer, "no relevant documents were found")
	})

	t.Run("low similarity hedges", func(t *testing.T) {
		answer := fallbackAnswer([]domain.SearchResult{
			result("doc_x", "Random Notes", "Unrelated text.", 0.21),
		})
		assert.Contains(t, answer, "not confident")
		assert.Contains(t, answer, "Random Notes")
		assert.Contains(t, answer, "0.21")
		assert.NotContains(t, answer, "Unrelated text.")
	})

	t.Run("high similarity quotes source", func(t *testing.T) {
		answer := fallbackAnswer([]domain.SearchResult{
			result("doc_y", "RAG Basics", "RAG retrieves relevant external knowledge.", 0.83),
		})
		assert.Contains(t, answer, "RAG Basics")
		assert.Contains(t, answer, "RAG retrieves relevant external knowledge.")
	})

	t.Run("untitled source falls back to id", func(t *testing.T) {
		answer := fallbackAnswer([]domain.SearchResult{
			{Document: domain.Document{ID: "doc_z", Text: "text"}, Similarity: 0.9},
		})
		assert.Contains(t, answer, "doc_z")
	})
}

func TestBackupCorpusRouting(t *testing.T) {
	t.Run("small store uses backup corpus", func(t *testing.T) {
		ctx := context.Background()
		retriever := &stubRetriever{count: 2}
		p := NewPipeline(retriever, &stubCompleter{answer: "ok"}, false)

		res, err := p.Query(ctx, "tell me about augmented llm systems", 3)
		require.NoError(t, err)
		require.Len(t, res.Sources, 1)
		assert.Equal(t, "doc_1", res.Sources[0].Document.ID)
		assert.Equal(t, 0.95, res.Sources[0].Similarity)
		assert.Equal(t, 0, retriever.lastTopK, "cold store must not be searched")
	})

	t.Run("keyword clusters", func(t *testing.T) {
		cases := []struct {
			question string
			wantIDs  []string
		}{
			{"what are augmented llm characteristics", []string{"doc_1"}},
			{"how do llm tools work", []string{"doc_1"}},
			{"what agents exist for the law firm", []string{"doc_2"}},
			{"legal document classification", []string{"doc_2"}},
			{"smartadvocate file naming", []string{"doc_3"}},
			{"what is the naming convention", []string{"doc_3"}},
			{"what's the weather like", []string{"doc_1", "doc_2", "doc_3"}},
		}

		for _, tc := range cases {
			t.Run(tc.question, func(t *testing.T) {
				sources := selectBackup(tc.question)
				ids := make([]string, 0, len(sources))
				for _, s := range sources {
					ids = append(ids, s.Document.ID)
				}
				assert.Equal(t, tc.wantIDs, ids)
			})
		}
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		sources := selectBackup("Tell me about SMARTADVOCATE")
		require.Len(t, sources, 1)
		assert.Equal(t, "doc_3", sources[0].Document.ID)
	})
}

func TestBuildContext(t *testing.T) {
	t.Run("empty sources", func(t *testing.T) {
		assert.Equal(t, "No relevant documents found in knowledge base.", buildContext(nil))
	})

	t.Run("untitled documents are numbered", func(t *testing.T) {
		text := buildContext([]domain.SearchResult{
			{Document: domain.Document{ID: "a", Text: "first"}, Similarity: 0.5},
			{Document: domain.Document{ID: "b", Text: "second"}, Similarity: 0.4},
		})
		assert.Contains(t, text, "### Document 1 (Relevance: 0.50)")
		assert.Contains(t, text, "### Document 2 (Relevance: 0.40)")
		assert.Equal(t, 2, strings.Count(text, "###"))
	})
}

// topicEmbedder maps the overview document and questions about it onto one
// axis and everything else onto the other, so ranking over the seeded
// collection is deterministic.
type topicEmbedder struct{}

func (topicEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "four key characteristics") || strings.Contains(lower, "key concepts of augmented llms") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func (topicEmbedder) Dimension() int { return 2 }

func TestQuerySeededCollection(t *testing.T) {
	ctx := context.Background()

	store, err := knowledge.NewStore(knowledge.Config{DataDir: t.TempDir()}, topicEmbedder{})
	require.NoError(t, err)

	count, err := knowledge.Seed(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 12, count)

	p := NewPipeline(store, nil, true)

	res, err := p.Query(ctx, "What are the key concepts of augmented LLMs?", DefaultTopK)
	require.NoError(t, err)
	require.NotEmpty(t, res.Sources)

	top := res.Sources[0]
	assert.Equal(t, "Augmented LLM Overview", top.Document.Title())
	assert.InDelta(t, 1.0, top.Similarity, 1e-6)
	for _, source := range res.Sources[1:] {
		assert.Less(t, source.Similarity, top.Similarity)
	}

	assert.Contains(t, res.Answer, "Augmented LLM Overview")
	assert.Contains(t, res.Context, "### Augmented LLM Overview")
}
