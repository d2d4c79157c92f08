// Package knowledge implements the embedded document store: a flat CSV
// collection with linear-scan cosine similarity search.
//
// The persisted file is the only shared mutable resource. Each add rewrites
// the whole collection, so concurrent writers from separate processes can
// lose updates; callers needing concurrent writers must serialize externally.
package knowledge

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nextrun/augment/internal/domain"
	"github.com/nextrun/augment/pkg/log"
)

// Embedder produces fixed-length embedding vectors via the external service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Config holds knowledge store configuration
type Config struct {
	DataDir string `toml:"data_dir"`
	File    string `toml:"file"`
}

// Validate checks store configuration and fills defaults
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.File == "" {
		c.File = "knowledge_base.csv"
	}
	return nil
}

// Store owns the persisted document collection.
type Store struct {
	logger   *slog.Logger
	embedder Embedder
	path     string

	mu sync.Mutex // serializes read-modify-write cycles within this process
}

// NewStore creates a store persisting to cfg.DataDir/cfg.File. The data
// directory is created if missing.
func NewStore(cfg Config, embedder Embedder) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid config")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, errors.WithMessage(err, "create data dir")
	}

	return &Store{
		logger:   log.Logger("knowledge"),
		embedder: embedder,
		path:     filepath.Join(cfg.DataDir, cfg.File),
	}, nil
}

// Add embeds text, appends a document, and rewrites the collection. An
// embedding service outage degrades the document to a zero vector instead of
// failing the insert.
func (s *Store) Add(ctx context.Context, text string, metadata map[string]any) (string, error) {
	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("embedding failed, storing zero vector", "error", err)
		embedding = make([]float32, s.embedder.Dimension())
	}

	doc := domain.Document{
		ID:        fmt.Sprintf("doc_%s", uuid.New().String()[:8]),
		Text:      text,
		Metadata:  metadata,
		Embedding: embedding,
		CreatedAt: time.Now(),
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, skipped := s.load()
	if skipped > 0 {
		s.logger.Warn("skipped malformed records during load", "count", skipped)
	}
	docs = append(docs, doc)

	if err := s.save(docs); err != nil {
		return "", errors.WithMessage(err, "persist collection")
	}

	s.logger.Info("document added", "id", doc.ID, "total", len(docs))
	return doc.ID, nil
}

// Search embeds the query once and ranks every stored document by cosine
// similarity, descending, ties kept in storage order. It never fails: an
// absent or empty store yields no results, and an embedding outage yields a
// zero query vector (every similarity 0).
func (s *Store) Search(ctx context.Context, query string, topK int) []domain.SearchResult {
	if topK <= 0 {
		return nil
	}

	s.mu.Lock()
	docs, skipped := s.load()
	s.mu.Unlock()

	if skipped > 0 {
		s.logger.Warn("skipped malformed records during search", "count", skipped)
	}
	if len(docs) == 0 {
		return []domain.SearchResult{}
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, degrading to zero vector", "error", err)
		queryEmbedding = make([]float32, s.embedder.Dimension())
	}

	results := make([]domain.SearchResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, domain.SearchResult{
			Document:   doc,
			Similarity: CosineSimilarity(queryEmbedding, doc.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// ListAll returns a snapshot of the collection with embeddings omitted.
func (s *Store) ListAll() []domain.Document {
	s.mu.Lock()
	docs, skipped := s.load()
	s.mu.Unlock()

	if skipped > 0 {
		s.logger.Warn("skipped malformed records during list", "count", skipped)
	}

	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		doc.Embedding = nil
		out = append(out, doc)
	}
	return out
}

// Count returns the number of readable documents.
func (s *Store) Count() int {
	s.mu.Lock()
	docs, _ := s.load()
	s.mu.Unlock()
	return len(docs)
}

// Clear deletes the persisted collection. Subsequent searches behave as on an
// empty store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.WithMessage(err, "remove collection")
	}
	s.logger.Info("collection cleared")
	return nil
}

var csvHeader = []string{"id", "text", "metadata", "embedding", "created_at"}

// load reads the collection. Unreadable rows are skipped and counted, never
// propagated; an absent file is an empty collection.
func (s *Store) load() (docs []domain.Document, skipped int) {
	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("open collection failed", "error", err)
		}
		return nil, 0
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		s.logger.Error("read collection failed", "error", err)
		return nil, 0
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		doc, err := parseRow(row)
		if err != nil {
			skipped++
			s.logger.Warn("malformed record skipped", "row", i, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped
}

func parseRow(row []string) (domain.Document, error) {
	var doc domain.Document

	if len(row) != len(csvHeader) {
		return doc, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}
	if row[0] == "" {
		return doc, fmt.Errorf("empty id")
	}

	doc.ID = row[0]
	doc.Text = row[1]

	doc.Metadata = map[string]any{}
	if row[2] != "" {
		if err := json.Unmarshal([]byte(row[2]), &doc.Metadata); err != nil {
			return doc, fmt.Errorf("metadata: %w", err)
		}
	}

	if row[3] != "" {
		if err := json.Unmarshal([]byte(row[3]), &doc.Embedding); err != nil {
			return doc, fmt.Errorf("embedding: %w", err)
		}
	}

	createdAt, err := time.Parse(time.RFC3339Nano, row[4])
	if err != nil {
		return doc, fmt.Errorf("created_at: %w", err)
	}
	doc.CreatedAt = createdAt

	return doc, nil
}

func (s *Store) save(docs []domain.Document) error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		embedding, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding for %s: %w", doc.ID, err)
		}

		row := []string{
			doc.ID,
			doc.Text,
			string(metadata),
			string(embedding),
			doc.CreatedAt.Format(time.RFC3339Nano),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// CosineSimilarity computes normalized dot-product similarity. Zero-norm
// vectors and mismatched lengths yield 0 rather than an error.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
