// Package memory implements the conversation memory store: a flat CSV log of
// typed records, listed newest first. It shares the data directory and
// whole-file write model of the knowledge store.
package memory

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
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

// TypeConversation is the default record type.
const TypeConversation = "conversation"

// Config holds memory store configuration
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
		c.File = "conversation_memory.csv"
	}
	return nil
}

// Store owns the persisted memory log.
type Store struct {
	logger *slog.Logger
	path   string

	mu sync.Mutex
}

// NewStore creates a store persisting to cfg.DataDir/cfg.File.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid config")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, errors.WithMessage(err, "create data dir")
	}

	return &Store{
		logger: log.Logger("memory"),
		path:   filepath.Join(cfg.DataDir, cfg.File),
	}, nil
}

// Add appends one memory record and returns its id.
func (s *Store) Add(content, memoryType string, metadata map[string]any) (string, error) {
	if memoryType == "" {
		memoryType = TypeConversation
	}
	record := domain.MemoryRecord{
		ID:        fmt.Sprintf("mem_%s", uuid.New().String()[:8]),
		Content:   content,
		Type:      memoryType,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	records = append(records, record)
	if err := s.save(records); err != nil {
		return "", errors.WithMessage(err, "persist memories")
	}

	s.logger.Info("memory added", "id", record.ID, "type", record.Type)
	return record.ID, nil
}

// List returns up to limit records, newest first, optionally filtered by
// type. A non-positive limit means 10.
func (s *Store) List(memoryType string, limit int) []domain.MemoryRecord {
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	records := s.load()
	s.mu.Unlock()

	filtered := records[:0:0]
	for _, r := range records {
		if memoryType == "" || r.Type == memoryType {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

// Clear removes all memories, or only those of the given type.
func (s *Store) Clear(memoryType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if memoryType == "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return errors.WithMessage(err, "remove memories")
		}
		s.logger.Info("memories cleared")
		return nil
	}

	records := s.load()
	kept := records[:0:0]
	for _, r := range records {
		if r.Type != memoryType {
			kept = append(kept, r)
		}
	}
	if err := s.save(kept); err != nil {
		return errors.WithMessage(err, "persist memories")
	}

	s.logger.Info("memories cleared", "type", memoryType, "removed", len(records)-len(kept))
	return nil
}

var csvHeader = []string{"id", "content", "type", "metadata", "created_at"}

func (s *Store) load() []domain.MemoryRecord {
	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("open memories failed", "error", err)
		}
		return nil
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		s.logger.Error("read memories failed", "error", err)
		return nil
	}

	var records []domain.MemoryRecord
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		record, err := parseRow(row)
		if err != nil {
			s.logger.Warn("malformed memory skipped", "row", i, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records
}

func parseRow(row []string) (domain.MemoryRecord, error) {
	var record domain.MemoryRecord

	if len(row) != len(csvHeader) {
		return record, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}
	if row[0] == "" {
		return record, fmt.Errorf("empty id")
	}

	record.ID = row[0]
	record.Content = row[1]
	record.Type = row[2]

	record.Metadata = map[string]any{}
	if row[3] != "" {
		if err := json.Unmarshal([]byte(row[3]), &record.Metadata); err != nil {
			return record, fmt.Errorf("metadata: %w", err)
		}
	}

	createdAt, err := time.Parse(time.RFC3339Nano, row[4])
	if err != nil {
		return record, fmt.Errorf("created_at: %w", err)
	}
	record.CreatedAt = createdAt

	return record, nil
}

func (s *Store) save(records []domain.MemoryRecord) error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, record := range records {
		metadata, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", record.ID, err)
		}
		row := []string{
			record.ID,
			record.Content,
			record.Type,
			string(metadata),
			record.CreatedAt.Format(time.RFC3339Nano),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
