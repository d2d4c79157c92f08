package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, "user", RoleUser)
	assert.Equal(t, "assistant", RoleAssistant)
	assert.Equal(t, "system", RoleSystem)
	assert.Equal(t, "tool", RoleTool)
}

func TestDocumentTitle(t *testing.T) {
	t.Run("from metadata", func(t *testing.T) {
		doc := Document{Metadata: map[string]any{"title": "RAG Basics"}}
		assert.Equal(t, "RAG Basics", doc.Title())
	})

	t.Run("nil metadata", func(t *testing.T) {
		doc := Document{}
		assert.Equal(t, "", doc.Title())
	})

	t.Run("non-string title", func(t *testing.T) {
		doc := Document{Metadata: map[string]any{"title": 42}}
		assert.Equal(t, "", doc.Title())
	})
}
