package knowledge

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleCorpus(t *testing.T) {
	corpus := SampleCorpus()
	require.Len(t, corpus, 12)

	seen := map[string]bool{}
	for _, doc := range corpus {
		assert.NotEmpty(t, doc.Title)
		assert.NotEmpty(t, doc.Text)
		assert.False(t, seen[doc.Title], "duplicate title %q", doc.Title)
		seen[doc.Title] = true
	}

	assert.Equal(t, "Augmented LLM Overview", corpus[0].Title)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, &stubEmbedder{dim: 4})

	count, err := Seed(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 12, count)
	assert.Equal(t, 12, store.Count())

	docs := store.ListAll()
	require.Len(t, docs, 12)
	for _, doc := range docs {
		assert.Equal(t, "course_material", doc.Metadata["source"])
		assert.NotEmpty(t, doc.Metadata["title"])
	}
}

// failingAdder accepts a fixed number of documents, then refuses the rest.
type failingAdder struct {
	accept int
	added  int
}

func (f *failingAdder) Add(ctx context.Context, text string, metadata map[string]any) (string, error) {
	if f.added >= f.accept {
		return "", errors.New("disk full")
	}
	f.added++
	return fmt.Sprintf("doc_%08d", f.added), nil
}

func TestSeedPartialFailure(t *testing.T) {
	adder := &failingAdder{accept: 3}

	count, err := Seed(context.Background(), adder)
	require.Error(t, err)
	assert.Equal(t, 3, count, "count reports documents persisted before the failure")
	assert.Equal(t, 3, adder.added)
}
