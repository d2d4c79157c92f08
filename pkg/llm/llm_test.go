package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := Config{APIKey: "sk-test"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "gpt-3.5-turbo", cfg.ChatModel)
		assert.Equal(t, "text-embedding-ada-002", cfg.EmbeddingModel)
		assert.Equal(t, 1536, cfg.EmbeddingDim)
	})

	t.Run("api key required when online", func(t *testing.T) {
		cfg := Config{}
		assert.Error(t, cfg.Validate())
	})

	t.Run("offline needs no api key", func(t *testing.T) {
		cfg := Config{Offline: true}
		assert.NoError(t, cfg.Validate())
	})
}

func TestOfflineClient(t *testing.T) {
	ctx := context.Background()
	client := New(Config{Offline: true, EmbeddingDim: 8})

	assert.Equal(t, 8, client.Dimension())

	t.Run("embed unavailable", func(t *testing.T) {
		_, err := client.Embed(ctx, "text")
		assert.True(t, errors.Is(err, ErrUnavailable))
	})

	t.Run("completion unavailable", func(t *testing.T) {
		_, err := client.CompleteChat(ctx, "system", "user", Options{})
		assert.True(t, errors.Is(err, ErrUnavailable))
	})

	t.Run("tool conversation unavailable", func(t *testing.T) {
		conv := client.StartToolConversation("system", "user")
		_, err := conv.Complete(ctx, nil)
		assert.True(t, errors.Is(err, ErrUnavailable))

		// Appending a result is local bookkeeping; finishing still fails.
		conv.AddToolResult("call_1", "get_weather", `{}`)
		_, err = conv.Finish(ctx)
		assert.True(t, errors.Is(err, ErrUnavailable))
	})
}

func TestToolConversationWireFormat(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-test",
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "done"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "sk-test", BaseURL: srv.URL, ChatModel: "gpt-3.5-turbo"})
	conv := client.StartToolConversation("system", "user")

	resp, err := conv.Complete(context.Background(), []ToolDefinition{{
		Name:        "get_weather",
		Description: "Current weather for a city",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"city": map[string]any{"type": "string"}},
			"required":   []any{"city"},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)

	tools, ok := captured["tools"].([]any)
	require.True(t, ok, "request carries a tools array")
	require.Len(t, tools, 1)

	entry := tools[0].(map[string]any)
	assert.Equal(t, "function", entry["type"])

	fn := entry["function"].(map[string]any)
	assert.Equal(t, "get_weather", fn["name"])
	assert.Equal(t, "Current weather for a city", fn["description"])
	assert.Contains(t, fn["parameters"].(map[string]any), "properties")
}

func TestMissingKeyBehavesOffline(t *testing.T) {
	client := New(Config{})
	_, err := client.Embed(context.Background(), "text")
	assert.True(t, errors.Is(err, ErrUnavailable))
}
