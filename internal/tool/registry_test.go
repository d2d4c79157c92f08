package tool

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, params map[string]any) (any, error) {
	return params, nil
}

var echoSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"message": map[string]any{"type": "string"},
	},
	"required": []any{"message"},
}

func TestRegistryRegister(t *testing.T) {
	t.Run("name required", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(Spec{Handler: echoHandler}))
	})

	t.Run("handler required", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(Spec{Name: "echo"}))
	})

	t.Run("invalid schema rejected", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(Spec{
			Name:    "broken",
			Handler: echoHandler,
			Parameters: map[string]any{
				"type": 42, // type keyword must be a string
			},
		})
		assert.Error(t, err)
	})

	t.Run("last registration wins", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Spec{
			Name:        "echo",
			Description: "first",
			Handler:     echoHandler,
		}))
		require.NoError(t, r.Register(Spec{
			Name:        "echo",
			Description: "second",
			Handler:     echoHandler,
		}))

		def, ok := r.Get("echo")
		require.True(t, ok)
		assert.Equal(t, "second", def.Description)
		assert.Len(t, r.List(), 1)
	})
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(Spec{Name: name, Handler: echoHandler}))
	}

	defs := r.List()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "mid", defs[1].Name)
	assert.Equal(t, "zeta", defs[2].Name)
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Spec{
		Name:        "echo",
		Description: "echoes parameters",
		Parameters:  echoSchema,
		Handler:     echoHandler,
	}))

	def, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", def.Name)
	assert.Equal(t, echoSchema, def.Parameters)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryInvoke(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown tool", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Invoke(ctx, "missing", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("success", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Spec{
			Name:       "echo",
			Parameters: echoSchema,
			Handler:    echoHandler,
		}))

		result, err := r.Invoke(ctx, "echo", map[string]any{"message": "hi"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"message": "hi"}, result)
	})

	t.Run("schema violation", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Spec{
			Name:       "echo",
			Parameters: echoSchema,
			Handler:    echoHandler,
		}))

		_, err := r.Invoke(ctx, "echo", map[string]any{"message": 42})
		require.Error(t, err)

		var invErr *InvocationError
		require.True(t, errors.As(err, &invErr))
		assert.Equal(t, "echo", invErr.Tool)
	})

	t.Run("missing required parameter", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Spec{
			Name:       "echo",
			Parameters: echoSchema,
			Handler:    echoHandler,
		}))

		_, err := r.Invoke(ctx, "echo", map[string]any{})
		var invErr *InvocationError
		require.True(t, errors.As(err, &invErr))
	})

	t.Run("nil params become empty object", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Spec{
			Name: "count",
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				require.NotNil(t, params)
				return len(params), nil
			},
		}))

		result, err := r.Invoke(ctx, "count", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, result)
	})

	t.Run("handler error wrapped", func(t *testing.T) {
		r := NewRegistry()
		boom := errors.New("boom")
		require.NoError(t, r.Register(Spec{
			Name: "failing",
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				return nil, boom
			},
		}))

		_, err := r.Invoke(ctx, "failing", nil)
		var invErr *InvocationError
		require.True(t, errors.As(err, &invErr))
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("handler panic recovered", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Spec{
			Name: "panicking",
			Handler: func(ctx context.Context, params map[string]any) (any, error) {
				panic("handler blew up")
			},
		}))

		result, err := r.Invoke(ctx, "panicking", nil)
		assert.Nil(t, result)

		var invErr *InvocationError
		require.True(t, errors.As(err, &invErr))
		assert.Contains(t, invErr.Error(), "handler blew up")

		// The registry must remain usable afterwards.
		require.NoError(t, r.Register(Spec{Name: "echo", Handler: echoHandler}))
		_, err = r.Invoke(ctx, "echo", nil)
		assert.NoError(t, err)
	})
}
