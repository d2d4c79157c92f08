// Package tool implements the process-wide catalog of named, schema-described
// callable tools.
//
// The registry is a single owned instance passed to the transport layers, not
// an ambient global. Registration happens at startup; reads dominate
// afterwards. Registering an existing name overwrites it silently — last
// write wins, by policy.
package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pkg/errors"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/nextrun/augment/pkg/log"
)

// ErrNotFound marks an invocation of an unregistered tool name.
var ErrNotFound = errors.New("tool not found")

// InvocationError wraps a handler failure. The message is surfaced to the
// caller; the server survives.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Handler executes one tool call. Parameters arrive as the decoded JSON
// object from the request; each handler extracts and validates its own keys.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Spec declares one registerable tool.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-schema-shaped parameter description
	Handler     Handler
}

// Definition is the discovery shape of a tool; handler internals excluded.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameter_schema"`
}

type entry struct {
	spec     Spec
	compiled *jsonschema.Schema
}

// Registry is the tool catalog. Safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  log.Logger("tool"),
		entries: make(map[string]*entry),
	}
}

// Register upserts a tool into the catalog. A declared parameter schema must
// compile; invocation parameters are validated against it before dispatch.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return errors.New("tool name is required")
	}
	if spec.Handler == nil {
		return errors.Errorf("tool %s: handler is required", spec.Name)
	}

	var compiled *jsonschema.Schema
	if spec.Parameters != nil {
		var err error
		compiled, err = CompileSchema(spec.Parameters)
		if err != nil {
			return errors.WithMessagef(err, "tool %s: invalid parameter schema", spec.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[spec.Name]; exists {
		r.logger.Warn("overwriting registered tool", "name", spec.Name)
	}
	r.entries[spec.Name] = &entry{spec: spec, compiled: compiled}
	r.logger.Info("registered tool", "name", spec.Name)
	return nil
}

// List returns all tool definitions, sorted by name for deterministic
// discovery output.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.entries[name].definition())
	}
	return defs
}

// Get returns one tool definition.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Definition{}, false
	}
	return e.definition(), true
}

// Invoke calls the named tool. It fails with ErrNotFound for unknown names
// and wraps every handler failure — schema violation, returned error, or
// panic — in *InvocationError.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any) (result any, err error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WithMessage(ErrNotFound, name)
	}

	if params == nil {
		params = map[string]any{}
	}

	if e.compiled != nil {
		if verr := ValidateParams(e.compiled, params); verr != nil {
			return nil, &InvocationError{Tool: name, Err: verr}
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked", "name", name, "panic", rec)
			result = nil
			err = &InvocationError{Tool: name, Err: errors.Errorf("handler panic: %v", rec)}
		}
	}()

	result, herr := e.spec.Handler(ctx, params)
	if herr != nil {
		r.logger.Error("tool call failed", "name", name, "error", herr)
		return nil, &InvocationError{Tool: name, Err: herr}
	}
	return result, nil
}

func (e *entry) definition() Definition {
	return Definition{
		Name:        e.spec.Name,
		Description: e.spec.Description,
		Parameters:  e.spec.Parameters,
	}
}
