package tool

import (
	"bytes"
	"encoding/json"

	invopop "github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// CompileSchema compiles a JSON-schema-shaped parameter description for
// validation at invocation time.
func CompileSchema(params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, errors.WithMessage(err, "marshal schema")
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.WithMessage(err, "parse schema")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("parameters.json", doc); err != nil {
		return nil, errors.WithMessage(err, "add schema resource")
	}

	compiled, err := compiler.Compile("parameters.json")
	if err != nil {
		return nil, errors.WithMessage(err, "compile schema")
	}
	return compiled, nil
}

// ValidateParams checks an invocation parameter map against a compiled
// schema. The map is round-tripped through JSON so handler-side values carry
// the kinds the validator expects.
func ValidateParams(schema *jsonschema.Schema, params map[string]any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return errors.WithMessage(err, "marshal parameters")
	}

	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return errors.WithMessage(err, "parse parameters")
	}

	if err := schema.Validate(value); err != nil {
		return errors.WithMessage(err, "invalid parameters")
	}
	return nil
}

// ReflectSchema derives a JSON-schema-shaped parameter description from a
// tagged argument struct. Fields without omitempty become required.
func ReflectSchema(v any) map[string]any {
	reflector := &invopop.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}

	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object"}
	}

	delete(out, "$schema")
	delete(out, "$id")
	return out
}
