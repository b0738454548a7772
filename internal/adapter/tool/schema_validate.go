package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kaptinlin/jsonschema"

	"wanderbot/internal/domain"
)

// SchemaValidatingTool wraps a Tool with JSON Schema validation. On Invoke,
// it validates args against the compiled schema before delegating, so
// malformed model output is rejected without touching the transport.
type SchemaValidatingTool struct {
	inner  domain.Tool
	schema *jsonschema.Schema
}

// WithSchemaValidation wraps a tool so that Invoke validates args against the
// tool's published schema. Returns an error if the schema fails to compile.
func WithSchemaValidation(t domain.Tool) (domain.Tool, error) {
	raw := t.Schema().Parameters
	if len(raw) == 0 || string(raw) == "null" {
		return t, nil // no schema to validate against
	}

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Descriptor().Name, err)
	}

	return &SchemaValidatingTool{inner: t, schema: schema}, nil
}

func (s *SchemaValidatingTool) Descriptor() domain.ToolDescriptor { return s.inner.Descriptor() }
func (s *SchemaValidatingTool) Schema() domain.ToolSchema         { return s.inner.Schema() }

func (s *SchemaValidatingTool) Invoke(ctx context.Context, args json.RawMessage) domain.ToolInvocationResult {
	var v interface{}
	if len(args) == 0 || string(args) == "null" {
		v = map[string]interface{}{}
	} else if err := json.Unmarshal(args, &v); err != nil {
		return domain.ToolInvocationResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("invalid JSON: %v", err),
		}
	}

	result := s.schema.Validate(v)
	if !result.IsValid() {
		return domain.ToolInvocationResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("schema validation failed: %s", result.Error()),
		}
	}

	return s.inner.Invoke(ctx, args)
}

// Close forwards to the inner tool when it holds a connection.
func (s *SchemaValidatingTool) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
