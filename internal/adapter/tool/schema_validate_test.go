package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"wanderbot/internal/domain"
)

func guardedTool(t *testing.T, schema string) (*fakeTool, domain.Tool) {
	t.Helper()
	inner := newFakeTool("guarded")
	inner.params = json.RawMessage(schema)
	wrapped, err := WithSchemaValidation(inner)
	if err != nil {
		t.Fatalf("WithSchemaValidation: %v", err)
	}
	return inner, wrapped
}

func TestSchemaValidationRejectsMissingRequired(t *testing.T) {
	inner, wrapped := guardedTool(t, `{
		"type": "object",
		"properties": {"city": {"type": "string"}},
		"required": ["city"]
	}`)

	res := wrapped.Invoke(context.Background(), json.RawMessage(`{"other":1}`))
	if res.Success {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(res.ErrorMessage, "schema validation failed") {
		t.Errorf("ErrorMessage = %q", res.ErrorMessage)
	}
	if inner.calls != 0 {
		t.Error("inner tool must not run on validation failure")
	}
}

func TestSchemaValidationAcceptsValid(t *testing.T) {
	inner, wrapped := guardedTool(t, `{
		"type": "object",
		"properties": {"city": {"type": "string"}},
		"required": ["city"]
	}`)

	res := wrapped.Invoke(context.Background(), json.RawMessage(`{"city":"Lisbon"}`))
	if !res.Success {
		t.Fatalf("Invoke: %s", res.ErrorMessage)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestSchemaValidationRejectsWrongType(t *testing.T) {
	inner, wrapped := guardedTool(t, `{
		"type": "object",
		"properties": {"count": {"type": "integer"}}
	}`)

	res := wrapped.Invoke(context.Background(), json.RawMessage(`{"count":"three"}`))
	if res.Success {
		t.Fatal("expected validation failure")
	}
	if inner.calls != 0 {
		t.Error("inner tool must not run on validation failure")
	}
}

func TestSchemaValidationInvalidJSON(t *testing.T) {
	_, wrapped := guardedTool(t, `{"type":"object"}`)

	res := wrapped.Invoke(context.Background(), json.RawMessage(`{nope`))
	if res.Success {
		t.Fatal("expected failure for malformed JSON")
	}
	if !strings.Contains(res.ErrorMessage, "invalid JSON") {
		t.Errorf("ErrorMessage = %q", res.ErrorMessage)
	}
}

func TestSchemaValidationNoSchemaPassthrough(t *testing.T) {
	inner := newFakeTool("open")
	wrapped, err := WithSchemaValidation(inner)
	if err != nil {
		t.Fatalf("WithSchemaValidation: %v", err)
	}
	// fakeTool publishes an open object schema, so the wrapper stays in place
	// but accepts anything.
	res := wrapped.Invoke(context.Background(), json.RawMessage(`{"anything":true}`))
	if !res.Success {
		t.Fatalf("Invoke: %s", res.ErrorMessage)
	}
}

func TestSchemaValidationBadSchema(t *testing.T) {
	inner := newFakeTool("broken")
	inner.params = json.RawMessage(`{"type": 42}`)
	if _, err := WithSchemaValidation(inner); err == nil {
		t.Error("expected compile error for malformed schema")
	}
}
