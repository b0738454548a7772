package domain

import (
	"encoding/json"
	"testing"
)

func TestRoleConstants(t *testing.T) {
	// These strings are persisted in conversation stores and must not drift.
	roles := map[string]string{
		"system": RoleSystem,
		"user":   RoleUser,
		"agent":  RoleAgent,
		"tool":   RoleTool,
	}
	for expected, got := range roles {
		if got != expected {
			t.Errorf("Role %q = %q, want %q", expected, got, expected)
		}
	}
}

func TestMessageToolCallArgumentsStayRaw(t *testing.T) {
	msg := Message{
		Role: RoleAgent,
		ToolCalls: []ToolCall{
			{ID: "call-1", Name: "get_forecast", Arguments: json.RawMessage(`{"city":"Lisbon"}`)},
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.ToolCalls) != 1 || got.ToolCalls[0].Name != "get_forecast" {
		t.Fatalf("tool calls mismatch: %+v", got.ToolCalls)
	}
	// Arguments pass through untouched so tools see exactly what the model sent.
	if string(got.ToolCalls[0].Arguments) != `{"city":"Lisbon"}` {
		t.Errorf("Arguments = %s", got.ToolCalls[0].Arguments)
	}
}

func TestMessageOmitsEmptyToolCalls(t *testing.T) {
	data, err := json.Marshal(Message{Role: RoleUser, Content: "hi"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := m["tool_calls"]; present {
		t.Error("empty tool_calls should be omitted from the wire form")
	}
}
