package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Transport identifies how a manifest tool is reached. The set is closed:
// parsing any other value is a configuration error.
type Transport string

const (
	TransportLocal      Transport = "local"
	TransportHTTP       Transport = "http"
	TransportSubprocess Transport = "subprocess"
)

// ParseTransport validates a manifest transport string.
func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case TransportLocal, TransportHTTP, TransportSubprocess:
		return Transport(s), nil
	default:
		return "", fmt.Errorf("%w: transport %q", ErrInvalidInput, s)
	}
}

// ToolDescriptor is the static declaration of one callable capability.
// Descriptors are loaded once from the manifest and read-only afterwards.
type ToolDescriptor struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Transport   Transport     `json:"transport"`
	Endpoint    string        `json:"endpoint"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	Enabled     bool          `json:"enabled"`
}

// ToolInvocationResult is the transient outcome of one invocation. A transport
// failure is reported here with Success=false, never as a dispatch error, so the
// model can see the failure as a tool result and recover on its own.
type ToolInvocationResult struct {
	Success      bool   `json:"success"`
	Payload      string `json:"payload,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ToolSchema describes a tool for the LLM function-calling protocol.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents an LLM's request to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Tool is the interface every registered tool must implement.
type Tool interface {
	Descriptor() ToolDescriptor
	Schema() ToolSchema
	Invoke(ctx context.Context, args json.RawMessage) ToolInvocationResult
}

// ToolInvoker abstracts tool listing and invocation for the model loop.
type ToolInvoker interface {
	ListTools() []ToolDescriptor
	Schemas() []ToolSchema
	Invoke(ctx context.Context, name string, args json.RawMessage) (ToolInvocationResult, error)
}
