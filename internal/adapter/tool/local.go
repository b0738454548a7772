package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wanderbot/internal/domain"
)

// LocalFunc is an in-process tool implementation. The manifest binds a local
// entry to one of these by endpoint name.
type LocalFunc func(ctx context.Context, args json.RawMessage) (string, error)

// LocalTool runs a builtin function in-process.
type LocalTool struct {
	desc   domain.ToolDescriptor
	params json.RawMessage
	fn     LocalFunc
}

// NewLocalTool wraps fn as a tool with the given descriptor. params is the
// JSON Schema published to the model; empty means an open object.
func NewLocalTool(desc domain.ToolDescriptor, params json.RawMessage, fn LocalFunc) *LocalTool {
	return &LocalTool{desc: desc, params: params, fn: fn}
}

func (t *LocalTool) Descriptor() domain.ToolDescriptor { return t.desc }

func (t *LocalTool) Schema() domain.ToolSchema {
	params := t.params
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object"}`)
	}
	return domain.ToolSchema{
		Name:        t.desc.Name,
		Description: t.desc.Description,
		Parameters:  params,
	}
}

func (t *LocalTool) Invoke(ctx context.Context, args json.RawMessage) domain.ToolInvocationResult {
	if t.desc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.desc.Timeout)
		defer cancel()
	}

	out, err := t.fn(ctx, args)
	if err != nil {
		return domain.ToolInvocationResult{Success: false, ErrorMessage: err.Error()}
	}
	return domain.ToolInvocationResult{Success: true, Payload: out}
}

// Builtins returns the local functions a manifest may bind by endpoint name.
func Builtins() map[string]LocalFunc {
	return map[string]LocalFunc{
		"current_time": currentTime,
	}
}

type currentTimeParams struct {
	Timezone string `json:"timezone"`
}

func currentTime(_ context.Context, args json.RawMessage) (string, error) {
	var p currentTimeParams
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &p); err != nil {
			return "", fmt.Errorf("invalid params: %w", err)
		}
	}

	loc := time.Local
	if p.Timezone != "" {
		l, err := time.LoadLocation(p.Timezone)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q", p.Timezone)
		}
		loc = l
	}
	return time.Now().In(loc).Format(time.RFC3339), nil
}
