package tool

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wanderbot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTool is a scriptable domain.Tool for gateway tests.
type fakeTool struct {
	desc    domain.ToolDescriptor
	params  json.RawMessage
	result  domain.ToolInvocationResult
	calls   int
	lastArg json.RawMessage
}

func newFakeTool(name string) *fakeTool {
	return &fakeTool{
		desc: domain.ToolDescriptor{
			Name:      name,
			Transport: domain.TransportLocal,
			Endpoint:  name,
			Enabled:   true,
		},
		result: domain.ToolInvocationResult{Success: true, Payload: "ok"},
	}
}

func (f *fakeTool) Descriptor() domain.ToolDescriptor { return f.desc }

func (f *fakeTool) Schema() domain.ToolSchema {
	params := f.params
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object"}`)
	}
	return domain.ToolSchema{Name: f.desc.Name, Description: f.desc.Description, Parameters: params}
}

func (f *fakeTool) Invoke(_ context.Context, args json.RawMessage) domain.ToolInvocationResult {
	f.calls++
	f.lastArg = args
	return f.result
}

func TestGatewayUnknownToolFailsBeforeAnyTool(t *testing.T) {
	gw := NewGateway(discardLogger(), false)
	present := newFakeTool("present")
	require.NoError(t, gw.Register(present))

	_, err := gw.Invoke(context.Background(), "absent", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownTool)
	assert.Equal(t, domain.CodeUnknownTool, domain.ErrorCodeOf(err))
	assert.Zero(t, present.calls, "no registered tool may run for an unknown name")
}

func TestGatewayRegisterDuplicate(t *testing.T) {
	gw := NewGateway(discardLogger(), false)
	require.NoError(t, gw.Register(newFakeTool("twice")))

	err := gw.Register(newFakeTool("twice"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestGatewayToolFailureIsResultNotError(t *testing.T) {
	gw := NewGateway(discardLogger(), false)
	failing := newFakeTool("flaky")
	failing.result = domain.ToolInvocationResult{Success: false, ErrorMessage: "endpoint down"}
	require.NoError(t, gw.Register(failing))

	res, err := gw.Invoke(context.Background(), "flaky", json.RawMessage(`{}`))
	require.NoError(t, err, "a failed invocation is a result, not a dispatch error")
	assert.False(t, res.Success)
	assert.Equal(t, "endpoint down", res.ErrorMessage)
}

func TestGatewayListToolsSorted(t *testing.T) {
	gw := NewGateway(discardLogger(), false)
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, gw.Register(newFakeTool(name)))
	}

	descs := gw.ListTools()
	require.Len(t, descs, 3)
	assert.Equal(t, "alpha", descs[0].Name)
	assert.Equal(t, "bravo", descs[1].Name)
	assert.Equal(t, "charlie", descs[2].Name)

	schemas := gw.Schemas()
	require.Len(t, schemas, 3)
	assert.Equal(t, "alpha", schemas[0].Name)
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGatewayLoadManifest(t *testing.T) {
	path := writeManifest(t, `{
		"tools": {
			"get_activities": {
				"transport": "http",
				"endpoint": "http://localhost:8001/mcp",
				"timeout": "5s",
				"description": "Suggest activities for a destination"
			},
			"current_time": {
				"transport": "local",
				"endpoint": "current_time"
			},
			"legacy_search": {
				"transport": "subprocess",
				"endpoint": "python3 legacy_server.py",
				"enabled": false
			}
		}
	}`)

	gw := NewGateway(discardLogger(), false)
	require.NoError(t, gw.LoadManifest(path, Builtins(), 30*time.Second))

	descs := gw.ListTools()
	require.Len(t, descs, 2, "disabled tools are excluded")
	assert.Equal(t, "current_time", descs[0].Name)
	assert.Equal(t, "get_activities", descs[1].Name)
	assert.Equal(t, 5*time.Second, descs[1].Timeout)
	assert.Equal(t, 30*time.Second, descs[0].Timeout, "default applied when manifest omits timeout")

	// The local entry is live.
	res, err := gw.Invoke(context.Background(), "current_time", json.RawMessage(`{"timezone":"UTC"}`))
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestGatewayManifestUnknownTransport(t *testing.T) {
	path := writeManifest(t, `{"tools":{"bad":{"transport":"grpc","endpoint":"x"}}}`)

	gw := NewGateway(discardLogger(), false)
	err := gw.LoadManifest(path, nil, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
}

func TestGatewayManifestMissingFile(t *testing.T) {
	gw := NewGateway(discardLogger(), false)
	require.NoError(t, gw.LoadManifest(filepath.Join(t.TempDir(), "nope.json"), nil, time.Second))
	assert.Empty(t, gw.ListTools())
}

func TestGatewayManifestMissingBuiltin(t *testing.T) {
	path := writeManifest(t, `{"tools":{"mystery":{"transport":"local","endpoint":"no_such_builtin"}}}`)

	gw := NewGateway(discardLogger(), false)
	err := gw.LoadManifest(path, Builtins(), time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
}

func TestGatewayManifestBadTimeout(t *testing.T) {
	path := writeManifest(t, `{"tools":{"slow":{"transport":"http","endpoint":"http://x","timeout":"banana"}}}`)

	gw := NewGateway(discardLogger(), false)
	err := gw.LoadManifest(path, nil, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
}

func TestGatewaySchemaValidation(t *testing.T) {
	gw := NewGateway(discardLogger(), true)
	guarded := newFakeTool("forecast")
	guarded.params = json.RawMessage(`{
		"type": "object",
		"properties": {"city": {"type": "string"}},
		"required": ["city"]
	}`)
	require.NoError(t, gw.Register(guarded))

	res, err := gw.Invoke(context.Background(), "forecast", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "schema validation failed")
	assert.Zero(t, guarded.calls, "invalid args must not reach the tool")

	res, err = gw.Invoke(context.Background(), "forecast", json.RawMessage(`{"city":"Lisbon"}`))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, guarded.calls)
}
