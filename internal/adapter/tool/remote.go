package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"wanderbot/internal/domain"
)

// defaultCallTimeout bounds a remote invocation when neither the manifest nor
// the tools config sets one.
const defaultCallTimeout = 30 * time.Second

// mcpClient abstracts the MCP client interface for testability.
type mcpClient interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// RemoteTool reaches an MCP server over streamable HTTP or a spawned
// subprocess speaking stdio. The connection is dialed on first use, so a dead
// endpoint costs one failed invocation, never a failed startup.
type RemoteTool struct {
	desc   domain.ToolDescriptor
	params json.RawMessage
	logger *slog.Logger

	mu     sync.Mutex
	client mcpClient
}

func newRemoteTool(desc domain.ToolDescriptor, params json.RawMessage, logger *slog.Logger) *RemoteTool {
	return &RemoteTool{desc: desc, params: params, logger: logger}
}

// newRemoteToolWithClient creates a RemoteTool with a pre-built client (for testing).
func newRemoteToolWithClient(desc domain.ToolDescriptor, params json.RawMessage, client mcpClient, logger *slog.Logger) *RemoteTool {
	return &RemoteTool{desc: desc, params: params, client: client, logger: logger}
}

func (t *RemoteTool) Descriptor() domain.ToolDescriptor { return t.desc }

func (t *RemoteTool) Schema() domain.ToolSchema {
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

func (t *RemoteTool) Invoke(ctx context.Context, args json.RawMessage) domain.ToolInvocationResult {
	timeout := t.desc.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := t.ensureClient(ctx)
	if err != nil {
		return domain.ToolInvocationResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("connect %s: %v", t.desc.Endpoint, err),
		}
	}

	var argMap map[string]interface{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &argMap); err != nil {
			return domain.ToolInvocationResult{
				Success:      false,
				ErrorMessage: fmt.Sprintf("invalid arguments: %v", err),
			}
		}
	}

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = t.desc.Name
	callReq.Params.Arguments = argMap

	result, err := client.CallTool(ctx, callReq)
	if err != nil {
		// Drop the connection so the next invocation redials.
		t.dropClient()
		return domain.ToolInvocationResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("call %s: %v", t.desc.Name, err),
		}
	}

	content := extractMCPContent(result)
	if result.IsError {
		return domain.ToolInvocationResult{Success: false, ErrorMessage: content}
	}
	return domain.ToolInvocationResult{Success: true, Payload: content}
}

func (t *RemoteTool) ensureClient(ctx context.Context) (mcpClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}
	c, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	t.client = c
	return c, nil
}

func (t *RemoteTool) connect(ctx context.Context) (mcpClient, error) {
	var c mcpClient

	switch t.desc.Transport {
	case domain.TransportHTTP:
		tr, err := transport.NewStreamableHTTP(t.desc.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("create http transport: %w", err)
		}
		httpClient := mcpclient.NewClient(tr)
		if err := httpClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
		c = httpClient

	case domain.TransportSubprocess:
		fields := strings.Fields(t.desc.Endpoint)
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty command")
		}
		stdio, err := mcpclient.NewStdioMCPClient(fields[0], nil, fields[1:]...)
		if err != nil {
			return nil, fmt.Errorf("spawn %q: %w", fields[0], err)
		}
		c = stdio

	default:
		return nil, fmt.Errorf("transport %q is not remote", t.desc.Transport)
	}

	// Initialize the MCP connection.
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "wanderbot",
		Version: "1.0.0",
	}

	if ic, ok := c.(interface {
		Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	}); ok {
		if _, err := ic.Initialize(ctx, initReq); err != nil {
			c.Close()
			return nil, domain.WrapOp("initialize", err)
		}
	}

	t.logger.Info("tool endpoint connected",
		"tool", t.desc.Name, "transport", string(t.desc.Transport))
	return c, nil
}

func (t *RemoteTool) dropClient() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
}

// Close shuts down the connection if one was established.
func (t *RemoteTool) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// extractMCPContent converts MCP CallToolResult content to a string.
func extractMCPContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			// For non-text content, marshal to JSON.
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n")
}
