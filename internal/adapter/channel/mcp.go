package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"wanderbot/internal/domain"
)

// defaultMCPUser identifies conversations from MCP clients that do not
// supply a user_id argument.
const defaultMCPUser = "mcp-user"

// MCPChannel exposes the agent as an MCP server with a single ask tool,
// served over streamable HTTP at /mcp.
type MCPChannel struct {
	profile    domain.AgentProfile
	port       int
	version    string
	dispatcher Dispatcher
	logger     *slog.Logger

	server    *http.Server
	boundAddr string
}

// NewMCPChannel creates an MCP channel serving on port.
func NewMCPChannel(profile domain.AgentProfile, port int, version string, d Dispatcher, logger *slog.Logger) *MCPChannel {
	return &MCPChannel{
		profile:    profile,
		port:       port,
		version:    version,
		dispatcher: d,
		logger:     logger,
	}
}

// Name returns the channel name.
func (c *MCPChannel) Name() string { return "mcp" }

// ToolName returns the ask tool's name, derived from the agent name.
func (c *MCPChannel) ToolName() string {
	return "ask_" + slugify(c.profile.Name)
}

// Start begins serving. Non-blocking; errors after startup are logged.
func (c *MCPChannel) Start(ctx context.Context) error {
	srv := mcpserver.NewMCPServer(slugify(c.profile.Name), c.version,
		mcpserver.WithToolCapabilities(true),
	)

	toolName := c.ToolName()
	srv.AddTool(
		mcp.NewTool(toolName,
			mcp.WithDescription(fmt.Sprintf("Ask %s a question. %s", c.profile.Name, c.profile.Description)),
			mcp.WithString("question",
				mcp.Description("The question or request for the agent"),
				mcp.Required(),
			),
			mcp.WithString("user_id",
				mcp.Description("Stable identifier for the conversation owner. Optional."),
			),
		),
		c.handleAsk,
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(srv))

	addr := fmt.Sprintf(":%d", c.port)
	c.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mcp channel listen %s: %w", addr, err)
	}
	c.boundAddr = ln.Addr().String()

	go func() {
		c.logger.Info("mcp channel started", "addr", c.boundAddr, "tool", toolName)
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.logger.Error("mcp server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (c *MCPChannel) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

func (c *MCPChannel) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := request.GetString("question", "")
	userID := request.GetString("user_id", defaultMCPUser)

	reply, err := c.dispatcher.Handle(ctx, userID, question)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: reply}},
	}, nil
}
