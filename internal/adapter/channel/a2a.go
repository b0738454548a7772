package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"wanderbot/internal/domain"
)

// JSON-RPC error codes used by the A2A surface.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// defaultA2AUser identifies conversations from peers that supply neither a
// context ID nor a message ID.
const defaultA2AUser = "a2a-user"

// agentCardPath is the conventional discovery location for the agent card.
const agentCardPath = "/.well-known/agent-card.json"

type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonrpcError `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type a2aPart struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

type a2aMessage struct {
	Role      string    `json:"role"`
	Parts     []a2aPart `json:"parts"`
	MessageID string    `json:"messageId,omitempty"`
	ContextID string    `json:"contextId,omitempty"`
	Kind      string    `json:"kind,omitempty"`
}

type messageSendParams struct {
	Message a2aMessage `json:"message"`
}

type agentCard struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	URL                string          `json:"url"`
	Version            string          `json:"version"`
	Capabilities       map[string]bool `json:"capabilities"`
	DefaultInputModes  []string        `json:"defaultInputModes"`
	DefaultOutputModes []string        `json:"defaultOutputModes"`
	Skills             []agentSkill    `json:"skills"`
}

type agentSkill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// A2AChannel exposes the agent to peer agents: an agent card for discovery
// and a JSON-RPC message/send endpoint at the root.
type A2AChannel struct {
	profile    domain.AgentProfile
	port       int
	publicURL  string
	version    string
	dispatcher Dispatcher
	logger     *slog.Logger

	server    *http.Server
	boundAddr string
}

// NewA2AChannel creates an A2A channel serving on port. publicURL is the
// base URL advertised in the agent card; empty falls back to localhost.
func NewA2AChannel(profile domain.AgentProfile, port int, publicURL, version string, d Dispatcher, logger *slog.Logger) *A2AChannel {
	return &A2AChannel{
		profile:    profile,
		port:       port,
		publicURL:  publicURL,
		version:    version,
		dispatcher: d,
		logger:     logger,
	}
}

// Name returns the channel name.
func (c *A2AChannel) Name() string { return "a2a" }

// Start begins serving. Non-blocking; errors after startup are logged.
func (c *A2AChannel) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+agentCardPath, c.handleCard)
	mux.HandleFunc("POST /", c.handleRPC)

	addr := fmt.Sprintf(":%d", c.port)
	c.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("a2a channel listen %s: %w", addr, err)
	}
	c.boundAddr = ln.Addr().String()

	go func() {
		c.logger.Info("a2a channel started", "addr", c.boundAddr)
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.logger.Error("a2a server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (c *A2AChannel) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

func (c *A2AChannel) handleCard(w http.ResponseWriter, _ *http.Request) {
	url := c.publicURL
	if url == "" {
		url = fmt.Sprintf("http://localhost:%d", c.port)
	}
	writeJSON(w, http.StatusOK, agentCard{
		Name:               c.profile.Name,
		Description:        c.profile.Description,
		URL:                url,
		Version:            c.version,
		Capabilities:       map[string]bool{"streaming": false},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []agentSkill{{
			ID:          slugify(c.profile.Name),
			Name:        c.profile.Name,
			Description: c.profile.Description,
		}},
	})
}

func (c *A2AChannel) handleRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeRPCError(w, nil, codeParseError, "parse error: "+err.Error())
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		c.writeRPCError(w, req.ID, codeInvalidRequest, "invalid request")
		return
	}
	if req.Method != "message/send" {
		c.writeRPCError(w, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
		return
	}

	var params messageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		c.writeRPCError(w, req.ID, codeInvalidParams, "invalid params: "+err.Error())
		return
	}
	text := textOfParts(params.Message.Parts)
	if strings.TrimSpace(text) == "" {
		c.writeRPCError(w, req.ID, codeInvalidParams, "message has no text part")
		return
	}

	// Peers that thread a conversation share its context ID; one-shot peers
	// fall back to the message ID so each exchange gets its own history.
	userID := params.Message.ContextID
	if userID == "" {
		userID = params.Message.MessageID
	}
	if userID == "" {
		userID = defaultA2AUser
	}

	reply, err := c.dispatcher.Handle(r.Context(), userID, text)
	if err != nil {
		c.logger.Error("a2a dispatch failed", "user", userID, "error", err)
		c.writeRPCError(w, req.ID, codeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: a2aMessage{
			Role:      "agent",
			Parts:     []a2aPart{{Kind: "text", Text: reply}},
			MessageID: generateMessageID(time.Now()),
			ContextID: params.Message.ContextID,
			Kind:      "message",
		},
	})
}

func (c *A2AChannel) writeRPCError(w http.ResponseWriter, id any, code int, msg string) {
	writeJSON(w, http.StatusOK, jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonrpcError{Code: code, Message: msg},
	})
}

// textOfParts joins the text parts of a message, ignoring other kinds.
func textOfParts(parts []a2aPart) string {
	var texts []string
	for _, p := range parts {
		if p.Kind == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
