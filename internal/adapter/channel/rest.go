package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"wanderbot/internal/domain"
	"wanderbot/internal/infra/config"
	"wanderbot/internal/infra/middleware"
)

// RESTChannel exposes the agent as a small JSON API: an unauthenticated
// health probe and a bearer-protected prompt endpoint.
type RESTChannel struct {
	cfg        config.ServerConfig
	auth       config.AuthConfig
	agentName  string
	dispatcher Dispatcher
	logger     *slog.Logger

	server *http.Server
	cancel context.CancelFunc

	// Actual bound address (set after Start)
	boundAddr string
}

type promptRequest struct {
	Text string `json:"text"`
}

type promptResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

// NewRESTChannel creates a REST channel serving on cfg.RESTPort.
func NewRESTChannel(cfg config.ServerConfig, auth config.AuthConfig, agentName string, d Dispatcher, logger *slog.Logger) *RESTChannel {
	return &RESTChannel{
		cfg:        cfg,
		auth:       auth,
		agentName:  agentName,
		dispatcher: d,
		logger:     logger,
	}
}

// Name returns the channel name.
func (c *RESTChannel) Name() string { return "rest" }

// Start begins serving. Non-blocking; errors after startup are logged.
func (c *RESTChannel) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	addr := fmt.Sprintf(":%d", c.cfg.RESTPort)
	c.server = &http.Server{
		Addr:              addr,
		Handler:           c.routes(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       c.cfg.ReadTimeout,
		WriteTimeout:      c.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rest channel listen %s: %w", addr, err)
	}
	c.boundAddr = ln.Addr().String()

	go func() {
		c.logger.Info("rest channel started", "addr", c.boundAddr)
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.logger.Error("rest server error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (c *RESTChannel) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// routes assembles the route table and middleware chain. The health probe
// stays outside auth so load balancers can reach it without credentials.
func (c *RESTChannel) routes(ctx context.Context) http.Handler {
	verifier := middleware.NewJWTVerifier([]byte(c.auth.Secret))
	requireAuth := middleware.RequireBearer(verifier, c.auth.Disabled, c.auth.TestUser, c.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", c.handleHealth)
	mux.Handle("POST /prompt", requireAuth(http.HandlerFunc(c.handlePrompt)))

	// Outermost first: request ID, security headers, rate limit, recovery.
	var h http.Handler = mux
	h = middleware.Recover(c.logger, h)
	h = middleware.RateLimit(ctx, c.cfg.RateLimitRPS, c.cfg.RateLimitBurst)(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RequestID(h)
	return h
}

func (c *RESTChannel) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "agent": c.agentName})
}

func (c *RESTChannel) handlePrompt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxBody())

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body too large (max %d bytes)", tooLarge.Limit), domain.CodeInvalidInput)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), domain.CodeInvalidInput)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	reply, err := c.dispatcher.Handle(r.Context(), userID, req.Text)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyInput) {
			writeError(w, http.StatusBadRequest, "text is required", domain.CodeEmptyInput)
			return
		}
		c.logger.Error("prompt dispatch failed", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", domain.ErrorCodeOf(err))
		return
	}

	writeJSON(w, http.StatusOK, promptResponse{Response: reply})
}

func (c *RESTChannel) maxBody() int64 {
	if c.cfg.MaxBodyBytes > 0 {
		return c.cfg.MaxBodyBytes
	}
	return 1 << 20
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, code domain.ErrorCode) {
	writeJSON(w, status, promptResponse{Error: msg, Code: string(code)})
}
