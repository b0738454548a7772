package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"wanderbot/internal/domain"
	"wanderbot/internal/infra/tracer"
)

// Gateway is the single choke point for tool listing and invocation. Tools
// come from the manifest (local, http, subprocess) and from programmatic
// registration (sibling delegates). Invocation results are never cached;
// every call goes to the tool.
type Gateway struct {
	mu       sync.RWMutex
	tools    map[string]domain.Tool
	logger   *slog.Logger
	validate bool
}

// NewGateway creates an empty gateway. When validateArgs is set, registered
// tools are wrapped with JSON Schema validation of their arguments.
func NewGateway(logger *slog.Logger, validateArgs bool) *Gateway {
	return &Gateway{
		tools:    make(map[string]domain.Tool),
		logger:   logger,
		validate: validateArgs,
	}
}

// Register adds a tool. Returns an error if the name is already registered.
// If schema compilation fails, the tool is registered without validation and
// a warning is logged.
func (g *Gateway) Register(t domain.Tool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := t.Descriptor().Name
	if _, exists := g.tools[name]; exists {
		return fmt.Errorf("%w: tool %q already registered", domain.ErrDuplicate, name)
	}

	if g.validate {
		wrapped, err := WithSchemaValidation(t)
		if err != nil {
			g.logger.Warn("schema validation disabled for tool",
				"tool", name, "error", err)
		} else {
			t = wrapped
		}
	}

	g.tools[name] = t
	return nil
}

// LoadManifest parses the manifest at path and registers every enabled entry.
// Local entries bind to a builtin by endpoint name; a missing builtin is a
// configuration error. Remote entries connect lazily, so a dead endpoint
// never fails startup.
func (g *Gateway) LoadManifest(path string, builtins map[string]LocalFunc, defaultTimeout time.Duration) error {
	entries, err := ParseManifest(path)
	if err != nil {
		return err
	}
	if entries == nil {
		g.logger.Info("no tool manifest found", "path", path)
		return nil
	}

	for _, e := range entries {
		if !e.Enabled {
			g.logger.Info("tool disabled, skipping", "tool", e.Name)
			continue
		}
		if e.Timeout <= 0 {
			e.Timeout = defaultTimeout
		}

		var t domain.Tool
		switch e.Transport {
		case domain.TransportLocal:
			fn, ok := builtins[e.Endpoint]
			if !ok {
				return domain.NewDomainError("tool.manifest", domain.ErrConfigLoad,
					fmt.Sprintf("local tool %q: no builtin named %q", e.Name, e.Endpoint))
			}
			t = NewLocalTool(e.Descriptor(), e.Parameters, fn)
		default:
			t = newRemoteTool(e.Descriptor(), e.Parameters, g.logger)
		}

		if err := g.Register(t); err != nil {
			return domain.NewDomainError("tool.manifest", domain.ErrConfigLoad, err.Error())
		}
		g.logger.Info("tool registered",
			"tool", e.Name, "transport", string(e.Transport), "endpoint", e.Endpoint)
	}
	return nil
}

// ListTools returns the descriptors of every active tool, sorted by name.
func (g *Gateway) ListTools() []domain.ToolDescriptor {
	g.mu.RLock()
	defer g.mu.RUnlock()

	descs := make([]domain.ToolDescriptor, 0, len(g.tools))
	for _, t := range g.tools {
		descs = append(descs, t.Descriptor())
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Schemas returns all tool schemas for LLM function-calling, sorted by name.
func (g *Gateway) Schemas() []domain.ToolSchema {
	g.mu.RLock()
	defer g.mu.RUnlock()

	schemas := make([]domain.ToolSchema, 0, len(g.tools))
	for _, t := range g.tools {
		schemas = append(schemas, t.Schema())
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Invoke runs the named tool. An unknown name fails here, before any
// transport activity. A tool that fails reports Success=false in the result;
// the returned error is reserved for dispatch problems.
func (g *Gateway) Invoke(ctx context.Context, name string, args json.RawMessage) (domain.ToolInvocationResult, error) {
	g.mu.RLock()
	t, ok := g.tools[name]
	g.mu.RUnlock()
	if !ok {
		return domain.ToolInvocationResult{}, domain.NewDomainError("Gateway.Invoke", domain.ErrUnknownTool, name)
	}

	ctx, span := tracer.StartSpan(ctx, "tool.invoke",
		trace.WithAttributes(
			tracer.StringAttr("tool.name", name),
			tracer.StringAttr("tool.transport", string(t.Descriptor().Transport)),
		),
	)
	defer span.End()

	res := t.Invoke(ctx, args)
	if res.Success {
		tracer.SetOK(span)
		g.logger.Debug("tool invoked", "tool", name)
	} else {
		tracer.RecordError(span, errors.New(res.ErrorMessage))
		g.logger.Warn("tool invocation failed", "tool", name, "error", res.ErrorMessage)
	}
	return res, nil
}

// Close shuts down every tool holding a live connection.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	for name, t := range g.tools {
		if c, ok := t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Compile-time interface check.
var _ domain.ToolInvoker = (*Gateway)(nil)
