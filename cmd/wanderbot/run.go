package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"wanderbot/internal/adapter/channel"
	"wanderbot/internal/adapter/llm"
	"wanderbot/internal/adapter/state"
	"wanderbot/internal/adapter/tool"
	"wanderbot/internal/infra/config"
	"wanderbot/internal/infra/logger"
	"wanderbot/internal/infra/tracer"
	"wanderbot/internal/usecase"
)

// service is the lifecycle every channel exposes.
type service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

func run() error {
	// 1. Config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	// 3. Agent profile. A broken or missing profile is the one thing that
	// must stop the process here instead of degrading later.
	resolver := config.NewResolver(cfg.Agent.ProfilePath, cfg.Agent.Dir, cfg.ProfileFallback())
	profile, err := resolver.Resolve()
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}

	// 4. Tracer
	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer, "wanderbot")
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 5. Conversation store
	store, err := state.New(ctx, cfg.State, cfg.Model.Region)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	// 6. Model provider
	bedrock, err := llm.NewBedrockProvider(cfg.Model, log)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	provider := llm.NewCircuitBreakerProvider(bedrock, cfg.Model.Breaker, log)

	// 7. Tool gateway
	gateway, err := buildGateway(cfg, log)
	if err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	defer gateway.Close()

	// 8. Dispatcher
	counter := usecase.NewTokenCounter("")
	prompts := usecase.NewPromptBuilder(profile, cfg.Model.ID, cfg.Model.MaxTokens, cfg.Model.Temperature)
	prompts.SetTrimmer(usecase.NewHistoryTrimmer(cfg.Agent.HistoryTokenBudget, counter))

	dispatcher := usecase.NewDispatcher(usecase.DispatcherDeps{
		LLM:           provider,
		Store:         store,
		Tools:         gateway,
		Prompts:       prompts,
		Logger:        log,
		MaxIterations: cfg.Agent.MaxIterations,
		MaxRetries:    cfg.Model.MaxRetries,
		Locker:        usecase.NewUserLocker(),
	})

	// 9. Retention job (memory backend only)
	if job := startRetention(cfg, store, log); job != nil {
		defer job.Stop()
	}

	// 10. Channels & graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	channels := []service{
		channel.NewRESTChannel(cfg.Server, cfg.Auth, profile.Name, dispatcher, log),
		channel.NewMCPChannel(profile, cfg.Server.MCPPort, version, dispatcher, log),
		channel.NewA2AChannel(profile, cfg.Server.A2APort, cfg.Server.PublicURL, version, dispatcher, log),
	}

	started := make([]service, 0, len(channels))
	for _, ch := range channels {
		if err := ch.Start(ctx); err != nil {
			stopAll(started, log)
			return fmt.Errorf("start %s channel: %w", ch.Name(), err)
		}
		started = append(started, ch)
	}

	log.Info("wanderbot ready",
		"agent", profile.Name,
		"model", cfg.Model.ID,
		"state", cfg.State.Backend,
		"tools", len(gateway.ListTools()),
		"siblings", len(cfg.Siblings),
		"auth", !cfg.Auth.Disabled,
	)

	<-ctx.Done()
	log.Info("shutting down")

	stopAll(started, log)
	return nil
}

func stopAll(channels []service, log *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ch := range channels {
		if err := ch.Stop(shutdownCtx); err != nil {
			log.Error("channel stop error", "channel", ch.Name(), "error", err)
		}
	}
}

// buildGateway loads the manifest tools and registers one delegate tool per
// configured sibling agent.
func buildGateway(cfg *config.Config, log *slog.Logger) (*tool.Gateway, error) {
	gateway := tool.NewGateway(log, cfg.Tools.ValidateArgs)

	if err := gateway.LoadManifest(cfg.ManifestPath(), tool.Builtins(), cfg.Tools.CallTimeout); err != nil {
		return nil, err
	}

	for _, sibling := range cfg.Siblings {
		caller := channel.NewA2AClient(sibling.Endpoint, sibling.Timeout)
		if err := gateway.Register(tool.NewDelegateTool(sibling, caller, log)); err != nil {
			return nil, fmt.Errorf("register sibling %s: %w", sibling.Name, err)
		}
	}
	return gateway, nil
}

// startRetention schedules idle-conversation reaping when the memory backend
// and a cron schedule are configured. Other backends own their retention.
func startRetention(cfg *config.Config, store any, log *slog.Logger) *cron.Cron {
	schedule := cfg.State.Retention.Schedule
	if cfg.State.Backend != "memory" || schedule == "" {
		return nil
	}
	mem, ok := store.(*state.MemoryStore)
	if !ok {
		return nil
	}

	maxIdle := cfg.State.Retention.MaxIdle
	job := cron.New()
	if _, err := job.AddFunc(schedule, func() {
		if n := mem.ReapIdle(maxIdle); n > 0 {
			log.Info("reaped idle conversations", "count", n, "max_idle", maxIdle)
		}
	}); err != nil {
		log.Warn("invalid retention schedule", "schedule", schedule, "error", err)
		return nil
	}
	job.Start()
	return job
}

func runTools() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway, err := buildGateway(cfg, quiet)
	if err != nil {
		return err
	}
	defer gateway.Close()

	tools := gateway.ListTools()
	if len(tools) == 0 {
		fmt.Println("no tools registered")
		return nil
	}
	for _, desc := range tools {
		fmt.Printf("%-24s %-12s %s\n", desc.Name, desc.Transport, desc.Description)
	}
	return nil
}
