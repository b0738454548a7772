package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"wanderbot/internal/domain"
	"wanderbot/internal/infra/tracer"
)

// Retry loop constants.
const (
	defaultRetryBase = 500 * time.Millisecond
	maxRetryDelay    = 10 * time.Second
)

// Canned replies for degraded paths. The user still gets an answer; the
// channel layer reports these with a success status.
const (
	degradedModelReply  = "I'm having trouble reaching my language model right now. Please try again in a moment."
	degradedStoreReply  = "I'm having trouble reading our conversation history right now. Please try again in a moment."
	degradedLoopReply   = "I wasn't able to finish working through that request. Please try rephrasing or breaking it into smaller steps."
	unsavedExchangeNote = "\n\n(I couldn't save this exchange, so I may not remember it next time.)"
)

// Request lifecycle states, recorded as span events in dispatch order.
const (
	stateReceived         = "received"
	stateHistoryLoaded    = "history_loaded"
	stateModelInvoked     = "model_invoked"
	stateHistoryPersisted = "history_persisted"
	stateResponded        = "responded"
)

// DispatcherDeps holds injected dependencies for the dispatcher.
type DispatcherDeps struct {
	LLM           domain.LLMProvider
	Store         domain.ConversationStore
	Tools         domain.ToolInvoker
	Prompts       *PromptBuilder
	Logger        *slog.Logger
	MaxIterations int
	MaxRetries    int         // extra model attempts on retryable errors
	Locker        *UserLocker // optional, nil = no per-user serialization
}

// Dispatcher turns one user message into one reply, keeping the persisted
// conversation consistent along the way.
type Dispatcher struct {
	deps      DispatcherDeps
	retryBase time.Duration
}

// NewDispatcher creates a dispatcher with the given dependencies.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = 8
	}
	if deps.MaxRetries < 0 {
		deps.MaxRetries = 0
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Dispatcher{deps: deps, retryBase: defaultRetryBase}
}

// Handle processes one user message: load history, run the model loop,
// persist the exchange, return the reply text. Input validation happens
// before any store access. A failing store or model degrades the reply
// instead of failing the request; the only errors returned are invalid
// input and cancellation.
func (d *Dispatcher) Handle(ctx context.Context, userID, text string) (string, error) {
	const op = "Dispatcher.Handle"

	ctx, span := tracer.StartSpan(ctx, "dispatch.message")
	defer span.End()
	span.AddEvent(stateReceived)

	text = strings.TrimSpace(text)
	if text == "" {
		err := domain.NewDomainError(op, domain.ErrEmptyInput, "")
		tracer.RecordError(span, err)
		return "", err
	}
	if userID == "" {
		userID = "anonymous"
	}

	if d.deps.Locker != nil {
		unlock, err := d.deps.Locker.Lock(ctx, userID)
		if err != nil {
			tracer.RecordError(span, err)
			return "", domain.NewDomainError(op, err, "user lock")
		}
		defer unlock()
	}

	history, err := d.deps.Store.Load(ctx, userID)
	if err != nil {
		d.deps.Logger.Warn("history load failed, degrading", "user_id", userID, "error", err)
		tracer.RecordError(span, err)
		span.AddEvent(stateResponded)
		return degradedStoreReply, nil
	}
	span.AddEvent(stateHistoryLoaded)

	pending := []domain.Message{{
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	}}

	for i := 0; i < d.deps.MaxIterations; i++ {
		span.AddEvent("dispatch.iteration", trace.WithAttributes(tracer.IntAttr("iteration", i)))

		req := d.deps.Prompts.Build(history, pending, d.toolSchemas())

		resp, llmErr := d.callModelWithRetry(ctx, req)
		span.AddEvent(stateModelInvoked)
		if llmErr != nil {
			return d.degrade(ctx, span, userID, text, llmErr), nil
		}

		msg := resp.Message
		pending = append(pending, msg)

		d.deps.Logger.Debug("model response",
			"iteration", i,
			"tool_calls", len(msg.ToolCalls),
			"tokens", resp.Usage.TotalTokens,
		)

		// No tool calls = final response.
		if len(msg.ToolCalls) == 0 {
			reply := msg.Content
			if !d.persistExchange(ctx, span, userID, text, reply) {
				reply += unsavedExchangeNote
			}
			span.AddEvent(stateResponded)
			tracer.SetOK(span)
			return reply, nil
		}

		pending = append(pending, d.runToolCalls(ctx, msg.ToolCalls)...)
	}

	return d.degrade(ctx, span, userID, text, domain.ErrMaxIterations), nil
}

// degrade persists the user turn so the message is not lost, then returns a
// canned reply. The model's unavailability is an answer, not an error.
func (d *Dispatcher) degrade(ctx context.Context, span trace.Span, userID, text string, cause error) string {
	d.deps.Logger.Warn("model loop failed, degrading",
		"user_id", userID,
		"error", cause,
		"code", domain.ErrorCodeOf(cause),
	)
	tracer.RecordError(span, cause)

	if err := d.deps.Store.Append(ctx, userID, domain.RoleUser, text); err != nil {
		d.deps.Logger.Warn("user turn not persisted", "user_id", userID, "error", err)
	} else {
		span.AddEvent(stateHistoryPersisted)
	}
	span.AddEvent(stateResponded)

	if errors.Is(cause, domain.ErrMaxIterations) {
		return degradedLoopReply
	}
	return degradedModelReply
}

// persistExchange appends the user turn then the agent turn. Storage failure
// is logged, not returned; the reply still goes out. Reports whether both
// turns were stored.
func (d *Dispatcher) persistExchange(ctx context.Context, span trace.Span, userID, userText, agentText string) bool {
	if err := d.deps.Store.Append(ctx, userID, domain.RoleUser, userText); err != nil {
		d.deps.Logger.Warn("user turn not persisted", "user_id", userID, "error", err)
		return false
	}
	if err := d.deps.Store.Append(ctx, userID, domain.RoleAgent, agentText); err != nil {
		d.deps.Logger.Warn("agent turn not persisted", "user_id", userID, "error", err)
		return false
	}
	span.AddEvent(stateHistoryPersisted)
	return true
}

// runToolCalls executes the model's tool calls in parallel.
// Results are collected in an indexed array to preserve original call order.
func (d *Dispatcher) runToolCalls(ctx context.Context, calls []domain.ToolCall) []domain.Message {
	results := make([]domain.Message, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c domain.ToolCall) {
			defer wg.Done()
			results[idx] = d.runToolCall(ctx, c)
		}(i, call)
	}
	wg.Wait()
	return results
}

// runToolCall invokes a single tool and renders the outcome as a tool
// message. Failures, unknown tool names included, come back as message
// content so the model can see them and adjust.
func (d *Dispatcher) runToolCall(ctx context.Context, call domain.ToolCall) domain.Message {
	msg := domain.Message{
		Role: domain.RoleTool,
		Name: call.Name,
		ToolCalls: []domain.ToolCall{{
			ID:   call.ID,
			Name: call.Name,
		}},
		Timestamp: time.Now(),
	}

	res, err := d.deps.Tools.Invoke(ctx, call.Name, call.Arguments)
	switch {
	case err != nil:
		msg.Content = err.Error()
	case !res.Success:
		msg.Content = "tool failed: " + res.ErrorMessage
	default:
		msg.Content = res.Payload
	}
	return msg
}

// callModelWithRetry performs the model call, retrying transient failures
// with exponential backoff. Non-retryable errors fail immediately.
func (d *Dispatcher) callModelWithRetry(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	attempts := d.deps.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		llmCtx, llmSpan := tracer.StartSpan(ctx, "dispatch.model_call")
		resp, err := d.deps.LLM.Chat(llmCtx, req)
		llmSpan.End()

		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !domain.IsRetryableError(err) || attempt == attempts-1 {
			return nil, lastErr
		}

		delay := d.retryBackoff(attempt)
		d.deps.Logger.Info("retrying model call after error",
			"attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// retryBackoff computes exponential backoff with jitter.
func (d *Dispatcher) retryBackoff(attempt int) time.Duration {
	delay := d.retryBase * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	// Add 0-25% jitter.
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}

func (d *Dispatcher) toolSchemas() []domain.ToolSchema {
	if d.deps.Tools == nil {
		return nil
	}
	return d.deps.Tools.Schemas()
}
