package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"wanderbot/internal/domain"
	"wanderbot/internal/infra/config"
)

// SiblingCaller sends one utterance to a sibling agent and returns its reply.
type SiblingCaller interface {
	SendMessage(ctx context.Context, text string) (string, error)
}

// DelegateTool exposes a sibling agent as a callable tool. The model picks a
// sibling by tool name; nothing in the gateway reroutes or retries on its
// behalf, so a refusal to delegate is the model's own decision.
type DelegateTool struct {
	sibling config.SiblingConfig
	caller  SiblingCaller
	logger  *slog.Logger
}

// NewDelegateTool creates a delegate tool for one configured sibling.
func NewDelegateTool(sibling config.SiblingConfig, caller SiblingCaller, logger *slog.Logger) *DelegateTool {
	return &DelegateTool{
		sibling: sibling,
		caller:  caller,
		logger:  logger,
	}
}

func (t *DelegateTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        t.sibling.ToolName,
		Description: t.sibling.Description,
		Transport:   domain.TransportHTTP,
		Endpoint:    t.sibling.Endpoint,
		Timeout:     t.sibling.Timeout,
		Enabled:     true,
	}
}

func (t *DelegateTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.sibling.ToolName,
		Description: t.sibling.Description,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "The user's request, phrased for the specialist agent"
				}
			},
			"required": ["query"]
		}`),
	}
}

type delegateParams struct {
	Query string `json:"query"`
}

func (t *DelegateTool) Invoke(ctx context.Context, args json.RawMessage) domain.ToolInvocationResult {
	var p delegateParams
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &p); err != nil {
			return domain.ToolInvocationResult{
				Success:      false,
				ErrorMessage: fmt.Sprintf("invalid params: %v", err),
			}
		}
	}
	if strings.TrimSpace(p.Query) == "" {
		return domain.ToolInvocationResult{Success: false, ErrorMessage: "query is required"}
	}

	if t.sibling.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.sibling.Timeout)
		defer cancel()
	}

	t.logger.Debug("delegating to sibling",
		"agent", t.sibling.Name, "tool", t.sibling.ToolName)

	reply, err := t.caller.SendMessage(ctx, p.Query)
	if err != nil {
		return domain.ToolInvocationResult{
			Success:      false,
			ErrorMessage: fmt.Sprintf("delegation to %s failed: %v", t.sibling.Name, err),
		}
	}
	return domain.ToolInvocationResult{Success: true, Payload: reply}
}
