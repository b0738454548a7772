package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
// A validation failure at startup is fatal: the process must not serve traffic
// with broken configuration.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAgent(cfg, ve)
	validateModel(cfg, ve)
	validateState(cfg, ve)
	validateTools(cfg, ve)
	validateSiblings(cfg, ve)
	validateAuth(cfg, ve)
	validateServer(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAgent(cfg *Config, ve *ValidationError) {
	if cfg.Agent.Dir == "" {
		ve.Add("agent.dir must not be empty")
	}
	if cfg.Agent.MaxIterations <= 0 {
		ve.Add("agent.max_iterations must be > 0")
	}
	if cfg.Agent.HistoryTokenBudget < 0 {
		ve.Add("agent.history_token_budget must be >= 0")
	}
}

func validateModel(cfg *Config, ve *ValidationError) {
	if cfg.Model.ID == "" {
		ve.Add("model.id must not be empty")
	}
	if cfg.Model.Timeout <= 0 {
		ve.Add("model.timeout must be > 0")
	}
	if cfg.Model.MaxRetries < 0 {
		ve.Add("model.max_retries must be >= 0")
	}
}

func validateState(cfg *Config, ve *ValidationError) {
	switch cfg.State.Backend {
	case "memory":
	case "dynamo":
		if cfg.State.Table == "" {
			ve.Add("state.table is required for the dynamo backend")
		}
	case "sqlite":
		if cfg.State.Path == "" {
			ve.Add("state.path is required for the sqlite backend")
		}
	default:
		ve.Add("state.backend must be one of memory, dynamo, sqlite (got %q)", cfg.State.Backend)
	}
	if cfg.State.Timeout <= 0 {
		ve.Add("state.timeout must be > 0")
	}
	if cfg.State.Retention.Schedule != "" && cfg.State.Retention.MaxIdle <= 0 {
		ve.Add("state.retention.max_idle must be > 0 when a schedule is set")
	}
}

func validateTools(cfg *Config, ve *ValidationError) {
	if cfg.Tools.CallTimeout <= 0 {
		ve.Add("tools.call_timeout must be > 0")
	}
}

func validateSiblings(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool, len(cfg.Siblings))
	for i, s := range cfg.Siblings {
		if s.Name == "" {
			ve.Add("siblings[%d].name must not be empty", i)
			continue
		}
		if s.Endpoint == "" {
			ve.Add("siblings[%d] (%s): endpoint must not be empty", i, s.Name)
		}
		if seen[s.Name] {
			ve.Add("siblings[%d]: duplicate sibling %q", i, s.Name)
		}
		seen[s.Name] = true
	}
}

func validateAuth(cfg *Config, ve *ValidationError) {
	if !cfg.Auth.Disabled && cfg.Auth.Secret == "" {
		ve.Add("auth.secret is required unless auth.disabled is set")
	}
	if cfg.Auth.TestUser == "" {
		ve.Add("auth.test_user must not be empty")
	}
}

func validateServer(cfg *Config, ve *ValidationError) {
	ports := map[string]int{
		"server.rest_port": cfg.Server.RESTPort,
		"server.mcp_port":  cfg.Server.MCPPort,
		"server.a2a_port":  cfg.Server.A2APort,
	}
	used := make(map[int]string, len(ports))
	for name, p := range ports {
		if p <= 0 || p > 65535 {
			ve.Add("%s must be in 1..65535 (got %d)", name, p)
			continue
		}
		if other, ok := used[p]; ok {
			ve.Add("%s and %s both use port %d", name, other, p)
		}
		used[p] = name
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		ve.Add("server.max_body_bytes must be > 0")
	}
	if cfg.Server.RateLimitRPS < 0 {
		ve.Add("server.rate_limit_rps must be >= 0")
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	case "otlp":
		if cfg.Tracer.Endpoint == "" {
			ve.Add("tracer.endpoint is required for the otlp exporter")
		}
	default:
		ve.Add("tracer.exporter must be one of stdout, otlp, noop (got %q)", cfg.Tracer.Exporter)
	}
}
