package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration for one agent process. Every agent
// (orchestrator, weather, citymapper) runs the same binary; the agent directory
// and this config are what make it one role or another.
type Config struct {
	Agent    AgentConfig     `yaml:"agent"`
	Model    ModelConfig     `yaml:"model"`
	State    StateConfig     `yaml:"state"`
	Tools    ToolsConfig     `yaml:"tools"`
	Siblings []SiblingConfig `yaml:"siblings,omitempty"`
	Auth     AuthConfig      `yaml:"auth"`
	Server   ServerConfig    `yaml:"server"`
	Logger   LoggerConfig    `yaml:"logger"`
	Tracer   TracerConfig    `yaml:"tracer"`
}

// AgentConfig locates the agent's profile and bounds the model loop.
type AgentConfig struct {
	// Dir is the agent directory holding agent.md and tools.json.
	Dir string `yaml:"dir"`
	// ProfilePath, when set, overrides the conventional agent.md lookup.
	ProfilePath string `yaml:"profile_path"`
	// FallbackPath is the named fallback profile tried last.
	// Empty means <dir>/wanderbot.md.
	FallbackPath string `yaml:"fallback_path"`
	// MaxIterations bounds the model/tool loop per request.
	MaxIterations int `yaml:"max_iterations"`
	// HistoryTokenBudget caps how much history is sent to the model.
	// 0 disables trimming.
	HistoryTokenBudget int `yaml:"history_token_budget"`
}

// ModelConfig configures the Bedrock Converse backend.
type ModelConfig struct {
	ID          string        `yaml:"id"`
	Region      string        `yaml:"region"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker around the model backend.
// Zero values select the adapter's defaults.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// StateConfig selects and configures the conversation store backend.
type StateConfig struct {
	// Backend is one of "memory", "dynamo", "sqlite".
	Backend string `yaml:"backend"`
	// Table is the DynamoDB table name. Required for the dynamo backend.
	Table string `yaml:"table"`
	// Endpoint overrides the DynamoDB endpoint (local stacks).
	Endpoint string `yaml:"endpoint"`
	// Path is the sqlite database file. Required for the sqlite backend.
	Path string `yaml:"path"`
	// Timeout bounds each store operation.
	Timeout   time.Duration   `yaml:"timeout"`
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig schedules reaping of idle conversations (memory backend only).
type RetentionConfig struct {
	// Schedule is a cron expression; empty disables retention.
	Schedule string        `yaml:"schedule"`
	MaxIdle  time.Duration `yaml:"max_idle"`
}

// ToolsConfig locates the tool manifest and bounds invocations.
type ToolsConfig struct {
	// ManifestPath overrides the conventional <dir>/tools.json lookup.
	ManifestPath string `yaml:"manifest_path"`
	// CallTimeout is the default per-invocation bound when a manifest entry
	// declares none.
	CallTimeout time.Duration `yaml:"call_timeout"`
	// ValidateArgs enables JSON-schema validation of local tool arguments.
	ValidateArgs bool `yaml:"validate_args"`
}

// SiblingConfig declares a peer agent the orchestrator delegates to.
type SiblingConfig struct {
	Name        string        `yaml:"name"`
	ToolName    string        `yaml:"tool_name"`
	Description string        `yaml:"description"`
	Endpoint    string        `yaml:"endpoint"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AuthConfig configures REST bearer authentication.
type AuthConfig struct {
	// Disabled turns auth off for development; requests act as TestUser.
	Disabled bool `yaml:"disabled"`
	// Secret is the HMAC key for bearer tokens. Required unless Disabled.
	Secret string `yaml:"secret"`
	// TestUser is the identity assumed when auth is disabled.
	TestUser string `yaml:"test_user"`
}

// ServerConfig holds the per-protocol listener settings.
type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
	MCPPort  int `yaml:"mcp_port"`
	A2APort  int `yaml:"a2a_port"`
	// PublicURL is the externally reachable base URL advertised in the agent
	// card. Empty derives http://localhost:<a2a_port>.
	PublicURL      string        `yaml:"public_url"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultModelID is the Bedrock model used when none is configured.
const DefaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

// Defaults returns a Config with all defaults applied.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Dir:                ".",
			MaxIterations:      8,
			HistoryTokenBudget: 8000,
		},
		Model: ModelConfig{
			ID:         DefaultModelID,
			MaxTokens:  2048,
			Timeout:    60 * time.Second,
			MaxRetries: 2,
		},
		State: StateConfig{
			Backend: "memory",
			Path:    "wanderbot.db",
			Timeout: 5 * time.Second,
			Retention: RetentionConfig{
				MaxIdle: 24 * time.Hour,
			},
		},
		Tools: ToolsConfig{
			CallTimeout:  30 * time.Second,
			ValidateArgs: true,
		},
		Auth: AuthConfig{
			TestUser: "test-user",
		},
		Server: ServerConfig{
			RESTPort:       3000,
			MCPPort:        8080,
			A2APort:        9000,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   120 * time.Second,
			MaxBodyBytes:   1 << 20,
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
	}
}

// ProfileFallback returns the effective named-fallback profile path.
func (c *Config) ProfileFallback() string {
	if c.Agent.FallbackPath != "" {
		return c.Agent.FallbackPath
	}
	return filepath.Join(c.Agent.Dir, "wanderbot.md")
}

// ManifestPath returns the effective tool manifest path.
func (c *Config) ManifestPath() string {
	if c.Tools.ManifestPath != "" {
		return c.Tools.ManifestPath
	}
	return filepath.Join(c.Agent.Dir, "tools.json")
}

// Load reads the config file at path, applies env overrides and validates.
// A missing file is not an error: defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps WANDERBOT_* env vars to config fields.
// BEDROCK_MODEL_ID and DISABLE_AUTH are honored as compatibility aliases.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WANDERBOT_AGENT_DIR"); v != "" {
		cfg.Agent.Dir = v
	}
	if v := os.Getenv("WANDERBOT_PROFILE_PATH"); v != "" {
		cfg.Agent.ProfilePath = v
	}
	if v := os.Getenv("WANDERBOT_FALLBACK_PATH"); v != "" {
		cfg.Agent.FallbackPath = v
	}
	if v := os.Getenv("WANDERBOT_MODEL_ID"); v != "" {
		cfg.Model.ID = v
	} else if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Model.ID = v
	}
	if v := os.Getenv("WANDERBOT_MODEL_REGION"); v != "" {
		cfg.Model.Region = v
	}
	if v := os.Getenv("WANDERBOT_MODEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Model.Timeout = d
		}
	}
	if v := os.Getenv("WANDERBOT_STATE_BACKEND"); v != "" {
		cfg.State.Backend = v
	}
	if v := os.Getenv("WANDERBOT_STATE_TABLE"); v != "" {
		cfg.State.Table = v
	}
	if v := os.Getenv("WANDERBOT_STATE_ENDPOINT"); v != "" {
		cfg.State.Endpoint = v
	}
	if v := os.Getenv("WANDERBOT_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}
	if v := os.Getenv("WANDERBOT_TOOLS_MANIFEST"); v != "" {
		cfg.Tools.ManifestPath = v
	}
	if v := os.Getenv("WANDERBOT_DISABLE_AUTH"); v == "true" || v == "1" {
		cfg.Auth.Disabled = true
	} else if v := os.Getenv("DISABLE_AUTH"); v == "true" || v == "1" {
		cfg.Auth.Disabled = true
	}
	if v := os.Getenv("WANDERBOT_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("WANDERBOT_REST_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.RESTPort = n
		}
	}
	if v := os.Getenv("WANDERBOT_MCP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.MCPPort = n
		}
	}
	if v := os.Getenv("WANDERBOT_A2A_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.A2APort = n
		}
	}
	if v := os.Getenv("WANDERBOT_PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = v
	}
	if v := os.Getenv("WANDERBOT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("WANDERBOT_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("WANDERBOT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("WANDERBOT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("WANDERBOT_TRACER_ENDPOINT"); v != "" {
		cfg.Tracer.Endpoint = v
	}
}

func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
