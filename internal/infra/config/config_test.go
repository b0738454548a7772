package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Agent.MaxIterations != 8 {
		t.Errorf("MaxIterations = %d, want 8", cfg.Agent.MaxIterations)
	}
	if cfg.Model.ID != DefaultModelID {
		t.Errorf("Model.ID = %q, want %q", cfg.Model.ID, DefaultModelID)
	}
	if cfg.State.Backend != "memory" {
		t.Errorf("State.Backend = %q, want %q", cfg.State.Backend, "memory")
	}
	if cfg.Server.RESTPort != 3000 || cfg.Server.MCPPort != 8080 || cfg.Server.A2APort != 9000 {
		t.Errorf("ports = %d/%d/%d, want 3000/8080/9000",
			cfg.Server.RESTPort, cfg.Server.MCPPort, cfg.Server.A2APort)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	t.Setenv("WANDERBOT_DISABLE_AUTH", "1")
	cfg, err := Load("/tmp/nonexistent-config-12345.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.MaxIterations != 8 {
		t.Errorf("expected defaults, got MaxIterations=%d", cfg.Agent.MaxIterations)
	}
	if !cfg.Auth.Disabled {
		t.Error("expected auth disabled via env")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
agent:
  dir: agents/weather
  max_iterations: 4
model:
  id: "us.amazon.nova-lite-v1:0"
  timeout: 45s
state:
  backend: sqlite
  path: weather.db
auth:
  disabled: true
server:
  rest_port: 3001
logger:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.Dir != "agents/weather" {
		t.Errorf("Agent.Dir = %q", cfg.Agent.Dir)
	}
	if cfg.Agent.MaxIterations != 4 {
		t.Errorf("MaxIterations = %d, want 4", cfg.Agent.MaxIterations)
	}
	if cfg.Model.ID != "us.amazon.nova-lite-v1:0" {
		t.Errorf("Model.ID = %q", cfg.Model.ID)
	}
	if cfg.Model.Timeout != 45*time.Second {
		t.Errorf("Model.Timeout = %v, want 45s", cfg.Model.Timeout)
	}
	if cfg.State.Backend != "sqlite" || cfg.State.Path != "weather.db" {
		t.Errorf("State = %+v", cfg.State)
	}
	if cfg.Server.RESTPort != 3001 {
		t.Errorf("RESTPort = %d, want 3001", cfg.Server.RESTPort)
	}
	// Unset sections keep defaults.
	if cfg.Server.MCPPort != 8080 {
		t.Errorf("MCPPort = %d, want default 8080", cfg.Server.MCPPort)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WANDERBOT_MODEL_ID", "us.amazon.nova-pro-v1:0")
	t.Setenv("WANDERBOT_STATE_BACKEND", "dynamo")
	t.Setenv("WANDERBOT_STATE_TABLE", "wanderbot-state")
	t.Setenv("WANDERBOT_REST_PORT", "3002")
	t.Setenv("WANDERBOT_LOGGER_LEVEL", "debug")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Model.ID != "us.amazon.nova-pro-v1:0" {
		t.Errorf("Model.ID = %q", cfg.Model.ID)
	}
	if cfg.State.Backend != "dynamo" || cfg.State.Table != "wanderbot-state" {
		t.Errorf("State = %+v", cfg.State)
	}
	if cfg.Server.RESTPort != 3002 {
		t.Errorf("RESTPort = %d, want 3002", cfg.Server.RESTPort)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
}

func TestEnvOverrideModelIDAlias(t *testing.T) {
	t.Setenv("BEDROCK_MODEL_ID", "us.amazon.nova-micro-v1:0")
	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	if cfg.Model.ID != "us.amazon.nova-micro-v1:0" {
		t.Errorf("Model.ID = %q, BEDROCK_MODEL_ID alias not honored", cfg.Model.ID)
	}
}

func TestEnvOverrideDisableAuthAlias(t *testing.T) {
	t.Setenv("DISABLE_AUTH", "1")
	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	if !cfg.Auth.Disabled {
		t.Error("DISABLE_AUTH=1 alias not honored")
	}
}

func TestLoadRejectsInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  disabled: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// WriteFile modes are umask-filtered, chmod to get a deterministic mode.
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for world-writable config")
	}
}

func TestManifestPathDefault(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.Dir = "agents/weather"
	want := filepath.Join("agents/weather", "tools.json")
	if got := cfg.ManifestPath(); got != want {
		t.Errorf("ManifestPath = %q, want %q", got, want)
	}
	cfg.Tools.ManifestPath = "/etc/wanderbot/tools.json"
	if got := cfg.ManifestPath(); got != "/etc/wanderbot/tools.json" {
		t.Errorf("ManifestPath override = %q", got)
	}
}

func TestProfileFallbackDefault(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.Dir = "agents/weather"
	want := filepath.Join("agents/weather", "wanderbot.md")
	if got := cfg.ProfileFallback(); got != want {
		t.Errorf("ProfileFallback = %q, want %q", got, want)
	}
}
