package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Auth.Disabled = true
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateMissingAuthSecretIsFatal(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.Disabled = false
	cfg.Auth.Secret = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for enabled auth without secret")
	}
	if !strings.Contains(err.Error(), "auth.secret") {
		t.Errorf("error should mention auth.secret: %v", err)
	}
}

func TestValidateDynamoRequiresTable(t *testing.T) {
	cfg := validConfig()
	cfg.State.Backend = "dynamo"
	cfg.State.Table = ""
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "state.table") {
		t.Errorf("expected state.table error, got %v", err)
	}
}

func TestValidateUnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.State.Backend = "redis"
	if err := Validate(cfg); err == nil {
		t.Error("expected error for unknown state backend")
	}
}

func TestValidateMissingModelID(t *testing.T) {
	cfg := validConfig()
	cfg.Model.ID = ""
	if err := Validate(cfg); err == nil {
		t.Error("expected error for empty model id")
	}
}

func TestValidatePortCollision(t *testing.T) {
	cfg := validConfig()
	cfg.Server.MCPPort = cfg.Server.RESTPort
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "port") {
		t.Errorf("expected port collision error, got %v", err)
	}
}

func TestValidatePortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Server.A2APort = 70000
	if err := Validate(cfg); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestValidateSiblings(t *testing.T) {
	cfg := validConfig()
	cfg.Siblings = []SiblingConfig{
		{Name: "weather", Endpoint: "http://localhost:9001"},
		{Name: "weather", Endpoint: "http://localhost:9002"},
	}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate sibling error, got %v", err)
	}
}

func TestValidateSiblingMissingEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Siblings = []SiblingConfig{{Name: "citymapper"}}
	if err := Validate(cfg); err == nil {
		t.Error("expected error for sibling without endpoint")
	}
}

func TestValidateOTLPRequiresEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Tracer.Enabled = true
	cfg.Tracer.Exporter = "otlp"
	cfg.Tracer.Endpoint = ""
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "tracer.endpoint") {
		t.Errorf("expected tracer.endpoint error, got %v", err)
	}
}

func TestValidateAccumulatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Model.ID = ""
	cfg.Agent.MaxIterations = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) < 2 {
		t.Errorf("expected at least 2 accumulated errors, got %d: %v", len(ve.Errors), ve.Errors)
	}
}
