package main

import (
	"os"
	"testing"
)

func TestConfigPathFlag(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	os.Args = []string{"wanderbot", "--config", "/tmp/custom.yaml"}
	if got := configPath(); got != "/tmp/custom.yaml" {
		t.Errorf("configPath() = %q, want flag value", got)
	}

	os.Args = []string{"wanderbot", "--config=/tmp/other.yaml"}
	if got := configPath(); got != "/tmp/other.yaml" {
		t.Errorf("configPath() = %q, want inline flag value", got)
	}
}

func TestConfigPathEnv(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"wanderbot"}

	t.Setenv("WANDERBOT_CONFIG", "/tmp/env.yaml")
	if got := configPath(); got != "/tmp/env.yaml" {
		t.Errorf("configPath() = %q, want env value", got)
	}
}

func TestConfigPathDefault(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"wanderbot"}

	t.Setenv("WANDERBOT_CONFIG", "")
	if got := configPath(); got != "config.yaml" {
		t.Errorf("configPath() = %q, want default", got)
	}
}
