package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"wanderbot/internal/infra/config"
	"wanderbot/internal/infra/middleware"
)

const version = "1.0.0"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "profile":
		if err := runProfile(); err != nil {
			fmt.Fprintf(os.Stderr, "profile: %v\n", err)
			os.Exit(1)
		}
	case "tools":
		if err := runTools(); err != nil {
			fmt.Fprintf(os.Stderr, "tools: %v\n", err)
			os.Exit(1)
		}
	case "token":
		if err := runToken(); err != nil {
			fmt.Fprintf(os.Stderr, "token: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("wanderbot %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'wanderbot --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`wanderbot - Cooperating travel-assistant agents

USAGE:
    wanderbot [COMMAND] [FLAGS]

COMMANDS:
    profile     Print the resolved agent profile
    tools       List the tools the agent would register
    token       Issue a bearer token for a user
                Usage: wanderbot token USER [DURATION]
    version     Print the version

    (no command) - Run the agent process

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: WANDERBOT_* variables override config

    Which agent this process becomes is decided by the agent directory:
      wanderbot --config agents/orchestrator/config.yaml
      wanderbot --config agents/weather/config.yaml
      wanderbot --config agents/citymapper/config.yaml

EXAMPLES:
    wanderbot                                    # Run with ./config.yaml
    WANDERBOT_AGENT_DIR=agents/weather wanderbot # Run the weather agent
    wanderbot profile                            # Inspect the resolved profile
    wanderbot token alice 24h                    # Mint a dev bearer token`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("WANDERBOT_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// loadConfig loads .env (best effort) and the config file.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load(configPath())
}

func runProfile() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resolver := config.NewResolver(cfg.Agent.ProfilePath, cfg.Agent.Dir, cfg.ProfileFallback())
	profile, err := resolver.Resolve()
	if err != nil {
		return err
	}

	fmt.Printf("Name:        %s\n", profile.Name)
	fmt.Printf("Description: %s\n", profile.Description)
	fmt.Printf("Instructions:\n%s\n", profile.Instructions)
	return nil
}

func runToken() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: wanderbot token USER [DURATION]")
	}
	user := os.Args[2]

	expiresIn := 24 * time.Hour
	if len(os.Args) >= 4 {
		d, err := time.ParseDuration(os.Args[3])
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", os.Args[3], err)
		}
		expiresIn = d
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is not configured")
	}

	token, err := middleware.NewJWTVerifier([]byte(cfg.Auth.Secret)).IssueToken(user, expiresIn)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
