// Package state provides domain.ConversationStore implementations backed by
// process memory, SQLite, or DynamoDB. Backend selection is driven by
// config.StateConfig.
package state

import (
	"context"
	"fmt"

	"wanderbot/internal/domain"
	"wanderbot/internal/infra/config"
)

// New builds the conversation store selected by cfg.Backend. The region is
// only consulted by the dynamo backend; the other backends ignore it.
func New(ctx context.Context, cfg config.StateConfig, region string) (domain.ConversationStore, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "dynamo":
		return NewDynamoStore(ctx, cfg, region)
	default:
		return nil, domain.NewDomainError("state.new", domain.ErrConfigLoad,
			fmt.Sprintf("unknown state backend %q", cfg.Backend))
	}
}

// storageErr wraps a backend failure so callers can match ErrStorageUnavailable
// without caring which backend produced it.
func storageErr(op string, err error) error {
	return domain.NewDomainError(op, domain.ErrStorageUnavailable, err.Error())
}
