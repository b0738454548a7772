package domain

import (
	"context"
	"time"
)

// Turn is one persisted entry in a user's conversation history.
// Role is always RoleUser or RoleAgent.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationRecord is the durable per-user history. At most one record exists
// per user id; turns are insertion-ordered and never reordered or deduplicated.
type ConversationRecord struct {
	UserID    string    `json:"user_id"`
	Turns     []Turn    `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidTurnRole reports whether role is allowed in persisted history.
func ValidTurnRole(role string) bool {
	return role == RoleUser || role == RoleAgent
}

// ConversationStore persists per-user append-style conversation history.
// Implementations must be safe for concurrent use; unavailability of the
// backing store surfaces as ErrStorageUnavailable, never as a panic or a
// process-fatal condition.
type ConversationStore interface {
	// Load returns the user's turns in insertion order. A user with no record
	// yields an empty slice and a nil error.
	Load(ctx context.Context, userID string) ([]Turn, error)
	// Append adds one turn to the end of the user's history, creating the
	// record if absent. Two identical appends produce two distinct turns.
	Append(ctx context.Context, userID, role, text string) error
	// Clear removes the user's record entirely. Clearing an absent record is
	// not an error.
	Clear(ctx context.Context, userID string) error
}
