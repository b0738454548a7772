// Package channel hosts the protocol adapters that expose an agent process
// to the outside world: a REST API, an MCP server and an A2A endpoint. Each
// channel owns its listener and feeds inbound messages into the dispatcher.
package channel

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Dispatcher is the entrypoint channels feed user messages into.
type Dispatcher interface {
	Handle(ctx context.Context, userID, text string) (string, error)
}

// slugify lowercases name and replaces anything outside [a-z0-9] with
// underscores, for use in tool and skill identifiers.
func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	s = strings.Trim(s, "_")
	if s == "" {
		return "agent"
	}
	return s
}

func generateMessageID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
