package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"wanderbot/internal/domain"
)

// SQLiteStore implements domain.ConversationStore on a local SQLite file.
// Each turn is one row; insertion order is recovered from the rowid.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open conversation db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate conversation db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			role       TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_turns_user ON turns (user_id, id)")
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, text, created_at FROM turns WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, storageErr("sqlite.load", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var createdStr string
		if err := rows.Scan(&t.Role, &t.Text, &createdStr); err != nil {
			return nil, storageErr("sqlite.load", err)
		}
		t.Timestamp, _ = time.Parse(time.RFC3339Nano, createdStr)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("sqlite.load", err)
	}
	return turns, nil
}

func (s *SQLiteStore) Append(ctx context.Context, userID, role, text string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO turns (user_id, role, text, created_at) VALUES (?, ?, ?, ?)",
		userID, role, text, now.Format(time.RFC3339Nano))
	if err != nil {
		return storageErr("sqlite.append", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM turns WHERE user_id = ?", userID); err != nil {
		return storageErr("sqlite.clear", err)
	}
	return nil
}
