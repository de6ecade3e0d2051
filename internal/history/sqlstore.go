package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatrelay/internal/models"
)

// SQLStore keeps one row per session in the histories table, the message
// sequence JSON-encoded in a single column so Set stays an atomic full
// replacement.
type SQLStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("database handle required")
	}
	return &SQLStore{db: db, driver: strings.ToLower(driver)}, nil
}

func (s *SQLStore) Get(ctx context.Context, sessionID string) ([]models.Message, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT messages FROM histories WHERE session_id = ?`, sessionID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Message{}, nil
		}
		return nil, fmt.Errorf("load history %s: %w", sessionID, err)
	}
	var messages []models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", sessionID, err)
	}
	return messages, nil
}

func (s *SQLStore) Set(ctx context.Context, sessionID string, messages []models.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode history %s: %w", sessionID, err)
	}

	var stmt string
	switch s.driver {
	case "mysql":
		stmt = `INSERT INTO histories (session_id, messages, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE messages = VALUES(messages), updated_at = VALUES(updated_at)`
	default: // sqlite
		stmt = `INSERT INTO histories (session_id, messages, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET messages = excluded.messages, updated_at = excluded.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, stmt, sessionID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("store history %s: %w", sessionID, err)
	}
	return nil
}
