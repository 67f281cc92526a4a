package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
)

// OperatorEvent is one row in the persisted operator log.
type OperatorEvent struct {
	ID        string
	AgentID   string
	Category  string
	Message   string
	Details   string
	CreatedAt time.Time
}

// AppendEvent records an operator event. IDs are ULIDs so the log sorts
// chronologically by primary key.
func (s *Store) AppendEvent(ctx context.Context, agentID, category, message, details string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operator_events (id, agent_id, category, message, details)
		VALUES (?, ?, ?, ?, ?)
	`, ulid.Make().String(), agentID, category, message, details)
	return err
}

// RecentEvents returns up to limit events for an agent, newest first.
func (s *Store) RecentEvents(ctx context.Context, agentID string, limit int) ([]OperatorEvent, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, category, message, details, created_at
		FROM operator_events
		WHERE agent_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []OperatorEvent
	for rows.Next() {
		var (
			ev      OperatorEvent
			details sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.AgentID, &ev.Category, &ev.Message, &details, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Details = details.String
		events = append(events, ev)
	}
	return events, rows.Err()
}
