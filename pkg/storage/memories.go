package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SaveMemory upserts the serialized memory record for an agent.
func (s *Store) SaveMemory(ctx context.Context, agentID, record string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if strings.TrimSpace(agentID) == "" {
		return fmt.Errorf("agent id required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_memories (agent_id, record, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(agent_id) DO UPDATE SET
			record = excluded.record,
			updated_at = CURRENT_TIMESTAMP
	`, agentID, record)
	return err
}

// LoadMemory returns the serialized memory record for an agent, or
// ("", false, nil) when none exists.
func (s *Store) LoadMemory(ctx context.Context, agentID string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrStoreClosed
	}
	var record string
	err := s.db.QueryRowContext(ctx, `
		SELECT record FROM agent_memories WHERE agent_id = ?
	`, agentID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return record, true, nil
}

// DeleteMemory removes an agent's memory record. Deleting a missing record
// is not an error.
func (s *Store) DeleteMemory(ctx context.Context, agentID string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM agent_memories WHERE agent_id = ?
	`, agentID)
	return err
}

// ListAgents returns the IDs of every agent with a persisted memory record.
func (s *Store) ListAgents(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id FROM agent_memories ORDER BY agent_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
