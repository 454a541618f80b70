package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/t77yq/oncall-engine/internal/model"
)

// CreateEscalation appends an escalation record. Records are never updated
// or deleted.
func (s *Store) CreateEscalation(ctx context.Context, esc *model.Escalation) error {
	if esc.ID == "" {
		esc.ID = uuid.New().String()
	}
	if esc.EscalatedAt.IsZero() {
		esc.EscalatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO escalations (id, incident_id, from_engineer, to_engineer, level, reason, escalated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		esc.ID,
		esc.IncidentID,
		esc.FromEngineer,
		esc.ToEngineer,
		esc.Level,
		sql.NullString{String: esc.Reason, Valid: esc.Reason != ""},
		esc.EscalatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store escalation: %w", err)
	}
	return nil
}

// ListEscalations returns escalation history newest-first, optionally
// filtered by incident, with limit/offset pagination.
func (s *Store) ListEscalations(ctx context.Context, incidentID string, limit, offset int) ([]*model.Escalation, error) {
	query := `
		SELECT id, incident_id, from_engineer, to_engineer, level, reason, escalated_at
		FROM escalations`
	args := make([]interface{}, 0, 3)
	if incidentID != "" {
		query += " WHERE incident_id = ?"
		args = append(args, incidentID)
	}
	query += " ORDER BY escalated_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	var escalations []*model.Escalation
	for rows.Next() {
		esc := &model.Escalation{}
		var reason sql.NullString
		err := rows.Scan(
			&esc.ID,
			&esc.IncidentID,
			&esc.FromEngineer,
			&esc.ToEngineer,
			&esc.Level,
			&reason,
			&esc.EscalatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		if reason.Valid {
			esc.Reason = reason.String
		}
		escalations = append(escalations, esc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return escalations, nil
}
