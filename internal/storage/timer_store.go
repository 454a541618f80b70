package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/model"
)

// CreateTimer persists a new active escalation timer. Any previously active
// timer for the same incident is deactivated first so the one-active-timer
// invariant holds.
func (s *Store) CreateTimer(ctx context.Context, timer *model.EscalationTimer) error {
	if timer.ID == "" {
		timer.ID = uuid.New().String()
	}
	if timer.CreatedAt.IsZero() {
		timer.CreatedAt = time.Now().UTC()
	}
	timer.Active = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE escalation_timers SET active = 0 WHERE incident_id = ? AND active = 1",
		timer.IncidentID,
	); err != nil {
		return fmt.Errorf("failed to supersede existing timer: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO escalation_timers (
			id, incident_id, team, current_level, assigned_to,
			escalate_after, active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		timer.ID,
		timer.IncidentID,
		timer.Team,
		timer.CurrentLevel,
		timer.AssignedTo,
		timer.EscalateAfter,
		timer.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to store timer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit timer: %w", err)
	}

	s.logger.Info("Escalation timer set",
		zap.String("incident_id", timer.IncidentID),
		zap.String("team", timer.Team),
		zap.Int("level", timer.CurrentLevel),
		zap.Time("escalate_after", timer.EscalateAfter))
	return nil
}

// DeactivateTimersByIncident deactivates all active timers for an incident
// and returns how many rows changed. Deactivating an already-inactive timer
// is a no-op, which keeps cancel-after-acknowledge idempotent.
func (s *Store) DeactivateTimersByIncident(ctx context.Context, incidentID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE escalation_timers SET active = 0 WHERE incident_id = ? AND active = 1",
		incidentID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate timers: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

// DeactivateTimer deactivates a single timer by ID. It reports whether the
// timer was still active, so concurrent paths can tell when the other side
// already claimed it.
func (s *Store) DeactivateTimer(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE escalation_timers SET active = 0 WHERE id = ? AND active = 1", id)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate timer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// ExpiredTimers returns active timers whose fire time has passed, earliest
// first. The ordering bounds starvation when a tick cannot drain the queue.
func (s *Store) ExpiredTimers(ctx context.Context, now time.Time) ([]*model.EscalationTimer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, team, current_level, assigned_to, escalate_after, active, created_at
		FROM escalation_timers
		WHERE active = 1 AND escalate_after <= ?
		ORDER BY escalate_after`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired timers: %w", err)
	}
	defer rows.Close()
	return scanTimers(rows)
}

// ListActiveTimers returns active timers, optionally filtered by team and/or
// incident.
func (s *Store) ListActiveTimers(ctx context.Context, team, incidentID string) ([]*model.EscalationTimer, error) {
	query := `
		SELECT id, incident_id, team, current_level, assigned_to, escalate_after, active, created_at
		FROM escalation_timers
		WHERE active = 1`
	args := make([]interface{}, 0, 2)
	if team != "" {
		query += " AND team = ?"
		args = append(args, team)
	}
	if incidentID != "" {
		query += " AND incident_id = ?"
		args = append(args, incidentID)
	}
	query += " ORDER BY escalate_after"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active timers: %w", err)
	}
	defer rows.Close()
	return scanTimers(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTimers(rows rowScanner) ([]*model.EscalationTimer, error) {
	var timers []*model.EscalationTimer
	for rows.Next() {
		timer := &model.EscalationTimer{}
		var active int
		err := rows.Scan(
			&timer.ID,
			&timer.IncidentID,
			&timer.Team,
			&timer.CurrentLevel,
			&timer.AssignedTo,
			&timer.EscalateAfter,
			&active,
			&timer.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timer: %w", err)
		}
		timer.Active = active == 1
		timers = append(timers, timer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return timers, nil
}
