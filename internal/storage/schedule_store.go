package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/model"
)

// dateLayout is how rotation start dates are stored. Only the calendar day
// matters to the rotation arithmetic.
const dateLayout = "2006-01-02"

// CreateSchedule persists a new rotation schedule. ID and CreatedAt are
// assigned when empty. The engineer list is serialized as JSON at this
// boundary; the in-memory form stays strongly typed.
func (s *Store) CreateSchedule(ctx context.Context, schedule *model.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}

	engineers, err := json.Marshal(schedule.Engineers)
	if err != nil {
		return fmt.Errorf("failed to marshal engineers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedules (
			id, team, rotation_type, start_date, engineers,
			handoff_hour, timezone, escalation_minutes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID,
		schedule.Team,
		string(schedule.RotationType),
		schedule.StartDate.Format(dateLayout),
		string(engineers),
		schedule.HandoffHour,
		schedule.Timezone,
		schedule.EscalationMinutes,
		schedule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store schedule: %w", err)
	}
	return nil
}

// LatestSchedule returns the most recently created schedule for a team, or
// nil when the team has none. Superseded schedules are ignored.
func (s *Store) LatestSchedule(ctx context.Context, team string) (*model.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, team, rotation_type, start_date, engineers,
		       handoff_hour, timezone, escalation_minutes, created_at
		FROM schedules
		WHERE team = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, team)

	schedule, err := scanSchedule(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}
	return schedule, nil
}

// ListSchedules returns schedules newest-first, optionally filtered by team
func (s *Store) ListSchedules(ctx context.Context, team string) ([]*model.Schedule, error) {
	query := `
		SELECT id, team, rotation_type, start_date, engineers,
		       handoff_hour, timezone, escalation_minutes, created_at
		FROM schedules`
	args := make([]interface{}, 0, 1)
	if team != "" {
		query += " WHERE team = ?"
		args = append(args, team)
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*model.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule by ID. When the owning team has no
// schedules left, the team's policy levels and active timers are removed as
// well. Escalation history is append-only and never deleted.
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	var team string
	err := s.db.QueryRowContext(ctx, "SELECT team FROM schedules WHERE id = ?", id).Scan(&team)
	if err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("failed to look up schedule: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM schedules WHERE team = ?", team).Scan(&remaining); err != nil {
		return fmt.Errorf("failed to count remaining schedules: %w", err)
	}

	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM escalation_policy_levels WHERE team = ?", team); err != nil {
			return fmt.Errorf("failed to delete policy levels: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE escalation_timers SET active = 0 WHERE team = ? AND active = 1", team); err != nil {
			return fmt.Errorf("failed to deactivate timers: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Info("Deleted schedule",
		zap.String("id", id),
		zap.String("team", team),
		zap.Bool("cascade", remaining == 0))
	return nil
}

// scanSchedule reads one schedule row using the provided scan function
func scanSchedule(scan func(dest ...interface{}) error) (*model.Schedule, error) {
	var schedule model.Schedule
	var rotationType, startDate, engineers string

	err := scan(
		&schedule.ID,
		&schedule.Team,
		&rotationType,
		&startDate,
		&engineers,
		&schedule.HandoffHour,
		&schedule.Timezone,
		&schedule.EscalationMinutes,
		&schedule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	schedule.RotationType = model.RotationType(rotationType)
	schedule.StartDate, err = time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	if err := json.Unmarshal([]byte(engineers), &schedule.Engineers); err != nil {
		return nil, fmt.Errorf("invalid engineers payload: %w", err)
	}
	return &schedule, nil
}
