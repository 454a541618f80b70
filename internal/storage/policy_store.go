package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/model"
)

// ReplacePolicy atomically replaces all escalation policy levels for a team.
// Existing levels are deleted and the new set inserted in one transaction.
func (s *Store) ReplacePolicy(ctx context.Context, team string, levels []model.PolicyLevel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM escalation_policy_levels WHERE team = ?", team); err != nil {
		return fmt.Errorf("failed to delete existing policy: %w", err)
	}

	for _, level := range levels {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO escalation_policy_levels (team, level, wait_minutes, notify_target)
			VALUES (?, ?, ?, ?)`,
			team, level.Level, level.WaitMinutes, level.NotifyTarget,
		)
		if err != nil {
			return fmt.Errorf("failed to insert policy level %d: %w", level.Level, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit policy: %w", err)
	}

	s.logger.Info("Replaced escalation policy",
		zap.String("team", team),
		zap.Int("levels", len(levels)))
	return nil
}

// PolicyLevel returns the policy row for (team, level), or nil when the team
// has no rule at that level.
func (s *Store) PolicyLevel(ctx context.Context, team string, level int) (*model.PolicyLevel, error) {
	var p model.PolicyLevel
	err := s.db.QueryRowContext(ctx, `
		SELECT team, level, wait_minutes, notify_target
		FROM escalation_policy_levels
		WHERE team = ? AND level = ?`, team, level,
	).Scan(&p.Team, &p.Level, &p.WaitMinutes, &p.NotifyTarget)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan policy level: %w", err)
	}
	return &p, nil
}

// PolicyLevels returns a team's policy levels ordered by level
func (s *Store) PolicyLevels(ctx context.Context, team string) ([]model.PolicyLevel, error) {
	return s.queryPolicyLevels(ctx, `
		SELECT team, level, wait_minutes, notify_target
		FROM escalation_policy_levels
		WHERE team = ?
		ORDER BY level`, team)
}

// AllPolicyLevels returns every policy level ordered by team then level
func (s *Store) AllPolicyLevels(ctx context.Context) ([]model.PolicyLevel, error) {
	return s.queryPolicyLevels(ctx, `
		SELECT team, level, wait_minutes, notify_target
		FROM escalation_policy_levels
		ORDER BY team, level`)
}

func (s *Store) queryPolicyLevels(ctx context.Context, query string, args ...interface{}) ([]model.PolicyLevel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy levels: %w", err)
	}
	defer rows.Close()

	var levels []model.PolicyLevel
	for rows.Next() {
		var p model.PolicyLevel
		if err := rows.Scan(&p.Team, &p.Level, &p.WaitMinutes, &p.NotifyTarget); err != nil {
			return nil, fmt.Errorf("failed to scan policy level: %w", err)
		}
		levels = append(levels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return levels, nil
}
