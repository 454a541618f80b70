// Package escalation drives incidents through the escalation ladder: a
// controller executes single escalation steps, and a reconciler sweeps
// expired timers on a fixed period.
package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/metrics"
	"github.com/t77yq/oncall-engine/internal/model"
	"github.com/t77yq/oncall-engine/internal/rotation"
)

// Store is the persistence surface the escalation engine needs
type Store interface {
	LatestSchedule(ctx context.Context, team string) (*model.Schedule, error)
	PolicyLevel(ctx context.Context, team string, level int) (*model.PolicyLevel, error)
	CreateTimer(ctx context.Context, timer *model.EscalationTimer) error
	DeactivateTimersByIncident(ctx context.Context, incidentID string) (int64, error)
	DeactivateTimer(ctx context.Context, id string) (bool, error)
	ExpiredTimers(ctx context.Context, now time.Time) ([]*model.EscalationTimer, error)
	CreateEscalation(ctx context.Context, esc *model.Escalation) error
}

// Notifier delivers escalation messages. Delivery is best-effort: an error
// never fails the escalation that triggered it.
type Notifier interface {
	Notify(ctx context.Context, incidentID, engineer, message string) error
}

// Settings carries the escalation tunables
type Settings struct {
	// DefaultTeam is assumed when an escalation request names no team
	DefaultTeam string

	// ManagerEmail is the target for levels past the secondary
	ManagerEmail string

	// DefaultWaitMinutes applies when neither the policy nor the schedule
	// sets a wait
	DefaultWaitMinutes int

	// MaxLevel bounds the automatic ladder; no timer is created once a
	// timer's level reaches it
	MaxLevel int
}

// Request describes a manual escalation
type Request struct {
	IncidentID string
	Team       string
	Level      int
	Reason     string
}

// Controller executes single escalation steps
type Controller struct {
	logger   *zap.Logger
	settings Settings
	store    Store
	notifier Notifier
	events   EventPublisher
	metrics  metrics.Sink
	clock    func() time.Time
}

// NewController creates an escalation controller. events and sink may be nil
// when the event bus or metrics are disabled.
func NewController(logger *zap.Logger, settings Settings, store Store, notifier Notifier, events EventPublisher, sink metrics.Sink) *Controller {
	if events == nil {
		events = NoopEvents{}
	}
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Controller{
		logger:   logger.Named("escalation"),
		settings: settings,
		store:    store,
		notifier: notifier,
		events:   events,
		metrics:  sink,
		clock:    time.Now,
	}
}

// Escalate performs a manual escalation step. The returned record is the
// source of truth for success: timer rotation and notification are
// best-effort and never fail the operation once the record is persisted.
func (c *Controller) Escalate(ctx context.Context, req Request) (*model.Escalation, error) {
	now := c.clock().UTC()

	team := req.Team
	if team == "" {
		team = c.settings.DefaultTeam
	}
	level := req.Level
	if level < 1 {
		level = 1
	}

	schedule, err := c.store.LatestSchedule(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	if schedule == nil {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, team)
	}

	primary, secondary := rotation.CurrentOnCall(schedule, now)
	if primary == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEngineers, team)
	}

	target, err := c.resolveTarget(ctx, team, level, secondary)
	if err != nil {
		return nil, err
	}

	from := primary.Email
	if level >= 2 && secondary != nil {
		from = secondary.Email
	}

	reason := req.Reason
	if reason == "" {
		reason = "No acknowledgment within escalation window"
	}

	esc := &model.Escalation{
		ID:           uuid.New().String(),
		IncidentID:   req.IncidentID,
		FromEngineer: from,
		ToEngineer:   target,
		Level:        level,
		Reason:       reason,
		EscalatedAt:  now,
	}
	if err := c.store.CreateEscalation(ctx, esc); err != nil {
		return nil, fmt.Errorf("failed to record escalation: %w", err)
	}
	c.metrics.EscalationRecorded(team)

	// Non-critical from here on
	if _, err := c.store.DeactivateTimersByIncident(ctx, req.IncidentID); err != nil {
		c.logger.Warn("Failed to deactivate existing timers",
			zap.String("incident_id", req.IncidentID),
			zap.Error(err))
	}
	c.startTimer(ctx, req.IncidentID, team, level+1, target, schedule.EscalationMinutes, now)
	c.notify(ctx, team, req.IncidentID, target,
		fmt.Sprintf("[ESCALATED L%d] Incident %s escalated to you. Reason: %s", level, req.IncidentID, reason))
	c.publish(ctx, esc, TriggerManual)

	c.logger.Info("Escalation recorded",
		zap.String("incident_id", req.IncidentID),
		zap.String("team", team),
		zap.Int("level", level),
		zap.String("from", from),
		zap.String("to", target))
	return esc, nil
}

// AutoEscalate performs the escalation step for an expired timer: it records
// the escalation at the timer's current level, retires the timer, and starts
// the next-level timer while the ladder bound allows.
func (c *Controller) AutoEscalate(ctx context.Context, timer *model.EscalationTimer) (*model.Escalation, error) {
	now := c.clock().UTC()

	schedule, err := c.store.LatestSchedule(ctx, timer.Team)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	if schedule == nil {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, timer.Team)
	}

	_, secondary := rotation.CurrentOnCall(schedule, now)

	target, err := c.resolveTarget(ctx, timer.Team, timer.CurrentLevel, secondary)
	if err != nil {
		return nil, err
	}

	esc := &model.Escalation{
		ID:           uuid.New().String(),
		IncidentID:   timer.IncidentID,
		FromEngineer: timer.AssignedTo,
		ToEngineer:   target,
		Level:        timer.CurrentLevel,
		Reason:       fmt.Sprintf("Auto-escalation: no acknowledgment within escalation window (level %d)", timer.CurrentLevel),
		EscalatedAt:  now,
	}
	if err := c.store.CreateEscalation(ctx, esc); err != nil {
		return nil, fmt.Errorf("failed to record escalation: %w", err)
	}
	c.metrics.EscalationRecorded(timer.Team)

	if ok, err := c.store.DeactivateTimer(ctx, timer.ID); err != nil {
		c.logger.Warn("Failed to deactivate fired timer",
			zap.String("timer_id", timer.ID),
			zap.Error(err))
	} else if ok {
		c.metrics.TimerDeactivated(timer.Team)
	}

	if timer.CurrentLevel < c.settings.MaxLevel {
		c.startTimer(ctx, timer.IncidentID, timer.Team, timer.CurrentLevel+1, target, schedule.EscalationMinutes, now)
	}

	c.notify(ctx, timer.Team, timer.IncidentID, target,
		fmt.Sprintf("[AUTO-ESCALATED L%d] Incident %s escalated to you. Previous assignee (%s) did not acknowledge.",
			timer.CurrentLevel, timer.IncidentID, timer.AssignedTo))
	c.publish(ctx, esc, TriggerAuto)

	return esc, nil
}

// StartTimer starts a level-1 escalation timer for a newly assigned
// incident. Unlike the internal timer rotation this is a primary write:
// failures surface to the caller.
func (c *Controller) StartTimer(ctx context.Context, incidentID, team, assignedTo string) (*model.EscalationTimer, error) {
	now := c.clock().UTC()

	schedule, err := c.store.LatestSchedule(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	if schedule == nil {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, team)
	}

	wait := c.waitMinutes(ctx, team, 1, schedule.EscalationMinutes)
	timer := &model.EscalationTimer{
		IncidentID:    incidentID,
		Team:          team,
		CurrentLevel:  1,
		AssignedTo:    assignedTo,
		EscalateAfter: now.Add(time.Duration(wait) * time.Minute),
	}
	if err := c.store.CreateTimer(ctx, timer); err != nil {
		return nil, fmt.Errorf("failed to create timer: %w", err)
	}
	c.metrics.TimerStarted(team)
	return timer, nil
}

// CancelTimers deactivates all active timers for an incident. Cancelling an
// incident with no active timer is a no-op.
func (c *Controller) CancelTimers(ctx context.Context, incidentID string) (int64, error) {
	cancelled, err := c.store.DeactivateTimersByIncident(ctx, incidentID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel timers: %w", err)
	}
	if cancelled > 0 {
		c.logger.Info("Cancelled escalation timers",
			zap.String("incident_id", incidentID),
			zap.Int64("count", cancelled))
	}
	return cancelled, nil
}

// resolveTarget picks the notify target for (team, level). The policy row
// wins when present and satisfiable; otherwise level 1 falls back to the
// secondary, and everything else goes to the manager address.
func (c *Controller) resolveTarget(ctx context.Context, team string, level int, secondary *model.Engineer) (string, error) {
	policy, err := c.store.PolicyLevel(ctx, team, level)
	if err != nil {
		c.logger.Warn("Failed to look up escalation policy",
			zap.String("team", team),
			zap.Int("level", level),
			zap.Error(err))
		policy = nil
	}

	if policy != nil {
		switch policy.NotifyTarget {
		case model.NotifyTargetSecondary:
			if secondary != nil {
				return secondary.Email, nil
			}
			// no secondary to hand off to; fall back below
		case model.NotifyTargetManager:
			if c.settings.ManagerEmail != "" {
				return c.settings.ManagerEmail, nil
			}
		default:
			if policy.NotifyTarget != "" {
				return policy.NotifyTarget, nil
			}
		}
	}

	if level == 1 && secondary != nil {
		return secondary.Email, nil
	}
	if c.settings.ManagerEmail != "" {
		return c.settings.ManagerEmail, nil
	}
	return "", fmt.Errorf("%w: team %s level %d", ErrNoEscalationTarget, team, level)
}

// startTimer creates the next-level timer. A failure is logged and
// swallowed; the incident simply has no pending timer until someone
// escalates it again.
func (c *Controller) startTimer(ctx context.Context, incidentID, team string, level int, assignedTo string, scheduleDefault int, now time.Time) {
	wait := c.waitMinutes(ctx, team, level, scheduleDefault)
	timer := &model.EscalationTimer{
		IncidentID:    incidentID,
		Team:          team,
		CurrentLevel:  level,
		AssignedTo:    assignedTo,
		EscalateAfter: now.Add(time.Duration(wait) * time.Minute),
	}
	if err := c.store.CreateTimer(ctx, timer); err != nil {
		c.logger.Error("Failed to create escalation timer",
			zap.String("incident_id", incidentID),
			zap.Int("level", level),
			zap.Error(err))
		return
	}
	c.metrics.TimerStarted(team)
}

// waitMinutes resolves the wait before the next check: policy level first,
// then the schedule's default, then the configured default.
func (c *Controller) waitMinutes(ctx context.Context, team string, level, scheduleDefault int) int {
	wait := c.settings.DefaultWaitMinutes
	if scheduleDefault > 0 {
		wait = scheduleDefault
	}
	policy, err := c.store.PolicyLevel(ctx, team, level)
	if err != nil {
		c.logger.Warn("Failed to look up wait minutes, using default",
			zap.String("team", team),
			zap.Int("level", level),
			zap.Error(err))
		return wait
	}
	if policy != nil && policy.WaitMinutes > 0 {
		wait = policy.WaitMinutes
	}
	return wait
}

func (c *Controller) notify(ctx context.Context, team, incidentID, engineer, message string) {
	if err := c.notifier.Notify(ctx, incidentID, engineer, message); err != nil {
		c.metrics.NotificationAttempted(team, metrics.NotificationFailed)
		c.logger.Warn("Notification service unavailable",
			zap.String("incident_id", incidentID),
			zap.String("engineer", engineer),
			zap.Error(err))
		return
	}
	c.metrics.NotificationAttempted(team, metrics.NotificationSent)
}

func (c *Controller) publish(ctx context.Context, esc *model.Escalation, trigger string) {
	if err := c.events.PublishEscalation(ctx, esc, trigger); err != nil {
		c.logger.Warn("Failed to publish escalation event",
			zap.String("escalation_id", esc.ID),
			zap.Error(err))
	}
}
