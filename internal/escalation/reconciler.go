package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/metrics"
	"github.com/t77yq/oncall-engine/internal/model"
)

// StatusChecker asks the incident service for an incident's current status
type StatusChecker interface {
	Status(ctx context.Context, incidentID string) (model.IncidentStatus, error)
}

// TickDetail describes what happened to one expired timer during a pass
type TickDetail struct {
	IncidentID string `json:"incident_id"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
	Level      int    `json:"level,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
}

// Tick actions
const (
	ActionEscalated = "escalated"
	ActionSkipped   = "skipped"
)

// TickResult summarizes one reconciler pass
type TickResult struct {
	Checked   int          `json:"checked"`
	Escalated int          `json:"escalated"`
	Details   []TickDetail `json:"details"`
}

// Reconciler periodically scans for expired escalation timers and drives the
// controller. Each timer is processed independently: a failure on one never
// blocks the rest of the pass, and each step commits on its own, so a pass
// interrupted by shutdown leaves no timer in an invalid state.
type Reconciler struct {
	logger     *zap.Logger
	controller *Controller
	store      Store
	incidents  StatusChecker
	metrics    metrics.Sink
	clock      func() time.Time
}

// NewReconciler creates a reconciler. sink may be nil when metrics are
// disabled.
func NewReconciler(logger *zap.Logger, controller *Controller, store Store, incidents StatusChecker, sink metrics.Sink) *Reconciler {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Reconciler{
		logger:     logger.Named("reconciler"),
		controller: controller,
		store:      store,
		incidents:  incidents,
		metrics:    sink,
		clock:      time.Now,
	}
}

// RunTick executes one reconciliation pass: fetch expired active timers
// (earliest fire time first), deactivate those whose incident is already
// handled, and escalate the rest. A failed status check counts as
// unacknowledged and still escalates.
func (r *Reconciler) RunTick(ctx context.Context) (*TickResult, error) {
	r.metrics.ReconcileRun()
	now := r.clock().UTC()

	timers, err := r.store.ExpiredTimers(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch expired timers: %w", err)
	}

	result := &TickResult{
		Checked: len(timers),
		Details: make([]TickDetail, 0, len(timers)),
	}

	for _, timer := range timers {
		if ctx.Err() != nil {
			r.logger.Info("Reconcile pass interrupted",
				zap.Int("processed", len(result.Details)),
				zap.Int("total", len(timers)))
			return result, ctx.Err()
		}

		status, err := r.incidents.Status(ctx, timer.IncidentID)
		if err != nil {
			// Fail open: treat the incident as still unacknowledged
			r.logger.Warn("Could not check incident status, proceeding to escalate",
				zap.String("incident_id", timer.IncidentID),
				zap.Error(err))
			status = model.IncidentStatusUnknown
		}

		if status.Handled() {
			if ok, err := r.store.DeactivateTimer(ctx, timer.ID); err != nil {
				r.logger.Warn("Failed to deactivate timer for handled incident",
					zap.String("timer_id", timer.ID),
					zap.Error(err))
			} else if ok {
				r.metrics.TimerDeactivated(timer.Team)
			}
			result.Details = append(result.Details, TickDetail{
				IncidentID: timer.IncidentID,
				Action:     ActionSkipped,
				Reason:     fmt.Sprintf("Incident already %s", status),
			})
			continue
		}

		esc, err := r.controller.AutoEscalate(ctx, timer)
		if err != nil {
			detail := TickDetail{IncidentID: timer.IncidentID, Action: ActionSkipped}
			switch {
			case errors.Is(err, ErrScheduleNotFound):
				detail.Reason = "No schedule found"
			case errors.Is(err, ErrNoEscalationTarget):
				detail.Reason = "No escalation target"
			default:
				r.logger.Error("Failed to auto-escalate",
					zap.String("incident_id", timer.IncidentID),
					zap.String("team", timer.Team),
					zap.Error(err))
				detail.Reason = "Escalation failed"
			}
			result.Details = append(result.Details, detail)
			continue
		}

		result.Escalated++
		result.Details = append(result.Details, TickDetail{
			IncidentID: timer.IncidentID,
			Action:     ActionEscalated,
			Level:      esc.Level,
			From:       esc.FromEngineer,
			To:         esc.ToEngineer,
		})
	}

	if result.Checked > 0 {
		r.logger.Info("Reconcile pass complete",
			zap.Int("checked", result.Checked),
			zap.Int("escalated", result.Escalated))
	}
	return result, nil
}
