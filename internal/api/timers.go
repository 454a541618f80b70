package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/escalation"
)

type startTimerRequest struct {
	IncidentID string `json:"incident_id"`
	Team       string `json:"team"`
	AssignedTo string `json:"assigned_to"`
}

// StartTimer starts a level-1 escalation timer for a newly assigned incident.
func (c *Controller) StartTimer(ctx echo.Context) error {
	var req startTimerRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.IncidentID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "incident_id is required"})
	}
	if req.Team == "" {
		req.Team = c.cfg.Escalation.DefaultTeam
	}
	if req.AssignedTo == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "assigned_to is required"})
	}

	timer, err := c.engine.StartTimer(ctx.Request().Context(), req.IncidentID, req.Team, req.AssignedTo)
	if err != nil {
		if errors.Is(err, escalation.ErrScheduleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		c.logger.Error("Failed to start timer",
			zap.String("incident_id", req.IncidentID),
			zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to start timer"})
	}

	return ctx.JSON(http.StatusCreated, timer)
}

type cancelTimersRequest struct {
	IncidentID string `json:"incident_id"`
}

// CancelTimers deactivates all active timers for an incident, typically on
// acknowledgment or resolution.
func (c *Controller) CancelTimers(ctx echo.Context) error {
	var req cancelTimersRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.IncidentID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "incident_id is required"})
	}

	cancelled, err := c.engine.CancelTimers(ctx.Request().Context(), req.IncidentID)
	if err != nil {
		c.logger.Error("Failed to cancel timers",
			zap.String("incident_id", req.IncidentID),
			zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to cancel timers"})
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"incident_id": req.IncidentID,
		"cancelled":   cancelled,
	})
}

// ListTimers returns active escalation timers, optionally filtered by team
// or incident.
func (c *Controller) ListTimers(ctx echo.Context) error {
	timers, err := c.store.ListActiveTimers(ctx.Request().Context(), ctx.QueryParam("team"), ctx.QueryParam("incident_id"))
	if err != nil {
		c.logger.Error("Failed to list timers", zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list timers"})
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"timers": timers,
		"count":  len(timers),
	})
}

// CheckEscalations runs one reconciliation pass immediately and reports what
// it did. The periodic sweep runs the same code on a schedule; this endpoint
// exists for operators and tests.
func (c *Controller) CheckEscalations(ctx echo.Context) error {
	result, err := c.reconciler.RunTick(ctx.Request().Context())
	if err != nil {
		c.logger.Error("Reconcile pass failed", zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Escalation check failed"})
	}
	return ctx.JSON(http.StatusOK, result)
}
