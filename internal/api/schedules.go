package api

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/model"
	"github.com/t77yq/oncall-engine/internal/rotation"
)

type createScheduleRequest struct {
	Team              string           `json:"team"`
	RotationType      string           `json:"rotation_type"`
	StartDate         string           `json:"start_date"`
	Engineers         []model.Engineer `json:"engineers"`
	HandoffHour       *int             `json:"handoff_hour"`
	Timezone          string           `json:"timezone"`
	EscalationMinutes int              `json:"escalation_minutes"`
}

// CreateSchedule registers a new on-call schedule for a team. Schedules are
// immutable; posting again for the same team supersedes the previous one.
func (c *Controller) CreateSchedule(ctx echo.Context) error {
	var req createScheduleRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.Team == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "team is required"})
	}
	rotationType := model.RotationType(req.RotationType)
	if !rotationType.Valid() {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "rotation_type must be weekly or daily"})
	}
	if len(req.Engineers) == 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "engineers must not be empty"})
	}
	for _, eng := range req.Engineers {
		if eng.Email == "" {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "every engineer needs an email"})
		}
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "start_date must be YYYY-MM-DD"})
	}

	handoff := rotation.DefaultHandoffHour
	if req.HandoffHour != nil {
		handoff = *req.HandoffHour
	}
	if handoff < 0 || handoff > 23 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "handoff_hour must be between 0 and 23"})
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	schedule := &model.Schedule{
		Team:              req.Team,
		RotationType:      rotationType,
		StartDate:         startDate,
		Engineers:         req.Engineers,
		HandoffHour:       handoff,
		Timezone:          timezone,
		EscalationMinutes: req.EscalationMinutes,
	}
	if err := c.store.CreateSchedule(ctx.Request().Context(), schedule); err != nil {
		c.logger.Error("Failed to create schedule", zap.String("team", req.Team), zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create schedule"})
	}

	return ctx.JSON(http.StatusCreated, schedule)
}

// ListSchedules returns schedules, optionally filtered by team.
func (c *Controller) ListSchedules(ctx echo.Context) error {
	schedules, err := c.store.ListSchedules(ctx.Request().Context(), ctx.QueryParam("team"))
	if err != nil {
		c.logger.Error("Failed to list schedules", zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list schedules"})
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

// DeleteSchedule removes a schedule by ID.
func (c *Controller) DeleteSchedule(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.store.DeleteSchedule(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Schedule not found"})
		}
		c.logger.Error("Failed to delete schedule", zap.String("id", id), zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete schedule"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// CurrentOnCall resolves who is on call right now for a team.
func (c *Controller) CurrentOnCall(ctx echo.Context) error {
	team := ctx.QueryParam("team")
	if team == "" {
		team = c.cfg.Escalation.DefaultTeam
	}

	schedule, err := c.store.LatestSchedule(ctx.Request().Context(), team)
	if err != nil {
		c.logger.Error("Failed to query schedule", zap.String("team", team), zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to query schedule"})
	}
	if schedule == nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "No schedule found for team " + team})
	}

	now := time.Now().UTC()
	primary, secondary := rotation.CurrentOnCall(schedule, now)
	if primary == nil {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Schedule has no engineers"})
	}
	c.metrics.OnCallResolved(team, primary.Email, "primary")
	if secondary != nil {
		c.metrics.OnCallResolved(team, secondary.Email, "secondary")
	}

	resp := map[string]interface{}{
		"team":               team,
		"primary":            primary,
		"secondary":          secondary,
		"rotation_type":      schedule.RotationType,
		"escalation_minutes": schedule.EscalationMinutes,
		"checked_at":         now,
	}
	return ctx.JSON(http.StatusOK, resp)
}
