package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/escalation"
	"github.com/t77yq/oncall-engine/internal/model"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type escalateRequest struct {
	IncidentID string `json:"incident_id"`
	Team       string `json:"team"`
	Level      int    `json:"level"`
	Reason     string `json:"reason"`
}

// Escalate performs a manual escalation step for an incident.
func (c *Controller) Escalate(ctx echo.Context) error {
	var req escalateRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.IncidentID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "incident_id is required"})
	}

	esc, err := c.engine.Escalate(ctx.Request().Context(), escalation.Request{
		IncidentID: req.IncidentID,
		Team:       req.Team,
		Level:      req.Level,
		Reason:     req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, escalation.ErrScheduleNotFound), errors.Is(err, escalation.ErrNoEngineers):
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, escalation.ErrNoEscalationTarget):
			return ctx.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		default:
			c.logger.Error("Escalation failed",
				zap.String("incident_id", req.IncidentID),
				zap.Error(err))
			return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Escalation failed"})
		}
	}

	return ctx.JSON(http.StatusCreated, esc)
}

// ListEscalations returns escalation history, newest first.
func (c *Controller) ListEscalations(ctx echo.Context) error {
	limit := defaultHistoryLimit
	if param := ctx.QueryParam("limit"); param != "" {
		v, err := strconv.Atoi(param)
		if err != nil || v < 1 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = v
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset := 0
	if param := ctx.QueryParam("offset"); param != "" {
		v, err := strconv.Atoi(param)
		if err != nil || v < 0 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "offset must be a non-negative integer"})
		}
		offset = v
	}

	escalations, err := c.store.ListEscalations(ctx.Request().Context(), ctx.QueryParam("incident_id"), limit, offset)
	if err != nil {
		c.logger.Error("Failed to list escalations", zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list escalations"})
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"escalations": escalations,
		"count":       len(escalations),
		"limit":       limit,
		"offset":      offset,
	})
}

type setPolicyRequest struct {
	Team   string              `json:"team"`
	Levels []model.PolicyLevel `json:"levels"`
}

// SetPolicy replaces a team's escalation policy atomically.
func (c *Controller) SetPolicy(ctx echo.Context) error {
	var req setPolicyRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.Team == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "team is required"})
	}
	if len(req.Levels) == 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "levels must not be empty"})
	}

	seen := make(map[int]bool, len(req.Levels))
	for _, lvl := range req.Levels {
		if lvl.Level < 1 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "level must be >= 1"})
		}
		if seen[lvl.Level] {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "duplicate level " + strconv.Itoa(lvl.Level)})
		}
		seen[lvl.Level] = true
		if lvl.WaitMinutes < 1 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "wait_minutes must be >= 1"})
		}
		if lvl.NotifyTarget == "" {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "notify_target is required"})
		}
	}

	if err := c.store.ReplacePolicy(ctx.Request().Context(), req.Team, req.Levels); err != nil {
		c.logger.Error("Failed to save policy", zap.String("team", req.Team), zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save policy"})
	}

	return ctx.JSON(http.StatusCreated, map[string]interface{}{
		"team":   req.Team,
		"levels": len(req.Levels),
	})
}

// ListPolicies returns every team's escalation policy levels.
func (c *Controller) ListPolicies(ctx echo.Context) error {
	levels, err := c.store.AllPolicyLevels(ctx.Request().Context())
	if err != nil {
		c.logger.Error("Failed to list policies", zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list policies"})
	}

	byTeam := make(map[string][]model.PolicyLevel)
	for _, lvl := range levels {
		byTeam[lvl.Team] = append(byTeam[lvl.Team], lvl)
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"policies": byTeam,
		"count":    len(byTeam),
	})
}

// GetPolicy returns one team's escalation policy levels.
func (c *Controller) GetPolicy(ctx echo.Context) error {
	team := ctx.Param("team")
	levels, err := c.store.PolicyLevels(ctx.Request().Context(), team)
	if err != nil {
		c.logger.Error("Failed to load policy", zap.String("team", team), zap.Error(err))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load policy"})
	}
	if len(levels) == 0 {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "No policy found for team " + team})
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"team":   team,
		"levels": levels,
	})
}
