// Package api exposes the engine over HTTP.
package api

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/config"
	"github.com/t77yq/oncall-engine/internal/escalation"
	"github.com/t77yq/oncall-engine/internal/metrics"
	"github.com/t77yq/oncall-engine/internal/storage"
)

// Controller wires the HTTP routes to the engine.
type Controller struct {
	logger     *zap.Logger
	cfg        *config.Config
	store      *storage.Store
	engine     *escalation.Controller
	reconciler *escalation.Reconciler
	metrics    metrics.Sink
	startTime  time.Time
}

// NewController builds the controller and registers every route on e.
func NewController(logger *zap.Logger, cfg *config.Config, store *storage.Store, engine *escalation.Controller, reconciler *escalation.Reconciler, sink metrics.Sink, e *echo.Echo) *Controller {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	c := &Controller{
		logger:     logger.Named("api"),
		cfg:        cfg,
		store:      store,
		engine:     engine,
		reconciler: reconciler,
		metrics:    sink,
		startTime:  time.Now(),
	}
	c.initRoutes(e)
	return c
}

func (c *Controller) initRoutes(e *echo.Echo) {
	e.Use(middleware.Recover())

	e.GET("/", c.ServiceInfo)
	e.GET("/health", c.HealthCheck)
	e.GET("/health/ready", c.ReadinessCheck)
	e.GET("/health/live", c.LivenessCheck)
	if c.cfg.Metrics.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	v1 := e.Group("/api/v1")

	v1.POST("/schedules", c.CreateSchedule)
	v1.GET("/schedules", c.ListSchedules)
	v1.DELETE("/schedules/:id", c.DeleteSchedule)
	v1.GET("/oncall/current", c.CurrentOnCall)

	v1.POST("/escalate", c.Escalate)
	v1.GET("/escalations", c.ListEscalations)

	v1.POST("/escalation-policies", c.SetPolicy)
	v1.GET("/escalation-policies", c.ListPolicies)
	v1.GET("/escalation-policies/:team", c.GetPolicy)

	v1.POST("/timers/start", c.StartTimer)
	v1.POST("/timers/cancel", c.CancelTimers)
	v1.GET("/timers", c.ListTimers)

	v1.POST("/check-escalations", c.CheckEscalations)
}

// ServiceInfo returns basic service identification.
func (c *Controller) ServiceInfo(ctx echo.Context) error {
	return ctx.JSON(200, map[string]string{
		"service": c.cfg.App.Name,
		"status":  "running",
	})
}
