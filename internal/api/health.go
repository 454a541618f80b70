package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

type componentHealth struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Uptime     string                     `json:"uptime"`
	Components map[string]componentHealth `json:"components"`
}

// HealthCheck reports overall service health: database reachability plus
// memory and disk pressure against the configured thresholds. Any degraded
// component returns 503.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	resp := healthResponse{
		Status:     "healthy",
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Components: make(map[string]componentHealth),
	}

	if err := c.store.Ping(); err != nil {
		c.logger.Warn("Database health check failed", zap.Error(err))
		resp.Components["database"] = componentHealth{Status: "unhealthy", Detail: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Components["database"] = componentHealth{Status: "healthy"}
	}

	if memInfo, err := mem.VirtualMemory(); err != nil {
		resp.Components["memory"] = componentHealth{Status: "unknown", Detail: err.Error()}
	} else if memInfo.UsedPercent > c.cfg.Health.MemoryThreshold {
		resp.Components["memory"] = componentHealth{Status: "degraded", Detail: "memory usage above threshold"}
		resp.Status = "degraded"
	} else {
		resp.Components["memory"] = componentHealth{Status: "healthy"}
	}

	if usage, err := disk.Usage("/"); err != nil {
		resp.Components["disk"] = componentHealth{Status: "unknown", Detail: err.Error()}
	} else if usage.UsedPercent > c.cfg.Health.DiskThreshold {
		resp.Components["disk"] = componentHealth{Status: "degraded", Detail: "disk usage above threshold"}
		resp.Status = "degraded"
	} else {
		resp.Components["disk"] = componentHealth{Status: "healthy"}
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, resp)
}

// ReadinessCheck reports whether the service can serve traffic.
func (c *Controller) ReadinessCheck(ctx echo.Context) error {
	if err := c.store.Ping(); err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// LivenessCheck reports that the process is up.
func (c *Controller) LivenessCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}
