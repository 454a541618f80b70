package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/api"
	"github.com/t77yq/oncall-engine/internal/collaborator"
	"github.com/t77yq/oncall-engine/internal/config"
	"github.com/t77yq/oncall-engine/internal/escalation"
	"github.com/t77yq/oncall-engine/internal/metrics"
	"github.com/t77yq/oncall-engine/internal/storage"
)

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load("./config")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Open storage
	store, err := storage.Open(logger, cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()

	// Connect to NATS. The engine works without the event bus; a failed
	// connection downgrades event publishing to a no-op.
	var events escalation.EventPublisher = escalation.NoopEvents{}
	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc = connectNATS(logger, cfg)
		if nc != nil {
			defer nc.Close()
			js, err := nc.JetStream()
			if err != nil {
				logger.Warn("Failed to create JetStream context, events disabled", zap.Error(err))
			} else if ev, err := escalation.NewEvents(js, logger); err != nil {
				logger.Warn("Failed to set up escalation stream, events disabled", zap.Error(err))
			} else {
				events = ev
			}
		}
	}

	// Metrics
	var sink metrics.Sink = metrics.NewNoopSink()
	if cfg.Metrics.Enabled {
		sink = metrics.NewPrometheusSink(logger, prometheus.DefaultRegisterer)
	}

	// Collaborating services
	incidents := collaborator.NewIncidentClient(logger, cfg.Incident.URL, cfg.Incident.Timeout)
	notifier := collaborator.NewNotificationClient(logger, cfg.Notification.URL, cfg.Notification.Channel, cfg.Notification.Timeout)

	// Escalation engine
	controller := escalation.NewController(logger, escalation.Settings{
		DefaultTeam:        cfg.Escalation.DefaultTeam,
		ManagerEmail:       cfg.Escalation.ManagerEmail,
		DefaultWaitMinutes: cfg.Escalation.DefaultWaitMinutes,
		MaxLevel:           cfg.Escalation.MaxLevel,
	}, store, notifier, events, sink)
	reconciler := escalation.NewReconciler(logger, controller, store, incidents, sink)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.NewController(logger, cfg, store, controller, reconciler, sink, e)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("HTTP server stopped", zap.Error(err))
		}
	}()

	// Periodic escalation sweep
	cronLog := &cronLogger{logger: logger.Named("cron")}
	c := cron.New(cron.WithChain(cron.Recover(cronLog)))
	tickCtx, tickCancel := context.WithCancel(context.Background())
	defer tickCancel()
	spec := fmt.Sprintf("@every %s", cfg.Escalation.CheckInterval)
	if _, err := c.AddFunc(spec, func() {
		if _, err := reconciler.RunTick(tickCtx); err != nil && tickCtx.Err() == nil {
			logger.Error("Escalation sweep failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("Failed to schedule escalation sweep", zap.Error(err))
	}
	c.Start()
	logger.Info("Escalation sweep scheduled", zap.Duration("interval", cfg.Escalation.CheckInterval))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	tickCancel()
	<-c.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("Server shutting down gracefully")
}

// connectNATS dials NATS with retry. Returns nil when every attempt fails.
func connectNATS(logger *zap.Logger, cfg *config.Config) *nats.Conn {
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	var nc *nats.Conn
	var err error
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(cfg.NATS.URL, opts...)
		if err == nil {
			logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))
			return nc
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	logger.Warn("Could not connect to NATS, escalation events disabled", zap.Error(err))
	return nil
}
