package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	logger             *zap.Logger
	escalationsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	reconcileRunsTotal prometheus.Counter
	activeTimers       *prometheus.GaugeVec
	oncallCurrent      *prometheus.GaugeVec
}

// NewPrometheusSink creates a Prometheus metrics sink registered against reg.
func NewPrometheusSink(logger *zap.Logger, reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		logger: logger.Named("metrics"),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escalations_total",
			Help: "Total escalations triggered.",
		}, []string{"team"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escalation_notifications_total",
			Help: "Escalation notification attempts by outcome.",
		}, []string{"team", "status"}),
		reconcileRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auto_escalation_runs_total",
			Help: "Total auto-escalation reconciler passes.",
		}),
		activeTimers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "active_escalation_timers",
			Help: "Currently active escalation timers per team.",
		}, []string{"team"}),
		oncallCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "oncall_current",
			Help: "Current on-call status per team (1 = on-call).",
		}, []string{"team", "engineer", "role"}),
	}

	s.register(reg, s.escalationsTotal, "escalations_total")
	s.register(reg, s.notificationsTotal, "escalation_notifications_total")
	s.register(reg, s.reconcileRunsTotal, "auto_escalation_runs_total")
	s.register(reg, s.activeTimers, "active_escalation_timers")
	s.register(reg, s.oncallCurrent, "oncall_current")
	return s
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.logger.Warn("Failed to register collector",
			zap.String("name", name),
			zap.Error(err))
	}
}

func (s *PrometheusSink) EscalationRecorded(team string) {
	s.escalationsTotal.WithLabelValues(team).Inc()
}

func (s *PrometheusSink) TimerStarted(team string) {
	s.activeTimers.WithLabelValues(team).Inc()
}

func (s *PrometheusSink) TimerDeactivated(team string) {
	s.activeTimers.WithLabelValues(team).Dec()
}

func (s *PrometheusSink) NotificationAttempted(team, status string) {
	s.notificationsTotal.WithLabelValues(team, status).Inc()
}

func (s *PrometheusSink) ReconcileRun() {
	s.reconcileRunsTotal.Inc()
}

func (s *PrometheusSink) OnCallResolved(team, engineer, role string) {
	s.oncallCurrent.WithLabelValues(team, engineer, role).Set(1)
}
