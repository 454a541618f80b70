package metrics

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) EscalationRecorded(team string)                 {}
func (n *NoopSink) TimerStarted(team string)                       {}
func (n *NoopSink) TimerDeactivated(team string)                   {}
func (n *NoopSink) NotificationAttempted(team, status string)      {}
func (n *NoopSink) ReconcileRun()                                  {}
func (n *NoopSink) OnCallResolved(team, engineer, role string)     {}
