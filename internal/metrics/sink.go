// Package metrics defines the engine's metrics-reporting interface.
//
// The sink is injected into components explicitly; nothing reaches into
// process-wide state. All methods are fire-and-forget: implementations must
// not block or propagate errors.
package metrics

// Notification delivery outcomes
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// Sink records engine metrics
type Sink interface {
	// EscalationRecorded is called once per persisted escalation record
	EscalationRecorded(team string)

	// TimerStarted / TimerDeactivated track the active timer population
	TimerStarted(team string)
	TimerDeactivated(team string)

	// NotificationAttempted records a best-effort notification outcome
	// (status is NotificationSent or NotificationFailed)
	NotificationAttempted(team, status string)

	// ReconcileRun is called once per reconciler pass
	ReconcileRun()

	// OnCallResolved reports the currently resolved on-call engineer
	OnCallResolved(team, engineer, role string)
}
