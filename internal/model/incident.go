package model

// IncidentStatus is the lifecycle status reported by the incident service
type IncidentStatus string

const (
	IncidentStatusOpen         IncidentStatus = "open"
	IncidentStatusAcknowledged IncidentStatus = "acknowledged"
	IncidentStatusInProgress   IncidentStatus = "in_progress"
	IncidentStatusResolved     IncidentStatus = "resolved"
	IncidentStatusClosed       IncidentStatus = "closed"
	IncidentStatusMitigated    IncidentStatus = "mitigated"

	// IncidentStatusUnknown is used when the incident service could not be
	// reached or returned something unrecognized. Unknown statuses escalate.
	IncidentStatusUnknown IncidentStatus = ""
)

// Handled reports whether an incident in this status no longer needs
// escalation.
func (s IncidentStatus) Handled() bool {
	switch s {
	case IncidentStatusAcknowledged, IncidentStatusInProgress,
		IncidentStatusResolved, IncidentStatusClosed, IncidentStatusMitigated:
		return true
	}
	return false
}
