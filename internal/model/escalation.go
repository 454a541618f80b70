package model

import "time"

// Escalation policy notify targets. Anything else is treated as a
// literal address.
const (
	NotifyTargetSecondary = "secondary"
	NotifyTargetManager   = "manager"
)

// PolicyLevel is a single level of a team's escalation policy:
// "if not acknowledged within WaitMinutes at Level, notify NotifyTarget".
type PolicyLevel struct {
	Team         string `json:"team,omitempty"`
	Level        int    `json:"level"`
	WaitMinutes  int    `json:"wait_minutes"`
	NotifyTarget string `json:"notify_target"`
}

// EscalationTimer is a scheduled future check for an incident in flight.
// At most one active timer exists per incident at a time.
type EscalationTimer struct {
	ID            string    `json:"id"`
	IncidentID    string    `json:"incident_id"`
	Team          string    `json:"team"`
	CurrentLevel  int       `json:"current_level"`
	AssignedTo    string    `json:"assigned_to"`
	EscalateAfter time.Time `json:"escalate_after"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Escalation is an append-only record of one escalation step
type Escalation struct {
	ID           string    `json:"id"`
	IncidentID   string    `json:"incident_id"`
	FromEngineer string    `json:"from_engineer"`
	ToEngineer   string    `json:"to_engineer"`
	Level        int       `json:"level"`
	Reason       string    `json:"reason,omitempty"`
	EscalatedAt  time.Time `json:"escalated_at"`
}
