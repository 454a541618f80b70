package model

import (
	"time"
)

// RotationType determines how often on-call responsibility rotates
type RotationType string

const (
	RotationWeekly RotationType = "weekly"
	RotationDaily  RotationType = "daily"
)

// Valid reports whether the rotation type is a known cadence
func (r RotationType) Valid() bool {
	return r == RotationWeekly || r == RotationDaily
}

// Engineer is a member of an on-call rotation
type Engineer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Primary bool   `json:"primary"`
}

// Schedule represents an on-call rotation schedule for a team.
// The engineer list is ordered; rotation walks it starting at StartDate.
// HandoffHour is the local hour (0-23) in Timezone at which responsibility
// transfers to the next engineer.
type Schedule struct {
	ID                string       `json:"id"`
	Team              string       `json:"team"`
	RotationType      RotationType `json:"rotation_type"`
	StartDate         time.Time    `json:"start_date"`
	Engineers         []Engineer   `json:"engineers"`
	HandoffHour       int          `json:"handoff_hour"`
	Timezone          string       `json:"timezone"`
	EscalationMinutes int          `json:"escalation_minutes"`
	CreatedAt         time.Time    `json:"created_at"`
}
