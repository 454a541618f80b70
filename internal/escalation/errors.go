package escalation

import "errors"

var (
	// ErrScheduleNotFound is returned when a team has no rotation schedule
	ErrScheduleNotFound = errors.New("no schedule found for team")

	// ErrNoEngineers is returned when a team's schedule has no engineers
	ErrNoEngineers = errors.New("no engineers configured for team")

	// ErrNoEscalationTarget is returned when no viable notify target can be
	// resolved and the escalation cannot proceed
	ErrNoEscalationTarget = errors.New("no escalation target available")
)
