// Package rotation computes who is currently on call for a schedule.
//
// The calculation is a pure function of (schedule, now): the current time is
// always passed in explicitly, so repeated evaluation is deterministic and
// the escalation paths that re-compute the assignee stay idempotent.
package rotation

import (
	"time"

	"github.com/t77yq/oncall-engine/internal/model"
)

const (
	// DefaultHandoffHour is used when a schedule does not set one
	DefaultHandoffHour = 9

	daysPerWeek = 7
)

// CurrentOnCall returns the primary and secondary on-call engineers for the
// schedule at the given instant. Secondary is nil for single-engineer teams.
// Both are nil when the schedule has no engineers.
//
// The rotation index is the number of full cadence periods (days or weeks)
// elapsed between the schedule's start date and the "effective date" of now:
// the current calendar day in the schedule's time zone, stepped back by one
// day when the local hour is still before the handoff hour. An unknown time
// zone falls back to UTC rather than failing.
func CurrentOnCall(schedule *model.Schedule, now time.Time) (primary, secondary *model.Engineer) {
	engineers := schedule.Engineers
	if len(engineers) == 0 {
		return nil, nil
	}

	local := now.In(location(schedule.Timezone))

	handoff := schedule.HandoffHour
	if handoff < 0 || handoff > 23 {
		handoff = DefaultHandoffHour
	}

	effective := midnightUTC(local.Date())
	if local.Hour() < handoff {
		effective = effective.AddDate(0, 0, -1)
	}

	start := midnightUTC(schedule.StartDate.Date())

	delta := int(effective.Sub(start).Hours() / 24)
	if delta < 0 {
		delta = 0
	}

	var idx int
	if schedule.RotationType == model.RotationDaily {
		idx = delta % len(engineers)
	} else {
		idx = (delta / daysPerWeek) % len(engineers)
	}

	primary = &engineers[idx]
	if len(engineers) > 1 {
		secondary = &engineers[(idx+1)%len(engineers)]
	}
	return primary, secondary
}

// location resolves an IANA zone name, substituting UTC when the name is
// empty or unknown.
func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// midnightUTC pins a calendar date to midnight UTC so day arithmetic is
// immune to DST transitions in the schedule's zone.
func midnightUTC(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
