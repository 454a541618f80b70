package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/t77yq/oncall-engine/internal/model"
)

func testSchedule(rotationType model.RotationType, engineers ...string) *model.Schedule {
	s := &model.Schedule{
		Team:         "platform",
		RotationType: rotationType,
		StartDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		HandoffHour:  9,
		Timezone:     "UTC",
	}
	for _, name := range engineers {
		s.Engineers = append(s.Engineers, model.Engineer{
			Name:  name,
			Email: name + "@example.com",
		})
	}
	return s
}

func TestCurrentOnCall_WeeklyRotation(t *testing.T) {
	schedule := testSchedule(model.RotationWeekly, "alice", "bob", "carol")

	// First week: index 0
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	primary, secondary := CurrentOnCall(schedule, now)
	require.NotNil(t, primary)
	require.Equal(t, "alice", primary.Name)
	require.NotNil(t, secondary)
	require.Equal(t, "bob", secondary.Name)

	// Second week: index 1
	now = time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC)
	primary, secondary = CurrentOnCall(schedule, now)
	require.Equal(t, "bob", primary.Name)
	require.Equal(t, "carol", secondary.Name)

	// Fourth week wraps back to index 0
	now = time.Date(2026, 1, 23, 12, 0, 0, 0, time.UTC)
	primary, secondary = CurrentOnCall(schedule, now)
	require.Equal(t, "alice", primary.Name)
	require.Equal(t, "bob", secondary.Name)
}

func TestCurrentOnCall_DailyRotation(t *testing.T) {
	schedule := testSchedule(model.RotationDaily, "alice", "bob")

	primary, _ := CurrentOnCall(schedule, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	require.Equal(t, "alice", primary.Name)

	primary, _ = CurrentOnCall(schedule, time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC))
	require.Equal(t, "bob", primary.Name)

	primary, _ = CurrentOnCall(schedule, time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC))
	require.Equal(t, "alice", primary.Name)
}

func TestCurrentOnCall_HandoffHour(t *testing.T) {
	schedule := testSchedule(model.RotationDaily, "alice", "bob")

	// Before the 9:00 handoff the previous day's engineer still holds the
	// pager.
	primary, _ := CurrentOnCall(schedule, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC))
	require.Equal(t, "alice", primary.Name)

	// At the handoff hour responsibility transfers.
	primary, _ = CurrentOnCall(schedule, time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC))
	require.Equal(t, "bob", primary.Name)

	// After the handoff hour the new engineer holds it.
	primary, _ = CurrentOnCall(schedule, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC))
	require.Equal(t, "bob", primary.Name)

	// At local midnight the effective date steps back a full day.
	primary, _ = CurrentOnCall(schedule, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.Equal(t, "alice", primary.Name)
}

func TestCurrentOnCall_HandoffHourOutOfRange(t *testing.T) {
	schedule := testSchedule(model.RotationDaily, "alice", "bob")
	schedule.HandoffHour = 99

	// Falls back to the default handoff hour of 9
	primary, _ := CurrentOnCall(schedule, time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC))
	require.Equal(t, "alice", primary.Name)
	primary, _ = CurrentOnCall(schedule, time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC))
	require.Equal(t, "bob", primary.Name)
}

func TestCurrentOnCall_TimezoneConversion(t *testing.T) {
	schedule := testSchedule(model.RotationDaily, "alice", "bob")
	schedule.Timezone = "Asia/Tokyo"

	// 01:00 UTC on Jan 2 is 10:00 JST on Jan 2, past the handoff: day index 1
	primary, _ := CurrentOnCall(schedule, time.Date(2026, 1, 2, 1, 0, 0, 0, time.UTC))
	require.Equal(t, "bob", primary.Name)

	// 22:00 UTC on Jan 1 is 07:00 JST on Jan 2, before the handoff: still
	// Jan 1's engineer
	primary, _ = CurrentOnCall(schedule, time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC))
	require.Equal(t, "alice", primary.Name)
}

func TestCurrentOnCall_InvalidTimezone(t *testing.T) {
	schedule := testSchedule(model.RotationDaily, "alice", "bob")
	schedule.Timezone = "Not/AZone"

	// Unknown zones resolve as UTC rather than erroring
	primary, _ := CurrentOnCall(schedule, time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC))
	require.Equal(t, "bob", primary.Name)
}

func TestCurrentOnCall_SingleEngineer(t *testing.T) {
	schedule := testSchedule(model.RotationWeekly, "alice")

	primary, secondary := CurrentOnCall(schedule, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	require.NotNil(t, primary)
	require.Equal(t, "alice", primary.Name)
	require.Nil(t, secondary)
}

func TestCurrentOnCall_NoEngineers(t *testing.T) {
	schedule := testSchedule(model.RotationWeekly)

	primary, secondary := CurrentOnCall(schedule, time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC))
	require.Nil(t, primary)
	require.Nil(t, secondary)
}

func TestCurrentOnCall_FutureStartDate(t *testing.T) {
	schedule := testSchedule(model.RotationWeekly, "alice", "bob")
	schedule.StartDate = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	// Before the schedule starts the first engineer holds the pager
	primary, secondary := CurrentOnCall(schedule, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	require.Equal(t, "alice", primary.Name)
	require.Equal(t, "bob", secondary.Name)
}

func TestCurrentOnCall_SecondaryWrapsAround(t *testing.T) {
	schedule := testSchedule(model.RotationWeekly, "alice", "bob")

	// Week two: bob is primary, secondary wraps back to alice
	primary, secondary := CurrentOnCall(schedule, time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC))
	require.Equal(t, "bob", primary.Name)
	require.Equal(t, "alice", secondary.Name)
}
