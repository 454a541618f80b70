package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/model"
)

// fakeStore implements Store in memory for controller tests.
type fakeStore struct {
	schedules   map[string]*model.Schedule
	policies    map[string]map[int]*model.PolicyLevel
	timers      []*model.EscalationTimer
	escalations []*model.Escalation

	scheduleErr   error
	escalationErr error
	timerErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		schedules: make(map[string]*model.Schedule),
		policies:  make(map[string]map[int]*model.PolicyLevel),
	}
}

func (f *fakeStore) LatestSchedule(ctx context.Context, team string) (*model.Schedule, error) {
	if f.scheduleErr != nil {
		return nil, f.scheduleErr
	}
	return f.schedules[team], nil
}

func (f *fakeStore) PolicyLevel(ctx context.Context, team string, level int) (*model.PolicyLevel, error) {
	byLevel, ok := f.policies[team]
	if !ok {
		return nil, nil
	}
	return byLevel[level], nil
}

func (f *fakeStore) CreateTimer(ctx context.Context, timer *model.EscalationTimer) error {
	if f.timerErr != nil {
		return f.timerErr
	}
	for _, t := range f.timers {
		if t.IncidentID == timer.IncidentID {
			t.Active = false
		}
	}
	timer.Active = true
	f.timers = append(f.timers, timer)
	return nil
}

func (f *fakeStore) DeactivateTimersByIncident(ctx context.Context, incidentID string) (int64, error) {
	var n int64
	for _, t := range f.timers {
		if t.IncidentID == incidentID && t.Active {
			t.Active = false
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeactivateTimer(ctx context.Context, id string) (bool, error) {
	for _, t := range f.timers {
		if t.ID == id && t.Active {
			t.Active = false
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ExpiredTimers(ctx context.Context, now time.Time) ([]*model.EscalationTimer, error) {
	var expired []*model.EscalationTimer
	for _, t := range f.timers {
		if t.Active && !t.EscalateAfter.After(now) {
			expired = append(expired, t)
		}
	}
	return expired, nil
}

func (f *fakeStore) CreateEscalation(ctx context.Context, esc *model.Escalation) error {
	if f.escalationErr != nil {
		return f.escalationErr
	}
	f.escalations = append(f.escalations, esc)
	return nil
}

func (f *fakeStore) activeTimers(incidentID string) []*model.EscalationTimer {
	var active []*model.EscalationTimer
	for _, t := range f.timers {
		if t.IncidentID == incidentID && t.Active {
			active = append(active, t)
		}
	}
	return active
}

// fakeNotifier records notifications and can be made to fail.
type fakeNotifier struct {
	sent []sentNotification
	err  error
}

type sentNotification struct {
	incidentID string
	engineer   string
	message    string
}

func (f *fakeNotifier) Notify(ctx context.Context, incidentID, engineer, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentNotification{incidentID, engineer, message})
	return nil
}

// fakeEvents records published events.
type fakeEvents struct {
	published []string
}

func (f *fakeEvents) PublishEscalation(ctx context.Context, esc *model.Escalation, trigger string) error {
	f.published = append(f.published, trigger)
	return nil
}

var testNow = time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC)

func testController(store *fakeStore, notifier *fakeNotifier) (*Controller, *fakeEvents) {
	logger, _ := zap.NewDevelopment()
	events := &fakeEvents{}
	c := NewController(logger, Settings{
		DefaultTeam:        "platform",
		ManagerEmail:       "manager@example.com",
		DefaultWaitMinutes: 5,
		MaxLevel:           3,
	}, store, notifier, events, nil)
	c.clock = func() time.Time { return testNow }
	return c, events
}

func seedSchedule(store *fakeStore, engineers ...string) *model.Schedule {
	s := &model.Schedule{
		Team:         "platform",
		RotationType: model.RotationWeekly,
		StartDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		HandoffHour:  9,
		Timezone:     "UTC",
	}
	for _, name := range engineers {
		s.Engineers = append(s.Engineers, model.Engineer{Name: name, Email: name + "@example.com"})
	}
	store.schedules["platform"] = s
	return s
}

func TestEscalate_DefaultsToSecondary(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	controller, events := testController(store, notifier)

	// Week two of the rotation: bob primary, alice secondary
	seedSchedule(store, "alice", "bob")

	esc, err := controller.Escalate(context.Background(), Request{IncidentID: "INC-1"})
	require.NoError(t, err)
	require.Equal(t, 1, esc.Level)
	require.Equal(t, "bob@example.com", esc.FromEngineer)
	require.Equal(t, "alice@example.com", esc.ToEngineer)
	require.Equal(t, "No acknowledgment within escalation window", esc.Reason)
	require.Len(t, store.escalations, 1)

	// A next-level timer is started for the new assignee
	active := store.activeTimers("INC-1")
	require.Len(t, active, 1)
	require.Equal(t, 2, active[0].CurrentLevel)
	require.Equal(t, "alice@example.com", active[0].AssignedTo)

	require.Len(t, notifier.sent, 1)
	require.Equal(t, "alice@example.com", notifier.sent[0].engineer)
	require.Contains(t, notifier.sent[0].message, "[ESCALATED L1]")
	require.Contains(t, notifier.sent[0].message, "INC-1")

	require.Equal(t, []string{TriggerManual}, events.published)
}

func TestEscalate_PolicyWaitDrivesNextTimer(t *testing.T) {
	store := newFakeStore()
	controller, _ := testController(store, &fakeNotifier{})
	seedSchedule(store, "alice", "bob")
	store.policies["platform"] = map[int]*model.PolicyLevel{
		2: {Team: "platform", Level: 2, WaitMinutes: 30, NotifyTarget: model.NotifyTargetManager},
	}

	_, err := controller.Escalate(context.Background(), Request{IncidentID: "INC-1", Level: 1})
	require.NoError(t, err)

	active := store.activeTimers("INC-1")
	require.Len(t, active, 1)
	require.Equal(t, testNow.Add(30*time.Minute), active[0].EscalateAfter)
}

func TestEscalate_SingleEngineerGoesToManager(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	controller, _ := testController(store, notifier)
	seedSchedule(store, "alice")

	esc, err := controller.Escalate(context.Background(), Request{IncidentID: "INC-1"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", esc.FromEngineer)
	require.Equal(t, "manager@example.com", esc.ToEngineer)
}

func TestEscalate_LevelTwoComesFromSecondary(t *testing.T) {
	store := newFakeStore()
	controller, _ := testController(store, &fakeNotifier{})
	seedSchedule(store, "alice", "bob")

	esc, err := controller.Escalate(context.Background(), Request{
		IncidentID: "INC-1",
		Level:      2,
		Reason:     "Still no response",
	})
	require.NoError(t, err)
	require.Equal(t, 2, esc.Level)
	// Secondary (alice) hands off upward
	require.Equal(t, "alice@example.com", esc.FromEngineer)
	require.Equal(t, "manager@example.com", esc.ToEngineer)
	require.Equal(t, "Still no response", esc.Reason)
}

func TestEscalate_NoSchedule(t *testing.T) {
	store := newFakeStore()
	controller, _ := testController(store, &fakeNotifier{})

	_, err := controller.Escalate(context.Background(), Request{IncidentID: "INC-1"})
	require.ErrorIs(t, err, ErrScheduleNotFound)
	require.Empty(t, store.escalations)
}

func TestEscalate_NoEngineers(t *testing.T) {
	store := newFakeStore()
	controller, _ := testController(store, &fakeNotifier{})
	store.schedules["platform"] = &model.Schedule{Team: "platform", RotationType: model.RotationWeekly}

	_, err := controller.Escalate(context.Background(), Request{IncidentID: "INC-1"})
	require.ErrorIs(t, err, ErrNoEngineers)
}

func TestEscalate_NoTargetAnywhere(t *testing.T) {
	store := newFakeStore()
	logger, _ := zap.NewDevelopment()
	// No manager configured and a single-engineer rotation
	controller := NewController(logger, Settings{
		DefaultTeam:        "platform",
		DefaultWaitMinutes: 5,
		MaxLevel:           3,
	}, store, &fakeNotifier{}, nil, nil)
	controller.clock = func() time.Time { return testNow }
	seedSchedule(store, "alice")

	_, err := controller.Escalate(context.Background(), Request{IncidentID: "INC-1"})
	require.ErrorIs(t, err, ErrNoEscalationTarget)
}

func TestEscalate_NotifierFailureIsSwallowed(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{err: errors.New("notification service down")}
	controller, _ := testController(store, notifier)
	seedSchedule(store, "alice", "bob")

	esc, err := controller.Escalate(context.Background(), Request{IncidentID: "INC-1"})
	require.NoError(t, err)
	require.NotNil(t, esc)
	require.Len(t, store.escalations, 1)
}

func TestEscalate_TimerFailureIsSwallowed(t *testing.T) {
	store := newFakeStore()
	store.timerErr = errors.New("disk full")
	controller, _ := testController(store, &fakeNotifier{})
	seedSchedule(store, "alice", "bob")

	esc, err := controller.Escalate(context.Background(), Request{IncidentID: "INC-1"})
	require.NoError(t, err)
	require.NotNil(t, esc)
	require.Empty(t, store.activeTimers("INC-1"))
}

func TestEscalate_RecordFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.escalationErr = errors.New("database locked")
	notifier := &fakeNotifier{}
	controller, events := testController(store, notifier)
	seedSchedule(store, "alice", "bob")

	_, err := controller.Escalate(context.Background(), Request{IncidentID: "INC-1"})
	require.Error(t, err)
	require.Empty(t, notifier.sent)
	require.Empty(t, events.published)
}

func TestAutoEscalate_RecordsAndAdvances(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	controller, events := testController(store, notifier)
	seedSchedule(store, "alice", "bob")

	timer := &model.EscalationTimer{
		ID:            "timer-1",
		IncidentID:    "INC-1",
		Team:          "platform",
		CurrentLevel:  1,
		AssignedTo:    "bob@example.com",
		EscalateAfter: testNow.Add(-time.Minute),
		Active:        true,
	}
	store.timers = append(store.timers, timer)

	esc, err := controller.AutoEscalate(context.Background(), timer)
	require.NoError(t, err)
	require.Equal(t, 1, esc.Level)
	require.Equal(t, "bob@example.com", esc.FromEngineer)
	require.Equal(t, "alice@example.com", esc.ToEngineer)

	// Old timer is retired and a level-2 timer exists
	require.False(t, timer.Active)
	active := store.activeTimers("INC-1")
	require.Len(t, active, 1)
	require.Equal(t, 2, active[0].CurrentLevel)

	require.Len(t, notifier.sent, 1)
	require.Contains(t, notifier.sent[0].message, "[AUTO-ESCALATED L1]")
	require.Contains(t, notifier.sent[0].message, "bob@example.com")

	require.Equal(t, []string{TriggerAuto}, events.published)
}

func TestAutoEscalate_StopsAtMaxLevel(t *testing.T) {
	store := newFakeStore()
	controller, _ := testController(store, &fakeNotifier{})
	seedSchedule(store, "alice", "bob")

	timer := &model.EscalationTimer{
		ID:            "timer-3",
		IncidentID:    "INC-1",
		Team:          "platform",
		CurrentLevel:  3,
		AssignedTo:    "manager@example.com",
		EscalateAfter: testNow.Add(-time.Minute),
		Active:        true,
	}
	store.timers = append(store.timers, timer)

	esc, err := controller.AutoEscalate(context.Background(), timer)
	require.NoError(t, err)
	require.Equal(t, 3, esc.Level)

	// The ladder is bounded: no further timer is created
	require.Empty(t, store.activeTimers("INC-1"))
}

func TestStartTimer(t *testing.T) {
	store := newFakeStore()
	controller, _ := testController(store, &fakeNotifier{})
	schedule := seedSchedule(store, "alice", "bob")
	schedule.EscalationMinutes = 20

	timer, err := controller.StartTimer(context.Background(), "INC-1", "platform", "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, 1, timer.CurrentLevel)
	require.Equal(t, "bob@example.com", timer.AssignedTo)
	require.Equal(t, testNow.Add(20*time.Minute), timer.EscalateAfter)
}

func TestStartTimer_NoSchedule(t *testing.T) {
	store := newFakeStore()
	controller, _ := testController(store, &fakeNotifier{})

	_, err := controller.StartTimer(context.Background(), "INC-1", "platform", "bob@example.com")
	require.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestCancelTimers(t *testing.T) {
	store := newFakeStore()
	controller, _ := testController(store, &fakeNotifier{})
	store.timers = append(store.timers, &model.EscalationTimer{
		ID:         "timer-1",
		IncidentID: "INC-1",
		Team:       "platform",
		Active:     true,
	})

	n, err := controller.CancelTimers(context.Background(), "INC-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	// Cancelling again is a no-op
	n, err = controller.CancelTimers(context.Background(), "INC-1")
	require.NoError(t, err)
	require.Zero(t, n)
}
