package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/oncall-engine/internal/model"
)

// Escalation event triggers
const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

const (
	escalationStreamName = "ESCALATIONS"
	streamMaxAge         = 7 * 24 * time.Hour
)

// EventPublisher broadcasts escalation events to downstream consumers
// (paging bridges, audit sinks, chat bots).
type EventPublisher interface {
	PublishEscalation(ctx context.Context, esc *model.Escalation, trigger string) error
}

// EscalationEvent is the wire form of a published escalation.
type EscalationEvent struct {
	ID           string    `json:"id"`
	IncidentID   string    `json:"incident_id"`
	FromEngineer string    `json:"from_engineer"`
	ToEngineer   string    `json:"to_engineer"`
	Level        int       `json:"level"`
	Reason       string    `json:"reason,omitempty"`
	Trigger      string    `json:"trigger"`
	EscalatedAt  time.Time `json:"escalated_at"`
}

// Events publishes escalation events to JetStream.
type Events struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewEvents creates the publisher and ensures the escalation stream exists.
func NewEvents(js nats.JetStreamContext, logger *zap.Logger) (*Events, error) {
	e := &Events{
		js:     js,
		logger: logger.Named("events"),
	}
	if err := e.setupStream(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Events) setupStream() error {
	_, err := e.js.AddStream(&nats.StreamConfig{
		Name:     escalationStreamName,
		Subjects: []string{"escalation.*"},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
		MaxMsgs:  -1,
	})
	if err != nil {
		// If stream already exists, that's okay
		if err == nats.ErrStreamNameAlreadyInUse {
			e.logger.Info("Stream already exists", zap.String("stream", escalationStreamName))
			return nil
		}
		return fmt.Errorf("failed to create escalation stream: %w", err)
	}
	e.logger.Info("Created escalation stream", zap.String("stream", escalationStreamName))
	return nil
}

// PublishEscalation publishes one event to escalation.<trigger>.
func (e *Events) PublishEscalation(ctx context.Context, esc *model.Escalation, trigger string) error {
	event := EscalationEvent{
		ID:           esc.ID,
		IncidentID:   esc.IncidentID,
		FromEngineer: esc.FromEngineer,
		ToEngineer:   esc.ToEngineer,
		Level:        esc.Level,
		Reason:       esc.Reason,
		Trigger:      trigger,
		EscalatedAt:  esc.EscalatedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation event: %w", err)
	}

	subject := fmt.Sprintf("escalation.%s", trigger)
	if _, err := e.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		e.logger.Error("Failed to publish escalation event",
			zap.String("escalation_id", esc.ID),
			zap.String("subject", subject),
			zap.Error(err))
		return err
	}

	e.logger.Info("Escalation event published",
		zap.String("escalation_id", esc.ID),
		zap.String("incident_id", esc.IncidentID),
		zap.String("trigger", trigger))
	return nil
}

// Subscribe delivers escalation events on all subjects to handler until ctx
// is cancelled. Intended for tests and in-process consumers.
func (e *Events) Subscribe(ctx context.Context, handler func(EscalationEvent)) error {
	sub, err := e.js.Subscribe("escalation.*", func(msg *nats.Msg) {
		var event EscalationEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			e.logger.Error("Failed to unmarshal escalation event", zap.Error(err))
			return
		}
		handler(event)
		msg.Ack()
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return nil
}

// NoopEvents is used when NATS is disabled or unreachable.
type NoopEvents struct{}

func (NoopEvents) PublishEscalation(context.Context, *model.Escalation, string) error { return nil }
