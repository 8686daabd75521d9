package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"baton/internal/config"
	"baton/internal/logging"
)

// Topic is the bus topic every event is published on.
const Topic = "baton.events"

const (
	metadataEventType  = "event_type"
	metadataOccurredAt = "occurred_at"
)

// Event identifies a notification type.
type Event string

const (
	EventHandoffCompleted  Event = "handoff.completed"
	EventHandoffFailed     Event = "handoff.failed"
	EventMonitorAlert      Event = "monitor.alert"
	EventStageFailed       Event = "stage.failed"
	EventPipelineCompleted Event = "pipeline.completed"
)

// Payload carries event-specific fields.
type Payload map[string]any

// Message is an event delivered to a subscriber.
type Message struct {
	ID         string
	Event      Event
	OccurredAt time.Time
	Payload    Payload
}

// Service publishes events and hands out subscriptions.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Subscribe(ctx context.Context) (<-chan Message, error)
	Close() error
}

// NewService builds the watermill-backed bus, or a no-op service when
// notifications are disabled.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if cfg == nil || !cfg.Notifications.Enabled {
		return noopService{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	buffer := cfg.Notifications.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            buffer,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewSlogLogger(logging.NewComponentLogger(logger, "notifications")),
	)
	return &busService{pubSub: pubSub, logger: logging.NewComponentLogger(logger, "notifications")}
}

type busService struct {
	pubSub *gochannel.GoChannel
	logger *slog.Logger
}

func (b *busService) Publish(ctx context.Context, event Event, payload Payload) error {
	if event == "" {
		return errors.New("publish: event type is empty")
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	msg := message.NewMessage(watermill.NewULID(), data)
	msg.SetContext(ctx)
	msg.Metadata.Set(metadataEventType, string(event))
	msg.Metadata.Set(metadataOccurredAt, time.Now().UTC().Format(time.RFC3339Nano))
	if err := b.pubSub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

func (b *busService) Subscribe(ctx context.Context) (<-chan Message, error) {
	messages, err := b.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Topic, err)
	}
	out := make(chan Message)
	go func() {
		defer close(out)
		for msg := range messages {
			decoded, err := decode(msg)
			if err != nil {
				b.logger.Debug("dropping undecodable event", logging.String("message_id", msg.UUID), logging.Error(err))
				msg.Ack()
				continue
			}
			select {
			case out <- decoded:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (b *busService) Close() error {
	return b.pubSub.Close()
}

func decode(msg *message.Message) (Message, error) {
	payload := Payload{}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return Message{}, err
	}
	out := Message{
		ID:      msg.UUID,
		Event:   Event(msg.Metadata.Get(metadataEventType)),
		Payload: payload,
	}
	if ts, err := time.Parse(time.RFC3339Nano, msg.Metadata.Get(metadataOccurredAt)); err == nil {
		out.OccurredAt = ts
	}
	return out, nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

func (noopService) Subscribe(context.Context) (<-chan Message, error) {
	ch := make(chan Message)
	close(ch)
	return ch, nil
}

func (noopService) Close() error { return nil }
