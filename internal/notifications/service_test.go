package notifications_test

import (
	"context"
	"testing"
	"time"

	"baton/internal/config"
	"baton/internal/logging"
	"baton/internal/notifications"
)

func TestNewServiceReturnsNoopWhenDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Enabled = false
	svc := notifications.NewService(&cfg, logging.NewNop())
	if err := svc.Publish(context.Background(), notifications.EventHandoffCompleted, notifications.Payload{"handoff_id": "h1"}); err != nil {
		t.Fatalf("expected noop publish to return nil, got %v", err)
	}
	ch, err := svc.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel from noop service")
	}
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBusDeliversEvents(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Enabled = true
	svc := notifications.NewService(&cfg, logging.NewNop())
	t.Cleanup(func() { _ = svc.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch, err := svc.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	events := []struct {
		event   notifications.Event
		payload notifications.Payload
	}{
		{notifications.EventHandoffCompleted, notifications.Payload{"handoff_id": "h1", "size_bytes": 512}},
		{notifications.EventMonitorAlert, notifications.Payload{"alert": "high_failure_rate", "failure_rate": 0.33}},
	}
	for _, e := range events {
		if err := svc.Publish(ctx, e.event, e.payload); err != nil {
			t.Fatalf("Publish %s: %v", e.event, err)
		}
	}

	received := make(map[notifications.Event]notifications.Message)
	for len(received) < len(events) {
		select {
		case got := <-ch:
			received[got.Event] = got
		case <-ctx.Done():
			t.Fatalf("timed out waiting for events, have %d", len(received))
		}
	}
	for _, want := range events {
		got, ok := received[want.event]
		if !ok {
			t.Fatalf("event %s not delivered", want.event)
		}
		if got.ID == "" || got.OccurredAt.IsZero() {
			t.Fatalf("message metadata missing: %+v", got)
		}
		for key := range want.payload {
			if _, ok := got.Payload[key]; !ok {
				t.Fatalf("payload key %s missing from %v", key, got.Payload)
			}
		}
	}
}

func TestPublishRejectsEmptyEvent(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.Enabled = true
	svc := notifications.NewService(&cfg, logging.NewNop())
	defer svc.Close()
	if err := svc.Publish(context.Background(), "", nil); err == nil {
		t.Fatal("expected error")
	}
}
