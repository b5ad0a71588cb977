package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"steam-party-bot/pkg/partybot"
)

type captureSink struct {
	mu     sync.Mutex
	events []*partybot.Event
	err    error
}

func (s *captureSink) Publish(_ context.Context, event *partybot.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) snapshot() []*partybot.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*partybot.Event(nil), s.events...)
}

func newTestUpdate(id string) Update {
	return Update{
		ID:         id,
		Type:       UpdateTypeMessage,
		OccurredAt: time.Unix(1_700_000_000, 0).UTC(),
		Chat:       ChatRef{ID: "100", Type: partybot.ConversationTypeGroup},
		Actor:      ActorRef{ID: "42"},
		Message:    &MessagePayload{ID: "777", Text: "hello"},
	}
}

func TestDriverStartPublishesDecodedEvents(t *testing.T) {
	t.Parallel()

	updates := make(chan Update, 1)
	updates <- newTestUpdate("tg:message:100:777")
	close(updates)

	driver, err := NewDriver(ChannelSource{Updates: updates}, NewDefaultDecoder())
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	sink := &captureSink{}
	if err := driver.Start(context.Background(), sink); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("events len = %d, want 1", len(events))
	}
	if events[0].Kind != partybot.EventKindMessageCreated {
		t.Fatalf("kind = %s, want %s", events[0].Kind, partybot.EventKindMessageCreated)
	}
	if events[0].Platform != DriverPlatform {
		t.Fatalf("platform = %s, want %s", events[0].Platform, DriverPlatform)
	}
}

func TestDriverStartReportsDecodeErrors(t *testing.T) {
	t.Parallel()

	updates := make(chan Update, 1)
	broken := newTestUpdate("tg:message:100:777")
	broken.Message = nil
	updates <- broken
	close(updates)

	driver, err := NewDriver(
		ChannelSource{Updates: updates},
		NewDefaultDecoder(),
		WithErrorHandler(func(_ context.Context, handlerErr error) {
			if handlerErr == nil {
				t.Error("expected non-nil handler error")
			}
		}),
	)
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	sink := &captureSink{}
	if err := driver.Start(context.Background(), sink); err == nil {
		t.Fatal("expected error")
	}
	if len(sink.snapshot()) != 0 {
		t.Fatal("expected no published events")
	}
}

func TestDriverStartSwallowsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	driver, err := NewDriver(NoopSource{}, NewDefaultDecoder())
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	if err := driver.Start(ctx, &captureSink{}); err != nil {
		t.Fatalf("start after cancel = %v, want nil", err)
	}
}

func TestDriverStartPublishFailure(t *testing.T) {
	t.Parallel()

	updates := make(chan Update, 1)
	updates <- newTestUpdate("tg:message:100:777")
	close(updates)

	driver, err := NewDriver(ChannelSource{Updates: updates}, NewDefaultDecoder())
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	sink := &captureSink{err: errors.New("bus closed")}
	if err := driver.Start(context.Background(), sink); err == nil {
		t.Fatal("expected error")
	}
}

type panicDecoder struct{}

func (panicDecoder) Decode(context.Context, Update) (*partybot.Event, error) {
	panic("decoder exploded")
}

func TestDriverStartContainsDecoderPanics(t *testing.T) {
	t.Parallel()

	updates := make(chan Update, 1)
	updates <- newTestUpdate("tg:message:100:777")
	close(updates)

	driver, err := NewDriver(ChannelSource{Updates: updates}, panicDecoder{})
	if err != nil {
		t.Fatalf("new driver failed: %v", err)
	}

	if err := driver.Start(context.Background(), &captureSink{}); err == nil {
		t.Fatal("expected error from contained panic")
	}
}
