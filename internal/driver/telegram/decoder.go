package telegram

import (
	"context"
	"fmt"
	"time"

	"steam-party-bot/pkg/partybot"
)

// Decoder converts Telegram update DTOs into neutral events.
type Decoder interface {
	// Decode maps one adapter update into a validated neutral event envelope.
	Decode(ctx context.Context, update Update) (*partybot.Event, error)
}

// DefaultDecoder provides default Telegram-to-neutral mappings.
type DefaultDecoder struct{}

// NewDefaultDecoder creates a default decoder.
func NewDefaultDecoder() DefaultDecoder {
	return DefaultDecoder{}
}

// Decode converts a Telegram update into a neutral event.
func (d DefaultDecoder) Decode(_ context.Context, update Update) (*partybot.Event, error) {
	event := newBaseEvent(update)

	switch update.Type {
	case UpdateTypeMessage:
		event.Kind = partybot.EventKindMessageCreated
		message, err := decodeMessage(update.Message)
		if err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		event.Message = message
	default:
		return nil, fmt.Errorf("decode update %s: unsupported type", update.Type)
	}

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("decode update %s: %w", update.Type, err)
	}

	return event, nil
}

// newBaseEvent builds the shared envelope fields used by all update mappings.
func newBaseEvent(update Update) *partybot.Event {
	occurredAt := update.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return &partybot.Event{
		ID:         update.ID,
		OccurredAt: occurredAt,
		Platform:   partybot.PlatformTelegram,
		Conversation: partybot.Conversation{
			ID:    update.Chat.ID,
			Type:  update.Chat.Type,
			Title: update.Chat.Title,
		},
		Actor: partybot.Actor{
			ID:          update.Actor.ID,
			Username:    update.Actor.Username,
			DisplayName: update.Actor.DisplayName,
			IsBot:       update.Actor.IsBot,
		},
		Metadata: update.Metadata,
	}
}

// decodeMessage maps Telegram message payload into neutral message content.
func decodeMessage(payload *MessagePayload) (*partybot.Message, error) {
	if payload == nil {
		return nil, fmt.Errorf("missing message payload")
	}

	return &partybot.Message{
		ID:        payload.ID,
		ReplyToID: payload.ReplyToID,
		Text:      payload.Text,
		Entities:  payload.Entities,
	}, nil
}
