package partybot

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// MessageLimit is the hard per-message rune ceiling enforced by the transport.
const MessageLimit = 4096

// OutboundDispatcher sends neutral outbound operations to the platform adapter.
//
// Implementations enforce platform-specific constraints while preserving these
// protocol-level request semantics.
type OutboundDispatcher interface {
	// SendMessage publishes a new outbound message to a destination conversation.
	SendMessage(ctx context.Context, request SendMessageRequest) (*OutboundMessage, error)
	// EditMessage mutates an existing outbound message by ID.
	EditMessage(ctx context.Context, request EditMessageRequest) error
}

// OutboundTarget identifies where an outbound operation should be delivered.
type OutboundTarget struct {
	// Conversation identifies the destination conversation.
	Conversation Conversation
}

// Validate checks target identity fields used for outbound routing.
func (t OutboundTarget) Validate() error {
	if t.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidOutboundRequest)
	}
	if t.Conversation.Type == "" {
		return fmt.Errorf("%w: missing conversation type", ErrInvalidOutboundRequest)
	}

	return nil
}

// OutboundTargetFromEvent derives a destination target from an inbound event.
func OutboundTargetFromEvent(event *Event) (OutboundTarget, error) {
	if event == nil {
		return OutboundTarget{}, fmt.Errorf("%w: nil event", ErrInvalidOutboundRequest)
	}
	target := OutboundTarget{
		Conversation: event.Conversation,
	}
	if err := target.Validate(); err != nil {
		return OutboundTarget{}, fmt.Errorf("derive target from event %s: %w", event.Kind, err)
	}

	return target, nil
}

// OutboundMessage identifies a message successfully emitted by the dispatcher.
type OutboundMessage struct {
	// ID is the destination-platform message identifier.
	ID string
	// Target is the destination where this message was delivered.
	Target OutboundTarget
}

// SendMessageRequest describes a new outbound text message.
type SendMessageRequest struct {
	// Target identifies where the message should be sent.
	Target OutboundTarget
	// Text is the message body.
	Text string
	// Entities decorates Text with semantic formatting ranges.
	Entities []TextEntity
	// ReplyToMessageID optionally links this message as a reply.
	ReplyToMessageID string
	// DisableLinkPreview disables link previews when supported by the platform.
	DisableLinkPreview bool
}

// Validate checks the request envelope before dispatch.
func (r SendMessageRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate send message target: %w", err)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: missing message text", ErrInvalidOutboundRequest)
	}
	if utf8.RuneCountInString(r.Text) > MessageLimit {
		return fmt.Errorf("%w: message text exceeds %d runes", ErrInvalidOutboundRequest, MessageLimit)
	}
	if err := validateEntityRanges(r.Text, r.Entities); err != nil {
		return fmt.Errorf("%w: validate send message entities: %w", ErrInvalidOutboundRequest, err)
	}

	return nil
}

// EditMessageRequest describes a text edit for an existing message.
type EditMessageRequest struct {
	// Target identifies where the message exists.
	Target OutboundTarget
	// MessageID identifies which message should be edited.
	MessageID string
	// Text is the replacement message body.
	Text string
	// Entities decorates Text with semantic formatting ranges.
	Entities []TextEntity
	// DisableLinkPreview disables link previews when supported by the platform.
	DisableLinkPreview bool
}

// Validate checks the request envelope before dispatch.
func (r EditMessageRequest) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return fmt.Errorf("validate edit message target: %w", err)
	}
	if r.MessageID == "" {
		return fmt.Errorf("%w: missing message id", ErrInvalidOutboundRequest)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: missing message text", ErrInvalidOutboundRequest)
	}
	if utf8.RuneCountInString(r.Text) > MessageLimit {
		return fmt.Errorf("%w: message text exceeds %d runes", ErrInvalidOutboundRequest, MessageLimit)
	}
	if err := validateEntityRanges(r.Text, r.Entities); err != nil {
		return fmt.Errorf("%w: validate edit message entities: %w", ErrInvalidOutboundRequest, err)
	}

	return nil
}

func validateEntityRanges(text string, entities []TextEntity) error {
	runeCount := utf8.RuneCountInString(text)
	for index, entity := range entities {
		if entity.Offset < 0 || entity.Length <= 0 {
			return fmt.Errorf("entity[%d]: non-positive range", index)
		}
		if entity.Offset+entity.Length > runeCount {
			return fmt.Errorf(
				"entity[%d]: range [%d,%d) exceeds text runes %d",
				index,
				entity.Offset,
				entity.Offset+entity.Length,
				runeCount,
			)
		}
		if entity.Type == TextEntityTypeTextURL && entity.URL == "" {
			return fmt.Errorf("entity[%d]: text_url without url", index)
		}
	}

	return nil
}
