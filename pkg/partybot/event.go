package partybot

import (
	"fmt"
	"time"
)

// EventKind identifies a neutral domain event type.
type EventKind string

const (
	// EventKindMessageCreated is emitted when a new message is posted.
	EventKindMessageCreated EventKind = "message.created"
	// EventKindCommandReceived is emitted when an ordinary command is bound.
	EventKindCommandReceived EventKind = "command.received"
	// EventKindSystemCommandReceived is emitted when a system command is bound.
	EventKindSystemCommandReceived EventKind = "system.command.received"
)

// Platform identifies an external chat platform source.
type Platform string

const (
	// PlatformTelegram is Telegram.
	PlatformTelegram Platform = "telegram"
)

// ConversationType identifies conversation scope.
type ConversationType string

const (
	// ConversationTypePrivate is a direct/private conversation.
	ConversationTypePrivate ConversationType = "private"
	// ConversationTypeGroup is a group conversation.
	ConversationTypeGroup ConversationType = "group"
	// ConversationTypeChannel is a channel-style conversation.
	ConversationTypeChannel ConversationType = "channel"
)

// Event is the neutral protocol envelope that the driver publishes and modules consume.
//
// Message is present on every kind; Command is set only on command events.
type Event struct {
	// ID is a stable identifier for this event instance.
	ID string
	// Kind selects which payload branch is expected.
	Kind EventKind
	// OccurredAt is the source-platform timestamp for the event.
	OccurredAt time.Time
	// Platform identifies the upstream platform that produced the event.
	Platform Platform
	// Conversation identifies where the event happened.
	Conversation Conversation
	// Actor identifies who initiated the event.
	Actor Actor
	// Message carries message content.
	Message *Message
	// Command carries the bound command invocation for command events.
	Command *CommandInvocation
	// Metadata stores optional driver-provided key/value context.
	Metadata map[string]string
}

// Conversation identifies the neutral destination where an event occurred.
type Conversation struct {
	// ID is the stable conversation identifier on the source platform.
	ID string
	// Type describes the conversation scope.
	Type ConversationType
	// Title is a best-effort display label for the conversation.
	Title string
}

// Actor identifies the user that initiated an event.
type Actor struct {
	// ID is the stable actor identifier on the source platform.
	ID string
	// Username is the platform handle when available.
	Username string
	// DisplayName is the human-readable actor name.
	DisplayName string
	// IsBot reports whether the actor is an automated account.
	IsBot bool
}

// Message holds neutral text message content.
type Message struct {
	// ID is the message identifier on the source platform.
	ID string
	// ReplyToID is the parent message identifier when this is a reply.
	ReplyToID string
	// Text is the normalized message text body.
	Text string
	// Entities describes formatted ranges inside Text.
	Entities []TextEntity
}

// TextEntityType identifies supported rich text fragment classes.
type TextEntityType string

const (
	// TextEntityTypeBold marks bold text.
	TextEntityTypeBold TextEntityType = "bold"
	// TextEntityTypeCode marks inline monospace text.
	TextEntityTypeCode TextEntityType = "code"
	// TextEntityTypeTextURL marks text carrying a hidden link target.
	TextEntityTypeTextURL TextEntityType = "text_url"
)

// TextEntity marks a rich text fragment. Offset and Length are rune counts.
type TextEntity struct {
	// Type identifies the entity class.
	Type TextEntityType
	// Offset is the zero-based rune offset in the message text.
	Offset int
	// Length is the rune span of the entity.
	Length int
	// URL is the link target for text_url entities.
	URL string
}

// Validate checks event envelope and payload coherence.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	if e.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidEvent)
	}

	switch e.Kind {
	case EventKindMessageCreated:
		if e.Message == nil {
			return fmt.Errorf("%w: message.created requires message payload", ErrInvalidEvent)
		}
	case EventKindCommandReceived, EventKindSystemCommandReceived:
		if e.Message == nil {
			return fmt.Errorf("%w: command event requires message payload", ErrInvalidEvent)
		}
		if e.Command == nil {
			return fmt.Errorf("%w: command event requires command payload", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}
