package partybot

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOutboundRequestValidation(t *testing.T) {
	t.Parallel()

	validTarget := OutboundTarget{
		Conversation: Conversation{
			ID:   "chat-1",
			Type: ConversationTypeGroup,
		},
	}

	tests := []struct {
		name    string
		check   func() error
		wantErr bool
	}{
		{
			name: "send message valid",
			check: func() error {
				return SendMessageRequest{
					Target: validTarget,
					Text:   "hello",
				}.Validate()
			},
		},
		{
			name: "send message missing text",
			check: func() error {
				return SendMessageRequest{
					Target: validTarget,
				}.Validate()
			},
			wantErr: true,
		},
		{
			name: "send message missing conversation id",
			check: func() error {
				return SendMessageRequest{
					Target: OutboundTarget{Conversation: Conversation{Type: ConversationTypeGroup}},
					Text:   "hello",
				}.Validate()
			},
			wantErr: true,
		},
		{
			name: "send message at rune ceiling",
			check: func() error {
				return SendMessageRequest{
					Target: validTarget,
					Text:   strings.Repeat("x", MessageLimit),
				}.Validate()
			},
		},
		{
			name: "send message over rune ceiling",
			check: func() error {
				return SendMessageRequest{
					Target: validTarget,
					Text:   strings.Repeat("x", MessageLimit+1),
				}.Validate()
			},
			wantErr: true,
		},
		{
			name: "send message entity out of range",
			check: func() error {
				return SendMessageRequest{
					Target:   validTarget,
					Text:     "short",
					Entities: []TextEntity{{Type: TextEntityTypeBold, Offset: 3, Length: 10}},
				}.Validate()
			},
			wantErr: true,
		},
		{
			name: "send message text url without url",
			check: func() error {
				return SendMessageRequest{
					Target:   validTarget,
					Text:     "link here",
					Entities: []TextEntity{{Type: TextEntityTypeTextURL, Offset: 5, Length: 4}},
				}.Validate()
			},
			wantErr: true,
		},
		{
			name: "edit message valid",
			check: func() error {
				return EditMessageRequest{
					Target:    validTarget,
					MessageID: "100",
					Text:      "updated",
				}.Validate()
			},
		},
		{
			name: "edit message missing id",
			check: func() error {
				return EditMessageRequest{
					Target: validTarget,
					Text:   "updated",
				}.Validate()
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.check()
			if testCase.wantErr {
				if !errors.Is(err, ErrInvalidOutboundRequest) {
					t.Fatalf("error = %v, want ErrInvalidOutboundRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestOutboundTargetFromEvent(t *testing.T) {
	t.Parallel()

	t.Run("derives target from conversation", func(t *testing.T) {
		t.Parallel()

		event := &Event{
			ID:         "evt-1",
			Kind:       EventKindMessageCreated,
			OccurredAt: time.Unix(10, 0).UTC(),
			Conversation: Conversation{
				ID:   "chat-1",
				Type: ConversationTypeGroup,
			},
			Message: &Message{ID: "msg-1", Text: "hello"},
		}

		target, err := OutboundTargetFromEvent(event)
		if err != nil {
			t.Fatalf("derive target failed: %v", err)
		}
		if target.Conversation.ID != "chat-1" {
			t.Fatalf("conversation id = %q, want chat-1", target.Conversation.ID)
		}
	})

	t.Run("nil event fails", func(t *testing.T) {
		t.Parallel()

		if _, err := OutboundTargetFromEvent(nil); !errors.Is(err, ErrInvalidOutboundRequest) {
			t.Fatalf("error = %v, want ErrInvalidOutboundRequest", err)
		}
	})

	t.Run("missing conversation id fails", func(t *testing.T) {
		t.Parallel()

		event := &Event{
			ID:           "evt-2",
			Kind:         EventKindMessageCreated,
			OccurredAt:   time.Unix(10, 0).UTC(),
			Conversation: Conversation{Type: ConversationTypeGroup},
			Message:      &Message{ID: "msg-1", Text: "hello"},
		}
		if _, err := OutboundTargetFromEvent(event); !errors.Is(err, ErrInvalidOutboundRequest) {
			t.Fatalf("error = %v, want ErrInvalidOutboundRequest", err)
		}
	})
}
