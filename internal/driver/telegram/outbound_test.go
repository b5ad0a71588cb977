package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"steam-party-bot/pkg/partybot"

	"github.com/gotd/td/tg"
)

func TestOutboundDispatcherSendMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		request     partybot.SendMessageRequest
		rpcErr      error
		wantErr     bool
		wantMessage string
	}{
		{
			name: "successful send",
			request: partybot.SendMessageRequest{
				Target: partybot.OutboundTarget{
					Conversation: partybot.Conversation{
						ID:   "42",
						Type: partybot.ConversationTypeGroup,
					},
				},
				Text: "pong",
			},
			wantMessage: "901",
		},
		{
			name: "successful send with entities",
			request: partybot.SendMessageRequest{
				Target: partybot.OutboundTarget{
					Conversation: partybot.Conversation{
						ID:   "42",
						Type: partybot.ConversationTypeGroup,
					},
				},
				Text: "click me",
				Entities: []partybot.TextEntity{
					{
						Type:   partybot.TextEntityTypeTextURL,
						Offset: 0,
						Length: 8,
						URL:    "https://example.com",
					},
				},
			},
			wantMessage: "901",
		},
		{
			name: "invalid request",
			request: partybot.SendMessageRequest{
				Target: partybot.OutboundTarget{
					Conversation: partybot.Conversation{
						ID:   "42",
						Type: partybot.ConversationTypeGroup,
					},
				},
			},
			wantErr: true,
		},
		{
			name: "unknown conversation",
			request: partybot.SendMessageRequest{
				Target: partybot.OutboundTarget{
					Conversation: partybot.Conversation{
						ID:   "999",
						Type: partybot.ConversationTypeGroup,
					},
				},
				Text: "pong",
			},
			wantErr: true,
		},
		{
			name: "rpc failure",
			request: partybot.SendMessageRequest{
				Target: partybot.OutboundTarget{
					Conversation: partybot.Conversation{
						ID:   "42",
						Type: partybot.ConversationTypeGroup,
					},
				},
				Text: "pong",
			},
			rpcErr:  errors.New("send failed"),
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cache := NewPeerCache()
			cache.RememberConversation(
				ChatRef{ID: "42", Type: partybot.ConversationTypeGroup},
				&tg.InputPeerChat{ChatID: 42},
			)

			rpc := &stubOutboundRPC{sendID: 901, sendErr: testCase.rpcErr}
			dispatcher, err := newOutboundDispatcherWithRPC(rpc, cache)
			if err != nil {
				t.Fatalf("new dispatcher failed: %v", err)
			}

			outboundMessage, err := dispatcher.SendMessage(context.Background(), testCase.request)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outboundMessage == nil {
				t.Fatal("expected outbound message")
			}
			if outboundMessage.ID != testCase.wantMessage {
				t.Fatalf("message id = %s, want %s", outboundMessage.ID, testCase.wantMessage)
			}
			if rpc.sendCalls != 1 {
				t.Fatalf("send calls = %d, want 1", rpc.sendCalls)
			}
			if len(rpc.lastSendRequest.Entities) != len(testCase.request.Entities) {
				t.Fatalf(
					"entity len = %d, want %d",
					len(rpc.lastSendRequest.Entities),
					len(testCase.request.Entities),
				)
			}
		})
	}
}

func TestOutboundDispatcherEditMessage(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	cache.RememberConversation(
		ChatRef{ID: "42", Type: partybot.ConversationTypeGroup},
		&tg.InputPeerChat{ChatID: 42},
	)

	tests := []struct {
		name    string
		request partybot.EditMessageRequest
		wantErr bool
	}{
		{
			name: "successful edit",
			request: partybot.EditMessageRequest{
				Target: partybot.OutboundTarget{
					Conversation: partybot.Conversation{
						ID:   "42",
						Type: partybot.ConversationTypeGroup,
					},
				},
				MessageID: "5",
				Text:      "Party is no longer active.",
			},
		},
		{
			name: "missing message id",
			request: partybot.EditMessageRequest{
				Target: partybot.OutboundTarget{
					Conversation: partybot.Conversation{
						ID:   "42",
						Type: partybot.ConversationTypeGroup,
					},
				},
				Text: "edited",
			},
			wantErr: true,
		},
		{
			name: "non-numeric message id",
			request: partybot.EditMessageRequest{
				Target: partybot.OutboundTarget{
					Conversation: partybot.Conversation{
						ID:   "42",
						Type: partybot.ConversationTypeGroup,
					},
				},
				MessageID: "abc",
				Text:      "edited",
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			rpc := &stubOutboundRPC{}
			dispatcher, err := newOutboundDispatcherWithRPC(rpc, cache)
			if err != nil {
				t.Fatalf("new dispatcher failed: %v", err)
			}

			err = dispatcher.EditMessage(context.Background(), testCase.request)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rpc.editCalls != 1 {
				t.Fatalf("edit calls = %d, want 1", rpc.editCalls)
			}
			if rpc.lastEditMessageID != 5 {
				t.Fatalf("edit message id = %d, want 5", rpc.lastEditMessageID)
			}
		})
	}
}

func TestMapOutboundTextEntities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		text         string
		entities     []partybot.TextEntity
		wantErr      bool
		wantLen      int
		wantTypeName string
		wantOffset   int
		wantLength   int
	}{
		{
			name: "empty entities",
			text: "hello",
		},
		{
			name: "maps bold",
			text: "hello",
			entities: []partybot.TextEntity{
				{Type: partybot.TextEntityTypeBold, Offset: 0, Length: 5},
			},
			wantLen:      1,
			wantTypeName: "*tg.MessageEntityBold",
			wantOffset:   0,
			wantLength:   5,
		},
		{
			name: "maps text_url",
			text: "42: Portal 2",
			entities: []partybot.TextEntity{
				{Type: partybot.TextEntityTypeTextURL, Offset: 4, Length: 8, URL: "https://store.steampowered.com/app/620/"},
			},
			wantLen:      1,
			wantTypeName: "*tg.MessageEntityTextURL",
			wantOffset:   4,
			wantLength:   8,
		},
		{
			name: "maps utf16 offsets",
			text: "a😀b",
			entities: []partybot.TextEntity{
				{Type: partybot.TextEntityTypeBold, Offset: 1, Length: 1},
			},
			wantLen:      1,
			wantTypeName: "*tg.MessageEntityBold",
			wantOffset:   1,
			wantLength:   2,
		},
		{
			name: "invalid range fails",
			text: "hello",
			entities: []partybot.TextEntity{
				{Type: partybot.TextEntityTypeBold, Offset: 0, Length: 6},
			},
			wantErr: true,
		},
		{
			name: "unsupported type fails",
			text: "hello",
			entities: []partybot.TextEntity{
				{Type: "fancy", Offset: 0, Length: 5},
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			converted, err := mapOutboundTextEntities(testCase.text, testCase.entities)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(converted) != testCase.wantLen {
				t.Fatalf("converted len = %d, want %d", len(converted), testCase.wantLen)
			}
			if len(converted) == 0 {
				return
			}

			if gotType := typeName(converted[0]); gotType != testCase.wantTypeName {
				t.Fatalf("type = %s, want %s", gotType, testCase.wantTypeName)
			}
			if converted[0].GetOffset() != testCase.wantOffset {
				t.Fatalf("offset = %d, want %d", converted[0].GetOffset(), testCase.wantOffset)
			}
			if converted[0].GetLength() != testCase.wantLength {
				t.Fatalf("length = %d, want %d", converted[0].GetLength(), testCase.wantLength)
			}
		})
	}
}

type stubOutboundRPC struct {
	sendID            int
	sendErr           error
	lastSendRequest   partybot.SendMessageRequest
	lastEditRequest   partybot.EditMessageRequest
	lastEditMessageID int
	sendCalls         int
	editCalls         int
}

func (s *stubOutboundRPC) SendText(
	_ context.Context,
	_ tg.InputPeerClass,
	request partybot.SendMessageRequest,
) (int, error) {
	s.sendCalls++
	s.lastSendRequest = request
	if s.sendErr != nil {
		return 0, s.sendErr
	}

	return s.sendID, nil
}

func (s *stubOutboundRPC) EditText(
	_ context.Context,
	_ tg.InputPeerClass,
	messageID int,
	request partybot.EditMessageRequest,
) error {
	s.editCalls++
	s.lastEditRequest = request
	s.lastEditMessageID = messageID
	return nil
}

func typeName(value any) string {
	return fmt.Sprintf("%T", value)
}
