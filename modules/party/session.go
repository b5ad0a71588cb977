package party

import (
	"context"
	"fmt"
	"sync"
	"time"

	"steam-party-bot/pkg/partybot"
)

const sessionQueueSize = 16

const partyIntroText = "Here comes a new party! Let's find some common games we have.\n\n" +
	"/join to join party.\n" +
	"/leave to leave party\n" +
	"/add <list of at's> to add people to party\n" +
	"/kick <list of at's> to kick people from party\n" +
	"/members to show current members\n" +
	"/games <Number of difference tolerance> to find common games\n" +
	"/stop to stop party"

const partyEndedText = "Party is no longer active."

// session is the live state of one in-progress party in a chat.
//
// All mutable state is owned by the run loop; commands enter through the
// queue and are handled one at a time in arrival order.
type session struct {
	module         *Module
	conversation   partybot.Conversation
	introMessageID string
	idleTimeout    time.Duration

	commands chan *partybot.Event
	done     chan struct{}
	endOnce  sync.Once

	// memberIDs preserves join order; memberSet backs membership checks.
	memberIDs []string
	memberSet map[string]struct{}
}

func newSession(module *Module, conversation partybot.Conversation) *session {
	return &session{
		module:       module,
		conversation: conversation,
		idleTimeout:  module.idleTimeout,
		commands:     make(chan *partybot.Event, sessionQueueSize),
		done:         make(chan struct{}),
		memberSet:    make(map[string]struct{}),
	}
}

// enqueue hands one command event to the run loop. It reports false when the
// session already ended or the caller's context was cancelled first.
func (s *session) enqueue(ctx context.Context, event *partybot.Event) bool {
	select {
	case s.commands <- event:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *session) run(ctx context.Context) {
	timer := time.NewTimer(s.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.end(ctx, "cancelled")
			return
		case <-timer.C:
			s.end(ctx, "idle timeout")
			return
		case event := <-s.commands:
			if s.handleCommand(ctx, event) {
				s.end(ctx, "stopped")
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.idleTimeout)
		}
	}
}

// end runs the terminal transition exactly once: an explicit stop, the idle
// timeout, and shutdown cancellation all converge here.
func (s *session) end(ctx context.Context, reason string) {
	s.endOnce.Do(func() {
		close(s.done)
		s.module.sessions.remove(s.conversation.ID, s)

		// The announce edit must still go out when end was driven by
		// shutdown cancellation.
		announceCtx := context.WithoutCancel(ctx)
		if s.introMessageID != "" {
			err := s.module.dispatcher.EditMessage(announceCtx, partybot.EditMessageRequest{
				Target:    partybot.OutboundTarget{Conversation: s.conversation},
				MessageID: s.introMessageID,
				Text:      partyEndedText,
			})
			if err != nil {
				s.module.logger.Warn(
					"party end announce failed",
					"module", s.module.Name(),
					"conversation_id", s.conversation.ID,
					"error", err,
				)
			}
		}

		s.module.logger.Info(
			"party session ended",
			"module", s.module.Name(),
			"conversation_id", s.conversation.ID,
			"reason", reason,
			"members", len(s.memberIDs),
		)
	})
}

func (s *session) isMember(userID string) bool {
	_, exists := s.memberSet[userID]

	return exists
}

func (s *session) addMember(userID string) {
	if s.isMember(userID) {
		return
	}
	s.memberSet[userID] = struct{}{}
	s.memberIDs = append(s.memberIDs, userID)
}

func (s *session) removeMember(userID string) {
	if !s.isMember(userID) {
		return
	}
	delete(s.memberSet, userID)
	for index, memberID := range s.memberIDs {
		if memberID == userID {
			s.memberIDs = append(s.memberIDs[:index], s.memberIDs[index+1:]...)
			break
		}
	}
}

func (s *session) reply(ctx context.Context, event *partybot.Event, text string) {
	if err := s.module.reply(ctx, event, text); err != nil {
		s.module.logger.Warn(
			"party session reply failed",
			"module", s.module.Name(),
			"conversation_id", s.conversation.ID,
			"error", err,
		)
	}
}

func (s *session) replyChunk(ctx context.Context, event *partybot.Event, chunk partybot.Chunk) error {
	target, err := partybot.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("derive chunk target: %w", err)
	}

	request := partybot.SendMessageRequest{
		Target:             target,
		Text:               chunk.Text,
		Entities:           chunk.Entities,
		DisableLinkPreview: true,
	}
	if event.Message != nil {
		request.ReplyToMessageID = event.Message.ID
	}
	if _, err := s.module.dispatcher.SendMessage(ctx, request); err != nil {
		return fmt.Errorf("send chunk: %w", err)
	}

	return nil
}
