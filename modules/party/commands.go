package party

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"steam-party-bot/pkg/partybot"
)

// memberMarkupPattern matches inline mention markup carrying a numeric user id.
var memberMarkupPattern = regexp.MustCompile(`^\[.*\]\(tg://user\?id=(\d+)\)$`)

// handleCommand processes one session command and reports whether the session
// should end.
func (s *session) handleCommand(ctx context.Context, event *partybot.Event) bool {
	if event == nil || event.Command == nil {
		return false
	}

	switch event.Command.Name {
	case joinCommandName:
		return s.handleJoin(ctx, event)
	case leaveCommandName:
		s.handleLeave(ctx, event)
	case addCommandName:
		s.handleAdd(ctx, event)
	case kickCommandName:
		s.handleKick(ctx, event)
	case membersCommandName:
		s.handleMembers(ctx, event)
	case gamesCommandName:
		s.handleGames(ctx, event)
	case stopCommandName:
		s.reply(ctx, event, "Party now ends.")
		return true
	default:
	}

	return false
}

// handleJoin adds the sender when registered. An unregistered join
// deliberately ends the whole session.
func (s *session) handleJoin(ctx context.Context, event *partybot.Event) bool {
	senderID := event.Actor.ID
	if s.isMember(senderID) {
		s.reply(ctx, event, "You are already in the party!")
		return false
	}

	_, found, err := s.module.registrations.Lookup(ctx, senderID)
	if err != nil {
		s.module.logger.Warn(
			"party join registration lookup failed",
			"module", s.module.Name(),
			"conversation_id", s.conversation.ID,
			"user_id", senderID,
			"error", err,
		)
		s.reply(ctx, event, "Error in reading registrations, try again!")
		return false
	}
	if !found {
		s.reply(ctx, event, "You need to register!")
		return true
	}

	s.addMember(senderID)
	s.reply(ctx, event, "You are in the party now!")

	return false
}

func (s *session) handleLeave(ctx context.Context, event *partybot.Event) {
	senderID := event.Actor.ID
	if !s.isMember(senderID) {
		s.reply(ctx, event, "You are not in the party!")
		return
	}

	s.removeMember(senderID)
	s.reply(ctx, event, "You are not in the party now!")
}

func (s *session) handleAdd(ctx context.Context, event *partybot.Event) {
	userIDs := s.resolveMemberRefs(ctx, event.Command.Tokens)
	if len(userIDs) == 0 {
		s.reply(ctx, event, "Usage: /add <at's of users>")
		return
	}

	added := 0
	for _, userID := range userIDs {
		if s.isMember(userID) {
			continue
		}
		_, found, err := s.module.registrations.Lookup(ctx, userID)
		if err != nil || !found {
			continue
		}
		s.addMember(userID)
		added++
	}

	s.reply(ctx, event, fmt.Sprintf("Added %d users", added))
}

func (s *session) handleKick(ctx context.Context, event *partybot.Event) {
	userIDs := s.resolveMemberRefs(ctx, event.Command.Tokens)
	if len(userIDs) == 0 {
		s.reply(ctx, event, "Usage: /kick <at's of users>")
		return
	}

	kicked := 0
	for _, userID := range userIDs {
		if !s.isMember(userID) {
			continue
		}
		s.removeMember(userID)
		kicked++
	}

	s.reply(ctx, event, fmt.Sprintf("Kicked %d users", kicked))
}

func (s *session) handleMembers(ctx context.Context, event *partybot.Event) {
	names := make([]string, 0, len(s.memberIDs))
	for _, memberID := range s.memberIDs {
		names = append(names, s.displayName(ctx, memberID))
	}

	text := fmt.Sprintf("Members in Party:(total: %d)", len(s.memberIDs))
	if len(names) > 0 {
		text += "\n" + strings.Join(names, "\n")
	}
	s.reply(ctx, event, text)
}

// resolveMemberRefs maps "@handle" and inline mention markup tokens to user
// ids. Unresolvable references are skipped, not errors.
func (s *session) resolveMemberRefs(ctx context.Context, tokens []string) []string {
	userIDs := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if handle, isHandle := strings.CutPrefix(token, "@"); isHandle {
			userID, err := s.module.resolver.ResolveHandle(ctx, handle)
			if err != nil {
				s.module.logger.Debug(
					"party member handle unresolved",
					"module", s.module.Name(),
					"conversation_id", s.conversation.ID,
					"handle", handle,
					"error", err,
				)
				continue
			}
			userIDs = append(userIDs, userID)
			continue
		}

		matches := memberMarkupPattern.FindStringSubmatch(token)
		if matches == nil {
			continue
		}
		userIDs = append(userIDs, matches[1])
	}

	return userIDs
}

func (s *session) displayName(ctx context.Context, userID string) string {
	name, err := s.module.resolver.DisplayName(ctx, userID)
	if err != nil || name == "" {
		return userID
	}

	return name
}

// parseTolerance reads the optional tolerance token; parse failures and
// negative values fall back to zero rather than rejecting the command.
func parseTolerance(tokens []string) int {
	if len(tokens) == 0 {
		return 0
	}
	value, err := strconv.Atoi(tokens[0])
	if err != nil || value < 0 {
		return 0
	}

	return value
}
