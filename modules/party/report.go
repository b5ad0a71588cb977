package party

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"steam-party-bot/pkg/partybot"
)

const storePageURLFormat = "https://store.steampowered.com/app/%d/"

func (s *session) handleGames(ctx context.Context, event *partybot.Event) {
	tolerance := parseTolerance(event.Command.Tokens)
	threshold := len(s.memberIDs) - tolerance

	owned, steamFailed, storeFailed := s.fetchOwnedGames(ctx)
	if len(steamFailed) > 0 {
		s.reply(ctx, event, "Error in accessing steam API for "+s.joinDisplayNames(ctx, steamFailed))
	}
	if len(storeFailed) > 0 {
		s.reply(ctx, event, "Error in reading registrations for "+s.joinDisplayNames(ctx, storeFailed))
	}

	report := partybot.Aggregate(owned).Filter(threshold)
	if len(report) == 0 {
		s.reply(ctx, event, "No common games found!")
		return
	}

	chunks, err := partybot.SplitLines(renderReportLines(report), partybot.MessageLimit)
	if err != nil {
		s.module.logger.Error(
			"party report rendering failed",
			"module", s.module.Name(),
			"conversation_id", s.conversation.ID,
			"error", err,
		)
		return
	}
	for _, chunk := range chunks {
		if err := s.replyChunk(ctx, event, chunk); err != nil {
			s.module.logger.Warn(
				"party report send failed",
				"module", s.module.Name(),
				"conversation_id", s.conversation.ID,
				"error", err,
			)
			return
		}
	}
}

// fetchOwnedGames resolves each member's games concurrently through the
// cached library. Members without a registration are excluded; a lookup
// failure drops only that member and reports it. Registration-store failures
// are kept apart from catalog failures so the advisory names the right system.
func (s *session) fetchOwnedGames(ctx context.Context) (map[string][]partybot.Game, []string, []string) {
	var mu sync.Mutex
	owned := make(map[string][]partybot.Game, len(s.memberIDs))
	var steamFailed []string
	var storeFailed []string

	group, groupCtx := errgroup.WithContext(ctx)
	for _, memberID := range s.memberIDs {
		memberID := memberID
		group.Go(func() error {
			steamID, found, err := s.module.registrations.Lookup(groupCtx, memberID)
			if err != nil {
				s.module.logger.Warn(
					"party report registration lookup failed",
					"module", s.module.Name(),
					"conversation_id", s.conversation.ID,
					"user_id", memberID,
					"error", err,
				)
				mu.Lock()
				storeFailed = append(storeFailed, memberID)
				mu.Unlock()
				return nil
			}
			if !found {
				return nil
			}

			games, err := s.module.library.OwnedGames(groupCtx, steamID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				steamFailed = append(steamFailed, memberID)
				return nil
			}
			owned[memberID] = games.Games

			return nil
		})
	}
	// Per-member failures are advisory, never group errors.
	_ = group.Wait()

	sort.Strings(steamFailed)
	sort.Strings(storeFailed)

	return owned, steamFailed, storeFailed
}

func (s *session) joinDisplayNames(ctx context.Context, memberIDs []string) string {
	names := make([]string, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		names = append(names, s.displayName(ctx, memberID))
	}

	return strings.Join(names, ", ")
}

func renderReportLines(report partybot.Report) []partybot.Line {
	lines := make([]partybot.Line, 0, len(report))
	for _, entry := range report {
		prefix := fmt.Sprintf("%d: ", entry.OwnerCount)
		lines = append(lines, partybot.Line{
			Text: prefix + entry.Name,
			Entities: []partybot.TextEntity{
				{
					Type:   partybot.TextEntityTypeTextURL,
					Offset: utf8.RuneCountInString(prefix),
					Length: utf8.RuneCountInString(entry.Name),
					URL:    fmt.Sprintf(storePageURLFormat, entry.AppID),
				},
			},
		})
	}

	return lines
}
