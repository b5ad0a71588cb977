package register

import (
	"context"
	"fmt"
	"unicode/utf8"

	"steam-party-bot/pkg/partybot"
)

const steamdbCalculatorURL = "https://steamdb.info/calculator/"

func (m *Module) handleCommandEvent(ctx context.Context, event *partybot.Event) error {
	if event == nil {
		return fmt.Errorf("register handle command: nil event")
	}
	if event.Kind != partybot.EventKindCommandReceived {
		return nil
	}
	if event.Command == nil {
		return fmt.Errorf("register handle command: missing command payload")
	}

	switch event.Command.Name {
	case startCommandName:
		return m.handleStart(ctx, event)
	case registerCommandName:
		return m.handleRegister(ctx, event)
	case unregisterCommandName:
		return m.handleUnregister(ctx, event)
	case myGamesCommandName:
		return m.handleMyGames(ctx, event)
	default:
		return nil
	}
}

func (m *Module) handleStart(ctx context.Context, event *partybot.Event) error {
	target, err := partybot.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("%s command derive outbound target: %w", startCommandName, err)
	}

	// The greeting is a plain chat message, not a reply.
	if _, err := m.dispatcher.SendMessage(ctx, partybot.SendMessageRequest{
		Target: target,
		Text:   "Hi there. Steam Party Bot standby.",
	}); err != nil {
		return fmt.Errorf("%s command send greeting: %w", startCommandName, err)
	}

	return nil
}

func (m *Module) handleRegister(ctx context.Context, event *partybot.Event) error {
	if len(event.Command.Tokens) < 1 {
		return m.replyUsage(ctx, event)
	}

	steamID := event.Command.Tokens[0]
	if err := m.registrations.Save(ctx, event.Actor.ID, steamID); err != nil {
		return fmt.Errorf("%s command persist mapping: %w", registerCommandName, err)
	}

	m.logger.InfoContext(ctx,
		"steam id registered",
		"module", m.Name(),
		"user_id", event.Actor.ID,
	)

	return m.reply(ctx, event, "Your Steam ID has been registered.")
}

func (m *Module) replyUsage(ctx context.Context, event *partybot.Event) error {
	prefix := "Usage: /register <Your Steam Numerical ID>\nYou can find your numerical ID "
	text := prefix + "here"

	target, err := partybot.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("%s usage derive outbound target: %w", registerCommandName, err)
	}

	request := partybot.SendMessageRequest{
		Target: target,
		Text:   text,
		Entities: []partybot.TextEntity{
			{
				Type:   partybot.TextEntityTypeTextURL,
				Offset: utf8.RuneCountInString(prefix),
				Length: utf8.RuneCountInString("here"),
				URL:    steamdbCalculatorURL,
			},
		},
	}
	if event.Message != nil {
		request.ReplyToMessageID = event.Message.ID
	}
	if _, err := m.dispatcher.SendMessage(ctx, request); err != nil {
		return fmt.Errorf("%s usage send reply: %w", registerCommandName, err)
	}

	return nil
}

func (m *Module) handleUnregister(ctx context.Context, event *partybot.Event) error {
	removed, err := m.registrations.Delete(ctx, event.Actor.ID)
	if err != nil {
		return fmt.Errorf("%s command delete mapping: %w", unregisterCommandName, err)
	}
	if !removed {
		return m.reply(ctx, event, "You are not registered yet.")
	}

	m.logger.InfoContext(ctx,
		"steam id unregistered",
		"module", m.Name(),
		"user_id", event.Actor.ID,
	)

	return m.reply(ctx, event, "Your Steam ID has been unregistered.")
}

func (m *Module) handleMyGames(ctx context.Context, event *partybot.Event) error {
	steamID, found, err := m.registrations.Lookup(ctx, event.Actor.ID)
	if err != nil {
		return fmt.Errorf("%s command registration lookup: %w", myGamesCommandName, err)
	}
	if !found {
		return m.reply(ctx, event, "You have not registered!")
	}

	owned, err := m.library.OwnedGames(ctx, steamID)
	if err != nil {
		m.logger.WarnContext(ctx,
			"owned games lookup failed",
			"module", m.Name(),
			"user_id", event.Actor.ID,
			"error", err,
		)
		return m.reply(ctx, event, "Error in accessing steam API")
	}

	names := make([]string, 0, len(owned.Games))
	for _, game := range owned.Games {
		names = append(names, game.Name)
	}

	listing := fmt.Sprintf("List of games owned:(Total: %d)", owned.Count)
	for _, name := range names {
		listing += "\n" + name
	}
	if utf8.RuneCountInString(listing) <= partybot.MessageLimit {
		return m.reply(ctx, event, listing)
	}

	overflow := fmt.Sprintf(
		"You have too many games, %d in total.\nYou certainly don't have a life.",
		owned.Count,
	)
	if err := m.reply(ctx, event, overflow); err != nil {
		return err
	}

	chunks, err := partybot.SplitLines(partybot.PlainLines(names), partybot.MessageLimit)
	if err != nil {
		return fmt.Errorf("%s command split game list: %w", myGamesCommandName, err)
	}
	for _, chunk := range chunks {
		if err := m.reply(ctx, event, chunk.Text); err != nil {
			return err
		}
	}

	return nil
}

func (m *Module) reply(ctx context.Context, event *partybot.Event, text string) error {
	target, err := partybot.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("derive reply target: %w", err)
	}

	request := partybot.SendMessageRequest{
		Target: target,
		Text:   text,
	}
	if event.Message != nil {
		request.ReplyToMessageID = event.Message.ID
	}
	if _, err := m.dispatcher.SendMessage(ctx, request); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	return nil
}
