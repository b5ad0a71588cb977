package gamecache

import (
	"context"
	"fmt"

	"steam-party-bot/pkg/partybot"
)

func (m *Module) handleCommandEvent(ctx context.Context, event *partybot.Event) error {
	if event == nil {
		return fmt.Errorf("gamecache handle command: nil event")
	}
	if event.Kind != partybot.EventKindSystemCommandReceived {
		return nil
	}
	if event.Command == nil {
		return fmt.Errorf("gamecache handle command: missing command payload")
	}
	if event.Command.Name != flushCommandName {
		return nil
	}
	if m.dispatcher == nil {
		return fmt.Errorf("%s command: outbound dispatcher not configured", flushCommandName)
	}

	target, err := partybot.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("%s command derive outbound target: %w", flushCommandName, err)
	}

	cleared := m.invalidateAll()
	m.logger.InfoContext(ctx,
		"game cache flushed",
		"module", m.Name(),
		"entries", cleared,
		"conversation_id", event.Conversation.ID,
	)

	request := partybot.SendMessageRequest{
		Target: target,
		Text:   fmt.Sprintf("Flushed %d cached game lists.", cleared),
	}
	if event.Message != nil {
		request.ReplyToMessageID = event.Message.ID
	}
	if _, err := m.dispatcher.SendMessage(ctx, request); err != nil {
		return fmt.Errorf("%s command send reply: %w", flushCommandName, err)
	}

	return nil
}
