package kernel

import (
	"context"
	"fmt"
	"strings"

	"steam-party-bot/pkg/partybot"
)

type commandRegistration struct {
	moduleName string
	spec       partybot.CommandSpec
}

// registerModuleCommands validates and registers module-owned command specs.
func (k *Kernel) registerModuleCommands(
	_ context.Context,
	moduleName string,
	commands []partybot.CommandSpec,
) error {
	if len(commands) == 0 {
		return nil
	}

	normalized := make([]partybot.CommandSpec, 0, len(commands))
	seenInModule := make(map[string]struct{}, len(commands))
	for index, command := range commands {
		if err := command.Validate(); err != nil {
			return fmt.Errorf("register command[%d] for module %s: %w", index, moduleName, err)
		}

		command.Name = normalizeCommandName(command.Name)
		key := commandRegistryKey(command.Prefix, command.Name)
		if _, exists := seenInModule[key]; exists {
			return fmt.Errorf(
				"register command %s for module %s: duplicate declaration",
				formatCommandKey(command.Prefix, command.Name),
				moduleName,
			)
		}
		seenInModule[key] = struct{}{}
		normalized = append(normalized, command)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, command := range normalized {
		key := commandRegistryKey(command.Prefix, command.Name)
		existing, exists := k.commands[key]
		if exists {
			return fmt.Errorf(
				"register command %s for module %s: already registered by module %s",
				formatCommandKey(command.Prefix, command.Name),
				moduleName,
				existing.moduleName,
			)
		}
	}
	for _, command := range normalized {
		key := commandRegistryKey(command.Prefix, command.Name)
		k.commands[key] = commandRegistration{
			moduleName: moduleName,
			spec:       command,
		}
	}

	return nil
}

// unregisterModuleCommands removes every command owned by one module.
func (k *Kernel) unregisterModuleCommands(moduleName string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for key, registration := range k.commands {
		if registration.moduleName == moduleName {
			delete(k.commands, key)
		}
	}
}

// lookupCommand resolves one command spec by prefix + normalized name.
func (k *Kernel) lookupCommand(prefix partybot.CommandPrefix, name string) (partybot.CommandSpec, bool) {
	key := commandRegistryKey(prefix, name)

	k.mu.RLock()
	registration, exists := k.commands[key]
	k.mu.RUnlock()
	if !exists {
		return partybot.CommandSpec{}, false
	}

	return registration.spec, true
}

// newDriverEventSink creates the source-event sink wrapped with command derivation.
func (k *Kernel) newDriverEventSink() partybot.EventSink {
	return &commandDerivingSink{
		base: k.bus,
		lookupCommand: func(prefix partybot.CommandPrefix, name string) (partybot.CommandSpec, bool) {
			return k.lookupCommand(prefix, name)
		},
		serviceLookup: k.services,
		reportAsync:   k.cfg.onAsyncError,
	}
}

// commandDerivingSink publishes source events and derives command events.
type commandDerivingSink struct {
	base          partybot.EventSink
	lookupCommand func(prefix partybot.CommandPrefix, name string) (partybot.CommandSpec, bool)
	serviceLookup partybot.ServiceRegistry
	reportAsync   func(context.Context, string, error)
}

// Publish forwards one source event and conditionally derives one command event.
func (s *commandDerivingSink) Publish(ctx context.Context, event *partybot.Event) error {
	if event == nil {
		return fmt.Errorf("publish command deriving sink: nil event")
	}
	if s.base == nil {
		return fmt.Errorf("publish command deriving sink: nil base sink")
	}

	if err := s.base.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish source event %s: %w", event.Kind, err)
	}

	if event.Kind != partybot.EventKindMessageCreated || event.Message == nil {
		return nil
	}

	candidate, matched, parseErr := partybot.ParseCommandCandidate(event.Message.Text)
	if !matched {
		return nil
	}

	spec, registered := s.lookupCommand(candidate.Prefix, candidate.Name)
	if !registered {
		return nil
	}
	if parseErr != nil {
		s.replyCommandError(ctx, event, spec, parseErr)
		return nil
	}

	invocation, bindErr := partybot.BindCommand(candidate, spec, event)
	if bindErr != nil {
		s.replyCommandError(ctx, event, spec, bindErr)
		return nil
	}

	commandEvent := derivedCommandEvent(event, candidate.Prefix, invocation)
	if err := s.base.Publish(ctx, commandEvent); err != nil {
		return fmt.Errorf("publish derived command %s: %w", invocation.Name, err)
	}

	return nil
}

func (s *commandDerivingSink) replyCommandError(
	ctx context.Context,
	sourceEvent *partybot.Event,
	spec partybot.CommandSpec,
	parseErr error,
) {
	if s.serviceLookup == nil {
		s.reportAsyncError(
			ctx,
			"command error reply resolve dispatcher",
			fmt.Errorf("service lookup unavailable"),
		)
		return
	}

	dispatcher, err := partybot.ResolveAs[partybot.OutboundDispatcher](
		s.serviceLookup,
		partybot.ServiceOutboundDispatcher,
	)
	if err != nil {
		s.reportAsyncError(ctx, "command error reply resolve dispatcher", err)
		return
	}

	target, err := partybot.OutboundTargetFromEvent(sourceEvent)
	if err != nil {
		s.reportAsyncError(ctx, "command error reply derive target", err)
		return
	}

	_, err = dispatcher.SendMessage(ctx, partybot.SendMessageRequest{
		Target:           target,
		Text:             formatCommandErrorReply(spec, parseErr),
		ReplyToMessageID: sourceEvent.Message.ID,
	})
	if err != nil {
		s.reportAsyncError(ctx, "command error reply send", err)
	}
}

func (s *commandDerivingSink) reportAsyncError(ctx context.Context, scope string, err error) {
	if s.reportAsync != nil {
		s.reportAsync(ctx, scope, err)
	}
}

func derivedCommandEvent(
	sourceEvent *partybot.Event,
	prefix partybot.CommandPrefix,
	invocation partybot.CommandInvocation,
) *partybot.Event {
	kind, suffix := derivedCommandEventKind(prefix)
	message := *sourceEvent.Message
	if len(sourceEvent.Message.Entities) > 0 {
		message.Entities = append([]partybot.TextEntity(nil), sourceEvent.Message.Entities...)
	}

	return &partybot.Event{
		ID:         sourceEvent.ID + suffix,
		Kind:       kind,
		OccurredAt: sourceEvent.OccurredAt,
		Platform:   sourceEvent.Platform,
		Conversation: partybot.Conversation{
			ID:    sourceEvent.Conversation.ID,
			Type:  sourceEvent.Conversation.Type,
			Title: sourceEvent.Conversation.Title,
		},
		Actor: partybot.Actor{
			ID:          sourceEvent.Actor.ID,
			Username:    sourceEvent.Actor.Username,
			DisplayName: sourceEvent.Actor.DisplayName,
			IsBot:       sourceEvent.Actor.IsBot,
		},
		Message:  &message,
		Command:  cloneCommandInvocation(invocation),
		Metadata: cloneStringMap(sourceEvent.Metadata),
	}
}

func derivedCommandEventKind(prefix partybot.CommandPrefix) (partybot.EventKind, string) {
	switch prefix {
	case partybot.CommandPrefixSystem:
		return partybot.EventKindSystemCommandReceived, "#system-command"
	default:
		return partybot.EventKindCommandReceived, "#command"
	}
}

func formatCommandErrorReply(spec partybot.CommandSpec, parseErr error) string {
	if parseErr == nil {
		return commandUsage(spec)
	}

	return fmt.Sprintf("%s\nusage: %s", parseErr.Error(), commandUsage(spec))
}

func commandUsage(spec partybot.CommandSpec) string {
	usage := fmt.Sprintf("%s%s", spec.Prefix, normalizeCommandName(spec.Name))
	if spec.Usage == "" {
		return usage
	}

	return usage + " " + spec.Usage
}

func commandRegistryKey(prefix partybot.CommandPrefix, name string) string {
	return fmt.Sprintf("%s:%s", prefix, normalizeCommandName(name))
}

func formatCommandKey(prefix partybot.CommandPrefix, name string) string {
	return fmt.Sprintf("%s%s", prefix, normalizeCommandName(name))
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func cloneCommandInvocation(invocation partybot.CommandInvocation) *partybot.CommandInvocation {
	cloned := invocation
	if len(invocation.Tokens) > 0 {
		cloned.Tokens = append([]string(nil), invocation.Tokens...)
	}

	return &cloned
}

func cloneStringMap(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}

	cloned := make(map[string]string, len(metadata))
	for key, value := range metadata {
		cloned[key] = value
	}

	return cloned
}
