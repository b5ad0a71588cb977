package help

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"steam-party-bot/pkg/partybot"
)

const helpCommandName = "help"

// Module replies with command reference text when it receives a /help command.
type Module struct {
	dispatcher     partybot.OutboundDispatcher
	commandCatalog partybot.CommandCatalog
}

// New creates a help module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "help"
}

// Spec declares interest in ordinary help command events.
func (m *Module) Spec() partybot.ModuleSpec {
	return partybot.ModuleSpec{
		Handlers: []partybot.ModuleHandler{
			{
				Capability: partybot.Capability{
					Name:        "help-command-handler",
					Description: "renders registered command help for /help",
					Interest: partybot.InterestSet{
						Kinds:          []partybot.EventKind{partybot.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames:   []string{helpCommandName},
					},
					RequiredServices: []string{
						partybot.ServiceOutboundDispatcher,
						partybot.ServiceCommandCatalog,
					},
				},
				Subscription: partybot.NewDefaultSubscriptionSpec("help-commands"),
				Handler:      m.handleCommand,
			},
		},
		Commands: []partybot.CommandSpec{
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        helpCommandName,
				Description: "show all available commands",
			},
		},
	}
}

// OnRegister resolves dependencies required by this module.
func (m *Module) OnRegister(_ context.Context, runtime partybot.ModuleRuntime) error {
	dispatcher, err := partybot.ResolveAs[partybot.OutboundDispatcher](
		runtime.Services(),
		partybot.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("help resolve outbound dispatcher: %w", err)
	}
	commandCatalog, err := partybot.ResolveAs[partybot.CommandCatalog](
		runtime.Services(),
		partybot.ServiceCommandCatalog,
	)
	if err != nil {
		return fmt.Errorf("help resolve command catalog: %w", err)
	}

	m.dispatcher = dispatcher
	m.commandCatalog = commandCatalog

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleCommand(ctx context.Context, event *partybot.Event) error {
	if event == nil || event.Command == nil {
		return nil
	}
	if event.Kind != partybot.EventKindCommandReceived {
		return nil
	}
	if event.Command.Name != helpCommandName {
		return nil
	}
	if m.dispatcher == nil {
		return fmt.Errorf("help handle command: outbound dispatcher not configured")
	}
	if m.commandCatalog == nil {
		return fmt.Errorf("help handle command: command catalog not configured")
	}

	commands, err := m.commandCatalog.ListCommands(ctx)
	if err != nil {
		return fmt.Errorf("help list commands: %w", err)
	}
	body := renderHelp(commands)

	target, err := partybot.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("help derive outbound target: %w", err)
	}

	request := partybot.SendMessageRequest{
		Target: target,
		Text:   body,
	}
	if event.Message != nil {
		request.ReplyToMessageID = event.Message.ID
	}
	if _, err := m.dispatcher.SendMessage(ctx, request); err != nil {
		return fmt.Errorf("help send help message: %w", err)
	}

	return nil
}

func renderHelp(commands []partybot.CommandCatalogEntry) string {
	if len(commands) == 0 {
		return "Available commands:\n(none)"
	}

	sorted := append([]partybot.CommandCatalogEntry(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool {
		left := commandLabel(sorted[i].Spec)
		right := commandLabel(sorted[j].Spec)
		if left == right {
			return sorted[i].ModuleName < sorted[j].ModuleName
		}
		return left < right
	})

	lines := make([]string, 0, len(sorted)*4+1)
	lines = append(lines, "Available commands:\n")
	for index, command := range sorted {
		if index > 0 {
			lines = append(lines, "")
		}
		label := commandLabel(command.Spec)
		usage := strings.TrimSpace(command.Spec.Usage)
		description := strings.TrimSpace(command.Spec.Description)
		moduleName := strings.TrimSpace(command.ModuleName)
		if moduleName == "" {
			moduleName = "unknown"
		}

		lines = append(lines, label)
		if usage != "" {
			lines = append(lines, fmt.Sprintf("usage: %s %s", label, usage))
		}
		if description != "" {
			lines = append(lines, description)
		}
		lines = append(lines, fmt.Sprintf("(%s)", moduleName))
	}

	return strings.Join(lines, "\n")
}

func commandLabel(spec partybot.CommandSpec) string {
	return fmt.Sprintf("%s%s", spec.Prefix, strings.ToLower(strings.TrimSpace(spec.Name)))
}

var (
	_ partybot.Module          = (*Module)(nil)
	_ partybot.ModuleRegistrar = (*Module)(nil)
)
