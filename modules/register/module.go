package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"steam-party-bot/pkg/partybot"
)

const (
	startCommandName      = "start"
	registerCommandName   = "register"
	unregisterCommandName = "unregister"
	myGamesCommandName    = "mygames"
)

// Option mutates register module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// Module handles Steam identity registration and the owned-games listing.
type Module struct {
	logger        *slog.Logger
	dispatcher    partybot.OutboundDispatcher
	registrations partybot.RegistrationStore
	library       partybot.GameLibrary
}

// New creates a register module.
func New(options ...Option) *Module {
	module := &Module{
		logger: slog.Default(),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "register"
}

// Spec declares the registration commands.
func (m *Module) Spec() partybot.ModuleSpec {
	return partybot.ModuleSpec{
		Handlers: []partybot.ModuleHandler{
			{
				Capability: partybot.Capability{
					Name:        "register-command-handler",
					Description: "handles Steam identity registration commands",
					Interest: partybot.InterestSet{
						Kinds:          []partybot.EventKind{partybot.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames: []string{
							startCommandName,
							registerCommandName,
							unregisterCommandName,
							myGamesCommandName,
						},
					},
					RequiredServices: []string{
						partybot.ServiceOutboundDispatcher,
						partybot.ServiceRegistrationStore,
						partybot.ServiceGameLibrary,
					},
				},
				Subscription: partybot.NewDefaultSubscriptionSpec("register-command-handler"),
				Handler:      m.handleCommandEvent,
			},
		},
		Commands: []partybot.CommandSpec{
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        startCommandName,
				Description: "greet and confirm the bot is alive",
			},
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        registerCommandName,
				Usage:       "<Your Steam Numerical ID>",
				Description: "register your Steam numerical ID",
			},
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        unregisterCommandName,
				Description: "remove your registered Steam ID",
			},
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        myGamesCommandName,
				Description: "list the games your registered Steam account owns",
			},
		},
	}
}

// OnRegister resolves the services registration commands depend on.
func (m *Module) OnRegister(_ context.Context, runtime partybot.ModuleRuntime) error {
	logger, err := partybot.ResolveAs[*slog.Logger](runtime.Services(), partybot.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, partybot.ErrServiceNotFound):
	default:
		return fmt.Errorf("register resolve logger: %w", err)
	}

	dispatcher, err := partybot.ResolveAs[partybot.OutboundDispatcher](
		runtime.Services(),
		partybot.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("register resolve outbound dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

	registrations, err := partybot.ResolveAs[partybot.RegistrationStore](
		runtime.Services(),
		partybot.ServiceRegistrationStore,
	)
	if err != nil {
		return fmt.Errorf("register resolve registration store: %w", err)
	}
	m.registrations = registrations

	library, err := partybot.ResolveAs[partybot.GameLibrary](
		runtime.Services(),
		partybot.ServiceGameLibrary,
	)
	if err != nil {
		return fmt.Errorf("register resolve game library: %w", err)
	}
	m.library = library

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx,
		"register module started",
		"module", m.Name(),
	)

	return nil
}

// OnShutdown completes the module lifecycle.
func (m *Module) OnShutdown(ctx context.Context) error {
	m.logger.InfoContext(ctx,
		"register module shutdown",
		"module", m.Name(),
	)

	return nil
}

var (
	_ partybot.Module          = (*Module)(nil)
	_ partybot.ModuleRegistrar = (*Module)(nil)
)
