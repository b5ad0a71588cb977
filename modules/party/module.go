package party

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"steam-party-bot/pkg/partybot"
)

const defaultIdleTimeout = 10 * time.Minute

const (
	partyCommandName   = "party"
	joinCommandName    = "join"
	leaveCommandName   = "leave"
	addCommandName     = "add"
	kickCommandName    = "kick"
	membersCommandName = "members"
	gamesCommandName   = "games"
	stopCommandName    = "stop"
)

// Option mutates party module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// WithIdleTimeout sets how long a session survives without an accepted command.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(module *Module) {
		if timeout > 0 {
			module.idleTimeout = timeout
		}
	}
}

// Module runs one ephemeral party session per chat.
//
// Each session is a goroutine that handles its commands serially in arrival
// order; sessions in different chats run independently.
type Module struct {
	logger        *slog.Logger
	dispatcher    partybot.OutboundDispatcher
	registrations partybot.RegistrationStore
	library       partybot.GameLibrary
	resolver      partybot.UserResolver
	idleTimeout   time.Duration

	sessions *sessionManager

	runCtx    context.Context
	runCancel context.CancelFunc
	running   sync.WaitGroup
}

// New creates a party module.
func New(options ...Option) *Module {
	runCtx, runCancel := context.WithCancel(context.Background())
	module := &Module{
		logger:      slog.Default(),
		idleTimeout: defaultIdleTimeout,
		sessions:    newSessionManager(),
		runCtx:      runCtx,
		runCancel:   runCancel,
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "party"
}

// Spec declares the party session commands.
func (m *Module) Spec() partybot.ModuleSpec {
	return partybot.ModuleSpec{
		Handlers: []partybot.ModuleHandler{
			{
				Capability: partybot.Capability{
					Name:        "party-command-handler",
					Description: "runs per-chat party sessions and routes session commands",
					Interest: partybot.InterestSet{
						Kinds:          []partybot.EventKind{partybot.EventKindCommandReceived},
						RequireCommand: true,
						CommandNames: []string{
							partyCommandName,
							joinCommandName,
							leaveCommandName,
							addCommandName,
							kickCommandName,
							membersCommandName,
							gamesCommandName,
							stopCommandName,
						},
					},
					RequiredServices: []string{
						partybot.ServiceOutboundDispatcher,
						partybot.ServiceRegistrationStore,
						partybot.ServiceGameLibrary,
						partybot.ServiceUserResolver,
					},
				},
				// A single worker keeps session commands in arrival order;
				// extra workers would race commands for the same chat.
				Subscription: partybot.SubscriptionSpec{
					Name:    "party-command-handler",
					Workers: 1,
				},
				Handler: m.handleCommandEvent,
			},
		},
		Commands: []partybot.CommandSpec{
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        partyCommandName,
				Description: "start a party in this chat",
			},
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        joinCommandName,
				Description: "join the running party",
			},
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        leaveCommandName,
				Description: "leave the running party",
			},
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        addCommandName,
				Usage:       "<at's of users>",
				Description: "add people to the party",
			},
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        kickCommandName,
				Usage:       "<at's of users>",
				Description: "kick people from the party",
			},
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        membersCommandName,
				Description: "show current party members",
			},
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        gamesCommandName,
				Usage:       "<Number of difference tolerance>",
				Description: "find common games among party members",
			},
			{
				Prefix:      partybot.CommandPrefixOrdinary,
				Name:        stopCommandName,
				Description: "stop the running party",
			},
		},
	}
}

// OnRegister resolves the services party sessions depend on.
func (m *Module) OnRegister(_ context.Context, runtime partybot.ModuleRuntime) error {
	logger, err := partybot.ResolveAs[*slog.Logger](runtime.Services(), partybot.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, partybot.ErrServiceNotFound):
	default:
		return fmt.Errorf("party resolve logger: %w", err)
	}

	dispatcher, err := partybot.ResolveAs[partybot.OutboundDispatcher](
		runtime.Services(),
		partybot.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("party resolve outbound dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

	registrations, err := partybot.ResolveAs[partybot.RegistrationStore](
		runtime.Services(),
		partybot.ServiceRegistrationStore,
	)
	if err != nil {
		return fmt.Errorf("party resolve registration store: %w", err)
	}
	m.registrations = registrations

	library, err := partybot.ResolveAs[partybot.GameLibrary](
		runtime.Services(),
		partybot.ServiceGameLibrary,
	)
	if err != nil {
		return fmt.Errorf("party resolve game library: %w", err)
	}
	m.library = library

	resolver, err := partybot.ResolveAs[partybot.UserResolver](
		runtime.Services(),
		partybot.ServiceUserResolver,
	)
	if err != nil {
		return fmt.Errorf("party resolve user resolver: %w", err)
	}
	m.resolver = resolver

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(ctx context.Context) error {
	m.logger.InfoContext(ctx,
		"party module started",
		"module", m.Name(),
		"idle_timeout", m.idleTimeout,
	)

	return nil
}

// OnShutdown ends every live session and waits for their goroutines.
func (m *Module) OnShutdown(ctx context.Context) error {
	m.runCancel()
	m.running.Wait()

	m.logger.InfoContext(ctx,
		"party module shutdown",
		"module", m.Name(),
	)

	return nil
}

func (m *Module) handleCommandEvent(ctx context.Context, event *partybot.Event) error {
	if event == nil {
		return fmt.Errorf("party handle command: nil event")
	}
	if event.Kind != partybot.EventKindCommandReceived {
		return nil
	}
	if event.Command == nil {
		return fmt.Errorf("party handle command: missing command payload")
	}

	if event.Command.Name == partyCommandName {
		return m.handleStartParty(ctx, event)
	}

	// Session commands outside a running party are ignored.
	session, exists := m.sessions.lookup(event.Conversation.ID)
	if !exists {
		return nil
	}
	session.enqueue(ctx, event)

	return nil
}

func (m *Module) handleStartParty(ctx context.Context, event *partybot.Event) error {
	target, err := partybot.OutboundTargetFromEvent(event)
	if err != nil {
		return fmt.Errorf("%s command derive outbound target: %w", partyCommandName, err)
	}

	session := newSession(m, event.Conversation)
	if err := m.sessions.add(session); err != nil {
		if errors.Is(err, partybot.ErrPartyAlreadyActive) {
			return m.reply(ctx, event, "This chat already has an running party!")
		}

		return fmt.Errorf("%s command track session: %w", partyCommandName, err)
	}

	intro, err := m.dispatcher.SendMessage(ctx, partybot.SendMessageRequest{
		Target: target,
		Text:   partyIntroText,
	})
	if err != nil {
		m.sessions.remove(event.Conversation.ID, session)
		return fmt.Errorf("%s command announce party: %w", partyCommandName, err)
	}
	session.introMessageID = intro.ID

	m.running.Add(1)
	go func() {
		defer m.running.Done()
		session.run(m.runCtx)
	}()

	m.logger.InfoContext(ctx,
		"party session started",
		"module", m.Name(),
		"conversation_id", event.Conversation.ID,
		"started_by", event.Actor.ID,
	)

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

var (
	_ partybot.Module          = (*Module)(nil)
	_ partybot.ModuleRegistrar = (*Module)(nil)
)
