package gamecache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"steam-party-bot/internal/storage"
	"steam-party-bot/pkg/partybot"
)

const (
	defaultMaxEntries   = 2048
	defaultTTL          = 72 * time.Hour
	defaultSaveInterval = 10 * time.Minute
)

const flushCommandName = "flushgames"

// Option mutates gamecache module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(module *Module) {
		if logger != nil {
			module.logger = logger
		}
	}
}

// WithMaxEntries sets the in-memory cache capacity.
func WithMaxEntries(maxEntries int) Option {
	return func(module *Module) {
		if maxEntries > 0 {
			module.maxEntries = maxEntries
		}
	}
}

// WithTTL sets how long a cached owned-games result can be served.
func WithTTL(ttl time.Duration) Option {
	return func(module *Module) {
		if ttl > 0 {
			module.ttl = ttl
		}
	}
}

// WithStore enables snapshot persistence through a file store.
func WithStore(store *storage.FileStore) Option {
	return func(module *Module) {
		module.store = store
	}
}

// WithSaveInterval sets how often dirty cache state is persisted.
func WithSaveInterval(interval time.Duration) Option {
	return func(module *Module) {
		if interval > 0 {
			module.saveInterval = interval
		}
	}
}

// Module caches owned-games lookups in front of a slow upstream library.
//
// Concurrent lookups for the same uncached Steam identity collapse into one
// upstream fetch; lookup failures are returned to every waiter and never
// cached.
type Module struct {
	logger       *slog.Logger
	dispatcher   partybot.OutboundDispatcher
	source       partybot.GameLibrary
	store        *storage.FileStore
	maxEntries   int
	ttl          time.Duration
	saveInterval time.Duration
	clock        func() time.Time

	flight singleflight.Group

	mu      sync.Mutex
	records map[string]*cacheRecord
	lru     *list.List
	index   map[string]*list.Element
	dirty   bool

	persistStop chan struct{}
	persistDone chan struct{}
}

type cacheRecord struct {
	games     partybot.OwnedGames
	expiresAt time.Time
}

// New creates a gamecache module wrapping the given upstream library.
func New(source partybot.GameLibrary, options ...Option) *Module {
	module := &Module{
		logger:       slog.Default(),
		source:       source,
		maxEntries:   defaultMaxEntries,
		ttl:          defaultTTL,
		saveInterval: defaultSaveInterval,
		clock:        time.Now,
		records:      make(map[string]*cacheRecord),
		lru:          list.New(),
		index:        make(map[string]*list.Element),
	}
	for _, option := range options {
		option(module)
	}

	return module
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "gamecache"
}

// Spec declares the cache flush system command.
func (m *Module) Spec() partybot.ModuleSpec {
	return partybot.ModuleSpec{
		Handlers: []partybot.ModuleHandler{
			{
				Capability: partybot.Capability{
					Name:        "gamecache-flush-command-handler",
					Description: "handles the ~flushgames cache invalidation command",
					Interest: partybot.InterestSet{
						Kinds:          []partybot.EventKind{partybot.EventKindSystemCommandReceived},
						RequireCommand: true,
						CommandNames:   []string{flushCommandName},
					},
					RequiredServices: []string{partybot.ServiceOutboundDispatcher},
				},
				Subscription: partybot.NewDefaultSubscriptionSpec("gamecache-command-handler"),
				Handler:      m.handleCommandEvent,
			},
		},
		Commands: []partybot.CommandSpec{
			{
				Prefix:      partybot.CommandPrefixSystem,
				Name:        flushCommandName,
				Description: "clear every cached owned-games list",
			},
		},
	}
}

// OnRegister resolves dependencies and registers this module as the game library.
func (m *Module) OnRegister(_ context.Context, runtime partybot.ModuleRuntime) error {
	if m.source == nil {
		return fmt.Errorf("gamecache register: missing upstream game library")
	}

	logger, err := partybot.ResolveAs[*slog.Logger](runtime.Services(), partybot.ServiceLogger)
	switch {
	case err == nil:
		m.logger = logger
	case errors.Is(err, partybot.ErrServiceNotFound):
	default:
		return fmt.Errorf("gamecache resolve logger: %w", err)
	}

	dispatcher, err := partybot.ResolveAs[partybot.OutboundDispatcher](
		runtime.Services(),
		partybot.ServiceOutboundDispatcher,
	)
	if err != nil {
		return fmt.Errorf("gamecache resolve outbound dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

	if err := runtime.Services().Register(partybot.ServiceGameLibrary, m); err != nil {
		return fmt.Errorf("gamecache register service %s: %w", partybot.ServiceGameLibrary, err)
	}

	return nil
}

// OnStart restores the persisted snapshot and starts the persist loop.
func (m *Module) OnStart(ctx context.Context) error {
	if m.store != nil {
		restored, err := m.restore()
		if err != nil {
			m.logger.WarnContext(ctx,
				"gamecache snapshot restore failed",
				"module", m.Name(),
				"error", err,
			)
		} else if restored > 0 {
			m.logger.InfoContext(ctx,
				"gamecache snapshot restored",
				"module", m.Name(),
				"entries", restored,
			)
		}

		if m.saveInterval > 0 {
			m.persistStop = make(chan struct{})
			m.persistDone = make(chan struct{})
			go m.persistLoop()
		}
	}

	m.logger.InfoContext(ctx,
		"gamecache module started",
		"module", m.Name(),
		"max_entries", m.maxEntries,
		"ttl", m.ttl,
		"save_interval", m.saveInterval,
	)

	return nil
}

// OnShutdown stops the persist loop and flushes dirty cache state.
func (m *Module) OnShutdown(ctx context.Context) error {
	if m.persistStop != nil {
		close(m.persistStop)
		<-m.persistDone
		m.persistStop = nil
		m.persistDone = nil
	}

	if m.store != nil {
		if err := m.persistIfDirty(); err != nil {
			return fmt.Errorf("gamecache shutdown persist: %w", err)
		}
	}

	m.mu.Lock()
	recordCount := len(m.records)
	m.mu.Unlock()

	m.logger.InfoContext(ctx,
		"gamecache module shutdown",
		"module", m.Name(),
		"entries", recordCount,
	)

	return nil
}

func (m *Module) persistLoop() {
	defer close(m.persistDone)

	ticker := time.NewTicker(m.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.persistStop:
			return
		case <-ticker.C:
			if err := m.persistIfDirty(); err != nil {
				m.logger.Warn(
					"gamecache periodic persist failed",
					"module", m.Name(),
					"error", err,
				)
			}
		}
	}
}

func withClock(clock func() time.Time) Option {
	return func(module *Module) {
		if clock != nil {
			module.clock = clock
		}
	}
}

var (
	_ partybot.Module          = (*Module)(nil)
	_ partybot.ModuleRegistrar = (*Module)(nil)
	_ partybot.GameLibrary     = (*Module)(nil)
)
