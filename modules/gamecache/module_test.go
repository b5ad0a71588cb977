package gamecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"steam-party-bot/internal/storage"
	"steam-party-bot/pkg/partybot"
)

func TestModuleOnRegister(t *testing.T) {
	tests := []struct {
		name             string
		source           partybot.GameLibrary
		services         map[string]any
		wantErr          bool
		wantErrSubstring string
	}{
		{
			name:   "registers game library service with optional logger",
			source: &stubLibrary{},
			services: map[string]any{
				partybot.ServiceLogger:             slog.Default(),
				partybot.ServiceOutboundDispatcher: &captureDispatcher{},
			},
		},
		{
			name:   "missing logger is tolerated",
			source: &stubLibrary{},
			services: map[string]any{
				partybot.ServiceOutboundDispatcher: &captureDispatcher{},
			},
		},
		{
			name:   "invalid logger type fails",
			source: &stubLibrary{},
			services: map[string]any{
				partybot.ServiceLogger:             struct{}{},
				partybot.ServiceOutboundDispatcher: &captureDispatcher{},
			},
			wantErr:          true,
			wantErrSubstring: "gamecache resolve logger",
		},
		{
			name:   "missing outbound dispatcher fails",
			source: &stubLibrary{},
			services: map[string]any{
				partybot.ServiceLogger: slog.Default(),
			},
			wantErr:          true,
			wantErrSubstring: "gamecache resolve outbound dispatcher",
		},
		{
			name: "missing upstream library fails",
			services: map[string]any{
				partybot.ServiceOutboundDispatcher: &captureDispatcher{},
			},
			wantErr:          true,
			wantErrSubstring: "missing upstream game library",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			registry := newServiceRegistryStub()
			for name, service := range testCase.services {
				if err := registry.Register(name, service); err != nil {
					t.Fatalf("register service %s failed: %v", name, err)
				}
			}

			module := New(testCase.source)
			err := module.OnRegister(context.Background(), moduleRuntimeStub{registry: registry})
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), testCase.wantErrSubstring) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstring)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			resolved, err := registry.Resolve(partybot.ServiceGameLibrary)
			if err != nil {
				t.Fatalf("resolve game library service failed: %v", err)
			}
			if resolved != module {
				t.Fatal("resolved game library service is not module instance")
			}
		})
	}
}

func TestOwnedGamesSingleFlight(t *testing.T) {
	library := &stubLibrary{
		results: map[string]partybot.OwnedGames{
			"7656119000": {Games: []partybot.Game{{AppID: 730, Name: "Counter-Strike 2"}}, Count: 1},
		},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	module := New(library)

	const waiters = 8
	results := make([]partybot.OwnedGames, waiters)
	failures := make([]error, waiters)

	var group sync.WaitGroup
	for index := 0; index < waiters; index++ {
		index := index
		group.Add(1)
		go func() {
			defer group.Done()
			results[index], failures[index] = module.OwnedGames(context.Background(), "7656119000")
		}()
	}

	<-library.started
	close(library.release)
	group.Wait()

	for index := 0; index < waiters; index++ {
		if failures[index] != nil {
			t.Fatalf("waiter %d failed: %v", index, failures[index])
		}
		if len(results[index].Games) != 1 || results[index].Games[0].AppID != 730 {
			t.Fatalf("waiter %d games = %+v", index, results[index])
		}
	}
	if calls := library.callCount(); calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", calls)
	}
}

func TestOwnedGamesTTLExpiry(t *testing.T) {
	current := time.Unix(1700000000, 0)
	library := &stubLibrary{
		results: map[string]partybot.OwnedGames{
			"7656119000": {Games: []partybot.Game{{AppID: 620, Name: "Portal 2"}}, Count: 1},
		},
	}
	module := New(library,
		WithTTL(time.Hour),
		withClock(func() time.Time { return current }),
	)

	if _, err := module.OwnedGames(context.Background(), "7656119000"); err != nil {
		t.Fatalf("initial fetch failed: %v", err)
	}
	if calls := library.callCount(); calls != 1 {
		t.Fatalf("upstream calls after fetch = %d, want 1", calls)
	}

	current = current.Add(time.Hour - time.Second)
	if _, err := module.OwnedGames(context.Background(), "7656119000"); err != nil {
		t.Fatalf("fetch before expiry failed: %v", err)
	}
	if calls := library.callCount(); calls != 1 {
		t.Fatalf("upstream calls before expiry = %d, want 1", calls)
	}

	current = current.Add(2 * time.Second)
	if _, err := module.OwnedGames(context.Background(), "7656119000"); err != nil {
		t.Fatalf("fetch after expiry failed: %v", err)
	}
	if calls := library.callCount(); calls != 2 {
		t.Fatalf("upstream calls after expiry = %d, want 2", calls)
	}
}

func TestOwnedGamesLRUEviction(t *testing.T) {
	library := &stubLibrary{
		results: map[string]partybot.OwnedGames{
			"steam-a": {Count: 1},
			"steam-b": {Count: 2},
			"steam-c": {Count: 3},
		},
	}
	module := New(library, WithMaxEntries(2))

	ctx := context.Background()
	for _, steamID := range []string{"steam-a", "steam-b"} {
		if _, err := module.OwnedGames(ctx, steamID); err != nil {
			t.Fatalf("fetch %s failed: %v", steamID, err)
		}
	}

	// Touch steam-a so steam-b is least recently used when steam-c arrives.
	if _, err := module.OwnedGames(ctx, "steam-a"); err != nil {
		t.Fatalf("refresh steam-a failed: %v", err)
	}
	if _, err := module.OwnedGames(ctx, "steam-c"); err != nil {
		t.Fatalf("fetch steam-c failed: %v", err)
	}
	if calls := library.callCount(); calls != 3 {
		t.Fatalf("upstream calls after fill = %d, want 3", calls)
	}

	if _, err := module.OwnedGames(ctx, "steam-a"); err != nil {
		t.Fatalf("cached steam-a failed: %v", err)
	}
	if calls := library.callCount(); calls != 3 {
		t.Fatalf("steam-a should remain cached, upstream calls = %d", calls)
	}

	if _, err := module.OwnedGames(ctx, "steam-b"); err != nil {
		t.Fatalf("refetch steam-b failed: %v", err)
	}
	if calls := library.callCount(); calls != 4 {
		t.Fatalf("steam-b should have been evicted, upstream calls = %d", calls)
	}
}

func TestOwnedGamesErrorsNotCached(t *testing.T) {
	library := &stubLibrary{
		results: map[string]partybot.OwnedGames{
			"7656119000": {Games: []partybot.Game{{AppID: 440, Name: "Team Fortress 2"}}, Count: 1},
		},
		errs: map[string]error{
			"7656119000": fmt.Errorf("owned games lookup: %w", partybot.ErrLookupFailed),
		},
	}
	module := New(library)

	_, err := module.OwnedGames(context.Background(), "7656119000")
	if !errors.Is(err, partybot.ErrLookupFailed) {
		t.Fatalf("error = %v, want ErrLookupFailed", err)
	}

	library.clearErrs()
	games, err := module.OwnedGames(context.Background(), "7656119000")
	if err != nil {
		t.Fatalf("retry after failure failed: %v", err)
	}
	if len(games.Games) != 1 || games.Games[0].AppID != 440 {
		t.Fatalf("retry games = %+v", games)
	}
	if calls := library.callCount(); calls != 2 {
		t.Fatalf("upstream calls = %d, want 2", calls)
	}

	if _, err := module.OwnedGames(context.Background(), ""); err == nil {
		t.Fatal("expected error for missing steam id")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create file store failed: %v", err)
	}

	current := time.Unix(1700000000, 0)
	clock := func() time.Time { return current }
	library := &stubLibrary{
		results: map[string]partybot.OwnedGames{
			"steam-stale": {Games: []partybot.Game{{AppID: 400, Name: "Portal"}}, Count: 1},
			"steam-fresh": {Games: []partybot.Game{{AppID: 570, Name: "Dota 2"}}, Count: 1},
		},
	}

	first := New(library, WithStore(store), WithTTL(time.Hour), withClock(clock))
	ctx := context.Background()
	if _, err := first.OwnedGames(ctx, "steam-stale"); err != nil {
		t.Fatalf("fetch steam-stale failed: %v", err)
	}
	current = current.Add(45 * time.Minute)
	if _, err := first.OwnedGames(ctx, "steam-fresh"); err != nil {
		t.Fatalf("fetch steam-fresh failed: %v", err)
	}
	if err := first.OnShutdown(ctx); err != nil {
		t.Fatalf("shutdown persist failed: %v", err)
	}

	// steam-stale expires at +1h, steam-fresh at +1h45m.
	current = current.Add(30 * time.Minute)

	second := New(library, WithStore(store), WithTTL(time.Hour), withClock(clock))
	restored, err := second.restore()
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored != 1 {
		t.Fatalf("restored = %d, want 1", restored)
	}

	if _, found := second.cachedOwnedGames("steam-fresh"); !found {
		t.Fatal("steam-fresh missing after restore")
	}
	if _, found := second.cachedOwnedGames("steam-stale"); found {
		t.Fatal("expired steam-stale should not survive restore")
	}
}

func TestPersistLoopWritesSnapshot(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create file store failed: %v", err)
	}

	library := &stubLibrary{
		results: map[string]partybot.OwnedGames{
			"7656119000": {Games: []partybot.Game{{AppID: 730, Name: "Counter-Strike 2"}}, Count: 1},
		},
	}
	module := New(library, WithStore(store), WithSaveInterval(10*time.Millisecond))

	ctx := context.Background()
	if err := module.OnStart(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() {
		if err := module.OnShutdown(ctx); err != nil {
			t.Fatalf("shutdown failed: %v", err)
		}
	}()

	if _, err := module.OwnedGames(ctx, "7656119000"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		var snapshot cacheSnapshot
		found, loadErr := store.Load(snapshotSection, &snapshot)
		if loadErr != nil {
			t.Fatalf("load snapshot failed: %v", loadErr)
		}
		if found && len(snapshot.Entries) == 1 && snapshot.Entries[0].SteamID == "7656119000" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("persist loop never wrote the snapshot")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFlushCommand(t *testing.T) {
	tests := []struct {
		name     string
		event    *partybot.Event
		wantErr  bool
		wantSent bool
		wantText string
	}{
		{
			name:     "flushes cache and replies with cleared count",
			event:    newFlushEvent(flushCommandName),
			wantSent: true,
			wantText: "Flushed 1 cached game lists.",
		},
		{
			name:  "ignores other system commands",
			event: newFlushEvent("other"),
		},
		{
			name: "ignores ordinary command kind",
			event: func() *partybot.Event {
				event := newFlushEvent(flushCommandName)
				event.Kind = partybot.EventKindCommandReceived
				return event
			}(),
		},
		{
			name: "missing command payload fails",
			event: func() *partybot.Event {
				event := newFlushEvent(flushCommandName)
				event.Command = nil
				return event
			}(),
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			library := &stubLibrary{
				results: map[string]partybot.OwnedGames{
					"7656119000": {Count: 1},
				},
			}
			dispatcher := &captureDispatcher{}
			module := New(library)
			module.dispatcher = dispatcher

			if _, err := module.OwnedGames(context.Background(), "7656119000"); err != nil {
				t.Fatalf("seed fetch failed: %v", err)
			}

			err := module.handleCommandEvent(context.Background(), testCase.event)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !testCase.wantSent {
				if dispatcher.sendCalls != 0 {
					t.Fatalf("unexpected reply: %+v", dispatcher.lastSend)
				}
				return
			}

			if dispatcher.sendCalls != 1 {
				t.Fatalf("send calls = %d, want 1", dispatcher.sendCalls)
			}
			if dispatcher.lastSend.Text != testCase.wantText {
				t.Fatalf("reply text = %q, want %q", dispatcher.lastSend.Text, testCase.wantText)
			}
			if dispatcher.lastSend.ReplyToMessageID != "msg-9" {
				t.Fatalf("reply to = %q, want msg-9", dispatcher.lastSend.ReplyToMessageID)
			}
			if _, found := module.cachedOwnedGames("7656119000"); found {
				t.Fatal("cache entry survived flush")
			}
		})
	}
}

func newFlushEvent(commandName string) *partybot.Event {
	return &partybot.Event{
		ID:         "evt-1",
		Kind:       partybot.EventKindSystemCommandReceived,
		OccurredAt: time.Unix(1700000000, 0),
		Platform:   partybot.PlatformTelegram,
		Conversation: partybot.Conversation{
			ID:   "chat-1",
			Type: partybot.ConversationTypeGroup,
		},
		Actor: partybot.Actor{ID: "user-1"},
		Message: &partybot.Message{
			ID:   "msg-9",
			Text: "~" + commandName,
		},
		Command: &partybot.CommandInvocation{
			Name:          commandName,
			SourceEventID: "evt-0",
			RawInput:      "~" + commandName,
		},
	}
}

type stubLibrary struct {
	mu      sync.Mutex
	calls   int
	results map[string]partybot.OwnedGames
	errs    map[string]error

	// started closes once when the first fetch begins; release gates fetch
	// completion so tests can hold concurrent callers in flight.
	started     chan struct{}
	startedOnce sync.Once
	release     chan struct{}
}

func (s *stubLibrary) OwnedGames(_ context.Context, steamID string) (partybot.OwnedGames, error) {
	if s.started != nil {
		s.startedOnce.Do(func() { close(s.started) })
	}
	if s.release != nil {
		<-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err, exists := s.errs[steamID]; exists {
		return partybot.OwnedGames{}, err
	}
	games, exists := s.results[steamID]
	if !exists {
		return partybot.OwnedGames{}, fmt.Errorf("owned games lookup %s: %w", steamID, partybot.ErrLookupFailed)
	}

	return games, nil
}

func (s *stubLibrary) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func (s *stubLibrary) clearErrs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = nil
}

type captureDispatcher struct {
	mu        sync.Mutex
	sendCalls int
	lastSend  partybot.SendMessageRequest
	sendErr   error
}

func (d *captureDispatcher) SendMessage(
	_ context.Context,
	request partybot.SendMessageRequest,
) (*partybot.OutboundMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sendCalls++
	d.lastSend = request
	if d.sendErr != nil {
		return nil, d.sendErr
	}

	return &partybot.OutboundMessage{ID: "out-1", Target: request.Target}, nil
}

func (d *captureDispatcher) EditMessage(context.Context, partybot.EditMessageRequest) error {
	return nil
}

type serviceRegistryStub struct {
	values map[string]any
}

func newServiceRegistryStub() *serviceRegistryStub {
	return &serviceRegistryStub{values: make(map[string]any)}
}

func (s *serviceRegistryStub) Register(name string, service any) error {
	if name == "" {
		return errors.New("empty service name")
	}
	if _, exists := s.values[name]; exists {
		return partybot.ErrServiceAlreadyRegistered
	}
	s.values[name] = service

	return nil
}

func (s *serviceRegistryStub) Resolve(name string) (any, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, partybot.ErrServiceNotFound
	}

	return value, nil
}

type moduleRuntimeStub struct {
	registry partybot.ServiceRegistry
}

func (s moduleRuntimeStub) Services() partybot.ServiceRegistry {
	return s.registry
}

func (moduleRuntimeStub) Subscribe(
	context.Context,
	partybot.InterestSet,
	partybot.SubscriptionSpec,
	partybot.EventHandler,
) (partybot.Subscription, error) {
	return nil, nil
}
