package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"steam-party-bot/pkg/partybot"

	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
)

// UserDirectory indexes user identities observed in inbound updates.
//
// It backs handle and display-name resolution without extra RPC round trips
// for users the bot has already seen.
type UserDirectory struct {
	mu           sync.RWMutex
	idByUsername map[string]string
	nameByID     map[string]string
}

// NewUserDirectory creates an empty, concurrency-safe user directory.
func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		idByUsername: make(map[string]string),
		nameByID:     make(map[string]string),
	}
}

// RememberUsers ingests user entities attached to one gotd update envelope.
func (d *UserDirectory) RememberUsers(users map[int64]*tg.User) {
	if d == nil || len(users) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for userID, user := range users {
		if user == nil {
			continue
		}
		d.rememberUserLocked(userID, user)
	}
}

func (d *UserDirectory) rememberUserLocked(userID int64, user *tg.User) {
	id := strconv.FormatInt(userID, 10)

	username, _ := user.GetUsername()
	if username != "" {
		d.idByUsername[strings.ToLower(username)] = id
	}

	firstName, _ := user.GetFirstName()
	lastName, _ := user.GetLastName()
	displayName := strings.TrimSpace(firstName + " " + lastName)
	if displayName == "" {
		displayName = username
	}
	if displayName != "" {
		d.nameByID[id] = displayName
	}
}

func (d *UserDirectory) lookupHandle(handle string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.idByUsername[strings.ToLower(handle)]
	return id, ok
}

func (d *UserDirectory) lookupName(userID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	name, ok := d.nameByID[userID]
	return name, ok
}

type resolverRPC interface {
	ResolveUsername(ctx context.Context, username string) (*tg.ContactsResolvedPeer, error)
}

type gotdResolverRPC struct {
	raw *tg.Client
}

func (r gotdResolverRPC) ResolveUsername(ctx context.Context, username string) (*tg.ContactsResolvedPeer, error) {
	resolved, err := r.raw.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		return nil, fmt.Errorf("contacts resolve username: %w", err)
	}

	return resolved, nil
}

// UserResolver resolves Telegram handles and display names for membership commands.
//
// Directory hits avoid RPC; misses fall through to contacts.resolveUsername.
type UserResolver struct {
	directory *UserDirectory
	telegram  resolverRPC
}

// NewUserResolver creates a resolver backed by gotd client APIs.
func NewUserResolver(client *gotdtelegram.Client, directory *UserDirectory) (*UserResolver, error) {
	if client == nil {
		return nil, fmt.Errorf("new telegram user resolver: nil client")
	}

	return newUserResolverWithRPC(gotdResolverRPC{raw: client.API()}, directory)
}

func newUserResolverWithRPC(rpc resolverRPC, directory *UserDirectory) (*UserResolver, error) {
	if rpc == nil {
		return nil, fmt.Errorf("new telegram user resolver: nil rpc adapter")
	}
	if directory == nil {
		return nil, fmt.Errorf("new telegram user resolver: nil directory")
	}

	return &UserResolver{
		directory: directory,
		telegram:  rpc,
	}, nil
}

var _ partybot.UserResolver = (*UserResolver)(nil)

// ResolveHandle maps one handle (without the @) to a Telegram user ID.
func (r *UserResolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if trimmed == "" {
		return "", fmt.Errorf("resolve handle: empty handle")
	}

	if id, ok := r.directory.lookupHandle(trimmed); ok {
		return id, nil
	}

	resolved, err := r.telegram.ResolveUsername(ctx, trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve handle %s: %w", trimmed, err)
	}
	if resolved == nil {
		return "", fmt.Errorf("resolve handle %s: empty response", trimmed)
	}

	r.directory.RememberUsers(indexGotdUsers(resolved.Users))

	if id, ok := r.directory.lookupHandle(trimmed); ok {
		return id, nil
	}

	return "", fmt.Errorf("resolve handle %s: not found", trimmed)
}

// DisplayName returns a human-readable name for one Telegram user ID.
func (r *UserResolver) DisplayName(_ context.Context, userID string) (string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", fmt.Errorf("display name: empty user id")
	}

	if name, ok := r.directory.lookupName(trimmed); ok {
		return name, nil
	}

	return "", fmt.Errorf("display name for %s: unknown user", trimmed)
}
