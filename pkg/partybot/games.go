package partybot

import "context"

// Game is one owned catalog item.
type Game struct {
	// AppID is the Steam application identifier.
	AppID int64
	// Name is the catalog display name.
	Name string
}

// OwnedGames is the owned-items payload for one Steam identity.
type OwnedGames struct {
	// Games lists owned items with display metadata.
	Games []Game
	// Count is the catalog-reported total, which may exceed len(Games).
	Count int
}

// GameLibrary resolves owned games for a Steam identity.
//
// Implementations must treat the upstream catalog as slow, rate limited, and
// occasionally failing; a private profile surfaces as ErrLookupFailed.
type GameLibrary interface {
	// OwnedGames returns the owned-games payload for one Steam identity.
	OwnedGames(ctx context.Context, steamID string) (OwnedGames, error)
}

// RegistrationStore maps chat participants to their Steam identities.
//
// The store is read-mostly from module code; registration flows mutate it.
// Implementations must be safe for concurrent use.
type RegistrationStore interface {
	// Lookup returns the Steam identity for one participant.
	// found is false when the participant never registered.
	Lookup(ctx context.Context, userID string) (steamID string, found bool, err error)
	// Save persists one participant-to-identity mapping, replacing any previous one.
	Save(ctx context.Context, userID string, steamID string) error
	// Delete removes one mapping. removed is false when none existed.
	Delete(ctx context.Context, userID string) (removed bool, err error)
}

// UserResolver resolves platform user references for membership commands.
type UserResolver interface {
	// ResolveHandle maps one "@handle" (without the @) to a participant ID.
	ResolveHandle(ctx context.Context, handle string) (userID string, err error)
	// DisplayName returns a human-readable name for one participant ID.
	DisplayName(ctx context.Context, userID string) (string, error)
}
