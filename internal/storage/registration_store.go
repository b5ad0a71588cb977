package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"steam-party-bot/pkg/partybot"
)

const registrationSection = "registrations"

// RegistrationStore is the file-backed participant-to-Steam-identity mapping.
//
// The full map lives in memory; every mutation persists the whole section.
type RegistrationStore struct {
	store  *FileStore
	logger *slog.Logger

	mu            sync.RWMutex
	registrations map[string]string
}

// NewRegistrationStore loads persisted registrations and returns the store.
func NewRegistrationStore(store *FileStore, logger *slog.Logger) (*RegistrationStore, error) {
	if store == nil {
		return nil, fmt.Errorf("new registration store: nil file store")
	}
	if logger == nil {
		logger = slog.Default()
	}

	registrations := make(map[string]string)
	found, err := store.Load(registrationSection, &registrations)
	if err != nil {
		return nil, fmt.Errorf("new registration store: %w", err)
	}
	if found {
		logger.Info("loaded registrations", "count", len(registrations))
	}

	return &RegistrationStore{
		store:         store,
		logger:        logger,
		registrations: registrations,
	}, nil
}

// Lookup returns the Steam identity for one participant.
func (s *RegistrationStore) Lookup(ctx context.Context, userID string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("lookup registration %s: %w", userID, err)
	}
	if userID == "" {
		return "", false, fmt.Errorf("lookup registration: empty user id")
	}

	s.mu.RLock()
	steamID, found := s.registrations[userID]
	s.mu.RUnlock()

	return steamID, found, nil
}

// Save persists one participant-to-identity mapping, replacing any previous one.
func (s *RegistrationStore) Save(ctx context.Context, userID string, steamID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save registration %s: %w", userID, err)
	}
	if userID == "" {
		return fmt.Errorf("save registration: empty user id")
	}
	if steamID == "" {
		return fmt.Errorf("save registration %s: empty steam id", userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.registrations[userID]
	s.registrations[userID] = steamID
	if err := s.persistLocked(); err != nil {
		if existed {
			s.registrations[userID] = previous
		} else {
			delete(s.registrations, userID)
		}
		return fmt.Errorf("save registration %s: %w", userID, err)
	}

	return nil
}

// Delete removes one mapping. removed is false when none existed.
func (s *RegistrationStore) Delete(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("delete registration %s: %w", userID, err)
	}
	if userID == "" {
		return false, fmt.Errorf("delete registration: empty user id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.registrations[userID]
	if !existed {
		return false, nil
	}
	delete(s.registrations, userID)
	if err := s.persistLocked(); err != nil {
		s.registrations[userID] = previous
		return false, fmt.Errorf("delete registration %s: %w", userID, err)
	}

	return true, nil
}

// persistLocked writes the full registration map. Callers hold s.mu.
func (s *RegistrationStore) persistLocked() error {
	snapshot := make(map[string]string, len(s.registrations))
	for userID, steamID := range s.registrations {
		snapshot[userID] = steamID
	}

	return s.store.Save(registrationSection, snapshot)
}

var _ partybot.RegistrationStore = (*RegistrationStore)(nil)
