package gamecache

import (
	"container/list"
	"context"
	"fmt"
	"time"

	"steam-party-bot/pkg/partybot"
)

// OwnedGames returns the owned-games payload for one Steam identity, serving
// from cache when a fresh entry exists and collapsing concurrent upstream
// fetches for the same identity into one call.
func (m *Module) OwnedGames(ctx context.Context, steamID string) (partybot.OwnedGames, error) {
	if steamID == "" {
		return partybot.OwnedGames{}, fmt.Errorf("gamecache owned games: missing steam id")
	}

	if cached, found := m.cachedOwnedGames(steamID); found {
		return cached, nil
	}

	result, err, _ := m.flight.Do(steamID, func() (any, error) {
		// A waiter queued behind the winning fetch re-checks the cache so it
		// does not refetch what the winner just stored.
		if cached, found := m.cachedOwnedGames(steamID); found {
			return cached, nil
		}

		games, fetchErr := m.source.OwnedGames(ctx, steamID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		m.storeOwnedGames(steamID, games)

		return games, nil
	})
	if err != nil {
		return partybot.OwnedGames{}, fmt.Errorf("gamecache owned games %s: %w", steamID, err)
	}

	games, ok := result.(partybot.OwnedGames)
	if !ok {
		return partybot.OwnedGames{}, fmt.Errorf("gamecache owned games %s: unexpected result type %T", steamID, result)
	}

	return games, nil
}

func (m *Module) cachedOwnedGames(steamID string) (partybot.OwnedGames, bool) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ensureNotExpiredLocked(steamID, now) {
		return partybot.OwnedGames{}, false
	}
	m.touchLocked(steamID)

	return cloneOwnedGames(m.records[steamID].games), true
}

func (m *Module) storeOwnedGames(steamID string, games partybot.OwnedGames) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.upsertKeyLocked(steamID, now)
	m.records[steamID].games = cloneOwnedGames(games)
	m.trimToCapacityLocked()
	m.dirty = true
}

// invalidateAll drops every cached entry. In-flight fetches are not cancelled
// and may still store their result on completion.
func (m *Module) invalidateAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := len(m.records)
	if cleared == 0 {
		return 0
	}

	m.records = make(map[string]*cacheRecord)
	m.index = make(map[string]*list.Element)
	m.lru.Init()
	m.dirty = true

	return cleared
}

func (m *Module) upsertKeyLocked(steamID string, now time.Time) {
	if m.ensureNotExpiredLocked(steamID, now) {
		record := m.records[steamID]
		record.expiresAt = m.expiryFrom(now)
		m.touchLocked(steamID)
		return
	}

	element := m.lru.PushFront(steamID)
	m.index[steamID] = element
	m.records[steamID] = &cacheRecord{expiresAt: m.expiryFrom(now)}
}

func (m *Module) ensureNotExpiredLocked(steamID string, now time.Time) bool {
	record, exists := m.records[steamID]
	if !exists {
		return false
	}
	if m.isExpired(record, now) {
		m.deleteLocked(steamID)
		return false
	}

	return true
}

func (m *Module) trimToCapacityLocked() {
	for len(m.records) > m.maxEntries {
		back := m.lru.Back()
		if back == nil {
			break
		}
		oldestKey, ok := back.Value.(string)
		if !ok {
			m.lru.Remove(back)
			continue
		}
		m.deleteLocked(oldestKey)
	}
}

func (m *Module) touchLocked(steamID string) {
	element, exists := m.index[steamID]
	if !exists {
		return
	}
	m.lru.MoveToFront(element)
}

func (m *Module) deleteLocked(steamID string) {
	if element, exists := m.index[steamID]; exists {
		m.lru.Remove(element)
		delete(m.index, steamID)
	}
	delete(m.records, steamID)
}

func (m *Module) isExpired(record *cacheRecord, now time.Time) bool {
	if record == nil {
		return true
	}
	if record.expiresAt.IsZero() {
		return false
	}

	return !now.Before(record.expiresAt)
}

func (m *Module) expiryFrom(now time.Time) time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}

	return now.Add(m.ttl)
}

func (m *Module) now() time.Time {
	return m.clock().UTC()
}

func cloneOwnedGames(games partybot.OwnedGames) partybot.OwnedGames {
	cloned := partybot.OwnedGames{
		Count: games.Count,
	}
	if len(games.Games) > 0 {
		cloned.Games = append([]partybot.Game(nil), games.Games...)
	}

	return cloned
}
