package gamecache

import (
	"fmt"
	"time"

	"steam-party-bot/pkg/partybot"
)

const snapshotSection = "gamecache"

type cacheSnapshot struct {
	// Entries lists cached identities from most to least recently used.
	Entries []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	SteamID   string         `json:"steam_id"`
	Games     []snapshotGame `json:"games"`
	Count     int            `json:"count"`
	ExpiresAt time.Time      `json:"expires_at"`
}

type snapshotGame struct {
	AppID int64  `json:"app_id"`
	Name  string `json:"name"`
}

func (m *Module) persistIfDirty() error {
	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return nil
	}
	snapshot := m.snapshotLocked()
	m.dirty = false
	m.mu.Unlock()

	if err := m.store.Save(snapshotSection, snapshot); err != nil {
		m.mu.Lock()
		m.dirty = true
		m.mu.Unlock()

		return fmt.Errorf("persist game cache snapshot: %w", err)
	}

	return nil
}

func (m *Module) snapshotLocked() cacheSnapshot {
	snapshot := cacheSnapshot{
		Entries: make([]snapshotEntry, 0, len(m.records)),
	}

	for element := m.lru.Front(); element != nil; element = element.Next() {
		steamID, ok := element.Value.(string)
		if !ok {
			continue
		}
		record, exists := m.records[steamID]
		if !exists {
			continue
		}

		entry := snapshotEntry{
			SteamID:   steamID,
			Games:     make([]snapshotGame, 0, len(record.games.Games)),
			Count:     record.games.Count,
			ExpiresAt: record.expiresAt,
		}
		for _, game := range record.games.Games {
			entry.Games = append(entry.Games, snapshotGame{AppID: game.AppID, Name: game.Name})
		}
		snapshot.Entries = append(snapshot.Entries, entry)
	}

	return snapshot
}

func (m *Module) restore() (int, error) {
	var snapshot cacheSnapshot

	found, err := m.store.Load(snapshotSection, &snapshot)
	if err != nil {
		return 0, fmt.Errorf("load game cache snapshot: %w", err)
	}
	if !found {
		return 0, nil
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Walk the snapshot from least to most recently used so the rebuilt list
	// ends up in the recorded order.
	restored := 0
	for index := len(snapshot.Entries) - 1; index >= 0; index-- {
		entry := snapshot.Entries[index]
		if entry.SteamID == "" {
			continue
		}
		if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
			continue
		}

		games := partybot.OwnedGames{
			Games: make([]partybot.Game, 0, len(entry.Games)),
			Count: entry.Count,
		}
		for _, game := range entry.Games {
			games.Games = append(games.Games, partybot.Game{AppID: game.AppID, Name: game.Name})
		}

		element := m.lru.PushFront(entry.SteamID)
		m.index[entry.SteamID] = element
		m.records[entry.SteamID] = &cacheRecord{
			games:     games,
			expiresAt: entry.ExpiresAt,
		}
		restored++
	}
	m.trimToCapacityLocked()

	return restored, nil
}
