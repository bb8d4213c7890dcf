/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package library

import (
	"sync"
	"time"
)

/*
MemDatabase is a concurrency-safe in-memory Database, the default
collaborator wired by cmd/broadcastd when no external catalog store is
configured. Real deployments swap it for a persistent implementation;
Database is a plain interface for exactly that reason.
*/
type MemDatabase struct {
	mu sync.Mutex

	nextMediaID    uint32
	nextPlaylistID uint32

	media     map[uint32]MediaItem
	playlists map[uint32]PlaylistItem
}

/*
NewMemDatabase returns an empty MemDatabase.
*/
func NewMemDatabase() *MemDatabase {
	return &MemDatabase{
		media:     make(map[uint32]MediaItem),
		playlists: make(map[uint32]PlaylistItem),
	}
}

func (d *MemDatabase) MediaAdd(item MediaItem) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextMediaID++
	item.ID = d.nextMediaID
	d.media[item.ID] = item
	return item.ID, nil
}

func (d *MemDatabase) MediaUpdate(item MediaItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.media[item.ID] = item
	return nil
}

func (d *MemDatabase) PlaylistAdd(item PlaylistItem) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextPlaylistID++
	item.ID = d.nextPlaylistID
	d.playlists[item.ID] = item
	return item.ID, nil
}

func (d *MemDatabase) PlaylistUpdate(item PlaylistItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.playlists[item.ID] = item
	return nil
}

// PurgeCruft removes nothing: MemDatabase keeps no per-row scan
// timestamp, so it has no cruft to identify. A persistent Database
// backed by a real timestamp column would delete rows last touched
// before start.
func (d *MemDatabase) PurgeCruft(start time.Time) error { return nil }

func (d *MemDatabase) PurgeAllTables() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.media = make(map[uint32]MediaItem)
	d.playlists = make(map[uint32]PlaylistItem)
	d.nextMediaID = 0
	d.nextPlaylistID = 0
	return nil
}

func (d *MemDatabase) PostScanHook() error { return nil }

func (d *MemDatabase) ClearQueue() error { return nil }

// MediaCount reports how many media rows are stored, for /metrics or
// diagnostics endpoints.
func (d *MemDatabase) MediaCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.media)
}

// MediaTitleArtist looks up a media row's title and artist by ID, for
// use as a broadcast.QueueItemLookupFunc.
func (d *MemDatabase) MediaTitleArtist(id uint32) (title, artist string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.media[id]
	if !ok {
		return "", "", false
	}
	return item.Title, item.Artist, true
}
