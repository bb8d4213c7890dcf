/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shoutstream/shoutstream/library"
)

type fakeDatabase struct {
	mu    sync.Mutex
	saved []library.MediaItem
}

func (d *fakeDatabase) MediaAdd(item library.MediaItem) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saved = append(d.saved, item)
	return uint32(len(d.saved)), nil
}
func (d *fakeDatabase) MediaUpdate(library.MediaItem) error              { return nil }
func (d *fakeDatabase) PlaylistAdd(library.PlaylistItem) (uint32, error) { return 1, nil }
func (d *fakeDatabase) PlaylistUpdate(library.PlaylistItem) error        { return nil }
func (d *fakeDatabase) PurgeCruft(time.Time) error                      { return nil }
func (d *fakeDatabase) PurgeAllTables() error                           { return nil }
func (d *fakeDatabase) PostScanHook() error                             { return nil }
func (d *fakeDatabase) ClearQueue() error                               { return nil }

func TestSourceInitRejectsEmptyURL(t *testing.T) {
	s := New("", false, nil)
	if err := s.Init(); err == nil {
		t.Fatalf("expected error for empty catalog URL")
	}
}

func TestSourceFetchAndSaveUpsertsEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]CatalogEntry{
			{Path: "http://host/a.mp3", Title: "A", Artist: "Artist A"},
			{Path: "http://host/b.mp3", Title: "B", Artist: "Artist B"},
		})
	}))
	defer srv.Close()

	db := &fakeDatabase{}
	src := New(srv.URL, false, nil)
	c := library.NewCoordinator(library.Config{Sources: []library.Source{src}, Database: db})
	c.Start()
	defer c.Shutdown()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		db.mu.Lock()
		n := len(db.saved)
		db.mu.Unlock()
		if n == 2 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected 2 media items saved from catalog")
}
