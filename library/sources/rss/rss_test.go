/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package rss

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shoutstream/shoutstream/library"
)

type fakeDatabase struct{ saved []library.MediaItem }

func (d *fakeDatabase) MediaAdd(item library.MediaItem) (uint32, error) {
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

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Sample Feed</title>
    <item><title>Episode One</title><link>http://host/ep1.mp3</link><guid>1</guid></item>
    <item><title>Episode Two</title><link>http://host/ep2.mp3</link><guid>2</guid></item>
  </channel>
</rss>`

func TestStoreAddSnapshotRestoreRoundTrip(t *testing.T) {
	s := New(nil)

	if err := s.RSSAdd("Sample", "http://example.com/feed.xml", 5); err != nil {
		t.Fatalf("RSSAdd: %v", err)
	}

	snap, err := s.RSSSnapshot()
	if err != nil {
		t.Fatalf("RSSSnapshot: %v", err)
	}
	if len(snap) != 1 || snap[0].URL != "http://example.com/feed.xml" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if err := s.RSSRemove("http://example.com/feed.xml"); err != nil {
		t.Fatalf("RSSRemove: %v", err)
	}

	empty, _ := s.RSSSnapshot()
	if len(empty) != 0 {
		t.Fatalf("expected empty snapshot after remove, got %+v", empty)
	}

	if err := s.RSSRestore(snap); err != nil {
		t.Fatalf("RSSRestore: %v", err)
	}

	restored, _ := s.RSSSnapshot()
	if len(restored) != 1 {
		t.Fatalf("expected snapshot restored, got %+v", restored)
	}
}

func TestStoreRSSAddRejectsEmptyURL(t *testing.T) {
	s := New(nil)
	if err := s.RSSAdd("name", "", 0); err == nil {
		t.Fatalf("expected error for empty URL")
	}
}

func TestStoreScanOneRespectsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	s := New(nil)
	feed := library.RSSFeed{Name: "Sample", URL: srv.URL, Limit: 1}

	db := &fakeDatabase{}
	c := library.NewCoordinator(library.Config{Sources: []library.Source{s}, Database: db})

	if err := s.scanOne(c, feed); err != nil {
		t.Fatalf("scanOne: %v", err)
	}
	if len(db.saved) != 1 {
		t.Fatalf("expected limit to cap saved items at 1, got %d", len(db.saved))
	}
}
