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
	"context"
	"sync"
	"testing"
	"time"
)

func waitForTest(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}

	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

type fakeSource struct {
	name string

	mu          sync.Mutex
	initCalls   int
	rescans     int
	metarescans int
	fullrescans int
	initscans   int

	rescanErr error

	onRescan func(c *Coordinator) // lets a test call back into the coordinator during a scan
}

func (s *fakeSource) Name() string { return s.name }
func (s *fakeSource) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initCalls++
	return nil
}
func (s *fakeSource) Deinit() {}

func (s *fakeSource) InitScan(c *Coordinator) error {
	s.mu.Lock()
	s.initscans++
	s.mu.Unlock()
	return nil
}

func (s *fakeSource) Rescan(c *Coordinator) error {
	s.mu.Lock()
	s.rescans++
	cb := s.onRescan
	s.mu.Unlock()

	if cb != nil {
		cb(c)
	}
	return s.rescanErr
}

func (s *fakeSource) MetaRescan(c *Coordinator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metarescans++
	return nil
}

func (s *fakeSource) FullRescan(c *Coordinator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullrescans++
	return nil
}

func (s *fakeSource) counts() (rescans, metarescans, fullrescans, initscans int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rescans, s.metarescans, s.fullrescans, s.initscans
}

type fakeNotifier struct {
	mu    sync.Mutex
	masks []EventMask
}

func (n *fakeNotifier) Notify(mask EventMask) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.masks = append(n.masks, mask)
}

func (n *fakeNotifier) all() []EventMask {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]EventMask(nil), n.masks...)
}

type fakeDatabase struct {
	mu          sync.Mutex
	purgedAt    time.Time
	purgedAll   bool
	queueClears int
	nextMediaID uint32
}

func (d *fakeDatabase) MediaAdd(item MediaItem) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextMediaID++
	return d.nextMediaID, nil
}
func (d *fakeDatabase) MediaUpdate(item MediaItem) error { return nil }

func (d *fakeDatabase) PlaylistAdd(item PlaylistItem) (uint32, error) { return 1, nil }
func (d *fakeDatabase) PlaylistUpdate(item PlaylistItem) error        { return nil }

func (d *fakeDatabase) PurgeCruft(start time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.purgedAt = start
	return nil
}
func (d *fakeDatabase) PurgeAllTables() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.purgedAll = true
	return nil
}
func (d *fakeDatabase) PostScanHook() error { return nil }
func (d *fakeDatabase) ClearQueue() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queueClears++
	return nil
}

type fakeRSS struct {
	mu       sync.Mutex
	feeds    RSSSnapshot
	restored RSSSnapshot
}

func (r *fakeRSS) RSSAdd(name, url string, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds = append(r.feeds, RSSFeed{Name: name, URL: url, Limit: limit})
	return nil
}
func (r *fakeRSS) RSSRemove(url string) error { return nil }

func (r *fakeRSS) RSSSnapshot() (RSSSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(RSSSnapshot(nil), r.feeds...), nil
}

func (r *fakeRSS) RSSRestore(s RSSSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restored = s
	return nil
}

func TestCoordinatorInitScanRunsOnStart(t *testing.T) {
	src := &fakeSource{name: "fs"}
	c := NewCoordinator(Config{Sources: []Source{src}})
	c.Start()
	defer c.Shutdown()

	waitForTest(t, time.Second, func() bool {
		_, _, _, initscans := src.counts()
		return initscans == 1
	})
}

func TestCoordinatorExclusiveScan(t *testing.T) {
	blocking := make(chan struct{})
	src := &fakeSource{name: "slow"}
	src.onRescan = func(c *Coordinator) { <-blocking }

	c := NewCoordinator(Config{Sources: []Source{src}})
	c.Start()
	defer c.Shutdown()

	waitForTest(t, time.Second, func() bool {
		_, _, _, i := src.counts()
		return i == 1
	})

	c.Rescan() // starts, blocks inside onRescan
	waitForTest(t, time.Second, func() bool { return c.IsScanning() })

	c.Rescan() // should be a no-op: already scanning
	c.MetaRescan()

	close(blocking)
	waitForTest(t, time.Second, func() bool { return !c.IsScanning() })

	rescans, metarescans, _, _ := src.counts()
	if rescans != 1 {
		t.Fatalf("expected exactly one rescan to run, got %d", rescans)
	}
	if metarescans != 0 {
		t.Fatalf("expected metarescan to be rejected while scanning, got %d", metarescans)
	}
}

func TestCoordinatorMutationGatedDuringScan(t *testing.T) {
	blocking := make(chan struct{})
	src := &fakeSource{name: "slow"}
	src.onRescan = func(c *Coordinator) { <-blocking }

	c := NewCoordinator(Config{Sources: []Source{src}})
	c.Start()
	defer c.Shutdown()

	waitForTest(t, time.Second, func() bool {
		_, _, _, i := src.counts()
		return i == 1
	})

	c.Rescan()
	waitForTest(t, time.Second, func() bool { return c.IsScanning() })

	if r := c.PlaylistRemove("/x"); r != ResultError {
		t.Fatalf("expected ResultError while scanning, got %v", r)
	}

	close(blocking)
	waitForTest(t, time.Second, func() bool { return !c.IsScanning() })
}

func TestCoordinatorNotificationCoalescing(t *testing.T) {
	src := &fakeSource{name: "fs"}
	notifier := &fakeNotifier{}
	c := NewCoordinator(Config{Sources: []Source{src}, Notifier: notifier})
	c.Start()
	defer c.Shutdown()

	waitForTest(t, time.Second, func() bool {
		_, _, _, i := src.counts()
		return i == 1
	})

	before := len(notifier.all())

	for i := 0; i < 10; i++ {
		c.UpdateTrigger(context.Background(), EventDatabase)
	}

	// No notification should appear before the debounce window elapses.
	time.Sleep(50 * time.Millisecond)
	if len(notifier.all()) != before {
		t.Fatalf("expected no notification before debounce window elapses")
	}
}

func TestCoordinatorFullRescanPreservesRSS(t *testing.T) {
	src := &fakeSource{name: "fs"}
	db := &fakeDatabase{}
	rss := &fakeRSS{}
	rss.feeds = RSSSnapshot{{Name: "Feed", URL: "http://example.com/feed", Limit: 10}}

	c := NewCoordinator(Config{Sources: []Source{src}, Database: db, RSS: rss})
	c.Start()
	defer c.Shutdown()

	waitForTest(t, time.Second, func() bool {
		_, _, _, i := src.counts()
		return i == 1
	})

	c.FullRescan()

	waitForTest(t, time.Second, func() bool {
		_, _, full, _ := src.counts()
		return full == 1
	})

	waitForTest(t, time.Second, func() bool {
		db.mu.Lock()
		defer db.mu.Unlock()
		return db.purgedAll
	})

	rss.mu.Lock()
	restored := rss.restored
	rss.mu.Unlock()

	if len(restored) != 1 || restored[0].URL != "http://example.com/feed" {
		t.Fatalf("expected RSS snapshot restored after full rescan, got %+v", restored)
	}
}

func TestCoordinatorRescanWithMediaSaveReportsDatabaseEvent(t *testing.T) {
	src := &fakeSource{name: "fs"}
	src.onRescan = func(c *Coordinator) {
		if _, err := c.MediaSave(MediaItem{Path: "/new.mp3", Title: "New"}); err != nil {
			t.Errorf("MediaSave: %v", err)
		}
	}

	notifier := &fakeNotifier{}
	db := &fakeDatabase{}
	c := NewCoordinator(Config{Sources: []Source{src}, Notifier: notifier, Database: db})
	c.Start()
	defer c.Shutdown()

	waitForTest(t, time.Second, func() bool {
		_, _, _, i := src.counts()
		return i == 1
	})

	c.Rescan()

	waitForTest(t, time.Second, func() bool {
		rescans, _, _, _ := src.counts()
		return rescans == 1
	})
	waitForTest(t, time.Second, func() bool { return !c.IsScanning() })

	masks := notifier.all()
	if len(masks) == 0 {
		t.Fatalf("expected at least one notification")
	}
	last := masks[len(masks)-1]
	if last != EventUpdate|EventDatabase {
		t.Fatalf("expected scan completion to report EventUpdate|EventDatabase after a MediaSave, got %v", last)
	}
}

func TestCoordinatorQueueItemAddWithoutQueueMutatorReturnsError(t *testing.T) {
	c := NewCoordinator(Config{Sources: []Source{&fakeSource{name: "fs"}}})
	c.Start()
	defer c.Shutdown()

	count, newID, result := c.QueueItemAdd("/no/matching/source", 0, false, 0)
	if result != ResultError {
		t.Fatalf("expected ResultError with no QueueMutator sources, got %v (count=%d id=%d)", result, count, newID)
	}
}

func TestNewCoordinatorPanicsOnNilSource(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on nil Source")
		}
	}()

	NewCoordinator(Config{Sources: []Source{nil}})
}
