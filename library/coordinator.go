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
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

/*
dispatchMarkerKey is the context key set only inside the coordinator's
own dispatch loop. UpdateTrigger checks it to tell whether it is being
called from the library goroutine itself (e.g. from within a running
scan) versus from an arbitrary caller goroutine, since the two cases
need different handling to avoid a self-deadlock.
*/
type dispatchMarkerKey struct{}

func isDispatching(ctx context.Context) bool {
	v, _ := ctx.Value(dispatchMarkerKey{}).(bool)
	return v
}

func dispatchContext() context.Context {
	return context.WithValue(context.Background(), dispatchMarkerKey{}, true)
}

/*
scanKind distinguishes the four scan skeleton variants sharing
Coordinator.runScan.
*/
type scanKind int

const (
	scanKindInit scanKind = iota
	scanKindRescan
	scanKindMetaRescan
	scanKindFullRescan
)

func (k scanKind) String() string {
	switch k {
	case scanKindInit:
		return "init"
	case scanKindRescan:
		return "rescan"
	case scanKindMetaRescan:
		return "metarescan"
	case scanKindFullRescan:
		return "fullrescan"
	default:
		return "unknown"
	}
}

type sourceEntry struct {
	source   Source
	disabled atomic.Bool
}

/*
deferredState accumulates events raised by UpdateTrigger between
debounced flushes. Touched only from the library goroutine, so a
documented single-goroutine discipline stands in for a mutex.
*/
type deferredState struct {
	counter uint32
	mask    EventMask
}

/*
Config configures a new Coordinator.
*/
type Config struct {
	Sources []Source

	Notifier Notifier
	Database Database
	Player   Player
	RSS      RSSStore
	Metrics  Metrics
	Logger   *slog.Logger

	// FilescanDisable skips the post-scan cruft purge after rescan and
	// metarescan, leaving stale rows in place until the next full rescan.
	FilescanDisable bool

	// ClearQueueOnStopDisable skips the queue clear in fullRescanPreamble,
	// leaving the play queue intact across a full rescan.
	ClearQueueOnStopDisable bool
}

/*
Coordinator owns the library: one dedicated goroutine dispatching a
serialized command queue, iterating registered sources for scans, and
debouncing change notifications.
*/
type Coordinator struct {
	sources []*sourceEntry

	notifier Notifier
	db       Database
	player   Player
	rss      RSSStore
	metrics  Metrics
	logger   *slog.Logger

	filescanDisable         bool
	clearQueueOnStopDisable bool

	queue     *commandQueue
	debouncer *debouncer
	scanning  atomic.Bool
	deferred  deferredState // library-goroutine-confined, see deferredState doc

	stopped chan struct{}
}

/*
NewCoordinator builds a Coordinator. It panics if any Source in
cfg.Sources is nil; every other mandatory method is enforced by the Go
compiler through the Source interface itself.
*/
func NewCoordinator(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entries := make([]*sourceEntry, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if s == nil {
			panic("library: nil Source registered")
		}
		entries = append(entries, &sourceEntry{source: s})
	}

	return &Coordinator{
		sources:                 entries,
		notifier:                cfg.Notifier,
		db:                      cfg.Database,
		player:                  cfg.Player,
		rss:                     cfg.RSS,
		metrics:                 cfg.Metrics,
		logger:                  logger,
		filescanDisable:         cfg.FilescanDisable,
		clearQueueOnStopDisable: cfg.ClearQueueOnStopDisable,
		queue:                   newCommandQueue(),
		debouncer:               newDebouncer(),
		stopped:                 make(chan struct{}),
	}
}

/*
Start initializes every source, launches the library goroutine, and
queues the initial scan.
*/
func (c *Coordinator) Start() {
	for _, se := range c.sources {
		if err := se.source.Init(); err != nil {
			c.logger.Error("source init failed, disabling", "source", se.source.Name(), "error", err)
			se.disabled.Store(true)
			continue
		}

		if reg, ok := se.source.(EventRegistrar); ok {
			if err := reg.RegisterEvents(func(mask EventMask) {
				c.UpdateTrigger(context.Background(), mask)
			}); err != nil {
				c.logger.Error("source register_events failed, disabling", "source", se.source.Name(), "error", err)
				se.disabled.Store(true)
			}
		}
	}

	go func() {
		defer close(c.stopped)
		c.run()
	}()

	c.queue.execAsync(func(ctx context.Context) { c.runScan(ctx, scanKindInit) })
}

/*
Shutdown drains and closes the command queue, waits for the library
goroutine to exit, and deinitializes every source.
*/
func (c *Coordinator) Shutdown() {
	c.queue.close()
	<-c.stopped

	for _, se := range c.sources {
		se.source.Deinit()
	}
}

/*
run is the library goroutine's event loop: it drains commands and
services the debounce timer, the only two things this goroutine
reacts to.
*/
func (c *Coordinator) run() {
	for {
		select {
		case cmd, ok := <-c.queue.ch:
			if !ok {
				return
			}
			cmd.fn(dispatchContext())
			if cmd.done != nil {
				close(cmd.done)
			}

		case <-c.debouncer.C():
			c.flushDeferred()
		}
	}
}

func (c *Coordinator) flushDeferred() {
	mask := c.deferred.mask
	c.deferred = deferredState{}
	c.notify(mask)
}

func (c *Coordinator) notify(mask EventMask) {
	if c.notifier != nil {
		c.notifier.Notify(mask)
	}
}

/*
IsScanning reports whether a scan is currently in progress.
*/
func (c *Coordinator) IsScanning() bool {
	return c.scanning.Load()
}

/*
Rescan queues a partial rescan. A no-op while a scan is already in
progress: only one scan runs at a time.
*/
func (c *Coordinator) Rescan() {
	if c.scanning.Load() {
		return
	}
	c.queue.execAsync(func(ctx context.Context) { c.runScan(ctx, scanKindRescan) })
}

/*
MetaRescan queues a metadata-only rescan. A no-op while a scan is
already in progress.
*/
func (c *Coordinator) MetaRescan() {
	if c.scanning.Load() {
		return
	}
	c.queue.execAsync(func(ctx context.Context) { c.runScan(ctx, scanKindMetaRescan) })
}

/*
FullRescan queues a full rescan: stop playback, clear the queue,
snapshot and restore RSS feeds around a full purge. A no-op while a
scan is already in progress.
*/
func (c *Coordinator) FullRescan() {
	if c.scanning.Load() {
		return
	}
	c.queue.execAsync(func(ctx context.Context) { c.runScan(ctx, scanKindFullRescan) })
}

/*
runScan implements the shared scan skeleton behind Rescan, MetaRescan,
FullRescan, and the initial scan queued by Start. It is a no-op if a
scan is already running, enforcing the exclusive-scan invariant.
*/
func (c *Coordinator) runScan(ctx context.Context, kind scanKind) {
	if !c.scanning.CompareAndSwap(false, true) {
		c.logger.Warn("scan requested while another scan is in progress, ignoring", "kind", kind)
		return
	}
	defer c.scanning.Store(false)

	// A timer armed just before this scan began must not fire mid-scan
	// and flush deferred early; scan completion below does the flushing.
	c.debouncer.disarm()

	if c.metrics != nil {
		c.metrics.SetScanning(true)
		defer c.metrics.SetScanning(false)
	}

	start := time.Now()
	c.notify(EventUpdate)

	if kind == scanKindFullRescan {
		c.fullRescanPreamble()
	}

	var scanErr error
	for _, se := range c.sources {
		if se.disabled.Load() {
			continue
		}

		var err error
		switch kind {
		case scanKindInit:
			err = se.source.InitScan(c)
		case scanKindRescan:
			err = se.source.Rescan(c)
		case scanKindMetaRescan:
			err = se.source.MetaRescan(c)
		case scanKindFullRescan:
			err = se.source.FullRescan(c)
		}

		if err != nil {
			c.logger.Error("scan source failed", "source", se.source.Name(), "kind", kind, "error", err)
			scanErr = err
		}
	}

	skipPurge := c.filescanDisable && kind != scanKindFullRescan && kind != scanKindInit
	if !skipPurge && c.db != nil {
		if err := c.db.PurgeCruft(start); err != nil {
			c.logger.Error("purge cruft failed", "error", err)
		}
		if err := c.db.PostScanHook(); err != nil {
			c.logger.Error("post-scan hook failed", "error", err)
		}
	}

	if c.metrics != nil {
		c.metrics.ObserveScan(kind.String(), time.Since(start), scanErr)
	}

	if c.deferred.counter > 0 {
		c.notify(EventUpdate | EventDatabase)
		c.deferred = deferredState{}
	} else {
		c.notify(EventUpdate)
	}
}

/*
fullRescanPreamble stops playback, clears the queue, snapshots RSS
items, purges every library table, and restores the RSS snapshot. This
ordering guarantees RSS subscriptions survive a destructive wipe.
*/
func (c *Coordinator) fullRescanPreamble() {
	if c.player != nil {
		if err := c.player.Stop(); err != nil {
			c.logger.Warn("playback stop failed during full rescan", "error", err)
		}
	}

	if c.db != nil && !c.clearQueueOnStopDisable {
		if err := c.db.ClearQueue(); err != nil {
			c.logger.Warn("clear queue failed during full rescan", "error", err)
		}
	}

	var snapshot RSSSnapshot
	if c.rss != nil {
		var err error
		snapshot, err = c.rss.RSSSnapshot()
		if err != nil {
			c.logger.Error("rss snapshot failed", "error", err)
		}
	}

	if c.db != nil {
		if err := c.db.PurgeAllTables(); err != nil {
			c.logger.Error("purge all tables failed", "error", err)
		}
	}

	if c.rss != nil && snapshot != nil {
		if err := c.rss.RSSRestore(snapshot); err != nil {
			c.logger.Error("rss restore failed", "error", err)
		}
	}
}

/*
UpdateTrigger accumulates mask into the deferred notification state.
Outside a scan it (re)arms the debounce timer; during a scan it only
accumulates, letting scan completion flush instead. Called from the
library goroutine itself (e.g. from within a Source callback running
inside a scan), it dispatches inline instead of posting to the queue,
avoiding the deadlock a queue post would cause.
*/
func (c *Coordinator) UpdateTrigger(ctx context.Context, mask EventMask) {
	if isDispatching(ctx) {
		c.updateTriggerInline(mask)
		return
	}

	c.queue.execAsync(func(ctx context.Context) {
		c.updateTriggerInline(mask)
	})
}

func (c *Coordinator) updateTriggerInline(mask EventMask) {
	c.deferred.mask |= mask
	c.deferred.counter++

	if !c.scanning.Load() {
		c.debouncer.arm()
	}
}

/*
PlaylistItemAdd tries each PlaylistMutator source in registration order
and stops at the first ResultOK. Returns ResultError immediately,
without enqueuing, while a scan is in progress.
*/
func (c *Coordinator) PlaylistItemAdd(playlistVirtualPath, itemVirtualPath string) Result {
	if c.scanning.Load() {
		return ResultError
	}

	result := ResultError
	c.queue.execSync(func(ctx context.Context) {
		for _, se := range c.sources {
			if se.disabled.Load() {
				continue
			}
			m, ok := se.source.(PlaylistMutator)
			if !ok {
				continue
			}
			if r := m.PlaylistItemAdd(playlistVirtualPath, itemVirtualPath); r == ResultOK {
				result = ResultOK
				c.UpdateTrigger(ctx, EventStoredPlaylist)
				return
			}
		}
	})

	return result
}

/*
PlaylistRemove tries each PlaylistMutator source in order and stops at
the first ResultOK.
*/
func (c *Coordinator) PlaylistRemove(virtualPath string) Result {
	if c.scanning.Load() {
		return ResultError
	}

	result := ResultError
	c.queue.execSync(func(ctx context.Context) {
		for _, se := range c.sources {
			if se.disabled.Load() {
				continue
			}
			m, ok := se.source.(PlaylistMutator)
			if !ok {
				continue
			}
			if r := m.PlaylistRemove(virtualPath); r == ResultOK {
				result = ResultOK
				c.UpdateTrigger(ctx, EventStoredPlaylist)
				return
			}
		}
	})

	return result
}

/*
QueueItemAdd tries each QueueMutator source in order, continuing to the
next source only while the result is ResultPathInvalid ("not my path").
Any other non-OK result is fatal for this command.
*/
func (c *Coordinator) QueueItemAdd(path string, position int, reshuffle bool, itemID int) (count, newID int, result Result) {
	if c.scanning.Load() {
		return 0, 0, ResultError
	}

	result = ResultError
	c.queue.execSync(func(ctx context.Context) {
		for _, se := range c.sources {
			if se.disabled.Load() {
				continue
			}
			m, ok := se.source.(QueueMutator)
			if !ok {
				continue
			}

			n, id, r := m.QueueItemAdd(path, position, reshuffle, itemID)
			if r == ResultOK {
				count, newID, result = n, id, ResultOK
				return
			}
			if r != ResultPathInvalid {
				result = r
				return
			}
		}
	})

	return
}

/*
QueueSave tries each QueueMutator source in order and stops at the
first ResultOK.
*/
func (c *Coordinator) QueueSave(virtualPath string) Result {
	if c.scanning.Load() {
		return ResultError
	}

	result := ResultError
	c.queue.execSync(func(ctx context.Context) {
		for _, se := range c.sources {
			if se.disabled.Load() {
				continue
			}
			m, ok := se.source.(QueueMutator)
			if !ok {
				continue
			}
			if r := m.QueueSave(virtualPath); r == ResultOK {
				result = ResultOK
				c.UpdateTrigger(ctx, EventStoredPlaylist)
				return
			}
		}
	})

	return result
}

/*
RSSAdd subscribes to a feed. It bypasses the command queue: feed
subscription changes never conflict with an in-progress scan.
*/
func (c *Coordinator) RSSAdd(name, url string, limit int) error {
	if c.rss == nil {
		return errors.New("library: no RSS store configured")
	}
	return c.rss.RSSAdd(name, url, limit)
}

/*
RSSRemove unsubscribes a feed, bypassing the command queue.
*/
func (c *Coordinator) RSSRemove(url string) error {
	if c.rss == nil {
		return errors.New("library: no RSS store configured")
	}
	return c.rss.RSSRemove(url)
}

/*
MediaSave upserts a media row: add when item.ID is zero, otherwise
update. Intended for Source implementations to call during a scan;
each successful write accumulates into the deferred notification state
so scan completion reports EventDatabase.
*/
func (c *Coordinator) MediaSave(item MediaItem) (id uint32, err error) {
	if c.db == nil {
		return 0, errors.New("library: no database configured")
	}
	if item.ID == 0 {
		id, err = c.db.MediaAdd(item)
	} else {
		id, err = item.ID, c.db.MediaUpdate(item)
	}
	if err == nil {
		c.updateTriggerInline(EventDatabase)
	}
	return id, err
}

/*
PlaylistSave upserts a playlist row: add when item.ID is zero,
otherwise update.
*/
func (c *Coordinator) PlaylistSave(item PlaylistItem) (id uint32, err error) {
	if c.db == nil {
		return 0, errors.New("library: no database configured")
	}
	if item.ID == 0 {
		id, err = c.db.PlaylistAdd(item)
	} else {
		id, err = item.ID, c.db.PlaylistUpdate(item)
	}
	if err == nil {
		c.updateTriggerInline(EventDatabase)
	}
	return id, err
}
