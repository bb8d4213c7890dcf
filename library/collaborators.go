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

import "time"

/*
Notifier is the listener bus collaborator: Notify is called once per
coalesced or scan-boundary event.
*/
type Notifier interface {
	Notify(mask EventMask)
}

/*
Player is the minimal player collaborator the coordinator needs during
a full rescan.
*/
type Player interface {
	Stop() error
}

/*
MediaItem is the subset of a library row Source implementations upsert
via Coordinator.MediaSave.
*/
type MediaItem struct {
	ID     uint32
	Path   string
	Title  string
	Artist string
}

/*
PlaylistItem is the subset of a playlist row Source implementations
upsert via Coordinator.PlaylistSave.
*/
type PlaylistItem struct {
	ID          uint32
	VirtualPath string
	Title       string
}

/*
Database is the storage collaborator consumed by the coordinator and
by Source implementations through MediaSave/PlaylistSave. The purge
and hook methods run at the end of every scan to reconcile rows that
scanning no longer sees.
*/
type Database interface {
	MediaAdd(item MediaItem) (id uint32, err error)
	MediaUpdate(item MediaItem) error

	PlaylistAdd(item PlaylistItem) (id uint32, err error)
	PlaylistUpdate(item PlaylistItem) error

	PurgeCruft(start time.Time) error
	PurgeAllTables() error
	PostScanHook() error
	ClearQueue() error
}

/*
RSSFeed is one subscribed RSS feed row.
*/
type RSSFeed struct {
	Name  string
	URL   string
	Limit int
}

/*
RSSSnapshot is a point-in-time copy of every subscribed feed, taken
before a full rescan wipes the database and restored immediately
after, so RSS subscriptions survive a destructive full-library wipe.
*/
type RSSSnapshot []RSSFeed

/*
RSSStore is the RSS-feed collaborator. RSSAdd/RSSRemove are called
directly by Coordinator, bypassing the command queue, because feed
subscription changes never conflict with an in-progress scan.
*/
type RSSStore interface {
	RSSAdd(name, url string, limit int) error
	RSSRemove(url string) error

	RSSSnapshot() (RSSSnapshot, error)
	RSSRestore(snapshot RSSSnapshot) error
}

/*
Metrics is the optional observability sink for scan activity.
*/
type Metrics interface {
	ObserveScan(kind string, dur time.Duration, err error)
	SetScanning(active bool)
}
