/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

/*
Package library implements the Library Coordinator: a single dedicated
goroutine that sequences scans across a pluggable set of sources,
serializes playlist/queue mutation requests, and debounces database
change notifications.
*/
package library

/*
EventMask is a bitmask of listener event kinds.
*/
type EventMask uint32

const (
	EventPlayer EventMask = 1 << iota
	EventUpdate
	EventDatabase
	EventStoredPlaylist
)

/*
Result is the outcome of a scan or mutation operation.
*/
type Result int

const (
	ResultOK Result = iota
	ResultError
	// ResultPathInvalid means "this source does not own the path" - the
	// coordinator tries the next source in QueueItemAdd.
	ResultPathInvalid
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultPathInvalid:
		return "path_invalid"
	default:
		return "error"
	}
}

/*
Source is one pluggable library scanner. A missing mandatory method
would be a compile-time error since Source is a normal Go interface;
NewCoordinator additionally panics on a nil Source registered by
mistake.
*/
type Source interface {
	Name() string

	Init() error
	Deinit()

	InitScan(c *Coordinator) error
	Rescan(c *Coordinator) error
	MetaRescan(c *Coordinator) error
	FullRescan(c *Coordinator) error
}

/*
EventRegistrar is an optional Source capability: a source that needs to
push events (e.g. a filesystem watch) registers a callback here. A
source whose RegisterEvents fails is disabled, same as Init failure.
*/
type EventRegistrar interface {
	RegisterEvents(notify func(EventMask)) error
}

/*
PlaylistMutator is an optional Source capability for playlist mutation
commands.
*/
type PlaylistMutator interface {
	PlaylistItemAdd(playlistVirtualPath, itemVirtualPath string) Result
	PlaylistRemove(virtualPath string) Result
}

/*
QueueMutator is an optional Source capability for play-queue mutation
commands.
*/
type QueueMutator interface {
	QueueItemAdd(path string, position int, reshuffle bool, itemID int) (count, newID int, result Result)
	QueueSave(virtualPath string) Result
}
