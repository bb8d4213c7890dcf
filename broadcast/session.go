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
Package broadcast implements the MP3 broadcast engine: a
single-producer/many-consumer streaming endpoint that transcodes PCM
frames to MP3 and fans the encoded bytes out to concurrently connected
HTTP clients, interleaving ICY metadata on request.
*/
package broadcast

import (
	"net/http"
	"sync"

	"devt.de/krotik/common/datautil"
)

/*
closeCallbackDedupWindow is how long (in seconds) RemoveByHandle
remembers the remote address of a session it did not find, so repeated
racing close callbacks for that address log the "unknown session"
warning only once within the window.
*/
const closeCallbackDedupWindow = 5

/*
StreamingSession is one active HTTP client receiving the broadcast.
*/
type StreamingSession struct {
	w          http.ResponseWriter
	flusher    http.Flusher
	remoteAddr string

	icy       bool   // fixed at creation from the Icy-MetaData request header
	bytesSent uint64 // audio bytes sent since the last ICY metablock, modulo icy.MetaInt

	done chan struct{} // closed by the registry when the session is torn down
}

/*
NewStreamingSession creates a session bound to one HTTP response. w
must support http.Flusher for chunked delivery to work.
*/
func NewStreamingSession(w http.ResponseWriter, remoteAddr string, icy bool) *StreamingSession {
	flusher, _ := w.(http.Flusher)

	return &StreamingSession{
		w:          w,
		flusher:    flusher,
		remoteAddr: remoteAddr,
		icy:        icy,
		done:       make(chan struct{}),
	}
}

/*
ICY reports whether this session requested SHOUTcast metadata.
*/
func (s *StreamingSession) ICY() bool {
	return s.icy
}

/*
RemoteAddr returns the client's address as recorded at connection
time.
*/
func (s *StreamingSession) RemoteAddr() string {
	return s.remoteAddr
}

/*
Done is closed when the session is removed from its registry, either
because the client disconnected or because the engine tore down.
*/
func (s *StreamingSession) Done() <-chan struct{} {
	return s.done
}

/*
write sends a chunk to the client and flushes it immediately so the
transport doesn't buffer the audio.
*/
func (s *StreamingSession) write(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	if _, err := s.w.Write(p); err != nil {
		return err
	}

	if s.flusher != nil {
		s.flusher.Flush()
	}

	return nil
}

/*
SessionRegistry is the mutex-protected, insertion-ordered collection of
active sessions. All mutation happens under one mutex; ICYCount is
maintained incrementally so callers never need to scan the collection
to answer "how many ICY clients are there".
*/
type SessionRegistry struct {
	mu       sync.Mutex
	sessions []*StreamingSession
	icyCount int
	dedup    *datautil.MapCache
}

/*
NewSessionRegistry creates an empty registry.
*/
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		dedup: datautil.NewMapCache(0, closeCallbackDedupWindow),
	}
}

/*
Insert adds a session to the registry. Returns the new session count
and whether this insertion transitioned the registry from empty to
non-empty (the caller should arm the audio/silence timers on true).
*/
func (r *SessionRegistry) Insert(s *StreamingSession) (count int, becameActive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	becameActive = len(r.sessions) == 0

	r.sessions = append(r.sessions, s)
	if s.icy {
		r.icyCount++
	}

	return len(r.sessions), becameActive
}

/*
RemoveByHandle removes a session from the registry and closes its Done
channel. Returns the remaining session count, whether this removal
transitioned the registry to empty (the caller should disarm timers on
true), and whether the session was found at all. A session that isn't
found (already removed, e.g. by DrainAll during teardown) is not an
error: it means a transport close callback raced the registry's own
teardown, and the second caller must not touch anything.
*/
func (r *SessionRegistry) RemoveByHandle(s *StreamingSession) (count int, becameEmpty bool, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cand := range r.sessions {
		if cand == s {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			if cand.icy {
				r.icyCount--
			}
			found = true
			break
		}
	}

	if found {
		close(s.done)
	} else {
		// Racing close callback: remember we've seen it so a caller that
		// wants to log a warning can suppress duplicates from the same
		// remote address within the dedup window.
		r.dedup.Put(s.remoteAddr, struct{}{})
	}

	return len(r.sessions), found && len(r.sessions) == 0, found
}

/*
SeenRecently reports whether a close callback for addr has already been
handled (or raced past the registry) within the dedup window. Intended
for callers deciding whether a "close callback for unknown session"
warning would just be noise.
*/
func (r *SessionRegistry) SeenRecently(addr string) bool {
	_, ok := r.dedup.Get(addr)
	return ok
}

/*
Iterate calls fn once per session in insertion order, passing whether
the current session is the last one. Held under the registry mutex, so
fn must not call back into the registry.
*/
func (r *SessionRegistry) Iterate(fn func(s *StreamingSession, isLast bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sessions)
	for i, s := range r.sessions {
		fn(s, i == n-1)
	}
}

/*
Len returns the number of active sessions.
*/
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

/*
ICYCount returns the number of active sessions that requested ICY
metadata.
*/
func (r *SessionRegistry) ICYCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.icyCount
}

/*
DrainAll removes every session, invoking fn on each as it is taken off
the head of the collection and before its Done channel is closed, using the well-defined "remove head until empty" pattern so
concurrent modification during iteration is never a concern. Used by
Engine teardown and by the not_supported transition to force-close
every client.
*/
func (r *SessionRegistry) DrainAll(fn func(s *StreamingSession)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.sessions) > 0 {
		s := r.sessions[0]
		r.sessions = r.sessions[1:]

		if s.icy {
			r.icyCount--
		}

		if fn != nil {
			fn(s)
		}

		close(s.done)
	}
}
