/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package broadcast

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shoutstream/shoutstream"
)

/*
expiresHeader is a fixed, deliberately-in-the-past value: the stream is
never cacheable, and there's no reason to compute a real timestamp for
a header whose only job is to say so.
*/
const expiresHeader = "Mon, 31 Aug 2015 06:00:00 GMT"

/*
Handler serves the MP3 broadcast endpoint over HTTP, wiring one Engine
into a chi-compatible http.Handler.
*/
type Handler struct {
	engine      *Engine
	displayName string
	logger      *slog.Logger
}

/*
NewHandler builds a Handler serving displayName as the icy-name header.
*/
func NewHandler(engine *Engine, displayName string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{engine: engine, displayName: displayName, logger: logger}
}

/*
ServeHTTP implements GET /stream.mp3: it registers a session with the
engine, writes the response header table, then blocks until the client
disconnects or the engine force-closes the session.
*/
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.engine.NotSupported() {
		http.NotFound(w, r)
		return
	}

	icy := r.Header.Get("Icy-MetaData") == "1"
	sess := NewStreamingSession(w, remoteAddr(r), icy)

	if err := h.engine.AddSession(sess); err != nil {
		switch {
		case errors.Is(err, ErrUnsupported):
			http.NotFound(w, r)
		case errors.Is(err, ErrTornDown):
			http.NotFound(w, r)
		case errors.Is(err, ErrCapacity):
			http.Error(w, "server busy", http.StatusServiceUnavailable)
		default:
			http.Error(w, "internal error", http.StatusServiceUnavailable)
		}
		return
	}

	h.writeHeaders(w, sess)

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	select {
	case <-r.Context().Done():
		h.engine.RemoveSession(sess)
	case <-sess.Done():
		// Force-closed by the engine (shutdown or not_supported).
	}
}

func (h *Handler) writeHeaders(w http.ResponseWriter, sess *StreamingSession) {
	header := w.Header()

	header.Set("Content-Type", "audio/mpeg")
	header.Set("Server", "shoutstream/"+shoutstream.ProductVersion)
	header.Set("Cache-Control", "no-cache")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", expiresHeader)
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

	if sess.ICY() {
		header.Set("icy-name", h.displayName)
		header.Set("icy-metaint", icyMetaIntHeader)
	}

	w.WriteHeader(http.StatusOK)
}

const icyMetaIntHeader = "8192"

/*
remoteAddr prefers X-Forwarded-For (as set by a reverse proxy in front
of the streaming endpoint) and falls back to the raw connection
address.
*/
func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
