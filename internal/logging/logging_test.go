/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewDefaultsToInfoAndJSON(t *testing.T) {
	log := New("", "")
	if log == nil {
		t.Fatalf("New returned nil logger")
	}
	if !log.Enabled(nil, 0) {
		t.Fatalf("expected info level enabled by default")
	}
}

func TestNewRespectsDebugLevel(t *testing.T) {
	log := New("debug", "text")
	if log == nil {
		t.Fatalf("New returned nil logger")
	}
}

func TestRequestLoggerCapturesStatusAndSize(t *testing.T) {
	log := New("info", "json")

	handler := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hello"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream.mp3", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	if rec.Body.String() != "hello" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestResponseWriterFlushDelegatesToUnderlyingFlusher(t *testing.T) {
	rec := httptest.NewRecorder()
	wrap := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	wrap.Flush()

	if !rec.Flushed {
		t.Fatalf("expected underlying recorder to be flushed")
	}
}
