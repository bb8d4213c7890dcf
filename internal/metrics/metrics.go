/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

// Package metrics holds the process's Prometheus registry and exposes it
// through implementations of broadcast.Metrics and library.Metrics so the
// engine and the coordinator never import prometheus directly.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the daemon exposes.
type Metrics struct {
	registry *prometheus.Registry

	activeSessions prometheus.Gauge
	icySessions    prometheus.Gauge
	bytesSent      prometheus.Counter
	encodedBytes   prometheus.Counter

	scanDuration *prometheus.HistogramVec
	scanTotal    *prometheus.CounterVec
	scanning     prometheus.Gauge

	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
}

// New creates and registers the daemon's metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shoutstream_active_sessions",
			Help: "Number of open streaming sessions.",
		}),
		icySessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shoutstream_icy_sessions",
			Help: "Number of open streaming sessions that requested ICY metadata.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shoutstream_bytes_sent_total",
			Help: "Total audio bytes written to streaming sessions, excluding ICY metablocks.",
		}),
		encodedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shoutstream_encoded_bytes_total",
			Help: "Total bytes produced by the codec.",
		}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shoutstream_scan_duration_seconds",
			Help:    "Library scan duration by kind.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		scanTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoutstream_scan_total",
			Help: "Completed library scans by kind and outcome.",
		}, []string{"kind", "outcome"}),
		scanning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shoutstream_scanning",
			Help: "1 while a library scan is in progress, 0 otherwise.",
		}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shoutstream_http_requests_total",
			Help: "Total HTTP requests received.",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shoutstream_http_errors_total",
			Help: "Total HTTP responses with a 4xx or 5xx status.",
		}),
	}

	registry.MustRegister(
		m.activeSessions, m.icySessions, m.bytesSent, m.encodedBytes,
		m.scanDuration, m.scanTotal, m.scanning,
		m.requestsTotal, m.errorsTotal,
	)

	return m
}

// SetActiveSessions implements broadcast.Metrics.
func (m *Metrics) SetActiveSessions(n int) { m.activeSessions.Set(float64(n)) }

// SetICYSessions implements broadcast.Metrics.
func (m *Metrics) SetICYSessions(n int) { m.icySessions.Set(float64(n)) }

// AddBytesSent implements broadcast.Metrics.
func (m *Metrics) AddBytesSent(n int) { m.bytesSent.Add(float64(n)) }

// AddEncodedBytes implements broadcast.Metrics.
func (m *Metrics) AddEncodedBytes(n int) { m.encodedBytes.Add(float64(n)) }

// ObserveScan implements library.Metrics.
func (m *Metrics) ObserveScan(kind string, dur time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.scanDuration.WithLabelValues(kind).Observe(dur.Seconds())
	m.scanTotal.WithLabelValues(kind, outcome).Inc()
}

// SetScanning implements library.Metrics.
func (m *Metrics) SetScanning(active bool) {
	if active {
		m.scanning.Set(1)
		return
	}
	m.scanning.Set(0)
}

// IncRequests records one served HTTP request.
func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }

// IncErrors records one HTTP response with a 4xx or 5xx status.
func (m *Metrics) IncErrors() { m.errorsTotal.Inc() }

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
