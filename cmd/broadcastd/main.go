/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/shoutstream/shoutstream/broadcast"
	"github.com/shoutstream/shoutstream/internal/config"
	"github.com/shoutstream/shoutstream/internal/logging"
	"github.com/shoutstream/shoutstream/internal/metrics"
	"github.com/shoutstream/shoutstream/library"
	"github.com/shoutstream/shoutstream/library/sources/fsscan"
	"github.com/shoutstream/shoutstream/library/sources/remote"
	"github.com/shoutstream/shoutstream/library/sources/rss"
	"github.com/shoutstream/shoutstream/transcode"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.LoadConfig()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()
	db := library.NewMemDatabase()
	rssStore := rss.New(log)

	sources := buildSources(cfg, log, rssStore)

	coordinator := library.NewCoordinator(library.Config{
		Sources:                 sources,
		Database:                db,
		RSS:                     rssStore,
		Metrics:                 met,
		Logger:                  log,
		FilescanDisable:         cfg.LibraryFilescanDisable,
		ClearQueueOnStopDisable: cfg.MPDClearQueueOnStopDisable,
	})

	engine := broadcast.NewEngine(broadcast.Config{
		Codec:       transcode.PCMFramer{},
		QueueLookup: queueLookupFromDatabase(db),
		Logger:      log,
		Metrics:     met,
		MaxSessions: cfg.MaxSessions,
	})

	handler := broadcast.NewHandler(engine, cfg.LibraryName, log)

	router := chi.NewRouter()
	router.Use(logging.RequestLogger(log))
	router.Use(metrics.RequestMiddleware(met))
	router.Get("/stream.mp3", handler.ServeHTTP)
	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler().ServeHTTP(w, r)
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	engine.Start(ctx)
	coordinator.Start()

	g.Go(func() error {
		log.Info("shoutstream starting",
			"listen_addr", cfg.ListenAddr,
			"library_name", cfg.LibraryName,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}

	engine.Shutdown()
	coordinator.Shutdown()
	log.Info("shoutstream stopped")
}

/*
buildSources assembles the configured set of library.Source
collaborators: an RSS store (always present so feeds can be managed
even with no filesystem or remote catalog configured), an optional
filesystem scan source (or set of sources loaded from
FSSCAN_ROOTS_FILE), and an optional remote HTTP catalog source.
*/
func buildSources(cfg config.Config, log *slog.Logger, rssStore *rss.Store) []library.Source {
	sources := []library.Source{rssStore}

	switch {
	case cfg.FsscanRootsFile != "":
		roots, err := fsscan.LoadRoots(cfg.FsscanRootsFile, nil)
		if err != nil {
			log.Error("failed to load fsscan roots file", "path", cfg.FsscanRootsFile, "error", err)
			break
		}
		for _, s := range roots {
			sources = append(sources, s)
		}
	case cfg.FsscanRoot != "":
		sources = append(sources, fsscan.New(cfg.FsscanRoot, nil))
	}

	if cfg.RemoteCatalogURL != "" {
		sources = append(sources, remote.New(cfg.RemoteCatalogURL, cfg.RemoteInsecureSkipVerify, nil))
	}

	return sources
}

/*
queueLookupFromDatabase adapts MemDatabase's media rows to
broadcast.QueueItemLookupFunc so the engine can resolve ICY
StreamTitle text for whatever track the player reports as current.
*/
func queueLookupFromDatabase(db *library.MemDatabase) broadcast.QueueItemLookupFunc {
	return func(trackID uint32) (title, artist string, ok bool) {
		return db.MediaTitleArtist(trackID)
	}
}
