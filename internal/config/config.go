/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

// Package config loads shoutstream's environment-variable configuration
// surface, backed by a .env file when present.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory (or the
// given paths) and sets environment variables from it. A missing file
// is not fatal — callers fall back to real environment variables or the
// defaults passed to GetEnv/GetEnvInt/GetEnvBool.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the environment variable named by key, or fallback if
// it is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named
// by key, or fallback if it is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of the environment variable named
// by key, or fallback if it is unset, empty, or not a valid boolean.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// Config is the daemon's full runtime configuration, assembled from
// environment variables (LIBRARY_NAME, LIBRARY_FILESCAN_DISABLE,
// MPD_CLEAR_QUEUE_ON_STOP_DISABLE, and the transport/listener settings
// below).
type Config struct {
	// ListenAddr is the address the HTTP server binds, e.g. ":8080".
	ListenAddr string

	// LogLevel and LogFormat select the structured logger's verbosity
	// and encoding ("json" or "text").
	LogLevel  string
	LogFormat string

	// LibraryName is the ICY stream name advertised to clients and the
	// display name used in log lines.
	LibraryName string

	// LibraryFilescanDisable: when true, the post-scan cruft purge is
	// skipped for scan kinds other than full rescans and the initial
	// scan.
	LibraryFilescanDisable bool

	// MPDClearQueueOnStopDisable: when true, a full rescan leaves the
	// play queue intact instead of clearing it.
	MPDClearQueueOnStopDisable bool

	// FsscanRoot, if non-empty, configures a single filesystem scan
	// source rooted at this directory.
	FsscanRoot string

	// FsscanRootsFile, if non-empty, configures multiple filesystem
	// scan sources loaded from a JSON definition file (see
	// library/sources/fsscan.LoadRoots).
	FsscanRootsFile string

	// RemoteCatalogURL, if non-empty, configures a remote HTTP catalog
	// scan source.
	RemoteCatalogURL         string
	RemoteInsecureSkipVerify bool

	// MaxSessions caps concurrent streaming sessions; zero means
	// unlimited.
	MaxSessions int
}

// LoadConfig reads Load()'s .env file (ignoring a missing file) and builds a
// Config from environment variables, applying the documented defaults.
func LoadConfig() Config {
	_ = Load()

	return Config{
		ListenAddr:                 GetEnv("LISTEN_ADDR", ":8080"),
		LogLevel:                   GetEnv("LOG_LEVEL", "info"),
		LogFormat:                  GetEnv("LOG_FORMAT", "json"),
		LibraryName:                GetEnv("LIBRARY_NAME", "shoutstream"),
		LibraryFilescanDisable:     GetEnvBool("LIBRARY_FILESCAN_DISABLE", false),
		MPDClearQueueOnStopDisable: GetEnvBool("MPD_CLEAR_QUEUE_ON_STOP_DISABLE", false),
		FsscanRoot:                 GetEnv("FSSCAN_ROOT", ""),
		FsscanRootsFile:            GetEnv("FSSCAN_ROOTS_FILE", ""),
		RemoteCatalogURL:           GetEnv("REMOTE_CATALOG_URL", ""),
		RemoteInsecureSkipVerify:   GetEnvBool("REMOTE_INSECURE_SKIP_VERIFY", false),
		MaxSessions:                GetEnvInt("MAX_SESSIONS", 0),
	}
}
