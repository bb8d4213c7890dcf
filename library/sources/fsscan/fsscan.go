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
Package fsscan implements a library.Source that walks one or more
local directory trees, classifying each file it finds by extension and
upserting it as a media row.
*/
package fsscan

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/shoutstream/shoutstream/library"
)

/*
ExtContentTypes maps a lowercased file extension to its MIME content
type.
*/
var ExtContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".aac":  "audio/x-aac",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
}

/*
Source scans a local directory tree for audio files. Rescan and
MetaRescan both re-walk the whole tree; FullRescan is identical to
Rescan since the coordinator handles the destructive purge/restore
sequence around it.
*/
type Source struct {
	Root   string
	Logger *slog.Logger
}

/*
New builds a filesystem-scanning Source rooted at root.
*/
func New(root string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{Root: root, Logger: logger}
}

func (s *Source) Name() string { return "fsscan:" + s.Root }

func (s *Source) Init() error {
	if s.Root == "" {
		return fmt.Errorf("fsscan: empty root path")
	}
	return nil
}

func (s *Source) Deinit() {}

func (s *Source) InitScan(c *library.Coordinator) error   { return s.walk(c) }
func (s *Source) Rescan(c *library.Coordinator) error     { return s.walk(c) }
func (s *Source) MetaRescan(c *library.Coordinator) error { return s.walk(c) }
func (s *Source) FullRescan(c *library.Coordinator) error { return s.walk(c) }

func (s *Source) walk(c *library.Coordinator) error {
	return filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.Logger.Warn("fsscan: walk error, skipping entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := ExtContentTypes[ext]; !ok {
			return nil
		}

		if _, err := c.MediaSave(library.MediaItem{Path: path, Title: filepath.Base(path)}); err != nil {
			s.Logger.Warn("fsscan: media save failed", "path", path, "error", err)
		}

		return nil
	})
}
