/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package fsscan

import (
	"encoding/json"
	"log/slog"
	"os"

	"devt.de/krotik/common/stringutil"
)

/*
rootDef is one entry of a scan-root definition file: a directory to
walk.
*/
type rootDef struct {
	Root string `json:"root"`
}

/*
LoadRoots reads a JSON array of scan-root definitions from path and
returns one Source per entry. Definition files may contain C-style
comments; if a plain json.Unmarshal fails, the load is retried after
stripping them.
*/
func LoadRoots(path string, logger *slog.Logger) ([]*Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var defs []rootDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		raw = stringutil.StripCStyleComments(raw)
		if err := json.Unmarshal(raw, &defs); err != nil {
			return nil, err
		}
	}

	sources := make([]*Source, 0, len(defs))
	for _, d := range defs {
		if d.Root == "" {
			continue
		}
		sources = append(sources, New(d.Root, logger))
	}
	return sources, nil
}
