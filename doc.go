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
Package shoutstream contains the shared types of the broadcast and
library coordination core of a home media server.

Broadcast

The broadcast subsystem (package broadcast) accepts raw PCM frames from
a media player, transcodes them to MP3 (package transcode) and fans the
encoded bytes out to any number of concurrently connected HTTP clients,
interleaving SHOUTcast ICY metadata (package icy) on request.

Library

The library subsystem (package library) owns a dedicated goroutine that
sequences scans across a set of pluggable Source implementations
(package library/sources/...), serializes playlist and queue mutations,
and debounces database-change notifications.
*/
package shoutstream

/*
ProductVersion is the current version of Shoutstream, reported in the
streaming response's Server header.
*/
const ProductVersion = "1.0.0"
