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
Package icy renders SHOUTcast/ICY in-band metadata blocks.

See http://www.smackfu.com/stuff/programming/shoutcast.html for the
wire format this package implements.
*/
package icy

import "fmt"

/*
MetaInt is the number of audio bytes between two ICY metadata blocks.
*/
const MetaInt = 8192

/*
MaxTitleLen is the maximum number of bytes of "StreamTitle='...';" text
that Format will emit; longer titles are truncated. 4080 = 255*16, the
largest payload a single length byte can address.
*/
const MaxTitleLen = 4080

/*
Format renders title into an ICY metadata block: one length byte n,
followed by n*16 bytes of payload. The payload is
"StreamTitle='<title>';" ASCII, zero-padded to the next 16-byte
boundary. An empty title yields the single byte 0x00 (no payload).
*/
func Format(title string) []byte {
	if title == "" {
		return []byte{0x00}
	}

	text := fmt.Sprintf("StreamTitle='%s';", title)

	if len(text) > MaxTitleLen {
		// Preserve the closing "';" so the payload still parses as a
		// terminated string once truncated.
		text = text[:MaxTitleLen-2] + "';"
	}

	blocks := byte((len(text) + 15) / 16)

	block := make([]byte, 1+int(blocks)*16)
	block[0] = blocks
	copy(block[1:], text)

	return block
}
