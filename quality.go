/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package shoutstream

import "fmt"

/*
MediaQuality describes the sample rate, bit depth and channel count of
a PCM stream. Two qualities are equal iff all three fields match.
*/
type MediaQuality struct {
	SampleRateHz  int
	BitsPerSample int // one of 16, 24, 32
	Channels      int
}

/*
String renders the quality as "<rate>Hz/<bits>bit/<channels>ch".
*/
func (q MediaQuality) String() string {
	return fmt.Sprintf("%dHz/%dbit/%dch", q.SampleRateHz, q.BitsPerSample, q.Channels)
}

/*
IsZero returns true if the quality has never been set.
*/
func (q MediaQuality) IsZero() bool {
	return q.Channels == 0
}

/*
BytesPerFrame returns the number of bytes in a single sample frame -
one sample per channel - under this quality.
*/
func (q MediaQuality) BytesPerFrame() int {
	return q.Channels * q.BitsPerSample / 8
}

/*
Samples returns the number of sample frames represented by a PCM
buffer of the given length under this quality. Returns 0 if
BytesPerFrame is 0.
*/
func (q MediaQuality) Samples(byteLen int) int {
	if bpf := q.BytesPerFrame(); bpf > 0 {
		return byteLen / bpf
	}
	return 0
}

/*
PcmFrame is an opaque block of raw PCM audio. Its length must equal
samples * quality.BytesPerFrame() under the quality it was produced
with.
*/
type PcmFrame []byte
