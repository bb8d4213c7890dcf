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
Package transcode wraps a PCM-to-MP3 encoding pipeline. The value of
this package lives in giving the Broadcast Engine a single narrow
interface to depend on (Codec), not in the encoding itself - see
Engine in package broadcast for the fan-out and ICY splicing logic.
*/
package transcode

import (
	"bytes"
	"errors"

	"github.com/shoutstream/shoutstream"
)

/*
ErrUnsupported is returned by Setup when the input quality cannot be
encoded. The broadcast engine treats this as sticky: it forces all
future stream requests to fail with 404 until the next successful
Setup.
*/
var ErrUnsupported = errors.New("transcode: unsupported input quality")

/*
OutputQuality is the fixed output quality of every Codec shipped with
this package: 44100Hz, 16 bits per sample, stereo.
*/
var OutputQuality = shoutstream.MediaQuality{SampleRateHz: 44100, BitsPerSample: 16, Channels: 2}

/*
EncoderContext is an opaque handle returned by Setup and passed back
into Encode/Teardown. Its concrete type is owned by the Codec
implementation.
*/
type EncoderContext interface{}

/*
Codec is the collaborator interface the Broadcast Engine depends on.
Implementations are stateless with respect to the engine: all
per-quality state lives behind the returned EncoderContext, which the
engine tears down and rebuilds whenever the incoming quality changes.
*/
type Codec interface {

	/*
		Setup builds an encoding pipeline for the given input quality,
		writing to OutputQuality. Returns ErrUnsupported if the input
		quality cannot be handled.
	*/
	Setup(input shoutstream.MediaQuality) (EncoderContext, error)

	/*
		Encode appends encoded bytes for the given PCM buffer to out and
		returns the number of bytes appended.
	*/
	Encode(ctx EncoderContext, pcm []byte, samples int, out *bytes.Buffer) (int, error)

	/*
		Teardown releases any resources held by ctx. ctx must not be used
		afterwards.
	*/
	Teardown(ctx EncoderContext)
}
