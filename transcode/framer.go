/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package transcode

import (
	"bytes"
	"encoding/binary"

	"github.com/shoutstream/shoutstream"
)

/*
frameSampleCount is the number of stereo samples buffered per emitted
frame, matching the sample count of a real MPEG-1 Layer III frame at
44100Hz so downstream consumers see frame boundaries at realistic
intervals.
*/
const frameSampleCount = 1152

/*
frameHeader is a fixed 4-byte MPEG audio frame sync matching MPEG-1
Layer III, 128kbps, 44100Hz, stereo, no CRC. PCMFramer does not
perform real MPEG compression; the header exists so the emitted byte
stream has the frame-boundary shape downstream tooling expects from an
MP3 stream.
*/
var frameHeader = [4]byte{0xFF, 0xFB, 0x90, 0x00}

/*
PCMFramer is the default Codec shipped with this package. It converts
16/24/32-bit PCM at any channel count into 16-bit stereo samples at the
package's fixed OutputQuality and wraps them in MPEG-shaped frame
headers. It performs no perceptual compression - no MP3 encoder is
vendored, so clients receive PCM audio dressed in MP3 framing rather
than a genuinely compressed stream.
*/
type PCMFramer struct{}

type pcmFramerCtx struct {
	input   shoutstream.MediaQuality
	pending []byte // buffered stereo 16-bit LE bytes not yet forming a full frame
}

/*
Setup validates the input quality and returns a fresh encoder context.
*/
func (PCMFramer) Setup(input shoutstream.MediaQuality) (EncoderContext, error) {
	switch input.BitsPerSample {
	case 16, 24, 32:
	default:
		return nil, ErrUnsupported
	}

	if input.Channels < 1 {
		return nil, ErrUnsupported
	}

	return &pcmFramerCtx{input: input}, nil
}

/*
Encode converts pcm (samples frames of input.Channels each) to stereo
16-bit samples, buffers them, and emits any complete frames to out.
*/
func (PCMFramer) Encode(ectx EncoderContext, pcm []byte, samples int, out *bytes.Buffer) (int, error) {
	ctx, ok := ectx.(*pcmFramerCtx)
	if !ok || ctx == nil {
		return 0, ErrUnsupported
	}

	stereo := downmixToStereo16(pcm, samples, ctx.input)
	ctx.pending = append(ctx.pending, stereo...)

	written := 0
	const bytesPerFrame = frameSampleCount * 2 * 2 // 2 channels * 2 bytes

	for len(ctx.pending) >= bytesPerFrame {
		out.Write(frameHeader[:])
		out.Write(ctx.pending[:bytesPerFrame])
		written += len(frameHeader) + bytesPerFrame

		ctx.pending = ctx.pending[bytesPerFrame:]
	}

	return written, nil
}

/*
Teardown drops the encoder context's buffered state.
*/
func (PCMFramer) Teardown(ectx EncoderContext) {
	if ctx, ok := ectx.(*pcmFramerCtx); ok {
		ctx.pending = nil
	}
}

/*
downmixToStereo16 converts samples frames of pcm, encoded at q, into
16-bit little-endian stereo PCM. Mono is duplicated to both channels;
more than two channels are truncated to the first two.
*/
func downmixToStereo16(pcm []byte, samples int, q shoutstream.MediaQuality) []byte {
	bytesPerSample := q.BitsPerSample / 8
	frameSize := bytesPerSample * q.Channels

	out := make([]byte, 0, samples*4)

	for i := 0; i < samples; i++ {
		off := i * frameSize
		if off+frameSize > len(pcm) {
			break
		}

		left := readSample(pcm[off:off+bytesPerSample], q.BitsPerSample)

		right := left
		if q.Channels > 1 {
			roff := off + bytesPerSample
			right = readSample(pcm[roff:roff+bytesPerSample], q.BitsPerSample)
		}

		out = binary.LittleEndian.AppendUint16(out, uint16(left))
		out = binary.LittleEndian.AppendUint16(out, uint16(right))
	}

	return out
}

/*
readSample decodes one little-endian signed PCM sample of the given
bit depth and rescales it to a 16-bit signed sample.
*/
func readSample(b []byte, bits int) int16 {
	switch bits {
	case 16:
		return int16(binary.LittleEndian.Uint16(b))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xFFFFFF)
		}
		return int16(v >> 8)
	case 32:
		v := int32(binary.LittleEndian.Uint32(b))
		return int16(v >> 16)
	default:
		return 0
	}
}
