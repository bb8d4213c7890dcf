/*
 * Shoutstream
 *
 * Copyright 2024 Shoutstream contributors. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package broadcast

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shoutstream/shoutstream"
	"github.com/shoutstream/shoutstream/icy"
	"github.com/shoutstream/shoutstream/transcode"
)

/*
ErrUnsupported is returned by AddSession when the transcoder cannot
encode the current input quality. Handler translates this to HTTP 404.
*/
var ErrUnsupported = transcode.ErrUnsupported

/*
ErrTornDown is returned by AddSession once the engine has been shut
down.
*/
var ErrTornDown = errors.New("broadcast: engine has been shut down")

/*
ErrCapacity is returned by AddSession when MaxSessions is reached: the
engine exposes an explicit, configurable session cap rather than
accepting an unbounded number of concurrent clients.
*/
var ErrCapacity = errors.New("broadcast: session capacity reached")

/*
pcmChannelDepth is the capacity of the audio pipe. Writes beyond this
depth are dropped, never blocked - see Engine.Write.
*/
const pcmChannelDepth = 32

/*
silenceFrameSamples is the chunk size silence is generated in while
paused, matched to a realistic 44100Hz read size.
*/
const silenceFrameSamples = 352

/*
State is a broadcast Engine's lifecycle state.
*/
type State int32

const (
	StateUninitialized State = iota
	StateIdle
	StateActive
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

/*
PlayState is the player's playback state as observed by the engine.
*/
type PlayState int

const (
	PlayStateStopped PlayState = iota
	PlayStatePlaying
	PlayStatePaused
)

/*
PlayerSnapshot is the last observed (current_track_id, play_state)
pair. It is refreshed only on the engine's consumer goroutine.
*/
type PlayerSnapshot struct {
	CurrentTrackID uint32
	State          PlayState
}

/*
PlayerStatusFunc fetches the current PlayerSnapshot from whatever owns
playback state. It must be safe to call from the engine's consumer
goroutine only; the engine never calls it concurrently with itself.
*/
type PlayerStatusFunc func() PlayerSnapshot

/*
QueueItemLookupFunc resolves a queued track ID to its title and
artist, used to build the ICY title.
*/
type QueueItemLookupFunc func(trackID uint32) (title, artist string, ok bool)

/*
Metrics is the optional observability sink an Engine reports to.
Implementations are expected to be safe for concurrent use.
*/
type Metrics interface {
	SetActiveSessions(n int)
	SetICYSessions(n int)
	AddBytesSent(n int)
	AddEncodedBytes(n int)
}

/*
Config configures a new Engine.
*/
type Config struct {
	Codec        transcode.Codec
	PlayerStatus PlayerStatusFunc
	QueueLookup  QueueItemLookupFunc
	Logger       *slog.Logger
	Metrics      Metrics

	// MaxSessions caps the number of concurrent sessions; 0 means
	// unlimited.
	MaxSessions int
}

/*
Engine is the MP3 broadcast engine: it owns the encoder, the shared
output buffer, the session registry, and the timers, and is the single
point of truth for the engine's lifecycle.
*/
type Engine struct {
	codec        transcode.Codec
	playerStatus PlayerStatusFunc
	queueLookup  QueueItemLookupFunc
	logger       *slog.Logger
	metrics      Metrics
	maxSessions  int

	registry *SessionRegistry

	// Cross-goroutine channels: bounded, drop-on-full, never block the
	// producer.
	pcmCh      chan shoutstream.PcmFrame
	qualityCh  chan shoutstream.MediaQuality
	activityCh chan bool

	currentQuality atomic.Pointer[shoutstream.MediaQuality] // hint read by the producer, best-effort
	sessionCount   atomic.Int32                             // unsynchronized fast-path counter
	notSupported   atomic.Bool
	playerChanged  atomic.Bool
	state          atomic.Int32

	closed  chan struct{}
	cancel  context.CancelFunc
	stopped chan struct{}

	// Consumer-goroutine-only state - never touched from any other
	// goroutine, so it needs no synchronization.
	encCtx          transcode.EncoderContext
	declaredQuality shoutstream.MediaQuality
	outBuf          bytes.Buffer
	lastSnapshot    PlayerSnapshot
	icyTitle        string
}

/*
NewEngine creates an Engine in the Uninitialized state. Call Start to
begin the consumer goroutine.
*/
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		codec:        cfg.Codec,
		playerStatus: cfg.PlayerStatus,
		queueLookup:  cfg.QueueLookup,
		logger:       logger,
		metrics:      cfg.Metrics,
		maxSessions:  cfg.MaxSessions,
		registry:     NewSessionRegistry(),
		pcmCh:        make(chan shoutstream.PcmFrame, pcmChannelDepth),
		qualityCh:    make(chan shoutstream.MediaQuality, 1),
		activityCh:   make(chan bool, 1),
		closed:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	e.state.Store(int32(StateUninitialized))

	return e
}

/*
State returns the engine's current lifecycle state.
*/
func (e *Engine) State() State {
	return State(e.state.Load())
}

/*
NotSupported reports whether the transcoder is currently unable to
encode: new stream requests should be rejected with 404 while true.
*/
func (e *Engine) NotSupported() bool {
	return e.notSupported.Load()
}

/*
Start launches the engine's consumer goroutine. It returns
immediately; the goroutine runs until ctx is cancelled or Shutdown is
called.
*/
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.state.Store(int32(StateIdle))

	go func() {
		defer close(e.stopped)
		e.run(runCtx)
	}()
}

/*
Shutdown tears the engine down: any state -> TornDown. It stops the
consumer goroutine, force-closes every session, and releases the
encoder.
*/
func (e *Engine) Shutdown() {
	e.state.Store(int32(StateTornDown))

	select {
	case <-e.closed:
	default:
		close(e.closed)
	}

	if e.cancel != nil {
		e.cancel()
		<-e.stopped
	}

	e.registry.DrainAll(func(s *StreamingSession) {
		e.logger.Info("closing session on engine shutdown", "remote", s.RemoteAddr())
	})
	e.sessionCount.Store(0)

	if e.encCtx != nil {
		e.codec.Teardown(e.encCtx)
		e.encCtx = nil
	}
}

/*
AddSession registers a new client. Callers should check NotSupported
before calling AddSession so a 404 can be returned without ever
touching the registry.
*/
func (e *Engine) AddSession(s *StreamingSession) error {
	if e.notSupported.Load() {
		return ErrUnsupported
	}
	if State(e.state.Load()) == StateTornDown {
		return ErrTornDown
	}
	if e.maxSessions > 0 && int(e.sessionCount.Load()) >= e.maxSessions {
		return ErrCapacity
	}

	count, becameActive := e.registry.Insert(s)
	e.sessionCount.Store(int32(count))
	e.reportSessionMetrics()

	if becameActive {
		e.notifyActivity(true)
	}

	return nil
}

/*
RemoveSession unregisters a client, e.g. on transport disconnect.
Removal is racy by design: fanOut's failed-write cleanup and the
handler's own disconnect path can both call this for the same session,
so a not-found result only gets logged the first time within the dedup
window.
*/
func (e *Engine) RemoveSession(s *StreamingSession) {
	alreadySeen := e.registry.SeenRecently(s.RemoteAddr())

	count, becameEmpty, found := e.registry.RemoveByHandle(s)
	if !found {
		if !alreadySeen {
			e.logger.Warn("close callback for unknown session", "remote", s.RemoteAddr())
		}
		return
	}

	e.sessionCount.Store(int32(count))
	e.reportSessionMetrics()

	if becameEmpty {
		e.notifyActivity(false)
	}
}

func (e *Engine) reportSessionMetrics() {
	if e.metrics == nil {
		return
	}
	e.metrics.SetActiveSessions(e.registry.Len())
	e.metrics.SetICYSessions(e.registry.ICYCount())
}

/*
notifyActivity tells the consumer goroutine whether sessions are
present, so it can arm or disarm its timers and move between the Idle
and Active states. The channel holds only the latest value: a pending
stale value is drained before the new one is sent so the consumer
never falls behind.
*/
func (e *Engine) notifyActivity(active bool) {
	select {
	case <-e.activityCh:
	default:
	}
	select {
	case e.activityCh <- active:
	default:
	}
}

/*
MarkPlayerChanged is the player's change-listener callback, invoked
whenever playback state changes so the consumer goroutine knows to
refresh its snapshot. It is safe to call from any goroutine.
*/
func (e *Engine) MarkPlayerChanged() {
	e.playerChanged.Store(true)
}

/*
Write is the producer-side entry point: called from the player
goroutine with a PCM frame at the given quality. It never blocks: both
the quality-change signal and the PCM payload are sent over bounded
channels with drop-on-full semantics.
*/
func (e *Engine) Write(quality shoutstream.MediaQuality, pcm shoutstream.PcmFrame) {
	// Fast-path exit: unsynchronized read is acceptable here; the worst
	// case is a discarded frame during teardown.
	if e.sessionCount.Load() == 0 {
		return
	}

	select {
	case <-e.closed:
		// EBADF equivalent: teardown in progress, silently ignored.
		return
	default:
	}

	if last := e.currentQuality.Load(); last == nil || *last != quality {
		select {
		case e.qualityCh <- quality:
			q := quality
			e.currentQuality.Store(&q)
		default:
			// Leave currentQuality stale so the next Write re-detects the
			// mismatch and retries the send instead of losing it forever.
			e.logger.Warn("quality-change pipe full, dropping")
		}
	}

	select {
	case e.pcmCh <- pcm:
	default:
		e.logger.Warn("audio pipe full, skipping write")
	}
}

/*
run is the engine's single consumer goroutine: one select loop driving
the quality-change event, the audio event, the silence timer, and
timer arm/disarm requests.
*/
func (e *Engine) run(ctx context.Context) {
	var ticker *time.Ticker
	var tickerC <-chan time.Time

	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	setActive := func(active bool) {
		if active && ticker == nil {
			ticker = time.NewTicker(time.Second)
			tickerC = ticker.C
			e.state.CompareAndSwap(int32(StateIdle), int32(StateActive))
		} else if !active && ticker != nil {
			ticker.Stop()
			ticker = nil
			tickerC = nil
			if State(e.state.Load()) != StateTornDown {
				e.state.Store(int32(StateIdle))
			}
		}
	}

	// applyPending handles any queued activity or quality-change event
	// before audio is encoded, so the encoder for a new quality is built
	// before the PCM frame that follows it is encoded.
	applyPending := func() {
		for {
			select {
			case active := <-e.activityCh:
				setActive(active)
			case q := <-e.qualityCh:
				e.handleQualityChange(q)
			default:
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case active := <-e.activityCh:
			setActive(active)

		case q := <-e.qualityCh:
			e.handleQualityChange(q)

		case pcm := <-e.pcmCh:
			applyPending()
			e.refreshIfPlayerChanged()
			e.encodeAndFanOut(pcm)
			e.drainPendingPCM()

		case <-tickerC:
			e.refreshIfPlayerChanged()
			if e.lastSnapshot.State == PlayStatePaused {
				e.encodeAndFanOut(e.makeSilenceFrame())
			}
		}
	}
}

/*
drainPendingPCM encodes every PCM frame already queued without
blocking, so a burst of writes doesn't build up latency waiting for
individual select iterations.
*/
func (e *Engine) drainPendingPCM() {
	for {
		select {
		case pcm := <-e.pcmCh:
			e.encodeAndFanOut(pcm)
		default:
			return
		}
	}
}

func (e *Engine) makeSilenceFrame() shoutstream.PcmFrame {
	q := e.declaredQuality
	if q.IsZero() {
		q = transcode.OutputQuality
	}

	return make(shoutstream.PcmFrame, silenceFrameSamples*q.BytesPerFrame())
}

/*
handleQualityChange tears down the existing encoder and rebuilds it
for q. On failure it marks the stream unsupported and force-closes
every session.
*/
func (e *Engine) handleQualityChange(q shoutstream.MediaQuality) {
	if e.encCtx != nil {
		e.codec.Teardown(e.encCtx)
		e.encCtx = nil
	}

	ctx, err := e.codec.Setup(q)
	if err != nil {
		e.logger.Error("encoder setup failed, stream unsupported", "quality", q.String(), "error", err)
		e.notSupported.Store(true)
		e.forceIdle()
		return
	}

	e.encCtx = ctx
	e.declaredQuality = q
	e.notSupported.Store(false)
}

/*
forceIdle implements the not_supported -> Idle transition: every
session is force-closed.
*/
func (e *Engine) forceIdle() {
	e.registry.DrainAll(func(s *StreamingSession) {
		e.logger.Info("force closing session, encoder unsupported", "remote", s.RemoteAddr())
	})
	e.sessionCount.Store(0)
	e.reportSessionMetrics()
	e.notifyActivity(false)
}

/*
refreshIfPlayerChanged clears the player-changed flag and, if it was
set, re-fetches the PlayerSnapshot and, if the track changed, the ICY
title.
*/
func (e *Engine) refreshIfPlayerChanged() {
	if !e.playerChanged.CompareAndSwap(true, false) {
		return
	}
	if e.playerStatus == nil {
		return
	}

	prev := e.lastSnapshot
	e.lastSnapshot = e.playerStatus()

	if e.lastSnapshot.CurrentTrackID != prev.CurrentTrackID {
		e.refreshICYTitle(e.lastSnapshot.CurrentTrackID)
	}
}

func (e *Engine) refreshICYTitle(trackID uint32) {
	if e.queueLookup == nil {
		e.icyTitle = ""
		return
	}

	title, artist, ok := e.queueLookup(trackID)
	if !ok {
		e.icyTitle = ""
		return
	}

	switch {
	case title != "" && artist != "":
		e.icyTitle = title + " – " + artist
	case title != "":
		e.icyTitle = title
	case artist != "":
		e.icyTitle = artist
	default:
		e.icyTitle = ""
	}
}

/*
encodeAndFanOut encodes pcm into the shared output buffer and, if any
bytes were produced, fans them out to every session.
*/
func (e *Engine) encodeAndFanOut(pcm shoutstream.PcmFrame) {
	if e.notSupported.Load() || e.encCtx == nil {
		return
	}

	samples := e.declaredQuality.Samples(len(pcm))

	n, err := e.codec.Encode(e.encCtx, pcm, samples, &e.outBuf)
	if err != nil {
		e.logger.Warn("encode error, resuming on next frame", "error", err)
		return
	}
	if n == 0 {
		return
	}

	if e.metrics != nil {
		e.metrics.AddEncodedBytes(n)
	}

	e.fanOut()
}

/*
fanOut sends the accumulated encoded bytes to every session, splicing
ICY metadata at the correct byte offset per session. The shared buffer
is read non-destructively by every session via Bytes() (a zero-copy
peek) and reset once after the whole pass, so every session shares one
buffer without needing a special case for whichever session happens to
finish last.
*/
func (e *Engine) fanOut() {
	data := e.outBuf.Bytes()
	if len(data) == 0 {
		return
	}

	var failed []*StreamingSession
	visited := false
	sentBytes := 0

	e.registry.Iterate(func(s *StreamingSession, isLast bool) {
		visited = true

		if err := e.sendToSession(s, data); err != nil {
			failed = append(failed, s)
			return
		}
		sentBytes += len(data)
	})

	e.outBuf.Reset()

	if !visited {
		return
	}

	if e.metrics != nil && sentBytes > 0 {
		e.metrics.AddBytesSent(sentBytes)
	}

	for _, s := range failed {
		e.RemoveSession(s)
	}
}

/*
sendToSession implements the per-session ICY splice math: let L =
len(data), S = session.bytesSent. If ICY is enabled and S+L overflows
icy.MetaInt, the metablock is spliced in at the aligned boundary and
bytesSent is set to the overflow; otherwise the chunk is sent as-is and
bytesSent accumulates.
*/
func (e *Engine) sendToSession(s *StreamingSession, data []byte) error {
	l := uint64(len(data))

	if s.icy {
		total := s.bytesSent + l
		if total > icy.MetaInt {
			overflow := total % icy.MetaInt
			splitAt := l - overflow

			meta := icy.Format(e.icyTitle)
			chunk := make([]byte, 0, len(data)+len(meta))
			chunk = append(chunk, data[:splitAt]...)
			chunk = append(chunk, meta...)
			chunk = append(chunk, data[splitAt:]...)

			if err := s.write(chunk); err != nil {
				return err
			}
			s.bytesSent = overflow
			return nil
		}
	}

	if err := s.write(data); err != nil {
		return err
	}
	s.bytesSent += l

	return nil
}
