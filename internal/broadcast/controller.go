// Package broadcast runs a Direct Remote ID broadcast session: one message kind per
// tick, pushed to the radio as a non-connectable advertisement.
package broadcast

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/onlyTheOnionNews/drone-phone/internal/auth"
	"github.com/onlyTheOnionNews/drone-phone/internal/remoteid"
)

// DefaultInterval is the time between two frames.
const DefaultInterval = time.Second

// State is the controller lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateBroadcasting
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateBroadcasting:
		return "broadcasting"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// EventKind identifies a session event.
type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventStopped
	EventRadioLost
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventRadioLost:
		return "radio-lost"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is delivered to the event handler on session transitions.
type Event struct {
	Kind   EventKind
	Time   time.Time
	Status RadioStatus // radio status for EventRadioLost
	Err    error       // ErrRadioPoweredOff for EventRadioLost
}

// Stats is a point in time view of the controller counters.
type Stats struct {
	State             State
	SessionStart      time.Time // zero when idle
	FramesSent        uint64
	FramesSkipped     uint64
	AdvertiseFailures uint64
	SigningFailures   uint64
}

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) func(c *Controller) {
	return func(c *Controller) {
		c.logger = logger.With(slog.String("component", "broadcast"))
	}
}

// WithInterval sets the time between two frames
func WithInterval(d time.Duration) func(c *Controller) {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock replaces the wall clock used to pick the message kind and sign messages
func WithClock(clock func() time.Time) func(c *Controller) {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithEventHandler registers a callback for session events. The callback may run while
// the controller lock is held, so it must not block or call Start and Stop.
func WithEventHandler(fn func(Event)) func(c *Controller) {
	return func(c *Controller) {
		c.onEvent = fn
	}
}

// WithRegisterer registers the controller metrics with reg
func WithRegisterer(reg prometheus.Registerer) func(c *Controller) {
	return func(c *Controller) {
		c.metrics = newMetrics(reg)
	}
}

// Controller owns at most one broadcast session and is its only writer.
type Controller struct {
	radio Advertiser

	mu      sync.Mutex // serialises Start and Stop
	session *session
	state   atomic.Int32

	framesSent        atomic.Uint64
	framesSkipped     atomic.Uint64
	advertiseFailures atomic.Uint64
	signingFailures   atomic.Uint64

	interval time.Duration
	clock    func() time.Time
	onEvent  func(Event)
	metrics  *metrics
	logger   *slog.Logger
}

type session struct {
	snapshot *remoteid.Snapshot
	signer   *auth.Signer
	keyErr   error // why signer is nil although a key was supplied

	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	// owned by the session goroutine until done is closed
	advertising bool
	lost        bool
	lostStatus  RadioStatus
}

// NewController creates a controller for the given radio with a discard logger
func NewController(radio Advertiser, options ...func(c *Controller)) *Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Controller{
		radio:    radio,
		interval: DefaultInterval,
		clock:    time.Now,
		logger:   logger,
	}

	for _, option := range options {
		option(&c)
	}

	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}

	return &c
}

// Start begins broadcasting snap, stopping any live session first. The snapshot is
// copied; later changes to snap have no effect until Start is called again. The first
// frame is sent before Start returns. Cancelling ctx ends the session.
func (c *Controller) Start(ctx context.Context, snap *remoteid.Snapshot) error {
	if snap == nil {
		return ErrInvalidSnapshot
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stopLocked(); err != nil {
		return fmt.Errorf("stopping previous session: %w", err)
	}

	if err := statusError(c.radio.Status()); err != nil {
		c.logger.Warn("radio not usable", slog.String("error", err.Error()))
		return err
	}

	c.setState(StateStarting)

	s := c.newSession(snap)

	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)

	c.session = s
	c.setState(StateBroadcasting)
	c.metrics.sessions.Inc()

	c.logger.Info("broadcast started",
		slog.String("uasId", s.snapshot.Identity),
		slog.Duration("interval", c.interval),
		slog.Bool("signed", s.signer != nil),
	)
	c.emit(Event{Kind: EventStarted, Time: s.started})

	// first frame goes out before Start returns
	c.tick(s, c.clock())

	go func() {
		s.lost, s.lostStatus = c.run(runCtx, s)
		close(s.done)
		c.finish(s)
	}()

	return nil
}

// Stop ends the live session and waits until its goroutine has exited and the
// advertisement is off. Stop on an idle controller returns nil.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopLocked()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Stats returns the controller counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	var started time.Time
	if c.session != nil {
		started = c.session.started
	}
	c.mu.Unlock()

	return Stats{
		State:             c.State(),
		SessionStart:      started,
		FramesSent:        c.framesSent.Load(),
		FramesSkipped:     c.framesSkipped.Load(),
		AdvertiseFailures: c.advertiseFailures.Load(),
		SigningFailures:   c.signingFailures.Load(),
	}
}

func (c *Controller) newSession(snap *remoteid.Snapshot) *session {
	cp := deepcopy.Copy(*snap).(remoteid.Snapshot)

	s := &session{
		snapshot: &cp,
		started:  c.clock(),
		done:     make(chan struct{}),
	}

	if len(cp.PrivateKey) > 0 {
		signer, err := auth.NewSigner(cp.PrivateKey)
		if err != nil {
			c.logger.Warn("signing key rejected, authentication frames carry a placeholder",
				slog.String("error", err.Error()))
			s.keyErr = err
		}
		s.signer = signer
	}

	return s
}

// stopLocked must be called with c.mu held.
func (c *Controller) stopLocked() error {
	s := c.session
	if s == nil {
		return nil
	}

	c.setState(StateStopping)

	s.cancel()
	<-s.done
	c.session = nil

	var err error
	if s.advertising {
		if stopErr := c.radio.StopAdvertising(); stopErr != nil {
			c.countAdvertiseFailure()
			err = fmt.Errorf("%w: %w", ErrAdvertiseFailed, stopErr)
		}
		s.advertising = false
	}

	c.setState(StateIdle)
	c.ended(s, "stop")

	return err
}

// run ticks until ctx is done or the radio reports it can no longer advertise.
func (c *Controller) run(ctx context.Context, s *session) (bool, RadioStatus) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	power := c.radio.PowerEvents()

	for {
		select {
		case <-ctx.Done():
			return false, RadioReady
		case status, ok := <-power:
			if !ok {
				power = nil // radio stopped reporting
				continue
			}
			// events can be stale, the current status decides
			if status != RadioReady && c.radio.Status() != RadioReady {
				return true, status
			}
		case <-ticker.C:
			c.tick(s, c.clock())
		}
	}
}

// finish cleans up a session that ended on its own: radio power loss or a cancelled
// parent context. A session ended by Stop is already detached and reported.
func (c *Controller) finish(s *session) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	c.session = nil

	if s.advertising {
		if err := c.radio.StopAdvertising(); err != nil {
			c.logger.Debug("stop advertising after session end", slog.String("error", err.Error()))
		}
		s.advertising = false
	}
	c.setState(StateIdle)
	c.mu.Unlock()

	c.ended(s, "context done")
}

// ended reports the end of a session whose goroutine has exited. A lost radio
// is reported even when Stop detached the session first.
func (c *Controller) ended(s *session, reason string) {
	if s.lost {
		c.metrics.radioLost.Inc()
		c.logger.Warn("radio lost, broadcast stopped", slog.String("status", s.lostStatus.String()))
		c.emit(Event{Kind: EventRadioLost, Time: c.clock(), Status: s.lostStatus, Err: statusError(s.lostStatus)})
		return
	}

	c.logger.Info("broadcast stopped", slog.String("reason", reason))
	c.emit(Event{Kind: EventStopped, Time: c.clock()})
}

// tick encodes the frame scheduled for now and swaps it onto the radio.
func (c *Controller) tick(s *session, now time.Time) {
	kind := remoteid.KindAt(now)

	var signature []byte
	if kind == remoteid.KindAuthentication {
		signature = c.signature(s, now)
	}

	frame, err := remoteid.Encode(kind, s.snapshot, signature)
	if err != nil || frame.IsEmpty() {
		c.framesSkipped.Add(1)
		c.metrics.framesSkipped.WithLabelValues(kind.String()).Inc()
		c.logger.Warn("frame skipped", slog.String("kind", kind.String()), slog.Any("error", err))
		return
	}

	if s.advertising {
		if err := c.radio.StopAdvertising(); err != nil {
			c.countAdvertiseFailure()
			c.logger.Warn("error stopping advertisement",
				slog.String("kind", kind.String()),
				slog.String("error", err.Error()),
			)
			return
		}
		s.advertising = false
	}

	if err := c.radio.Advertise(remoteid.ServiceUUID, frame.Payload); err != nil {
		c.countAdvertiseFailure()
		c.logger.Warn("error starting advertisement",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.advertising = true

	c.framesSent.Add(1)
	c.metrics.framesSent.WithLabelValues(kind.String()).Inc()
	c.logger.Debug("frame sent",
		slog.String("kind", kind.String()),
		slog.String("payload", hex.EncodeToString(frame.Payload)),
	)
}

// signature returns the authentication signature for now, or the placeholder.
// A session without any key material sends the placeholder without counting
// a failure.
func (c *Controller) signature(s *session, now time.Time) []byte {
	sig, err := s.signer.SignOrPlaceholder(s.snapshot.Identity, now)
	if err == nil {
		return sig
	}

	switch {
	case s.signer != nil:
		c.countSigningFailure()
		c.logger.Warn("signing failed, sending placeholder", slog.String("error", err.Error()))
	case s.keyErr != nil:
		c.countSigningFailure()
	}
	return sig
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.state.Set(float64(s))
}

func (c *Controller) countAdvertiseFailure() {
	c.advertiseFailures.Add(1)
	c.metrics.advertiseFailures.Inc()
}

func (c *Controller) countSigningFailure() {
	c.signingFailures.Add(1)
	c.metrics.signingFailures.Inc()
}

func (c *Controller) emit(e Event) {
	if c.onEvent != nil {
		c.onEvent(e)
	}
}
