// Package stub is an in-memory radio used for dry runs and tests.
package stub

import (
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onlyTheOnionNews/drone-phone/internal/broadcast"
)

// maxOps bounds the recorded call sequence.
const maxOps = 256

// ErrAlreadyAdvertising is returned when Advertise is called while an advertisement is live.
var ErrAlreadyAdvertising = errors.New("advertisement already live")

// Op is a recorded radio call.
type Op string

const (
	OpAdvertise Op = "advertise"
	OpStop      Op = "stop"
)

// Advertisement is a recorded Advertise call.
type Advertisement struct {
	ServiceID uuid.UUID
	Data      []byte
	At        time.Time
}

// WithLogger sets the logger for the radio
func WithLogger(logger *slog.Logger) func(r *Radio) {
	return func(r *Radio) {
		r.logger = logger.With(slog.String("radio", "stub"))
	}
}

// WithStatus sets the initial radio status
func WithStatus(s broadcast.RadioStatus) func(r *Radio) {
	return func(r *Radio) {
		r.status = s
	}
}

// Radio implements broadcast.Advertiser in memory. It allows one live advertisement
// and keeps the last advertisements in a bounded log.
type Radio struct {
	mu     sync.Mutex
	status broadcast.RadioStatus
	live   bool
	txLog  ringBuffer
	ops    []Op

	advertiseErr error
	stopErr      error

	events chan broadcast.RadioStatus
	logger *slog.Logger
}

var _ broadcast.Advertiser = (*Radio)(nil)

// New creates a ready radio with a discard logger
func New(options ...func(r *Radio)) *Radio {
	r := Radio{
		status: broadcast.RadioReady,
		events: make(chan broadcast.RadioStatus, 8),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

func (r *Radio) Status() broadcast.RadioStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Radio) Advertise(serviceID uuid.UUID, serviceData []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.record(OpAdvertise)

	if r.advertiseErr != nil {
		return r.advertiseErr
	}
	if r.status != broadcast.RadioReady {
		return errors.New("radio " + r.status.String())
	}
	if r.live {
		return ErrAlreadyAdvertising
	}

	data := make([]byte, len(serviceData))
	copy(data, serviceData)
	r.txLog.push(Advertisement{ServiceID: serviceID, Data: data, At: time.Now()})
	r.live = true

	r.logger.Debug("advertising",
		slog.String("serviceID", serviceID.String()),
		slog.String("data", hex.EncodeToString(data)),
	)

	return nil
}

func (r *Radio) StopAdvertising() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.record(OpStop)

	if r.stopErr != nil {
		return r.stopErr
	}
	r.live = false
	return nil
}

func (r *Radio) PowerEvents() <-chan broadcast.RadioStatus {
	return r.events
}

// SetStatus changes the radio status and reports it on the power events channel.
// A radio that is not ready drops its live advertisement.
func (r *Radio) SetStatus(s broadcast.RadioStatus) {
	r.mu.Lock()
	r.status = s
	if s != broadcast.RadioReady {
		r.live = false
	}
	r.mu.Unlock()

	r.logger.Info("radio status changed", slog.String("status", s.String()))

	select {
	case r.events <- s:
	default:
		r.logger.Warn("power event dropped", slog.String("status", s.String()))
	}
}

// FailAdvertise makes every following Advertise call return err. A nil err clears it.
func (r *Radio) FailAdvertise(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advertiseErr = err
}

// FailStop makes every following StopAdvertising call return err. A nil err clears it.
func (r *Radio) FailStop(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopErr = err
}

// Live reports whether an advertisement is on air.
func (r *Radio) Live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// TxLog returns copies of the recorded advertisements, oldest first.
func (r *Radio) TxLog() []Advertisement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txLog.snapshot()
}

func (r *Radio) record(op Op) {
	if len(r.ops) == maxOps {
		r.ops = r.ops[1:]
	}
	r.ops = append(r.ops, op)
}

// Ops returns the sequence of radio calls, failed ones included.
func (r *Radio) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}
