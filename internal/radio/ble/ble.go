// Package ble advertises through the BlueZ daemon of the host.
package ble

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onlyTheOnionNews/drone-phone/internal/broadcast"
)

const (
	// DefaultInterval is the advertising interval requested from the controller.
	DefaultInterval = 100 * time.Millisecond

	// DefaultAdapter is the BlueZ adapter used unless WithAdapter says otherwise.
	DefaultAdapter = "hci0"
)

// ErrNotEnabled is returned when the adapter cannot be reached.
var ErrNotEnabled = errors.New("bluetooth adapter not enabled")

// WithLogger sets the logger for the radio
func WithLogger(logger *slog.Logger) func(r *Radio) {
	return func(r *Radio) {
		r.logger = logger.With(slog.String("radio", "ble"))
	}
}

// WithInterval sets the advertising interval
func WithInterval(d time.Duration) func(r *Radio) {
	return func(r *Radio) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithAdapter selects the adapter by its BlueZ name, such as hci1
func WithAdapter(id string) func(r *Radio) {
	return func(r *Radio) {
		if id != "" {
			r.adapterID = id
		}
	}
}

// Radio implements broadcast.Advertiser on a BlueZ adapter.
type Radio struct {
	adapterID string
	interval  time.Duration
	dial      func(id string) (adapter, error)

	mu          sync.Mutex
	adapter     adapter
	status      broadcast.RadioStatus
	advertising bool

	wg     sync.WaitGroup
	events chan broadcast.RadioStatus
	logger *slog.Logger
}

var _ broadcast.Advertiser = (*Radio)(nil)

// New creates a radio with a discard logger. The adapter is opened on first use.
func New(options ...func(r *Radio)) *Radio {
	r := Radio{
		adapterID: DefaultAdapter,
		interval:  DefaultInterval,
		dial:      dialBlueZ,
		status:    broadcast.RadioUnsupported,
		events:    make(chan broadcast.RadioStatus, 4),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Status opens the adapter if needed and reads its power state.
func (r *Radio) Status() broadcast.RadioStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.openLocked(); err != nil {
		r.logger.Warn("bluetooth unavailable", slog.String("error", err.Error()))
		return r.status
	}

	powered, err := r.adapter.Powered()
	if err != nil {
		r.logger.Warn("reading adapter state failed", slog.String("error", err.Error()))
		return r.status
	}
	r.status = statusOf(powered)

	return r.status
}

func (r *Radio) Advertise(serviceID uuid.UUID, serviceData []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.openLocked(); err != nil {
		return err
	}

	id := serviceID.String()
	err := r.adapter.Advertise(advertisement{
		ServiceUUIDs: []string{id},
		ServiceData:  map[string][]byte{id: serviceData},
		Interval:     r.interval,
	})
	if err != nil {
		r.checkPowerLocked()
		return fmt.Errorf("starting advertisement: %w", err)
	}
	r.advertising = true

	return nil
}

func (r *Radio) StopAdvertising() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.adapter == nil || !r.advertising {
		return nil
	}
	r.advertising = false

	if err := r.adapter.StopAdvertising(); err != nil {
		return fmt.Errorf("stopping advertisement: %w", err)
	}
	return nil
}

func (r *Radio) PowerEvents() <-chan broadcast.RadioStatus {
	return r.events
}

// Close withdraws the advertisement and releases the adapter.
func (r *Radio) Close() error {
	r.mu.Lock()
	a := r.adapter
	r.adapter = nil
	r.advertising = false
	r.status = broadcast.RadioUnsupported
	r.mu.Unlock()

	if a == nil {
		return nil
	}

	err := a.Close()
	r.wg.Wait()

	return err
}

func (r *Radio) openLocked() error {
	if r.adapter != nil {
		return nil
	}

	a, err := r.dial(r.adapterID)
	if err != nil {
		r.status = broadcast.RadioUnsupported
		return fmt.Errorf("%w: %w", ErrNotEnabled, err)
	}

	r.adapter = a
	r.logger.Info("bluetooth adapter opened", slog.String("adapter", r.adapterID))

	r.wg.Add(1)
	go r.watch(a.PoweredChanges())

	return nil
}

// watch follows the power state of the adapter until it is closed.
func (r *Radio) watch(changes <-chan bool) {
	defer r.wg.Done()

	for powered := range changes {
		r.mu.Lock()
		r.setStatusLocked(statusOf(powered))
		r.mu.Unlock()
	}
}

// checkPowerLocked reads the power state after a failed advertisement, so a
// radio switched off between two frames is reported even if the change
// notification was missed.
func (r *Radio) checkPowerLocked() {
	powered, err := r.adapter.Powered()
	if err != nil {
		r.logger.Warn("reading adapter state failed", slog.String("error", err.Error()))
		return
	}
	r.setStatusLocked(statusOf(powered))
}

func (r *Radio) setStatusLocked(status broadcast.RadioStatus) {
	if status == r.status {
		return
	}
	r.status = status
	if status != broadcast.RadioReady {
		// BlueZ drops registered advertisements on power off
		r.advertising = false
	}

	r.logger.Info("bluetooth adapter state changed", slog.String("status", status.String()))

	select {
	case r.events <- status:
	default:
		r.logger.Warn("power event dropped", slog.String("status", status.String()))
	}
}

func statusOf(powered bool) broadcast.RadioStatus {
	if powered {
		return broadcast.RadioReady
	}
	return broadcast.RadioPoweredOff
}
