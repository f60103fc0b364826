package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/onlyTheOnionNews/drone-phone/internal/broadcast"
	"github.com/onlyTheOnionNews/drone-phone/internal/remoteid"
	"github.com/onlyTheOnionNews/drone-phone/internal/storage"
	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry"
)

// Broadcaster runs broadcast sessions. It is implemented by *broadcast.Controller.
type Broadcaster interface {
	Start(ctx context.Context, snap *remoteid.Snapshot) error
	Stop() error
	State() broadcast.State
	Stats() broadcast.Stats
}

type position struct {
	latitude  float64
	longitude float64
}

// WithLogger sets the logger for the beacon
func WithLogger(logger *slog.Logger) func(*Beacon) {
	return func(b *Beacon) {
		b.logger = logger.With(slog.String("component", "beacon"))
	}
}

// WithRefreshInterval sets how often telemetry is polled
func WithRefreshInterval(d time.Duration) func(*Beacon) {
	return func(b *Beacon) {
		if d > 0 {
			b.refreshInterval = d
		}
	}
}

// WithOperatorLocation sets where the operator position comes from. The
// latitude and longitude are used for OperatorFixed only.
func WithOperatorLocation(location OperatorLocation, latitude, longitude float64) func(*Beacon) {
	return func(b *Beacon) {
		b.operatorLocation = location
		b.operatorPosition = position{latitude: latitude, longitude: longitude}
	}
}

// WithRecorder stores every new measurement in the given flight session
func WithRecorder(store storage.Store, sessionID int64) func(*Beacon) {
	return func(b *Beacon) {
		b.recorder = store
		b.recordSession = sessionID
	}
}

// Beacon polls a telemetry provider and keeps the broadcast snapshot current,
// restarting the broadcast session whenever a newer measurement arrives.
type Beacon struct {
	broadcaster Broadcaster
	provider    telemetry.Provider
	template    remoteid.Snapshot

	logger          *slog.Logger
	refreshInterval time.Duration

	operatorLocation OperatorLocation
	operatorPosition position
	takeoff          *position

	recorder      storage.Store
	recordSession int64
	lastRecorded  time.Time

	lastStarted time.Time
	radioDown   bool
}

// NewBeacon creates a beacon broadcasting template enriched with telemetry from provider
func NewBeacon(broadcaster Broadcaster, provider telemetry.Provider, template remoteid.Snapshot, options ...func(*Beacon)) *Beacon {
	b := Beacon{
		broadcaster:      broadcaster,
		provider:         provider,
		template:         template,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		refreshInterval:  defaultRefreshInterval,
		operatorLocation: OperatorTakeoff,
	}

	for _, option := range options {
		option(&b)
	}

	return &b
}

// Run polls telemetry until ctx is done, then stops the broadcast.
func (b *Beacon) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.refreshInterval)
	defer ticker.Stop()

	b.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return b.shutdown()

		case <-ticker.C:
			b.refresh(ctx)
		}
	}
}

func (b *Beacon) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	t, err := b.provider.Latest(ctx)
	if err != nil {
		if errors.Is(err, telemetry.ErrNoTelemetry) {
			b.logger.Debug("waiting for telemetry")
		} else {
			b.logger.Warn("reading telemetry", slog.String("error", err.Error()))
		}
		return
	}
	if !t.HasFix() {
		b.logger.Debug("waiting for position fix")
		return
	}

	b.record(ctx, t)

	if !t.Timestamp.After(b.lastStarted) && b.broadcaster.State() != broadcast.StateIdle {
		return
	}

	if err = b.broadcaster.Start(ctx, b.snapshot(t)); err != nil {
		if errors.Is(err, broadcast.ErrRadioUnavailable) {
			if !b.radioDown {
				b.logger.Warn("radio unavailable, waiting", slog.String("error", err.Error()))
				b.radioDown = true
			}
			return
		}
		b.logger.Error("starting broadcast", slog.String("error", err.Error()))
		return
	}

	if b.radioDown {
		b.logger.Info("radio available again")
		b.radioDown = false
	}
	b.lastStarted = t.Timestamp
}

func (b *Beacon) record(ctx context.Context, t *telemetry.Telemetry) {
	if b.recorder == nil || !t.Timestamp.After(b.lastRecorded) {
		return
	}

	if _, err := b.recorder.StoreTelemetry(ctx, b.recordSession, t); err != nil {
		b.logger.Error("recording telemetry", slog.String("error", err.Error()))
		return
	}
	b.lastRecorded = t.Timestamp
}

// snapshot merges the identity template with a measurement that has a fix.
func (b *Beacon) snapshot(t *telemetry.Telemetry) *remoteid.Snapshot {
	snap := b.template

	snap.Latitude = *t.Latitude
	snap.Longitude = *t.Longitude
	snap.AltitudePressure = telemetry.Value(t.Altitude)
	if t.AltitudeGeodetic != nil {
		snap.AltitudeGeodetic = *t.AltitudeGeodetic
	} else {
		snap.AltitudeGeodetic = telemetry.Value(t.Altitude)
	}
	snap.Height = telemetry.Value(t.Height)
	snap.SpeedHorizontal = telemetry.Value(t.GroundSpeed)
	snap.SpeedVertical = telemetry.Value(t.VerticalSpeed)
	snap.Direction = telemetry.Value(t.GroundCourse)

	var op position
	switch b.operatorLocation {
	case OperatorLive:
		op = position{latitude: snap.Latitude, longitude: snap.Longitude}
	case OperatorFixed:
		op = b.operatorPosition
	default:
		if b.takeoff == nil {
			b.takeoff = &position{latitude: snap.Latitude, longitude: snap.Longitude}
		}
		op = *b.takeoff
	}
	snap.OperatorLocationType = b.operatorLocation.Code()
	snap.OperatorLatitude = op.latitude
	snap.OperatorLongitude = op.longitude

	return &snap
}

func (b *Beacon) shutdown() error {
	stats := b.broadcaster.Stats()
	err := b.broadcaster.Stop()

	attrs := []any{
		slog.String("framesSent", humanize.Comma(int64(stats.FramesSent))),
		slog.String("framesSkipped", humanize.Comma(int64(stats.FramesSkipped))),
		slog.String("advertiseFailures", humanize.Comma(int64(stats.AdvertiseFailures))),
	}
	if !stats.SessionStart.IsZero() {
		attrs = append(attrs, slog.String("sessionStarted", humanize.Time(stats.SessionStart)))
	}
	b.logger.Info("beacon stopped", attrs...)

	return err
}
