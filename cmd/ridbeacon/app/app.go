package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onlyTheOnionNews/drone-phone/internal/auth"
	"github.com/onlyTheOnionNews/drone-phone/internal/broadcast"
	"github.com/onlyTheOnionNews/drone-phone/internal/radio/ble"
	"github.com/onlyTheOnionNews/drone-phone/internal/radio/stub"
	"github.com/onlyTheOnionNews/drone-phone/internal/remoteid"
	"github.com/onlyTheOnionNews/drone-phone/internal/storage"
	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry"
	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry/feed"
)

const shutdownTimeout = 5 * time.Second

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	privateKey, err := loadPrivateKey(config.Auth.PrivateKeyFile, logger)
	if err != nil {
		return fmt.Errorf("failed to load private key: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	warnTruncated(&config.Identity, logger)

	radio, closeRadio := createRadio(&config.Radio, logger)
	defer closeRadio()

	controller := broadcast.NewController(
		radio,
		broadcast.WithLogger(logger),
		broadcast.WithInterval(config.Radio.Interval),
		broadcast.WithRegisterer(reg),
		broadcast.WithEventHandler(logEvents(logger)),
	)

	provider, closeProvider, err := createProvider(ctx, &config.Telemetry, &wg, logger)
	if err != nil {
		return fmt.Errorf("failed to create telemetry provider: %w", err)
	}
	defer closeProvider()

	options := []func(*Beacon){
		WithLogger(logger),
		WithRefreshInterval(config.Telemetry.RefreshInterval),
		WithOperatorLocation(config.Operator.Location, config.Operator.Latitude, config.Operator.Longitude),
	}

	if config.Telemetry.Record.Path != "" {
		store := storage.NewSqliteStore(config.Telemetry.Record.Path)
		defer store.Close()

		sessionID, err := store.CreateSession(ctx, config.Identity.UASID, string(config.Telemetry.Source), config.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create flight session: %w", err)
		}
		logger.Info("recording telemetry", slog.String("path", config.Telemetry.Record.Path), slog.Int64("sessionId", sessionID))

		options = append(options, WithRecorder(store, sessionID))
	}

	if config.Metrics.Listen != "" {
		stop := serveMetrics(config.Metrics.Listen, reg, logger)
		defer stop()
	}

	template := remoteid.Snapshot{
		Identity:    config.Identity.UASID,
		Description: config.Identity.Description,
		OperatorID:  config.Identity.OperatorID,
		Status:      *config.Identity.Status,
		Area:        config.Area,
		PrivateKey:  privateKey,
	}

	return NewBeacon(controller, provider, template, options...).Run(ctx)
}

// createRadio returns the advertiser and a function releasing it.
func createRadio(config *RadioConfig, logger *slog.Logger) (broadcast.Advertiser, func()) {
	if config.Driver == RadioStub {
		logger.Warn("using stub radio, nothing is transmitted")
		return stub.New(stub.WithLogger(logger)), func() {}
	}

	radio := ble.New(
		ble.WithLogger(logger),
		ble.WithAdapter(config.Adapter),
		ble.WithInterval(config.AdvertisingInterval),
	)
	return radio, func() {
		if err := radio.Close(); err != nil {
			logger.Error("closing bluetooth adapter", slog.String("error", err.Error()))
		}
	}
}

// warnTruncated reports identity strings longer than their frame field.
// They are broadcast cut to the field size.
func warnTruncated(identity *IdentityConfig, logger *slog.Logger) {
	fields := []struct {
		name  string
		value string
		size  int
	}{
		{"identity.uasId", identity.UASID, remoteid.IdentitySize},
		{"identity.operatorId", identity.OperatorID, remoteid.OperatorIDSize},
		{"identity.description", identity.Description, remoteid.DescriptionSize},
	}

	for _, f := range fields {
		if len(f.value) > f.size {
			logger.Warn("value will be truncated",
				slog.String("field", f.name),
				slog.String("value", f.value),
				slog.String("broadcast", f.value[:f.size]),
			)
		}
	}
}

// createProvider returns the telemetry provider and a function releasing it.
// Background readers are tracked by wg and stop with ctx.
func createProvider(ctx context.Context, config *TelemetryConfig, wg *sync.WaitGroup, logger *slog.Logger) (telemetry.Provider, func(), error) {
	switch config.Source {
	case TelemetryStatic:
		s := config.Static
		return telemetry.NewStatic(&telemetry.Telemetry{
			Timestamp:     time.Now().UTC(),
			Latitude:      &s.Latitude,
			Longitude:     &s.Longitude,
			Altitude:      &s.Altitude,
			Height:        &s.Height,
			GroundSpeed:   &s.GroundSpeed,
			VerticalSpeed: &s.VerticalSpeed,
			GroundCourse:  &s.GroundCourse,
		}), func() {}, nil

	case TelemetrySqlite:
		store := storage.OpenSqliteReader(config.Sqlite.Path)
		closeStore := func() {
			if err := store.Close(); err != nil {
				logger.Error("closing telemetry database", slog.String("error", err.Error()))
			}
		}

		sess, err := store.Session(ctx, config.Sqlite.SessionID)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("opening session %d: %w", config.Sqlite.SessionID, err)
		}
		logger.Info("reading recorded flight",
			slog.Int64("sessionId", sess.ID),
			slog.String("uasId", sess.UASID),
			slog.Time("started", sess.StartTime),
			slog.String("mode", string(config.Sqlite.Mode)),
		)

		if config.Sqlite.Mode == ReplayLatest {
			return storage.NewSessionProvider(store, sess.ID), closeStore, nil
		}
		return storage.NewReplayProvider(store, sess.ID, nil), closeStore, nil

	case TelemetryWebsocket:
		client := feed.New(config.Websocket.URL,
			feed.WithLogger(logger),
			feed.WithReconnectDelay(config.Websocket.ReconnectDelay),
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = client.Run(ctx) // returns ctx.Err()
		}()

		return client, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown telemetry source '%s'", config.Source)
	}
}

// loadPrivateKey reads the signing key. An unparsable key is not fatal:
// authentication frames then carry the placeholder signature.
func loadPrivateKey(path string, logger *slog.Logger) ([]byte, error) {
	if path == "" {
		logger.Info("no private key configured, authentication frames are unsigned")
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	key, err := auth.ParsePrivateKey(raw)
	if err != nil {
		logger.Warn("invalid private key, authentication frames are unsigned",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return raw, nil
	}

	if pub, err := auth.PublicKeyBase64(key); err == nil {
		logger.Info("signing key loaded", slog.String("publicKey", pub))
	}
	return raw, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("stopping metrics server", slog.String("error", err.Error()))
		}
	}
}

func logEvents(logger *slog.Logger) func(broadcast.Event) {
	return func(e broadcast.Event) {
		switch e.Kind {
		case broadcast.EventRadioLost:
			logger.Warn("radio lost, broadcast stopped", slog.String("status", e.Status.String()))
		default:
			logger.Debug("broadcast event", slog.String("event", e.Kind.String()))
		}
	}
}
