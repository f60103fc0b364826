package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/onlyTheOnionNews/drone-phone/internal/telemetry"
)

// SessionProvider serves the latest measurement recorded for a flight session,
// following a log that is still being written.
type SessionProvider struct {
	store     Store
	sessionID int64
}

var _ telemetry.Provider = (*SessionProvider)(nil)

func NewSessionProvider(store Store, sessionID int64) *SessionProvider {
	return &SessionProvider{store: store, sessionID: sessionID}
}

func (p *SessionProvider) Latest(ctx context.Context) (*telemetry.Telemetry, error) {
	return p.store.LatestTelemetry(ctx, p.sessionID)
}

// ReplayProvider plays a recorded flight session back at its recorded pace. The
// first call to Latest starts the replay; the last measurement is held once the
// recording ends. Returned timestamps are shifted to the replay time.
type ReplayProvider struct {
	store     Store
	sessionID int64
	clock     func() time.Time

	once    sync.Once
	loadErr error
	records []*telemetry.Telemetry
	started time.Time
}

var _ telemetry.Provider = (*ReplayProvider)(nil)

func NewReplayProvider(store Store, sessionID int64, clock func() time.Time) *ReplayProvider {
	if clock == nil {
		clock = time.Now
	}
	return &ReplayProvider{store: store, sessionID: sessionID, clock: clock}
}

func (p *ReplayProvider) Latest(ctx context.Context) (*telemetry.Telemetry, error) {
	p.once.Do(func() {
		records, err := p.store.Telemetry(ctx, p.sessionID)
		if err != nil {
			p.loadErr = fmt.Errorf("loading session %d: %w", p.sessionID, err)
			return
		}
		p.records = records
		p.started = p.clock()
	})
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	if len(p.records) == 0 {
		return nil, telemetry.ErrNoTelemetry
	}

	first := p.records[0].Timestamp
	elapsed := p.clock().Sub(p.started)

	// index of the last record not after first+elapsed
	i := sort.Search(len(p.records), func(i int) bool {
		return p.records[i].Timestamp.Sub(first) > elapsed
	}) - 1
	if i < 0 {
		i = 0
	}

	t := *p.records[i]
	t.Timestamp = p.started.Add(p.records[i].Timestamp.Sub(first))
	return &t, nil
}
