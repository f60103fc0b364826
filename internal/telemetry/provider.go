package telemetry

import (
	"context"
	"errors"
	"sync"
)

// ErrNoTelemetry is returned when a provider has no measurement yet.
var ErrNoTelemetry = errors.New("no telemetry")

// Provider returns the most recent telemetry measurement.
type Provider interface {
	Latest(ctx context.Context) (*Telemetry, error)
}

// Static is a provider holding a single measurement, replaced with Set.
type Static struct {
	mu sync.RWMutex
	t  *Telemetry
}

// NewStatic creates a provider returning t. A nil t yields ErrNoTelemetry until Set is called.
func NewStatic(t *Telemetry) *Static {
	return &Static{t: t}
}

func (s *Static) Latest(_ context.Context) (*Telemetry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.t == nil {
		return nil, ErrNoTelemetry
	}
	cp := *s.t
	return &cp, nil
}

// Set replaces the measurement.
func (s *Static) Set(t *Telemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = t
}
