package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/star/tlestate/internal/metrics"
	"github.com/star/tlestate/internal/tle"
)

// Propagator answers state-vector queries for satellites in the current
// TLE dataset.
type Propagator struct {
	store  *tle.Store
	config PropConfig
	logger *slog.Logger
}

// NewPropagator creates a new propagation orchestrator.
func NewPropagator(store *tle.Store, config PropConfig, logger *slog.Logger) *Propagator {
	if config.MaxPositions <= 0 {
		config.MaxPositions = 3601
	}
	if config.DefaultStep <= 0 {
		config.DefaultStep = time.Minute
	}
	return &Propagator{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Config returns the effective configuration.
func (p *Propagator) Config() PropConfig {
	return p.config
}

func (p *Propagator) lookup(noradID int) (tle.TLEEntry, error) {
	entry, ds, ok := p.store.Lookup(noradID)
	if ds == nil {
		return entry, ErrNoDataset
	}
	if !ok {
		return entry, fmt.Errorf("NORAD %d: %w", noradID, ErrUnknownSatellite)
	}
	return entry, nil
}

// PropagateToTime returns the state of one satellite at targetTime.
func (p *Propagator) PropagateToTime(ctx context.Context, noradID int, targetTime time.Time) (*SatelliteState, error) {
	start := time.Now()
	entry, err := p.lookup(noradID)
	if err != nil {
		metrics.RecordPropagation(time.Since(start), outcome(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordPropagation(time.Since(start), outcome(err))
		return nil, err
	}

	sv, err := entry.Elements.PropagateTo(targetTime)
	metrics.RecordPropagation(time.Since(start), outcome(err))
	if err != nil {
		p.logger.Debug("propagation failed",
			"norad_id", noradID,
			"target_time", targetTime.UTC().Format(time.RFC3339Nano),
			"error", errors.Unwrap(err),
		)
		return nil, err
	}

	return &SatelliteState{NORADID: noradID, Timestamp: targetTime, StateVector: sv}, nil
}

// PropagateTLE propagates a caller-supplied TLE that is not part of the
// dataset.
func (p *Propagator) PropagateTLE(elems *tle.TwoLineElement, targetTime time.Time) (*SatelliteState, error) {
	start := time.Now()
	sv, err := elems.PropagateTo(targetTime)
	metrics.RecordPropagation(time.Since(start), outcome(err))
	if err != nil {
		return nil, err
	}
	return &SatelliteState{NORADID: elems.NORADID(), Timestamp: targetTime, StateVector: sv}, nil
}

// Ephemeris returns states from start to start+horizon inclusive at step
// intervals. A zero step uses the configured default.
func (p *Propagator) Ephemeris(ctx context.Context, noradID int, start time.Time, horizon, step time.Duration) ([]SatelliteState, error) {
	if step == 0 {
		step = p.config.DefaultStep
	}
	if step < 0 || horizon < 0 {
		return nil, fmt.Errorf("%w: horizon and step must be positive", ErrInvalidSeries)
	}
	n, err := p.SeriesLength(horizon, step)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	entry, err := p.lookup(noradID)
	if err != nil {
		metrics.RecordPropagation(time.Since(began), outcome(err))
		return nil, err
	}

	states := make([]SatelliteState, 0, n)
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			metrics.RecordPropagation(time.Since(began), outcome(ctx.Err()))
			return states, ctx.Err()
		default:
		}

		t := start.Add(time.Duration(i) * step)
		sv, err := entry.Elements.PropagateTo(t)
		if err != nil {
			metrics.RecordPropagation(time.Since(began), outcome(err))
			return states, fmt.Errorf("point %d at %s: %w", i, t.UTC().Format(time.RFC3339), err)
		}
		states = append(states, SatelliteState{NORADID: noradID, Timestamp: t, StateVector: sv})
	}
	metrics.RecordPropagation(time.Since(began), "success")

	p.logger.Debug("ephemeris complete",
		"norad_id", noradID,
		"points", len(states),
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return states, nil
}

// SeriesLength returns the number of points a series covers, enforcing
// the position budget.
func (p *Propagator) SeriesLength(horizon, step time.Duration) (int, error) {
	return SeriesLength(horizon, step, p.config.MaxPositions)
}

// SeriesLength counts the points from 0 to horizon inclusive at step
// spacing and fails with ErrBudgetExceeded above maxPositions.
func SeriesLength(horizon, step time.Duration, maxPositions int) (int, error) {
	if step <= 0 || horizon < 0 {
		return 0, fmt.Errorf("%w: horizon and step must be positive", ErrInvalidSeries)
	}
	n := int64(horizon/step) + 1
	if n > int64(maxPositions) {
		return 0, fmt.Errorf("%w: %d positions, max %d", ErrBudgetExceeded, n, maxPositions)
	}
	return int(n), nil
}

func outcome(err error) string {
	var me *tle.MalformedError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnknownSatellite), errors.Is(err, ErrNoDataset):
		return "not_found"
	case errors.As(err, &me):
		return "malformed"
	case errors.Is(err, tle.ErrPropagation):
		return "failed"
	default:
		return "error"
	}
}
