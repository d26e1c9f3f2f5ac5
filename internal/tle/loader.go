package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/star/tlestate/internal/metrics"
)

// ErrFetchDisabled is returned by Refresh when no Fetcher is configured.
var ErrFetchDisabled = errors.New("TLE fetch is disabled")

// Loader moves catalog data from the remote source and disk cache into a Store.
type Loader struct {
	store   *Store
	fetcher *Fetcher // nil disables Refresh
	cache   *Cache   // nil disables persistence
	logger  *slog.Logger
}

// NewLoader creates a Loader. fetcher and cache may be nil.
func NewLoader(store *Store, fetcher *Fetcher, cache *Cache, logger *slog.Logger) *Loader {
	return &Loader{
		store:   store,
		fetcher: fetcher,
		cache:   cache,
		logger:  logger,
	}
}

// LoadCached publishes the newest cached snapshot, if any.
func (l *Loader) LoadCached() (*TLEDataset, error) {
	if l.cache == nil {
		return nil, ErrNoCache
	}
	data, ts, err := l.cache.LoadLatest()
	if err != nil {
		return nil, err
	}

	entries, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing cached TLE data: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("cached TLE snapshot from %s has no valid entries", ts.Format(time.RFC3339))
	}

	ds := NewDataset("cache", ts, entries)
	l.publish(ds)
	l.logger.Info("loaded TLE data from cache", "count", len(entries), "cached_at", ts.Format(time.RFC3339))
	return ds, nil
}

// Refresh fetches, parses, caches and publishes a new dataset. Concurrent
// calls are serialized on the store's fetch lock. On failure the current
// dataset stays in place.
func (l *Loader) Refresh(ctx context.Context) (*TLEDataset, error) {
	if l.fetcher == nil {
		return nil, ErrFetchDisabled
	}

	l.store.Lock()
	defer l.store.Unlock()

	start := time.Now()
	data, err := l.fetcher.Fetch(ctx)
	if err != nil {
		metrics.IncTLEFetch("error")
		return nil, err
	}

	entries, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		metrics.IncTLEFetch("error")
		return nil, fmt.Errorf("parsing fetched TLE data: %w", err)
	}
	if len(entries) == 0 {
		metrics.IncTLEFetch("empty")
		return nil, fmt.Errorf("no valid TLE entries from %s", l.fetcher.SourceURL())
	}

	fetchedAt := time.Now().UTC()
	if l.cache != nil {
		if err := l.cache.Write(data, fetchedAt); err != nil {
			l.logger.Warn("failed to write TLE cache", "dir", l.cache.Dir(), "error", err)
		}
	}

	ds := NewDataset(l.fetcher.SourceURL(), fetchedAt, entries)
	l.publish(ds)
	metrics.IncTLEFetch("success")

	l.logger.Info("TLE data refreshed",
		"source", ds.Source,
		"count", len(entries),
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}

// DefaultRefreshInterval is the check period Run uses when given a
// non-positive interval.
const DefaultRefreshInterval = 10 * time.Minute

// Run refreshes whenever the current dataset is older than maxAge,
// checking every interval, until ctx is done.
func (l *Loader) Run(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		l.logger.Warn("invalid refresh interval, using default",
			"interval", interval.String(),
			"default", DefaultRefreshInterval.String(),
		)
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if age := l.store.AgeSeconds(); age >= 0 {
			metrics.SetTLEDatasetAge(age)
		}
		if l.fetcher != nil && l.stale(maxAge) {
			if _, err := l.Refresh(ctx); err != nil && ctx.Err() == nil {
				l.logger.Warn("TLE refresh failed", "error", err)
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loader) stale(maxAge time.Duration) bool {
	age := l.store.AgeSeconds()
	return age < 0 || age > maxAge.Seconds()
}

func (l *Loader) publish(ds *TLEDataset) {
	l.store.Set(ds)
	metrics.SetTLEDatasetCount(len(ds.Satellites))
	metrics.SetTLEDatasetAge(time.Since(ds.FetchedAt).Seconds())
}
