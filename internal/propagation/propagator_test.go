package propagation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/star/tlestate/internal/metrics"
	"github.com/star/tlestate/internal/tle"
)

// ISS TLE (epoch 2024, will still propagate reasonably for near-future times).
const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

// Starlink TLE (typical LEO constellation satellite).
const (
	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testStore(t testing.TB) *tle.Store {
	t.Helper()
	catalog := "ISS (ZARYA)\n" + issLine1 + "\n" + issLine2 + "\n" +
		"STARLINK-1007\n" + starlinkLine1 + "\n" + starlinkLine2 + "\n"
	entries, err := tle.Parse(strings.NewReader(catalog), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	store := tle.NewStore()
	store.Set(tle.NewDataset("test", time.Now(), entries))
	return store
}

func magnitude(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// TestPropagateToTime verifies a catalog satellite propagates to a
// physically reasonable TEME state.
func TestPropagateToTime(t *testing.T) {
	prop := NewPropagator(testStore(t), PropConfig{}, testLogger())

	target := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	st, err := prop.PropagateToTime(context.Background(), 25544, target)
	if err != nil {
		t.Fatalf("PropagateToTime failed: %v", err)
	}

	// ISS at ~420 km altitude: ~6371 + 420 = 6791 km.
	if mag := magnitude(st.Position); mag < 6500 || mag > 7000 {
		t.Errorf("TEME position magnitude = %.1f km, expected ~6791 km", mag)
	}
	if st.NORADID != 25544 || !st.Timestamp.Equal(target) {
		t.Errorf("state labelled %d at %v", st.NORADID, st.Timestamp)
	}
}

func TestPropagateUnknownSatellite(t *testing.T) {
	prop := NewPropagator(testStore(t), PropConfig{}, testLogger())
	_, err := prop.PropagateToTime(context.Background(), 99999, time.Now())
	if !errors.Is(err, ErrUnknownSatellite) {
		t.Fatalf("error = %v, want ErrUnknownSatellite", err)
	}
}

// TestPropagatorNoDataset verifies error when no TLE data is loaded.
func TestPropagatorNoDataset(t *testing.T) {
	prop := NewPropagator(tle.NewStore(), PropConfig{}, testLogger())

	_, err := prop.PropagateToTime(context.Background(), 25544, time.Now())
	if !errors.Is(err, ErrNoDataset) {
		t.Fatalf("error = %v, want ErrNoDataset", err)
	}
	_, err = prop.Ephemeris(context.Background(), 25544, time.Now(), time.Minute, time.Second)
	if !errors.Is(err, ErrNoDataset) {
		t.Fatalf("Ephemeris error = %v, want ErrNoDataset", err)
	}
}

// TestEphemeris verifies series spacing over a horizon.
func TestEphemeris(t *testing.T) {
	prop := NewPropagator(testStore(t), PropConfig{}, testLogger())
	start := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

	states, err := prop.Ephemeris(context.Background(), 44713, start, 15*time.Second, 5*time.Second)
	if err != nil {
		t.Fatalf("Ephemeris failed: %v", err)
	}

	// With 15s horizon and 5s step: points at 0s, 5s, 10s, 15s.
	if len(states) != 4 {
		t.Fatalf("got %d states, want 4", len(states))
	}
	for i, st := range states {
		want := start.Add(time.Duration(i) * 5 * time.Second)
		if !st.Timestamp.Equal(want) {
			t.Errorf("state %d: time = %v, want %v", i, st.Timestamp, want)
		}
	}
	if states[0].Position == states[1].Position {
		t.Error("consecutive states have identical positions")
	}
}

func TestEphemerisDefaultStep(t *testing.T) {
	prop := NewPropagator(testStore(t), PropConfig{DefaultStep: 30 * time.Second}, testLogger())
	states, err := prop.Ephemeris(context.Background(), 25544, time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC), 2*time.Minute, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 5 {
		t.Errorf("got %d states, want 5", len(states))
	}
}

func TestEphemerisBudget(t *testing.T) {
	prop := NewPropagator(testStore(t), PropConfig{MaxPositions: 100}, testLogger())

	_, err := prop.Ephemeris(context.Background(), 25544, time.Now(), 100*time.Second, time.Second)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("101 points: error = %v, want ErrBudgetExceeded", err)
	}
	if n, err := prop.SeriesLength(99*time.Second, time.Second); err != nil || n != 100 {
		t.Errorf("SeriesLength(99s, 1s) = %d, %v; want 100", n, err)
	}
	if _, err := prop.Ephemeris(context.Background(), 25544, time.Now(), time.Minute, -time.Second); !errors.Is(err, ErrInvalidSeries) {
		t.Errorf("negative step: error = %v, want ErrInvalidSeries", err)
	}
}

// TestEphemerisCancellation verifies the series stops on a cancelled context.
func TestEphemerisCancellation(t *testing.T) {
	prop := NewPropagator(testStore(t), PropConfig{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	states, err := prop.Ephemeris(ctx, 25544, time.Now(), time.Hour, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(states) != 0 {
		t.Errorf("got %d states after cancellation", len(states))
	}
}

// TestCancelledRequestsAreCounted verifies cancelled calls still land in
// the propagation counter.
func TestCancelledRequestsAreCounted(t *testing.T) {
	prop := NewPropagator(testStore(t), PropConfig{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := metrics.PropagationCount("error")
	if _, err := prop.PropagateToTime(ctx, 25544, time.Now()); !errors.Is(err, context.Canceled) {
		t.Fatalf("PropagateToTime error = %v, want context.Canceled", err)
	}
	if _, err := prop.Ephemeris(ctx, 25544, time.Now(), time.Minute, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("Ephemeris error = %v, want context.Canceled", err)
	}
	if got := metrics.PropagationCount("error") - before; got != 2 {
		t.Errorf("error outcomes recorded = %v, want 2", got)
	}
}

func TestSeriesLength(t *testing.T) {
	tests := []struct {
		horizon, step time.Duration
		max           int
		want          int
		wantErr       error
	}{
		{time.Hour, time.Minute, 100, 61, nil},
		{0, time.Second, 1, 1, nil},
		{time.Hour, time.Second, 3600, 0, ErrBudgetExceeded},
		{1000000 * time.Hour, time.Nanosecond, 3601, 0, ErrBudgetExceeded},
		{time.Hour, 0, 100, 0, ErrInvalidSeries},
		{-time.Second, time.Second, 100, 0, ErrInvalidSeries},
	}
	for _, tt := range tests {
		n, err := SeriesLength(tt.horizon, tt.step, tt.max)
		if !errors.Is(err, tt.wantErr) || n != tt.want {
			t.Errorf("SeriesLength(%v, %v, %d) = %d, %v; want %d, %v", tt.horizon, tt.step, tt.max, n, err, tt.want, tt.wantErr)
		}
	}
}

func TestPropagateTLE(t *testing.T) {
	prop := NewPropagator(tle.NewStore(), PropConfig{}, testLogger())
	elems, err := tle.New(issLine1, issLine2)
	if err != nil {
		t.Fatal(err)
	}
	st, err := prop.PropagateTLE(elems, time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PropagateTLE failed: %v", err)
	}
	if st.NORADID != 25544 {
		t.Errorf("NORADID = %d, want 25544", st.NORADID)
	}
}

func TestOutcome(t *testing.T) {
	_, malformed := tle.New("short", "short")
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{ErrNoDataset, "not_found"},
		{ErrUnknownSatellite, "not_found"},
		{malformed, "malformed"},
		{context.Canceled, "error"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

// BenchmarkEphemeris benchmarks a one-hour series at one-second steps.
func BenchmarkEphemeris(b *testing.B) {
	prop := NewPropagator(testStore(b), PropConfig{}, testLogger())
	start := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := prop.Ephemeris(ctx, 25544, start, time.Hour, time.Second); err != nil {
			b.Fatal(err)
		}
	}
}
