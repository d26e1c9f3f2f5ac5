package tle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLoaderRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(starlinkTLE + issTLE))
	}))
	defer server.Close()

	store := NewStore()
	cache := NewCache(t.TempDir(), 2)
	loader := NewLoader(store, NewFetcher(server.URL, testLogger), cache, testLogger)

	ds, err := loader.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(ds.Satellites) != 2 || ds.Source != server.URL {
		t.Errorf("dataset = %d satellites from %q", len(ds.Satellites), ds.Source)
	}
	if store.Get() != ds {
		t.Error("store does not hold the refreshed dataset")
	}

	// A fresh loader sharing only the cache directory sees the snapshot.
	store2 := NewStore()
	cached, err := NewLoader(store2, nil, cache, testLogger).LoadCached()
	if err != nil {
		t.Fatalf("LoadCached failed: %v", err)
	}
	if cached.Source != "cache" || len(cached.Satellites) != 2 {
		t.Errorf("cached dataset = %d satellites from %q", len(cached.Satellites), cached.Source)
	}
	if _, _, ok := store2.Lookup(25544); !ok {
		t.Error("cached dataset missing ISS")
	}
}

func TestLoaderRefreshKeepsDatasetOnFailure(t *testing.T) {
	var mu sync.Mutex
	body := starlinkTLE
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Write([]byte(body))
	}))
	defer server.Close()

	store := NewStore()
	loader := NewLoader(store, NewFetcher(server.URL, testLogger), nil, testLogger)
	first, err := loader.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	body = "nothing useful here\n"
	mu.Unlock()

	if _, err := loader.Refresh(context.Background()); err == nil || !strings.Contains(err.Error(), "no valid TLE entries") {
		t.Fatalf("expected empty-catalog error, got %v", err)
	}
	if store.Get() != first {
		t.Error("failed refresh replaced the dataset")
	}
}

func TestLoaderFetchDisabled(t *testing.T) {
	loader := NewLoader(NewStore(), nil, nil, testLogger)
	if _, err := loader.Refresh(context.Background()); !errors.Is(err, ErrFetchDisabled) {
		t.Errorf("Refresh error = %v, want ErrFetchDisabled", err)
	}
	if _, err := loader.LoadCached(); !errors.Is(err, ErrNoCache) {
		t.Errorf("LoadCached error = %v, want ErrNoCache", err)
	}
}

func TestLoaderRunRefreshesStaleData(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write([]byte(issTLE))
	}))
	defer server.Close()

	store := NewStore()
	loader := NewLoader(store, NewFetcher(server.URL, testLogger), nil, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loader.Run(ctx, 10*time.Millisecond, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !store.Ready() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Let a few more ticks pass; fresh data must not be refetched.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if !store.Ready() {
		t.Fatal("Run did not load data")
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Errorf("source hit %d times, want 1", hits)
	}
}

func TestLoaderRunNonPositiveInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(issTLE))
	}))
	defer server.Close()

	store := NewStore()
	loader := NewLoader(store, NewFetcher(server.URL, testLogger), nil, testLogger)

	for _, interval := range []time.Duration{0, -time.Second} {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			loader.Run(ctx, interval, time.Hour)
		}()

		deadline := time.Now().Add(2 * time.Second)
		for !store.Ready() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		<-done

		if !store.Ready() {
			t.Fatalf("interval %v: Run did not load data", interval)
		}
	}
}
