package httputil

import (
	"sync"
	"testing"
)

func TestLimiterPerIP(t *testing.T) {
	l := NewLimiter(2)

	if !l.Acquire("1.2.3.4") || !l.Acquire("1.2.3.4") {
		t.Fatal("first two acquisitions should succeed")
	}
	if l.Acquire("1.2.3.4") {
		t.Error("third acquisition for same IP should fail")
	}
	if !l.Acquire("5.6.7.8") {
		t.Error("other IP should not be affected")
	}

	l.Release("1.2.3.4")
	if got := l.Count("1.2.3.4"); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
	if !l.Acquire("1.2.3.4") {
		t.Error("acquisition after release should succeed")
	}
}

func TestLimiterGlobalCap(t *testing.T) {
	l := NewLimiter(0)
	l.maxTotal = 3
	for i := 0; i < 3; i++ {
		if !l.Acquire("10.0.0.1") {
			t.Fatalf("acquisition %d failed", i)
		}
	}
	if l.Acquire("10.0.0.2") {
		t.Error("acquisition beyond global cap should fail")
	}
}

func TestLimiterReleaseUnknown(t *testing.T) {
	l := NewLimiter(1)
	l.Release("9.9.9.9")
	if l.total != 0 {
		t.Errorf("total = %d after spurious release, want 0", l.total)
	}
	if !l.Acquire("9.9.9.9") {
		t.Error("acquisition failed after spurious release")
	}
}

func TestLimiterConcurrent(t *testing.T) {
	l := NewLimiter(5)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Acquire("1.1.1.1") {
				l.Release("1.1.1.1")
			}
		}()
	}
	wg.Wait()
	if got := l.Count("1.1.1.1"); got != 0 {
		t.Errorf("Count = %d after all releases, want 0", got)
	}
}
