package httputil

import (
	"sync"
)

// Limiter tracks in-flight requests per client IP and globally.
type Limiter struct {
	mu       sync.Mutex
	inFlight map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

// NewLimiter returns a limiter admitting maxPerIP concurrent requests per
// IP. A non-positive maxPerIP disables the per-IP bound.
func NewLimiter(maxPerIP int) *Limiter {
	return &Limiter{
		inFlight: make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: 1000, // Default global cap.
	}
}

// Acquire attempts to register a new request for the given IP.
// Returns false if the IP or global limit has been reached.
func (l *Limiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return false
	}
	if l.maxPerIP > 0 && l.inFlight[ip] >= l.maxPerIP {
		return false
	}

	l.inFlight[ip]++
	l.total++
	return true
}

// Release decrements the in-flight count for the given IP.
func (l *Limiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight[ip] <= 0 {
		return
	}
	l.inFlight[ip]--
	l.total--
	if l.inFlight[ip] == 0 {
		delete(l.inFlight, ip)
	}
}

// Count returns the number of in-flight requests for the given IP.
func (l *Limiter) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[ip]
}
