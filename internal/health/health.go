package health

import "net/http"

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readiness reports whether a TLE dataset has been loaded.
type Readiness interface {
	Ready() bool
}

// Readyz returns 200 "ready\n" once r reports ready, 503 otherwise.
func Readyz(r Readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if !r.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("no TLE dataset\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready\n"))
	}
}
