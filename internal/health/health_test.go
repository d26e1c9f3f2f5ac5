package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type readyFunc func() bool

func (f readyFunc) Ready() bool { return f() }

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("Healthz = %d %q", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		ready bool
		want  int
	}{
		{false, http.StatusServiceUnavailable},
		{true, http.StatusOK},
	}
	for _, tt := range tests {
		ready := tt.ready
		w := httptest.NewRecorder()
		Readyz(readyFunc(func() bool { return ready }))(w, httptest.NewRequest("GET", "/readyz", nil))
		if w.Code != tt.want {
			t.Errorf("ready=%v: status = %d, want %d", tt.ready, w.Code, tt.want)
		}
	}
}
