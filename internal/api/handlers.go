package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/star/tlestate/internal/httputil"
	"github.com/star/tlestate/internal/propagation"
	"github.com/star/tlestate/internal/tle"
)

// maxBodyBytes caps POST bodies; a TLE pair is well under 1 KiB.
const maxBodyBytes = 64 << 10

type handlers struct {
	store      *tle.Store
	loader     *tle.Loader
	prop       *propagation.Propagator
	logger     *slog.Logger
	fetchLimit *rate.Limiter
	series     *httputil.Limiter
	trustProxy bool
}

type stateResponse struct {
	NORADID  int        `json:"norad_id"`
	Time     string     `json:"time"`
	Position [3]float64 `json:"position_km"`
	Velocity [3]float64 `json:"velocity_km_s"`
}

type seriesResponse struct {
	NORADID     int             `json:"norad_id"`
	Start       string          `json:"start"`
	StepSeconds float64         `json:"step_seconds"`
	States      []stateResponse `json:"states"`
}

type metadataResponse struct {
	Source     string  `json:"source"`
	FetchedAt  string  `json:"fetched_at"`
	AgeSeconds float64 `json:"age_seconds"`
	Count      int     `json:"count"`
	EpochMin   string  `json:"epoch_min"`
	EpochMax   string  `json:"epoch_max"`
}

type entryResponse struct {
	NORADID int    `json:"norad_id"`
	Name    string `json:"name"`
	Epoch   string `json:"epoch"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
}

type adHocRequest struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
	Lines string `json:"lines"`
	Time  string `json:"time"`
}

func toStateResponse(st propagation.SatelliteState) stateResponse {
	return stateResponse{
		NORADID:  st.NORADID,
		Time:     st.Timestamp.UTC().Format(time.RFC3339Nano),
		Position: st.Position,
		Velocity: st.Velocity,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, propagation.ErrNoDataset):
		return http.StatusServiceUnavailable
	case errors.Is(err, propagation.ErrUnknownSatellite):
		return http.StatusNotFound
	case errors.Is(err, propagation.ErrBudgetExceeded), errors.Is(err, propagation.ErrInvalidSeries):
		return http.StatusBadRequest
	case errors.Is(err, tle.ErrMalformed), errors.Is(err, tle.ErrPropagation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func parseNORADID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid norad_id %q", r.PathValue("norad_id"))
	}
	return id, nil
}

// parseTime reads an RFC3339 instant, defaulting to now when empty.
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339", v)
	}
	return t, nil
}

// parseSeconds reads a non-negative whole number of seconds.
func parseSeconds(name, v string) (time.Duration, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: want non-negative seconds", name, v)
	}
	return time.Duration(n) * time.Second, nil
}

func (h *handlers) tleMetadata(w http.ResponseWriter, r *http.Request) {
	ds := h.store.Get()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, propagation.ErrNoDataset.Error())
		return
	}
	writeJSON(w, http.StatusOK, metadataResponse{
		Source:     ds.Source,
		FetchedAt:  ds.FetchedAt.UTC().Format(time.RFC3339),
		AgeSeconds: h.store.AgeSeconds(),
		Count:      len(ds.Satellites),
		EpochMin:   ds.EpochRange.Min.UTC().Format(time.RFC3339),
		EpochMax:   ds.EpochRange.Max.UTC().Format(time.RFC3339),
	})
}

func (h *handlers) tleFetch(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusForbidden, tle.ErrFetchDisabled.Error())
		return
	}
	if !h.fetchLimit.Allow() {
		writeError(w, http.StatusTooManyRequests, "TLE fetch throttled, retry later")
		return
	}

	ds, err := h.loader.Refresh(r.Context())
	if errors.Is(err, tle.ErrFetchDisabled) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		h.logger.Warn("manual TLE fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source": ds.Source,
		"count":  len(ds.Satellites),
	})
}

func (h *handlers) tleEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseNORADID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, ds, ok := h.store.Lookup(id)
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, propagation.ErrNoDataset.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, propagation.ErrUnknownSatellite.Error())
		return
	}
	writeJSON(w, http.StatusOK, entryResponse{
		NORADID: entry.NORADID,
		Name:    entry.Name,
		Epoch:   entry.Epoch.UTC().Format(time.RFC3339Nano),
		Line1:   entry.Line1,
		Line2:   entry.Line2,
	})
}

// propagateSingle serves one state, or a series when horizon is given.
func (h *handlers) propagateSingle(w http.ResponseWriter, r *http.Request) {
	id, err := parseNORADID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	t, err := parseTime(q.Get("time"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if q.Get("horizon") == "" {
		st, err := h.prop.PropagateToTime(r.Context(), id, t)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toStateResponse(*st))
		return
	}

	horizon, err := parseSeconds("horizon", q.Get("horizon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	step := h.prop.Config().DefaultStep
	if v := q.Get("step"); v != "" {
		if step, err = parseSeconds("step", v); err != nil || step == 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid step %q: want positive seconds", v))
			return
		}
	}

	// Reject over-budget series before taking a concurrency slot.
	if _, err := h.prop.SeriesLength(horizon, step); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":         err.Error(),
			"max_positions": h.prop.Config().MaxPositions,
		})
		return
	}

	ip := httputil.ClientIP(r, h.trustProxy)
	if !h.series.Acquire(ip) {
		writeError(w, http.StatusTooManyRequests, "too many concurrent ephemeris requests")
		return
	}
	defer h.series.Release(ip)

	states, err := h.prop.Ephemeris(r.Context(), id, t, horizon, step)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp := seriesResponse{
		NORADID:     id,
		Start:       t.UTC().Format(time.RFC3339Nano),
		StepSeconds: step.Seconds(),
		States:      make([]stateResponse, len(states)),
	}
	for i, st := range states {
		resp.States[i] = toStateResponse(st)
	}
	writeJSON(w, http.StatusOK, resp)
}

// propagateAdHoc propagates a TLE supplied in the request body.
func (h *handlers) propagateAdHoc(w http.ResponseWriter, r *http.Request) {
	var req adHocRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	t, err := parseTime(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var elems *tle.TwoLineElement
	switch {
	case req.Lines != "":
		elems, err = tle.FromLines(req.Lines)
	case req.Line1 != "" || req.Line2 != "":
		elems, err = tle.New(req.Line1, req.Line2)
	default:
		writeError(w, http.StatusBadRequest, "body needs line1/line2 or lines")
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	st, err := h.prop.PropagateTLE(elems, t)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(*st))
}
