package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adboard/internal/core"
	"adboard/internal/dashboard"
	"adboard/internal/log"
)

// dashboardResponse mirrors the payload the frontend consumes.
type dashboardResponse struct {
	TableData []core.AggregatedRecord `json:"tableData"`
	RawData   []core.MetricRecord     `json:"rawData"`
	FetchedAt time.Time               `json:"fetchedAt"`
}

// filterFromQuery builds the client-side filter from query parameters.
// Missing parameters leave their dimension unrestricted.
func filterFromQuery(r *http.Request) core.FilterSpec {
	q := r.URL.Query()
	var spec core.FilterSpec
	if raw := strings.TrimSpace(q.Get("countries")); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				spec.Countries = append(spec.Countries, strings.ToUpper(c))
			}
		}
	}
	spec.Start = strings.TrimSpace(q.Get("start"))
	spec.End = strings.TrimSpace(q.Get("end"))
	spec.Code = strings.TrimSpace(q.Get("code"))
	return spec
}

// cacheKey must change whenever the snapshot or the filter does.
func cacheKey(kind string, fetchedAt time.Time, spec core.FilterSpec) string {
	return kind + "|" + strconv.FormatInt(fetchedAt.UnixNano(), 10) +
		"|" + strings.Join(spec.Countries, ",") +
		"|" + spec.Start + "|" + spec.End + "|" + strings.ToLower(spec.Code)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (dashboard.Snapshot, bool) {
	snap, err := s.svc.Snapshot()
	if err != nil {
		if errors.Is(err, dashboard.ErrNoSnapshot) {
			http.Error(w, "dashboard data not loaded yet", http.StatusServiceUnavailable)
		} else {
			s.log.ErrorContext(r.Context(), "snapshot read failed", log.FieldError, err.Error())
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return dashboard.Snapshot{}, false
	}
	return snap, true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	spec := filterFromQuery(r)

	key := cacheKey("dashboard", snap.FetchedAt, spec)
	if body, found := s.respCache.Get(key); found {
		writeJSONBytes(w, body)
		return
	}

	data := snap.Data
	if !spec.IsZero() {
		data = spec.Apply(data, s.countries)
	}
	body, err := json.Marshal(dashboardResponse{
		TableData: data.Table,
		RawData:   data.Raw,
		FetchedAt: snap.FetchedAt,
	})
	if err != nil {
		s.log.ErrorContext(r.Context(), "encode dashboard response", log.FieldError, err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.respCache.Set(key, body)
	writeJSONBytes(w, body)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	spec := filterFromQuery(r)

	data := snap.Data
	if !spec.IsZero() {
		data = spec.Apply(data, s.countries)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+core.ExportFilename(time.Now())+`"`)
	if err := core.WriteCSV(w, data.Table); err != nil {
		s.log.ErrorContext(r.Context(), "write csv export", log.FieldError, err.Error())
	}
}

func (s *Server) handleBrands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	limit := 15
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	spec := filterFromQuery(r)

	key := cacheKey("brands", snap.FetchedAt, spec) + "|" + strconv.Itoa(limit)
	if body, found := s.respCache.Get(key); found {
		writeJSONBytes(w, body)
		return
	}

	data := snap.Data
	if !spec.IsZero() {
		data = spec.Apply(data, s.countries)
	}
	body, err := json.Marshal(core.TopBrands(data.Raw, limit))
	if err != nil {
		s.log.ErrorContext(r.Context(), "encode brands response", log.FieldError, err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.respCache.Set(key, body)
	writeJSONBytes(w, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready only once a snapshot is being served.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.SnapshotTime().IsZero() {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeJSONBytes(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(body)
}
