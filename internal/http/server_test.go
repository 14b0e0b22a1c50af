package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"adboard/internal/core"
	"adboard/internal/dashboard"
	"adboard/internal/sheets/memory"
)

const (
	testMetricsRange = "Test_data!A2:Z"
	testExpenseRange = "Manual!A2:G"
)

func metricRow(date, code, brand, signups, ftd, qp, revenue string) []any {
	row := make([]any, 21)
	for i := range row {
		row[i] = ""
	}
	row[1] = date
	row[3] = code
	row[7] = revenue
	row[12] = signups
	row[13] = ftd
	row[14] = qp
	row[20] = brand
	return row
}

func testCountries() core.CountryCodes {
	return core.CountryCodes{
		"NL": {"CXNL01", "CXNL05"},
		"SE": {"CXSE01"},
	}
}

func refreshedService(t *testing.T) *dashboard.Service {
	t.Helper()
	store := memory.New()
	store.Seed(testMetricsRange, [][]any{
		metricRow("2025-11-02", "CXNL01", "Alpha", "1", "5", "0", "100"),
		metricRow("2025-11-02", "CXNL01", "", "2", "3", "1", "50"),
		metricRow("2025-11-03", "CXSE01", "Beta", "4", "2", "0", "80"),
	})
	store.Seed(testExpenseRange, [][]any{
		{"2025-11-02", "CXNL01", "", "", "", "", "60"},
	})

	svc := dashboard.New(store, dashboard.Options{
		MetricsRange: testMetricsRange,
		ExpenseRange: testExpenseRange,
		Pipeline: core.PipelineOptions{
			AllowedCodes: []string{"CXNL01", "CXSE01"},
			Cutoff:       time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return svc
}

func testServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Countries == nil {
		opts.Countries = testCountries()
	}
	s := NewServer("127.0.0.1:0", opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeDashboard(t *testing.T, rec *httptest.ResponseRecorder) dashboardResponse {
	t.Helper()
	var resp dashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestDashboard_NoSnapshot(t *testing.T) {
	svc := dashboard.New(memory.New(), dashboard.Options{})
	s := testServer(t, Options{Service: svc})

	if rec := doRequest(s, http.MethodGet, "/api/dashboard"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: %d", rec.Code)
	}
	if rec := doRequest(s, http.MethodGet, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before snapshot: %d", rec.Code)
	}
}

func TestDashboard_Unfiltered(t *testing.T) {
	s := testServer(t, Options{Service: refreshedService(t)})

	rec := doRequest(s, http.MethodGet, "/api/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type: %q", ct)
	}

	resp := decodeDashboard(t, rec)
	if len(resp.RawData) != 3 || len(resp.TableData) != 2 {
		t.Fatalf("rows: raw %d table %d", len(resp.RawData), len(resp.TableData))
	}
	if resp.FetchedAt.IsZero() {
		t.Fatal("missing fetchedAt")
	}

	nl := resp.TableData[0]
	if nl.Code != "CXNL01" || nl.Revenue != 150 || nl.Expense != 60 || nl.Profit != 90 || nl.ROI != 150 {
		t.Fatalf("aggregated record: %+v", nl)
	}
}

func TestDashboard_Filters(t *testing.T) {
	s := testServer(t, Options{Service: refreshedService(t)})

	cases := []struct {
		name      string
		query     string
		wantCodes []string
	}{
		{"by country", "countries=SE", []string{"CXSE01"}},
		{"unknown country restricts nothing", "countries=XX", []string{"CXNL01", "CXSE01"}},
		{"by date range", "start=2025-11-03&end=2025-11-03", []string{"CXSE01"}},
		{"by code substring", "code=cxnl", []string{"CXNL01"}},
		{"combined", "countries=NL,SE&code=SE01", []string{"CXSE01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, "/api/dashboard?"+tc.query)
			if rec.Code != http.StatusOK {
				t.Fatalf("status: %d", rec.Code)
			}
			resp := decodeDashboard(t, rec)
			var got []string
			for _, r := range resp.TableData {
				got = append(got, r.Code)
			}
			if len(got) != len(tc.wantCodes) {
				t.Fatalf("codes: got %v, want %v", got, tc.wantCodes)
			}
			for i := range got {
				if got[i] != tc.wantCodes[i] {
					t.Fatalf("codes: got %v, want %v", got, tc.wantCodes)
				}
			}
		})
	}
}

func TestDashboard_MethodNotAllowed(t *testing.T) {
	s := testServer(t, Options{Service: refreshedService(t)})
	if rec := doRequest(s, http.MethodPost, "/api/dashboard"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestExport(t *testing.T) {
	s := testServer(t, Options{Service: refreshedService(t)})

	rec := doRequest(s, http.MethodGet, "/api/dashboard/export?countries=NL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type: %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "dashboard_export_") {
		t.Fatalf("content disposition: %q", cd)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	// Header, one NL row, and the TOTAL row.
	if len(lines) != 3 {
		t.Fatalf("csv lines: %d\n%s", len(lines), rec.Body.String())
	}
	if !strings.HasPrefix(lines[2], "TOTAL") {
		t.Fatalf("last line: %q", lines[2])
	}
}

func TestBrands(t *testing.T) {
	s := testServer(t, Options{Service: refreshedService(t)})

	rec := doRequest(s, http.MethodGet, "/api/dashboard/brands?limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var brands []core.BrandSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &brands); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(brands) != 1 || brands[0].Brand != "Alpha" {
		t.Fatalf("brands: %+v", brands)
	}
}

func TestHealthAndReady(t *testing.T) {
	s := testServer(t, Options{Service: refreshedService(t)})

	if rec := doRequest(s, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := doRequest(s, http.MethodGet, "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}
}

func signToken(t *testing.T, secret, email string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestAuth(t *testing.T) {
	s := testServer(t, Options{
		Service:       refreshedService(t),
		AuthSecret:    "test-secret",
		AllowedEmails: []string{"Analyst@Example.com"},
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", "analyst@example.com"), http.StatusUnauthorized},
		{"email not allowed", "Bearer " + signToken(t, "test-secret", "intruder@example.com"), http.StatusUnauthorized},
		{"allowed email", "Bearer " + signToken(t, "test-secret", "ANALYST@example.com"), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			s.Handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status: got %d, want %d", rec.Code, tc.want)
			}
		})
	}

	// Health endpoints stay open.
	if rec := doRequest(s, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz behind auth: %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 120; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("request over the limit should be rejected")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("other clients are not affected")
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := testServer(t, Options{Service: refreshedService(t)})

	rec := doRequest(s, http.MethodGet, "/api/dashboard")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options: %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options: %q", got)
	}
}
