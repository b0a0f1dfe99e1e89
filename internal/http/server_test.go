package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"costmanager/internal/core"
	"costmanager/internal/rates"
	"costmanager/internal/services"
	"costmanager/internal/storage/memory"
)

var testNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.Local)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	svc := services.NewCostService(memory.New(func() time.Time { return testNow }), rates.NewTable(nil))
	return NewServer(":0", svc, append([]Option{WithNow(func() time.Time { return testNow })}, opts...)...)
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s missing request id header", path)
		}
	}

	notReady := newTestServer(t, WithReadiness(func(context.Context) error { return errors.New("db down") }))
	if rr := do(t, notReady, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestCreateCostAndReport(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/costs", `{"sum":"35","currency":"ILS","category":"FOOD","description":"hummus","id":99}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rec := decode[core.CostRecord](t, rr)
	if rec.ID != 1 || rec.Sum != 35 || rec.Date.Day != 10 {
		t.Fatalf("unexpected record %+v", rec)
	}

	rr = do(t, srv, http.MethodPost, "/costs", `{"sum":5,"currency":"USD","category":"CAR","description":"toll"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/reports?year=2024&month=3&currency=USD", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("report status=%d: %s", rr.Code, rr.Body.String())
	}
	rep := decode[core.Report](t, rr)
	if len(rep.Costs) != 2 {
		t.Fatalf("expected 2 costs, got %d", len(rep.Costs))
	}
	if rep.Total.Total != 15 || rep.Total.Currency != core.USD {
		t.Fatalf("unexpected total %+v", rep.Total)
	}
	if !strings.Contains(rr.Body.String(), `"Date":{"day":10}`) {
		t.Fatalf("report body missing Date.day: %s", rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), `"id"`) {
		t.Fatalf("report must not expose ids: %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/reports/categories?year=2024&month=3&currency=USD", "")
	cats := decode[[]core.CategoryTotal](t, rr)
	if len(cats) != 2 || cats[0] != (core.CategoryTotal{Category: "FOOD", Total: 10}) {
		t.Fatalf("unexpected categories %+v", cats)
	}

	rr = do(t, srv, http.MethodGet, "/reports/yearly?year=2024&currency=USD", "")
	yearly := decode[[]core.MonthTotal](t, rr)
	if len(yearly) != 12 || yearly[2].Total != 15 || yearly[0].Total != 0 {
		t.Fatalf("unexpected yearly %+v", yearly)
	}
}

func TestCreateCostValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"negative sum", `{"sum":-5,"currency":"USD","category":"FOOD","description":"x"}`, http.StatusUnprocessableEntity},
		{"non numeric sum", `{"sum":"abc","currency":"USD","category":"FOOD","description":"x"}`, http.StatusUnprocessableEntity},
		{"boolean sum", `{"sum":true,"currency":"USD","category":"FOOD","description":"x"}`, http.StatusUnprocessableEntity},
		{"missing description", `{"sum":1,"currency":"USD","category":"FOOD"}`, http.StatusUnprocessableEntity},
		{"unknown currency", `{"sum":1,"currency":"JPY","category":"FOOD","description":"x"}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"sum":1,"currency":"USD","category":"PETS","description":"x"}`, http.StatusUnprocessableEntity},
		{"malformed body", `{"sum":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/costs", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}

	rr := do(t, srv, http.MethodGet, "/reports?year=2024&month=3", "")
	if rep := decode[core.Report](t, rr); len(rep.Costs) != 0 {
		t.Fatalf("rejected costs must not be stored, got %d", len(rep.Costs))
	}
}

func TestReportQueryErrors(t *testing.T) {
	srv := newTestServer(t)

	for _, target := range []string{
		"/reports?year=2024&month=0",
		"/reports?year=2024&month=13",
		"/reports?year=2024&month=march",
		"/reports?year=2024&month=3&currency=JPY",
		"/reports/yearly?year=0",
	} {
		if rr := do(t, srv, http.MethodGet, target, ""); rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", target, rr.Code)
		}
	}

	rr := do(t, srv, http.MethodGet, "/reports", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("default period: expected 200, got %d", rr.Code)
	}
	rep := decode[core.Report](t, rr)
	if rep.Year != 2024 || rep.Month != 3 || rep.Total.Currency != core.USD || rep.Costs == nil {
		t.Fatalf("unexpected default report %+v", rep)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method, path, allow string
	}{
		{http.MethodGet, "/costs", "POST"},
		{http.MethodPost, "/reports", "GET"},
		{http.MethodDelete, "/rates", "GET, PUT"},
		{http.MethodGet, "/rates/refresh", "POST"},
	}
	for _, tt := range tests {
		rr := do(t, srv, tt.method, tt.path, "")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", tt.method, tt.path, rr.Code)
		}
		if got := rr.Header().Get("Allow"); got != tt.allow {
			t.Fatalf("%s %s: Allow=%q, want %q", tt.method, tt.path, got, tt.allow)
		}
	}
}

func TestRatesEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/rates", "")
	if got := decode[map[string]float64](t, rr); got["ILS"] != 3.5 {
		t.Fatalf("unexpected default rates %+v", got)
	}

	rr = do(t, srv, http.MethodPut, "/rates", `"not an object"`)
	if got := decode[map[string]float64](t, rr); got["ILS"] != 3.5 {
		t.Fatalf("non-object body must leave rates unchanged, got %+v", got)
	}

	rr = do(t, srv, http.MethodPut, "/rates", `{"USD":1,"ILS":4,"GBP":0.8,"EURO":0.9}`)
	if got := decode[map[string]float64](t, rr); got["ILS"] != 4 {
		t.Fatalf("expected ILS=4, got %+v", got)
	}

	rr = do(t, srv, http.MethodPost, "/rates/refresh", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("refresh without source: expected 503, got %d", rr.Code)
	}
}

func TestRefreshRatesFromURL(t *testing.T) {
	ratesSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"USD":1,"ILS":5,"GBP":0.8,"EURO":0.9}`))
	}))
	defer ratesSrv.Close()

	store := memory.New(func() time.Time { return testNow })
	svc := services.NewCostService(store, rates.NewTable(nil),
		services.WithRatesSource(rates.NewFetcher(), ""),
		services.WithSettings(store))
	srv := NewServer(":0", svc, WithNow(func() time.Time { return testNow }))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"no url configured", "", http.StatusServiceUnavailable},
		{"malformed body", `{"url":`, http.StatusBadRequest},
		{"unsupported scheme", `{"url":"ftp://example.com/rates.json"}`, http.StatusUnprocessableEntity},
		{"relative url", `{"url":"/rates.json"}`, http.StatusUnprocessableEntity},
		{"new url", `{"url":"` + ratesSrv.URL + `"}`, http.StatusOK},
		{"saved url", "", http.StatusOK},
	}
	for _, tt := range tests {
		rr := do(t, srv, http.MethodPost, "/rates/refresh", tt.body)
		if rr.Code != tt.status {
			t.Fatalf("%s: expected %d, got %d (%s)", tt.name, tt.status, rr.Code, rr.Body.String())
		}
	}

	rr := do(t, srv, http.MethodGet, "/rates", "")
	if got := decode[map[string]float64](t, rr); got["ILS"] != 5 {
		t.Fatalf("expected fetched ILS=5, got %+v", got)
	}
	saved, ok, err := store.GetSetting(context.Background(), "rates_url")
	if err != nil || !ok || saved != ratesSrv.URL {
		t.Fatalf("saved rates url = %q, %v, %v", saved, ok, err)
	}
}

func TestWriteRateLimit(t *testing.T) {
	srv := newTestServer(t, WithWriteLimit(2, time.Hour))

	body := `{"sum":1,"currency":"USD","category":"OTHER","description":"x"}`
	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/costs", body); rr.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/costs", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "3600" {
		t.Fatalf("Retry-After=%q, want 3600", got)
	}

	if rr := do(t, srv, http.MethodGet, "/reports", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are not rate limited, got %d", rr.Code)
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"trusted proxy", "10.0.0.1:80", "198.51.100.2, 10.0.0.1", "198.51.100.2"},
		{"untrusted proxy", "203.0.113.7:1234", "198.51.100.2", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Fatalf("extractClientIP=%q, want %q", got, tt.want)
			}
		})
	}
}
