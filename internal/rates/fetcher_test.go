package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costmanager/internal/cache"
	"costmanager/internal/core"
)

func ratesServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetcherApply(t *testing.T) {
	srv, _ := ratesServer(t, http.StatusOK, `{"USD": 1, "ILS": 3.7, "GBP": 0.79, "EURO": 0.92, "JPY": 150}`)

	table := NewTable(nil)
	err := NewFetcher().Apply(context.Background(), srv.URL, table)
	require.NoError(t, err)

	assert.Equal(t, map[core.Currency]float64{
		core.USD: 1, core.ILS: 3.7, core.GBP: 0.79, core.EURO: 0.92,
	}, table.Snapshot())
}

func TestFetcherRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `{}`, ErrFetchRates},
		{"not json", http.StatusOK, `<html>`, ErrFetchRates},
		{"not an object", http.StatusOK, `[1, 2, 3]`, ErrIncompleteRates},
		{"missing currency", http.StatusOK, `{"USD": 1, "ILS": 3.7, "GBP": 0.79}`, ErrIncompleteRates},
		{"string rate", http.StatusOK, `{"USD": 1, "ILS": "3.7", "GBP": 0.79, "EURO": 0.9}`, ErrIncompleteRates},
		{"zero rate", http.StatusOK, `{"USD": 1, "ILS": 0, "GBP": 0.79, "EURO": 0.9}`, ErrIncompleteRates},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := ratesServer(t, tc.status, tc.body)
			table := NewTable(nil)

			err := NewFetcher().Apply(context.Background(), srv.URL, table)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, DefaultRates(), table.Snapshot(), "table must be untouched")
		})
	}
}

func TestFetcherCachesPerURL(t *testing.T) {
	srv, hits := ratesServer(t, http.StatusOK, `{"USD": 1, "ILS": 3.7, "GBP": 0.79, "EURO": 0.92}`)
	f := NewFetcher(WithCache(cache.NewLRUCache[string, map[core.Currency]float64](4, time.Minute)))

	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestValidateURL(t *testing.T) {
	for _, raw := range []string{"http://localhost:8080/rates.json", "https://example.com/rates.json"} {
		assert.NoError(t, ValidateURL(raw), raw)
	}
	for _, raw := range []string{"", "/rates.json", "ftp://example.com/rates.json", "https://", "http://%zz"} {
		assert.ErrorIs(t, ValidateURL(raw), ErrInvalidURL, raw)
	}
}
