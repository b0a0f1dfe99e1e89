package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"costmanager/internal/core"
	"costmanager/internal/rates"
	"costmanager/internal/services"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps the ledger's error taxonomy to a status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, core.ErrUnsupportedCurrency):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrRatesSourceNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, rates.ErrFetchRates),
		errors.Is(err, rates.ErrIncompleteRates):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides storage internals behind a generic message.
func publicMessage(status int, err error) string {
	if status >= 500 && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
		return http.StatusText(status)
	}
	return err.Error()
}

// allowMethods writes 405 with an Allow header unless r uses one of methods.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// reportQuery holds the period and currency of a report request.
type reportQuery struct {
	Year     int
	Month    int
	Currency core.Currency
}

// parseReportQuery reads year, month and currency from query. Missing year
// and month default to the current period and a missing currency to USD.
// Values that are present but not integers fail with core.ErrInvalidRange.
func parseReportQuery(query url.Values, now time.Time) (reportQuery, error) {
	q := reportQuery{
		Year:     now.Year(),
		Month:    int(now.Month()),
		Currency: core.USD,
	}

	var err error
	if q.Year, err = intParam(query, "year", q.Year); err != nil {
		return reportQuery{}, err
	}
	if q.Month, err = intParam(query, "month", q.Month); err != nil {
		return reportQuery{}, err
	}
	if v := strings.TrimSpace(query.Get("currency")); v != "" {
		q.Currency = core.Currency(strings.ToUpper(v))
	}

	return q, nil
}

func intParam(query url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", core.ErrInvalidRange, name, v)
	}
	return n, nil
}
