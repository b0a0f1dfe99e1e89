package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"costmanager/internal/cache"
	"costmanager/internal/core"
)

// maxDocumentSize bounds the body read from a rates URL.
const maxDocumentSize = 1 << 20

var (
	ErrFetchRates      = errors.New("fetch rates document")
	ErrIncompleteRates = errors.New("incomplete rates document")
	ErrInvalidURL      = errors.New("invalid rates URL")
)

// Fetcher downloads and validates rates documents. A document is a JSON
// object mapping every supported currency code to its rate per 1 USD:
//
//	{"USD": 1, "ILS": 3.7, "GBP": 0.79, "EURO": 0.92}
type Fetcher struct {
	client *http.Client
	cache  cache.Cache[string, map[core.Currency]float64]
	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithCache caches validated documents per URL.
func WithCache(c cache.Cache[string, map[core.Currency]float64]) FetcherOption {
	return func(f *Fetcher) { f.cache = c }
}

// WithTimeout sets the timeout of the default client.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.client = &http.Client{Timeout: d} }
}

// WithLogger sets the fetcher logger.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a fetcher with a 10s timeout client and no cache by default.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the validated rates published at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (map[core.Currency]float64, error) {
	if f.cache != nil {
		if rates, ok := f.cache.Get(url); ok {
			f.logger.DebugContext(ctx, "Rates served from cache", "url", url)
			return clone(rates), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrFetchRates, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchRates, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFetchRates, url, resp.StatusCode)
	}

	var doc any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrFetchRates, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document is not a JSON object", ErrIncompleteRates)
	}

	rates, err := ValidateRates(obj)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		f.cache.Set(url, clone(rates))
	}

	f.logger.InfoContext(ctx, "Rates document fetched", "url", url, "currencies", len(rates))
	return rates, nil
}

// Apply fetches the document at url and installs it in table. On any error
// the table keeps its current rates.
func (f *Fetcher) Apply(ctx context.Context, url string, table *Table) error {
	rates, err := f.Fetch(ctx, url)
	if err != nil {
		return err
	}
	table.Set(rates)
	return nil
}

// ValidateRates checks that doc holds a positive finite number for every
// supported currency and returns those rates. Other keys are ignored.
func ValidateRates(doc map[string]any) (map[core.Currency]float64, error) {
	out := make(map[core.Currency]float64, len(doc))
	for _, c := range core.SupportedCurrencies() {
		v, ok := doc[string(c)]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrIncompleteRates, c)
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a number", ErrIncompleteRates, c)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			return nil, fmt.Errorf("%w: %s rate %v must be positive and finite", ErrIncompleteRates, c, f)
		}
		out[c] = f
	}
	return out, nil
}

// ValidateURL checks that raw is an absolute http or https URL.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidURL, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q must be an absolute http or https URL", ErrInvalidURL, raw)
	}
	return nil
}
