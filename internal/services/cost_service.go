package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"costmanager/internal/cache"
	"costmanager/internal/core"
	"costmanager/internal/ports"
	"costmanager/internal/rates"
	"costmanager/internal/report"
)

// ErrRatesSourceNotConfigured is returned by RefreshRates when the service
// has no fetcher or no rates URL.
var ErrRatesSourceNotConfigured = errors.New("rates source not configured")

// Publisher announces stored costs to other systems.
type Publisher interface {
	PublishCostAdded(ctx context.Context, rec core.CostRecord) error
	Close() error
}

// CostService orchestrates the ledger: inserts go to the store and out to
// the publisher, reports are built from the store and the rate table and
// cached until the next insert or rates change.
type CostService struct {
	store     ports.CostStore
	table     *rates.Table
	builder   *report.Builder
	publisher Publisher
	fetcher   *rates.Fetcher
	settings  ports.SettingsStore
	reports   cache.Cache[string, core.Report]
	logger    *slog.Logger

	sourceMu sync.RWMutex
	ratesURL string

	// generation is part of every report cache key so a report computed
	// concurrently with an invalidation is never served afterwards.
	generation atomic.Uint64
}

// Option configures a CostService.
type Option func(*CostService)

func WithPublisher(p Publisher) Option {
	return func(s *CostService) { s.publisher = p }
}

// WithRatesSource enables RefreshRates. url may be empty until a caller
// supplies one to RefreshRatesFrom.
func WithRatesSource(f *rates.Fetcher, url string) Option {
	return func(s *CostService) {
		s.fetcher = f
		s.ratesURL = url
	}
}

// WithSettings saves the rates URL chosen through RefreshRatesFrom.
func WithSettings(st ports.SettingsStore) Option {
	return func(s *CostService) { s.settings = st }
}

func WithReportCache(c cache.Cache[string, core.Report]) Option {
	return func(s *CostService) { s.reports = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *CostService) { s.logger = l }
}

// NewCostService wires a service around store and table. A nil table starts
// from rates.DefaultRates.
func NewCostService(store ports.CostStore, table *rates.Table, opts ...Option) *CostService {
	if table == nil {
		table = rates.NewTable(nil)
	}
	s := &CostService{
		store:   store,
		table:   table,
		builder: report.NewBuilder(store, table),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddCost validates the category, stores the cost and publishes a
// cost.added event. Publish failures are logged and never fail the insert.
func (s *CostService) AddCost(ctx context.Context, in core.CostInput) (core.CostRecord, error) {
	if in.Category != "" && !core.IsKnownCategory(in.Category) {
		return core.CostRecord{}, fmt.Errorf("%w: %w: %q", core.ErrInvalidInput, core.ErrUnknownCategory, in.Category)
	}

	rec, err := s.store.AddCost(ctx, in)
	if err != nil {
		return core.CostRecord{}, fmt.Errorf("save cost: %w", err)
	}
	s.invalidateReports()

	if err := s.publishCostAdded(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish cost added event",
			"id", rec.ID, "error", err)
	}

	return rec, nil
}

func (s *CostService) publishCostAdded(ctx context.Context, rec core.CostRecord) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Publisher not available, skipping cost added event")
		return nil
	}
	return s.publisher.PublishCostAdded(ctx, rec)
}

// GetReport returns the monthly report, served from the report cache when possible.
func (s *CostService) GetReport(ctx context.Context, year, month int, currency core.Currency) (core.Report, error) {
	if s.reports == nil {
		return s.builder.GetReport(ctx, year, month, currency)
	}

	key := fmt.Sprintf("%d:%d-%02d-%s", s.generation.Load(), year, month, currency)
	// Cached reports are copied in and out so callers may modify what they get.
	if rep, ok := s.reports.Get(key); ok {
		s.logger.DebugContext(ctx, "Report served from cache", "key", key)
		return rep.Clone(), nil
	}

	rep, err := s.builder.GetReport(ctx, year, month, currency)
	if err != nil {
		return core.Report{}, err
	}
	s.reports.Set(key, rep.Clone())
	return rep, nil
}

// CategoryTotals returns the per-category totals of the monthly report.
func (s *CostService) CategoryTotals(ctx context.Context, year, month int, currency core.Currency) ([]core.CategoryTotal, error) {
	rep, err := s.GetReport(ctx, year, month, currency)
	if err != nil {
		return nil, err
	}
	return report.CategoryTotals(rep.Costs), nil
}

// YearMonthlyTotals returns the twelve monthly totals of year.
func (s *CostService) YearMonthlyTotals(ctx context.Context, year int, currency core.Currency) ([]core.MonthTotal, error) {
	return report.YearMonthlyTotals(ctx, s, year, currency)
}

// Rates returns a copy of the current rate table.
func (s *CostService) Rates() map[core.Currency]float64 {
	return s.table.Snapshot()
}

// SetRates replaces the rate table wholesale. A nil map is ignored.
func (s *CostService) SetRates(candidate map[core.Currency]float64) {
	if candidate == nil {
		return
	}
	s.table.Set(candidate)
	s.invalidateReports()
}

// SetRatesJSON replaces the rate table from a raw JSON object. Anything
// other than an object leaves the table unchanged.
func (s *CostService) SetRatesJSON(raw []byte) {
	before := s.table.Snapshot()
	s.table.SetJSON(raw)
	if !sameRates(before, s.table.Snapshot()) {
		s.invalidateReports()
	}
}

// RatesURL returns the URL RefreshRates fetches from, empty when unset.
func (s *CostService) RatesURL() string {
	s.sourceMu.RLock()
	defer s.sourceMu.RUnlock()
	return s.ratesURL
}

// RefreshRates fetches the current rates document and installs it.
// On failure the table keeps its current rates.
func (s *CostService) RefreshRates(ctx context.Context) error {
	return s.RefreshRatesFrom(ctx, "")
}

// RefreshRatesFrom fetches the rates document at url, or at the current
// URL when url is empty. After a successful fetch from a new url, that url
// becomes current and is saved to the settings store. A failed fetch
// changes neither the table nor the current URL.
func (s *CostService) RefreshRatesFrom(ctx context.Context, url string) error {
	if s.fetcher == nil {
		return ErrRatesSourceNotConfigured
	}
	current := s.RatesURL()
	if url == "" {
		url = current
	}
	if url == "" {
		return ErrRatesSourceNotConfigured
	}
	if err := rates.ValidateURL(url); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidInput, err)
	}

	if err := s.fetcher.Apply(ctx, url, s.table); err != nil {
		return fmt.Errorf("refresh rates: %w", err)
	}
	s.invalidateReports()

	if url != current {
		s.sourceMu.Lock()
		s.ratesURL = url
		s.sourceMu.Unlock()
		s.saveRatesURL(ctx, url)
	}

	s.logger.InfoContext(ctx, "Rates refreshed", "url", url)
	return nil
}

// saveRatesURL persists url. The URL stays current for this process even
// when saving fails.
func (s *CostService) saveRatesURL(ctx context.Context, url string) {
	if s.settings == nil {
		return
	}
	if err := s.settings.PutSetting(ctx, ports.SettingRatesURL, url); err != nil {
		s.logger.WarnContext(ctx, "Failed to save rates URL", "url", url, "error", err)
	}
}

func (s *CostService) invalidateReports() {
	if s.reports == nil {
		return
	}
	s.generation.Add(1)
	s.reports.Purge()
}

// Close closes the store and the publisher.
func (s *CostService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close cost service: %w", errors.Join(errs...))
	}
	return nil
}

func sameRates(a, b map[core.Currency]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
