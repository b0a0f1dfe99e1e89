package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"costmanager/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable, append-only cost store.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	clock   core.Clock
	logger  *slog.Logger
}

// Option configures a SQLiteRepository.
type Option func(*SQLiteRepository)

// WithClock sets the time source read once per insert.
func WithClock(clock core.Clock) Option {
	return func(r *SQLiteRepository) { r.clock = clock }
}

// WithLogger sets the repository logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *SQLiteRepository) { r.logger = logger }
}

// Open creates or opens the cost database at dbPath and migrates its schema
// up to version (0 means latest). Opening an existing database is idempotent.
// All failures wrap core.ErrStorageOpen.
func Open(dbPath string, version uint, opts ...Option) (*SQLiteRepository, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("%w: empty database path", core.ErrStorageOpen)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %w", core.ErrStorageOpen, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", core.ErrStorageOpen, err)
	}
	// Single writer: one connection serializes inserts and scans.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrStorageOpen, err)
	}

	if err := RunMigrations(dbPath, version); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", core.ErrStorageOpen, err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		clock:   time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(repo)
	}

	return repo, nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", core.ErrStorageRead, err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AddCost validates in, stamps it with the current time and inserts it in a
// single transaction. Validation failures wrap core.ErrInvalidInput and
// engine failures wrap core.ErrStorageWrite; neither leaves a row behind.
func (r *SQLiteRepository) AddCost(ctx context.Context, in core.CostInput) (core.CostRecord, error) {
	cost, err := in.Parse()
	if err != nil {
		return core.CostRecord{}, err
	}

	rec := core.NewCostRecord(cost, r.clock())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.CostRecord{}, fmt.Errorf("%w: begin transaction: %w", core.ErrStorageWrite, err)
	}
	defer tx.Rollback()

	id, err := r.queries.WithTx(tx).CreateCost(ctx, CreateCostParams{
		Sum:         rec.Sum,
		Currency:    string(rec.Currency),
		Category:    rec.Category,
		Description: rec.Description,
		Day:         int64(rec.Date.Day),
		Month:       int64(rec.Date.Month),
		Year:        int64(rec.Date.Year),
		Timestamp:   rec.Timestamp,
	})
	if err != nil {
		return core.CostRecord{}, fmt.Errorf("%w: create cost: %w", core.ErrStorageWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return core.CostRecord{}, fmt.Errorf("%w: commit: %w", core.ErrStorageWrite, err)
	}

	rec.ID = id

	r.logger.InfoContext(ctx, "Cost saved to SQLite",
		"id", rec.ID,
		"sum", rec.Sum,
		"currency", rec.Currency,
		"category", rec.Category,
		"day", rec.Date.Day,
		"month", rec.Date.Month,
		"year", rec.Date.Year)

	return rec, nil
}

// GetAll returns every stored cost in id order. Failures wrap core.ErrStorageRead.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]core.CostRecord, error) {
	rows, err := r.queries.ListCosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list costs: %w", core.ErrStorageRead, err)
	}

	records := make([]core.CostRecord, len(rows))
	for i, row := range rows {
		records[i] = core.CostRecord{
			ID: row.ID,
			Cost: core.Cost{
				Sum:         row.Sum,
				Currency:    core.Currency(row.Currency),
				Category:    row.Category,
				Description: row.Description,
			},
			Date: core.CalendarDate{
				Day:   int(row.Day),
				Month: int(row.Month),
				Year:  int(row.Year),
			},
			Timestamp: row.Timestamp,
		}
	}

	return records, nil
}

// GetSetting returns the value saved under key. A database opened below
// schema version 3 has no settings and fails with core.ErrStorageRead.
func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	value, err := r.queries.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get setting %q: %w", core.ErrStorageRead, key, err)
	}
	return value, true, nil
}

// PutSetting saves value under key. Failures wrap core.ErrStorageWrite.
func (r *SQLiteRepository) PutSetting(ctx context.Context, key, value string) error {
	err := r.queries.UpsertSetting(ctx, UpsertSettingParams{
		Key:       key,
		Value:     value,
		UpdatedAt: r.clock().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("%w: put setting %q: %w", core.ErrStorageWrite, key, err)
	}

	r.logger.InfoContext(ctx, "Setting saved", "key", key)
	return nil
}
