package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the statements used by the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const createCost = `INSERT INTO costs (sum, currency, category, description, day, month, year, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

type CreateCostParams struct {
	Sum         float64
	Currency    string
	Category    string
	Description string
	Day         int64
	Month       int64
	Year        int64
	Timestamp   int64
}

// CreateCost inserts a cost and returns its generated id.
func (q *Queries) CreateCost(ctx context.Context, arg CreateCostParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createCost,
		arg.Sum,
		arg.Currency,
		arg.Category,
		arg.Description,
		arg.Day,
		arg.Month,
		arg.Year,
		arg.Timestamp,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listCosts = `SELECT id, sum, currency, category, description, day, month, year, timestamp
FROM costs
ORDER BY id`

type Cost struct {
	ID          int64
	Sum         float64
	Currency    string
	Category    string
	Description string
	Day         int64
	Month       int64
	Year        int64
	Timestamp   int64
}

// ListCosts returns every row in id order.
func (q *Queries) ListCosts(ctx context.Context) ([]Cost, error) {
	rows, err := q.db.QueryContext(ctx, listCosts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Cost
	for rows.Next() {
		var i Cost
		if err := rows.Scan(
			&i.ID,
			&i.Sum,
			&i.Currency,
			&i.Category,
			&i.Description,
			&i.Day,
			&i.Month,
			&i.Year,
			&i.Timestamp,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getSetting = `SELECT value FROM settings WHERE key = ?`

// GetSetting returns the value stored under key, or sql.ErrNoRows.
func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	row := q.db.QueryRowContext(ctx, getSetting, key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const upsertSetting = `INSERT INTO settings (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

type UpsertSettingParams struct {
	Key       string
	Value     string
	UpdatedAt int64
}

func (q *Queries) UpsertSetting(ctx context.Context, arg UpsertSettingParams) error {
	_, err := q.db.ExecContext(ctx, upsertSetting, arg.Key, arg.Value, arg.UpdatedAt)
	return err
}
