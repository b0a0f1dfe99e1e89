package ports

import (
	"context"

	"costmanager/internal/core"
)

// Ports for the cost store.
type (
	// CostWriter appends costs. The store assigns ID and insertion date.
	CostWriter interface {
		AddCost(ctx context.Context, in core.CostInput) (core.CostRecord, error)
	}

	// CostReader returns every stored cost in store order.
	CostReader interface {
		GetAll(ctx context.Context) ([]core.CostRecord, error)
	}

	// CostStore is the full storage boundary.
	CostStore interface {
		CostWriter
		CostReader
		Close() error
	}

	// SettingsStore keeps user preferences across restarts. Get reports
	// ok=false for a key that was never saved.
	SettingsStore interface {
		GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
		PutSetting(ctx context.Context, key, value string) error
	}
)

// SettingRatesURL is the key of the saved rates document URL.
const SettingRatesURL = "rates_url"
