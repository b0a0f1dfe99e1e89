// Package report turns stored costs into monthly reports and chart series.
package report

import (
	"context"
	"fmt"
	"sort"

	"costmanager/internal/core"
	"costmanager/internal/ports"
)

// Converter converts an amount between two currencies.
type Converter interface {
	Convert(amount float64, from, to core.Currency) float64
}

// Source produces monthly reports. Builder implements it; callers may wrap
// it with a cache.
type Source interface {
	GetReport(ctx context.Context, year, month int, currency core.Currency) (core.Report, error)
}

// Builder builds reports from a cost store and a converter.
type Builder struct {
	store     ports.CostReader
	converter Converter
}

func NewBuilder(store ports.CostReader, converter Converter) *Builder {
	return &Builder{store: store, converter: converter}
}

// GetReport returns the costs inserted in year/month with each sum converted
// into currency. Items are ordered by day, then by insertion order.
//
// Errors wrap core.ErrInvalidRange, core.ErrUnsupportedCurrency or the
// store's core.ErrStorageRead.
func (b *Builder) GetReport(ctx context.Context, year, month int, currency core.Currency) (core.Report, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return core.Report{}, err
	}
	if !currency.IsSupported() {
		return core.Report{}, fmt.Errorf("%w: %q", core.ErrUnsupportedCurrency, currency)
	}

	all, err := b.store.GetAll(ctx)
	if err != nil {
		return core.Report{}, fmt.Errorf("get all costs: %w", err)
	}

	matching := make([]core.CostRecord, 0, len(all))
	for _, r := range all {
		if r.InMonth(year, month) {
			matching = append(matching, r)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].Date.Day != matching[j].Date.Day {
			return matching[i].Date.Day < matching[j].Date.Day
		}
		return matching[i].ID < matching[j].ID
	})

	rep := core.Report{
		Year:  year,
		Month: month,
		Costs: make([]core.ItemView, 0, len(matching)),
		Total: core.Total{Currency: currency},
	}
	for _, r := range matching {
		converted := b.converter.Convert(r.Sum, r.Currency, currency)
		rep.Costs = append(rep.Costs, core.NewItemView(r, converted))
		rep.Total.Total += converted
	}

	return rep, nil
}
