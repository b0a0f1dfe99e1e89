package report

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"costmanager/internal/core"
)

// monthQueryLimit bounds concurrent month queries in YearMonthlyTotals.
const monthQueryLimit = 4

// CategoryTotals sums the items of a report per category. Each item counts
// with its converted sum, or its raw sum when it has none. Rows come out in
// order of first appearance and only for categories present in costs.
func CategoryTotals(costs []core.ItemView) []core.CategoryTotal {
	index := make(map[string]int)
	totals := make([]core.CategoryTotal, 0)

	for _, c := range costs {
		i, ok := index[c.Category]
		if !ok {
			i = len(totals)
			index[c.Category] = i
			totals = append(totals, core.CategoryTotal{Category: c.Category})
		}
		totals[i].Total += c.Amount()
	}

	return totals
}

// YearMonthlyTotals fetches the report of every month of year and returns
// its total, months 1 through 12 in order. Months without costs total 0.
func YearMonthlyTotals(ctx context.Context, src Source, year int, currency core.Currency) ([]core.MonthTotal, error) {
	totals := make([]core.MonthTotal, 12)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(monthQueryLimit)

	for month := 1; month <= 12; month++ {
		month := month
		g.Go(func() error {
			rep, err := src.GetReport(ctx, year, month, currency)
			if err != nil {
				return fmt.Errorf("report %d-%02d: %w", year, month, err)
			}
			totals[month-1] = core.MonthTotal{Month: month, Total: rep.Total.Total}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return totals, nil
}
