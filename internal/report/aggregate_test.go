package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costmanager/internal/core"
)

func ptr(f float64) *float64 { return &f }

func TestCategoryTotals(t *testing.T) {
	tests := []struct {
		name  string
		costs []core.ItemView
		want  []core.CategoryTotal
	}{
		{
			name: "groups converted sums with raw sum fallback",
			costs: []core.ItemView{
				{Category: "FOOD", Sum: 99, SumInCurrency: ptr(10)},
				{Category: "FOOD", Sum: 99, SumInCurrency: ptr(5)},
				{Category: "CAR", Sum: 3},
			},
			want: []core.CategoryTotal{
				{Category: "FOOD", Total: 15},
				{Category: "CAR", Total: 3},
			},
		},
		{
			name:  "empty input yields no rows",
			costs: nil,
			want:  []core.CategoryTotal{},
		},
		{
			name: "order of first appearance",
			costs: []core.ItemView{
				{Category: "HEALTH", SumInCurrency: ptr(1)},
				{Category: "EDUCATION", SumInCurrency: ptr(2)},
				{Category: "HEALTH", SumInCurrency: ptr(3)},
			},
			want: []core.CategoryTotal{
				{Category: "HEALTH", Total: 4},
				{Category: "EDUCATION", Total: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryTotals(tt.costs))
		})
	}
}

func TestYearMonthlyTotals(t *testing.T) {
	store, clk, b := newFixture(t)
	clk.now = time.Date(2024, time.February, 2, 10, 0, 0, 0, time.Local)
	add(t, store, "10", "USD", "FOOD", "feb")
	clk.now = time.Date(2024, time.November, 2, 10, 0, 0, 0, time.Local)
	add(t, store, "7", "ILS", "FOOD", "nov")
	clk.now = time.Date(2025, time.February, 2, 10, 0, 0, 0, time.Local)
	add(t, store, "100", "USD", "FOOD", "next year")

	totals, err := YearMonthlyTotals(context.Background(), b, 2024, core.USD)
	require.NoError(t, err)
	require.Len(t, totals, 12)

	for i, mt := range totals {
		assert.Equal(t, i+1, mt.Month)
		switch mt.Month {
		case 2:
			assert.Equal(t, 10.0, mt.Total)
		case 11:
			assert.InDelta(t, 2.0, mt.Total, 1e-9)
		default:
			assert.Zero(t, mt.Total, "month %d", mt.Month)
		}
	}
}

type recordingSource struct {
	mu     sync.Mutex
	months []int
	failOn int
}

func (s *recordingSource) GetReport(_ context.Context, year, month int, currency core.Currency) (core.Report, error) {
	s.mu.Lock()
	s.months = append(s.months, month)
	s.mu.Unlock()
	if month == s.failOn {
		return core.Report{}, core.ErrStorageRead
	}
	return core.Report{Year: year, Month: month, Total: core.Total{Currency: currency, Total: float64(month)}}, nil
}

func TestYearMonthlyTotalsQueriesEveryMonth(t *testing.T) {
	src := &recordingSource{}
	totals, err := YearMonthlyTotals(context.Background(), src, 2024, core.GBP)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, src.months)
	for i, mt := range totals {
		assert.Equal(t, core.MonthTotal{Month: i + 1, Total: float64(i + 1)}, mt)
	}
}

func TestYearMonthlyTotalsPropagatesErrors(t *testing.T) {
	src := &recordingSource{failOn: 6}
	totals, err := YearMonthlyTotals(context.Background(), src, 2024, core.USD)
	assert.Nil(t, totals)
	assert.True(t, errors.Is(err, core.ErrStorageRead))
}
