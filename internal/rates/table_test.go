package rates

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"costmanager/internal/core"
)

func TestConvertIdentity(t *testing.T) {
	tables := []map[core.Currency]float64{
		DefaultRates(),
		{core.USD: 1, core.ILS: 3.7},
		{},
		{core.GBP: 0},
	}
	for _, rates := range tables {
		for _, c := range core.SupportedCurrencies() {
			for _, x := range []float64{0, 1, 12.34, 1e9} {
				assert.Equal(t, x, Convert(rates, x, c, c), "rates=%v currency=%s", rates, c)
			}
		}
	}
}

func TestConvertRoundTrip(t *testing.T) {
	table := NewTable(nil)
	currencies := core.SupportedCurrencies()
	for _, a := range currencies {
		for _, b := range currencies {
			x := 123.45
			back := table.Convert(table.Convert(x, a, b), b, a)
			assert.InDelta(t, x, back, 1e-9, "%s -> %s -> %s", a, b, a)
		}
	}
}

func TestConvertPivotsThroughUSD(t *testing.T) {
	table := NewTable(nil)
	assert.InDelta(t, 35.0, table.Convert(10, core.USD, core.ILS), 1e-9)
	assert.InDelta(t, 10.0, table.Convert(35, core.ILS, core.USD), 1e-9)
	// 7 ILS -> 2 USD -> 1.6 GBP
	assert.InDelta(t, 1.6, table.Convert(7, core.ILS, core.GBP), 1e-9)
}

func TestConvertMissingRateIsIdentity(t *testing.T) {
	rates := map[core.Currency]float64{core.USD: 1, core.ILS: 0}
	assert.Equal(t, 42.0, Convert(rates, 42, core.ILS, core.USD))
	assert.Equal(t, 42.0, Convert(rates, 42, core.USD, core.GBP))
}

func TestSetReplacesWholesale(t *testing.T) {
	table := NewTable(nil)
	table.Set(map[core.Currency]float64{core.USD: 1, core.ILS: 4})

	assert.Equal(t, map[core.Currency]float64{core.USD: 1, core.ILS: 4}, table.Snapshot())
	_, ok := table.Rate(core.GBP)
	assert.False(t, ok, "previous keys must not survive a replacement")
}

func TestSetIgnoresNil(t *testing.T) {
	table := NewTable(nil)
	table.Set(nil)
	assert.Equal(t, DefaultRates(), table.Snapshot())
}

func TestSetJSON(t *testing.T) {
	t.Run("non objects are ignored", func(t *testing.T) {
		table := NewTable(nil)
		for _, raw := range []string{`null`, `"not an object"`, `[1,2]`, `42`, `{broken`} {
			table.SetJSON([]byte(raw))
			assert.Equal(t, DefaultRates(), table.Snapshot(), raw)
		}
	})

	t.Run("object replaces table", func(t *testing.T) {
		table := NewTable(nil)
		table.SetJSON([]byte(`{"USD": 1, "ILS": 3.6, "GBP": "oops"}`))
		assert.Equal(t, map[core.Currency]float64{core.USD: 1, core.ILS: 3.6}, table.Snapshot())
		assert.Equal(t, 5.0, table.Convert(5, core.GBP, core.USD))
	})
}

func TestSnapshotIsACopy(t *testing.T) {
	table := NewTable(nil)
	snap := table.Snapshot()
	snap[core.USD] = 99
	r, _ := table.Rate(core.USD)
	assert.Equal(t, 1.0, r)
}
