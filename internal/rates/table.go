// Package rates holds the currency rate table, the USD-pivot converter and
// the fetcher for rates documents.
//
// Rates are expressed as units of a currency per 1 USD.
package rates

import (
	"encoding/json"
	"math"
	"sync"

	"costmanager/internal/core"
)

// DefaultRates is the snapshot a Table starts from when none is given.
func DefaultRates() map[core.Currency]float64 {
	return map[core.Currency]float64{
		core.USD:  1,
		core.ILS:  3.5,
		core.GBP:  0.8,
		core.EURO: 0.9,
	}
}

// Table is a replaceable currency rate snapshot. It is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	rates map[core.Currency]float64
}

// NewTable returns a table holding a copy of initial, or DefaultRates when initial is nil.
func NewTable(initial map[core.Currency]float64) *Table {
	if initial == nil {
		initial = DefaultRates()
	}
	return &Table{rates: clone(initial)}
}

// Set replaces the whole table with candidate. A nil candidate is ignored.
//
// Completeness is not checked here: a candidate missing a currency leaves
// conversions involving it as identity until corrected. Use ValidateRates
// when the candidate comes from an untrusted document.
func (t *Table) Set(candidate map[core.Currency]float64) {
	if candidate == nil {
		return
	}
	next := clone(candidate)

	t.mu.Lock()
	t.rates = next
	t.mu.Unlock()
}

// SetJSON replaces the table with the JSON object in raw. Anything other
// than a JSON object is ignored. Non-numeric entries are dropped and behave
// as missing rates.
func (t *Table) SetJSON(raw []byte) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return
	}
	t.Set(numericEntries(obj))
}

// Rate returns the rate for c and whether it is usable (present, non-zero, not NaN).
func (t *Table) Rate(c core.Currency) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return usable(t.rates, c)
}

// Snapshot returns a copy of the current table.
func (t *Table) Snapshot() map[core.Currency]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return clone(t.rates)
}

// Convert converts amount from one currency to another through USD.
// Both rates are read from the same snapshot.
func (t *Table) Convert(amount float64, from, to core.Currency) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Convert(t.rates, amount, from, to)
}

// Convert returns amount / rates[from] * rates[to]. When either rate is
// missing, zero or NaN the amount is returned unchanged.
func Convert(rates map[core.Currency]float64, amount float64, from, to core.Currency) float64 {
	if from == to {
		return amount
	}
	fromRate, ok := usable(rates, from)
	if !ok {
		return amount
	}
	toRate, ok := usable(rates, to)
	if !ok {
		return amount
	}
	return amount / fromRate * toRate
}

func usable(rates map[core.Currency]float64, c core.Currency) (float64, bool) {
	r, ok := rates[c]
	if !ok || r == 0 || math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

func numericEntries(obj map[string]any) map[core.Currency]float64 {
	out := make(map[core.Currency]float64, len(obj))
	for k, v := range obj {
		if f, ok := v.(float64); ok {
			out[core.Currency(k)] = f
		}
	}
	return out
}

func clone(in map[core.Currency]float64) map[core.Currency]float64 {
	out := make(map[core.Currency]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
