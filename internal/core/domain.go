package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	USD  Currency = "USD"
	ILS  Currency = "ILS"
	GBP  Currency = "GBP"
	EURO Currency = "EURO"
)

const (
	CategoryFood      = "FOOD"
	CategoryCar       = "CAR"
	CategoryEducation = "EDUCATION"
	CategoryHealth    = "HEALTH"
	CategoryOther     = "OTHER"
)

type (
	// Currency is one of the fixed set of supported currency codes.
	Currency string

	// Clock returns the current time. Stores read it once per insert.
	Clock func() time.Time

	// CostInput is the caller-supplied shape of a new cost. Sum accepts a
	// JSON number or a numeric string.
	CostInput struct {
		Sum         json.Number `json:"sum"`
		Currency    string      `json:"currency"`
		Category    string      `json:"category"`
		Description string      `json:"description"`
	}

	// Cost is a validated CostInput.
	Cost struct {
		Sum         float64  `json:"sum"`
		Currency    Currency `json:"currency"`
		Category    string   `json:"category"`
		Description string   `json:"description"`
	}

	// CalendarDate is the insertion date of a cost.
	CalendarDate struct {
		Day   int `json:"day"`
		Month int `json:"month"` // 1-12
		Year  int `json:"year"`
	}

	// CostRecord is a stored cost. ID, Date and Timestamp are assigned by the store.
	CostRecord struct {
		ID int64 `json:"id"`
		Cost
		Date      CalendarDate `json:"Date"`
		Timestamp int64        `json:"timestamp"` // unix milliseconds
	}
)

var supportedCurrencies = []Currency{USD, ILS, GBP, EURO}

var categories = []string{CategoryFood, CategoryCar, CategoryEducation, CategoryHealth, CategoryOther}

// SupportedCurrencies returns the closed set of currency codes.
func SupportedCurrencies() []Currency {
	return append([]Currency(nil), supportedCurrencies...)
}

// Categories returns the known category labels.
func Categories() []string {
	return append([]string(nil), categories...)
}

func (c Currency) String() string {
	return string(c)
}

// IsSupported reports whether c belongs to the fixed currency set.
func (c Currency) IsSupported() bool {
	for _, s := range supportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// ParseCurrency returns the currency for code or ErrUnsupportedCurrency.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.TrimSpace(code))
	if !c.IsSupported() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	return c, nil
}

// IsKnownCategory reports whether category is one of the known labels.
// Stores accept any category; this is for callers that validate input.
func IsKnownCategory(category string) bool {
	for _, c := range categories {
		if category == c {
			return true
		}
	}
	return false
}

// Parse validates the input and returns the normalized cost.
// All errors wrap ErrInvalidInput.
func (in CostInput) Parse() (Cost, error) {
	if strings.TrimSpace(in.Sum.String()) == "" {
		return Cost{}, invalid(ErrMissingSum)
	}
	if strings.TrimSpace(in.Currency) == "" {
		return Cost{}, invalid(ErrMissingCurrency)
	}
	if strings.TrimSpace(in.Category) == "" {
		return Cost{}, invalid(ErrMissingCategory)
	}
	if strings.TrimSpace(in.Description) == "" {
		return Cost{}, invalid(ErrEmptyDescription)
	}

	sum, err := ParseSum(in.Sum.String())
	if err != nil {
		return Cost{}, invalid(err)
	}

	currency := Currency(strings.TrimSpace(in.Currency))
	if !currency.IsSupported() {
		return Cost{}, invalid(fmt.Errorf("%w: %q", ErrUnknownCurrency, in.Currency))
	}

	return Cost{
		Sum:         sum,
		Currency:    currency,
		Category:    in.Category,
		Description: in.Description,
	}, nil
}

// NewCalendarDate returns the local calendar date of t.
func NewCalendarDate(t time.Time) CalendarDate {
	year, month, day := t.Date()
	return CalendarDate{Day: day, Month: int(month), Year: year}
}

// NewCostRecord stamps c with the insertion instant. Date and Timestamp are
// derived from the same value so they never disagree.
func NewCostRecord(c Cost, at time.Time) CostRecord {
	return CostRecord{
		Cost:      c,
		Date:      NewCalendarDate(at),
		Timestamp: at.UnixMilli(),
	}
}

// InsertedAt returns the absolute insertion time.
func (r CostRecord) InsertedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// InMonth reports whether the record was inserted in the given year and month.
func (r CostRecord) InMonth(year, month int) bool {
	return r.Date.Year == year && r.Date.Month == month
}

// ValidateYearMonth checks the report period. Errors wrap ErrInvalidRange.
func ValidateYearMonth(year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d must be between 1 and 12", ErrInvalidRange, month)
	}
	if year < 1 {
		return fmt.Errorf("%w: year %d", ErrInvalidRange, year)
	}
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
