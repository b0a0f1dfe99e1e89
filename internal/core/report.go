package core

type (
	// ItemDate is the calendar day exposed in a report item.
	ItemDate struct {
		Day int `json:"day"`
	}

	// ItemView is a cost as it appears in a report. Identity and timestamp
	// are not exposed. SumInCurrency is nil only for views built outside a report.
	ItemView struct {
		Sum           float64  `json:"sum"`
		Currency      Currency `json:"currency"`
		Category      string   `json:"category"`
		Description   string   `json:"description"`
		Date          ItemDate `json:"Date"`
		SumInCurrency *float64 `json:"sumInCurrency,omitempty"`
	}

	// Total is the grand total of a report in its target currency.
	Total struct {
		Currency Currency `json:"currency"`
		Total    float64  `json:"total"`
	}

	// Report is the point-in-time view of one month of costs in one currency.
	Report struct {
		Year  int        `json:"year"`
		Month int        `json:"month"` // 1-12
		Costs []ItemView `json:"costs"`
		Total Total      `json:"total"`
	}

	// CategoryTotal is one slice of a category breakdown.
	CategoryTotal struct {
		Category string  `json:"name"`
		Total    float64 `json:"value"`
	}

	// MonthTotal is one bar of a yearly breakdown.
	MonthTotal struct {
		Month int     `json:"month"`
		Total float64 `json:"total"`
	}
)

// NewItemView builds the report view of r with its converted sum.
func NewItemView(r CostRecord, sumInCurrency float64) ItemView {
	return ItemView{
		Sum:           r.Sum,
		Currency:      r.Currency,
		Category:      r.Category,
		Description:   r.Description,
		Date:          ItemDate{Day: r.Date.Day},
		SumInCurrency: &sumInCurrency,
	}
}

// Amount returns SumInCurrency, falling back to the raw Sum when absent.
func (v ItemView) Amount() float64 {
	if v.SumInCurrency != nil {
		return *v.SumInCurrency
	}
	return v.Sum
}

// Clone returns a deep copy of r. Changes to the copy's items, including
// their converted sums, never reach r.
func (r Report) Clone() Report {
	if r.Costs == nil {
		return r
	}
	costs := make([]ItemView, len(r.Costs))
	for i, item := range r.Costs {
		if item.SumInCurrency != nil {
			v := *item.SumInCurrency
			item.SumInCurrency = &v
		}
		costs[i] = item
	}
	r.Costs = costs
	return r
}
