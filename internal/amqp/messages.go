package amqp

import (
	"encoding/json"
	"time"

	"costmanager/internal/core"
)

// EventCostAdded is the event type carried by CostAddedMessage.
const EventCostAdded = "cost.added"

// CostAddedMessage announces a newly stored cost. It carries the whole record
// so consumers never need to read the ledger back.
type CostAddedMessage struct {
	Type        string    `json:"type"`
	ID          int64     `json:"id"`
	Sum         float64   `json:"sum"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Day         int       `json:"day"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	Timestamp   int64     `json:"timestamp"`
	PublishedAt time.Time `json:"publishedAt"`
}

func NewCostAddedMessage(rec core.CostRecord) *CostAddedMessage {
	return &CostAddedMessage{
		Type:        EventCostAdded,
		ID:          rec.ID,
		Sum:         rec.Sum,
		Currency:    rec.Currency.String(),
		Category:    rec.Category,
		Description: rec.Description,
		Day:         rec.Date.Day,
		Month:       rec.Date.Month,
		Year:        rec.Date.Year,
		Timestamp:   rec.Timestamp,
		PublishedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CostAddedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CostAddedMessageFromJSON(data []byte) (*CostAddedMessage, error) {
	var msg CostAddedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
