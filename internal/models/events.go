package models

import "time"

// Event types
const (
	EventTypeRecordChanged    = "RECORD_CHANGED"
	EventTypeSaleItemRecorded = "SALE_ITEM_RECORDED"
	EventTypeStockLow         = "STOCK_LOW"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	ActionID  string    `json:"action_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordChangedEvent published after every committed insert, update or delete
type RecordChangedEvent struct {
	BaseEvent
	Entity    Entity `json:"entity"`
	RecordID  string `json:"record_id"`
	Operation string `json:"operation"`
}

// SaleItemRecordedEvent published after a sale item insert has decremented stock
type SaleItemRecordedEvent struct {
	BaseEvent
	SaleItemID string  `json:"sale_item_id"`
	SaleID     string  `json:"sale_id"`
	MedicineID string  `json:"medicine_id"`
	Quantity   int     `json:"quantity"`
	Subtotal   float64 `json:"subtotal"`
	Discount   string  `json:"discount"`
}

// StockLowEvent published by the stock alert worker
type StockLowEvent struct {
	BaseEvent
	MedicineID string `json:"medicine_id"`
	Remaining  int    `json:"remaining"`
	Threshold  int    `json:"threshold"`
}

// Type returns the event type; promoted to every concrete event
func (e BaseEvent) Type() string {
	return e.EventType
}
