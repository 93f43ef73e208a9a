package models

import (
	"encoding/json"
	"time"
)

// Order is the ledger entry for one provider checkout session.
// It is written as pending when the session is created and then either
// marked paid or deleted by reconciliation.
type Order struct {
	SessionID       string          `json:"session_id"`
	ProductID       string          `json:"product_id"`
	CustomerDetails json.RawMessage `json:"customer_details,omitempty"`
	ShippingDetails json.RawMessage `json:"shipping_details,omitempty"`
	Paid            bool            `json:"paid"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
