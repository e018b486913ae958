package models

import "time"

// FinancialRecord is a plain bookkeeping entry owned by an account. Dates are
// carried as opaque strings supplied by the client.
type FinancialRecord struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"userId"`
	Date           string    `json:"date"`
	UpdatedDate    string    `json:"updatedDate,omitempty"`
	Amount         float64   `json:"amount"`
	OriginalAmount *float64  `json:"originalAmount,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	Category       string    `json:"category"`
	ChildCategory  string    `json:"childCategory,omitempty"`
	PaymentMethod  string    `json:"paymentMethod"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RecordFilter selects financial records for count/list queries. Empty string
// fields and nil amounts are ignored.
type RecordFilter struct {
	AccountID      string
	Category       string
	ChildCategory  string
	PaymentMethod  string
	Amount         *float64
	OriginalAmount *float64
}
