package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentLink is a shareable request for a payment
type PaymentLink struct {
	ID           string          `json:"id"`
	Creator      string          `json:"creator"`
	Payee        string          `json:"payee"`
	TokenAddress string          `json:"token_address,omitempty"`
	TokenSymbol  string          `json:"token_symbol"`
	Amount       decimal.Decimal `json:"amount"`
	ChainID      int64           `json:"chain_id"`
	Description  string          `json:"description,omitempty"`
	Signature    string          `json:"signature"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Expired reports whether the link is past its expiry at now
func (l *PaymentLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}
