package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduledPayment mirrors a one-shot time-locked payment contract
type ScheduledPayment struct {
	ID              int64           `json:"id"`
	ContractAddress string          `json:"contract_address"`
	ChainID         int64           `json:"chain_id"`
	Payer           string          `json:"payer"`
	Payee           string          `json:"payee"`
	TokenAddress    string          `json:"token_address,omitempty"` // empty for the native coin
	TokenSymbol     string          `json:"token_symbol"`
	Amount          decimal.Decimal `json:"amount"`
	ReleaseTime     time.Time       `json:"release_time"`
	Released        bool            `json:"released"`
	ReleaseTxHash   string          `json:"release_tx_hash,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
