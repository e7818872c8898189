package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recurring payment statuses
const (
	RecurringActive    = "active"
	RecurringCompleted = "completed"
	RecurringCancelled = "cancelled"
)

// Recurring payment event types
const (
	EventCreated  = "created"
	EventExecuted = "executed"
)

// RecurringPayment mirrors a monthly payment contract
type RecurringPayment struct {
	ID              int64           `json:"id"`
	ContractAddress string          `json:"contract_address"`
	ChainID         int64           `json:"chain_id"`
	Payer           string          `json:"payer"`
	Payee           string          `json:"payee"`
	TokenAddress    string          `json:"token_address,omitempty"`
	TokenSymbol     string          `json:"token_symbol"`
	MonthlyAmount   decimal.Decimal `json:"monthly_amount"`
	FirstPaymentAt  time.Time       `json:"first_payment_at"`
	TotalMonths     int             `json:"total_months"`
	ExecutedMonths  int             `json:"executed_months"`
	Status          string          `json:"status"`
	Beneficiaries   []string        `json:"beneficiaries,omitempty"` // batch payments only
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RemainingMonths is how many monthly executions are still scheduled
func (p *RecurringPayment) RemainingMonths() int {
	if p.ExecutedMonths >= p.TotalMonths {
		return 0
	}
	return p.TotalMonths - p.ExecutedMonths
}

// NextPaymentAt returns the due date of the next execution, or the zero time
// once every month has been executed.
func (p *RecurringPayment) NextPaymentAt() time.Time {
	if p.RemainingMonths() == 0 || p.Status != RecurringActive {
		return time.Time{}
	}
	return p.FirstPaymentAt.AddDate(0, p.ExecutedMonths, 0)
}

// RecurringPaymentEvent is an append-only log entry for a recurring payment
type RecurringPaymentEvent struct {
	ID              int64           `json:"id"`
	ContractAddress string          `json:"contract_address"`
	EventType       string          `json:"event_type"`
	MonthIndex      int             `json:"month_index"`
	Amount          decimal.Decimal `json:"amount"`
	TxHash          string          `json:"tx_hash,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RecurringDetails is the response body of the recurring payment lookup
type RecurringDetails struct {
	Payment       *RecurringPayment       `json:"payment"`
	Events        []RecurringPaymentEvent `json:"events"`
	NextPaymentAt *time.Time              `json:"next_payment_at,omitempty"`
}
