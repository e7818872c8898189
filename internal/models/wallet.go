package models

// WalletPayments groups the payments a wallet takes part in
type WalletPayments struct {
	Wallet    string             `json:"wallet"`
	Scheduled []ScheduledPayment `json:"scheduled"`
	Recurring []RecurringPayment `json:"recurring"`
}

// Payment kinds
const (
	KindScheduled = "scheduled"
	KindRecurring = "recurring"
)
