package models

import "time"

// Notification kinds
const (
	NotificationReleased = "payment_released"
	NotificationExecuted = "recurring_executed"
)

// Notification is an inbox entry for a wallet
type Notification struct {
	ID              int64     `json:"id"`
	UserAddress     string    `json:"user_address"`
	Kind            string    `json:"kind"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	ContractAddress string    `json:"contract_address,omitempty"`
	Read            bool      `json:"read"`
	CreatedAt       time.Time `json:"created_at"`
}
