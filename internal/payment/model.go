package payment

import (
	"time"

	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// PaymentStatus is the terminal gateway outcome.
type PaymentStatus string

const (
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

// Payment is the fee record for one application, written once during
// submission. Amount is in paise and equals the service fee at submission
// time.
type Payment struct {
	ID            types.ID      `json:"id"`
	ApplicationID types.ID      `json:"application_id"`
	TransactionID string        `json:"transaction_id"`
	Amount        types.Money   `json:"amount"`
	Status        PaymentStatus `json:"status"`
	PaymentMethod string        `json:"payment_method"`
	PaidAt        time.Time     `json:"paid_at"`
}
