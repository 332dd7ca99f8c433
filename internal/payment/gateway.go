package payment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goa-gov/sewa-connect/internal/shared/errors"
	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

// Receipt is the gateway's record of a charge.
type Receipt struct {
	TransactionID string
	Amount        types.Money
	Status        PaymentStatus
	Method        string
	PaidAt        time.Time
}

// Gateway charges the application fee. The portal ships with a mock that
// always succeeds; a real processor would implement the same interface.
type Gateway interface {
	Charge(ctx context.Context, amount types.Money) (*Receipt, error)
}

// MockGateway simulates a payment processor. FailNext makes the next charge
// come back failed, for exercising the failure path in tests.
type MockGateway struct {
	FailNext bool
	now      func() time.Time
}

var _ Gateway = (*MockGateway)(nil)

// NewMockGateway creates the mock processor.
func NewMockGateway() *MockGateway {
	return &MockGateway{now: time.Now}
}

func (g *MockGateway) Charge(ctx context.Context, amount types.Money) (*Receipt, error) {
	if amount < 0 {
		return nil, errors.BadRequest("charge amount must not be negative")
	}

	status := StatusCompleted
	if g.FailNext {
		g.FailNext = false
		status = StatusFailed
	}

	return &Receipt{
		TransactionID: "TXN-" + uuid.NewString(),
		Amount:        amount,
		Status:        status,
		Method:        "mock",
		PaidAt:        g.now(),
	}, nil
}
