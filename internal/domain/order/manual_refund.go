package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ManualRefund is the durable record left for a human when an automated refund fails.
type ManualRefund struct {
	OrderID    uuid.UUID
	Owner      string
	RegionID   string
	CaptureRef string
	Amount     decimal.Decimal
	Currency   string
	Reason     string
	CreatedAt  time.Time
}

func NewManualRefund(o *Order, amount decimal.Decimal, reason string, now time.Time) ManualRefund {
	return ManualRefund{
		OrderID:    o.ID(),
		Owner:      o.Owner(),
		RegionID:   o.RegionID(),
		CaptureRef: o.CaptureRef(),
		Amount:     amount,
		Currency:   o.Currency(),
		Reason:     reason,
		CreatedAt:  now,
	}
}
