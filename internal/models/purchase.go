package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Purchase is a paid-ticket fact owned by the ordering/payment services.
// This service only reads snapshots of it; the payment event consumer
// keeps the local copy in sync.
type Purchase struct {
	bun.BaseModel `bun:"table:purchases"`

	PurchaseID       string        `bun:"purchase_id,pk" json:"purchase_id"`
	PurchaserID      string        `bun:"purchaser_id" json:"purchaser_id"`
	AmountMinorUnits int64         `bun:"amount_minor_units" json:"amount_minor_units"`
	PaymentStatus    PaymentStatus `bun:"payment_status" json:"payment_status"`
	CreatedAt        time.Time     `bun:"created_at" json:"created_at"`
}

// Paid reports whether the purchase counts toward sales figures.
// Pending and failed payments get no partial credit.
func (p Purchase) Paid() bool {
	return p.PaymentStatus == PaymentPaid
}
