package models

import "time"

// PaymentEvent is the message the payment gateway publishes when a
// checkout settles. The consumer folds it into the purchases table.
type PaymentEvent struct {
	Type             string        `json:"type"`
	PurchaseID       string        `json:"purchase_id"`
	PurchaserID      string        `json:"purchaser_id"`
	AmountMinorUnits int64         `json:"amount_minor_units"`
	Status           PaymentStatus `json:"status"`
	Timestamp        time.Time     `json:"timestamp"`
}

// AnalyticsUpdatedEvent is published by the aggregation job after a
// recompute so interested consumers can refresh their views.
type AnalyticsUpdatedEvent struct {
	RecomputedAt  time.Time `json:"recomputed_at"`
	InstanceCount int       `json:"instance_count"`
	TicketsSold   int       `json:"tickets_sold"`
}
