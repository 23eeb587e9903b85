package attribution

import (
	"time"

	"ms-analytics/internal/models"
)

// EventStats holds the aggregated sales figures for one event instance.
// Money stays in integer minor units here; conversion to major units
// happens only at the presentation boundary.
type EventStats struct {
	Date             time.Time `json:"date"`
	TicketsSold      int       `json:"tickets_sold"`
	TotalRevenue     int64     `json:"total_revenue"`
	UniquePurchasers int       `json:"unique_purchasers"`
	AveragePrice     int64     `json:"average_price"`
}

// Stats maps each instance date (midnight) to its aggregated figures.
type Stats map[time.Time]*EventStats

// Aggregate folds a purchase snapshot into per-instance statistics.
// Every instance gets a zero-filled accumulator so downstream rendering
// can show "no data" rows without special-casing. Only paid purchases
// count; pending and failed ones are excluded entirely.
//
// The result depends only on the inputs, so recomputing on every request
// is safe and yields identical output for identical snapshots.
func Aggregate(purchases []models.Purchase, instances []time.Time) Stats {
	stats := make(Stats, len(instances))
	purchasers := make(map[time.Time]map[string]struct{}, len(instances))
	for _, instance := range instances {
		date := DateOf(instance)
		if _, ok := stats[date]; ok {
			continue
		}
		stats[date] = &EventStats{Date: date}
		purchasers[date] = make(map[string]struct{})
	}

	if len(instances) == 0 {
		return stats
	}

	for _, p := range purchases {
		if !p.Paid() {
			continue
		}
		instance, err := Classify(p.CreatedAt, instances)
		if err != nil {
			continue
		}
		date := DateOf(instance)
		st := stats[date]
		st.TicketsSold++
		st.TotalRevenue += p.AmountMinorUnits
		purchasers[date][p.PurchaserID] = struct{}{}
	}

	for date, set := range purchasers {
		st := stats[date]
		st.UniquePurchasers = len(set)
		if st.TicketsSold > 0 {
			st.AveragePrice = st.TotalRevenue / int64(st.TicketsSold)
		}
	}
	return stats
}
