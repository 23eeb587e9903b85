package attribution_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-analytics/internal/attribution"
	"ms-analytics/internal/models"
)

func paidPurchase(id, purchaser string, amount int64, createdAt time.Time) models.Purchase {
	return models.Purchase{
		PurchaseID:       id,
		PurchaserID:      purchaser,
		AmountMinorUnits: amount,
		PaymentStatus:    models.PaymentPaid,
		CreatedAt:        createdAt,
	}
}

func TestAggregate_SingleInstanceTotals(t *testing.T) {
	instances := threeWeekWindow(t)
	dayBefore := time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC)

	purchases := []models.Purchase{
		paidPurchase("p-1", "alice", 2000, dayBefore),
		paidPurchase("p-2", "bob", 3000, dayBefore.Add(time.Hour)),
	}

	stats := attribution.Aggregate(purchases, instances)
	require.Len(t, stats, 3)

	st := stats[tuesday]
	require.NotNil(t, st)
	assert.Equal(t, 2, st.TicketsSold)
	assert.Equal(t, int64(5000), st.TotalRevenue)
	assert.Equal(t, 2, st.UniquePurchasers)
	assert.Equal(t, int64(2500), st.AveragePrice)

	// Untouched instances stay zero-filled rather than missing.
	empty := stats[tuesday.AddDate(0, 0, -7)]
	require.NotNil(t, empty)
	assert.Zero(t, empty.TicketsSold)
	assert.Zero(t, empty.TotalRevenue)
	assert.Zero(t, empty.AveragePrice)
}

func TestAggregate_Conservation(t *testing.T) {
	instances := threeWeekWindow(t)

	purchases := []models.Purchase{
		paidPurchase("p-1", "alice", 1500, tuesday.AddDate(0, 0, -9)),
		paidPurchase("p-2", "alice", 1500, tuesday.Add(-time.Hour)),
		paidPurchase("p-3", "bob", 2500, tuesday.Add(30*time.Hour)),
		paidPurchase("p-4", "carol", 4000, tuesday.AddDate(0, 2, 0)), // clamps to latest
		{PurchaseID: "p-5", PurchaserID: "dan", AmountMinorUnits: 9999, PaymentStatus: models.PaymentPending, CreatedAt: tuesday},
		{PurchaseID: "p-6", PurchaserID: "eve", AmountMinorUnits: 9999, PaymentStatus: models.PaymentFailed, CreatedAt: tuesday},
	}

	stats := attribution.Aggregate(purchases, instances)

	var tickets int
	var revenue int64
	for _, st := range stats {
		tickets += st.TicketsSold
		revenue += st.TotalRevenue
	}

	// Paid purchases only: no drops, no double counting.
	assert.Equal(t, 4, tickets)
	assert.Equal(t, int64(1500+1500+2500+4000), revenue)
}

func TestAggregate_UniquePurchasers(t *testing.T) {
	instances := threeWeekWindow(t)
	morning := tuesday.Add(-20 * time.Hour)

	purchases := []models.Purchase{
		paidPurchase("p-1", "alice", 2000, morning),
		paidPurchase("p-2", "alice", 2000, morning.Add(time.Minute)),
		paidPurchase("p-3", "bob", 2000, morning.Add(2*time.Minute)),
	}

	stats := attribution.Aggregate(purchases, instances)
	st := stats[tuesday]
	require.NotNil(t, st)
	assert.Equal(t, 3, st.TicketsSold)
	assert.Equal(t, 2, st.UniquePurchasers)
}

func TestAggregate_PendingExcluded(t *testing.T) {
	instances := threeWeekWindow(t)

	purchases := []models.Purchase{
		{PurchaseID: "p-1", PurchaserID: "alice", AmountMinorUnits: 2000, PaymentStatus: models.PaymentPending, CreatedAt: tuesday},
	}

	stats := attribution.Aggregate(purchases, instances)
	for _, st := range stats {
		assert.Zero(t, st.TicketsSold)
		assert.Zero(t, st.TotalRevenue)
		assert.Zero(t, st.UniquePurchasers)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	instances := threeWeekWindow(t)
	purchases := []models.Purchase{
		paidPurchase("p-1", "alice", 2000, tuesday.Add(-26*time.Hour)),
		paidPurchase("p-2", "bob", 3500, tuesday.Add(40*time.Hour)),
	}

	first := attribution.Aggregate(purchases, instances)
	second := attribution.Aggregate(purchases, instances)
	assert.Equal(t, first, second)
}

func TestAggregate_EmptyInputs(t *testing.T) {
	instances := threeWeekWindow(t)

	// No purchases: zero-filled rows, not an error.
	stats := attribution.Aggregate(nil, instances)
	require.Len(t, stats, 3)
	for _, st := range stats {
		assert.Zero(t, st.TicketsSold)
	}

	// No instances: empty result, not an error.
	stats = attribution.Aggregate([]models.Purchase{paidPurchase("p-1", "alice", 100, tuesday)}, nil)
	assert.Empty(t, stats)
}
