package attribution_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-analytics/internal/attribution"
	"ms-analytics/internal/models"
)

func TestPerInstanceView(t *testing.T) {
	instances := threeWeekWindow(t)
	purchases := []models.Purchase{
		paidPurchase("p-1", "alice", 2000, tuesday.Add(-20*time.Hour)),
		paidPurchase("p-2", "bob", 3000, tuesday.Add(-19*time.Hour)),
	}

	stats := attribution.Aggregate(purchases, instances)
	rows := attribution.PerInstanceView(stats, tuesday)
	require.Len(t, rows, 3)

	assert.Equal(t, "2025-07-08", rows[0].Date)
	assert.Equal(t, "2025-07-15", rows[1].Date)
	assert.Equal(t, "2025-07-22", rows[2].Date)

	assert.Equal(t, attribution.StatusPast, rows[0].Status)
	assert.Equal(t, attribution.StatusCurrent, rows[1].Status)
	assert.Equal(t, attribution.StatusUpcoming, rows[2].Status)
	assert.Equal(t, "Jul 15 (this week)", rows[1].Label)

	assert.Equal(t, 2, rows[1].TicketsSold)
	assert.Equal(t, int64(5000), rows[1].TotalRevenue)
	assert.Equal(t, int64(2500), rows[1].AveragePrice)
}

func TestTimeSeries_Weekly(t *testing.T) {
	instances := threeWeekWindow(t)
	purchases := []models.Purchase{
		paidPurchase("p-1", "alice", 2550, tuesday.Add(-20*time.Hour)),
	}

	stats := attribution.Aggregate(purchases, instances)
	series, err := attribution.TimeSeries(stats, attribution.BucketWeekly)
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, "2025-07-15", series[1].Bucket)
	assert.Equal(t, 1, series[1].TicketsSold)
	// Minor units convert to major units only at this boundary.
	assert.InDelta(t, 25.50, series[1].Revenue, 1e-9)
}

func TestTimeSeries_MonthlyGroupsInstances(t *testing.T) {
	// A window wide enough to span July and August.
	instances, err := attribution.GenerateInstances(tuesday, 1, 3, time.Tuesday)
	require.NoError(t, err)

	purchases := []models.Purchase{
		paidPurchase("p-1", "alice", 1000, tuesday.Add(-time.Hour)),                  // Jul 15
		paidPurchase("p-2", "bob", 1000, tuesday.AddDate(0, 0, 6)),                   // Jul 22
		paidPurchase("p-3", "carol", 1000, tuesday.AddDate(0, 0, 20).Add(time.Hour)), // Aug 5
	}

	stats := attribution.Aggregate(purchases, instances)
	series, err := attribution.TimeSeries(stats, attribution.BucketMonthly)
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, "2025-07", series[0].Bucket)
	assert.Equal(t, 2, series[0].TicketsSold)
	assert.InDelta(t, 20.0, series[0].Revenue, 1e-9)

	assert.Equal(t, "2025-08", series[1].Bucket)
	assert.Equal(t, 1, series[1].TicketsSold)
}

func TestTimeSeries_MonthlyRevenueConvertsOnce(t *testing.T) {
	// Three one-cent sales in one month: summing minor units first
	// yields exactly 0.03; converting per instance would accumulate
	// float error.
	instances, err := attribution.GenerateInstances(tuesday, 2, 0, time.Tuesday)
	require.NoError(t, err)

	purchases := []models.Purchase{
		paidPurchase("p-1", "alice", 1, tuesday.AddDate(0, 0, -14)),
		paidPurchase("p-2", "bob", 1, tuesday.AddDate(0, 0, -7)),
		paidPurchase("p-3", "carol", 1, tuesday),
	}

	stats := attribution.Aggregate(purchases, instances)
	series, err := attribution.TimeSeries(stats, attribution.BucketMonthly)
	require.NoError(t, err)
	require.Len(t, series, 1)

	assert.Equal(t, "2025-07", series[0].Bucket)
	assert.Equal(t, 3, series[0].TicketsSold)
	assert.Equal(t, 0.03, series[0].Revenue)
}

func TestTimeSeries_UnknownBucketing(t *testing.T) {
	_, err := attribution.TimeSeries(attribution.Stats{}, "hourly")
	assert.ErrorIs(t, err, attribution.ErrInvalidArgument)
}
