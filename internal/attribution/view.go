package attribution

import (
	"fmt"
	"sort"
	"time"
)

// InstanceRow is one row of the per-instance breakdown table. Revenue
// fields stay in minor units; the table consumer formats currency.
type InstanceRow struct {
	Date             string         `json:"date"`
	Label            string         `json:"label"`
	Status           InstanceStatus `json:"status"`
	TicketsSold      int            `json:"tickets_sold"`
	TotalRevenue     int64          `json:"total_revenue"`
	UniquePurchasers int            `json:"unique_purchasers"`
	AveragePrice     int64          `json:"average_price"`
}

// PerInstanceView flattens aggregated stats into display rows sorted by
// instance date ascending, for the tabbed per-instance breakdown.
func PerInstanceView(stats Stats, ref time.Time) []InstanceRow {
	rows := make([]InstanceRow, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, InstanceRow{
			Date:             st.Date.Format("2006-01-02"),
			Label:            LabelFor(st.Date, ref),
			Status:           StatusOf(st.Date, ref),
			TicketsSold:      st.TicketsSold,
			TotalRevenue:     st.TotalRevenue,
			UniquePurchasers: st.UniquePurchasers,
			AveragePrice:     st.AveragePrice,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}

// Bucketing selects the time-series granularity for chart rendering.
type Bucketing string

const (
	BucketWeekly  Bucketing = "weekly"
	BucketMonthly Bucketing = "monthly"
)

// SeriesPoint is one chart bucket. Revenue is converted to major
// currency units here and nowhere else.
type SeriesPoint struct {
	Bucket      string  `json:"bucket"`
	TicketsSold int     `json:"tickets_sold"`
	Revenue     float64 `json:"revenue"`
}

// TimeSeries maps aggregated stats into an ordered chart series. Weekly
// bucketing emits one point per instance; monthly bucketing sums
// instances that share a calendar month.
func TimeSeries(stats Stats, bucketing Bucketing) ([]SeriesPoint, error) {
	var keyFormat string
	switch bucketing {
	case BucketWeekly:
		keyFormat = "2006-01-02"
	case BucketMonthly:
		keyFormat = "2006-01"
	default:
		return nil, fmt.Errorf("%w: unknown bucketing %q", ErrInvalidArgument, bucketing)
	}

	type accumulator struct {
		tickets int
		revenue int64
	}
	buckets := make(map[string]*accumulator)
	for _, st := range stats {
		key := st.Date.Format(keyFormat)
		acc, ok := buckets[key]
		if !ok {
			acc = &accumulator{}
			buckets[key] = acc
		}
		acc.tickets += st.TicketsSold
		acc.revenue += st.TotalRevenue
	}

	series := make([]SeriesPoint, 0, len(buckets))
	for key, acc := range buckets {
		series = append(series, SeriesPoint{
			Bucket:      key,
			TicketsSold: acc.tickets,
			Revenue:     float64(acc.revenue) / 100,
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Bucket < series[j].Bucket })
	return series, nil
}
