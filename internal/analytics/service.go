package analytics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ms-analytics/internal/attribution"
	"ms-analytics/internal/cache"
	"ms-analytics/internal/config"
	"ms-analytics/internal/logger"
	"ms-analytics/internal/models"
)

// PurchaseStore is the snapshot source the service aggregates over.
type PurchaseStore interface {
	GetPurchase(ctx context.Context, id string) (*models.Purchase, error)
	ListByCreatedRange(ctx context.Context, from, to time.Time) ([]models.Purchase, error)
	GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error)
}

// ViewCache stores computed view models between requests. A nil cache
// disables caching entirely.
type ViewCache interface {
	GetJSON(ctx context.Context, key string, v interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}) error
	Invalidate(ctx context.Context, keys ...string) error
}

// profileBatchSize caps how many purchaser IDs go into one profile
// lookup query; batches run concurrently and are joined before the
// response is composed.
const profileBatchSize = 100

// Service computes per-instance sales analytics for the recurring
// weekly event. All date arithmetic flows through the injected clock,
// so the HTTP API and the background job always agree on "today".
type Service struct {
	store  PurchaseStore
	cache  ViewCache
	logger *logger.Logger

	pastCount   int
	futureCount int
	weekday     time.Weekday
	now         func() time.Time
}

func NewService(store PurchaseStore, viewCache ViewCache, cfg config.AnalyticsConfig, log *logger.Logger) (*Service, error) {
	weekday, err := cfg.EventWeekday()
	if err != nil {
		return nil, err
	}
	clock, err := cfg.Clock()
	if err != nil {
		return nil, err
	}
	return &Service{
		store:       store,
		cache:       viewCache,
		logger:      log,
		pastCount:   cfg.PastCount,
		futureCount: cfg.FutureCount,
		weekday:     weekday,
		now:         clock,
	}, nil
}

// InstanceBreakdown is the per-instance table the admin dashboard tabs
// render.
type InstanceBreakdown struct {
	ReferenceDate string                    `json:"reference_date"`
	Instances     []attribution.InstanceRow `json:"instances"`
}

// SalesSeries is the chart-ready time series.
type SalesSeries struct {
	Bucketing attribution.Bucketing     `json:"bucketing"`
	Points    []attribution.SeriesPoint `json:"points"`
}

// AttributedPurchase is one purchase row of an instance's sales list,
// enriched with the purchaser's display name.
type AttributedPurchase struct {
	PurchaseID       string    `json:"purchase_id"`
	PurchaserID      string    `json:"purchaser_id"`
	PurchaserName    string    `json:"purchaser_name,omitempty"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	CreatedAt        time.Time `json:"created_at"`
}

func (s *Service) window() (time.Time, []time.Time, error) {
	ref := s.now()
	instances, err := attribution.GenerateInstances(ref, s.pastCount, s.futureCount, s.weekday)
	if err != nil {
		return time.Time{}, nil, err
	}
	return ref, instances, nil
}

// snapshotRange is the half-open creation-time interval to fetch.
// Purchases classify forward to the next instance, so sales for the
// earliest instance begin right after the previous (ungenerated)
// occurrence's day ends. The range stretches past the last instance
// when "now" is beyond the window, so clamp-to-latest purchases still
// make it into the snapshot.
func snapshotRange(instances []time.Time, ref time.Time) (time.Time, time.Time) {
	from := attribution.DateOf(instances[0]).AddDate(0, 0, -6)
	to := attribution.DateOf(instances[len(instances)-1]).AddDate(0, 0, 1)
	if ref.After(to) {
		to = ref.Add(time.Second)
	}
	return from, to
}

// InstanceBreakdown aggregates the current purchase snapshot into
// per-instance rows, serving from cache when a fresh copy exists.
func (s *Service) InstanceBreakdown(ctx context.Context) (*InstanceBreakdown, error) {
	if s.cache != nil {
		var cached InstanceBreakdown
		if hit, err := s.cache.GetJSON(ctx, cache.KeyBreakdown, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	ref, instances, err := s.window()
	if err != nil {
		return nil, err
	}

	purchases, err := s.fetchSnapshot(ctx, instances, ref)
	if err != nil {
		return nil, err
	}

	stats := attribution.Aggregate(purchases, instances)
	view := &InstanceBreakdown{
		ReferenceDate: ref.Format("2006-01-02"),
		Instances:     attribution.PerInstanceView(stats, ref),
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cache.KeyBreakdown, view); err != nil {
			s.warn("CACHE", fmt.Sprintf("Failed to cache breakdown view: %v", err))
		}
	}
	return view, nil
}

// SalesSeries aggregates the snapshot into a chart series with the
// requested bucketing.
func (s *Service) SalesSeries(ctx context.Context, bucketing attribution.Bucketing) (*SalesSeries, error) {
	var key string
	switch bucketing {
	case attribution.BucketWeekly:
		key = cache.KeySeriesWeekly
	case attribution.BucketMonthly:
		key = cache.KeySeriesMonthly
	default:
		return nil, fmt.Errorf("%w: unknown bucketing %q", attribution.ErrInvalidArgument, bucketing)
	}

	if s.cache != nil {
		var cached SalesSeries
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	ref, instances, err := s.window()
	if err != nil {
		return nil, err
	}

	purchases, err := s.fetchSnapshot(ctx, instances, ref)
	if err != nil {
		return nil, err
	}

	stats := attribution.Aggregate(purchases, instances)
	points, err := attribution.TimeSeries(stats, bucketing)
	if err != nil {
		return nil, err
	}

	view := &SalesSeries{Bucketing: bucketing, Points: points}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, view); err != nil {
			s.warn("CACHE", fmt.Sprintf("Failed to cache %s series: %v", bucketing, err))
		}
	}
	return view, nil
}

// InstancePurchases lists the paid purchases attributed to one instance
// date, newest last, with purchaser display names attached.
func (s *Service) InstancePurchases(ctx context.Context, date string) ([]AttributedPurchase, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: malformed instance date %q", attribution.ErrInvalidArgument, date)
	}

	ref, instances, err := s.window()
	if err != nil {
		return nil, err
	}

	// Instances carry the clock's location, so match on the calendar
	// date rather than the instant.
	inWindow := false
	for _, instance := range instances {
		if instance.Format("2006-01-02") == date {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return nil, fmt.Errorf("%w: %s is not an instance in the current window", attribution.ErrInvalidArgument, date)
	}

	purchases, err := s.fetchSnapshot(ctx, instances, ref)
	if err != nil {
		return nil, err
	}

	var attributed []models.Purchase
	for _, p := range purchases {
		if !p.Paid() {
			continue
		}
		instance, err := attribution.Classify(p.CreatedAt, instances)
		if err != nil {
			return nil, err
		}
		if instance.Format("2006-01-02") == date {
			attributed = append(attributed, p)
		}
	}

	ids := make([]string, 0, len(attributed))
	for _, p := range attributed {
		ids = append(ids, p.PurchaserID)
	}
	profiles := s.profilesFor(ctx, ids)

	rows := make([]AttributedPurchase, 0, len(attributed))
	for _, p := range attributed {
		rows = append(rows, AttributedPurchase{
			PurchaseID:       p.PurchaseID,
			PurchaserID:      p.PurchaserID,
			PurchaserName:    profiles[p.PurchaserID].DisplayName,
			AmountMinorUnits: p.AmountMinorUnits,
			CreatedAt:        p.CreatedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, nil
}

// AttributedInstance resolves the event instance a single purchase
// belongs to, for check-in pass generation.
func (s *Service) AttributedInstance(ctx context.Context, purchaseID string) (*models.Purchase, time.Time, error) {
	purchase, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, time.Time{}, err
	}

	_, instances, err := s.window()
	if err != nil {
		return nil, time.Time{}, err
	}

	instance, err := attribution.Classify(purchase.CreatedAt, instances)
	if err != nil {
		return nil, time.Time{}, err
	}
	return purchase, instance, nil
}

// InvalidateViews drops every cached view; called by the payment event
// consumer when a purchase changes.
func (s *Service) InvalidateViews(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, cache.ViewKeys...)
}

// fetchSnapshot pulls the complete purchase snapshot for the window and
// flags out-of-window purchases that will clamp to the latest instance.
func (s *Service) fetchSnapshot(ctx context.Context, instances []time.Time, ref time.Time) ([]models.Purchase, error) {
	from, to := snapshotRange(instances, ref)
	purchases, err := s.store.ListByCreatedRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	lastEnd := attribution.DateOf(instances[len(instances)-1]).AddDate(0, 0, 1)
	clamped := 0
	for _, p := range purchases {
		if p.Paid() && !p.CreatedAt.Before(lastEnd) {
			clamped++
		}
	}
	if clamped > 0 {
		s.warn("ANALYTICS", fmt.Sprintf("%d paid purchases postdate the generated window and clamp to the latest instance; consider raising ANALYTICS_FUTURE_COUNT", clamped))
	}
	return purchases, nil
}

// profilesFor resolves purchaser display names in concurrent batches,
// joining all lookups before returning. A failed batch degrades to
// missing names rather than failing the whole response.
func (s *Service) profilesFor(ctx context.Context, userIDs []string) map[string]models.Profile {
	seen := make(map[string]struct{}, len(userIDs))
	unique := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[string]models.Profile{}
	}

	merged := make(map[string]models.Profile, len(unique))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for start := 0; start < len(unique); start += profileBatchSize {
		end := start + profileBatchSize
		if end > len(unique) {
			end = len(unique)
		}
		batch := unique[start:end]

		wg.Add(1)
		go func() {
			defer wg.Done()
			profiles, err := s.store.GetProfiles(ctx, batch)
			if err != nil {
				s.warn("DATABASE", fmt.Sprintf("Profile batch lookup failed: %v", err))
				return
			}
			mu.Lock()
			for id, profile := range profiles {
				merged[id] = profile
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return merged
}

func (s *Service) warn(category, message string) {
	if s.logger != nil {
		s.logger.Warn(category, message)
	}
}
