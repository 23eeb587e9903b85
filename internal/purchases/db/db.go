package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-analytics/internal/models"
)

// DB is the bun-backed snapshot store for purchase facts and purchaser
// profiles.
type DB struct {
	Bun *bun.DB
}

// GetPurchase fetches one purchase by its ID.
func (d *DB) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchase).
		Where("purchase_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// ListByCreatedRange returns all purchases created in [from, to),
// regardless of payment status, ordered by creation time. This is the
// bulk snapshot the attribution module consumes.
func (d *DB) ListByCreatedRange(ctx context.Context, from, to time.Time) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchases).
		Where("created_at >= ?", from).
		Where("created_at < ?", to).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

// ListPaidSince returns paid purchases created on or after the given
// time, ordered by creation time.
func (d *DB) ListPaidSince(ctx context.Context, since time.Time) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchases).
		Where("payment_status = ?", models.PaymentPaid).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

// UpsertPurchase inserts a purchase or refreshes its status and amount
// when the payment gateway reports a later state for the same ID.
func (d *DB) UpsertPurchase(ctx context.Context, purchase models.Purchase) error {
	_, err := d.Bun.NewInsert().
		Model(&purchase).
		On("CONFLICT (purchase_id) DO UPDATE").
		Set("payment_status = EXCLUDED.payment_status").
		Set("amount_minor_units = EXCLUDED.amount_minor_units").
		Exec(ctx)
	return err
}

// GetProfiles fetches purchaser profiles for a batch of user IDs in one
// query and returns them keyed by user ID. Unknown IDs are simply absent
// from the map.
func (d *DB) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	if len(userIDs) == 0 {
		return map[string]models.Profile{}, nil
	}

	var profiles []models.Profile
	err := d.Bun.NewSelect().
		Model(&profiles).
		Where("user_id IN (?)", bun.In(userIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Profile, len(profiles))
	for _, profile := range profiles {
		byID[profile.UserID] = profile
	}
	return byID, nil
}
