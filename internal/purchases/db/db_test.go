package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-analytics/internal/models"
	"ms-analytics/internal/purchases/db"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Purchase)(nil)))
	require.NoError(t, bunDB.ResetModel(ctx, (*models.Profile)(nil)))

	return &db.DB{Bun: bunDB}
}

func TestUpsertAndGetPurchase(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	purchase := models.Purchase{
		PurchaseID:       "purchase-1",
		PurchaserID:      "user-1",
		AmountMinorUnits: 2500,
		PaymentStatus:    models.PaymentPending,
		CreatedAt:        time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.UpsertPurchase(ctx, purchase))

	got, err := store.GetPurchase(ctx, "purchase-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.PaymentStatus)
	assert.Equal(t, int64(2500), got.AmountMinorUnits)

	// The gateway later reports the payment settled; same ID, new status.
	purchase.PaymentStatus = models.PaymentPaid
	require.NoError(t, store.UpsertPurchase(ctx, purchase))

	got, err = store.GetPurchase(ctx, "purchase-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
}

func TestListByCreatedRange(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{0, 24 * time.Hour, 48 * time.Hour} {
		purchase := models.Purchase{
			PurchaseID:       "purchase-" + string(rune('a'+i)),
			PurchaserID:      "user-1",
			AmountMinorUnits: 1000,
			PaymentStatus:    models.PaymentPaid,
			CreatedAt:        base.Add(offset),
		}
		require.NoError(t, store.UpsertPurchase(ctx, purchase))
	}

	// Half-open range: includes the first two, excludes the third.
	got, err := store.ListByCreatedRange(ctx, base, base.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CreatedAt.Before(got[1].CreatedAt), "results must be ordered by creation time")
}

func TestListPaidSince(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	purchases := []models.Purchase{
		{PurchaseID: "old-paid", PurchaserID: "u1", AmountMinorUnits: 100, PaymentStatus: models.PaymentPaid, CreatedAt: base.Add(-time.Hour)},
		{PurchaseID: "new-paid", PurchaserID: "u2", AmountMinorUnits: 200, PaymentStatus: models.PaymentPaid, CreatedAt: base.Add(time.Hour)},
		{PurchaseID: "new-pending", PurchaserID: "u3", AmountMinorUnits: 300, PaymentStatus: models.PaymentPending, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, p := range purchases {
		require.NoError(t, store.UpsertPurchase(ctx, p))
	}

	got, err := store.ListPaidSince(ctx, base)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new-paid", got[0].PurchaseID)
}

func TestGetProfiles(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for _, profile := range []models.Profile{
		{UserID: "user-1", DisplayName: "Alice"},
		{UserID: "user-2", DisplayName: "Bob"},
	} {
		_, err := store.Bun.NewInsert().Model(&profile).Exec(ctx)
		require.NoError(t, err)
	}

	got, err := store.GetProfiles(ctx, []string{"user-1", "user-2", "user-unknown"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got["user-1"].DisplayName)
	assert.Equal(t, "Bob", got["user-2"].DisplayName)

	empty, err := store.GetProfiles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
