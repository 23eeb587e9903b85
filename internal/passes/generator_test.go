package passes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-analytics/internal/models"
)

func TestGeneratePassQR(t *testing.T) {
	gen := NewGenerator("test-secret")

	purchase := models.Purchase{
		PurchaseID:       "purchase-1",
		PurchaserID:      "user-1",
		AmountMinorUnits: 2500,
		PaymentStatus:    models.PaymentPaid,
		CreatedAt:        time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC),
	}
	instance := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	png, err := gen.GeneratePassQR(purchase, instance)
	require.NoError(t, err)
	require.NotEmpty(t, png)

	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestPayloadRoundTrip(t *testing.T) {
	gen := NewGenerator("test-secret")

	payload := Payload{
		PurchaseID:   "purchase-1",
		PurchaserID:  "user-1",
		InstanceDate: "2025-07-15",
		IssuedAt:     time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := encryptAES(raw, gen.secret)
	require.NoError(t, err)

	got, err := gen.DecryptPayload(data)
	require.NoError(t, err)
	assert.Equal(t, payload, *got)
}

func TestDecryptPayload_WrongSecret(t *testing.T) {
	gen := NewGenerator("test-secret")
	other := NewGenerator("another-secret")

	raw, err := json.Marshal(Payload{PurchaseID: "purchase-1"})
	require.NoError(t, err)
	data, err := encryptAES(raw, gen.secret)
	require.NoError(t, err)

	_, err = other.DecryptPayload(data)
	assert.Error(t, err, "a foreign secret must not yield a valid payload")
}

func TestDecryptPayload_Garbage(t *testing.T) {
	gen := NewGenerator("test-secret")

	_, err := gen.DecryptPayload("not base64!!")
	assert.Error(t, err)

	_, err = gen.DecryptPayload("c2hvcnQ=") // valid base64, too short for an IV
	assert.Error(t, err)
}
