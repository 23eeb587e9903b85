package passes

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-analytics/internal/models"
)

// Payload is what the door scanner reads back out of a pass QR.
type Payload struct {
	PurchaseID   string    `json:"purchase_id"`
	PurchaserID  string    `json:"purchaser_id"`
	InstanceDate string    `json:"instance_date"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Generator produces encrypted check-in QR codes carrying the purchase
// and the event instance it was attributed to.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// GeneratePassQR encrypts the pass payload and renders it as a PNG QR.
func (g *Generator) GeneratePassQR(purchase models.Purchase, instance time.Time) ([]byte, error) {
	payload := Payload{
		PurchaseID:   purchase.PurchaseID,
		PurchaserID:  purchase.PurchaserID,
		InstanceDate: instance.Format("2006-01-02"),
		IssuedAt:     time.Now().UTC(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// DecryptPayload reverses the encryption for the check-in scanner.
func (g *Generator) DecryptPayload(encoded string) (*Payload, error) {
	plaintext, err := decryptAES(encoded, g.secret)
	if err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := ciphertext[aes.BlockSize:]

	plaintext := make([]byte, len(data))
	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(plaintext, data)
	return plaintext, nil
}
