package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Profile is the purchaser-facing subset of the platform's user record,
// used to attach display names to attributed purchases.
type Profile struct {
	bun.BaseModel `bun:"table:profiles"`

	UserID      string    `bun:"user_id,pk" json:"user_id"`
	DisplayName string    `bun:"display_name" json:"display_name"`
	CreatedAt   time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
}
