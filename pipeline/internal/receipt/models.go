// Package receipt persists processing receipts: the durable record of
// every accepted event, keyed by (shop, event ID, event type). Receipts
// back replay detection across restarts and supply the server-side
// snapshot that trust verification compares webhooks against.
package receipt

import (
	"errors"
	"time"
)

var (
	// ErrReceiptNotFound is returned when no receipt matches the key.
	ErrReceiptNotFound = errors.New("receipt not found")
)

// Receipt is one processed-event record.
type Receipt struct {
	ShopID    string `json:"shop_id"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`

	// OrderKey and AltKey are the resolved match keys. AltKey is the
	// checkout-token key retained alongside an order-based OrderKey so
	// webhook and pixel sides of the same purchase can be joined.
	OrderKey string `json:"order_key,omitempty"`
	AltKey   string `json:"alt_key,omitempty"`

	// CheckoutToken is the raw token captured at ingestion, compared
	// against the webhook-side token during trust verification.
	CheckoutToken string `json:"checkout_token,omitempty"`

	TrustLevel  string `json:"trust_level,omitempty"`
	TrustReason string `json:"trust_reason,omitempty"`

	Value    float64 `json:"value"`
	Currency string  `json:"currency"`

	// Payload is the canonical event snapshot at processing time.
	Payload map[string]any `json:"payload,omitempty"`

	// SentPlatforms lists the platforms this event was dispatched to.
	SentPlatforms []string `json:"sent_platforms"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
