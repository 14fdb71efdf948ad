// Package canonical defines the normalized, platform-agnostic
// representation of a conversion event and the normalizer that produces
// it from raw instrumentation payloads.
package canonical

import "time"

// Canonical event names. Raw payloads may carry aliases (e.g. "purchase"
// for checkout_completed); Normalize resolves them.
const (
	EventCheckoutStarted   = "checkout_started"
	EventCheckoutCompleted = "checkout_completed"
	EventProductAdded      = "product_added_to_cart"
	EventProductViewed     = "product_viewed"
	EventPageViewed        = "page_viewed"
	EventRemoveFromCart    = "remove_from_cart"
)

// orderBearing lists event names for which an order identifier is
// normally present and a currency is semantically required.
var orderBearing = map[string]bool{
	EventCheckoutStarted:   true,
	EventCheckoutCompleted: true,
}

// IsOrderBearing reports whether events of this name normally carry an
// order identifier and require a currency.
func IsOrderBearing(name string) bool {
	return orderBearing[name]
}

// Item is one normalized line item.
type Item struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	VariantID string  `json:"variant_id,omitempty"`
	SKU       string  `json:"sku,omitempty"`
}

// Event is the normalized representation of one business event.
type Event struct {
	// EventName is one of the canonical vocabulary constants.
	EventName string `json:"event_name"`

	// Timestamp is the client-reported occurrence time, zero when the
	// payload carried none.
	Timestamp time.Time `json:"timestamp"`

	// ShopDomain is the tenant identifier. All hashing and dedup
	// scoping is per tenant.
	ShopDomain string `json:"shop_domain"`

	OrderID       string `json:"order_id,omitempty"`
	CheckoutToken string `json:"checkout_token,omitempty"`

	// Value is the non-negative monetary amount rounded to cents.
	Value float64 `json:"value"`

	// Currency is a 3-letter uppercase ISO-4217 code, "USD" when the
	// payload had none or a malformed one.
	Currency string `json:"currency"`

	Items []Item `json:"items"`

	// EventID is the canonical deduplication identifier, assigned by
	// the pipeline after normalization.
	EventID string `json:"event_id,omitempty"`

	// RawData retains the original payload for audit and debugging.
	// Never used for hashing or dedup decisions.
	RawData map[string]any `json:"raw_data,omitempty"`
}
