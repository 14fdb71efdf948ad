// Package matchkey resolves the canonical identity key for an order.
//
// Order-bearing events arrive carrying an order ID, a checkout token, or
// both. The resolver picks one stable primary key per order so that
// client-side events (which usually only carry the checkout token) and
// server-side events (which carry the confirmed order ID) can later be
// recognized as the same order.
package matchkey

import (
	"errors"

	"github.com/pixelbridge/pixelbridge/pipeline/internal/identity"
)

// ErrMissingIdentifier is returned when neither an order ID nor a
// checkout token is present. The resolver never manufactures an
// identity; any time-based or random fallback is a caller policy
// decision.
var ErrMissingIdentifier = errors.New("matchkey: no order id or checkout token")

// MatchKey is the dedup/identity scope for an order.
type MatchKey struct {
	// Key is the primary key: the normalized order ID when available,
	// otherwise a key derived from the checkout token.
	Key string

	// IsOrderBased reports whether Key came from the order ID.
	IsOrderBased bool

	// AltKey is the checkout-token-derived key, retained when both
	// identifiers are present so events recorded under either can be
	// correlated. Empty when only one identifier exists.
	AltKey string
}

// Resolve turns an (orderID, checkoutToken) pair into a MatchKey.
// An order-based key always wins over a checkout-token-based key.
func Resolve(orderID, checkoutToken string) (MatchKey, error) {
	switch {
	case orderID != "" && checkoutToken != "":
		normalized, _ := identity.NormalizeOrderID(orderID)
		return MatchKey{
			Key:          normalized,
			IsOrderBased: true,
			AltKey:       tokenKey(checkoutToken),
		}, nil
	case orderID != "":
		normalized, _ := identity.NormalizeOrderID(orderID)
		return MatchKey{Key: normalized, IsOrderBased: true}, nil
	case checkoutToken != "":
		return MatchKey{Key: tokenKey(checkoutToken)}, nil
	default:
		return MatchKey{}, ErrMissingIdentifier
	}
}

// tokenKey derives a compact key from the checkout token alone.
// Relies on the 8-char truncation; the alt key is stored on receipts
// and must stay byte-stable.
func tokenKey(token string) string {
	return "ct_" + identity.Hash(token, identity.HashLenShort)
}
