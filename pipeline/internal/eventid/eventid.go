// Package eventid derives the canonical event identifier used as the
// cross-system deduplication key.
//
// For fixed inputs (including the version tag) generation is pure and
// idempotent. The version tag is part of the hash recipe: whenever the
// recipe changes the tag must change with it, so IDs minted under
// different recipes can never collide into the same identity.
package eventid

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pixelbridge/pixelbridge/pipeline/internal/canonical"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/identity"
)

// VersionCurrent is the recipe events are generated under today.
// VersionLegacy remains only for verifying IDs minted by the previous
// recipe; it must never be used for new events.
const (
	VersionCurrent = "v2"
	VersionLegacy  = "v1"
)

// Source records which identifier the ID was derived from. The fallback
// sources produce IDs that are not reproducible across retries of the
// same logical event, weakening dedup; callers log and count them.
type Source int

const (
	SourceOrder Source = iota
	SourceCheckoutToken
	SourceNonce
	SourceRandom
)

// String returns the metric/log label for the source.
func (s Source) String() string {
	switch s {
	case SourceOrder:
		return "order_id"
	case SourceCheckoutToken:
		return "checkout_token"
	case SourceNonce:
		return "nonce"
	case SourceRandom:
		return "random"
	default:
		return "unknown"
	}
}

// Reproducible reports whether the same logical event would produce the
// same ID on a retry.
func (s Source) Reproducible() bool {
	return s == SourceOrder || s == SourceCheckoutToken
}

// Params are the inputs to ID generation.
type Params struct {
	OrderID       string
	CheckoutToken string
	EventName     string
	ShopDomain    string
	Items         []canonical.Item
	Version       string
	Nonce         string
}

// Generate computes the canonical event ID. Identifier precedence:
// normalized order ID, then checkout token, then nonce, then a
// timestamp+random last resort.
func Generate(p Params) (string, Source) {
	version := p.Version
	if version == "" {
		version = VersionCurrent
	}

	identifier, source := pickIdentifier(p)

	switch version {
	case VersionLegacy:
		return generateV1(version, p.ShopDomain, identifier, p.EventName), source
	default:
		return generateV2(version, p.ShopDomain, identifier, p.EventName, p.Items), source
	}
}

func pickIdentifier(p Params) (string, Source) {
	if p.OrderID != "" {
		normalized, _ := identity.NormalizeOrderID(p.OrderID)
		return normalized, SourceOrder
	}
	if p.CheckoutToken != "" {
		return p.CheckoutToken, SourceCheckoutToken
	}
	if p.Nonce != "" {
		return p.Nonce, SourceNonce
	}
	return randomIdentifier(), SourceRandom
}

// generateV2 is the current recipe:
// sha256(version:shopDomain:identifier:eventName:itemsHash), 32 hex chars.
func generateV2(version, shopDomain, identifier, eventName string, items []canonical.Item) string {
	refs := make([]identity.ItemRef, len(items))
	for i, it := range items {
		refs[i] = identity.ItemRef{ID: it.ID, Quantity: it.Quantity}
	}
	itemsHash := identity.HashItems(refs)

	input := strings.Join([]string{version, shopDomain, identifier, eventName, itemsHash}, ":")
	return identity.Hash(input, identity.HashLenEventID)
}

// generateV1 is the legacy recipe, kept side by side purely so that IDs
// recorded under it can still be verified. It predates the items hash.
func generateV1(version, shopDomain, identifier, eventName string) string {
	input := strings.Join([]string{version, shopDomain, identifier, eventName}, ":")
	return identity.Hash(input, identity.HashLenEventID)
}

// randomIdentifier is the last-resort identity: wall clock plus random
// bytes. IDs built on it are never reproducible and are a known source
// of duplicate downstream sends.
func randomIdentifier() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back
		// to the clock alone rather than abort event intake.
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + hex.EncodeToString(buf)
}
