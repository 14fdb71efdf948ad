// Package identity provides deterministic hashing and identifier
// normalization shared by the match-key resolver and event-ID generator.
//
// All digests are SHA-256 truncated to a fixed hex prefix. Callers pick
// the prefix length per call site: 8 chars for log/storage-compact keys
// (item hashes, alt keys), 12 for dedup claim keys, 32 for canonical
// event IDs. Shorter prefixes trade collision resistance for compactness,
// so the chosen length is part of each caller's contract.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Truncation lengths used across the pipeline.
const (
	// HashLenShort is used for item hashes and alternate match keys.
	HashLenShort = 8

	// HashLenClaim is used for dedup claim keys.
	HashLenClaim = 12

	// HashLenEventID is used for canonical event IDs.
	HashLenEventID = 32
)

// EmptyItemsHash is the sentinel for "no items". A distinct constant
// rather than the hash of the empty string, so "no items" cannot collide
// with a payload whose items serialize to "".
const EmptyItemsHash = "noitems0"

// Hash returns the SHA-256 digest of input as lowercase hex, truncated
// to n characters. n larger than the full digest returns the full digest.
func Hash(input string, n int) string {
	sum := sha256.Sum256([]byte(input))
	hexed := hex.EncodeToString(sum[:])
	if n <= 0 || n > len(hexed) {
		return hexed
	}
	return hexed[:n]
}

// NormalizeOrderID extracts the trailing numeric order ID from a
// GID-style identifier ("gid://shop/Order/123" -> "123") or from any
// trailing digit run. When no numeric suffix exists it returns the raw
// string unchanged and false; the lossy fallback is deliberate, callers
// log a diagnostic rather than fail.
func NormalizeOrderID(raw string) (string, bool) {
	trimmed := strings.TrimRight(raw, "/")
	end := len(trimmed)
	start := end
	for start > 0 && trimmed[start-1] >= '0' && trimmed[start-1] <= '9' {
		start--
	}
	if start == end {
		return raw, false
	}
	return trimmed[start:end], true
}

// ItemRef is the minimal item view the items hash depends on. Quantity
// changes alter the hash; name, price and other attributes do not.
type ItemRef struct {
	ID       string
	Quantity int
}

// HashItems computes the order-insensitive item digest: items sorted by
// ID, joined as id:quantity pairs, SHA-256, truncated to 8 hex chars.
// An empty list returns EmptyItemsHash.
func HashItems(items []ItemRef) string {
	if len(items) == 0 {
		return EmptyItemsHash
	}

	sorted := make([]ItemRef, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ID != sorted[j].ID {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Quantity < sorted[j].Quantity
	})

	pairs := make([]string, len(sorted))
	for i, it := range sorted {
		pairs[i] = it.ID + ":" + strconv.Itoa(it.Quantity)
	}
	return Hash(strings.Join(pairs, ","), HashLenShort)
}
