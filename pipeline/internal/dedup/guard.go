// Package dedup implements the replay guard: an atomic "claim once"
// primitive layered over a fast TTL store with a durable fallback.
//
// Duplicate suppression here is a best-effort defense, not a correctness
// guarantee. When both stores are degraded the guard follows an explicit
// policy, and the default policy fails open: missed duplicate
// suppression is preferred over dropped legitimate conversions.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/pixelbridge/pixelbridge/common/logging"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/identity"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/metrics"
)

// Store error policies.
const (
	FailOpen   = "fail-open"
	FailClosed = "fail-closed"
)

// Claim paths, reported for observability.
const (
	PathFast       = "fast"
	PathDurable    = "durable"
	PathFailOpen   = "fail-open"
	PathFailClosed = "fail-closed"
)

// FastStore is the fast, shared, TTL-capable store contract (Redis in
// production, miniredis in tests).
type FastStore interface {
	// SetIfAbsent atomically stores key=value with a TTL if the key
	// does not exist. Returns true when the key was set.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// DurableStore is the durable fallback contract. InsertClaim returns
// (false, nil) when a claim for the same (shopID, eventType, nonce)
// already exists; any error means the store itself is degraded.
type DurableStore interface {
	InsertClaim(ctx context.Context, shopID, eventType, nonce string, expiresAt time.Time) (bool, error)
}

// Policy makes the degraded-store trade-off explicit and testable.
type Policy struct {
	// OnStoreError is FailOpen (default) or FailClosed.
	OnStoreError string
}

// Claim is the result of one claim attempt.
type Claim struct {
	// IsReplay is true when a non-expired claim for the same identity
	// already existed.
	IsReplay bool

	// Path records which store answered: fast, durable, or the policy
	// fallback when both were degraded.
	Path string
}

// Guard provides at-most-one "first claim wins" semantics per
// (shopID, eventType, nonce/id). It holds no in-process state; the
// external stores are the only shared state.
type Guard struct {
	fast         FastStore
	durable      DurableStore
	ttl          time.Duration
	ttlByType    map[string]time.Duration
	claimTimeout time.Duration
	policy       Policy
	log          *logging.Logger
}

// Options configures a Guard.
type Options struct {
	// TTL bounds the dedup window. Expired claims are eligible for
	// reuse by later, unrelated events.
	TTL time.Duration

	// TTLByEventType overrides TTL per event type.
	TTLByEventType map[string]time.Duration

	// ClaimTimeout bounds each fast-store call.
	ClaimTimeout time.Duration

	Policy Policy
}

// NewGuard constructs a Guard. Either store may be nil; a nil store is
// treated as permanently degraded.
func NewGuard(fast FastStore, durable DurableStore, opts Options, log *logging.Logger) *Guard {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.ClaimTimeout <= 0 {
		opts.ClaimTimeout = 2 * time.Second
	}
	if opts.Policy.OnStoreError == "" {
		opts.Policy.OnStoreError = FailOpen
	}
	if log == nil {
		log = logging.Default()
	}
	return &Guard{
		fast:         fast,
		durable:      durable,
		ttl:          opts.TTL,
		ttlByType:    opts.TTLByEventType,
		claimTimeout: opts.ClaimTimeout,
		policy:       opts.Policy,
		log:          log,
	}
}

// Claim attempts to claim (shopID, eventType, nonceOrID). Exactly one
// concurrent caller observes IsReplay=false under normal operation;
// under fast-store outage the durable uniqueness constraint is the sole
// backstop. Claim never returns an error for store degradation - the
// policy decides, and the decision is logged.
func (g *Guard) Claim(ctx context.Context, shopID, eventType, nonceOrID string) (Claim, error) {
	ttl := g.ttlFor(eventType)
	key := claimKey(shopID, eventType, nonceOrID)

	if g.fast != nil {
		callCtx, cancel := context.WithTimeout(ctx, g.claimTimeout)
		set, err := g.fast.SetIfAbsent(callCtx, key, "1", ttl)
		cancel()
		if err == nil {
			if !set {
				metrics.DedupReplays.WithLabelValues(eventType).Inc()
			}
			return Claim{IsReplay: !set, Path: PathFast}, nil
		}
		g.log.WarnContext(ctx, "fast dedup store degraded, trying durable fallback",
			logging.Shop(shopID),
			logging.EventName(eventType),
			logging.Error(err),
		)
		metrics.DedupStoreErrors.WithLabelValues("fast").Inc()
	}

	if g.durable != nil {
		inserted, err := g.durable.InsertClaim(ctx, shopID, eventType, nonceOrID, time.Now().Add(ttl))
		if err == nil {
			if !inserted {
				metrics.DedupReplays.WithLabelValues(eventType).Inc()
			}
			return Claim{IsReplay: !inserted, Path: PathDurable}, nil
		}
		g.log.WarnContext(ctx, "durable dedup store degraded",
			logging.Shop(shopID),
			logging.EventName(eventType),
			logging.Error(err),
		)
		metrics.DedupStoreErrors.WithLabelValues("durable").Inc()
	}

	return g.resolveDegraded(ctx, shopID, eventType)
}

func (g *Guard) resolveDegraded(ctx context.Context, shopID, eventType string) (Claim, error) {
	if g.policy.OnStoreError == FailClosed {
		g.log.WarnContext(ctx, "dedup unavailable, failing closed",
			logging.Shop(shopID),
			logging.EventName(eventType),
		)
		return Claim{IsReplay: true, Path: PathFailClosed}, nil
	}
	g.log.WarnContext(ctx, "dedup unavailable, failing open",
		logging.Shop(shopID),
		logging.EventName(eventType),
	)
	metrics.DedupFailOpen.Inc()
	return Claim{IsReplay: false, Path: PathFailOpen}, nil
}

func (g *Guard) ttlFor(eventType string) time.Duration {
	if ttl, ok := g.ttlByType[eventType]; ok && ttl > 0 {
		return ttl
	}
	return g.ttl
}

// claimKey builds the tenant- and event-type-scoped claim key. The
// nonce/id is hashed to the 12-char prefix to keep keys short; that
// truncation is part of the claim-key contract.
func claimKey(shopID, eventType, nonceOrID string) string {
	return fmt.Sprintf("dedup:%s:%s:%s", shopID, eventType, identity.Hash(nonceOrID, identity.HashLenClaim))
}
