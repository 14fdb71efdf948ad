// Package trust classifies how well a received event's claimed identity
// is corroborated by a server-observed order record, and decides whether
// sends to a destination platform are allowed under the tenant's consent
// strategy.
package trust

import (
	"context"
	"time"

	"github.com/pixelbridge/pixelbridge/common/logging"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/metrics"
)

// Trust levels.
const (
	LevelTrusted   = "trusted"
	LevelPartial   = "partial"
	LevelUntrusted = "untrusted"
)

// Classification reasons.
const (
	ReasonReceiptNotFound       = "receipt_not_found"
	ReasonAuthInvalid           = "auth_invalid"
	ReasonMissingCheckoutToken  = "missing_checkout_token"
	ReasonCheckoutTokenMismatch = "checkout_token_mismatch"
	ReasonInvalidOrigin         = "invalid_origin"
	ReasonMissingOrigin         = "missing_origin"
)

// Result is derived once per event/receipt pair and never mutated.
// A superseding event produces a new Result; it does not patch the old.
type Result struct {
	Trusted bool           `json:"trusted"`
	Level   string         `json:"level"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Input carries everything the evaluator cross-checks. The ingestion
// boundary performs its own signature/key verification and reports the
// outcome as IngestionAuthOK; the evaluator never sees credentials.
type Input struct {
	ReceiptCheckoutToken string
	WebhookCheckoutToken string
	IngestionAuthOK      bool
	ReceiptExists        bool
	OriginHost           string
	AllowedDomains       []string
	StrictOrigin         bool
}

// Evaluator runs the trust state machine.
type Evaluator struct {
	log *logging.Logger
}

// NewEvaluator constructs an Evaluator. A nil logger falls back to the
// default logger.
func NewEvaluator(log *logging.Logger) *Evaluator {
	if log == nil {
		log = logging.Default()
	}
	return &Evaluator{log: log}
}

// Evaluate classifies the event. Rules are evaluated in order; the
// first match wins.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) Result {
	res := e.evaluate(ctx, in)
	metrics.TrustResults.WithLabelValues(res.Level, res.Reason).Inc()
	return res
}

func (e *Evaluator) evaluate(ctx context.Context, in Input) Result {
	if !in.ReceiptExists {
		return Result{Level: LevelUntrusted, Reason: ReasonReceiptNotFound}
	}

	if !in.IngestionAuthOK {
		return Result{Level: LevelUntrusted, Reason: ReasonAuthInvalid}
	}

	if in.ReceiptCheckoutToken == "" {
		return Result{Level: LevelPartial, Reason: ReasonMissingCheckoutToken,
			Details: map[string]any{"side": "receipt"}}
	}

	if in.WebhookCheckoutToken == "" {
		return Result{Level: LevelPartial, Reason: ReasonMissingCheckoutToken,
			Details: map[string]any{"side": "webhook"}}
	}

	if in.ReceiptCheckoutToken != in.WebhookCheckoutToken {
		// The only condition that doubles as a security signal: a
		// forged or misattributed event.
		e.log.WarnContext(ctx, "security: checkout token mismatch",
			logging.Reason(ReasonCheckoutTokenMismatch),
		)
		return Result{Level: LevelUntrusted, Reason: ReasonCheckoutTokenMismatch}
	}

	if in.StrictOrigin {
		if in.OriginHost == "" {
			return Result{Level: LevelPartial, Reason: ReasonMissingOrigin}
		}
		if !originAllowed(in.OriginHost, in.AllowedDomains) {
			return Result{Level: LevelPartial, Reason: ReasonInvalidOrigin,
				Details: map[string]any{"origin": in.OriginHost}}
		}
	}

	return Result{Trusted: true, Level: LevelTrusted}
}

func originAllowed(host string, allowed []string) bool {
	for _, d := range allowed {
		if host == d {
			return true
		}
	}
	return false
}

// LogSkew logs timestamp skew between client-reported and
// server-observed times. Advisory only: legitimate orders can be paid
// well after being viewed, so skew never downgrades trust.
func (e *Evaluator) LogSkew(ctx context.Context, clientTime, serverTime time.Time, max time.Duration) {
	if clientTime.IsZero() || serverTime.IsZero() || max <= 0 {
		return
	}
	skew := serverTime.Sub(clientTime)
	if skew < 0 {
		skew = -skew
	}
	if skew > max {
		e.log.InfoContext(ctx, "timestamp skew beyond advisory bound",
			"skew", skew.String(),
			"max", max.String(),
		)
	}
}
