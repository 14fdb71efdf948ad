package trust

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validInput() Input {
	return Input{
		ReceiptCheckoutToken: "tok-1",
		WebhookCheckoutToken: "tok-1",
		IngestionAuthOK:      true,
		ReceiptExists:        true,
	}
}

func TestEvaluateStateMachine(t *testing.T) {
	e := NewEvaluator(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*Input)
		level   string
		reason  string
		trusted bool
	}{
		{
			name:    "all checks pass",
			mutate:  func(*Input) {},
			level:   LevelTrusted,
			trusted: true,
		},
		{
			name:   "no receipt wins over everything",
			mutate: func(in *Input) { in.ReceiptExists = false; in.IngestionAuthOK = false },
			level:  LevelUntrusted,
			reason: ReasonReceiptNotFound,
		},
		{
			name:   "auth failure",
			mutate: func(in *Input) { in.IngestionAuthOK = false },
			level:  LevelUntrusted,
			reason: ReasonAuthInvalid,
		},
		{
			name:   "receipt missing checkout token",
			mutate: func(in *Input) { in.ReceiptCheckoutToken = "" },
			level:  LevelPartial,
			reason: ReasonMissingCheckoutToken,
		},
		{
			name:   "webhook missing checkout token",
			mutate: func(in *Input) { in.WebhookCheckoutToken = "" },
			level:  LevelPartial,
			reason: ReasonMissingCheckoutToken,
		},
		{
			name:   "token mismatch",
			mutate: func(in *Input) { in.WebhookCheckoutToken = "tok-other" },
			level:  LevelUntrusted,
			reason: ReasonCheckoutTokenMismatch,
		},
		{
			name: "strict origin with no origin",
			mutate: func(in *Input) {
				in.StrictOrigin = true
			},
			level:  LevelPartial,
			reason: ReasonMissingOrigin,
		},
		{
			name: "strict origin with disallowed origin",
			mutate: func(in *Input) {
				in.StrictOrigin = true
				in.OriginHost = "evil.example.com"
				in.AllowedDomains = []string{"demo.myshop.com"}
			},
			level:  LevelPartial,
			reason: ReasonInvalidOrigin,
		},
		{
			name: "strict origin with allowed origin",
			mutate: func(in *Input) {
				in.StrictOrigin = true
				in.OriginHost = "demo.myshop.com"
				in.AllowedDomains = []string{"demo.myshop.com"}
			},
			level:   LevelTrusted,
			trusted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			res := e.Evaluate(ctx, in)
			assert.Equal(t, tt.level, res.Level)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, tt.trusted, res.Trusted)
		})
	}
}

func TestEvaluateNoReceiptAlwaysUntrusted(t *testing.T) {
	e := NewEvaluator(nil)
	ctx := context.Background()

	// receipt_not_found regardless of any other input combination.
	inputs := []Input{
		{ReceiptExists: false},
		{ReceiptExists: false, IngestionAuthOK: true},
		{ReceiptExists: false, IngestionAuthOK: true, ReceiptCheckoutToken: "t", WebhookCheckoutToken: "t"},
		{ReceiptExists: false, StrictOrigin: true, OriginHost: "x"},
	}
	for _, in := range inputs {
		res := e.Evaluate(ctx, in)
		assert.Equal(t, LevelUntrusted, res.Level)
		assert.Equal(t, ReasonReceiptNotFound, res.Reason)
	}
}

func TestIsSendAllowed(t *testing.T) {
	p := NewSendPolicy(nil)
	ctx := context.Background()

	trusted := Result{Trusted: true, Level: LevelTrusted}
	partial := Result{Level: LevelPartial, Reason: ReasonMissingCheckoutToken}
	untrusted := Result{Level: LevelUntrusted, Reason: ReasonCheckoutTokenMismatch}

	tests := []struct {
		name     string
		res      Result
		strategy string
		category string
		allowed  bool
	}{
		{"weak allows untrusted marketing", untrusted, StrategyWeak, CategoryMarketing, true},
		{"weak allows untrusted analytics", untrusted, StrategyWeak, CategoryAnalytics, true},

		{"strict allows trusted marketing", trusted, StrategyStrict, CategoryMarketing, true},
		{"strict blocks partial marketing", partial, StrategyStrict, CategoryMarketing, false},
		{"strict blocks partial analytics", partial, StrategyStrict, CategoryAnalytics, false},

		{"balanced allows partial marketing", partial, StrategyBalanced, CategoryMarketing, true},
		{"balanced blocks untrusted marketing", untrusted, StrategyBalanced, CategoryMarketing, false},
		{"balanced allows untrusted analytics", untrusted, StrategyBalanced, CategoryAnalytics, true},
		{"balanced allows trusted marketing", trusted, StrategyBalanced, CategoryMarketing, true},

		{"unknown strategy requires trusted", partial, "bogus", CategoryMarketing, false},
		{"unknown strategy allows trusted", trusted, "bogus", CategoryAnalytics, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, p.IsSendAllowed(ctx, tt.res, tt.strategy, tt.category))
		})
	}
}
