package trust

import (
	"context"

	"github.com/pixelbridge/pixelbridge/common/logging"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/metrics"
)

// Consent strategies. An unknown strategy value defaults to requiring
// trusted, the most conservative treatment.
const (
	StrategyStrict   = "strict"
	StrategyBalanced = "balanced"
	StrategyWeak     = "weak"
)

// Platform categories.
const (
	CategoryMarketing = "marketing"
	CategoryAnalytics = "analytics"
)

// SendPolicy combines a trust result with the tenant's consent strategy
// and a platform category.
type SendPolicy struct {
	log *logging.Logger
}

// NewSendPolicy constructs a SendPolicy. A nil logger falls back to the
// default logger.
func NewSendPolicy(log *logging.Logger) *SendPolicy {
	if log == nil {
		log = logging.Default()
	}
	return &SendPolicy{log: log}
}

// IsSendAllowed decides whether the event may be sent to a platform of
// the given category under the given strategy.
//
// balanced deliberately trades trust for volume on analytics platforms:
// untrusted events still flow there, but every such send is logged so
// the trade-off stays visible.
func (p *SendPolicy) IsSendAllowed(ctx context.Context, res Result, strategy, category string) bool {
	switch strategy {
	case StrategyWeak:
		return true
	case StrategyStrict:
		return res.Level == LevelTrusted
	case StrategyBalanced:
		if category == CategoryAnalytics {
			if res.Level == LevelUntrusted {
				p.log.InfoContext(ctx, "untrusted event allowed to analytics platform",
					logging.TrustLevel(res.Level),
					logging.Reason(res.Reason),
				)
				metrics.UntrustedAnalyticsSends.Inc()
			}
			return true
		}
		// Marketing platforms require at least partial corroboration.
		return res.Level == LevelTrusted || res.Level == LevelPartial
	default:
		return res.Level == LevelTrusted
	}
}
