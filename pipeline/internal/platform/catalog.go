// Package platform maps canonical events onto per-destination parameter
// sets using static mapping tables, and reports parameter completeness.
package platform

import (
	"github.com/pixelbridge/pixelbridge/pipeline/internal/canonical"
)

// Platform names.
const (
	Google    = "google"
	Meta      = "meta"
	TikTok    = "tiktok"
	Pinterest = "pinterest"
)

// Mapping is one catalog entry: how a single canonical event name
// renders on one platform.
type Mapping struct {
	// EventName is the platform's own name for the event.
	EventName string `yaml:"event_name"`

	// Required parameters; a mapped event missing any of these is
	// flagged incomplete (but still returned - dropping is the
	// caller's call).
	Required []string `yaml:"required"`

	// Optional parameters, listed for catalog documentation and
	// override tooling; absence is never flagged.
	Optional []string `yaml:"optional"`
}

// Catalog is the static mapping table for one platform.
type Catalog struct {
	// Category is "marketing" or "analytics"; the consent policy
	// gates sends per category.
	Category string `yaml:"category"`

	// Events maps canonical event names to their platform rendering.
	Events map[string]Mapping `yaml:"events"`
}

// builtinCatalogs returns the built-in per-platform tables. Each call
// returns a fresh copy so YAML overrides never mutate shared state.
func builtinCatalogs() map[string]*Catalog {
	return map[string]*Catalog{
		Google: {
			Category: "analytics",
			Events: map[string]Mapping{
				canonical.EventCheckoutCompleted: {
					EventName: "purchase",
					Required:  []string{"value", "currency", "transaction_id"},
					Optional:  []string{"items", "coupon"},
				},
				canonical.EventCheckoutStarted: {
					EventName: "begin_checkout",
					Required:  []string{"value", "currency"},
					Optional:  []string{"items"},
				},
				canonical.EventProductAdded: {
					EventName: "add_to_cart",
					Required:  []string{"currency"},
					Optional:  []string{"items", "value"},
				},
				canonical.EventProductViewed: {
					EventName: "view_item",
					Required:  []string{"currency"},
					Optional:  []string{"items", "value"},
				},
				canonical.EventPageViewed: {
					EventName: "page_view",
					Required:  []string{},
				},
			},
		},
		Meta: {
			Category: "marketing",
			Events: map[string]Mapping{
				canonical.EventCheckoutCompleted: {
					EventName: "Purchase",
					Required:  []string{"value", "currency", "event_id"},
					Optional:  []string{"contents", "content_ids", "content_type", "num_items"},
				},
				canonical.EventCheckoutStarted: {
					EventName: "InitiateCheckout",
					Required:  []string{"value", "currency"},
					Optional:  []string{"contents", "content_ids", "num_items"},
				},
				canonical.EventProductAdded: {
					EventName: "AddToCart",
					Required:  []string{"currency"},
					Optional:  []string{"contents", "content_ids", "value"},
				},
				canonical.EventProductViewed: {
					EventName: "ViewContent",
					Required:  []string{"currency"},
					Optional:  []string{"content_ids", "value"},
				},
				canonical.EventPageViewed: {
					EventName: "PageView",
					Required:  []string{},
				},
			},
		},
		TikTok: {
			Category: "marketing",
			Events: map[string]Mapping{
				canonical.EventCheckoutCompleted: {
					EventName: "CompletePayment",
					Required:  []string{"value", "currency", "event_id"},
					Optional:  []string{"contents", "content_type"},
				},
				canonical.EventCheckoutStarted: {
					EventName: "InitiateCheckout",
					Required:  []string{"value", "currency"},
					Optional:  []string{"contents"},
				},
				canonical.EventProductAdded: {
					EventName: "AddToCart",
					Required:  []string{"currency"},
					Optional:  []string{"contents", "value"},
				},
				canonical.EventProductViewed: {
					EventName: "ViewContent",
					Required:  []string{"currency"},
					Optional:  []string{"contents", "value"},
				},
			},
		},
		Pinterest: {
			Category: "marketing",
			Events: map[string]Mapping{
				canonical.EventCheckoutCompleted: {
					EventName: "checkout",
					Required:  []string{"value", "currency", "order_id"},
					Optional:  []string{"line_items", "order_quantity"},
				},
				canonical.EventProductAdded: {
					EventName: "add_to_cart",
					Required:  []string{"currency"},
					Optional:  []string{"line_items", "value"},
				},
				canonical.EventProductViewed: {
					EventName: "page_visit",
					Required:  []string{},
					Optional:  []string{"line_items"},
				},
				canonical.EventPageViewed: {
					EventName: "page_visit",
					Required:  []string{},
				},
			},
		},
	}
}
