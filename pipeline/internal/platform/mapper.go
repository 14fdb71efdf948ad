package platform

import (
	"sort"

	"github.com/pixelbridge/pixelbridge/common/logging"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/canonical"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/identity"
	"github.com/pixelbridge/pixelbridge/pipeline/internal/metrics"
)

// Mapped is the result of rendering one canonical event for one platform.
type Mapped struct {
	Platform   string
	EventName  string
	EventID    string
	Parameters map[string]any

	// Known reports whether the platform had a mapping for the
	// canonical event name. An unknown pair is a no-op, not an error.
	Known bool

	// IsValid is true when every required parameter is present.
	IsValid bool

	// MissingParameters lists the required parameters that were
	// absent, sorted for stable logging.
	MissingParameters []string
}

// Mapper renders canonical events into per-platform payloads.
type Mapper struct {
	catalogs map[string]*Catalog
	log      *logging.Logger
}

func NewMapper(log *logging.Logger) *Mapper {
	return &Mapper{catalogs: builtinCatalogs(), log: log}
}

// Category returns the consent category of a platform, or "" for an
// unknown platform.
func (m *Mapper) Category(platform string) string {
	cat, ok := m.catalogs[platform]
	if !ok {
		return ""
	}
	return cat.Category
}

// Platforms returns the known platform names, sorted.
func (m *Mapper) Platforms() []string {
	names := make([]string, 0, len(m.catalogs))
	for name := range m.catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map renders ev for one platform. An unknown platform or an event the
// platform's catalog does not list yields Known=false with no
// parameters; the caller should skip the send silently.
func (m *Mapper) Map(ev *canonical.Event, platform string) Mapped {
	out := Mapped{Platform: platform, EventID: ev.EventID}

	cat, ok := m.catalogs[platform]
	if !ok {
		return out
	}
	mapping, ok := cat.Events[ev.EventName]
	if !ok {
		return out
	}

	out.Known = true
	out.EventName = mapping.EventName
	out.Parameters = m.synthesize(ev, platform)
	out.MissingParameters = MissingParams(out.Parameters, mapping.Required)
	out.IsValid = len(out.MissingParameters) == 0

	if out.IsValid {
		metrics.MappingComplete.WithLabelValues(platform, ev.EventName).Inc()
	} else {
		metrics.MappingIncomplete.WithLabelValues(platform, ev.EventName).Inc()
		m.log.Warn("mapped event missing required parameters",
			logging.Platform(platform),
			logging.EventName(ev.EventName),
			logging.EventID(ev.EventID),
			logging.Strings("missing", out.MissingParameters),
		)
	}
	return out
}

// synthesize builds the parameter map for one platform from the
// canonical fields. Item-derived parameters are only set when the
// event carries items.
func (m *Mapper) synthesize(ev *canonical.Event, platform string) map[string]any {
	params := map[string]any{
		"value":    ev.Value,
		"currency": ev.Currency,
	}

	switch platform {
	case Google:
		params["transaction_id"] = ev.EventID
		if len(ev.Items) > 0 {
			items := make([]map[string]any, 0, len(ev.Items))
			for _, it := range ev.Items {
				items = append(items, map[string]any{
					"item_id":   it.ID,
					"item_name": it.Name,
					"price":     it.Price,
					"quantity":  it.Quantity,
				})
			}
			params["items"] = items
		}

	case Meta:
		params["event_id"] = ev.EventID
		if len(ev.Items) > 0 {
			params["content_type"] = "product"
			params["content_ids"] = contentIDs(ev.Items)
			params["contents"] = contents(ev.Items)
			params["num_items"] = totalQuantity(ev.Items)
		}

	case TikTok:
		params["event_id"] = ev.EventID
		if len(ev.Items) > 0 {
			params["content_type"] = "product"
			params["contents"] = contents(ev.Items)
		}

	case Pinterest:
		params["event_id"] = ev.EventID
		if ev.OrderID != "" {
			// Pinterest wants the merchant-facing order number, not a
			// storefront gid URL.
			orderID, _ := identity.NormalizeOrderID(ev.OrderID)
			params["order_id"] = orderID
		}
		if len(ev.Items) > 0 {
			items := make([]map[string]any, 0, len(ev.Items))
			for _, it := range ev.Items {
				items = append(items, map[string]any{
					"product_id":    it.ID,
					"product_name":  it.Name,
					"product_price": it.Price,
					"quantity":      it.Quantity,
				})
			}
			params["line_items"] = items
			params["order_quantity"] = totalQuantity(ev.Items)
		}

	default:
		// Platforms added through catalog overrides get the generic
		// parameter set.
		params["event_id"] = ev.EventID
		if ev.OrderID != "" {
			orderID, _ := identity.NormalizeOrderID(ev.OrderID)
			params["order_id"] = orderID
		}
		if len(ev.Items) > 0 {
			params["contents"] = contents(ev.Items)
			params["num_items"] = totalQuantity(ev.Items)
		}
	}

	return params
}

func contentIDs(items []canonical.Item) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func contents(items []canonical.Item) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]any{
			"id":         it.ID,
			"quantity":   it.Quantity,
			"item_price": it.Price,
		})
	}
	return out
}

func totalQuantity(items []canonical.Item) int {
	var n int
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// MissingParams reports which required keys are absent from params.
// A key counts as present when it exists with any non-nil value other
// than the empty string; empty arrays count as present.
func MissingParams(params map[string]any, required []string) []string {
	var missing []string
	for _, key := range required {
		v, ok := params[key]
		if !ok || v == nil {
			missing = append(missing, key)
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
