package canonical

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pixelbridge/pixelbridge/common/logging"
)

// DefaultCurrency is substituted when a payload has no usable currency.
const DefaultCurrency = "USD"

// Normalizer converts raw conversion payloads into canonical events.
// Coercion never fails: malformed input degrades to defaults and is
// logged as a data-quality warning. The output is a pure function of
// the input payload.
type Normalizer struct {
	log *logging.Logger
}

// NewNormalizer constructs a Normalizer. A nil logger falls back to the
// default logger.
func NewNormalizer(log *logging.Logger) *Normalizer {
	if log == nil {
		log = logging.Default()
	}
	return &Normalizer{log: log}
}

// Normalize converts a raw payload into a well-formed canonical event.
// It never returns nil and never errors.
func (n *Normalizer) Normalize(ctx context.Context, raw map[string]any, shopDomain string) *Event {
	if raw == nil {
		raw = map[string]any{}
	}

	// Event fields may live beside eventName in a "data" object or flat
	// at the top level.
	data := raw
	if d, ok := raw["data"].(map[string]any); ok {
		data = d
	}

	// The event name itself may also sit at either level depending on
	// the producer.
	rawName := firstString(raw, eventNameFields)
	if rawName == "" {
		rawName = firstString(data, eventNameFields)
	}
	name := resolveEventName(rawName)

	ev := &Event{
		EventName:     name,
		Timestamp:     parseTimestamp(data),
		ShopDomain:    shopDomain,
		OrderID:       firstString(data, orderIDFields),
		CheckoutToken: firstString(data, tokenFields),
		Value:         CoerceValue(data["value"]),
		Items:         n.normalizeItems(ctx, shopDomain, data["items"]),
		RawData:       raw,
	}

	currency, status := CoerceCurrency(data["currency"])
	ev.Currency = currency
	if status != currencyOK && IsOrderBearing(name) {
		n.log.WarnContext(ctx, "currency defaulted",
			logging.Shop(shopDomain),
			logging.EventName(name),
			logging.Reason(status.String()),
		)
	}

	return ev
}

// resolveEventName maps raw aliases onto the canonical vocabulary.
// Unknown names pass through untouched; the platform mapper treats them
// as unmapped.
func resolveEventName(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "purchase", "checkout_completed":
		return EventCheckoutCompleted
	case "add_to_cart", "product_added_to_cart":
		return EventProductAdded
	case "view_item", "product_viewed":
		return EventProductViewed
	case "page_view", "page_viewed":
		return EventPageViewed
	default:
		return strings.TrimSpace(raw)
	}
}

// normalizeItems maps the raw items array through the field fallback
// chains, dropping items that cannot be assigned both an id and a name.
func (n *Normalizer) normalizeItems(ctx context.Context, shopDomain string, raw any) []Item {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil
	}

	items := make([]Item, 0, len(list))
	dropped := 0
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			dropped++
			continue
		}

		item := Item{
			ID:        firstString(m, itemIDFields),
			Name:      firstString(m, itemNameFields),
			Price:     CoerceValue(m["price"]),
			Quantity:  coerceQuantity(m["quantity"]),
			VariantID: coerceString(m["variant_id"]),
			SKU:       coerceString(m["sku"]),
		}
		if item.ID == "" && item.Name == "" {
			dropped++
			continue
		}
		// A single resolvable field fills the other.
		if item.ID == "" {
			item.ID = item.Name
		}
		if item.Name == "" {
			item.Name = item.ID
		}
		items = append(items, item)
	}

	if dropped > 0 {
		n.log.WarnContext(ctx, "items dropped during normalization",
			logging.Shop(shopDomain),
			"dropped", dropped,
			"kept", len(items),
		)
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

// CoerceValue converts a numeric or numeric-string value into a
// non-negative float rounded to cents. Anything else becomes 0.
func CoerceValue(v any) float64 {
	f, ok := toFloat(v)
	if !ok || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Round(f*100) / 100
}

type currencyStatus int

const (
	currencyOK currencyStatus = iota
	currencyMissing
	currencyMalformed
)

func (s currencyStatus) String() string {
	switch s {
	case currencyMissing:
		return "currency_missing"
	case currencyMalformed:
		return "currency_malformed"
	default:
		return "ok"
	}
}

// CoerceCurrency uppercases a 3-letter alpha code; anything else yields
// DefaultCurrency with a status distinguishing missing from malformed.
func CoerceCurrency(v any) (string, currencyStatus) {
	s, isString := v.(string)
	if v == nil || (isString && s == "") {
		return DefaultCurrency, currencyMissing
	}
	if !isString {
		return DefaultCurrency, currencyMalformed
	}
	s = strings.TrimSpace(s)
	if len(s) != 3 {
		return DefaultCurrency, currencyMalformed
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return DefaultCurrency, currencyMalformed
		}
	}
	return strings.ToUpper(s), currencyOK
}

// coerceQuantity converts to a positive integer, defaulting to 1.
func coerceQuantity(v any) int {
	f, ok := toFloat(v)
	if !ok {
		return 1
	}
	q := int(f)
	if q < 1 {
		return 1
	}
	return q
}

// coerceString renders scalar values as strings. Whole-number floats
// (the usual JSON decoding of integers) render without a decimal part.
func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// parseTimestamp reads the client-reported occurrence time. Accepts
// RFC3339 strings and epoch seconds (with optional fraction). Returns
// zero time when absent or unparseable; receipt time is assigned by the
// caller, never invented here.
func parseTimestamp(data map[string]any) time.Time {
	v, ok := firstValue(data, timestampFields)
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return epochToTime(f)
		}
	case float64:
		return epochToTime(t)
	case int64:
		return epochToTime(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return epochToTime(f)
		}
	}
	return time.Time{}
}

func epochToTime(f float64) time.Time {
	if f <= 0 {
		return time.Time{}
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
