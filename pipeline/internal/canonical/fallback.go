package canonical

// Raw payloads accept several ad-hoc field name variants for the same
// concept. Each concept has one explicit, ordered fallback list; lookup
// takes the first variant present with a usable value. Extending a chain
// means appending here, not scattering new duck-typing through the
// normalizer.

// Fallback chains per concept.
var (
	itemIDFields   = []string{"id", "item_id", "variant_id", "sku", "product_id"}
	itemNameFields = []string{"name", "item_name", "title", "product_name"}

	eventNameFields = []string{"eventName", "event_name", "event"}
	orderIDFields   = []string{"orderId", "order_id"}
	tokenFields     = []string{"checkoutToken", "checkout_token", "token"}
	timestampFields = []string{"timestamp", "time"}
)

// firstString returns the first field whose value renders to a
// non-empty string, in chain order. Numeric values render as their
// decimal form so payloads sending `"id": 42` still resolve.
func firstString(m map[string]any, fields []string) string {
	for _, f := range fields {
		v, ok := m[f]
		if !ok {
			continue
		}
		if s := coerceString(v); s != "" {
			return s
		}
	}
	return ""
}

// firstValue returns the first present value among the given field
// names, in order, regardless of type.
func firstValue(m map[string]any, fields []string) (any, bool) {
	for _, f := range fields {
		if v, ok := m[f]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
