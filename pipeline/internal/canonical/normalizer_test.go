package canonical

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	n := NewNormalizer(nil)
	ctx := context.Background()

	t.Run("missing currency defaults to USD", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"eventName": "checkout_completed",
			"data":      map[string]any{"value": 10.0},
		}, "demo.myshop.com")
		assert.Equal(t, "USD", ev.Currency)
	})

	t.Run("malformed currency defaults to USD", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"eventName": "checkout_completed",
			"data":      map[string]any{"currency": "dollars"},
		}, "demo.myshop.com")
		assert.Equal(t, "USD", ev.Currency)
	})

	t.Run("lowercase currency uppercased", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"eventName": "checkout_completed",
			"data":      map[string]any{"currency": "eur"},
		}, "demo.myshop.com")
		assert.Equal(t, "EUR", ev.Currency)
	})

	t.Run("numeric string value rounds to cents", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"eventName": "checkout_completed",
			"data":      map[string]any{"value": "12.345"},
		}, "demo.myshop.com")
		assert.Equal(t, 12.35, ev.Value)
	})

	t.Run("garbage value becomes zero", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"eventName": "checkout_completed",
			"data":      map[string]any{"value": []any{"x"}},
		}, "demo.myshop.com")
		assert.Equal(t, 0.0, ev.Value)
	})

	t.Run("negative value becomes zero", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"data": map[string]any{"value": -5.0},
		}, "demo.myshop.com")
		assert.Equal(t, 0.0, ev.Value)
	})

	t.Run("never panics on nil payload", func(t *testing.T) {
		ev := n.Normalize(ctx, nil, "demo.myshop.com")
		require.NotNil(t, ev)
		assert.Equal(t, "USD", ev.Currency)
		assert.Equal(t, "demo.myshop.com", ev.ShopDomain)
	})
}

func TestNormalizeEventNameAliases(t *testing.T) {
	n := NewNormalizer(nil)
	ctx := context.Background()

	tests := []struct {
		raw      string
		expected string
	}{
		{"purchase", EventCheckoutCompleted},
		{"checkout_completed", EventCheckoutCompleted},
		{"add_to_cart", EventProductAdded},
		{"page_view", EventPageViewed},
		{"checkout_started", EventCheckoutStarted},
		{"custom_thing", "custom_thing"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ev := n.Normalize(ctx, map[string]any{"eventName": tt.raw}, "shop")
			assert.Equal(t, tt.expected, ev.EventName)
		})
	}
}

func TestNormalizeEventNamePlacement(t *testing.T) {
	n := NewNormalizer(nil)
	ctx := context.Background()

	t.Run("nested inside data", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"data": map[string]any{"eventName": "purchase", "value": 10.0},
		}, "shop")
		assert.Equal(t, EventCheckoutCompleted, ev.EventName)
	})

	t.Run("alias field nested inside data", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"data": map[string]any{"event_name": "add_to_cart"},
		}, "shop")
		assert.Equal(t, EventProductAdded, ev.EventName)
	})

	t.Run("top level wins over nested", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"eventName": "page_view",
			"data":      map[string]any{"eventName": "purchase"},
		}, "shop")
		assert.Equal(t, EventPageViewed, ev.EventName)
	})
}

func TestNormalizeItems(t *testing.T) {
	n := NewNormalizer(nil)
	ctx := context.Background()

	t.Run("fallback chains resolve id and name", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"eventName": "checkout_completed",
			"data": map[string]any{
				"items": []any{
					map[string]any{"product_id": "p-1", "title": "Widget", "price": "9.99", "quantity": 2.0},
				},
			},
		}, "shop")
		require.Len(t, ev.Items, 1)
		assert.Equal(t, "p-1", ev.Items[0].ID)
		assert.Equal(t, "Widget", ev.Items[0].Name)
		assert.Equal(t, 9.99, ev.Items[0].Price)
		assert.Equal(t, 2, ev.Items[0].Quantity)
	})

	t.Run("item lacking id and name is dropped, others retained", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"eventName": "checkout_completed",
			"data": map[string]any{
				"items": []any{
					map[string]any{"price": 1.0},
					map[string]any{"id": "keep", "name": "Keeper"},
				},
			},
		}, "shop")
		require.Len(t, ev.Items, 1)
		assert.Equal(t, "keep", ev.Items[0].ID)
	})

	t.Run("id fills missing name and vice versa", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"data": map[string]any{
				"items": []any{
					map[string]any{"id": "only-id"},
					map[string]any{"name": "Only Name"},
				},
			},
		}, "shop")
		require.Len(t, ev.Items, 2)
		assert.Equal(t, "only-id", ev.Items[0].Name)
		assert.Equal(t, "Only Name", ev.Items[1].ID)
	})

	t.Run("quantity coerced to positive int", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"data": map[string]any{
				"items": []any{
					map[string]any{"id": "a", "quantity": 0.0},
					map[string]any{"id": "b", "quantity": "3"},
					map[string]any{"id": "c"},
				},
			},
		}, "shop")
		require.Len(t, ev.Items, 3)
		assert.Equal(t, 1, ev.Items[0].Quantity)
		assert.Equal(t, 3, ev.Items[1].Quantity)
		assert.Equal(t, 1, ev.Items[2].Quantity)
	})

	t.Run("numeric item id renders without decimal", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"data": map[string]any{
				"items": []any{map[string]any{"id": 42.0, "name": "N"}},
			},
		}, "shop")
		require.Len(t, ev.Items, 1)
		assert.Equal(t, "42", ev.Items[0].ID)
	})
}

func TestNormalizeIdentifiers(t *testing.T) {
	n := NewNormalizer(nil)
	ctx := context.Background()

	ev := n.Normalize(ctx, map[string]any{
		"eventName": "checkout_completed",
		"data": map[string]any{
			"orderId":       "gid://shop/Order/555",
			"checkoutToken": "tok-1",
		},
	}, "demo.myshop.com")

	assert.Equal(t, "gid://shop/Order/555", ev.OrderID)
	assert.Equal(t, "tok-1", ev.CheckoutToken)
	assert.Equal(t, "demo.myshop.com", ev.ShopDomain)
}

func TestNormalizeTimestamp(t *testing.T) {
	n := NewNormalizer(nil)
	ctx := context.Background()

	t.Run("rfc3339", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"data": map[string]any{"timestamp": "2026-05-01T10:30:00Z"},
		}, "shop")
		assert.Equal(t, time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC), ev.Timestamp)
	})

	t.Run("epoch seconds", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{
			"data": map[string]any{"time": 1767225600.0},
		}, "shop")
		assert.Equal(t, int64(1767225600), ev.Timestamp.Unix())
	})

	t.Run("absent stays zero", func(t *testing.T) {
		ev := n.Normalize(ctx, map[string]any{}, "shop")
		assert.True(t, ev.Timestamp.IsZero())
	})
}

func TestNormalizePurity(t *testing.T) {
	n := NewNormalizer(nil)
	ctx := context.Background()
	payload := map[string]any{
		"eventName": "checkout_completed",
		"data": map[string]any{
			"orderId":  "555",
			"value":    "19.9",
			"currency": "usd",
			"items":    []any{map[string]any{"id": "1", "quantity": 2.0}},
		},
	}

	a := n.Normalize(ctx, payload, "demo.myshop.com")
	b := n.Normalize(ctx, payload, "demo.myshop.com")

	assert.Equal(t, a.EventName, b.EventName)
	assert.Equal(t, a.Value, b.Value)
	assert.Equal(t, a.Currency, b.Currency)
	assert.Equal(t, a.Items, b.Items)
	assert.Equal(t, 19.9, a.Value)
	assert.Equal(t, "USD", a.Currency)
}

func TestCoerceCurrencyStatus(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		code   string
		status currencyStatus
	}{
		{"valid upper", "EUR", "EUR", currencyOK},
		{"valid lower", "gbp", "GBP", currencyOK},
		{"nil missing", nil, "USD", currencyMissing},
		{"empty missing", "", "USD", currencyMissing},
		{"too long malformed", "EURO", "USD", currencyMalformed},
		{"digits malformed", "E1R", "USD", currencyMalformed},
		{"non-string malformed", 840, "USD", currencyMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, status := CoerceCurrency(tt.in)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, status)
		})
	}
}
