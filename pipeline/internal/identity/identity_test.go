package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
	}{
		{"short prefix", "hello", 8},
		{"claim prefix", "hello", 12},
		{"event id prefix", "hello", 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hash(tt.input, tt.n)
			assert.Len(t, got, tt.n)
			// Deterministic
			assert.Equal(t, got, Hash(tt.input, tt.n))
			// Prefix relationship between truncation lengths
			assert.Equal(t, got, Hash(tt.input, 64)[:tt.n])
		})
	}

	t.Run("full digest for out-of-range n", func(t *testing.T) {
		assert.Len(t, Hash("x", 0), 64)
		assert.Len(t, Hash("x", 100), 64)
	})

	t.Run("different inputs differ", func(t *testing.T) {
		assert.NotEqual(t, Hash("a", 32), Hash("b", 32))
	})
}

func TestNormalizeOrderID(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
		ok       bool
	}{
		{"shopify gid", "gid://shop/Order/555", "555", true},
		{"gid with trailing slash", "gid://shop/Order/555/", "555", true},
		{"plain numeric", "123456", "123456", true},
		{"prefixed numeric", "order-789", "789", true},
		{"no digits", "gid://shop/Order/abc", "gid://shop/Order/abc", false},
		{"empty", "", "", false},
		{"digits then letters", "123abc", "123abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeOrderID(tt.raw)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestHashItems(t *testing.T) {
	t.Run("empty returns sentinel", func(t *testing.T) {
		assert.Equal(t, EmptyItemsHash, HashItems(nil))
		assert.Equal(t, EmptyItemsHash, HashItems([]ItemRef{}))
	})

	t.Run("sentinel is not hash of empty string", func(t *testing.T) {
		assert.NotEqual(t, Hash("", HashLenShort), HashItems(nil))
	})

	t.Run("order insensitive", func(t *testing.T) {
		a := HashItems([]ItemRef{{ID: "1", Quantity: 2}, {ID: "2", Quantity: 1}})
		b := HashItems([]ItemRef{{ID: "2", Quantity: 1}, {ID: "1", Quantity: 2}})
		assert.Equal(t, a, b)
	})

	t.Run("quantity sensitive", func(t *testing.T) {
		a := HashItems([]ItemRef{{ID: "1", Quantity: 2}})
		b := HashItems([]ItemRef{{ID: "1", Quantity: 3}})
		assert.NotEqual(t, a, b)
	})

	t.Run("fixed length", func(t *testing.T) {
		assert.Len(t, HashItems([]ItemRef{{ID: "1", Quantity: 1}}), HashLenShort)
	})
}
