package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessage(t *testing.T) {
	env := setupService(t, testConfig())
	ctx := context.Background()

	t.Run("valid envelope is processed", func(t *testing.T) {
		data, err := json.Marshal(Envelope{
			ShopDomain: "shop.example.com",
			AuthOK:     true,
			TraceID:    "trace-1",
			Payload:    purchaseRaw(),
		})
		require.NoError(t, err)

		res, err := env.svc.HandleMessage(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, OutcomeAccepted, res.Outcome)
		assert.Equal(t, "checkout_completed", res.Event.EventName)
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		_, err := env.svc.HandleMessage(ctx, []byte("{not json"))
		assert.Error(t, err)
	})

	t.Run("missing shop domain is an error", func(t *testing.T) {
		data, err := json.Marshal(Envelope{Payload: purchaseRaw()})
		require.NoError(t, err)

		_, err = env.svc.HandleMessage(ctx, data)
		assert.Error(t, err)
	})
}
