package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pixelbridge/pixelbridge/common/logging"
	"github.com/pixelbridge/pixelbridge/common/tracectx"
)

// Envelope is the wire format the ingestion edge publishes on the raw
// events subject. The edge has already verified credentials; only the
// verdict crosses the wire.
type Envelope struct {
	ShopDomain string         `json:"shop_domain"`
	AuthOK     bool           `json:"auth_ok"`
	OriginHost string         `json:"origin_host,omitempty"`
	Nonce      string         `json:"nonce,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

// HandleMessage unmarshals one raw envelope and runs it through the
// pipeline. Malformed envelopes are dropped with an error; they cannot
// be processed and will not be redelivered.
func (s *Service) HandleMessage(ctx context.Context, data []byte) (*Result, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal raw event envelope: %w", err)
	}
	if env.ShopDomain == "" {
		return nil, fmt.Errorf("raw event envelope missing shop_domain")
	}

	ctx = tracectx.WithTraceID(ctx, env.TraceID)
	s.log.DebugContext(ctx, "raw event received", logging.Shop(env.ShopDomain))

	return s.Process(ctx, env.Payload, env.ShopDomain, Boundary{
		AuthOK:     env.AuthOK,
		OriginHost: env.OriginHost,
		Nonce:      env.Nonce,
	})
}
