// Command event-seeder publishes synthetic conversion events onto the
// raw events subject, for load testing and local development. A
// configurable fraction of events is published twice to exercise the
// replay guard.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/pixelbridge/pixelbridge/common/messaging"
	"github.com/pixelbridge/pixelbridge/common/messaging/nats"
)

var (
	natsURL       = flag.String("nats-url", "nats://localhost:4222", "NATS server URL")
	count         = flag.Int("count", 100, "Number of events to generate")
	interval      = flag.Duration("interval", 100*time.Millisecond, "Interval between events")
	shops         = flag.Int("shops", 3, "Number of distinct shops")
	duplicateRate = flag.Float64("duplicate-rate", 0.1, "Fraction of events published twice")
	timeSpread    = flag.Duration("time-spread", 24*time.Hour, "Spread event timestamps over this period (0 for real-time)")
)

type envelope struct {
	ShopDomain string         `json:"shop_domain"`
	AuthOK     bool           `json:"auth_ok"`
	OriginHost string         `json:"origin_host,omitempty"`
	Nonce      string         `json:"nonce,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

func main() {
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())

	client, err := nats.NewClient(nats.Config{
		URL:           *natsURL,
		Name:          "pixelbridge-event-seeder",
		MaxReconnects: 3,
		ReconnectWait: time.Second,
		Timeout:       5 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer client.Close()

	shopDomains := make([]string, *shops)
	for i := range shopDomains {
		shopDomains[i] = fmt.Sprintf("%s.myshopify.com", gofakeit.Username())
	}

	log.Printf("Starting event seeder:")
	log.Printf("  NATS URL: %s", *natsURL)
	log.Printf("  Event count: %d", *count)
	log.Printf("  Shops: %v", shopDomains)
	log.Printf("  Duplicate rate: %.0f%%", *duplicateRate*100)

	ctx := context.Background()
	successCount := 0
	failCount := 0
	duplicateCount := 0

	for i := 0; i < *count; i++ {
		env := generateEnvelope(shopDomains[rand.Intn(len(shopDomains))], i)

		if err := client.PublishJSON(ctx, messaging.SubjectEventsRaw, env); err != nil {
			log.Printf("Failed to publish event: %v", err)
			failCount++
		} else {
			successCount++
			if successCount%50 == 0 {
				log.Printf("Progress: %d/%d events sent", successCount, *count)
			}
		}

		if rand.Float64() < *duplicateRate {
			if err := client.PublishJSON(ctx, messaging.SubjectEventsRaw, env); err == nil {
				duplicateCount++
			}
		}

		if *interval > 0 && i < *count-1 {
			time.Sleep(*interval)
		}
	}

	if err := client.Drain(); err != nil {
		log.Printf("Drain failed: %v", err)
	}

	log.Printf("Seeding complete:")
	log.Printf("  Success: %d events", successCount)
	log.Printf("  Duplicates: %d events", duplicateCount)
	log.Printf("  Failed: %d events", failCount)
}

func generateEnvelope(shop string, index int) envelope {
	eventTime := time.Now()
	if *timeSpread > 0 {
		eventTime = eventTime.Add(-time.Duration(rand.Int63n(int64(*timeSpread))))
	}

	var payload map[string]any
	switch rand.Intn(5) {
	case 0:
		payload = generatePurchase(eventTime, index)
	case 1:
		payload = generateCheckoutStarted(eventTime)
	case 2:
		payload = generateAddToCart(eventTime)
	case 3:
		payload = generateProductViewed(eventTime)
	default:
		payload = generatePageViewed(eventTime)
	}

	return envelope{
		ShopDomain: shop,
		AuthOK:     rand.Float32() > 0.05, // 95% verified
		OriginHost: shop,
		Nonce:      uuid.New().String(),
		TraceID:    uuid.New().String(),
		Payload:    payload,
	}
}

func generatePurchase(ts time.Time, index int) map[string]any {
	items := generateItems(1 + rand.Intn(3))
	var total float64
	for _, it := range items {
		total += it["price"].(float64) * float64(it["quantity"].(int))
	}

	return map[string]any{
		"data": map[string]any{
			"eventName":     "purchase",
			"orderId":       fmt.Sprintf("gid://shopify/Order/%d", 100000+index),
			"checkoutToken": uuid.New().String(),
			"value":         total,
			"currency":      gofakeit.CurrencyShort(),
			"items":         items,
			"timestamp":     ts.Format(time.RFC3339),
		},
	}
}

func generateCheckoutStarted(ts time.Time) map[string]any {
	items := generateItems(1 + rand.Intn(3))
	return map[string]any{
		"data": map[string]any{
			"eventName":     "checkout_started",
			"checkoutToken": uuid.New().String(),
			"value":         gofakeit.Price(5, 500),
			"currency":      gofakeit.CurrencyShort(),
			"items":         items,
			"timestamp":     ts.Format(time.RFC3339),
		},
	}
}

func generateAddToCart(ts time.Time) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"eventName": "add_to_cart",
			"value":     gofakeit.Price(5, 200),
			"currency":  gofakeit.CurrencyShort(),
			"items":     generateItems(1),
			"timestamp": ts.Format(time.RFC3339),
		},
	}
}

func generateProductViewed(ts time.Time) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"eventName": "product_viewed",
			"items":     generateItems(1),
			"timestamp": ts.Format(time.RFC3339),
		},
	}
}

func generatePageViewed(ts time.Time) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"eventName": "page_viewed",
			"timestamp": ts.Format(time.RFC3339),
		},
	}
}

func generateItems(n int) []map[string]any {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"id":       fmt.Sprintf("sku-%d", rand.Intn(10000)),
			"name":     gofakeit.ProductName(),
			"price":    gofakeit.Price(1, 200),
			"quantity": 1 + rand.Intn(4),
		})
	}
	return items
}
