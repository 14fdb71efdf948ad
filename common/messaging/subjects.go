// Package messaging defines standard subject names for the pixelbridge
// message bus and the publisher abstraction the pipeline depends on.
package messaging

import "context"

// Subject constants for the pixelbridge message bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// Delivery dispatch subjects - mapped platform payloads ready to send.
	// Append the platform name for a specific destination.
	SubjectDeliveryDispatch = "delivery.dispatch" // delivery.dispatch.{platform}

	// Raw submissions from the ingestion edge, consumed by the
	// pipeline worker queue group.
	SubjectEventsRaw = "events.raw"

	// Event lifecycle subjects - published by the pipeline service.
	SubjectEventsAccepted = "events.accepted" // Event passed dedup and trust gates
	SubjectEventsReplayed = "events.replayed" // Duplicate submission suppressed
	SubjectEventsRejected = "events.rejected" // Event rejected (missing identifier)
)

// Queue group names for load-balanced consumers.
// Workers in the same queue group share messages (each message processed once).
const (
	QueueDeliveryWorkers = "delivery-workers" // Pool of platform delivery senders
	QueuePipelineWorkers = "pipeline-workers" // Pool of raw-event processors
)

// DeliveryDispatchSubject returns the dispatch subject for a platform.
// Example: delivery.dispatch.meta
func DeliveryDispatchSubject(platform string) string {
	return SubjectDeliveryDispatch + "." + platform
}

// Publisher publishes messages to subjects. The pipeline only ever
// publishes; delivery workers consume with their own subscriber.
type Publisher interface {
	// Publish sends a message to the specified subject, fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishJSON marshals data to JSON and publishes it.
	PublishJSON(ctx context.Context, subject string, data any) error

	// Close releases any resources held by the publisher.
	Close() error
}
