package logging

import "log/slog"

// Common field names for consistent logging across the pipeline.
const (
	FieldService    = "service"
	FieldShop       = "shop"
	FieldEventID    = "event_id"
	FieldEventName  = "event_name"
	FieldPlatform   = "platform"
	FieldOrderID    = "order_id"
	FieldMatchKey   = "match_key"
	FieldTrustLevel = "trust_level"
	FieldReason     = "reason"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Shop returns a slog attribute for the tenant shop domain.
func Shop(domain string) slog.Attr {
	return slog.String(FieldShop, domain)
}

// EventID returns a slog attribute for a canonical event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventName returns a slog attribute for a canonical event name.
func EventName(name string) slog.Attr {
	return slog.String(FieldEventName, name)
}

// Platform returns a slog attribute for a destination platform.
func Platform(name string) slog.Attr {
	return slog.String(FieldPlatform, name)
}

// OrderID returns a slog attribute for an order identifier.
func OrderID(id string) slog.Attr {
	return slog.String(FieldOrderID, id)
}

// MatchKey returns a slog attribute for a resolved match key.
func MatchKey(key string) slog.Attr {
	return slog.String(FieldMatchKey, key)
}

// TrustLevel returns a slog attribute for a trust classification.
func TrustLevel(level string) slog.Attr {
	return slog.String(FieldTrustLevel, level)
}

// Reason returns a slog attribute for a classification reason.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Strings returns a slog attribute for a list of string values.
func Strings(key string, values []string) slog.Attr {
	return slog.Any(key, values)
}
