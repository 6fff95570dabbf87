package core

import "context"

// Broadcaster is any service that can broadcast a sync signal to interested
// consumers (dashboards, calendars, workers). Delivery is best-effort,
// fire-and-forget: a failed broadcast never fails the business operation
// that emitted it.
type Broadcaster interface {
	// Broadcast publishes payload (JSON-encoded) under the given topic key,
	// eg. "booking.approved".
	Broadcast(ctx context.Context, key string, payload interface{}) error
}
