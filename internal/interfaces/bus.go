package interfaces

import (
	"context"
	"time"
)

// Delivery is one leased message pulled from a subscription.
// Attempts counts deliveries including this one; workflows derive
// retry_count = Attempts - 1 from it.
type Delivery struct {
	ID       string
	Attempts int
	Data     []byte
}

// Bus is the message-bus client: at-least-once delivery, per-message ack,
// batch pull with a lease. Unacked deliveries reappear after the lease
// expires with Attempts incremented.
type Bus interface {
	Publish(ctx context.Context, topic string, payload any) error
	// Pull returns up to max leased deliveries, or models.ErrNoMessage when
	// the subscription is empty within the deadline.
	Pull(ctx context.Context, subscription string, max int) ([]Delivery, error)
	Ack(ctx context.Context, subscription string, deliveryID string) error
	// Extend lengthens the lease of an in-flight delivery.
	Extend(ctx context.Context, subscription string, deliveryID string, d time.Duration) error
}
