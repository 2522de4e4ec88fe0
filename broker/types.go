package broker

import "context"

// Broker hands out named topics.
type Broker interface {
	Topic(ctx context.Context, name string) Topic
}

// Topic is one named message stream.
type Topic interface {
	// Publish sends body with the given attributes and returns once the
	// broker has durably accepted the message.
	Publish(ctx context.Context, body []byte, attrs map[string]string) error

	// Subscribe registers handler under a subscription name. Subscriptions
	// sharing a name form a consumer group: each message is delivered to one
	// member. Distinct subscription names each receive every message.
	Subscribe(ctx context.Context, subscription string, handler Handler) (Subscription, error)
}

// Handler processes one delivery. It is invoked on broker-owned goroutines
// and must be safe for concurrent invocation. The handler settles the
// delivery by calling Ack or Nack exactly once.
type Handler func(ctx context.Context, d Delivery)

// Delivery is one received message with its settlement controls.
type Delivery interface {
	Body() []byte
	Attributes() map[string]string

	// Ack marks the message as processed; it will not be redelivered.
	Ack() error
	// Nack returns the message to the broker for redelivery, subject to the
	// broker's delivery-attempt limit.
	Nack() error
}

// Subscription is a handle on an active subscription.
type Subscription interface {
	ID() string
	Unsubscribe()
}
