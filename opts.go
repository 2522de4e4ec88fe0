package consilium

import (
	"time"

	"github.com/fogfish/opts"
)

var (
	// WithPublishTimeout bounds how long a Publisher waits for the broker's
	// durable accept before surfacing a hard failure.
	//
	// Example:
	//  NewPublisher(b, WithPublishTimeout(2*time.Second))
	WithPublishTimeout = opts.ForName[Publisher, time.Duration]("publishTimeout")

	// WithWorkerPublishTimeout bounds a Worker's response publish the same
	// way.
	WithWorkerPublishTimeout = opts.ForName[Worker, time.Duration]("publishTimeout")

	// WithWorkerSubscription overrides the consumer-group subscription name a
	// Worker consumes through. Workers sharing a name split the specialty's
	// message stream.
	WithWorkerSubscription = opts.ForName[Worker, string]("subscription")

	// WithAggregatorSubscription overrides the subscription name on the
	// shared response topic. Aggregators in separate processes need distinct
	// names so each receives every response.
	WithAggregatorSubscription = opts.ForName[Aggregator, string]("subscription")
)
