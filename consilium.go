package consilium

import (
	"context"
	"time"

	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/consiliumlabs/consilium/broker"
	"github.com/consiliumlabs/consilium/messages"
)

// Coordinator ties a Publisher and an Aggregator to one broker for the
// common round trip: fan a request out to several specialties, then wait for
// their correlated responses.
type Coordinator struct {
	publisher  *Publisher
	aggregator *Aggregator
}

// New creates a Coordinator with default publisher and aggregator settings.
func New(ctx context.Context, b broker.Broker) (*Coordinator, error) {
	publisher, err := NewPublisher(b)
	if err != nil {
		return nil, err
	}
	aggregator, err := NewAggregator(ctx, b)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		publisher:  publisher,
		aggregator: aggregator,
	}, nil
}

// Publisher exposes the underlying publisher for callers that manage their
// own wait cycle.
func (c *Coordinator) Publisher() *Publisher { return c.publisher }

// Aggregator exposes the underlying aggregator.
func (c *Coordinator) Aggregator() *Aggregator { return c.aggregator }

// Consult publishes one sub-request per payload entry and waits up to timeout
// for all of them. When the fan-out itself partially fails, the successfully
// published subset is still waited on and the publish error is returned
// alongside the aggregation of what did go out; with nothing published the
// error comes back alone.
func (c *Coordinator) Consult(ctx context.Context, payloads *orderedmap.OrderedMap[messages.Specialty, gjson.Result], callerContext gjson.Result, timeout time.Duration) (AggregationResult, error) {
	ids, err := c.publisher.PublishGroup(ctx, payloads, callerContext)
	if err != nil {
		if len(ids) == 0 {
			return AggregationResult{}, err
		}
		return c.aggregator.Wait(ctx, ids, len(ids), timeout), err
	}
	return c.aggregator.Wait(ctx, ids, len(ids), timeout), nil
}

// Close tears down the aggregator's response subscription.
func (c *Coordinator) Close() {
	c.aggregator.Close()
}
