package consilium

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/consiliumlabs/consilium/broker"
	"github.com/consiliumlabs/consilium/messages"
	"github.com/consiliumlabs/consilium/pkg/slogx"
	"github.com/consiliumlabs/consilium/pkg/uuidx"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher fans a logical request out into correlated sub-requests, one per
// specialty, each published to that specialty's request topic.
type Publisher struct {
	broker         broker.Broker
	publishTimeout time.Duration
}

// NewPublisher creates a Publisher on the given broker.
func NewPublisher(b broker.Broker, options ...opts.Option[Publisher]) (*Publisher, error) {
	if b == nil {
		return nil, fmt.Errorf("broker is required")
	}
	p := &Publisher{
		broker:         b,
		publishTimeout: defaultPublishTimeout,
	}
	if err := opts.Apply(p, options); err != nil {
		return nil, err
	}
	return p, nil
}

// Publish sends one sub-request to the given specialty and returns its fresh
// request_id once the broker has durably accepted the message. A failed
// publish is surfaced to the caller and never retried here; a caller-level
// retry is a new request_id.
func (p *Publisher) Publish(ctx context.Context, specialty messages.Specialty, payload, callerContext gjson.Result) (string, error) {
	return p.publishOne(ctx, uuidx.NewString(), specialty, payload, callerContext)
}

// PublishGroup sends one sub-request per entry of payloads, in map order, and
// returns the request_ids in that same order. All sub-requests share one
// correlation_group_id. There is no group transactionality: when publish k
// fails, the k-1 ids already returned are durably published and will still
// produce responses, so they are returned alongside the error and only those
// should be passed to the aggregator.
func (p *Publisher) PublishGroup(ctx context.Context, payloads *orderedmap.OrderedMap[messages.Specialty, gjson.Result], callerContext gjson.Result) ([]string, error) {
	if payloads == nil || payloads.Len() == 0 {
		return nil, fmt.Errorf("at least one specialty payload is required")
	}

	groupID := uuidx.NewString()
	ids := make([]string, 0, payloads.Len())
	for pair := payloads.Oldest(); pair != nil; pair = pair.Next() {
		id, err := p.publishOne(ctx, groupID, pair.Key, pair.Value, callerContext)
		if err != nil {
			return ids, fmt.Errorf("publish group %s: %w", groupID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *Publisher) publishOne(ctx context.Context, groupID string, specialty messages.Specialty, payload, callerContext gjson.Result) (string, error) {
	if !specialty.Valid() {
		return "", fmt.Errorf("unknown specialty %q", specialty)
	}

	req := messages.SubRequest{
		RequestID:          uuidx.NewString(),
		CorrelationGroupID: groupID,
		Specialty:          specialty,
		Payload:            payload,
		Context:            callerContext,
		CreatedAt:          strfmt.DateTime(time.Now().UTC()),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal sub-request: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	topic := p.broker.Topic(ctx, specialty.RequestTopic())
	if err := topic.Publish(pubCtx, body, req.Attributes()); err != nil {
		return "", fmt.Errorf("publish %s sub-request: %w", specialty, err)
	}

	slog.Debug("published sub-request",
		slogx.RequestID(req.RequestID),
		slogx.Topic(specialty.RequestTopic()),
		slog.String("correlation_group_id", groupID),
	)
	return req.RequestID, nil
}
