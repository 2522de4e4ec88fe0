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

	"github.com/consiliumlabs/consilium/broker"
	"github.com/consiliumlabs/consilium/messages"
	"github.com/consiliumlabs/consilium/pkg/slogx"
)

// Specialist is the injected computation a Worker runs for each sub-request.
// The broker may redeliver the same sub-request more than once, so
// implementations must be safe to retry; the aggregator discards duplicate
// responses for an already-matched request_id.
type Specialist interface {
	Consult(ctx context.Context, req messages.SubRequest) (gjson.Result, error)
}

// SpecialistFunc adapts a plain function to the Specialist interface.
type SpecialistFunc func(ctx context.Context, req messages.SubRequest) (gjson.Result, error)

func (f SpecialistFunc) Consult(ctx context.Context, req messages.SubRequest) (gjson.Result, error) {
	return f(ctx, req)
}

// Worker consumes sub-requests for one specialty and publishes exactly one
// correlated response per consumed message, success or failure, so the
// aggregator never waits out its deadline because of a worker-side error.
type Worker struct {
	broker         broker.Broker
	specialty      messages.Specialty
	specialist     Specialist
	subscription   string
	publishTimeout time.Duration
	sub            broker.Subscription
}

// NewWorker creates a Worker for one specialty with its injected computation.
func NewWorker(b broker.Broker, specialty messages.Specialty, specialist Specialist, options ...opts.Option[Worker]) (*Worker, error) {
	if b == nil {
		return nil, fmt.Errorf("broker is required")
	}
	if !specialty.Valid() {
		return nil, fmt.Errorf("unknown specialty %q", specialty)
	}
	if specialist == nil {
		return nil, fmt.Errorf("specialist is required")
	}

	w := &Worker{
		broker:         b,
		specialty:      specialty,
		specialist:     specialist,
		subscription:   specialty.RequestSubscription(),
		publishTimeout: defaultPublishTimeout,
	}
	if err := opts.Apply(w, options); err != nil {
		return nil, err
	}
	return w, nil
}

// Start subscribes the worker to its specialty's request topic. The broker
// invokes the handler on its own goroutines, possibly concurrently.
func (w *Worker) Start(ctx context.Context) error {
	topic := w.broker.Topic(ctx, w.specialty.RequestTopic())
	sub, err := topic.Subscribe(ctx, w.subscription, w.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.specialty.RequestTopic(), err)
	}
	w.sub = sub
	return nil
}

// Stop cancels the worker's subscription. In-flight handlers run to
// completion.
func (w *Worker) Stop() {
	if w.sub != nil {
		w.sub.Unsubscribe()
	}
}

func (w *Worker) handle(ctx context.Context, d broker.Delivery) {
	var req messages.SubRequest
	if err := json.Unmarshal(d.Body(), &req); err != nil {
		w.rejectMalformed(ctx, d, err)
		return
	}

	start := time.Now()
	result, consultErr := w.specialist.Consult(ctx, req)
	elapsed := time.Since(start).Seconds()

	resp := messages.SpecialistResponse{
		RequestID:      req.RequestID,
		Specialty:      w.specialty,
		ProcessingTime: elapsed,
		ProducedAt:     strfmt.DateTime(time.Now().UTC()),
	}
	if consultErr != nil {
		resp.Status = messages.StatusError
		resp.ErrorMessage = consultErr.Error()
	} else {
		resp.Status = messages.StatusSuccess
		resp.Result = result
	}

	// The response must be durable before the input is acked; acking first
	// and failing to publish would silently drop a response the aggregator
	// is waiting for.
	if err := w.publishResponse(ctx, resp); err != nil {
		slog.Error("publish specialist response",
			slogx.Error(err),
			slogx.RequestID(req.RequestID),
			slog.String("specialty", w.specialty.String()),
		)
		_ = d.Nack()
		return
	}

	if consultErr != nil {
		slog.Warn("specialist computation failed",
			slogx.Error(consultErr),
			slogx.RequestID(req.RequestID),
			slog.String("specialty", w.specialty.String()),
		)
		// The firm failure is published; nack so another instance gets a
		// fresh attempt under the broker's redelivery policy.
		_ = d.Nack()
		return
	}

	if err := d.Ack(); err != nil {
		slog.Error("ack sub-request", slogx.Error(err), slogx.RequestID(req.RequestID))
	}
}

// rejectMalformed handles a body that does not parse as a SubRequest. When a
// correlation key is still recoverable, from the message attributes or the
// raw body, a firm error response goes out so the aggregator is not left
// waiting; without one there is nothing to correlate and the nack is the only
// possible outcome.
func (w *Worker) rejectMalformed(ctx context.Context, d broker.Delivery, parseErr error) {
	requestID := d.Attributes()[messages.AttrRequestID]
	if requestID == "" {
		requestID = gjson.GetBytes(d.Body(), "request_id").String()
	}

	if requestID != "" {
		resp := messages.SpecialistResponse{
			RequestID:    requestID,
			Specialty:    w.specialty,
			Status:       messages.StatusError,
			ErrorMessage: fmt.Sprintf("malformed sub-request: %v", parseErr),
			ProducedAt:   strfmt.DateTime(time.Now().UTC()),
		}
		if err := w.publishResponse(ctx, resp); err != nil {
			slog.Error("publish malformed-request response", slogx.Error(err), slogx.RequestID(requestID))
		}
	} else {
		slog.Warn("dropping sub-request without correlation key",
			slogx.Error(parseErr),
			slogx.Topic(w.specialty.RequestTopic()),
		)
	}

	_ = d.Nack()
}

func (w *Worker) publishResponse(ctx context.Context, resp messages.SpecialistResponse) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()

	topic := w.broker.Topic(ctx, messages.ResponseTopic)
	if err := topic.Publish(pubCtx, body, resp.Attributes()); err != nil {
		return fmt.Errorf("publish response: %w", err)
	}
	return nil
}
