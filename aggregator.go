package consilium

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"

	"github.com/consiliumlabs/consilium/broker"
	"github.com/consiliumlabs/consilium/internal/registry"
	"github.com/consiliumlabs/consilium/messages"
	"github.com/consiliumlabs/consilium/pkg/slogx"
)

// AggregationResult is what a Wait call returns: whatever responses were
// matched before the deadline, the completeness flags and the synthesis
// built from them.
type AggregationResult struct {
	Responses []messages.SpecialistResponse
	Complete  bool
	TimedOut  bool
	Elapsed   time.Duration
	Synthesis Synthesis
}

// Aggregator correlates responses arriving on the shared response topic
// against the pending groups callers are waiting on. One long-lived
// subscription serves every concurrent Wait call; responses for request_ids
// nobody is waiting on are acked and discarded, which is the expected outcome
// for foreign traffic and late arrivals on a shared topic.
type Aggregator struct {
	broker       broker.Broker
	groups       registry.Registry[*pendingGroup]
	subscription string
	sub          broker.Subscription
}

// NewAggregator creates an Aggregator and establishes its subscription to
// the shared response topic.
func NewAggregator(ctx context.Context, b broker.Broker, options ...opts.Option[Aggregator]) (*Aggregator, error) {
	if b == nil {
		return nil, fmt.Errorf("broker is required")
	}

	a := &Aggregator{
		broker:       b,
		groups:       registry.New[*pendingGroup](),
		subscription: messages.ResponseSubscription,
	}
	if err := opts.Apply(a, options); err != nil {
		return nil, err
	}

	topic := b.Topic(ctx, messages.ResponseTopic)
	sub, err := topic.Subscribe(ctx, a.subscription, a.onResponse)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", messages.ResponseTopic, err)
	}
	a.sub = sub
	return a, nil
}

// Close cancels the response subscription. Pending Wait calls still run to
// their deadlines but stop receiving responses.
func (a *Aggregator) Close() {
	if a.sub != nil {
		a.sub.Unsubscribe()
	}
}

// Wait blocks until expectedCount responses for the given request_ids have
// been matched or the timeout elapses, whichever comes first, then returns
// the collected responses with their synthesis. Cancelling ctx ends the wait
// early and is treated like the deadline elapsing. Wait never fails: even
// with zero responses the result carries a caller-safe synthesis.
func (a *Aggregator) Wait(ctx context.Context, requestIDs []string, expectedCount int, timeout time.Duration) AggregationResult {
	start := time.Now()

	group := newPendingGroup(requestIDs, expectedCount)
	a.groups.AddAll(requestIDs, group)
	defer a.groups.DelAll(requestIDs)

	if expectedCount > 0 && group.pending() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-group.done:
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	responses := group.snapshot()
	// Completeness is judged on the final count, so a response landing
	// exactly at the deadline still counts; timed_out holds strictly when
	// the deadline elapsed without completion, never both.
	complete := len(responses) >= expectedCount

	result := AggregationResult{
		Responses: responses,
		Complete:  complete,
		TimedOut:  !complete,
		Elapsed:   time.Since(start),
	}
	result.Synthesis = synthesize(responses, complete, result.TimedOut)

	if result.TimedOut {
		slog.Warn("aggregation deadline elapsed",
			slog.Int("received", len(responses)),
			slog.Int("expected", expectedCount),
			slog.Duration("after", timeout),
		)
	}
	return result
}

// onResponse is the broker delivery callback shared by every pending group.
func (a *Aggregator) onResponse(ctx context.Context, d broker.Delivery) {
	var resp messages.SpecialistResponse
	if err := json.Unmarshal(d.Body(), &resp); err != nil {
		slog.Warn("malformed response on shared topic", slogx.Error(err))
		_ = d.Nack()
		return
	}

	group, ok := a.groups.Get(resp.RequestID)
	if !ok {
		// Foreign request_id or a group that already closed.
		_ = d.Ack()
		return
	}

	group.add(resp)
	_ = d.Ack()
}

// pendingGroup is the bookkeeping for one Wait call. The broker callback
// appends under the group lock; the waiting caller reads the snapshot after
// the done channel closes or the deadline fires.
type pendingGroup struct {
	mu            sync.Mutex
	expected      map[string]struct{}
	expectedCount int
	received      []messages.SpecialistResponse
	done          chan struct{}
	closed        bool
}

func newPendingGroup(requestIDs []string, expectedCount int) *pendingGroup {
	expected := make(map[string]struct{}, len(requestIDs))
	for _, id := range requestIDs {
		expected[id] = struct{}{}
	}
	return &pendingGroup{
		expected:      expected,
		expectedCount: expectedCount,
		done:          make(chan struct{}),
	}
}

// add records a response if its request_id is expected and not yet matched;
// first match wins, duplicates from redelivery are dropped.
func (g *pendingGroup) add(resp messages.SpecialistResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.expected[resp.RequestID]; !ok {
		return
	}
	delete(g.expected, resp.RequestID)
	g.received = append(g.received, resp)

	if len(g.received) >= g.expectedCount && !g.closed {
		g.closed = true
		close(g.done)
	}
}

func (g *pendingGroup) pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.closed
}

func (g *pendingGroup) snapshot() []messages.SpecialistResponse {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]messages.SpecialistResponse, len(g.received))
	copy(out, g.received)
	return out
}
