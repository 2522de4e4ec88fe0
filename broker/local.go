package broker

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/alphadose/haxmap"

	"github.com/consiliumlabs/consilium/pkg/uuidx"
)

const (
	defaultMaxDeliver     = 5
	defaultRedeliverDelay = 10 * time.Millisecond
	groupBufferSize       = 256
)

// LocalBroker is an in-process Broker with at-least-once semantics: a nacked
// delivery is requeued after a short delay until the delivery-attempt limit
// is reached. Messages are delivered only to consumer groups that exist at
// publish time.
type LocalBroker struct {
	topics         *haxmap.Map[string, *localTopic]
	maxDeliver     int
	redeliverDelay time.Duration
}

// Local creates an in-process broker.
func Local() *LocalBroker {
	return &LocalBroker{
		topics:         haxmap.New[string, *localTopic](),
		maxDeliver:     defaultMaxDeliver,
		redeliverDelay: defaultRedeliverDelay,
	}
}

// WithMaxDeliver configures the delivery-attempt limit for nacked messages.
func (b *LocalBroker) WithMaxDeliver(n int) *LocalBroker {
	b.maxDeliver = n
	return b
}

// WithRedeliverDelay configures the pause before a nacked message is requeued.
func (b *LocalBroker) WithRedeliverDelay(d time.Duration) *LocalBroker {
	b.redeliverDelay = d
	return b
}

func (b *LocalBroker) Topic(ctx context.Context, name string) Topic {
	topic, _ := b.topics.GetOrCompute(name, func() *localTopic {
		return &localTopic{
			name:   name,
			broker: b,
			groups: haxmap.New[string, *consumerGroup](),
		}
	})
	return topic
}

type localTopic struct {
	name   string
	broker *LocalBroker
	groups *haxmap.Map[string, *consumerGroup]
}

func (t *localTopic) Publish(ctx context.Context, body []byte, attrs map[string]string) error {
	// Snapshot so the delivery is immutable from the publisher's side.
	bodyCopy := make([]byte, len(body))
	copy(bodyCopy, body)
	attrsCopy := maps.Clone(attrs)

	var err error
	t.groups.ForEach(func(name string, group *consumerGroup) bool {
		d := &localDelivery{
			body:    bodyCopy,
			attrs:   attrsCopy,
			attempt: 1,
			group:   group,
		}
		if err = group.enqueue(ctx, d); err != nil {
			return false
		}
		return true
	})
	return err
}

func (t *localTopic) Subscribe(ctx context.Context, subscription string, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	group, _ := t.groups.GetOrCompute(subscription, func() *consumerGroup {
		return &consumerGroup{
			queue:      make(chan *localDelivery, groupBufferSize),
			maxDeliver: t.broker.maxDeliver,
			delay:      t.broker.redeliverDelay,
		}
	})
	return group.addMember(ctx, handler), nil
}

type consumerGroup struct {
	queue      chan *localDelivery
	maxDeliver int
	delay      time.Duration
}

func (g *consumerGroup) enqueue(ctx context.Context, d *localDelivery) error {
	select {
	case g.queue <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *consumerGroup) addMember(ctx context.Context, handler Handler) *localMember {
	m := &localMember{
		id:      uuidx.NewString(),
		ctx:     ctx,
		done:    make(chan struct{}),
		handler: handler,
		group:   g,
	}
	go m.run()
	return m
}

type localMember struct {
	id        string
	ctx       context.Context
	done      chan struct{}
	closeOnce sync.Once
	handler   Handler
	group     *consumerGroup
}

func (m *localMember) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.ctx.Done():
			return
		case d := <-m.group.queue:
			m.handler(m.ctx, d)
		}
	}
}

func (m *localMember) ID() string {
	return m.id
}

func (m *localMember) Unsubscribe() {
	m.closeOnce.Do(func() { close(m.done) })
}

type localDelivery struct {
	body    []byte
	attrs   map[string]string
	attempt int
	group   *consumerGroup
	settle  sync.Once
}

func (d *localDelivery) Body() []byte {
	return d.body
}

func (d *localDelivery) Attributes() map[string]string {
	return d.attrs
}

func (d *localDelivery) Ack() error {
	d.settle.Do(func() {})
	return nil
}

func (d *localDelivery) Nack() error {
	d.settle.Do(func() {
		if d.attempt >= d.group.maxDeliver {
			return
		}
		next := &localDelivery{
			body:    d.body,
			attrs:   d.attrs,
			attempt: d.attempt + 1,
			group:   d.group,
		}
		time.AfterFunc(d.group.delay, func() {
			select {
			case d.group.queue <- next:
			default:
				// Backlog full, the redelivery is dropped.
			}
		})
	})
	return nil
}
