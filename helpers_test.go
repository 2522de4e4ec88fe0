package consilium

import (
	"context"
	"sync"

	"github.com/consiliumlabs/consilium/broker"
)

// recordedPublish captures one Publish call made against a captureBroker.
type recordedPublish struct {
	topic string
	body  []byte
	attrs map[string]string
}

// captureBroker records every publish instead of delivering it, and can be
// told to fail publishes on selected topics.
type captureBroker struct {
	mu         sync.Mutex
	records    []recordedPublish
	failTopics map[string]error
}

func newCaptureBroker() *captureBroker {
	return &captureBroker{failTopics: map[string]error{}}
}

func (b *captureBroker) failOn(topic string, err error) *captureBroker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failTopics[topic] = err
	return b
}

func (b *captureBroker) published(topic string) []recordedPublish {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedPublish
	for _, r := range b.records {
		if r.topic == topic {
			out = append(out, r)
		}
	}
	return out
}

func (b *captureBroker) Topic(ctx context.Context, name string) broker.Topic {
	return &captureTopic{broker: b, name: name}
}

type captureTopic struct {
	broker *captureBroker
	name   string
}

func (t *captureTopic) Publish(ctx context.Context, body []byte, attrs map[string]string) error {
	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	if err := t.broker.failTopics[t.name]; err != nil {
		return err
	}
	bodyCopy := make([]byte, len(body))
	copy(bodyCopy, body)
	t.broker.records = append(t.broker.records, recordedPublish{topic: t.name, body: bodyCopy, attrs: attrs})
	return nil
}

func (t *captureTopic) Subscribe(ctx context.Context, subscription string, handler broker.Handler) (broker.Subscription, error) {
	return nopSubscription{}, nil
}

type nopSubscription struct{}

func (nopSubscription) ID() string   { return "nop" }
func (nopSubscription) Unsubscribe() {}

// manualDelivery lets a test hand a delivery to a handler directly and
// inspect how it was settled.
type manualDelivery struct {
	mu    sync.Mutex
	body  []byte
	attrs map[string]string
	acks  int
	nacks int
}

func (d *manualDelivery) Body() []byte { return d.body }

func (d *manualDelivery) Attributes() map[string]string {
	if d.attrs == nil {
		return map[string]string{}
	}
	return d.attrs
}

func (d *manualDelivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acks++
	return nil
}

func (d *manualDelivery) Nack() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nacks++
	return nil
}

func (d *manualDelivery) settled() (acks, nacks int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acks, d.nacks
}
