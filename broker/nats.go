package broker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/consiliumlabs/consilium/pkg/uuidx"
)

const natsAckWait = 30 * time.Second

type natsBroker struct {
	js     jetstream.JetStream
	topics *haxmap.Map[string, *natsTopic]
}

// NATS creates a Broker backed by JetStream streams on the given connection.
// Each topic maps to one stream with the topic name as its only subject, and
// each subscription to a durable consumer on that stream, so nacked messages
// are redelivered by the server.
func NATS(nc *nats.Conn) (Broker, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return &natsBroker{
		js:     js,
		topics: haxmap.New[string, *natsTopic](),
	}, nil
}

func (b *natsBroker) Topic(ctx context.Context, name string) Topic {
	top, _ := b.topics.GetOrCompute(name, func() *natsTopic {
		return &natsTopic{
			js:      b.js,
			subject: name,
		}
	})
	return top
}

type natsTopic struct {
	js        jetstream.JetStream
	subject   string
	ensure    sync.Once
	ensureErr error
}

// ensureStream creates the backing stream on first use.
func (t *natsTopic) ensureStream(ctx context.Context) error {
	t.ensure.Do(func() {
		_, t.ensureErr = t.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     streamName(t.subject),
			Subjects: []string{t.subject},
		})
	})
	return t.ensureErr
}

func (t *natsTopic) Publish(ctx context.Context, body []byte, attrs map[string]string) error {
	if err := t.ensureStream(ctx); err != nil {
		return fmt.Errorf("ensure stream for %s: %w", t.subject, err)
	}

	msg := &nats.Msg{
		Subject: t.subject,
		Data:    body,
		Header:  nats.Header{},
	}
	// Raw map writes, nats.Header.Set would MIME-canonicalize keys like
	// request_id.
	for k, v := range attrs {
		msg.Header[k] = []string{v}
	}

	// PublishMsg blocks until the server acknowledges the write.
	if _, err := t.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", t.subject, err)
	}
	return nil
}

func (t *natsTopic) Subscribe(ctx context.Context, subscription string, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if err := t.ensureStream(ctx); err != nil {
		return nil, fmt.Errorf("ensure stream for %s: %w", t.subject, err)
	}

	cons, err := t.js.CreateOrUpdateConsumer(ctx, streamName(t.subject), jetstream.ConsumerConfig{
		Durable:       durableName(subscription),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       natsAckWait,
		MaxDeliver:    defaultMaxDeliver,
		FilterSubject: t.subject,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", subscription, err)
	}

	cctx, err := cons.Consume(func(msg jetstream.Msg) {
		handler(ctx, &natsDelivery{msg: msg})
	})
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", subscription, err)
	}

	return &natsSubscription{
		id:     uuidx.NewString(),
		cctx:   cctx,
		cancel: context.AfterFunc(ctx, cctx.Stop),
	}, nil
}

type natsSubscription struct {
	id     string
	cctx   jetstream.ConsumeContext
	cancel func() bool
}

func (s *natsSubscription) ID() string {
	return s.id
}

func (s *natsSubscription) Unsubscribe() {
	s.cancel()
	s.cctx.Stop()
}

type natsDelivery struct {
	msg jetstream.Msg
}

func (d *natsDelivery) Body() []byte {
	return d.msg.Data()
}

func (d *natsDelivery) Attributes() map[string]string {
	headers := d.msg.Headers()
	attrs := make(map[string]string, len(headers))
	for k, vals := range headers {
		if len(vals) > 0 {
			attrs[k] = vals[0]
		}
	}
	return attrs
}

func (d *natsDelivery) Ack() error {
	return d.msg.Ack()
}

func (d *natsDelivery) Nack() error {
	return d.msg.Nak()
}

var streamNameReplacer = strings.NewReplacer(".", "-", "*", "", ">", "", " ", "-")

// streamName derives a valid JetStream stream name from a topic name.
func streamName(topic string) string {
	return streamNameReplacer.Replace(topic)
}

func durableName(subscription string) string {
	return streamNameReplacer.Replace(subscription)
}
