// Package broker abstracts the at-least-once pub/sub transport the
// coordinator core runs on. It provides topic-based publishing with message
// attributes and subscription-based consumption with per-message ack/nack.
//
// Design decisions:
//   - Context-first: all operations accept context.Context for cancellation
//   - Topic-based: sub-requests and responses travel over named topics
//   - At-least-once: a nacked (or ack-timed-out) delivery is redelivered;
//     consumers must tolerate duplicates
//   - Consumer groups: subscriptions sharing a name split the message stream,
//     distinct names each receive a full copy
//   - Durable accept: Publish returns only after the broker has accepted the
//     message, so a nil error means the message will be delivered
//
// Two implementations are provided:
//   - Local: an in-process broker with redelivery on nack, used by tests and
//     single-process deployments
//   - NATS: JetStream streams and durable consumers over a NATS connection
//
// Both implementations satisfy the same acceptance test suite; anything that
// offers publish/subscribe with ack/nack can be swapped in behind these
// interfaces.
package broker
