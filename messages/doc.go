// Package messages defines the wire schema shared by the publisher, the
// specialist workers and the response aggregator.
//
// Two message types travel over the broker:
//
//   - SubRequest: one unit of work, published to the request topic of a
//     single specialty.
//   - SpecialistResponse: the correlated outcome of processing one
//     SubRequest, published to the shared response topic.
//
// Both types carry a "type" discriminator in their JSON body and are matched
// back together through the request_id correlation key. The request_id and
// specialty are additionally attached as broker message attributes so that
// broker-side filtering and debugging never require body deserialization.
//
// Payloads, contexts and results are opaque to this package: they are carried
// as raw JSON (gjson.Result) and interpreted only by the specialist
// computations and the synthesis step.
package messages
