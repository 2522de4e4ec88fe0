/*
Package consilium coordinates a population of independent specialist workers
that each answer one sub-question of a single incoming request, then
reassembles their answers into one response even when some workers are slow
or fail.

The package implements the asynchronous fan-out / correlation / aggregation
core through four abstractions:

  - Publisher: splits one logical request into correlated sub-requests and
    publishes each to its specialty's topic
  - Worker: consumes sub-requests for one specialty, runs an injected
    Specialist computation and publishes a correlated response
  - Aggregator: collects responses from the shared response topic, matched
    by request_id, for a bounded time
  - Synthesis: the best-effort combined result with an urgency-first
    priority classification, produced whether or not every specialist
    answered

# Basic Usage

A typical round trip wires both ends to the same broker:

	w, _ := consilium.NewWorker(b, messages.SymptomCheck, mySpecialist)
	_ = w.Start(ctx)

	c, _ := consilium.New(ctx, b)
	payloads := orderedmap.New[messages.Specialty, gjson.Result]()
	payloads.Set(messages.SymptomCheck, gjson.Parse(`{"symptoms":["fever"]}`))
	result, err := c.Consult(ctx, payloads, gjson.Result{}, 10*time.Second)

The broker is an injected at-least-once transport (see the broker package);
specialist decision logic is likewise injected and opaque to this package.
Responses arrive unordered and possibly duplicated; the aggregator keeps the
first response per request_id and ignores everything it is not waiting for.
*/
package consilium
