// Package publisher implements the STTP publisher engine (spec.md §4):
// it accepts command-channel connections, negotiates operational modes,
// serves metadata, resolves subscription filters against the current
// dataset.Snapshot, and routes published measurement batches to every
// matching connection on its own T_publish cadence.
//
// The engine never blocks the caller of PublishMeasurements on a slow
// subscriber: routing fans out through a bounded worker pool, and a
// connection whose outbound queue stays full past its stall timeout is
// closed rather than allowed to apply backpressure to the rest of the
// system (spec.md §5).
package publisher
