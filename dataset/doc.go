// Package dataset implements the opaque tabular metadata cache STTP
// exchanges during handshake: named tables of case-insensitive rows,
// published as copy-on-write snapshots so an in-flight subscription
// resolution never observes a metadata refresh partway through.
//
// The filter-expression language that normally resolves a subscription
// string into a signal set is out of scope for this module (spec.md
// §1); a Predicate stands in for it here. Callers that embed this
// module provide their own predicate, typically compiled from whatever
// filter syntax their deployment uses.
package dataset
