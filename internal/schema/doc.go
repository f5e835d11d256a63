// Package schema declares the canonical output dataset.
//
// The Registry holds the ordered field list of tourism_observations, each
// field's semantic type, nullability and constraints, plus the metric and
// dimension vocabularies. Cleaner, Transformer, Validator and the exporter
// read field and category names from it rather than hard-coding them, so a
// new field is a Registry change only.
//
// A Registry is built once with NewRegistry and passed to every stage. It is
// never mutated and can be shared across concurrent runs.
package schema
