// Package transform turns clean records into the canonical long-format
// dataset.
//
// Every metric of every clean record becomes one observation addressed by
// (period, dimension_type, dimension_value, metric_type). Coverage scope is
// derived from the period, never read from the source. When the same
// observation arrives from more than one sheet the later loaded sheet wins
// and the replaced value is returned as a Supersession for the validator to
// report. Two sheets that disagree on the confidence interval of the same
// observation fail the run with ErrIrreconcilableDuplicate.
//
// Missing values stay null. GapFiller is a separate opt-in pass that
// forward-fills short runs of nulls within one series, never across the
// 2024-Q1 coverage break, and flags what it leaves alone.
package transform
