// Package pipeline runs a release workbook through the load, clean,
// transform, fill and validate stages and returns the outcome as a Result.
//
// A run either fails fast, with a typed error and no records, or finishes
// with a validation report whose error-severity issues decide between
// passed_clean and passed_with_warnings. Whether a non-clean result may be
// written is left to the caller through Result.Accept.
package pipeline
