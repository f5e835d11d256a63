// Package exporter persists accepted pipeline results.
//
// Writer.Persist refuses results the caller has not accepted. An accepted
// result is written as observations.csv (optionally with a UTF-8 BOM for
// Excel), observations.xlsx, snappy-framed observations.csv.sz or the
// snappy-compressed columnar observations.parquet, always alongside
// validation_report.json and data_dictionary.json. Columns follow the schema
// registry field order. Missing values are empty cells, or nulls in Parquet.
package exporter
