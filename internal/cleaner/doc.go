// Package cleaner repairs the headers of release worksheets and coerces
// their cells into clean records.
//
// Release sheets are laid out for people: title rows carry the metric and
// unit, headers span two or three rows with merged group cells, quarters
// run either down the rows or across the columns, and missing values are
// written as ".." or "[x]". The cleaner finds the header block, carries
// merged labels across it, and resolves every value column to a period,
// a category and a metric using the schema registry's vocabulary plus the
// configured synonyms.
//
// Values are normalised to canonical units (absolute counts, GBP millions)
// and the source unit of every metric is recorded in a UnitLedger. Missing
// markers become explicit nulls, never zero. A header that cannot be
// resolved fails with ErrMalformedHeader and a value that is neither a
// number nor a missing marker fails with ErrUnparsableValue naming the cell.
//
// Example:
//
//	c, err := cleaner.New(registry, cleaner.OptionsFromConfig(cfg), logger)
//	if err != nil {
//		return err
//	}
//	records, units, err := c.Clean(table)
package cleaner
