// Package shared holds code used across packages that belongs to no single
// pipeline stage.
//
// The testutil subpackage provides a buffered slog handler for asserting on
// log output and helpers that build small release workbooks with excelize:
//
//	func TestLoad(t *testing.T) {
//	    path := testutil.WriteWorkbook(t, "release.xlsx", testutil.PurposeSheet())
//	    logger, handler := testutil.NewTestLogger(t)
//	    // ...
//	}
package shared
