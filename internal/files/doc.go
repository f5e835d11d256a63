// Package files finds release workbooks on disk.
//
// The CLI accepts directories as well as workbook paths; Discovery expands
// a directory into the .xlsx and .xlsm files directly inside it, skipping
// Excel lock files, in name order.
package files
