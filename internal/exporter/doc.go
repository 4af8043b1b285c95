// Package exporter writes tabular data as CSV or XLSX.
//
// CSVWriter writes files under the exports directory with a UTF-8 BOM so Excel
// opens them as UTF-8. WriteCSVTo and WriteXLSXTo write to any io.Writer, which
// the HTTP layer uses to stream harmonized slot data. ReportRows turns a
// loaded batch into detection report rows.
package exporter
