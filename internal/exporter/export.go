package exporter

import (
	"io"
	"sort"
	"strings"

	"riskdash/internal/detect"
	"riskdash/internal/loader"
)

// ExportTable writes table in the given format
func ExportTable(out io.Writer, format Format, table *loader.Table) error {
	if format == FormatXLSX {
		return WriteXLSXTo(out, DefaultSheet, table.Columns, table.Rows)
	}
	return WriteCSVTo(out, WriteOptions{
		Headers:   table.Columns,
		Records:   table.Rows,
		BOMPrefix: true,
	})
}

// ReportHeaders are the columns of a detection report
var ReportHeaders = []string{
	"file",
	"dataset_key",
	"score",
	"filename_bonus",
	"matched_required",
	"matched_optional",
	"row_count",
	"error",
}

// ReportRows builds one detection report row per file name, in the given
// order. Files neither loaded nor failed are reported as skipped.
func ReportRows(batch *loader.Batch, names []string) [][]string {
	loaded := make(map[string]*loader.LoadedFile)
	for _, key := range batch.Keys() {
		for _, f := range batch.Groups[key] {
			loaded[f.FileName] = f
		}
	}

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		if f, ok := loaded[name]; ok {
			rows = append(rows, diagnosticsRow(name, f.Diagnostics))
			continue
		}
		if failure, ok := batch.FailureFor(name); ok {
			rows = append(rows, []string{name, "", "", "", "", "", "", failure.Message()})
			continue
		}
		rows = append(rows, []string{name, "", "", "", "", "", "", "skipped: empty file"})
	}
	return rows
}

func diagnosticsRow(name string, d *detect.Diagnostics) []string {
	return []string{
		name,
		d.DatasetKey,
		formatInt(d.Score),
		formatInt(d.FilenameBonus),
		joinMatches(d.MatchedRequired),
		joinMatches(d.MatchedOptional),
		formatInt(d.RowCount),
		"",
	}
}

// joinMatches renders field=header pairs sorted by field
func joinMatches(m map[string]string) string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + "=" + m[f]
	}
	return strings.Join(parts, ";")
}
