package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name of workbook exports
const DefaultSheet = "data"

// WriteXLSXTo writes headers and records as a single-sheet workbook to out.
// Cells are written as text so identifiers and dates keep their form.
func WriteXLSXTo(out io.Writer, sheet string, headers []string, records [][]string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	row := 1
	writeRow := func(values []string) error {
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = excelize.Cell{Value: v}
		}
		axis, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return sw.SetRow(axis, cells)
	}

	if len(headers) > 0 {
		if err := writeRow(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range records {
		if err := writeRow(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	_, err = f.WriteTo(out)
	return err
}
