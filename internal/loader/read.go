package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var (
	utf8BOM = []byte("\xef\xbb\xbf")

	errNoColumns   = errors.New("no columns to parse from file")
	errInvalidUTF8 = errors.New("content is not valid UTF-8")
	errNoSheets    = errors.New("workbook has no sheets")
)

// Format identifies how an upload is parsed.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatOf picks the parser from the file extension. Anything that is not an
// Excel workbook is read as CSV.
func FormatOf(fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// reader parses a single upload in two phases so the header row can be
// classified before the body is loaded.
type reader interface {
	Header() ([]string, error)
	Body(width int) ([][]string, error)
}

func newReader(format Format, content []byte) reader {
	if format == FormatXLSX {
		return &sheetReader{content: content}
	}
	return &csvReader{content: content}
}

type csvReader struct {
	content []byte
	r       *csv.Reader
}

func (c *csvReader) Header() ([]string, error) {
	content := bytes.TrimPrefix(c.content, utf8BOM)
	if !utf8.Valid(content) {
		return nil, errInvalidUTF8
	}

	c.r = csv.NewReader(bytes.NewReader(content))
	c.r.FieldsPerRecord = -1
	c.r.ReuseRecord = false

	record, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errNoColumns
	}
	if err != nil {
		return nil, err
	}
	if allBlank(record) {
		return nil, errNoColumns
	}
	return record, nil
}

func (c *csvReader) Body(width int) ([][]string, error) {
	var rows [][]string
	for {
		record, err := c.r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := fit(record, width)
		if err != nil {
			line, _ := c.r.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

type sheetReader struct {
	content []byte
	rows    [][]string
}

func (s *sheetReader) Header() ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(s.content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errNoSheets
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || allBlank(rows[0]) {
		return nil, errNoColumns
	}
	s.rows = rows
	return rows[0], nil
}

func (s *sheetReader) Body(width int) ([][]string, error) {
	out := make([][]string, 0, len(s.rows)-1)
	for i, record := range s.rows[1:] {
		row, err := fit(record, width)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// fit pads short records with empty cells and rejects records wider than the
// header.
func fit(record []string, width int) ([]string, error) {
	switch {
	case len(record) == width:
		return record, nil
	case len(record) < width:
		row := make([]string, width)
		copy(row, record)
		return row, nil
	default:
		return nil, fmt.Errorf("expected %d fields, saw %d", width, len(record))
	}
}

func allBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
