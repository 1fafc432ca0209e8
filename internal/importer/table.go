// Package importer turns uploaded collection spreadsheets into canonical inventory
// rows and merges them into an owner's inventory.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyTable        = errors.New("file contains no data rows")
	ErrUnsupportedFormat = errors.New("unsupported file format, upload a .csv or .xlsx file")
)

type CellKind int

const (
	CellAbsent CellKind = iota
	CellString
	CellNumber
	CellBool
)

func (k CellKind) String() string {
	switch k {
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	case CellBool:
		return "boolean"
	default:
		return "absent"
	}
}

// Cell is one typed spreadsheet value. Raw keeps the text as it appeared in the file
// so values like collector number "007" survive.
type Cell struct {
	Kind CellKind
	Raw  string
	Num  float64
	Bool bool
}

// ParseCell infers a cell's kind from its text. Empty text and the "nan" placeholder
// are absent.
func ParseCell(raw string) Cell {
	text := strings.TrimSpace(raw)
	if text == "" || strings.EqualFold(text, "nan") {
		return Cell{Kind: CellAbsent, Raw: text}
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil {
		return Cell{Kind: CellNumber, Raw: text, Num: n}
	}
	switch strings.ToLower(text) {
	case "true":
		return Cell{Kind: CellBool, Raw: text, Bool: true}
	case "false":
		return Cell{Kind: CellBool, Raw: text}
	}
	return Cell{Kind: CellString, Raw: text}
}

func (c Cell) Absent() bool {
	return c.Kind == CellAbsent
}

// Text is the trimmed source text, or "" when absent
func (c Cell) Text() string {
	if c.Kind == CellAbsent {
		return ""
	}
	return c.Raw
}

// RawTable is an uploaded sheet: a header row and typed data rows. Rows may be
// shorter than the header; missing cells read as absent.
type RawTable struct {
	Headers []string
	Rows    [][]Cell
}

// Cell returns row r, column c, or an absent cell when out of range
func (t *RawTable) Cell(r, c int) Cell {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return Cell{}
	}
	return t.Rows[r][c]
}

// NewRawTable builds a table from string records, the first being the header row.
// Rows with no values are dropped.
func NewRawTable(records [][]string) (*RawTable, error) {
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	table := &RawTable{Headers: headers}
	for _, record := range records[1:] {
		row := make([]Cell, len(record))
		empty := true
		for i, v := range record {
			row[i] = ParseCell(v)
			if !row[i].Absent() {
				empty = false
			}
		}
		if !empty {
			table.Rows = append(table.Rows, row)
		}
	}

	if len(table.Rows) == 0 {
		return nil, ErrEmptyTable
	}
	return table, nil
}

// ReadCSV parses a comma separated upload
func ReadCSV(r io.Reader) (*RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return NewRawTable(records)
}

// ReadXLSX parses the first sheet of an Excel workbook
func ReadXLSX(r io.Reader) (*RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return NewRawTable(rows)
}

// ReadTable picks a reader from the upload's file extension. Anything that is not
// .xlsx is read as CSV.
func ReadTable(filename string, data []byte) (*RawTable, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(bytes.NewReader(data))
	case ".xls", ".numbers", ".ods":
		return nil, ErrUnsupportedFormat
	default:
		return ReadCSV(bytes.NewReader(data))
	}
}
