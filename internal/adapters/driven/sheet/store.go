// Package sheet reads and writes spreadsheets for import and export.
//
// The format follows the file extension: .xlsx and .xlsm go through
// excelize, .csv through encoding/csv. Only the first worksheet is read
// and its first line is the header. Writes replace the file atomically.
package sheet

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/dkansync/internal/core/domain"
	"github.com/custodia-labs/dkansync/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.Spreadsheet = (*Store)(nil)

// Format is a supported file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat derives the format from a file name.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: unsupported spreadsheet %q, use .xlsx or .csv", domain.ErrInvalidInput, filepath.Base(path))
	}
}

// Store reads and writes spreadsheet files.
type Store struct {
	// SheetName names the worksheet of new xlsx files.
	SheetName string

	// Comma is the delimiter of written csv files. Reads detect it.
	Comma rune
}

// New creates a store with the defaults used by export.
func New() *Store {
	return &Store{SheetName: "DKAN", Comma: ';'}
}

// Read loads the first worksheet. A missing file wraps fs.ErrNotExist.
func (s *Store) Read(path string) (*domain.Sheet, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records [][]string
	switch format {
	case FormatXLSX:
		records, err = readXLSX(f)
	default:
		records, err = readCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return toSheet(records), nil
}

// Write replaces the file with the sheet.
func (s *Store) Write(path string, sheet *domain.Sheet) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	records := fromSheet(sheet)

	return writeAtomic(path, func(w io.Writer) error {
		if format == FormatXLSX {
			return writeXLSX(w, s.sheetName(), records)
		}
		return writeCSV(w, s.comma(), records)
	})
}

func (s *Store) sheetName() string {
	if s.SheetName == "" {
		return "Sheet1"
	}
	return s.SheetName
}

func (s *Store) comma() rune {
	if s.Comma == 0 {
		return ';'
	}
	return s.Comma
}

// toSheet turns raw records into a sheet. Trailing blank lines are
// dropped; blank lines in between are kept so row numbers stay stable.
func toSheet(records [][]string) *domain.Sheet {
	sheet := &domain.Sheet{}
	if len(records) == 0 {
		return sheet
	}
	for _, h := range records[0] {
		sheet.Header = append(sheet.Header, strings.TrimSpace(h))
	}
	for len(sheet.Header) > 0 && sheet.Header[len(sheet.Header)-1] == "" {
		sheet.Header = sheet.Header[:len(sheet.Header)-1]
	}

	body := records[1:]
	for len(body) > 0 && blank(body[len(body)-1]) {
		body = body[:len(body)-1]
	}
	for _, cells := range body {
		sheet.Rows = append(sheet.Rows, domain.RowFromCells(sheet.Header, cells))
	}
	return sheet
}

func fromSheet(sheet *domain.Sheet) [][]string {
	records := make([][]string, 0, len(sheet.Rows)+1)
	records = append(records, sheet.Header)
	for _, row := range sheet.Rows {
		records = append(records, row.Cells(sheet.Header))
	}
	return records
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// writeAtomic writes through a temporary file in the target directory.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".dkansync-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
