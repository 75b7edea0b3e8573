package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of leading rows to skip
}

// Workbook wraps an open XLSX file. Staffing-pattern workbooks carry one
// sheet per segment, so callers iterate SheetNames and read each in turn.
type Workbook struct {
	file *xlsx.File
}

// OpenWorkbook opens an XLSX file on disk.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}
	return &Workbook{file: f}, nil
}

// SheetNames returns the workbook's sheet names in file order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.file.Sheets))
	for i, s := range w.file.Sheets {
		names[i] = s.Name
	}
	return names
}

// Sheet reads one sheet as string rows, skipping opts.SkipRows leading rows.
func (w *Workbook) Sheet(opts XLSXOptions) ([][]string, error) {
	sheet, err := w.sheet(opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func (w *Workbook) sheet(opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := w.file.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(w.file.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(w.file.Sheets))
	}

	return w.file.Sheets[opts.SheetIndex], nil
}

// ReadXLSX reads a single sheet from an XLSX file and returns its rows.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	w, err := OpenWorkbook(path)
	if err != nil {
		return nil, err
	}
	return w.Sheet(opts)
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
