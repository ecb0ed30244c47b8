package batch

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadOptions selects the lead column of a workbook.
type ReadOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	Column     int    // zero-based column holding the raw lead text
	HeaderRows int    // rows copied to the output unchanged
}

// Sheet is a read workbook sheet: header rows plus data rows.
type Sheet struct {
	Header [][]string
	Rows   []Row
}

// Row is one data row. Raw is the text of the lead column.
type Row struct {
	Index int // zero-based data row index
	Cells []string
	Raw   string
}

// ReadXLSX reads the lead column of an XLSX file. Rows whose lead cell is
// blank are kept so the output stays aligned with the input.
func ReadXLSX(path string, opts ReadOptions) (*Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if opts.Column < 0 {
		return nil, eris.Errorf("batch: invalid column %d", opts.Column)
	}

	out := &Sheet{}
	for i, row := range sheet.Rows {
		cells := rowToStrings(row)
		if i < opts.HeaderRows {
			out.Header = append(out.Header, cells)
			continue
		}
		r := Row{Index: len(out.Rows), Cells: cells}
		if opts.Column < len(cells) {
			r.Raw = strings.TrimSpace(cells[opts.Column])
		}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// ResultColumns are appended to every output row.
var ResultColumns = []string{"NIP", "NIP (formatted)", "Decision", "Reason", "Website", "Cost USD", "Trace ID"}

// WriteXLSX writes the input rows followed by the result columns. The first
// header row, when present, gets the result column names.
func WriteXLSX(path string, in *Sheet, results []Result) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("results")
	if err != nil {
		return eris.Wrap(err, "batch: add sheet")
	}

	width := 0
	for _, h := range in.Header {
		width = max(width, len(h))
	}
	for _, r := range in.Rows {
		width = max(width, len(r.Cells))
	}

	for i, h := range in.Header {
		row := sheet.AddRow()
		addCells(row, pad(h, width))
		if i == 0 {
			addCells(row, ResultColumns)
		}
	}
	for i, r := range in.Rows {
		row := sheet.AddRow()
		addCells(row, pad(r.Cells, width))
		if i < len(results) {
			addCells(row, results[i].Columns())
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "batch: save %s", path)
	}
	return nil
}

func getSheet(f *xlsx.File, opts ReadOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("batch: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("batch: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func addCells(row *xlsx.Row, vals []string) {
	for _, v := range vals {
		row.AddCell().SetString(v)
	}
}

func pad(cells []string, width int) []string {
	if len(cells) >= width {
		return cells
	}
	out := make([]string, width)
	copy(out, cells)
	return out
}
