// Package export projects a form's submissions into a grid and writes it as a
// spreadsheet or CSV file.
package export

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/submission"
)

// Grid is a header row of field labels followed by one row per submission.
// Every row has one cell per field.
type Grid [][]string

// Header returns the first row.
func (g Grid) Header() []string {
	if len(g) == 0 {
		return nil
	}
	return g[0]
}

// Rows returns every row after the header.
func (g Grid) Rows() [][]string {
	if len(g) == 0 {
		return nil
	}
	return g[1:]
}

// Project lays docs out under the fields, in field order. A label missing from a
// document gives an empty cell, labels the form no longer has are left out.
func Project(fields []model.Field, docs []submission.Document) Grid {
	grid := make(Grid, 0, len(docs)+1)

	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Label
	}
	grid = append(grid, header)

	for _, doc := range docs {
		grid = append(grid, Row(fields, doc))
	}
	return grid
}

// Row renders one document with the same rule the exports use.
func Row(fields []model.Field, doc submission.Document) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		if v, ok := doc[f.Label]; ok {
			row[i] = v.Display()
		}
	}
	return row
}

type Format string

const (
	XLSX Format = "xlsx"
	CSV  Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", XLSX:
		return XLSX, nil
	case CSV:
		return CSV, nil
	}
	return "", errors.Wrapf(model.ErrInvalidInput, "unknown export format %q", s)
}

func (f Format) ContentType() string {
	if f == CSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename names the download after the form.
func (f Format) Filename(formName string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', ':', '*', '?', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(formName))
	if name == "" {
		name = "export"
	}
	return name + "." + string(f)
}

// Write encodes grid in the given format. The sheet name only applies to spreadsheets.
func Write(w io.Writer, f Format, sheet string, grid Grid) error {
	switch f {
	case XLSX:
		return WriteXLSX(w, sheet, grid)
	case CSV:
		return WriteCSV(w, grid)
	}
	return errors.Wrapf(model.ErrInvalidInput, "unknown export format %q", f)
}
