package export

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/mbolis/quick-forms/model"
)

const defaultSheet = "Sheet1"

// WriteXLSX writes grid as a single sheet workbook. A cell longer than a
// spreadsheet cell can hold fails with ErrInvalidInput before anything is written.
func WriteXLSX(w io.Writer, sheet string, grid Grid) error {
	if err := checkCellLimit(grid); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	name := SheetName(sheet)
	if name != defaultSheet {
		if err := f.SetSheetName(defaultSheet, name); err != nil {
			return errors.Wrap(err, "name sheet")
		}
	}

	for i, row := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return errors.Wrapf(err, "write row %d", i+1)
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write xlsx")
	}
	return nil
}

func checkCellLimit(grid Grid) error {
	for i, row := range grid {
		for j, v := range row {
			if utf8.RuneCountInString(v) > excelize.TotalCellChars {
				return errors.Wrapf(model.ErrInvalidInput,
					"row %d column %d exceeds the xlsx cell limit of %d characters, export as csv",
					i+1, j+1, excelize.TotalCellChars)
			}
		}
	}
	return nil
}

// SheetName fits a form name to Excel's sheet name rules:
// at most 31 characters, none of []:*?/\ and no leading or trailing apostrophe.
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")

	if utf8.RuneCountInString(name) > 31 {
		name = string([]rune(name)[:31])
	}
	name = strings.TrimRight(name, "'")
	if name == "" || strings.EqualFold(name, defaultSheet) {
		return defaultSheet
	}
	return name
}
