package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// WriteCSV writes grid as RFC 4180 CSV. Text cells a spreadsheet would read as a
// formula are prefixed with an apostrophe, numbers are left alone.
func WriteCSV(w io.Writer, grid Grid) error {
	cw := csv.NewWriter(w)
	record := []string{}
	for i, row := range grid {
		record = record[:0]
		for _, v := range row {
			record = append(record, escapeFormula(v))
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write csv row %d", i+1)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "write csv")
}

func escapeFormula(v string) string {
	if v == "" || !strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return v
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	return "'" + v
}
