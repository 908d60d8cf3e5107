package export

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoHeaders is returned when a dataset has no columns to render.
var ErrNoHeaders = errors.New("export: dataset has no headers")

// Dataset defines tabular export content. Notes are summary lines rendered
// after the table, such as the final CFS of a snapshot.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	Notes   []string
}

func (d Dataset) validate() error {
	if len(d.Headers) == 0 {
		return ErrNoHeaders
	}
	return nil
}

// record returns the cells of row in header order. Missing cells are empty.
func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		out[i] = row[header]
	}
	return out
}

func isNumeric(cell string) bool {
	if cell == "" {
		return false
	}
	_, err := decimal.NewFromString(cell)
	return err == nil
}
