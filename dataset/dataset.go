// Package dataset loads delimited tabular files into dense matrices and
// writes matrices back out as plain text. Rows are observations, columns
// are variables.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// ParseError reports the location of a malformed numeric field
type ParseError struct {
	Row int
	Col int
	Err error
}

func (p *ParseError) Error() string {
	return fmt.Sprintf("dataset: row %d, column %d: %v", p.Row, p.Col, p.Err)
}

func (p *ParseError) Unwrap() error { return p.Err }

// ReadCSV reads a comma-separated file of numeric values into a dense
// matrix. If hasHeader is true the first record is returned as the column
// names instead of being parsed.
func ReadCSV(path string, hasHeader bool) (*mat.Dense, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return Read(f, ',', hasHeader)
}

// Read reads delimited numeric records from r. All records must have the
// same number of fields.
func Read(r io.Reader, sep rune, hasHeader bool) (*mat.Dense, []string, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.TrimLeadingSpace = true

	var header []string
	if hasHeader {
		rec, err := cr.Read()
		if err != nil {
			return nil, nil, fmt.Errorf("dataset: reading header: %w", err)
		}
		header = rec
	}

	var values []float64
	var nCols int
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if nCols == 0 {
			nCols = len(rec)
		}
		for col, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, &ParseError{Row: row, Col: col, Err: err}
			}
			values = append(values, v)
		}
		row++
	}
	if row == 0 {
		return nil, nil, fmt.Errorf("dataset: no records")
	}
	return mat.NewDense(row, nCols, values), header, nil
}

// WriteMatrix dumps a matrix to path as whitespace-separated plain text,
// one row per line.
func WriteMatrix(path string, a mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, m := a.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if j > 0 {
				if _, err := fmt.Fprint(f, " "); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(f, "%.18e", a.At(i, j)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(f); err != nil {
			return err
		}
	}
	return f.Close()
}
