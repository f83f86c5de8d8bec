// Package dataset reads and writes measured concentration profiles,
// pure-component spectra and absorbance matrices as CSV.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/kinest/internal/estim"
	"gonum.org/v1/gonum/mat"
)

// Table is a numeric CSV with a leading key column (time or wavelength)
// and one column per component.
type Table struct {
	Key        string
	Index      []float64
	Components []string
	// Values is len(Index) by len(Components).
	Values *mat.Dense
}

// Concentrations are indexed by measurement time.
type Concentrations = Table

// Spectra are indexed by wavelength.
type Spectra = Table

func (t *Table) Rows() int { return len(t.Index) }

// Absorbance is a measured absorbance matrix D with one row per time and
// one column per wavelength. On disk it is a time-keyed table whose
// headers are the wavelengths.
type Absorbance struct {
	Times       []float64
	Wavelengths []float64
	// Values is len(Times) by len(Wavelengths).
	Values *mat.Dense
}

// AbsorbanceFromTable reads wavelengths from the column headers of t.
func AbsorbanceFromTable(t *Table) (*Absorbance, error) {
	a := &Absorbance{
		Times:       append([]float64(nil), t.Index...),
		Wavelengths: make([]float64, len(t.Components)),
		Values:      mat.DenseCopyOf(t.Values),
	}
	for j, h := range t.Components {
		w, err := strconv.ParseFloat(h, 64)
		if err != nil {
			return nil, estim.Inputf("dataset", "absorbance column %q is not a wavelength", h)
		}
		if j > 0 && w <= a.Wavelengths[j-1] {
			return nil, estim.Inputf("dataset", "absorbance wavelengths must increase")
		}
		a.Wavelengths[j] = w
	}
	return a, nil
}

// Table returns a in its CSV layout.
func (a *Absorbance) Table() *Table {
	cols := make([]string, len(a.Wavelengths))
	for j, w := range a.Wavelengths {
		cols[j] = strconv.FormatFloat(w, 'g', -1, 64)
	}
	return &Table{
		Key:        "time",
		Index:      append([]float64(nil), a.Times...),
		Components: cols,
		Values:     mat.DenseCopyOf(a.Values),
	}
}

// LoadAbsorbance reads an absorbance matrix from path.
func LoadAbsorbance(path string) (*Absorbance, error) {
	t, err := Load(path)
	if err != nil {
		return nil, err
	}
	a, err := AbsorbanceFromTable(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Column returns the values of the named component.
func (t *Table) Column(name string) ([]float64, bool) {
	for j, c := range t.Components {
		if c == name {
			return mat.Col(nil, j, t.Values), true
		}
	}
	return nil, false
}

// Select returns a table restricted to the named components, in that order.
func (t *Table) Select(names []string) (*Table, error) {
	if len(names) == 0 {
		return nil, estim.Inputf("dataset", "no columns selected")
	}
	out := &Table{Key: t.Key, Index: append([]float64(nil), t.Index...), Components: append([]string(nil), names...)}
	out.Values = mat.NewDense(len(t.Index), len(names), nil)
	for j, n := range names {
		col, ok := t.Column(n)
		if !ok {
			return nil, estim.Inputf("dataset", "no column %q", n)
		}
		out.Values.SetCol(j, col)
	}
	return out, nil
}

// Read parses a table. The first row is the header; blank cells are
// rejected so missing measurements surface early.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, estim.Inputf("dataset", "need a header and at least one row")
	}

	header := records[0]
	if len(header) < 2 {
		return nil, estim.Inputf("dataset", "need a key column and at least one component")
	}
	t := &Table{
		Key:        strings.TrimSpace(header[0]),
		Components: make([]string, len(header)-1),
		Index:      make([]float64, 0, len(records)-1),
	}
	for i, h := range header[1:] {
		t.Components[i] = strings.TrimSpace(h)
	}

	data := make([]float64, 0, (len(records)-1)*len(t.Components))
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, estim.Inputf("dataset", "row %d has %d fields, want %d", i+2, len(rec), len(header))
		}
		key, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return nil, estim.Inputf("dataset", "row %d: bad %s %q", i+2, t.Key, rec[0])
		}
		if n := len(t.Index); n > 0 && key <= t.Index[n-1] {
			return nil, estim.Inputf("dataset", "row %d: %s values must increase", i+2, t.Key)
		}
		t.Index = append(t.Index, key)
		for j := 1; j < len(rec); j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				return nil, estim.Inputf("dataset", "row %d column %s: bad value %q", i+2, header[j], rec[j])
			}
			data = append(data, v)
		}
	}
	t.Values = mat.NewDense(len(t.Index), len(t.Components), data)
	return t, nil
}

func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Write emits t as CSV.
func Write(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	header := append([]string{t.Key}, t.Components...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, k := range t.Index {
		row := []string{strconv.FormatFloat(k, 'f', 6, 64)}
		for j := range t.Components {
			row = append(row, strconv.FormatFloat(t.Values.At(i, j), 'g', 10, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func Save(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
