// Package mat implements a sparse complex matrix in coordinate format.
package mat

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	FnameShape = "shape.csv"
	FnameCOO   = "coo.csv"
)

// Entry is a nonzero element of a COO matrix.
type Entry struct {
	V   complex64
	Row int
	Col int
}

// COO is a sparse matrix whose nonzero entries are kept in row-major order.
type COO struct {
	rows int
	cols int
	Data []Entry
}

func M(dense [][]complex64) *COO {
	m := &COO{rows: len(dense), cols: len(dense[0]), Data: make([]Entry, 0)}
	for i, row := range dense {
		for j, v := range row {
			if v == 0 {
				continue
			}
			m.Data = append(m.Data, Entry{V: v, Row: i, Col: j})
		}
	}
	return m
}

// Vec returns a column vector.
func Vec(v []complex64) *COO {
	m := COOZeros(len(v), 1)
	for i, x := range v {
		if x == 0 {
			continue
		}
		m.Data = append(m.Data, Entry{V: x, Row: i, Col: 0})
	}
	return m
}

func COOZeros(rows, cols int) *COO {
	return &COO{rows: rows, cols: cols, Data: make([]Entry, 0)}
}

func COOIdentity(rows int) *COO {
	m := COOZeros(rows, rows)
	for i := range rows {
		m.Data = append(m.Data, Entry{V: 1, Row: i, Col: i})
	}
	return m
}

func (m *COO) Rows() int { return m.rows }
func (m *COO) Cols() int { return m.cols }

func (m *COO) Zeros(rows, cols int) {
	m.rows, m.cols = rows, cols
	m.Data = m.Data[:0]
}

// Scalar resets m to the 1x1 matrix v, which is the identity of Kron when v is 1.
func (m *COO) Scalar(v complex64) {
	m.rows, m.cols = 1, 1
	m.Data = m.Data[:0]
	if v != 0 {
		m.Data = append(m.Data, Entry{V: v, Row: 0, Col: 0})
	}
}

func (a *COO) Equal(b *COO) bool {
	if a.rows != b.rows || a.cols != b.cols {
		return false
	}
	return slices.Equal(a.Data, b.Data)
}

// Add performs a += c*b.
func (a *COO) Add(c complex64, b *COO) {
	if a.rows != b.rows || a.cols != b.cols {
		panic(fmt.Sprintf("%dx%d %dx%d", a.rows, a.cols, b.rows, b.cols))
	}

	sum := make(map[[2]int]complex64, len(a.Data)+len(b.Data))
	for _, v := range a.Data {
		sum[[2]int{v.Row, v.Col}] += v.V
	}
	for _, v := range b.Data {
		sum[[2]int{v.Row, v.Col}] += c * v.V
	}

	a.Data = a.Data[:0]
	for rc, v := range sum {
		if v == 0 {
			continue
		}
		a.Data = append(a.Data, Entry{V: v, Row: rc[0], Col: rc[1]})
	}
	slices.SortFunc(a.Data, rowMajor)
}

// Kron replaces a with the Kronecker product of a and b.
func (a *COO) Kron(b *COO) {
	rows := a.rows * b.rows
	cols := a.cols * b.cols
	a.rows, a.cols = rows, cols

	prev := slices.Clone(a.Data)
	a.Data = a.Data[:0]
	for _, av := range prev {
		for _, bv := range b.Data {
			v := av.V * bv.V
			if v == 0 {
				continue
			}
			ky := av.Row*b.rows + bv.Row
			kx := av.Col*b.cols + bv.Col
			a.Data = append(a.Data, Entry{V: v, Row: ky, Col: kx})
		}
	}
	slices.SortFunc(a.Data, rowMajor)
}

// Quadratic returns x^dagger m x.
func (m *COO) Quadratic(x []complex64) complex128 {
	if m.rows != len(x) || m.cols != len(x) {
		panic(fmt.Sprintf("%dx%d %d", m.rows, m.cols, len(x)))
	}
	var s complex128
	for _, v := range m.Data {
		xr := complex128(x[v.Row])
		xr = complex(real(xr), -imag(xr))
		s += xr * complex128(v.V) * complex128(x[v.Col])
	}
	return s
}

// Hermitian reports whether m equals its conjugate transpose within tol.
func (m *COO) Hermitian(tol float64) bool {
	if m.rows != m.cols {
		return false
	}
	a := m.CDense()
	return mat.CEqualApprox(a, a.H(), tol)
}

// CDense returns m as a gonum dense complex matrix.
func (m *COO) CDense() *mat.CDense {
	d := mat.NewCDense(m.rows, m.cols, nil)
	for _, v := range m.Data {
		d.Set(v.Row, v.Col, complex128(v.V))
	}
	return d
}

func (m *COO) Dense() [][]complex64 {
	dense := make([][]complex64, m.rows)
	for i := range dense {
		dense[i] = make([]complex64, m.cols)
	}

	for _, v := range m.Data {
		dense[v.Row][v.Col] = v.V
	}

	return dense
}

func (m *COO) WriteCOO(dir string) error {
	shapePath := filepath.Join(dir, FnameShape)
	if err := os.WriteFile(shapePath, []byte(fmt.Sprintf("%d,%d", m.rows, m.cols)), 0644); err != nil {
		return errors.Wrap(err, "")
	}

	cooPath := filepath.Join(dir, FnameCOO)
	cooF, err := os.Create(cooPath)
	if err != nil {
		return errors.Wrap(err, "")
	}

	w := csv.NewWriter(cooF)
	for _, v := range m.Data {
		if err1 := w.Write([]string{FormatNumpy(v.V), strconv.Itoa(v.Row), strconv.Itoa(v.Col)}); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
			break
		}
	}
	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}

	if err1 := cooF.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

// COOReader streams the entries of a coo.csv file.
// Empty value or row fields repeat the previous entry's field.
type COOReader struct {
	f *os.File
	r *csv.Reader
	i int

	prev Entry
}

func NewCOOReader(dir string) (*COOReader, error) {
	r := &COOReader{i: -1}

	var err error
	r.f, err = os.Open(filepath.Join(dir, FnameCOO))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	r.r = csv.NewReader(r.f)
	return r, nil
}

func (r *COOReader) Close() error {
	return r.f.Close()
}

func (r *COOReader) Read() (Entry, error) {
	r.i++
	record, err := r.r.Read()
	if err == io.EOF {
		return Entry{}, io.EOF
	}
	if err != nil {
		return Entry{}, errors.Wrap(err, fmt.Sprintf("%d", r.i))
	}
	if len(record) != 3 {
		return Entry{}, errors.Errorf("%d %#v", r.i, record)
	}

	var e Entry
	switch {
	case record[0] == "":
		e.V = r.prev.V
	default:
		v, err := ParseNumpy(record[0])
		if err != nil {
			return Entry{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
		}
		e.V = v
	}

	switch {
	case record[1] == "":
		e.Row = r.prev.Row
	default:
		e.Row, err = strconv.Atoi(record[1])
		if err != nil {
			return Entry{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
		}
	}

	e.Col, err = strconv.Atoi(record[2])
	if err != nil {
		return Entry{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
	}

	r.prev = e
	return e, nil
}

func ReadCOO(dir string) (*COO, error) {
	rows, cols, err := readShape(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	m := COOZeros(rows, cols)

	r, err := NewCOOReader(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer r.Close()
	for {
		e, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		if e.Row < 0 || e.Row >= rows || e.Col < 0 || e.Col >= cols {
			return nil, errors.Errorf("%#v outside %dx%d", e, rows, cols)
		}

		m.Data = append(m.Data, e)
	}
	slices.SortFunc(m.Data, rowMajor)

	return m, nil
}

func readShape(dir string) (int, int, error) {
	f, err := os.Open(filepath.Join(dir, FnameShape))
	if err != nil {
		return -1, -1, errors.Wrap(err, "")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return -1, -1, errors.Wrap(err, "")
	}
	if len(records) == 0 {
		return -1, -1, errors.Errorf("empty")
	}
	row := records[0]

	if len(row) != 2 {
		return -1, -1, errors.Errorf("%#v", row)
	}
	i, err := strconv.Atoi(row[0])
	if err != nil {
		return -1, -1, errors.Wrap(err, fmt.Sprintf("%#v", row))
	}
	j, err := strconv.Atoi(row[1])
	if err != nil {
		return -1, -1, errors.Wrap(err, fmt.Sprintf("%#v", row))
	}

	return i, j, nil
}

func (m *COO) String() string {
	dense := m.Dense()
	lines := make([]string, 0, m.rows)
	for _, row := range dense {
		cs := make([]string, 0, m.cols)
		for _, v := range row {
			switch {
			case imag(v) == 0:
				cs = append(cs, format(real(v)))
			case real(v) == 0:
				cs = append(cs, format(imag(v))+"i")
			default:
				cs = append(cs, format(real(v))+"+"+format(imag(v))+"i")
			}
		}
		lines = append(lines, strings.Join(cs, "\t"))
	}
	return strings.Join(lines, "\n")
}

func rowMajor(a, b Entry) int {
	if c := cmp.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	return cmp.Compare(a.Col, b.Col)
}

func format(v float32) string {
	// If v is 0 or -0, return "0" immediately to avoid returning "-0".
	if v == 0 {
		return " 0"
	}

	s := fmt.Sprintf("%v", v)

	// Add a space before non-negative numbers to align with other negative numbers in the same column.
	if v >= 0 {
		s = " " + s
	}

	return s
}

// FormatNumpy formats v the way numpy prints complex numbers.
func FormatNumpy(v complex64) string {
	switch {
	case imag(v) == 0:
		return strconv.FormatFloat(float64(real(v)), 'g', -1, 32)
	default:
		s := fmt.Sprintf("%v", v)
		s = strings.ReplaceAll(s, "i", "j")
		return s
	}
}

// ParseNumpy parses the output of FormatNumpy.
func ParseNumpy(s string) (complex64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "j", "i")
	v, err := strconv.ParseComplex(s, 64)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	return complex64(v), nil
}
