// Package gates contains the elementary quantum gates that observables are built from.
//
// A gate is specified by one of three variants of Spec:
//   - Named, a name resolved against a Registry,
//   - Matrix, an explicit unitary matrix,
//   - Parametric, a constructor evaluated with fixed parameters.
//
// Every variant resolves to a square matrix whose side is a power of two.
// Row and column indices are big-endian over the qubits the gate acts on.
package gates

import (
	"fmt"
	"math"
	"math/bits"
	"slices"
	"sync"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

// Spec is a gate specification.
type Spec interface {
	resolve(r Registry) ([][]complex64, error)
}

// Named is a gate looked up by name in a Registry.
type Named string

func (n Named) resolve(r Registry) ([][]complex64, error) {
	m, ok := r.Lookup(string(n))
	if !ok {
		return nil, errors.Errorf("unknown gate %q", string(n))
	}
	return m, nil
}

// Matrix is an explicit gate matrix.
type Matrix [][]complex64

func (m Matrix) resolve(Registry) ([][]complex64, error) {
	return clone(m), nil
}

// ParamFunc constructs a gate matrix from parameters.
type ParamFunc func(params []float64) ([][]complex64, error)

// Parametric is a gate whose matrix is computed from Params by Fn.
type Parametric struct {
	Name   string
	Fn     ParamFunc
	Params []float64
}

func (p Parametric) resolve(Registry) ([][]complex64, error) {
	if p.Fn == nil {
		return nil, errors.Errorf("nil constructor for parametric gate %q", p.Name)
	}
	m, err := p.Fn(p.Params)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("%s%v", p.Name, p.Params))
	}
	return m, nil
}

// Resolve returns the matrix of a gate specification.
func Resolve(r Registry, s Spec) ([][]complex64, error) {
	if s == nil {
		return nil, errors.Errorf("nil gate")
	}
	m, err := s.resolve(r)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := validate(m); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("%v", s))
	}
	return m, nil
}

// NumQubits returns the number of qubits a gate matrix of side len(m) acts on.
func NumQubits(m [][]complex64) int {
	return bits.TrailingZeros(uint(len(m)))
}

// FromTensor converts a gate in tensor form into a Matrix.
// The element count of t must be a power of 4, and elements are read in row-major order.
func FromTensor(t *tensor.Dense) (Matrix, error) {
	shape := t.Shape()
	size := 1
	for _, d := range shape {
		size *= d
	}
	if size < 4 || size&(size-1) != 0 || bits.TrailingZeros(uint(size))%2 != 0 {
		return nil, errors.Errorf("element count %d of shape %v is not a power of 4", size, shape)
	}
	side := 1 << (bits.TrailingZeros(uint(size)) / 2)

	m := zeros(side)
	idx := make([]int, len(shape))
	for f := range size {
		rem := f
		for i := len(shape) - 1; i >= 0; i-- {
			idx[i] = rem % shape[i]
			rem /= shape[i]
		}
		m[f/side][f%side] = t.At(idx...)
	}
	return m, nil
}

// Registry maps gate names to matrices.
// A Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	fixed map[string][][]complex64
	param map[string]ParamFunc
}

// NewRegistry creates a registry from fixed gates and parametric gate constructors.
func NewRegistry(fixed map[string][][]complex64, param map[string]ParamFunc) (Registry, error) {
	r := Registry{fixed: make(map[string][][]complex64, len(fixed)), param: make(map[string]ParamFunc, len(param))}
	for name, m := range fixed {
		if err := validate(m); err != nil {
			return Registry{}, errors.Wrap(err, name)
		}
		r.fixed[name] = clone(m)
	}
	for name, fn := range param {
		if fn == nil {
			return Registry{}, errors.Errorf("nil constructor %q", name)
		}
		if _, ok := r.fixed[name]; ok {
			return Registry{}, errors.Errorf("%q is both fixed and parametric", name)
		}
		r.param[name] = fn
	}
	return r, nil
}

var defaultRegistry = sync.OnceValue(func() Registry {
	r, err := NewRegistry(builtinFixed(), builtinParam())
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return r
})

// Default returns the registry of builtin gates.
func Default() Registry {
	return defaultRegistry()
}

// Lookup returns a copy of the matrix of a fixed gate.
func (r Registry) Lookup(name string) ([][]complex64, bool) {
	m, ok := r.fixed[name]
	if !ok {
		return nil, false
	}
	return clone(m), true
}

// Param returns the parametric gate name with the given parameters.
func (r Registry) Param(name string, params ...float64) (Parametric, error) {
	fn, ok := r.param[name]
	if !ok {
		return Parametric{}, errors.Errorf("unknown parametric gate %q", name)
	}
	return Parametric{Name: name, Fn: fn, Params: slices.Clone(params)}, nil
}

// Names returns the sorted names of all fixed and parametric gates.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r.fixed)+len(r.param))
	for name := range r.fixed {
		names = append(names, name)
	}
	for name := range r.param {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func validate(m [][]complex64) error {
	side := len(m)
	if side < 2 || side&(side-1) != 0 {
		return errors.Errorf("matrix side %d is not a power of 2", side)
	}
	for i, row := range m {
		if len(row) != side {
			return errors.Errorf("row %d has %d columns, expected %d", i, len(row), side)
		}
	}
	return nil
}

func clone(m [][]complex64) [][]complex64 {
	c := make([][]complex64, len(m))
	for i, row := range m {
		c[i] = slices.Clone(row)
	}
	return c
}

func zeros(side int) [][]complex64 {
	m := make([][]complex64, side)
	for i := range m {
		m[i] = make([]complex64, side)
	}
	return m
}

func cis(x float64) complex64 {
	return complex(float32(math.Cos(x)), float32(math.Sin(x)))
}
