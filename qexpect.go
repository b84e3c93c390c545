// Package qexpect evaluates observables on statetensors.
//
// A statetensor of n qubits is a complex64 tensor of shape (2, 2, ..., 2) with n axes,
// whose element at (b_0, ..., b_{n-1}) is the amplitude of |b_0...b_{n-1}>.
// Qubit 0 is the most significant bit whenever a basis state is identified with an integer.
package qexpect

import (
	"fmt"
	"math/bits"
	"slices"
	"strings"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/fumin/qexpect/gates"
	"github.com/fumin/qexpect/mat"
)

// ExpectationFunc maps a statetensor to a real expectation value.
type ExpectationFunc func(state *tensor.Dense) float64

// Term is a product of gates acting on Qubits.
// Gates[0] acts on the leading qubits of Qubits, Gates[1] on the next ones, and so on.
type Term struct {
	Gates  []gates.Spec
	Qubits []int
}

func (t Term) String() string {
	names := make([]string, 0, len(t.Gates))
	for _, g := range t.Gates {
		switch g := g.(type) {
		case gates.Named:
			names = append(names, string(g))
		case gates.Parametric:
			names = append(names, fmt.Sprintf("%s%v", g.Name, g.Params))
		case gates.Matrix:
			names = append(names, fmt.Sprintf("%v", [][]complex64(g)))
		default:
			names = append(names, fmt.Sprintf("%T", g))
		}
	}
	return fmt.Sprintf("%s%v", strings.Join(names, ","), t.Qubits)
}

// Options are options for building expectation functions.
type Options struct {
	registry       gates.Registry
	checkHermitian bool
	hermitianTol   float64
}

// NewOptions returns the default options, which resolve gates with gates.Default and do not check Hermiticity.
func NewOptions() Options {
	opt := Options{}
	opt.registry = gates.Default()
	opt.hermitianTol = 1e-6
	return opt
}

// Registry sets the registry used to resolve named gates.
func (opt Options) Registry(r gates.Registry) Options {
	opt.registry = r
	return opt
}

// CheckHermitian rejects terms that are not Hermitian within tol.
// Without it, the imaginary part of a non-Hermitian term's expectation is silently discarded.
func (opt Options) CheckHermitian(tol float64) Options {
	opt.checkHermitian = true
	opt.hermitianTol = tol
	return opt
}

func getOptions(options []Options) Options {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	return opt
}

// GateTensor returns the Kronecker product of specs in tensor form.
// The result has 2k axes of dimension 2, where k is the number of qubits the specs act on.
// The first k axes are outputs and the last k axes are inputs.
// k is at most MaxQubits/2.
func GateTensor(r gates.Registry, specs []gates.Spec) (*tensor.Dense, error) {
	full, err := gateMatrix(r, specs)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return cooTensor(full), nil
}

func gateMatrix(r gates.Registry, specs []gates.Spec) (*mat.COO, error) {
	if len(specs) == 0 {
		return nil, errors.Errorf("no gates")
	}
	full := mat.COOZeros(1, 1)
	full.Scalar(1)
	var k int
	for i, s := range specs {
		m, err := gates.Resolve(r, s)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		k += gates.NumQubits(m)
		if k > MaxQubits/2 {
			return nil, errors.Errorf("gates act on more than %d qubits", MaxQubits/2)
		}
		full.Kron(mat.M(m))
	}
	return full, nil
}

// cooTensor reshapes a square matrix of side 2^k into a tensor with 2k binary axes.
func cooTensor(m *mat.COO) *tensor.Dense {
	k := bits.TrailingZeros(uint(m.Rows()))
	shape := make([]int, 2*k)
	for i := range shape {
		shape[i] = 2
	}
	t := tensor.Zeros(shape...)

	ijk := make([]int, 2*k)
	for _, e := range m.Data {
		for j := range k {
			ijk[j] = (e.Row >> (k - 1 - j)) & 1
			ijk[k+j] = (e.Col >> (k - 1 - j)) & 1
		}
		t.SetAt(ijk, e.V)
	}
	return t
}

// ApplyGate returns the state obtained by applying gate to the qubits of state.
// The gate's last len(qubits) axes are contracted with the state's axes at qubits,
// and the resulting output axes are moved back to the positions of qubits.
// Neither gate nor state is modified.
func ApplyGate(gate *tensor.Dense, qubits []int, state *tensor.Dense) *tensor.Dense {
	k := len(qubits)
	n := len(state.Shape())
	if len(gate.Shape()) != 2*k {
		panic(fmt.Sprintf("gate shape %v qubits %v", gate.Shape(), qubits))
	}
	target := make(map[int]int, k)
	for j, q := range qubits {
		if q < 0 || q >= n {
			panic(fmt.Sprintf("qubit %d outside state of %d qubits", q, n))
		}
		target[q] = j
	}

	axes := make([][2]int, 0, k)
	for j, q := range qubits {
		axes = append(axes, [2]int{k + j, q})
	}
	// applied is of shape {gateOut_0..gateOut_{k-1}, untouched state axes}.
	applied := tensor.Product(tensor.Zeros(1), gate, state, axes)

	perm := make([]int, n)
	rest := k
	for p := range n {
		if j, ok := target[p]; ok {
			perm[p] = j
			continue
		}
		perm[p] = rest
		rest++
	}
	return resetCopy(tensor.Zeros(1), applied.Transpose(perm...))
}

// SingleExpectation returns a function computing Re(<psi|gate|psi>), where gate acts on qubits.
func SingleExpectation(gate *tensor.Dense, qubits []int, options ...Options) (ExpectationFunc, error) {
	opt := getOptions(options)

	shape := gate.Shape()
	for _, d := range shape {
		if d != 2 {
			return nil, errors.Errorf("gate shape %v is not binary", shape)
		}
	}
	if len(shape) != 2*len(qubits) {
		return nil, errors.Errorf("gate of rank %d acting on qubits %v", len(shape), qubits)
	}
	if err := checkQubits(qubits); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if opt.checkHermitian {
		m, err := gates.FromTensor(gate)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		if !isHermitian(m, opt.hermitianTol) {
			return nil, errors.Errorf("gate on %v is not Hermitian", qubits)
		}
	}

	gate = resetCopy(tensor.Zeros(1), gate)
	qubits = slices.Clone(qubits)
	f := func(state *tensor.Dense) float64 {
		applied := ApplyGate(gate, qubits, state)
		return float64(real(overlap(state, applied)))
	}
	return f, nil
}

// Expectation returns a function computing the weighted sum of the expectations of terms.
func Expectation(terms []Term, coefficients []float64, options ...Options) (ExpectationFunc, error) {
	opt := getOptions(options)
	if len(terms) != len(coefficients) {
		return nil, errors.Errorf("%d terms %d coefficients", len(terms), len(coefficients))
	}

	// Tensors of terms made of named gates only are shared.
	memo := make(map[string]*tensor.Dense)
	fs := make([]ExpectationFunc, 0, len(terms))
	for i, term := range terms {
		key, named := namedKey(term.Gates)
		gate, ok := memo[key]
		if !named || !ok {
			var err error
			gate, err = GateTensor(opt.registry, term.Gates)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%d %v", i, term))
			}
			if named {
				memo[key] = gate
			}
		}

		f, err := SingleExpectation(gate, term.Qubits, opt)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d %v", i, term))
		}
		fs = append(fs, f)
	}

	coefficients = slices.Clone(coefficients)
	f := func(state *tensor.Dense) float64 {
		var out float64
		for i, fi := range fs {
			// The conversion rounds the product, forbidding a fused multiply-add.
			out += float64(coefficients[i] * fi(state))
		}
		return out
	}
	return f, nil
}

// namedKey quotes each name, so that names containing separators do not collide.
func namedKey(specs []gates.Spec) (string, bool) {
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		n, ok := s.(gates.Named)
		if !ok {
			return "", false
		}
		names = append(names, string(n))
	}
	return fmt.Sprintf("%q", names), true
}

func checkQubits(qubits []int) error {
	if len(qubits) == 0 {
		return errors.Errorf("no qubits")
	}
	seen := make(map[int]struct{}, len(qubits))
	for _, q := range qubits {
		if q < 0 {
			return errors.Errorf("negative qubit %d in %v", q, qubits)
		}
		if _, ok := seen[q]; ok {
			return errors.Errorf("duplicate qubit %d in %v", q, qubits)
		}
		seen[q] = struct{}{}
	}
	return nil
}

func isHermitian(m [][]complex64, tol float64) bool {
	return mat.M(m).Hermitian(tol)
}

// overlap returns <a|b>.
func overlap(a, b *tensor.Dense) complex64 {
	x := resetCopy(tensor.Zeros(1), a.Conj()).Reshape(1, -1)
	y := resetCopy(tensor.Zeros(1), b).Reshape(1, -1)
	return tensor.Product(tensor.Zeros(1), x, y, [][2]int{{1, 1}}).At(0, 0)
}

func resetCopy(dst, src *tensor.Dense) *tensor.Dense {
	shape := src.Shape()
	zeroDigit := make([]int, len(shape))
	dst.Reset(shape...).Set(zeroDigit, src)
	return dst
}
