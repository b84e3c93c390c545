package qexpect

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/fumin/qexpect/gates"
	"github.com/fumin/qexpect/mat"
)

// SampledExpectationFunc estimates an expectation value from shots measurements of state.
type SampledExpectationFunc func(src rand.Source, state *tensor.Dense, shots int) (float64, error)

type diagonalTerm struct {
	// rotation maps the eigenbasis of the term to the computational basis.
	rotation *tensor.Dense
	qubits   []int
	// eigenvalues[j][b] is the eigenvalue of the j-th gate for outcome b.
	eigenvalues [][2]float64
}

// SampledExpectation returns a function that estimates the weighted sum of the expectations of terms by sampling.
// Every gate of every term must be a single qubit Hermitian matrix.
// Each term rotates the state into the eigenbasis of its gates and draws its own shots from src, in order.
func SampledExpectation(terms []Term, coefficients []float64, options ...Options) (SampledExpectationFunc, error) {
	opt := getOptions(options)
	if len(terms) != len(coefficients) {
		return nil, errors.Errorf("%d terms %d coefficients", len(terms), len(coefficients))
	}

	diagonals := make([]diagonalTerm, 0, len(terms))
	for i, term := range terms {
		d, err := diagonalize(opt, term)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d %v", i, term))
		}
		diagonals = append(diagonals, d)
	}

	coefficients = slices.Clone(coefficients)
	f := func(src rand.Source, state *tensor.Dense, shots int) (float64, error) {
		if shots <= 0 {
			return math.NaN(), errors.Errorf("%d shots", shots)
		}
		var out float64
		for i, d := range diagonals {
			rotated := ApplyGate(d.rotation, d.qubits, state)
			samples, err := SampleBitstrings(src, rotated, shots)
			if err != nil {
				return math.NaN(), errors.Wrap(err, fmt.Sprintf("%d", i))
			}

			var sum float64
			for _, b := range samples {
				v := 1.0
				for j, q := range d.qubits {
					v *= d.eigenvalues[j][b[q]]
				}
				sum += v
			}
			out += float64(coefficients[i] * (sum / float64(shots)))
		}
		return out, nil
	}
	return f, nil
}

func diagonalize(opt Options, term Term) (diagonalTerm, error) {
	if len(term.Gates) != len(term.Qubits) {
		return diagonalTerm{}, errors.Errorf("%d gates on %d qubits, sampling needs single qubit gates", len(term.Gates), len(term.Qubits))
	}
	if err := checkQubits(term.Qubits); err != nil {
		return diagonalTerm{}, errors.Wrap(err, "")
	}
	if len(term.Qubits) > MaxQubits/2 {
		return diagonalTerm{}, errors.Errorf("term acts on more than %d qubits", MaxQubits/2)
	}

	d := diagonalTerm{qubits: slices.Clone(term.Qubits)}
	rotation := mat.COOZeros(1, 1)
	rotation.Scalar(1)
	for j, s := range term.Gates {
		m, err := gates.Resolve(opt.registry, s)
		if err != nil {
			return diagonalTerm{}, errors.Wrap(err, fmt.Sprintf("%d", j))
		}
		if len(m) != 2 {
			return diagonalTerm{}, errors.Errorf("gate %d acts on %d qubits", j, gates.NumQubits(m))
		}
		if !isHermitian(m, opt.hermitianTol) {
			return diagonalTerm{}, errors.Errorf("gate %d %v is not Hermitian", j, m)
		}

		vals, vecs := eigh2(m)
		rotation.Kron(mat.M(gates.Dagger(vecs)))
		d.eigenvalues = append(d.eigenvalues, vals)
	}
	d.rotation = cooTensor(rotation)
	return d, nil
}

// eigh2 diagonalizes a 2x2 Hermitian matrix.
// The columns of vecs are the eigenvectors of vals.
func eigh2(m [][]complex64) ([2]float64, [][]complex64) {
	a, d := float64(real(m[0][0])), float64(real(m[1][1]))
	b := complex128(m[0][1])
	if cmplx.Abs(b) < 1e-12 {
		return [2]float64{a, d}, [][]complex64{{1, 0}, {0, 1}}
	}

	mean, half := (a+d)/2, (a-d)/2
	r := math.Hypot(half, cmplx.Abs(b))
	vals := [2]float64{mean + r, mean - r}

	// (b, lambda-a) solves (m - lambda) v = 0.
	vecs := [][]complex64{{0, 0}, {0, 0}}
	for j, l := range vals {
		x, y := b, complex(l-a, 0)
		norm := complex(math.Hypot(cmplx.Abs(x), cmplx.Abs(y)), 0)
		vecs[0][j] = complex64(x / norm)
		vecs[1][j] = complex64(y / norm)
	}
	return vals, vecs
}
