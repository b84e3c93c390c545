package qexpect

import (
	"fmt"
	"slices"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/fumin/qexpect/gates"
	"github.com/fumin/qexpect/mps"
)

// ProductExpectation is like Expectation, but contracts terms against a matrix product state decomposition of the state.
// Every gate of every term must act on a single qubit.
func ProductExpectation(terms []Term, coefficients []float64, options ...Options) (ExpectationFunc, error) {
	opt := getOptions(options)
	if len(terms) != len(coefficients) {
		return nil, errors.Errorf("%d terms %d coefficients", len(terms), len(coefficients))
	}

	ops := make([]map[int][][]complex64, 0, len(terms))
	for i, term := range terms {
		if len(term.Gates) != len(term.Qubits) {
			return nil, errors.Errorf("%d %v: %d gates on %d qubits", i, term, len(term.Gates), len(term.Qubits))
		}
		if err := checkQubits(term.Qubits); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d %v", i, term))
		}
		op := make(map[int][][]complex64, len(term.Gates))
		for j, s := range term.Gates {
			m, err := gates.Resolve(opt.registry, s)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%d %v", i, term))
			}
			if len(m) != 2 {
				return nil, errors.Errorf("%d %v: gate %d acts on %d qubits", i, term, j, gates.NumQubits(m))
			}
			if opt.checkHermitian && !isHermitian(m, opt.hermitianTol) {
				return nil, errors.Errorf("%d %v: gate %d is not Hermitian", i, term, j)
			}
			op[term.Qubits[j]] = m
		}
		ops = append(ops, op)
	}

	coefficients = slices.Clone(coefficients)
	f := func(state *tensor.Dense) float64 {
		bufs := mps.Bufs()
		sites := mps.NewMPS(state, bufs)
		for _, op := range ops {
			for q := range op {
				if q >= len(sites) {
					panic(fmt.Sprintf("qubit %d outside state of %d qubits", q, len(sites)))
				}
			}
		}

		var out float64
		for i, op := range ops {
			e := mps.Expectation(sites, op, bufs)
			out += float64(coefficients[i] * float64(real(e)))
		}
		return out
	}
	return f, nil
}
