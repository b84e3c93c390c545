package qexpect

import (
	"math"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Probabilities returns the squared magnitudes of the amplitudes of state in big-endian order.
func Probabilities(state *tensor.Dense) []float64 {
	amps := Amplitudes(state)
	probs := make([]float64, 0, len(amps))
	for _, a := range amps {
		re, im := float64(real(a)), float64(imag(a))
		probs = append(probs, re*re+im*im)
	}
	return probs
}

// SampleIntegers draws m basis state indices with probability proportional to the squared amplitudes of state.
// The weights are used as they are: a state that is not normalized is sampled
// proportionally to its squared amplitudes, and no error is reported.
// src is advanced by the draws.
func SampleIntegers(src rand.Source, state *tensor.Dense, m int) ([]int, error) {
	if src == nil {
		return nil, errors.Errorf("nil random source")
	}
	if m < 0 {
		return nil, errors.Errorf("negative number of samples %d", m)
	}
	if err := checkState(state); err != nil {
		return nil, errors.Wrap(err, "")
	}

	probs := Probabilities(state)
	var total float64
	for _, p := range probs {
		total += p
	}
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, errors.Errorf("total probability %f", total)
	}

	dist := distuv.NewCategorical(probs, src)
	samples := make([]int, 0, m)
	for range m {
		samples = append(samples, int(dist.Rand()))
	}
	return samples, nil
}

// SampleBitstrings is SampleIntegers followed by conversion to bitstrings as long as the number of qubits.
func SampleBitstrings(src rand.Source, state *tensor.Dense, m int) ([][]byte, error) {
	samples, err := SampleIntegers(src, state, m)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return IntegersToBitstrings(samples, NumQubits(state)), nil
}
