package qexpect

import (
	"fmt"
	"math"
	"math/bits"
	"os"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/fumin/qexpect/mat"
)

// MaxQubits is the largest number of axes a tensor can have.
const MaxQubits = 16

// NumQubits returns the number of qubits of a statetensor.
func NumQubits(state *tensor.Dense) int {
	return len(state.Shape())
}

func checkState(state *tensor.Dense) error {
	shape := state.Shape()
	if len(shape) == 0 {
		return errors.Errorf("empty state")
	}
	for _, d := range shape {
		if d != 2 {
			return errors.Errorf("state shape %v is not binary", shape)
		}
	}
	return nil
}

// NewStatetensor reshapes amplitudes listed in big-endian order into a statetensor.
func NewStatetensor(amplitudes []complex64) (*tensor.Dense, error) {
	size := len(amplitudes)
	if size < 2 || size&(size-1) != 0 {
		return nil, errors.Errorf("%d amplitudes is not a power of 2", size)
	}
	n := bits.TrailingZeros(uint(size))
	if n > MaxQubits {
		return nil, errors.Errorf("%d qubits exceed the maximum of %d", n, MaxQubits)
	}

	shape := make([]int, n)
	for i := range shape {
		shape[i] = 2
	}
	state := tensor.Zeros(shape...)
	ijk := make([]int, n)
	for i, b := range Bits(n) {
		if amplitudes[i] == 0 {
			continue
		}
		digits(ijk, b)
		state.SetAt(ijk, amplitudes[i])
	}
	return state, nil
}

// Amplitudes flattens a statetensor in big-endian order.
func Amplitudes(state *tensor.Dense) []complex64 {
	n := NumQubits(state)
	amps := make([]complex64, 0, 1<<n)
	ijk := make([]int, n)
	for _, b := range Bits(n) {
		digits(ijk, b)
		amps = append(amps, state.At(ijk...))
	}
	return amps
}

func digits(ijk []int, b []byte) {
	for j, bit := range b {
		ijk[j] = int(bit)
	}
}

// builtinAmplitudes panics unless 1 <= n <= MaxQubits, before allocating 2^n amplitudes.
func builtinAmplitudes(n int) []complex64 {
	if n < 1 || n > MaxQubits {
		panic(fmt.Sprintf("%d qubits outside [1, %d]", n, MaxQubits))
	}
	return make([]complex64, 1<<n)
}

// ZeroState returns |0...0> on n qubits.
func ZeroState(n int) *tensor.Dense {
	amps := builtinAmplitudes(n)
	amps[0] = 1
	return mustState(amps)
}

// UniformState returns the equal superposition of all basis states on n qubits.
func UniformState(n int) *tensor.Dense {
	amps := builtinAmplitudes(n)
	a := complex(float32(1/math.Sqrt(float64(len(amps)))), 0)
	for i := range amps {
		amps[i] = a
	}
	return mustState(amps)
}

// GHZState returns (|0...0> + |1...1>) / sqrt(2) on n qubits.
func GHZState(n int) *tensor.Dense {
	amps := builtinAmplitudes(n)
	a := complex(float32(1/math.Sqrt2), 0)
	amps[0], amps[len(amps)-1] = a, a
	return mustState(amps)
}

func mustState(amps []complex64) *tensor.Dense {
	state, err := NewStatetensor(amps)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return state
}

// WriteStatetensor writes state to dir as a sparse column vector.
func WriteStatetensor(dir string, state *tensor.Dense) error {
	if err := checkState(state); err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	if err := mat.Vec(Amplitudes(state)).WriteCOO(dir); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// ReadStatetensor reads a statetensor written by WriteStatetensor.
func ReadStatetensor(dir string) (*tensor.Dense, error) {
	m, err := mat.ReadCOO(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if m.Cols() != 1 {
		return nil, errors.Errorf("%dx%d is not a column vector", m.Rows(), m.Cols())
	}
	amps := make([]complex64, m.Rows())
	for _, e := range m.Data {
		amps[e.Row] = e.V
	}
	state, err := NewStatetensor(amps)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return state, nil
}
