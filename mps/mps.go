// Package mps represents statetensors as matrix product states.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
package mps

import (
	"fmt"
	"slices"

	"github.com/fumin/tensor"
)

const (
	// mpsLeftAxis is the axis of a_{l-1} in Figure 6.
	mpsLeftAxis  = 0
	mpsUpAxis    = 1
	mpsRightAxis = 2

	// Axes of a single site operator.
	opOutAxis = 0
	opInAxis  = 1
)

// NewMPS creates a left-canonical matrix product representation of a statetensor.
// See Section 4.1.3 Decomposition of arbitrary quantum states into MPS, Ulrich Schollwock.
func NewMPS(state *tensor.Dense, bufs [2]*tensor.Dense) []*tensor.Dense {
	shape := state.Shape()
	state = resetCopy(tensor.Zeros(1), state)

	sites := make([]*tensor.Dense, 0, len(shape))
	var leftD int = 1
	for _, physD := range shape[:len(shape)-1] {
		q := tensor.Zeros(1)
		r := tensor.QR(q, state.Reshape(leftD*physD, -1), bufs)

		leftD = r.Shape()[0]
		state = resetCopy(tensor.Zeros(1), r)

		sites = append(sites, q.Reshape(-1, physD, leftD))
	}

	state = state.Reshape(leftD, shape[len(shape)-1], 1)
	sites = append(sites, resetCopy(tensor.Zeros(1), state))

	return sites
}

// InnerProduct computes the inner product between x and y, conjugating x.
// See Section 4.2.1 Efficient evaluation of contractions, Ulrich Schollwock.
func InnerProduct(x, y []*tensor.Dense, bufs [2]*tensor.Dense) complex64 {
	if len(x) != len(y) {
		panic(fmt.Sprintf("%d %d", len(x), len(y)))
	}

	f := ones(bufs[0], 1, 1)
	const fTopAxis, fBottomAxis = 0, 1
	for i, xi := range x {
		yi := y[i]

		fyi := tensor.Product(bufs[1], f, yi, [][2]int{{fBottomAxis, mpsLeftAxis}})
		tensor.Product(f, xi.Conj(), fyi, [][2]int{{mpsLeftAxis, fTopAxis}, {mpsUpAxis, mpsUpAxis}})
	}

	if !slices.Equal(f.Shape(), []int{1, 1}) {
		panic(fmt.Sprintf("%#v", f.Shape()))
	}
	return f.At(0, 0)
}

// Expectation returns <sites|O|sites>, where O is the product of the single site operators ops.
// ops maps a site to a square matrix whose side is the physical dimension of the site.
func Expectation(sites []*tensor.Dense, ops map[int][][]complex64, bufs [2]*tensor.Dense) complex64 {
	applied := slices.Clone(sites)
	for i, m := range ops {
		if i < 0 || i >= len(sites) {
			panic(fmt.Sprintf("site %d of %d", i, len(sites)))
		}
		physD := sites[i].Shape()[mpsUpAxis]
		if len(m) != physD {
			panic(fmt.Sprintf("operator %v on site of dimension %d", m, physD))
		}
		op := tensor.Zeros(physD, physD)
		for r, row := range m {
			for c, v := range row {
				op.SetAt([]int{r, c}, v)
			}
		}

		// oms is of shape {opOut, mpsLeft, mpsRight}.
		oms := tensor.Product(tensor.Zeros(1), op, sites[i], [][2]int{{opInAxis, mpsUpAxis}})
		applied[i] = resetCopy(tensor.Zeros(1), oms.Transpose(1, opOutAxis, 2))
	}
	return InnerProduct(sites, applied, bufs)
}

// Bufs returns buffers for NewMPS, InnerProduct and Expectation.
func Bufs() [2]*tensor.Dense {
	return [2]*tensor.Dense{tensor.Zeros(1), tensor.Zeros(1)}
}

func resetCopy(dst, src *tensor.Dense) *tensor.Dense {
	shape := src.Shape()
	zeroDigit := make([]int, len(shape))
	dst.Reset(shape...).Set(zeroDigit, src)
	return dst
}

func ones(t *tensor.Dense, shape ...int) *tensor.Dense {
	t.Reset(shape...)
	for ijk := range t.All() {
		t.SetAt(ijk, 1)
	}
	return t
}
