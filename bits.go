package qexpect

import (
	"iter"
	"math/bits"
)

// MinBits returns the number of bits needed to represent the largest of values, and at least 1.
func MinBits(values ...int) int {
	var mx int
	for _, v := range values {
		mx = max(mx, v)
	}
	return max(1, bits.Len(uint(mx)))
}

// IntegerToBitstring returns the nbits-long big-endian binary expansion of v.
// Bits of v beyond nbits are dropped.
// If nbits is not positive, it is inferred by MinBits.
func IntegerToBitstring(v, nbits int) []byte {
	if nbits <= 0 {
		nbits = MinBits(v)
	}
	b := make([]byte, nbits)
	indexBit(b, v)
	return b
}

// IntegersToBitstrings returns the bitstrings of values, all of length nbits.
// If nbits is not positive, it is inferred by MinBits over all values.
func IntegersToBitstrings(values []int, nbits int) [][]byte {
	if nbits <= 0 {
		nbits = MinBits(values...)
	}
	bs := make([][]byte, 0, len(values))
	for _, v := range values {
		bs = append(bs, IntegerToBitstring(v, nbits))
	}
	return bs
}

// BitstringToInteger interprets b as a big-endian binary number.
// Elements other than 1 are read as 0.
func BitstringToInteger(b []byte) int {
	return bitIndex(b)
}

// BitstringsToIntegers converts each bitstring with BitstringToInteger.
func BitstringsToIntegers(bs [][]byte) []int {
	vs := make([]int, 0, len(bs))
	for _, b := range bs {
		vs = append(vs, bitIndex(b))
	}
	return vs
}

// Bits iterates over the 2^n basis states of n qubits in increasing order.
// The yielded bitstring is reused between iterations.
func Bits(n int) iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		state := make([]byte, n)
		numStates := 1 << n
		for i := range numStates {
			indexBit(state, i)
			if !yield(i, state) {
				return
			}
		}
	}
}

func indexBit(state []byte, i int) {
	n := len(state)
	for j := range n {
		state[j] = byte((i >> (n - 1 - j)) & 1)
	}
}

func bitIndex(state []byte) int {
	idx := 0
	for _, b := range state {
		idx <<= 1
		if b == 1 {
			idx |= 1
		}
	}
	return idx
}
