package qexpect

import (
	"github.com/fumin/qexpect/gates"
	"github.com/fumin/qexpect/mat"
)

// TransverseFieldIsing returns the Hamiltonian -sum_<ij> Z_i Z_j - h sum_i X_i as a weighted observable.
// Spins sit on an n[0] x n[1] open lattice, and the spin at (y, x) is qubit y*n[1]+x.
func TransverseFieldIsing(n [2]int, h float64) ([]Term, []float64) {
	terms := make([]Term, 0)
	coefficients := make([]float64, 0)
	for y := range n[0] {
		for x := range n[1] {
			up := y - 1
			if up >= 0 {
				terms = append(terms, couplingTerm(n, [2]int{up, x}, [2]int{y, x}))
				coefficients = append(coefficients, -1)
			}

			left := x - 1
			if left >= 0 {
				terms = append(terms, couplingTerm(n, [2]int{y, left}, [2]int{y, x}))
				coefficients = append(coefficients, -1)
			}

			terms = append(terms, Term{Gates: []gates.Spec{gates.Named("X")}, Qubits: []int{site(n, [2]int{y, x})}})
			coefficients = append(coefficients, -h)
		}
	}
	return terms, coefficients
}

func couplingTerm(n [2]int, i, j [2]int) Term {
	return Term{
		Gates:  []gates.Spec{gates.Named("Z"), gates.Named("Z")},
		Qubits: []int{site(n, i), site(n, j)},
	}
}

func site(n [2]int, yx [2]int) int {
	return yx[0]*n[1] + yx[1]
}

// IsingMatrix returns the same Hamiltonian as TransverseFieldIsing as a sparse matrix.
func IsingMatrix(n [2]int, h complex64) *mat.COO {
	numSpins := n[0] * n[1]
	hamiltonian := mat.COOZeros(1<<numSpins, 1<<numSpins)
	system := mat.COOZeros(1, 1)

	for y := range n[0] {
		for x := range n[1] {
			up := y - 1
			if up >= 0 {
				coupling(hamiltonian, n, [2]int{up, x}, [2]int{y, x}, system)
			}

			left := x - 1
			if left >= 0 {
				coupling(hamiltonian, n, [2]int{y, left}, [2]int{y, x}, system)
			}

			magnetic(hamiltonian, n, [2]int{y, x}, h, system)
		}
	}
	return hamiltonian
}

func coupling(hamiltonian *mat.COO, n [2]int, i [2]int, j [2]int, system *mat.COO) {
	system.Scalar(1)
	for y := range n[0] {
		for x := range n[1] {
			yx := [2]int{y, x}
			switch {
			case yx == i || yx == j:
				system.Kron(mat.M(gates.Z))
			default:
				system.Kron(mat.COOIdentity(2))
			}
		}
	}

	hamiltonian.Add(-1, system)
}

func magnetic(hamiltonian *mat.COO, n [2]int, i [2]int, h complex64, system *mat.COO) {
	system.Scalar(1)
	for y := range n[0] {
		for x := range n[1] {
			switch {
			case [2]int{y, x} == i:
				system.Kron(mat.M(gates.X))
			default:
				system.Kron(mat.COOIdentity(2))
			}
		}
	}

	hamiltonian.Add(-h, system)
}
