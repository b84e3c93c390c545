package gates

import (
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/qexpect/mat"
)

var (
	invSqrt2 = float32(1 / math.Sqrt2)

	I = [][]complex64{
		{1, 0},
		{0, 1},
	}
	X = [][]complex64{
		{0, 1},
		{1, 0},
	}
	Y = [][]complex64{
		{0, -1i},
		{1i, 0},
	}
	Z = [][]complex64{
		{1, 0},
		{0, -1},
	}
	H = [][]complex64{
		{complex(invSqrt2, 0), complex(invSqrt2, 0)},
		{complex(invSqrt2, 0), complex(-invSqrt2, 0)},
	}
	S = [][]complex64{
		{1, 0},
		{0, 1i},
	}
	T = [][]complex64{
		{1, 0},
		{0, cis(math.Pi / 4)},
	}
	// V is the square root of X with a real diagonal.
	V = [][]complex64{
		{complex(invSqrt2, 0), complex(0, -invSqrt2)},
		{complex(0, -invSqrt2), complex(invSqrt2, 0)},
	}
	// SX is the square root of X with the global phase used by hardware vendors.
	SX = [][]complex64{
		{complex(0.5, 0.5), complex(0.5, -0.5)},
		{complex(0.5, -0.5), complex(0.5, 0.5)},
	}
	SWAP = [][]complex64{
		{1, 0, 0, 0},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{0, 0, 0, 1},
	}
	ISWAP = [][]complex64{
		{1, 0, 0, 0},
		{0, 0, 1i, 0},
		{0, 1i, 0, 0},
		{0, 0, 0, 1},
	}
	ECR = [][]complex64{
		{0, complex(invSqrt2, 0), 0, complex(0, invSqrt2)},
		{complex(invSqrt2, 0), 0, complex(0, -invSqrt2), 0},
		{0, complex(0, invSqrt2), 0, complex(invSqrt2, 0)},
		{complex(0, -invSqrt2), 0, complex(invSqrt2, 0), 0},
	}
)

func builtinFixed() map[string][][]complex64 {
	cx := Controlled(X)
	return map[string][][]complex64{
		"I":     I,
		"X":     X,
		"Y":     Y,
		"Z":     Z,
		"H":     H,
		"S":     S,
		"Sdg":   Dagger(S),
		"T":     T,
		"Tdg":   Dagger(T),
		"V":     V,
		"Vdg":   Dagger(V),
		"SX":    SX,
		"SXdg":  Dagger(SX),
		"CX":    cx,
		"CY":    Controlled(Y),
		"CZ":    Controlled(Z),
		"CH":    Controlled(H),
		"CV":    Controlled(V),
		"CVdg":  Controlled(Dagger(V)),
		"CSX":   Controlled(SX),
		"CSXdg": Controlled(Dagger(SX)),
		"SWAP":  SWAP,
		"ISWAP": ISWAP,
		"ECR":   ECR,
		"CCX":   Controlled(cx),
		"CSWAP": Controlled(SWAP),
	}
}

func builtinParam() map[string]ParamFunc {
	return map[string]ParamFunc{
		"Rx":      withParams(1, func(p []float64) [][]complex64 { return Rx(p[0]) }),
		"Ry":      withParams(1, func(p []float64) [][]complex64 { return Ry(p[0]) }),
		"Rz":      withParams(1, func(p []float64) [][]complex64 { return Rz(p[0]) }),
		"Phase":   withParams(1, func(p []float64) [][]complex64 { return Phase(p[0]) }),
		"U1":      withParams(1, func(p []float64) [][]complex64 { return Phase(p[0]) }),
		"U2":      withParams(2, func(p []float64) [][]complex64 { return U3(math.Pi/2, p[0], p[1]) }),
		"U3":      withParams(3, func(p []float64) [][]complex64 { return U3(p[0], p[1], p[2]) }),
		"CRx":     withParams(1, func(p []float64) [][]complex64 { return Controlled(Rx(p[0])) }),
		"CRy":     withParams(1, func(p []float64) [][]complex64 { return Controlled(Ry(p[0])) }),
		"CRz":     withParams(1, func(p []float64) [][]complex64 { return Controlled(Rz(p[0])) }),
		"CPhase":  withParams(1, func(p []float64) [][]complex64 { return Controlled(Phase(p[0])) }),
		"XXPhase": withParams(1, func(p []float64) [][]complex64 { return pauliRotation(kron(X, X), p[0]) }),
		"YYPhase": withParams(1, func(p []float64) [][]complex64 { return pauliRotation(kron(Y, Y), p[0]) }),
		"ZZPhase": withParams(1, func(p []float64) [][]complex64 { return pauliRotation(kron(Z, Z), p[0]) }),
	}
}

func withParams(n int, f func([]float64) [][]complex64) ParamFunc {
	return func(params []float64) ([][]complex64, error) {
		if len(params) != n {
			return nil, errors.Errorf("got %d parameters, expected %d", len(params), n)
		}
		return f(params), nil
	}
}

// Rx returns exp(-i theta X / 2).
func Rx(theta float64) [][]complex64 {
	return pauliRotation(X, theta)
}

// Ry returns exp(-i theta Y / 2).
func Ry(theta float64) [][]complex64 {
	return pauliRotation(Y, theta)
}

// Rz returns exp(-i theta Z / 2).
func Rz(theta float64) [][]complex64 {
	return pauliRotation(Z, theta)
}

// Phase returns diag(1, exp(i lambda)).
func Phase(lambda float64) [][]complex64 {
	return [][]complex64{
		{1, 0},
		{0, cis(lambda)},
	}
}

// U3 returns the generic single qubit rotation in the OpenQASM convention.
func U3(theta, phi, lambda float64) [][]complex64 {
	c, s := float32(math.Cos(theta/2)), float32(math.Sin(theta/2))
	return [][]complex64{
		{complex(c, 0), -cis(lambda) * complex(s, 0)},
		{cis(phi) * complex(s, 0), cis(phi+lambda) * complex(c, 0)},
	}
}

// pauliRotation returns exp(-i theta p / 2) for an involutory p.
func pauliRotation(p [][]complex64, theta float64) [][]complex64 {
	c := complex(float32(math.Cos(theta/2)), 0)
	s := complex(0, -float32(math.Sin(theta/2)))
	m := zeros(len(p))
	for i, row := range p {
		for j, v := range row {
			m[i][j] = s * v
		}
		m[i][i] += c
	}
	return m
}

// Controlled returns the gate that applies u to the trailing qubits when the leading qubit is 1.
func Controlled(u [][]complex64) [][]complex64 {
	n := len(u)
	m := zeros(2 * n)
	for i := range n {
		m[i][i] = 1
	}
	for i, row := range u {
		copy(m[n+i][n:], row)
	}
	return m
}

// Dagger returns the conjugate transpose of m.
func Dagger(m [][]complex64) [][]complex64 {
	d := zeros(len(m))
	for i, row := range m {
		for j, v := range row {
			d[j][i] = complex(real(v), -imag(v))
		}
	}
	return d
}

// kron returns the Kronecker product of a and b.
func kron(a, b [][]complex64) [][]complex64 {
	m := mat.M(a)
	m.Kron(mat.M(b))
	return m.Dense()
}
