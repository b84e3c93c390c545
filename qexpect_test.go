package qexpect

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"slices"
	"testing"

	"github.com/fumin/tensor"
	"golang.org/x/exp/rand"

	"github.com/fumin/qexpect/gates"
)

func TestGateTensor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		specs []gates.Spec
		shape []int
		// elements maps a multi-index to its nonzero value.
		elements map[[4]int]complex64
	}{
		{
			specs:    []gates.Spec{gates.Named("Z"), gates.Named("X")},
			shape:    []int{2, 2, 2, 2},
			elements: map[[4]int]complex64{{0, 0, 0, 1}: 1, {0, 1, 0, 0}: 1, {1, 0, 1, 1}: -1, {1, 1, 1, 0}: -1},
		},
		{
			specs:    []gates.Spec{gates.Named("CX")},
			shape:    []int{2, 2, 2, 2},
			elements: map[[4]int]complex64{{0, 0, 0, 0}: 1, {0, 1, 0, 1}: 1, {1, 1, 1, 0}: 1, {1, 0, 1, 1}: 1},
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.specs), func(t *testing.T) {
			t.Parallel()
			g, err := GateTensor(gates.Default(), test.specs)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if !slices.Equal(g.Shape(), test.shape) {
				t.Fatalf("%v, expected %v", g.Shape(), test.shape)
			}
			for ijk := range g.All() {
				var idx [4]int
				copy(idx[:], ijk)
				if v := g.At(ijk...); v != test.elements[idx] {
					t.Fatalf("%v %v, expected %v", ijk, v, test.elements[idx])
				}
			}
		})
	}
}

func TestGateTensorError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		specs []gates.Spec
	}{
		{specs: nil},
		{specs: []gates.Spec{gates.Named("NOPE")}},
		{specs: []gates.Spec{gates.Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}},
		{specs: []gates.Spec{gates.Parametric{Name: "nil"}}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.specs), func(t *testing.T) {
			t.Parallel()
			if _, err := GateTensor(gates.Default(), test.specs); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestApplyGate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		gates  []gates.Spec
		qubits []int
		in     int
		out    int
	}{
		// X on qubit 1 of |000> gives |010>.
		{gates: []gates.Spec{gates.Named("X")}, qubits: []int{1}, in: 0b000, out: 0b010},
		// Control on qubit 2, target on qubit 0.
		{gates: []gates.Spec{gates.Named("CX")}, qubits: []int{2, 0}, in: 0b001, out: 0b101},
		{gates: []gates.Spec{gates.Named("CX")}, qubits: []int{2, 0}, in: 0b100, out: 0b100},
		{gates: []gates.Spec{gates.Named("SWAP")}, qubits: []int{0, 2}, in: 0b100, out: 0b001},
		{gates: []gates.Spec{gates.Named("X"), gates.Named("X")}, qubits: []int{2, 1}, in: 0b000, out: 0b011},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v %b", test.gates, test.qubits, test.in), func(t *testing.T) {
			t.Parallel()
			g, err := GateTensor(gates.Default(), test.gates)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			amps := make([]complex64, 8)
			amps[test.in] = 1
			state, err := NewStatetensor(amps)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			out := Amplitudes(ApplyGate(g, test.qubits, state))
			expected := make([]complex64, 8)
			expected[test.out] = 1
			if !slices.Equal(out, expected) {
				t.Fatalf("%v, expected %v", out, expected)
			}
			if !slices.Equal(Amplitudes(state), amps) {
				t.Fatalf("state modified %v", Amplitudes(state))
			}
		})
	}
}

func TestSingleExpectation(t *testing.T) {
	t.Parallel()
	bell := mustState([]complex64{complex(float32(1/math.Sqrt2), 0), 0, 0, complex(float32(1/math.Sqrt2), 0)})
	plusI := mustState([]complex64{complex(float32(1/math.Sqrt2), 0), complex(0, float32(1/math.Sqrt2))})
	tests := []struct {
		gates  []gates.Spec
		qubits []int
		state  *tensor.Dense
		v      float64
	}{
		{gates: []gates.Spec{gates.Named("Z"), gates.Named("Z")}, qubits: []int{0, 1}, state: bell, v: 1},
		{gates: []gates.Spec{gates.Named("Z")}, qubits: []int{0}, state: bell, v: 0},
		{gates: []gates.Spec{gates.Named("X"), gates.Named("X")}, qubits: []int{1, 0}, state: bell, v: 1},
		{gates: []gates.Spec{gates.Named("Y"), gates.Named("Y")}, qubits: []int{0, 1}, state: bell, v: -1},
		{gates: []gates.Spec{gates.Named("I"), gates.Named("I")}, qubits: []int{0, 1}, state: bell, v: 1},
		{gates: []gates.Spec{gates.Named("Y")}, qubits: []int{0}, state: plusI, v: 1},
		{gates: []gates.Spec{gates.Named("Z"), gates.Named("Z"), gates.Named("Z")}, qubits: []int{0, 2, 4}, state: GHZState(5), v: 0},
		{gates: []gates.Spec{gates.Named("Z"), gates.Named("Z")}, qubits: []int{1, 3}, state: GHZState(5), v: 1},
		{gates: []gates.Spec{gates.Named("X")}, qubits: []int{2}, state: UniformState(3), v: 1},
		{gates: []gates.Spec{gates.Named("Z")}, qubits: []int{2}, state: ZeroState(3), v: 1},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v", test.gates, test.qubits), func(t *testing.T) {
			t.Parallel()
			g, err := GateTensor(gates.Default(), test.gates)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			f, err := SingleExpectation(g, test.qubits)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if v := f(test.state); math.Abs(v-test.v) > 1e-5 {
				t.Fatalf("%f, expected %f", v, test.v)
			}
		})
	}
}

func TestSingleExpectationError(t *testing.T) {
	t.Parallel()
	zz, err := GateTensor(gates.Default(), []gates.Spec{gates.Named("Z"), gates.Named("Z")})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	tests := []struct {
		name   string
		gate   *tensor.Dense
		qubits []int
	}{
		{name: "rank", gate: zz, qubits: []int{0}},
		{name: "duplicate", gate: zz, qubits: []int{1, 1}},
		{name: "negative", gate: zz, qubits: []int{-1, 0}},
		{name: "nonbinary", gate: tensor.Zeros(3, 3), qubits: []int{0}},
		{name: "scalar", gate: tensor.Zeros(1), qubits: []int{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if _, err := SingleExpectation(test.gate, test.qubits); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSingleExpectationPanic(t *testing.T) {
	t.Parallel()
	z, err := GateTensor(gates.Default(), []gates.Spec{gates.Named("Z")})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	f, err := SingleExpectation(z, []int{3})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic")
		}
	}()
	f(ZeroState(2))
}

func TestHermitian(t *testing.T) {
	t.Parallel()
	// <0|S|0> = 1 and <1|S|1> = i, whose real part 0 is kept.
	s := []Term{{Gates: []gates.Spec{gates.Named("S")}, Qubits: []int{0}}}
	one := mustState([]complex64{0, 1})

	f, err := Expectation(s, []float64{1})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v := f(one); math.Abs(v) > 1e-6 {
		t.Fatalf("%f", v)
	}

	if _, err := Expectation(s, []float64{1}, NewOptions().CheckHermitian(1e-6)); err == nil {
		t.Fatalf("expected non Hermitian error")
	}
	zz := []Term{{Gates: []gates.Spec{gates.Named("Z"), gates.Named("Y")}, Qubits: []int{0, 1}}}
	if _, err := Expectation(zz, []float64{1}, NewOptions().CheckHermitian(1e-6)); err != nil {
		t.Fatalf("%+v", err)
	}
}

func TestExpectation(t *testing.T) {
	t.Parallel()
	z0 := Term{Gates: []gates.Spec{gates.Named("Z")}, Qubits: []int{0}}
	x1 := Term{Gates: []gates.Spec{gates.Named("X")}, Qubits: []int{1}}
	zz := Term{Gates: []gates.Spec{gates.Named("Z"), gates.Named("Z")}, Qubits: []int{0, 1}}
	tests := []struct {
		terms        []Term
		coefficients []float64
		state        *tensor.Dense
		v            float64
	}{
		{terms: []Term{}, coefficients: []float64{}, state: GHZState(2), v: 0},
		{terms: []Term{zz}, coefficients: []float64{2.5}, state: GHZState(2), v: 2.5},
		{terms: []Term{z0, x1, zz}, coefficients: []float64{1, -3, 0.5}, state: ZeroState(2), v: 1.5},
		{terms: []Term{x1, x1}, coefficients: []float64{1, 1}, state: UniformState(2), v: 2},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v", test.terms, test.coefficients), func(t *testing.T) {
			t.Parallel()
			f, err := Expectation(test.terms, test.coefficients)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if v := f(test.state); math.Abs(v-test.v) > 1e-5 {
				t.Fatalf("%f, expected %f", v, test.v)
			}
		})
	}
}

func TestExpectationError(t *testing.T) {
	t.Parallel()
	z0 := Term{Gates: []gates.Spec{gates.Named("Z")}, Qubits: []int{0}}
	tests := []struct {
		name         string
		terms        []Term
		coefficients []float64
		options      []Options
	}{
		{name: "length", terms: []Term{z0}, coefficients: []float64{1, 2}},
		{name: "unknown", terms: []Term{{Gates: []gates.Spec{gates.Named("W")}, Qubits: []int{0}}}, coefficients: []float64{1}},
		{name: "qubits", terms: []Term{{Gates: []gates.Spec{gates.Named("CX")}, Qubits: []int{0}}}, coefficients: []float64{1}},
		{name: "duplicate", terms: []Term{{Gates: []gates.Spec{gates.Named("Z"), gates.Named("Z")}, Qubits: []int{0, 0}}}, coefficients: []float64{1}},
		{name: "registry", terms: []Term{z0}, coefficients: []float64{1}, options: []Options{NewOptions().Registry(mustRegistry(t, map[string][][]complex64{"A": gates.X}))}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Expectation(test.terms, test.coefficients, test.options...); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestExpectationRegistry(t *testing.T) {
	t.Parallel()
	r := mustRegistry(t, map[string][][]complex64{"NOT": gates.X})
	terms := []Term{{Gates: []gates.Spec{gates.Named("NOT")}, Qubits: []int{0}}}
	f, err := Expectation(terms, []float64{1}, NewOptions().Registry(r))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v := f(UniformState(1)); math.Abs(v-1) > 1e-6 {
		t.Fatalf("%f", v)
	}
}

func TestExpectationLinearity(t *testing.T) {
	t.Parallel()
	terms := []Term{
		{Gates: []gates.Spec{gates.Named("Z"), gates.Named("Z")}, Qubits: []int{0, 2}},
		{Gates: []gates.Spec{gates.Named("X")}, Qubits: []int{1}},
		{Gates: []gates.Spec{gates.Named("Y"), gates.Named("X")}, Qubits: []int{2, 0}},
		{Gates: []gates.Spec{gates.Named("CX")}, Qubits: []int{1, 0}},
	}
	coefficients := []float64{0.3, -1.7, 2.1, 0.9}
	state := randomState(rand.New(rand.NewSource(0)), 3)

	f, err := Expectation(terms, coefficients)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var sum float64
	for i, term := range terms {
		fi, err := Expectation([]Term{term}, []float64{1})
		if err != nil {
			t.Fatalf("%+v", err)
		}
		sum += float64(coefficients[i] * fi(state))
	}
	if v := f(state); v != sum {
		t.Fatalf("%v, expected %v", v, sum)
	}
}

func TestExpectationNotMutated(t *testing.T) {
	t.Parallel()
	state := randomState(rand.New(rand.NewSource(1)), 3)
	before := Amplitudes(state)
	terms := []Term{{Gates: []gates.Spec{gates.Named("H"), gates.Named("CZ")}, Qubits: []int{2, 0, 1}}}
	coefficients := []float64{1}
	f, err := Expectation(terms, coefficients)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	v0, v1 := f(state), f(state)
	if v0 != v1 {
		t.Fatalf("%v %v", v0, v1)
	}
	if !slices.Equal(Amplitudes(state), before) {
		t.Fatalf("state modified")
	}
	coefficients[0] = 100
	if v := f(state); v != v0 {
		t.Fatalf("%v %v", v, v0)
	}
}

func TestExpectationParametric(t *testing.T) {
	t.Parallel()
	// Rz(theta) on |+> rotates it in the XY plane, so <X> = cos(theta).
	theta := 0.7
	rz, err := gates.Default().Param("Rz", theta)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	g, err := GateTensor(gates.Default(), []gates.Spec{rz})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	rotated := ApplyGate(g, []int{0}, UniformState(1))

	x := []Term{{Gates: []gates.Spec{gates.Named("X")}, Qubits: []int{0}}}
	f, err := Expectation(x, []float64{1})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v := f(rotated); math.Abs(v-math.Cos(theta)) > 1e-5 {
		t.Fatalf("%f, expected %f", v, math.Cos(theta))
	}
}

func TestExpectationNameSeparator(t *testing.T) {
	t.Parallel()
	// "Z X" is a single gate X⊗Z, distinct from the two gates Z and X.
	r := mustRegistry(t, map[string][][]complex64{
		"Z": gates.Z,
		"X": gates.X,
		"Z X": {
			{0, 0, 1, 0},
			{0, 0, 0, -1},
			{1, 0, 0, 0},
			{0, -1, 0, 0},
		},
	})
	zx := Term{Gates: []gates.Spec{gates.Named("Z"), gates.Named("X")}, Qubits: []int{0, 1}}
	joined := Term{Gates: []gates.Spec{gates.Named("Z X")}, Qubits: []int{0, 1}}
	// |1>|+>
	state := mustState([]complex64{0, 0, complex(float32(1/math.Sqrt2), 0), complex(float32(1/math.Sqrt2), 0)})

	tests := []struct {
		terms        []Term
		coefficients []float64
		v            float64
	}{
		{terms: []Term{zx}, coefficients: []float64{1}, v: -1},
		{terms: []Term{joined}, coefficients: []float64{1}, v: 0},
		{terms: []Term{zx, joined}, coefficients: []float64{1, 1}, v: -1},
		{terms: []Term{joined, zx}, coefficients: []float64{1, 1}, v: -1},
		{terms: []Term{zx, joined}, coefficients: []float64{0, 1}, v: 0},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v", test.terms, test.coefficients), func(t *testing.T) {
			t.Parallel()
			f, err := Expectation(test.terms, test.coefficients, NewOptions().Registry(r))
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if v := f(state); math.Abs(v-test.v) > 1e-5 {
				t.Fatalf("%f, expected %f", v, test.v)
			}
		})
	}
}

func TestMaxQubits(t *testing.T) {
	t.Parallel()
	if _, err := NewStatetensor(make([]complex64, 1<<(MaxQubits+1))); err == nil {
		t.Fatalf("expected error for %d qubits", MaxQubits+1)
	}

	wide := make([]gates.Spec, 0)
	for range MaxQubits/2 + 1 {
		wide = append(wide, gates.Named("Z"))
	}
	if _, err := GateTensor(gates.Default(), wide); err == nil {
		t.Fatalf("expected error for %d gates", len(wide))
	}
	if _, err := GateTensor(gates.Default(), wide[1:]); err != nil {
		t.Fatalf("%+v", err)
	}
	qubits := make([]int, len(wide))
	for i := range qubits {
		qubits[i] = i
	}
	if _, err := SampledExpectation([]Term{{Gates: wide, Qubits: qubits}}, []float64{1}); err == nil {
		t.Fatalf("expected error for %d qubits", len(qubits))
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic")
		}
	}()
	ZeroState(MaxQubits + 1)
}

func TestTermString(t *testing.T) {
	t.Parallel()
	x := Term{Gates: []gates.Spec{gates.Matrix(gates.X)}, Qubits: []int{0}}
	z := Term{Gates: []gates.Spec{gates.Matrix(gates.Z)}, Qubits: []int{0}}
	if x.String() == z.String() {
		t.Fatalf("%s %s", x, z)
	}
	zz := Term{Gates: []gates.Spec{gates.Named("Z"), gates.Named("Z")}, Qubits: []int{0, 3}}
	if s := zz.String(); s != "Z,Z[0 3]" {
		t.Fatalf("%s", s)
	}
}

func mustRegistry(t *testing.T, fixed map[string][][]complex64) gates.Registry {
	r, err := gates.NewRegistry(fixed, nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return r
}

func randomState(rng *rand.Rand, n int) *tensor.Dense {
	amps := make([]complex64, 1<<n)
	var norm float64
	for i := range amps {
		amps[i] = complex(float32(rng.NormFloat64()), float32(rng.NormFloat64()))
		norm += math.Pow(cmplx.Abs(complex128(amps[i])), 2)
	}
	scale := complex(float32(1/math.Sqrt(norm)), 0)
	for i := range amps {
		amps[i] *= scale
	}
	return mustState(amps)
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
