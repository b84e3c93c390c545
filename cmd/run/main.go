package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fumin/tensor"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/fumin/qexpect"
	"github.com/fumin/qexpect/gates"
	"github.com/fumin/qexpect/store"
	"github.com/fumin/qexpect/util"
)

const (
	fnameStatistics = "statistics.txt"
	fnameCounts     = "counts.db"
	fnameState      = "state"

	batchSize = 1024
)

var (
	runDir     = flag.String("d", filepath.Join("runs", "qexpect"), "run directory")
	stateDir   = flag.String("state", "", "directory of a statetensor in COO format, overrides -builtin")
	builtin    = flag.String("builtin", "ghz", "builtin state: ghz, uniform or zero")
	numQubits  = flag.Int("n", 3, "number of qubits of the builtin state")
	observable = flag.String("observable", "", "JSON file of observable terms")
	ising      = flag.String("ising", "", "use the transverse field Ising Hamiltonian on an LxW lattice")
	field      = flag.Float64("h", 1, "transverse field of the Ising Hamiltonian")
	shots      = flag.Int("shots", 1000, "number of measurements")
	seed       = flag.Uint64("seed", 0, "random seed")
)

// Statistics are the results of a run.
type Statistics struct {
	NumQubits int
	Terms     []string
	Exact     float64
	// Sampled is absent if some term is not a product of single qubit Hermitian gates.
	Sampled *float64
	// MPS is absent if some term is not a product of single qubit gates.
	MPS   *float64
	Shots int
	Seed  uint64
}

// gateJSON is either a gate name or an object with a name and parameters.
type gateJSON struct {
	Name   string
	Params []float64
}

func (g *gateJSON) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &g.Name); err == nil {
		return nil
	}
	var obj struct {
		Name   string    `json:"name"`
		Params []float64 `json:"params"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return errors.Wrap(err, string(b))
	}
	g.Name, g.Params = obj.Name, obj.Params
	return nil
}

type termJSON struct {
	Pauli  string     `json:"pauli"`
	Gates  []gateJSON `json:"gates"`
	Qubits []int      `json:"qubits"`
	Coeff  *float64   `json:"coeff"`
}

func (tj termJSON) term(r gates.Registry) (qexpect.Term, error) {
	if tj.Pauli != "" {
		term, err := qexpect.ParsePauli(tj.Pauli)
		if err != nil {
			return qexpect.Term{}, errors.Wrap(err, "")
		}
		return term, nil
	}

	term := qexpect.Term{Qubits: tj.Qubits}
	for _, g := range tj.Gates {
		if len(g.Params) == 0 {
			term.Gates = append(term.Gates, gates.Named(g.Name))
			continue
		}
		p, err := r.Param(g.Name, g.Params...)
		if err != nil {
			return qexpect.Term{}, errors.Wrap(err, "")
		}
		term.Gates = append(term.Gates, p)
	}
	return term, nil
}

func readObservable(fpath string) ([]qexpect.Term, []float64, error) {
	b, err := os.ReadFile(fpath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	var tjs []termJSON
	if err := json.Unmarshal(b, &tjs); err != nil {
		return nil, nil, errors.Wrap(err, "")
	}

	terms := make([]qexpect.Term, 0, len(tjs))
	coefficients := make([]float64, 0, len(tjs))
	for i, tj := range tjs {
		if tj.Coeff == nil {
			return nil, nil, errors.Errorf("term %d has no coeff", i)
		}
		term, err := tj.term(gates.Default())
		if err != nil {
			return nil, nil, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		terms = append(terms, term)
		coefficients = append(coefficients, *tj.Coeff)
	}
	return terms, coefficients, nil
}

func parseLattice(s string) ([2]int, error) {
	var n [2]int
	strs := strings.Split(s, "x")
	if len(strs) != 2 {
		return n, errors.Errorf("%q is not of the form LxW", s)
	}
	for i, str := range strs {
		var err error
		n[i], err = strconv.Atoi(str)
		if err != nil {
			return n, errors.Wrap(err, s)
		}
		if n[i] <= 0 {
			return n, errors.Errorf("%q", s)
		}
	}
	return n, nil
}

func getState() (*tensor.Dense, error) {
	if *stateDir != "" {
		state, err := qexpect.ReadStatetensor(*stateDir)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return state, nil
	}

	if *numQubits <= 0 || *numQubits > qexpect.MaxQubits {
		return nil, errors.Errorf("%d qubits outside [1, %d]", *numQubits, qexpect.MaxQubits)
	}
	switch *builtin {
	case "ghz":
		return qexpect.GHZState(*numQubits), nil
	case "uniform":
		return qexpect.UniformState(*numQubits), nil
	case "zero":
		return qexpect.ZeroState(*numQubits), nil
	default:
		return nil, errors.Errorf("unknown builtin state %q", *builtin)
	}
}

func getObservable() ([]qexpect.Term, []float64, error) {
	switch {
	case *ising != "":
		n, err := parseLattice(*ising)
		if err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		terms, coefficients := qexpect.TransverseFieldIsing(n, *field)
		return terms, coefficients, nil
	case *observable != "":
		terms, coefficients, err := readObservable(*observable)
		if err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		return terms, coefficients, nil
	default:
		return nil, nil, errors.Errorf("neither -ising nor -observable given")
	}
}

func checkRange(terms []qexpect.Term, n int) error {
	for i, term := range terms {
		for _, q := range term.Qubits {
			if q >= n {
				return errors.Errorf("term %d %v acts on qubit %d of a %d qubit state", i, term, q, n)
			}
		}
	}
	return nil
}

func sample(ctx context.Context, counts *store.Counts, src rand.Source, state *tensor.Dense, m int) error {
	throttler := util.NewSkipThrottler(time.Second)
	for done := 0; done < m; {
		b := min(batchSize, m-done)
		bitstrings, err := qexpect.SampleBitstrings(src, state, b)
		if err != nil {
			return errors.Wrap(err, "")
		}
		if err := counts.Add(ctx, bitstrings); err != nil {
			return errors.Wrap(err, "")
		}
		done += b

		if throttler.Ok() {
			log.Printf("sampled %d/%d", done, m)
		}
	}
	return nil
}

func writeStatistics(dir string, stats Statistics) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(filepath.Join(dir, fnameStatistics), b, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	ctx := context.Background()
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	state, err := getState()
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := qexpect.WriteStatetensor(filepath.Join(*runDir, fnameState), state); err != nil {
		return errors.Wrap(err, "")
	}
	terms, coefficients, err := getObservable()
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := checkRange(terms, qexpect.NumQubits(state)); err != nil {
		return errors.Wrap(err, "")
	}

	stats := Statistics{NumQubits: qexpect.NumQubits(state), Shots: *shots, Seed: *seed}
	for _, term := range terms {
		stats.Terms = append(stats.Terms, term.String())
	}

	exact, err := qexpect.Expectation(terms, coefficients)
	if err != nil {
		return errors.Wrap(err, "")
	}
	stats.Exact = exact(state)
	log.Printf("exact %f", stats.Exact)

	if product, err := qexpect.ProductExpectation(terms, coefficients); err != nil {
		log.Printf("skipping MPS: %v", err)
	} else {
		v := product(state)
		stats.MPS = &v
		log.Printf("mps %f", v)
	}

	src := rand.NewSource(*seed)
	if *shots > 0 {
		if sampled, err := qexpect.SampledExpectation(terms, coefficients); err != nil {
			log.Printf("skipping sampled expectation: %v", err)
		} else {
			v, err := sampled(src, state, *shots)
			if err != nil {
				return errors.Wrap(err, "")
			}
			stats.Sampled = &v
			log.Printf("sampled %f", v)
		}
	}

	counts, err := store.NewCounts(filepath.Join(*runDir, fnameCounts))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer counts.Close()
	if err := sample(ctx, counts, src, state, *shots); err != nil {
		return errors.Wrap(err, "")
	}

	if err := writeStatistics(*runDir, stats); err != nil {
		return errors.Wrap(err, "")
	}

	all, err := counts.All(ctx)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("bitstring,count\n")
	for _, c := range all {
		fmt.Printf("%s,%d\n", c.Bitstring, c.N)
	}
	return nil
}
