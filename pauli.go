package qexpect

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/fumin/qexpect/gates"
)

// ParsePauli parses a Pauli string such as "X0 Y1 Z3" into a Term.
func ParsePauli(s string) (Term, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Term{}, errors.Errorf("empty Pauli string")
	}

	term := Term{Gates: make([]gates.Spec, 0, len(fields)), Qubits: make([]int, 0, len(fields))}
	for _, f := range fields {
		switch f[0] {
		case 'I', 'X', 'Y', 'Z':
		default:
			return Term{}, errors.Errorf("%q is not a Pauli operator in %q", f, s)
		}
		q, err := strconv.Atoi(f[1:])
		if err != nil {
			return Term{}, errors.Wrap(err, s)
		}
		term.Gates = append(term.Gates, gates.Named(f[:1]))
		term.Qubits = append(term.Qubits, q)
	}
	if err := checkQubits(term.Qubits); err != nil {
		return Term{}, errors.Wrap(err, s)
	}
	return term, nil
}
