package evolve

import (
	"fmt"
)

// MaxFormulaAssociations bounds the association table copied into a single
// formula.
const MaxFormulaAssociations = 16

type operation int

const (
	opLinear    operation = iota // slope*x + bias
	opInverse                    // slope*x - bias
	opModulo                     // (slope*x) mod aux + bias
	opQuadratic                  // slope*x*x + bias
)

func (op operation) name() string {
	switch op {
	case opLinear:
		return "linear"
	case opInverse:
		return "inverse"
	case opModulo:
		return "modulo"
	case opQuadratic:
		return "quadratic"
	}
	return "unknown"
}

// Formula is the evolvable unit: one gene plus its score state and any
// associations copied in at the last tick.
type Formula struct {
	Gene         Gene
	Fitness      float64
	Feedback     float64
	Associations []Association
}

// rule is the decoded arithmetic form of a gene. Digit offsets are fixed:
// operation at 0, slope at 1..3, bias at 4..6, auxiliary at 7..9.
type rule struct {
	op    operation
	slope int
	bias  int
	aux   int
}

func (f *Formula) decodeRule() (rule, error) {
	var r rule
	var err error
	if r.op, err = f.Gene.decodeOperation(0); err != nil {
		return r, err
	}
	if r.slope, err = f.Gene.decodeSigned(1); err != nil {
		return r, err
	}
	if r.bias, err = f.Gene.decodeSigned(4); err != nil {
		return r, err
	}
	if r.aux, err = f.Gene.decodeSigned(7); err != nil {
		return r, err
	}
	return r, nil
}

// predict evaluates the numeric rule, saturating at int32 bounds the way
// the arithmetic domain is defined.
func (f *Formula) predict(input int) (int, error) {
	r, err := f.decodeRule()
	if err != nil {
		return 0, err
	}
	var result int64
	x := int64(input)
	slope := int64(r.slope)
	bias := int64(r.bias)
	switch r.op {
	case opLinear:
		result = slope*x + bias
	case opInverse:
		result = slope*x - bias
	case opModulo:
		divisor := int64(r.aux)
		if divisor == 0 {
			divisor = 1
		}
		result = (slope*x)%divisor + bias
	case opQuadratic:
		result = slope*x*x + bias
	default:
		result = bias
	}
	if result > 2147483647 {
		result = 2147483647
	}
	if result < -2147483648 {
		result = -2147483648
	}
	return int(result), nil
}

// Apply answers a query: an exact association hash match wins, otherwise
// the numeric rule runs. Errors only on a malformed gene layout, which can
// happen for migrated genes and must not panic.
func (f *Formula) Apply(input int) (int, error) {
	for i := range f.Associations {
		if f.Associations[i].InputHash == input {
			return f.Associations[i].OutputHash, nil
		}
	}
	return f.predict(input)
}

// LookupAnswer returns the verbatim answer text for an exact input-hash
// match, if any.
func (f *Formula) LookupAnswer(inputHash int) (string, bool) {
	for i := range f.Associations {
		if f.Associations[i].InputHash == inputHash {
			return f.Associations[i].Answer, true
		}
	}
	return "", false
}

// Describe renders a one-line human summary of the formula.
func (f *Formula) Describe() string {
	if len(f.Associations) > 0 {
		a := &f.Associations[0]
		return fmt.Sprintf("associations=%d sample: %q -> %q fitness=%.6f",
			len(f.Associations), a.Question, a.Answer, f.Fitness)
	}
	r, err := f.decodeRule()
	if err != nil {
		return fmt.Sprintf("gene=%s fitness=%.6f", f.Gene.String(), f.Fitness)
	}
	return fmt.Sprintf("type=%s k=%d b=%d aux=%d fitness=%.6f",
		r.op.name(), r.slope, r.bias, r.aux, f.Fitness)
}

// Digits returns the gene's digit values, the form that travels in a
// MIGRATE_RULE payload.
func (f *Formula) Digits() []uint8 {
	return f.Gene.Digits()
}

func (f *Formula) complexityPenalty() float64 {
	penalty := 0.0
	for _, d := range f.Gene.Digits() {
		if d != 0 {
			penalty += 0.001 * float64(d)
		}
	}
	return penalty
}
