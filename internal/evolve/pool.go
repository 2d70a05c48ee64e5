package evolve

import (
	"errors"
	"sort"
)

const (
	// PoolCapacity is the constant population size.
	PoolCapacity = 24
	// MaxExamples bounds the taught numeric example buffer.
	MaxExamples = 64
	// MaxPoolAssociations bounds the pool-level association table.
	MaxPoolAssociations = 64

	// fitness forced onto formulas that carry the association table
	associationFitness = 1.0
)

var (
	ErrExamplesFull    = errors.New("evolve: example buffer full")
	ErrFormulaNotFound = errors.New("evolve: gene no longer in population")
)

type example struct {
	input  int
	target int
}

// Pool is a fixed-population set of candidate formulas. The population
// size never changes for the pool's lifetime; reproduction rewrites gene
// content in place. After every Tick and every Feedback the slice is
// ordered best-first.
type Pool struct {
	formulas     []Formula
	examples     []example
	associations []Association
	rng          *RNG
}

// NewPool seeds the generator and fills every slot with an independently
// randomized gene. Equal seeds produce identical pools.
func NewPool(seed uint64) *Pool {
	p := &Pool{
		formulas:     make([]Formula, PoolCapacity),
		examples:     make([]example, 0, MaxExamples),
		associations: make([]Association, 0, MaxPoolAssociations),
		rng:          NewRNG(seed),
	}
	for i := range p.formulas {
		p.formulas[i].Gene = randomGene(p.rng)
	}
	return p
}

func (p *Pool) Count() int            { return len(p.formulas) }
func (p *Pool) ExampleCount() int     { return len(p.examples) }
func (p *Pool) AssociationCount() int { return len(p.associations) }

// AddExample appends a numeric (input, target) pair. The buffer is a hard
// bound: once full the caller has to evolve or clear before teaching more.
func (p *Pool) AddExample(input, target int) error {
	if len(p.examples) >= MaxExamples {
		return ErrExamplesFull
	}
	p.examples = append(p.examples, example{input: input, target: target})
	return nil
}

// ClearExamples drops all taught examples and pool associations.
func (p *Pool) ClearExamples() {
	p.examples = p.examples[:0]
	p.associations = p.associations[:0]
}

// AddAssociation teaches a verbatim question->answer pair. A repeated
// question overwrites in place; a full table evicts the oldest entry. The
// pair's text hashes are also registered as a numeric example so symbolic
// knowledge exerts evolutionary pressure too.
func (p *Pool) AddAssociation(question, answer, source string, timestamp uint64) error {
	assoc := newAssociation(question, answer, source, timestamp)
	for i := range p.associations {
		if p.associations[i].InputHash == assoc.InputHash && p.associations[i].Question == assoc.Question {
			p.associations[i] = assoc
			return p.AddExample(assoc.InputHash, assoc.OutputHash)
		}
	}
	if len(p.associations) >= MaxPoolAssociations {
		copy(p.associations, p.associations[1:])
		p.associations[len(p.associations)-1] = assoc
	} else {
		p.associations = append(p.associations, assoc)
	}
	return p.AddExample(assoc.InputHash, assoc.OutputHash)
}

// evaluate scores one formula against the whole example set: the sum of
// absolute errors plus a small complexity penalty over nonzero digits, a
// minimum-description-length pressure against busy genomes.
func (p *Pool) evaluate(f *Formula) float64 {
	if len(p.examples) == 0 {
		return 0
	}
	totalErr := 0.0
	for _, ex := range p.examples {
		prediction, err := f.predict(ex.input)
		if err != nil {
			return 0
		}
		diff := float64(ex.target - prediction)
		if diff < 0 {
			diff = -diff
		}
		totalErr += diff
	}
	return 1.0 / (1.0 + totalErr + f.complexityPenalty())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (p *Pool) sortByFitness() {
	sort.SliceStable(p.formulas, func(i, j int) bool {
		return p.formulas[i].Fitness > p.formulas[j].Fitness
	})
}

// Tick runs the generational loop: score, rank, reproduce. A zero count
// means one generation. After the last generation any taught associations
// are copied into the top three formulas, whose fitness is forced to the
// perfect-match value so symbolic knowledge outranks numeric fit.
func (p *Pool) Tick(generations int) {
	if generations <= 0 {
		generations = 1
	}
	for g := 0; g < generations; g++ {
		for i := range p.formulas {
			p.formulas[i].Fitness = clamp01(p.evaluate(&p.formulas[i]) + p.formulas[i].Feedback)
		}
		p.sortByFitness()
		p.reproduce()
	}
	if len(p.associations) > 0 {
		limit := 3
		if len(p.formulas) < limit {
			limit = len(p.formulas)
		}
		for i := 0; i < limit; i++ {
			p.formulas[i].Associations = append([]Association(nil), p.associations...)
			if len(p.formulas[i].Associations) > MaxFormulaAssociations {
				p.formulas[i].Associations = p.formulas[i].Associations[:MaxFormulaAssociations]
			}
			p.formulas[i].Fitness = associationFitness
		}
		p.sortByFitness()
	}
}

// reproduce keeps the top third verbatim and rebuilds every other slot
// from two elite parents: midpoint crossover then one random single-digit
// mutation. Children start with clean score state.
func (p *Pool) reproduce() {
	elite := len(p.formulas) / 3
	if elite == 0 {
		elite = 1
	}
	for i := elite; i < len(p.formulas); i++ {
		parentA := &p.formulas[i%elite].Gene
		parentB := &p.formulas[(i+1)%elite].Gene
		child := crossover(parentA, parentB)
		p.mutate(&child)
		p.formulas[i].Gene = child
		p.formulas[i].Fitness = 0
		p.formulas[i].Feedback = 0
		p.formulas[i].Associations = nil
	}
}

func crossover(parentA, parentB *Gene) Gene {
	var child Gene
	child.length = parentA.length
	split := parentA.length / 2
	for i := 0; i < child.length; i++ {
		if i < split {
			child.digits[i] = parentA.digits[i]
		} else {
			child.digits[i] = parentB.digits[i]
		}
	}
	return child
}

func (p *Pool) mutate(g *Gene) {
	if g.length == 0 {
		return
	}
	idx := int(p.rng.Next() % uint64(g.length))
	g.digits[idx] = p.rng.digit()
}

// Best returns the current rank-0 formula.
func (p *Pool) Best() *Formula {
	if len(p.formulas) == 0 {
		return nil
	}
	return &p.formulas[0]
}

// Feedback applies user reinforcement to the formula whose gene exactly
// matches. The feedback accumulator clamps to [-1,1] and fitness to [0,1];
// ordering is then repaired by bubbling the formula in the direction the
// delta implies rather than a full re-sort. Returns ErrFormulaNotFound if
// the gene was already replaced by reproduction, in which case the
// caller's answer is stale and should be re-asked.
func (p *Pool) Feedback(gene Gene, delta float64) error {
	for i := range p.formulas {
		if !p.formulas[i].Gene.Equal(gene) {
			continue
		}
		f := &p.formulas[i]
		f.Feedback += delta
		if f.Feedback > 1 {
			f.Feedback = 1
		}
		if f.Feedback < -1 {
			f.Feedback = -1
		}
		f.Fitness = clamp01(f.Fitness + delta)

		idx := i
		if delta > 0 {
			for idx > 0 && p.formulas[idx].Fitness > p.formulas[idx-1].Fitness {
				p.formulas[idx], p.formulas[idx-1] = p.formulas[idx-1], p.formulas[idx]
				idx--
			}
		} else if delta < 0 {
			for idx+1 < len(p.formulas) && p.formulas[idx].Fitness < p.formulas[idx+1].Fitness {
				p.formulas[idx], p.formulas[idx+1] = p.formulas[idx+1], p.formulas[idx]
				idx++
			}
		}
		return nil
	}
	return ErrFormulaNotFound
}

// Fold adopts a migrated gene into the population by replacing the worst
// slot, so a peer's best rule competes from the next tick onward.
func (p *Pool) Fold(gene Gene, fitness float64) {
	if len(p.formulas) == 0 {
		return
	}
	last := len(p.formulas) - 1
	p.formulas[last] = Formula{Gene: gene, Fitness: clamp01(fitness)}
	p.sortByFitness()
}
