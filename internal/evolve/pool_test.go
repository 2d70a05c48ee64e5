package evolve

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teachLine(t *testing.T, p *Pool) {
	t.Helper()
	// f(x) = 2x + 1
	for x, y := range map[int]int{0: 1, 1: 3, 2: 5, 3: 7} {
		require.NoError(t, p.AddExample(x, y))
	}
}

func TestDeterminism(t *testing.T) {
	a := NewPool(20250923)
	b := NewPool(20250923)

	for _, p := range []*Pool{a, b} {
		require.NoError(t, p.AddExample(0, 1))
		require.NoError(t, p.AddExample(1, 3))
		require.NoError(t, p.AddExample(2, 5))
		require.NoError(t, p.AddExample(3, 7))
		p.Tick(32)
		p.Tick(32)
	}

	require.True(t, a.Best().Gene.Equal(b.Best().Gene),
		"same seed and same call sequence must give identical best genes")
	assert.Equal(t, a.Best().Fitness, b.Best().Fitness)
}

func TestSeedChangesPopulation(t *testing.T) {
	a := NewPool(1)
	b := NewPool(2)
	assert.False(t, a.Best().Gene.Equal(b.Best().Gene))
}

func TestConvergenceOnLine(t *testing.T) {
	p := NewPool(20250923)
	teachLine(t, p)

	before, err := p.Best().Apply(4)
	require.NoError(t, err)
	errBefore := abs(before - 9)

	p.Tick(128)

	after, err := p.Best().Apply(4)
	require.NoError(t, err)
	errAfter := abs(after - 9)

	assert.LessOrEqual(t, errAfter, errBefore, "evolution must not make the answer worse")
	assert.Greater(t, p.Best().Fitness, 0.0)
}

func TestPopulationSizeConstant(t *testing.T) {
	p := NewPool(7)
	teachLine(t, p)
	for i := 0; i < 10; i++ {
		p.Tick(1)
		assert.Equal(t, PoolCapacity, p.Count())
	}
}

func TestExampleBufferBound(t *testing.T) {
	p := NewPool(1)
	for i := 0; i < MaxExamples; i++ {
		require.NoError(t, p.AddExample(i, i))
	}
	assert.ErrorIs(t, p.AddExample(1, 1), ErrExamplesFull)

	p.ClearExamples()
	assert.Equal(t, 0, p.ExampleCount())
	require.NoError(t, p.AddExample(1, 1))
}

func TestAssociationLookupWinsOverNumeric(t *testing.T) {
	p := NewPool(42)
	require.NoError(t, p.AddAssociation("столица франции", "париж", "user", 100))
	p.Tick(1)

	best := p.Best()
	require.NotEmpty(t, best.Associations)
	assert.Equal(t, associationFitness, best.Fitness)

	got, err := best.Apply(HashText("столица франции"))
	require.NoError(t, err)
	assert.Equal(t, HashText("париж"), got)

	answer, ok := best.LookupAnswer(HashText("столица франции"))
	require.True(t, ok)
	assert.Equal(t, "париж", answer)

	_, ok = best.LookupAnswer(HashText("другой вопрос"))
	assert.False(t, ok)
}

func TestAssociationUpdateInPlace(t *testing.T) {
	p := NewPool(42)
	require.NoError(t, p.AddAssociation("q", "first", "user", 1))
	require.NoError(t, p.AddAssociation("q", "second", "user", 2))
	assert.Equal(t, 1, p.AssociationCount())

	p.Tick(1)
	answer, ok := p.Best().LookupAnswer(HashText("q"))
	require.True(t, ok)
	assert.Equal(t, "second", answer)
}

func TestAssociationFIFOEviction(t *testing.T) {
	p := NewPool(42)
	for i := 0; i < MaxPoolAssociations; i++ {
		err := p.AddAssociation(fmt.Sprintf("q%d", i), "a", "user", uint64(i))
		require.NoError(t, err)
	}
	assert.Equal(t, MaxPoolAssociations, p.AssociationCount())

	// Table is full and so is the example buffer: the association is still
	// stored (oldest evicted) but the example registration reports Full.
	err := p.AddAssociation("newest", "a", "user", 999)
	assert.ErrorIs(t, err, ErrExamplesFull)
	assert.Equal(t, MaxPoolAssociations, p.AssociationCount())
	assert.Equal(t, "q1", p.associations[0].Question)
	assert.Equal(t, "newest", p.associations[MaxPoolAssociations-1].Question)
}

func TestFeedbackBounds(t *testing.T) {
	p := NewPool(9)
	teachLine(t, p)
	p.Tick(4)

	gene := p.Best().Gene
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Feedback(gene, 0.5))
	}
	f := findByGene(t, p, gene)
	assert.LessOrEqual(t, f.Fitness, 1.0)
	assert.LessOrEqual(t, f.Feedback, 1.0)

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Feedback(gene, -0.5))
	}
	f = findByGene(t, p, gene)
	assert.GreaterOrEqual(t, f.Fitness, 0.0)
	assert.GreaterOrEqual(t, f.Feedback, -1.0)
}

func TestFeedbackMovesFormulaUp(t *testing.T) {
	p := NewPool(9)
	teachLine(t, p)
	p.Tick(4)

	last := &p.formulas[p.Count()-1]
	gene := last.Gene
	require.NoError(t, p.Feedback(gene, 1.0))
	// with max positive feedback the formula must now outrank at least
	// everything with lower fitness
	f := findByGene(t, p, gene)
	assert.Greater(t, f.Fitness, 0.0)
	for i := range p.formulas {
		if p.formulas[i].Gene.Equal(gene) {
			if i > 0 {
				assert.GreaterOrEqual(t, p.formulas[i-1].Fitness, p.formulas[i].Fitness)
			}
			break
		}
	}
}

func TestFeedbackUnknownGene(t *testing.T) {
	p := NewPool(9)
	gene, err := GeneFromDigits([]uint8{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	assert.ErrorIs(t, p.Feedback(gene, 0.5), ErrFormulaNotFound)
}

func TestFoldAdoptsMigratedGene(t *testing.T) {
	p := NewPool(9)
	gene, err := GeneFromDigits([]uint8{0, 0, 0, 2, 0, 0, 1, 0, 0, 0})
	require.NoError(t, err)
	p.Fold(gene, 0.9)

	found := false
	for i := range p.formulas {
		if p.formulas[i].Gene.Equal(gene) {
			found = true
			assert.InDelta(t, 0.9, p.formulas[i].Fitness, 1e-12)
		}
	}
	assert.True(t, found)
	assert.Equal(t, PoolCapacity, p.Count())
}

func TestGeneFromDigitsRejectsBadInput(t *testing.T) {
	_, err := GeneFromDigits(nil)
	assert.Error(t, err)
	_, err = GeneFromDigits(make([]uint8, GeneCapacity+1))
	assert.Error(t, err)
	_, err = GeneFromDigits([]uint8{1, 12})
	assert.Error(t, err)
}

func TestApplyShortGeneFailsCleanly(t *testing.T) {
	gene, err := GeneFromDigits([]uint8{1, 2})
	require.NoError(t, err)
	f := Formula{Gene: gene}
	_, err = f.Apply(5)
	assert.ErrorIs(t, err, ErrGeneTooShort)
}

func TestDescribe(t *testing.T) {
	gene, err := GeneFromDigits([]uint8{0, 0, 0, 2, 0, 0, 1, 0, 0, 0})
	require.NoError(t, err)
	f := Formula{Gene: gene, Fitness: 0.25}
	desc := f.Describe()
	assert.Contains(t, desc, "type=linear")
	assert.Contains(t, desc, "k=2")
	assert.Contains(t, desc, "b=1")

	f.Associations = []Association{newAssociation("q", "a", "user", 1)}
	assert.Contains(t, f.Describe(), "associations=1")
}

func findByGene(t *testing.T, p *Pool, gene Gene) *Formula {
	t.Helper()
	for i := range p.formulas {
		if p.formulas[i].Gene.Equal(gene) {
			return &p.formulas[i]
		}
	}
	t.Fatal("gene not found in pool")
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
