package evolve

import (
	"errors"
	"fmt"
)

// GeneCapacity is the fixed digit capacity of every gene.
const GeneCapacity = 32

var ErrGeneTooShort = errors.New("evolve: gene too short for rule layout")

// Gene is an ordered sequence of decimal digits with fixed capacity and a
// logical length. Genes are replaced wholesale during reproduction, never
// edited in place between ticks.
type Gene struct {
	digits [GeneCapacity]uint8
	length int
}

// GeneFromDigits builds a gene from raw digit values, e.g. one received
// from a peer. Values are untrusted: anything over 9 or over capacity is
// rejected.
func GeneFromDigits(digits []uint8) (Gene, error) {
	if len(digits) == 0 || len(digits) > GeneCapacity {
		return Gene{}, fmt.Errorf("evolve: gene length %d out of 1..%d", len(digits), GeneCapacity)
	}
	var g Gene
	for i, d := range digits {
		if d > 9 {
			return Gene{}, fmt.Errorf("evolve: gene digit %d at %d out of range", d, i)
		}
		g.digits[i] = d
	}
	g.length = len(digits)
	return g, nil
}

func (g Gene) Len() int { return g.length }

// Digits returns a copy of the logical digit sequence.
func (g Gene) Digits() []uint8 {
	out := make([]uint8, g.length)
	copy(out, g.digits[:g.length])
	return out
}

func (g Gene) Equal(other Gene) bool {
	if g.length != other.length {
		return false
	}
	for i := 0; i < g.length; i++ {
		if g.digits[i] != other.digits[i] {
			return false
		}
	}
	return true
}

func (g Gene) String() string {
	out := make([]byte, g.length)
	for i := 0; i < g.length; i++ {
		out[i] = '0' + g.digits[i]
	}
	return string(out)
}

func randomGene(rng *RNG) Gene {
	var g Gene
	g.length = GeneCapacity
	for i := range g.digits {
		g.digits[i] = rng.digit()
	}
	return g
}

// signed value at offset: parity of the first digit selects the sign, the
// next two digits form the magnitude 0..99.
func (g Gene) decodeSigned(offset int) (int, error) {
	if offset+3 > g.length {
		return 0, ErrGeneTooShort
	}
	sign := 1
	if g.digits[offset]%2 != 0 {
		sign = -1
	}
	return sign * (int(g.digits[offset+1])*10 + int(g.digits[offset+2])), nil
}

func (g Gene) decodeOperation(offset int) (operation, error) {
	if offset >= g.length {
		return 0, ErrGeneTooShort
	}
	return operation(g.digits[offset] % 4), nil
}
