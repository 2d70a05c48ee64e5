package evolve

// RNG is a splitmix64 generator. The whole engine draws from one seeded
// instance so equal seeds and equal call sequences reproduce identical
// populations.
type RNG struct {
	state uint64
}

func NewRNG(seed uint64) *RNG {
	r := &RNG{}
	r.Seed(seed)
	return r
}

func (r *RNG) Seed(seed uint64) { r.state = seed }

func (r *RNG) Next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (r *RNG) digit() uint8 {
	return uint8(r.Next() % 10)
}
