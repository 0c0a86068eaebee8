package mapgen

// mulberry32 is a 32-bit splitmix-style PRNG, chosen for its tiny state and
// byte-identical behavior across the Go server and the JS client, which ships
// the same algorithm.
type mulberry32 struct {
	state uint32
}

func newMulberry32(seed uint32) *mulberry32 {
	return &mulberry32{state: seed}
}

// next returns the next pseudo-random float64 in [0, 1).
func (m *mulberry32) next() float64 {
	m.state += 0x6D2B79F5
	a := m.state
	t := (a ^ (a >> 15)) * (a | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// seedFor derives the uint32 PRNG seed from a float64 room seed and a per-use
// multiplier, matching the client's `(seed * k) >>> 0` truncation.
func seedFor(seed float64, k float64) uint32 {
	return uint32(uint64(int64(seed*k)) & 0xFFFFFFFF)
}
