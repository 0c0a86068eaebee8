// Package mapgen is the deterministic island and resource generator shared by
// client and server. Every function here is a pure function of its seed: given
// the same seed, it must produce byte-identical output on every platform, since
// the client renders the island from the seed alone rather than from geometry
// sent over the wire.
package mapgen

import "math"

// RANGE is the full width of the playable island, in meters; coordinates are
// normalised by RANGE/2.
const RANGE = 200.0

// hash22 is the per-lattice-point pseudo-random value used by fbm, matching
// the classic GLSL "frac(sin(dot(p, (127.1,311.7))) * 43758.5453)" hash.
func hash22(x, z float64) float64 {
	v := math.Sin(x*127.1+z*311.7) * 43758.5453
	return v - math.Floor(v)
}

// valueNoise2D is bilinearly-smoothed value noise over the integer lattice.
func valueNoise2D(x, z float64) float64 {
	ix := math.Floor(x)
	iz := math.Floor(z)
	fx := x - ix
	fz := z - iz

	a := hash22(ix, iz)
	b := hash22(ix+1, iz)
	c := hash22(ix, iz+1)
	d := hash22(ix+1, iz+1)

	ux := fx * fx * (3 - 2*fx)
	uz := fz * fz * (3 - 2*fz)

	return a + (b-a)*ux + (c-a)*uz + (a-b-c+d)*ux*uz
}

// fbm is 5 octaves of value noise, seeded by offsetting the sampled point by s
// so that the same (x,z) produces different terrain for different seeds.
func fbm(x, z, s float64) float64 {
	x += s
	z += s

	value := 0.0
	amplitude := 0.5
	frequency := 1.0

	for octave := 0; octave < 5; octave++ {
		value += valueNoise2D(x*frequency, z*frequency) * amplitude
		frequency *= 2
		amplitude *= 0.5
	}

	return value
}

// islandField evaluates the domain-warped fbm field at (x,z) for seed s, the
// single source of truth for where land, vegetation and resources may exist.
func islandField(x, z, s float64) float64 {
	nx0 := x / (RANGE / 2)
	nz0 := z / (RANGE / 2)

	nx := nx0 + 0.4*fbm(nx0*0.8, nz0*0.8, s+12.3)
	nz := nz0 + 0.4*fbm(nx0*0.8+5.2, nz0*0.8+1.3, s+45.6)

	d := math.Sqrt(nx*nx + nz*nz)

	v := fbm(nx*1.8, nz*1.8, s)*1.5*math.Max(0, 1-d*d) - math.Pow(d, 5)*0.8 + math.Max(0, 0.4*(1-2*d))

	return v
}

// IsOnIsland reports whether (x,z) is land under seed s. strict raises the
// threshold, used to thin vegetation/resource placement to the interior of
// the island rather than its ragged coastline.
func IsOnIsland(x, z, s float64, strict bool) bool {
	v := islandField(x, z, s)
	if strict {
		return v > 0.25
	}
	return v > 0.12
}
