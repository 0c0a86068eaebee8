package mapgen

import (
	"math"
	"strconv"
)

// ResourceType enumerates the harvestable resource kinds placed by Resources.
type ResourceType string

const (
	ResourceWood   ResourceType = "Wood"
	ResourceStone  ResourceType = "Stone"
	ResourceBerry  ResourceType = "Berry"
	resourceCount               = 200
	minResourceGap              = 5.0
)

// resourceTypeOrder fixes the uniform-choice ordering so that the PRNG draw
// (an index in [0,3)) maps to a type identically on client and server.
var resourceTypeOrder = [3]ResourceType{ResourceWood, ResourceStone, ResourceBerry}

// Resource is one harvestable node placed on the island.
type Resource struct {
	ID   string       `json:"id"`
	Type ResourceType `json:"type"`
	X    float64      `json:"x"`
	Z    float64      `json:"z"`
}

// ChestPosition deterministically places the seed chest: uniform in a disc of
// radius RANGE/2.5, rejected until it lands on the island, capped at 200
// attempts with an origin fallback so generation never blocks.
func ChestPosition(seed float64) (x, z float64) {
	rng := newMulberry32(seedFor(seed, 99991))
	const radius = RANGE / 2.5

	for attempt := 0; attempt < 200; attempt++ {
		cx, cz := samplePointInDisc(rng, radius)
		if IsOnIsland(cx, cz, seed, false) {
			return cx, cz
		}
	}
	return 0, 0
}

// Resources deterministically scatters `count` harvestable resources across
// the island, rejecting points off-island or within minResourceGap of an
// already-placed resource. IDs are assigned by placement order, matching the
// client's generator so the two stay pixel-for-pixel, id-for-id identical.
func Resources(seed float64, count int) []Resource {
	if count <= 0 {
		count = resourceCount
	}
	rng := newMulberry32(seedFor(seed, 77777))
	const radius = RANGE / 2.2

	placed := make([]Resource, 0, count)
	for len(placed) < count {
		x, z := samplePointInDisc(rng, radius)
		if !IsOnIsland(x, z, seed, false) {
			continue
		}
		if tooClose(placed, x, z) {
			continue
		}

		typeIdx := int(rng.next() * 3)
		if typeIdx > 2 {
			typeIdx = 2
		}

		placed = append(placed, Resource{
			ID:   idFor(len(placed)),
			Type: resourceTypeOrder[typeIdx],
			X:    x,
			Z:    z,
		})
	}
	return placed
}

func samplePointInDisc(rng *mulberry32, radius float64) (float64, float64) {
	angle := rng.next() * 2 * math.Pi
	r := math.Sqrt(rng.next()) * radius
	return r * math.Cos(angle), r * math.Sin(angle)
}

func tooClose(placed []Resource, x, z float64) bool {
	for _, r := range placed {
		dx := r.X - x
		dz := r.Z - z
		if dx*dx+dz*dz < minResourceGap*minResourceGap {
			return true
		}
	}
	return false
}

func idFor(index int) string {
	return "res_" + strconv.Itoa(index)
}
