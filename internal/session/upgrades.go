package session

import (
	"math"

	"github.com/saltmark/hunt-server/internal/protocol"
)

// Economy constants. The berry bonus and dig multiplier are overridable from
// config at wiring time via the Rules struct below so a deployment can retune
// balance without a rebuild; the upgrade step sizes and the map-reveal
// threshold are fixed.
const (
	DefaultBerryBonus     = 0.08
	DefaultDigMultiplier  = 0.90
	DigUpgradeStoneStep   = 5
	DigUpgradeWoodStep    = 5
	MapRevealWoodThreshold = 50
)

// Rules holds the economy constants DeriveUpgrades is evaluated against.
// Carried explicitly instead of as package globals so a room can be built
// against config-supplied values and tested against fixed ones.
type Rules struct {
	BerryBonus    float64
	DigMultiplier float64
}

// DefaultRules returns the spec's stated defaults.
func DefaultRules() Rules {
	return Rules{BerryBonus: DefaultBerryBonus, DigMultiplier: DefaultDigMultiplier}
}

// DeriveUpgrades is a pure function of the current inventory: same inventory,
// same rules, same output, every time. hasMap is latched by the caller since
// it must never unset even if this function were ever called with a stale,
// smaller inventory snapshot.
func DeriveUpgrades(inv protocol.Inventory, rules Rules, previouslyHasMap bool) protocol.Upgrades {
	digUpgrades := minInt(inv.Stone/DigUpgradeStoneStep, inv.Wood/DigUpgradeWoodStep)

	return protocol.Upgrades{
		SpeedMultiplier:  1 + float64(inv.Berry)*rules.BerryBonus,
		DigUpgradesTaken: digUpgrades,
		DigMultiplier:    math.Pow(rules.DigMultiplier, float64(digUpgrades)),
		HasMap:           previouslyHasMap || inv.Wood >= MapRevealWoodThreshold,
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
