package room

import (
	"math"
	"math/rand"

	"github.com/saltmark/hunt-server/internal/mapgen"
	"github.com/saltmark/hunt-server/internal/protocol"
	"github.com/saltmark/hunt-server/internal/session"
)

// mapRevealRadius is MAP_REVEAL_RADIUS: the disclosed radius of the one-shot
// hint sent when hasMap first latches true, and twice the maximum offset
// between the hint's center and the true chest position.
const mapRevealRadius = 20.0

// handleHarvestCompleted resolves a fired harvest timer for a specific
// resource. A completion whose seq no longer matches the session's current
// ActionSeq is stale (the action was cancelled or superseded by a later one)
// and is dropped.
func (r *Room) handleHarvestCompleted(m harvestCompleted) {
	sess, ok := r.members[m.sessionID]
	if !ok || sess.ActionSeq != m.seq || sess.CurrentAction != session.ActionHarvest {
		return
	}
	r.actions.Clear(sess)

	res, ok := r.resources[m.resourceID]
	if !ok || res.Harvested {
		return
	}
	res.Harvested = true

	prevUpgrades := sess.Upgrades
	switch res.Type {
	case mapgen.ResourceWood:
		sess.Inventory.Wood++
	case mapgen.ResourceStone:
		sess.Inventory.Stone++
	case mapgen.ResourceBerry:
		sess.Inventory.Berry++
	}
	sess.Upgrades = session.DeriveUpgrades(sess.Inventory, r.cfg.Rules, prevUpgrades.HasMap)

	if sess.Upgrades.SpeedMultiplier != prevUpgrades.SpeedMultiplier {
		r.broadcast("UpgradeUnlocked", protocol.UpgradeUnlocked{PlayerID: sess.ID, Upgrade: protocol.UpgradeSpeed})
	}
	if sess.Upgrades.DigUpgradesTaken > prevUpgrades.DigUpgradesTaken {
		r.broadcast("UpgradeUnlocked", protocol.UpgradeUnlocked{PlayerID: sess.ID, Upgrade: protocol.UpgradeDigSpeed})
	}
	if sess.Upgrades.HasMap && !prevUpgrades.HasMap {
		r.broadcast("UpgradeUnlocked", protocol.UpgradeUnlocked{PlayerID: sess.ID, Upgrade: protocol.UpgradeMap})
		r.send(sess, "MapRevealed", protocol.MapRevealed{
			Center: r.offsetChestHint(),
			Radius: mapRevealRadius,
		})
	}

	r.broadcast("HarvestComplete", protocol.HarvestComplete{
		PlayerID:     sess.ID,
		ResourceID:   res.ID,
		ResourceType: string(res.Type),
		Inventory:    sess.Inventory,
		Upgrades:     sess.Upgrades,
	})
}

// offsetChestHint returns a point within mapRevealRadius/2 of the true
// chest, the one-shot hint given when hasMap first latches true.
func (r *Room) offsetChestHint() protocol.Vec3 {
	angle := rand.Float64() * 2 * math.Pi
	radius := rand.Float64() * (mapRevealRadius / 2)
	return protocol.Vec3{
		X: r.chestX + radius*math.Cos(angle),
		Z: r.chestZ + radius*math.Sin(angle),
	}
}

// handleDigCompleted resolves a fired dig timer against the chest position,
// ending the game on a hit. Ties are resolved by inbox arrival order, which
// is deterministic for a fixed scheduling trace: the room is a single
// serialized execution context, so the first digCompleted processed that
// lands in radius wins outright; any later one simply finds the room no
// longer Playing.
func (r *Room) handleDigCompleted(m digCompleted) {
	sess, ok := r.members[m.sessionID]
	if !ok || sess.ActionSeq != m.seq || sess.CurrentAction != session.ActionDig {
		return
	}
	r.actions.Clear(sess)

	if r.phase != PhasePlaying {
		return
	}

	dist := protocol.HorizontalDistance(m.position, protocol.Vec3{X: r.chestX, Z: r.chestZ})
	if dist <= r.cfg.ChestFindRadius {
		r.broadcast("ChestFound", protocol.ChestFound{
			PlayerID: sess.ID,
			Position: protocol.Vec3{X: r.chestX, Z: r.chestZ},
		})
		r.endGame(sess.ID, protocol.ReasonChestFound)
		return
	}

	r.broadcast("DigComplete", protocol.DigComplete{PlayerID: sess.ID, Found: false})
}
