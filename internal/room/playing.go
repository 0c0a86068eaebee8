package room

import (
	"math"
	"time"

	"github.com/saltmark/hunt-server/internal/mapgen"
	"github.com/saltmark/hunt-server/internal/protocol"
	"github.com/saltmark/hunt-server/internal/session"
)

// roomResource pairs a generated resource with the room-local harvested flag;
// mapgen.Resource itself stays an immutable generation output shared with
// client rendering, so harvested state lives here instead of on it.
type roomResource struct {
	mapgen.Resource
	Harvested bool
}

// startPlaying generates the map from the room's seed, broadcasts it, and
// arms the periodic sync tick plus the one-shot game timeout.
func (r *Room) startPlaying() {
	r.setPhase(PhasePlaying)
	r.gameStartedAt = time.Now()

	seedF := float64(r.seed)
	placed := mapgen.Resources(seedF, 0)
	views := make([]protocol.ResourceView, 0, len(placed))
	for _, res := range placed {
		r.resources[res.ID] = &roomResource{Resource: res}
		views = append(views, protocol.ResourceView{ID: res.ID, Type: string(res.Type), X: res.X, Z: res.Z})
	}
	r.chestX, r.chestZ = mapgen.ChestPosition(seedF)

	r.broadcast("GameStarted", protocol.GameStarted{Seed: r.seed, Resources: views})

	r.syncTicker = time.NewTicker(time.Duration(r.cfg.SyncBroadcastMs) * time.Millisecond)
	go r.pumpSyncTicks(r.syncTicker, r.done)

	r.timeoutTimer = time.AfterFunc(time.Duration(r.cfg.GameTimeoutMs)*time.Millisecond, func() {
		r.Post(timeoutFired{})
	})
}

// pumpSyncTicks relays ticker fires into the room's inbox; runs on its own
// goroutine so the room's execution context never does a blocking Ticker
// receive itself.
func (r *Room) pumpSyncTicks(ticker *time.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-ticker.C:
			r.Post(syncTick{})
		case <-done:
			return
		}
	}
}

func (r *Room) broadcastSync() {
	if r.phase != PhasePlaying {
		return
	}
	players := make([]protocol.PlayerSyncView, 0, len(r.order))
	for _, id := range r.order {
		if sess, ok := r.members[id]; ok {
			players = append(players, sess.Snapshot())
		}
	}
	r.broadcast("PlayersSync", protocol.PlayersSync{Players: players})
}

func (r *Room) handleTimeoutFired() {
	if r.phase != PhasePlaying {
		return
	}
	r.endGame("", protocol.ReasonTimeout)
}

// handlePositionUpdate enforces the rate limit and rootedness rule from
// §4.5, then rebroadcasts an accepted move.
func (r *Room) handlePositionUpdate(sess *session.Session, pos protocol.Vec3) {
	if r.phase != PhasePlaying {
		return
	}
	if sess.CurrentAction != session.ActionIdle {
		r.send(sess, "Error", protocol.ErrorMsg{Message: "cannot move while busy"})
		return
	}

	now := time.Now()
	if !sess.LastPositionTimestamp.IsZero() {
		dt := now.Sub(sess.LastPositionTimestamp).Seconds()
		if dt > 0 {
			dist := protocol.HorizontalDistance(sess.Position, pos)
			maxDist := r.cfg.MaxSpeed * sess.Upgrades.SpeedMultiplier * r.cfg.SpeedTolerance * dt
			if dist > maxDist {
				r.send(sess, "Error", protocol.ErrorMsg{Message: "Moving too fast"})
				r.reportAction(sess, false)
				return
			}
		}
	}

	sess.Position = pos
	sess.LastPositionTimestamp = now
	r.reportAction(sess, true)
	r.broadcast("PlayerMoved", protocol.PlayerMoved{PlayerID: sess.ID, Position: pos})
}

// handleStartHarvest validates range and resource state, then schedules the
// harvest action.
func (r *Room) handleStartHarvest(sess *session.Session, resourceID string) {
	if r.phase != PhasePlaying || sess.CurrentAction != session.ActionIdle {
		r.send(sess, "Error", protocol.ErrorMsg{Message: "cannot harvest now"})
		return
	}
	res, ok := r.resources[resourceID]
	if !ok || res.Harvested {
		r.send(sess, "Error", protocol.ErrorMsg{Message: "Invalid resource"})
		r.reportAction(sess, false)
		return
	}
	if protocol.HorizontalDistance(sess.Position, protocol.Vec3{X: res.X, Z: res.Z}) > r.cfg.HarvestProximity {
		r.send(sess, "Error", protocol.ErrorMsg{Message: "too far from resource"})
		r.reportAction(sess, false)
		return
	}

	r.reportAction(sess, true)
	r.broadcast("HarvestStarted", protocol.HarvestStarted{PlayerID: sess.ID, ResourceID: resourceID})

	sess.ActionSeq++
	seq := sess.ActionSeq
	r.actions.Start(sess, session.ActionHarvest, r.cfg.HarvestDurationMs, func() {
		r.Post(harvestCompleted{sessionID: sess.ID, seq: seq, resourceID: resourceID})
	})
}

func (r *Room) handleCancelHarvest(sess *session.Session) {
	if sess.CurrentAction == session.ActionHarvest {
		r.actions.Cancel(sess)
	}
}

func (r *Room) handleCancelDig(sess *session.Session) {
	if sess.CurrentAction == session.ActionDig {
		r.actions.Cancel(sess)
	}
}

// handleStartDig validates the target lies on the island, then schedules the
// dig action. The spec trusts the client's claimed position; no proximity
// check to the player's own last accepted position is performed.
func (r *Room) handleStartDig(sess *session.Session, pos protocol.Vec3) {
	if r.phase != PhasePlaying || sess.CurrentAction != session.ActionIdle {
		r.send(sess, "Error", protocol.ErrorMsg{Message: "cannot dig now"})
		return
	}
	if !mapgen.IsOnIsland(pos.X, pos.Z, float64(r.seed), false) {
		r.send(sess, "Error", protocol.ErrorMsg{Message: "cannot dig there"})
		r.reportAction(sess, false)
		return
	}

	r.reportAction(sess, true)
	r.broadcast("DigStarted", protocol.DigStarted{PlayerID: sess.ID, Position: pos})

	durationMs := int64(math.Floor(float64(r.cfg.DigDurationMs) * sess.Upgrades.DigMultiplier))
	if durationMs < 10 {
		durationMs = 10
	}

	sess.ActionSeq++
	seq := sess.ActionSeq
	digPos := pos
	r.actions.Start(sess, session.ActionDig, durationMs, func() {
		r.completeDig(sess.ID, seq, digPos)
	})
}

// completeDig is invoked from the scheduler's timer goroutine; it re-enters
// the room's serialized context by posting rather than touching state here.
func (r *Room) completeDig(sessionID string, seq int64, pos protocol.Vec3) {
	r.Post(digCompleted{sessionID: sessionID, seq: seq, position: pos, firedAt: time.Now()})
}

type digCompleted struct {
	sessionID string
	seq       int64
	position  protocol.Vec3
	firedAt   time.Time
}
