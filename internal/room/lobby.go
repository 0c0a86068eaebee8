package room

import (
	"time"

	"github.com/saltmark/hunt-server/internal/protocol"
	"github.com/saltmark/hunt-server/internal/session"
)

// handleJoin admits a new session while the room is in Lobby and has spare
// capacity. The matchmaker is expected to have already checked capacity via
// CurrentPhase/MemberCount, but the room re-checks here since that read can
// be stale.
func (r *Room) handleJoin(req joinRequest) {
	if r.phase != PhaseLobby || len(r.members) >= r.cfg.MaxPlayers {
		r.send(req.sess, "Error", protocol.ErrorMsg{Message: "room is not accepting new players"})
		return
	}

	req.sess.Address = req.address
	req.sess.SetRoomID(r.ID)
	r.members[req.sess.ID] = req.sess
	r.order = append(r.order, req.sess.ID)
	r.syncMemberCount()

	r.send(req.sess, "RoomJoined", protocol.RoomJoined{
		RoomID:   r.ID,
		PlayerID: req.sess.ID,
		Phase:    string(r.phase),
		Players:  r.playerViews(),
	})
	r.send(req.sess, "WagerRequired", protocol.WagerRequired{
		Amount:        r.cfg.WagerAmount,
		ServerAddress: r.cfg.ServerAddress,
		Asset:         r.cfg.Asset,
	})
}

// handleLeave removes a session from the room, from any phase. It is the
// only path that can end the game via "abandoned" (zero members remaining),
// and the only path that can abort an in-progress countdown.
func (r *Room) handleLeave(sessionID string) {
	sess, ok := r.members[sessionID]
	if !ok {
		return
	}

	r.actions.Forget(sessionID)
	delete(r.members, sessionID)
	r.order = removeID(r.order, sessionID)
	r.syncMemberCount()

	if r.phase == PhaseEnded {
		return
	}

	r.broadcast("PlayerLeft", protocol.PlayerLeft{PlayerID: sess.ID})

	if len(r.members) == 0 {
		r.endGame("", protocol.ReasonAbandoned)
		return
	}

	if r.phase == PhaseLobby && r.countdownTimer != nil && len(r.members) < r.cfg.MinPlayers {
		r.abortCountdown()
	}
}

// handleWagerConfirmed records a stake and, once every member has staked and
// the minimum headcount is met, starts the lobby countdown.
func (r *Room) handleWagerConfirmed(sess *session.Session) {
	if r.phase != PhaseLobby {
		return
	}

	sess.Wagered = true
	r.ledger.Record(r.ID, sess.ID, sess.Address, r.cfg.WagerAmount)
	r.broadcast("WagerAccepted", protocol.WagerAccepted{PlayerID: sess.ID})

	if r.countdownTimer != nil {
		return
	}

	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		ids = append(ids, id)
	}
	if len(ids) < r.cfg.MinPlayers || !r.ledger.AllStaked(r.ID, ids) {
		return
	}

	r.startCountdown()
}

func (r *Room) startCountdown() {
	r.countdownVersion++
	version := r.countdownVersion

	r.broadcast("GameStarting", protocol.GameStarting{Countdown: r.cfg.CountdownMs})

	r.countdownTimer = time.AfterFunc(time.Duration(r.cfg.CountdownMs)*time.Millisecond, func() {
		r.Post(countdownFired{version: version})
	})
}

// abortCountdown stops a running countdown and hands the stake refund off to
// a background task, same as endGame's settlement handoff, so the room's own
// goroutine never blocks on the broker. The result comes back as a
// countdownRefundDone message.
func (r *Room) abortCountdown() {
	if r.countdownTimer != nil {
		r.countdownTimer.Stop()
		r.countdownTimer = nil
	}
	r.countdownVersion++ // invalidate any fire already in flight
	version := r.countdownVersion

	go func() {
		r.ledger.RefundAll(backgroundCtx(), r.ID)
		r.Post(countdownRefundDone{version: version})
	}()
}

// handleCountdownRefundDone clears the Wagered flag for every current member
// once the refund triggered by abortCountdown has completed. Guarded by
// version so a refund that lands after a later countdown started (and
// possibly aborted again) doesn't clobber a fresh wager.
func (r *Room) handleCountdownRefundDone(m countdownRefundDone) {
	if m.version != r.countdownVersion {
		return
	}
	for _, id := range r.order {
		if sess, ok := r.members[id]; ok {
			sess.Wagered = false
		}
	}
}

// handleCountdownFired transitions Lobby -> Playing, unless a stale version
// (a countdown that was aborted and possibly restarted) fired late.
func (r *Room) handleCountdownFired(version int) {
	if r.phase != PhaseLobby || version != r.countdownVersion {
		return
	}
	r.countdownTimer = nil
	r.startPlaying()
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
