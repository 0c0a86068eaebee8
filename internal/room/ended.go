package room

import (
	"context"
	"time"

	"github.com/saltmark/hunt-server/internal/protocol"
)

// backgroundCtx is the context used for ledger calls made outside the
// request lifetime of any single client message (countdown abort, endGame).
// The broker client enforces its own per-call timeout (see broker.Config),
// so this stays unbounded rather than racing a second timeout against it.
func backgroundCtx() context.Context {
	return context.Background()
}

// endGame transitions the room to Ended, broadcasts GameEnded, and hands the
// payout or refund off to a background goroutine so the room's own
// execution context never blocks on the broker (see the concurrency note in
// §5). The background task reports back via a payoutDone message.
func (r *Room) endGame(winnerID, reason string) {
	if r.phase == PhaseEnded {
		return
	}
	r.setPhase(PhaseEnded)
	r.winnerID = winnerID
	r.reason = reason

	if r.countdownTimer != nil {
		r.countdownTimer.Stop()
		r.countdownTimer = nil
	}
	if r.timeoutTimer != nil {
		r.timeoutTimer.Stop()
		r.timeoutTimer = nil
	}
	if r.syncTicker != nil {
		r.syncTicker.Stop()
		r.syncTicker = nil
	}
	for _, id := range r.order {
		if sess, ok := r.members[id]; ok {
			r.actions.Forget(sess.ID)
		}
	}

	r.broadcast("GameEnded", protocol.GameEnded{WinnerID: winnerID, Reason: reason})

	if r.notify != nil {
		r.notify.NotifyGameEnded(r.ID, reason, winnerID)
		if reason == protocol.ReasonChestFound {
			r.notify.NotifyChestFound(r.ID, winnerID)
		}
	}

	pot := r.potSnapshot()
	go r.settle(winnerID, reason, pot)
}

// potSnapshot reads the pot total before the background settlement task
// clears the ledger's book for this room, so PayoutComplete can report the
// right amount even though the ledger itself no longer holds the record by
// the time the task finishes.
func (r *Room) potSnapshot() float64 {
	return r.ledgerPot()
}

// settle runs off the room's goroutine: exactly one of Payout/RefundAll is
// invoked here, matching the ledger's per-room guarantee in §4.3.
func (r *Room) settle(winnerID, reason string, pot float64) {
	ctx := backgroundCtx()

	var err error
	if reason == protocol.ReasonChestFound && winnerID != "" {
		winnerAddr := r.addressOf(winnerID)
		err = r.ledger.Payout(ctx, r.ID, winnerAddr)
	} else {
		r.ledger.RefundAll(ctx, r.ID)
		pot = 0
	}

	r.Post(payoutDone{err: err, winnerID: winnerID, amount: pot, reason: reason})
}

func (r *Room) handlePayoutDone(m payoutDone) {
	if m.err != nil && r.notify != nil {
		r.notify.NotifyPayoutFailed(r.ID, m.err)
	}

	amount := m.amount
	winnerID := m.winnerID
	if m.reason != protocol.ReasonChestFound {
		winnerID = ""
		amount = 0
	}

	r.broadcast("PayoutComplete", protocol.PayoutComplete{WinnerID: winnerID, Amount: amount})

	if r.notify != nil && m.err == nil {
		r.notify.NotifyPayoutComplete(r.ID, winnerID, amount)
	}

	r.destroyTimer = time.AfterFunc(time.Duration(r.cfg.EndedGraceMs)*time.Millisecond, func() {
		r.Post(destroyFired{})
	})
}

// ledgerPot reads the room's current pot total from the ledger.
func (r *Room) ledgerPot() float64 {
	return r.ledger.Pot(r.ID)
}

// addressOf returns the broker address for a still-present member. Called
// only for the chest_found path, where the winner is necessarily still a
// member (the game cannot end on a dig the winner performed after leaving).
func (r *Room) addressOf(sessionID string) string {
	if sess, ok := r.members[sessionID]; ok {
		return sess.Address
	}
	return ""
}

func (r *Room) destroy() {
	close(r.done)
	if r.onDestroy != nil {
		r.onDestroy(r.ID)
	}
}
