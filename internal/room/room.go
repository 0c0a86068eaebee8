// Package room is the authoritative per-match state machine: phase
// transitions, wager bookkeeping, position validation, harvest/dig action
// resolution and end-of-game settlement. Grounded on internal/master.go's
// shareProcessLoop — one goroutine per unit of serialized work, draining a
// buffered channel of heterogeneous message structs in FIFO order — widened
// here from a single pool-wide loop to one loop per room so rooms run fully
// in parallel with each other while staying serialized internally.
package room

import (
	"sync/atomic"
	"time"

	"github.com/saltmark/hunt-server/internal/ledger"
	"github.com/saltmark/hunt-server/internal/protocol"
	"github.com/saltmark/hunt-server/internal/session"
	"github.com/saltmark/hunt-server/internal/util"
)

// Phase is one of the room's three lifecycle states.
type Phase string

const (
	PhaseLobby   Phase = protocol.PhaseLobby
	PhasePlaying Phase = protocol.PhasePlaying
	PhaseEnded   Phase = protocol.PhaseEnded
)

// Config carries the tunable constants a room is built against. Supplied by
// the matchmaker from the process-wide config.GameConfig so rooms never read
// global config directly.
type Config struct {
	MinPlayers          int
	MaxPlayers          int
	CountdownMs         int64
	HarvestDurationMs   int64
	DigDurationMs       int64
	ChestFindRadius     float64
	HarvestProximity    float64
	MaxSpeed            float64
	SpeedTolerance      float64
	SyncBroadcastMs     int64
	PositionMinInterval int64
	GameTimeoutMs       int64
	EndedGraceMs        int64
	WagerAmount         float64
	ServerAddress       string
	Asset               string
	Rules               session.Rules
}

// Notifier is the subset of notify.Notifier a room can fire at end-of-game;
// kept narrow and optional (nil-safe) so rooms never block gameplay on a
// webhook delivery.
type Notifier interface {
	NotifyGameEnded(roomID, reason, winnerID string)
	NotifyChestFound(roomID, winnerID string)
	NotifyPayoutComplete(roomID, winnerID string, amount float64)
	NotifyPayoutFailed(roomID string, err error)
}

// ActionPolicy is the subset of policy.PolicyServer a room reports resolved
// action validity to, same signal the teacher's share-validity policing
// tracked per miner. Kept narrow and optional (nil-safe) so a room never
// depends on Redis or the rest of the policy store.
type ActionPolicy interface {
	ApplyActionPolicy(ip string, valid bool) bool
}

// Room is one running match. All mutable state below is touched only from
// the run() goroutine; every external caller communicates by sending to
// inbox and never mutates a Room or Session field directly.
type Room struct {
	ID      string
	cfg     Config
	ledger  *ledger.Ledger
	notify  Notifier
	policy  ActionPolicy
	actions *session.ActionScheduler

	inbox chan interface{}
	done  chan struct{}

	phase     Phase
	seed      uint32
	members   map[string]*session.Session
	order     []string // join order, for deterministic player listing
	resources map[string]*roomResource
	chestX    float64
	chestZ    float64

	createdAt        time.Time
	countdownTimer   *time.Timer
	countdownVersion int
	gameStartedAt    time.Time
	timeoutTimer     *time.Timer
	syncTicker       *time.Ticker
	destroyTimer     *time.Timer

	winnerID string
	reason   string

	onDestroy func(roomID string)

	// Snapshot counters the matchmaker can read from outside the room
	// goroutine without posting a message; updated alongside the
	// goroutine-owned phase/members state at every transition point.
	phaseCode   int32
	memberCount int32
}

const (
	phaseCodeLobby int32 = iota
	phaseCodePlaying
	phaseCodeEnded
)

// New constructs a room in Lobby phase with no members. seed should be
// unpredictable per room (e.g. derived from a counter or crypto rand by the
// matchmaker) but is otherwise opaque to the room itself. policy may be nil,
// in which case resolved actions are never reported anywhere.
func New(id string, seed uint32, cfg Config, l *ledger.Ledger, notify Notifier, policy ActionPolicy, onDestroy func(string)) *Room {
	return &Room{
		ID:        id,
		cfg:       cfg,
		ledger:    l,
		notify:    notify,
		policy:    policy,
		actions:   session.NewActionScheduler(),
		inbox:     make(chan interface{}, 256),
		done:      make(chan struct{}),
		phase:     PhaseLobby,
		seed:      seed,
		members:   make(map[string]*session.Session),
		resources: make(map[string]*roomResource),
		createdAt: time.Now(),
		onDestroy: onDestroy,
	}
}

// Post enqueues a message for the room's goroutine. Safe to call from any
// goroutine (gateway dispatch, timers, background payout tasks).
func (r *Room) Post(msg interface{}) {
	select {
	case r.inbox <- msg:
	case <-r.done:
		// Room already destroyed; drop. Late messages after destruction are
		// expected (disconnects racing the grace timer) and are not errors.
	}
}

// Run drains the inbox until the room is destroyed. Intended to be launched
// with `go room.Run()` by whatever created the room.
func (r *Room) Run() {
	for {
		select {
		case msg := <-r.inbox:
			r.dispatch(msg)
		case <-r.done:
			return
		}
	}
}

func (r *Room) dispatch(msg interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			util.Errorf("room %s: handler panic recovered: %v", r.ID, rec)
		}
	}()

	switch m := msg.(type) {
	case clientMsg:
		r.handleClientMsg(m)
	case joinRequest:
		r.handleJoin(m)
	case leaveRequest:
		r.handleLeave(m.sessionID)
	case countdownFired:
		r.handleCountdownFired(m.version)
	case timeoutFired:
		r.handleTimeoutFired()
	case syncTick:
		r.broadcastSync()
	case harvestCompleted:
		r.handleHarvestCompleted(m)
	case digCompleted:
		r.handleDigCompleted(m)
	case payoutDone:
		r.handlePayoutDone(m)
	case countdownRefundDone:
		r.handleCountdownRefundDone(m)
	case destroyFired:
		r.destroy()
	default:
		util.Warnf("room %s: unknown message type %T", r.ID, msg)
	}
}

// message types exchanged on inbox, per the event-loop reformulation of the
// source's scattered async callbacks.

type clientMsg struct {
	session *session.Session
	env     protocol.Envelope
}

type joinRequest struct {
	sess    *session.Session
	address string
}

type leaveRequest struct {
	sessionID string
}

type countdownFired struct {
	version int
}

type timeoutFired struct{}

type syncTick struct{}

type harvestCompleted struct {
	sessionID  string
	seq        int64
	resourceID string
}

type payoutDone struct {
	err      error
	winnerID string
	amount   float64
	reason   string
}

type countdownRefundDone struct {
	version int
}

type destroyFired struct{}

// Join asks the room to admit a new session; returns immediately, the
// RoomJoined/WagerRequired replies are sent asynchronously from the room's
// goroutine.
func (r *Room) Join(sess *session.Session, address string) {
	r.Post(joinRequest{sess: sess, address: address})
}

// Leave asks the room to remove a session (disconnect).
func (r *Room) Leave(sessionID string) {
	r.Post(leaveRequest{sessionID: sessionID})
}

// Dispatch routes a decoded client frame to the room for a member session.
func (r *Room) Dispatch(sess *session.Session, env protocol.Envelope) {
	r.Post(clientMsg{session: sess, env: env})
}

// CurrentPhase reports the room's phase from the atomic snapshot counter, so
// the matchmaker can check capacity without posting a message into the
// room's inbox. The value may be one step stale; worst case the matchmaker
// tries a room that just filled or just ended and falls back to creating a
// new one.
func (r *Room) CurrentPhase() Phase {
	switch atomic.LoadInt32(&r.phaseCode) {
	case phaseCodePlaying:
		return PhasePlaying
	case phaseCodeEnded:
		return PhaseEnded
	default:
		return PhaseLobby
	}
}

// MemberCount returns the atomic snapshot of how many sessions are joined.
func (r *Room) MemberCount() int {
	return int(atomic.LoadInt32(&r.memberCount))
}

// setPhase updates both the goroutine-owned phase and the atomic snapshot;
// call only from the room goroutine.
func (r *Room) setPhase(p Phase) {
	r.phase = p
	var code int32
	switch p {
	case PhasePlaying:
		code = phaseCodePlaying
	case PhaseEnded:
		code = phaseCodeEnded
	default:
		code = phaseCodeLobby
	}
	atomic.StoreInt32(&r.phaseCode, code)
}

// syncMemberCount refreshes the atomic snapshot after members map changes;
// call only from the room goroutine.
func (r *Room) syncMemberCount() {
	atomic.StoreInt32(&r.memberCount, int32(len(r.members)))
}

// reportAction forwards a resolved action's validity to the policy layer
// (an off-island dig, an out-of-range or already-harvested resource, an
// over-speed move, versus one that went through cleanly). A false return
// means the policy layer banned the session's IP; the connection is closed
// immediately rather than left to keep submitting actions into a banned IP's
// counters.
func (r *Room) reportAction(sess *session.Session, valid bool) {
	if r.policy == nil || sess.IP == "" {
		return
	}
	if !r.policy.ApplyActionPolicy(sess.IP, valid) {
		sess.Conn.Close()
	}
}
