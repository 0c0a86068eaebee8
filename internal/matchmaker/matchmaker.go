// Package matchmaker owns the registry of live rooms: finding one with spare
// Lobby capacity for a joining player, creating a fresh one when none
// qualifies, and pruning a room's entry once it reports itself destroyed.
// Grounded on internal/master.go's jobMu-guarded currentJob/jobBacklog
// bookkeeping, generalized from "one current job plus a backlog" to "a set
// of concurrently live rooms".
package matchmaker

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/saltmark/hunt-server/internal/gateway"
	"github.com/saltmark/hunt-server/internal/ledger"
	"github.com/saltmark/hunt-server/internal/room"
	"github.com/saltmark/hunt-server/internal/session"
	"github.com/saltmark/hunt-server/internal/util"
)

// Matchmaker finds-or-creates a Lobby room for each newly joining player and
// retires rooms once they destroy themselves.
type Matchmaker struct {
	cfg     room.Config
	broker  ledger.Broker
	notify  room.Notifier
	policy  room.ActionPolicy

	mu    sync.Mutex
	rooms map[string]*room.Room
	seq   uint64
}

// New builds a matchmaker that stamps every room it creates with cfg and a
// fresh ledger over broker, notifying end-of-game events through notify and
// reporting resolved action validity through policy. policy may be nil.
func New(cfg room.Config, broker ledger.Broker, notify room.Notifier, policy room.ActionPolicy) *Matchmaker {
	return &Matchmaker{
		cfg:    cfg,
		broker: broker,
		notify: notify,
		policy: policy,
		rooms:  make(map[string]*room.Room),
	}
}

// Join finds a Lobby room with spare capacity or creates one, then asks that
// room to admit sess. Satisfies gateway.Matchmaker.
func (m *Matchmaker) Join(sess *session.Session, address string) {
	r := m.findOrCreate()
	r.Join(sess, address)
}

// RoomByID satisfies gateway.Matchmaker for routing messages from a session
// already in a room.
func (m *Matchmaker) RoomByID(roomID string) (gateway.RoomHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

func (m *Matchmaker) findOrCreate() *room.Room {
	m.mu.Lock()
	for _, r := range m.rooms {
		if r.CurrentPhase() == room.PhaseLobby && r.MemberCount() < m.cfg.MaxPlayers {
			m.mu.Unlock()
			return r
		}
	}
	m.mu.Unlock()
	return m.createRoom()
}

func (m *Matchmaker) createRoom() *room.Room {
	id := fmt.Sprintf("room-%d", atomic.AddUint64(&m.seq, 1))
	l := ledger.New(m.broker)
	r := room.New(id, randomSeed(), m.cfg, l, m.notify, m.policy, m.onRoomDestroyed)

	m.mu.Lock()
	m.rooms[id] = r
	m.mu.Unlock()

	go r.Run()
	util.Infof("matchmaker: created room %s", id)
	return r
}

func (m *Matchmaker) onRoomDestroyed(roomID string) {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()
	util.Debugf("matchmaker: retired room %s", roomID)
}

// RoomCount reports how many rooms are currently tracked, for diagnostics.
func (m *Matchmaker) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// randomSeed draws an unpredictable per-room map seed. The room treats the
// value as opaque; a predictable seed would let a player precompute the
// chest position off-server, so this avoids the math/rand global source.
func randomSeed() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		util.Warnf("matchmaker: crypto/rand failed, falling back to a fixed seed: %v", err)
		return 1
	}
	return binary.BigEndian.Uint32(b[:])
}
