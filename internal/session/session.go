// Package session holds per-connection player state: the Session record
// itself, the upgrade-derivation pure function, and the per-session action
// timer (ActionScheduler). Grounded on internal/master.go's convention of
// small explicit record structs keyed by id plus one-shot timers per unit of
// work, generalized from per-share bookkeeping to per-player game state.
package session

import (
	"sync"
	"time"

	"github.com/saltmark/hunt-server/internal/protocol"
)

// Action is the exclusive activity a session may be engaged in.
type Action string

const (
	ActionIdle    Action = protocol.ActionIdle
	ActionHarvest Action = protocol.ActionHarvest
	ActionDig     Action = protocol.ActionDig
)

// Sender is the minimal outbound interface a gateway connection must satisfy;
// kept narrow so session and room never depend on gorilla/websocket directly.
type Sender interface {
	Send(v interface{}) error
	Close() error
}

// Session is one connected player. Owned by exactly one Room at a time; it
// never holds a back-reference to its room, only the room's id.
type Session struct {
	ID      string
	Address string
	IP      string
	Conn    Sender

	roomMu sync.Mutex
	RoomID string

	// The remaining fields are touched only by the room goroutine that owns
	// this session at any given time; the room's single-threaded execution
	// context is what makes that access safe, not a lock on the struct.
	Position              protocol.Vec3
	LastPositionTimestamp time.Time
	CurrentAction         Action
	ActionDeadline        time.Time
	ActionStartedAt       time.Time
	ActionSeq             int64
	Wagered               bool
	Inventory             protocol.Inventory
	Upgrades              protocol.Upgrades
}

// New creates a session for a freshly accepted connection.
func New(id string, conn Sender) *Session {
	return &Session{
		ID:            id,
		Conn:          conn,
		CurrentAction: ActionIdle,
	}
}

// Snapshot reads the fields a room broadcasts in PlayersSync. Called only
// from the owning room's goroutine.
func (s *Session) Snapshot() protocol.PlayerSyncView {
	return protocol.PlayerSyncView{
		PlayerID:  s.ID,
		Position:  s.Position,
		Action:    string(s.CurrentAction),
		Connected: true,
		Inventory: s.Inventory,
		Upgrades:  s.Upgrades,
	}
}

func (s *Session) SetRoomID(roomID string) {
	s.roomMu.Lock()
	s.RoomID = roomID
	s.roomMu.Unlock()
}

func (s *Session) GetRoomID() string {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()
	return s.RoomID
}
