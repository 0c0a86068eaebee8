package room

import (
	"encoding/json"

	"github.com/saltmark/hunt-server/internal/protocol"
	"github.com/saltmark/hunt-server/internal/util"
)

// handleClientMsg decodes an envelope's payload for the session's current
// message and routes it to the matching handler. Unknown types get an
// Error reply; malformed payloads are ignored per §4.6 (unparseable frames
// are dropped silently by the gateway before they ever reach here, but a
// well-formed envelope with a payload that doesn't match its declared type
// is handled the same way: dropped).
func (r *Room) handleClientMsg(m clientMsg) {
	sess := m.session
	if _, ok := r.members[sess.ID]; !ok {
		return
	}

	switch m.env.Type {
	case "WagerConfirmed":
		r.handleWagerConfirmed(sess)
	case "Ready":
		// Acknowledged implicitly by the lobby flow; no state change required.
	case "PositionUpdate":
		var p protocol.PositionUpdate
		if decode(m.env.Payload, &p) {
			r.handlePositionUpdate(sess, p.Position)
		}
	case "StartHarvest":
		var p protocol.StartHarvest
		if decode(m.env.Payload, &p) {
			r.handleStartHarvest(sess, p.ResourceID)
		}
	case "StartDig":
		var p protocol.StartDig
		if decode(m.env.Payload, &p) {
			r.handleStartDig(sess, p.Position)
		}
	case "CancelHarvest":
		r.handleCancelHarvest(sess)
	case "CancelDig":
		r.handleCancelDig(sess)
	case "Ping":
		var p protocol.Ping
		if decode(m.env.Payload, &p) {
			r.send(sess, "Pong", protocol.Pong{T: p.T})
		}
	case "LeaveRoom":
		r.handleLeave(sess.ID)
	default:
		r.send(sess, "Error", protocol.ErrorMsg{Message: "unknown message type"})
	}
}

func decode(raw json.RawMessage, v interface{}) bool {
	if len(raw) == 0 {
		return true // zero-value payload, e.g. WagerConfirmed{}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		util.Debugf("room: malformed payload: %v", err)
		return false
	}
	return true
}
