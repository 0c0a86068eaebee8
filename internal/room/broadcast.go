package room

import (
	"encoding/json"

	"github.com/saltmark/hunt-server/internal/protocol"
	"github.com/saltmark/hunt-server/internal/session"
	"github.com/saltmark/hunt-server/internal/util"
)

// send delivers an envelope to one session, logging (not panicking) on a
// write failure — a slow or dead consumer does not disrupt the room.
func (r *Room) send(sess *session.Session, msgType string, payload interface{}) {
	if sess == nil || sess.Conn == nil {
		return
	}
	if err := sess.Conn.Send(envelope(msgType, payload)); err != nil {
		util.Debugf("room %s: send to %s failed: %v", r.ID, sess.ID, err)
	}
}

// broadcast delivers an envelope to every current member, in join order.
func (r *Room) broadcast(msgType string, payload interface{}) {
	env := envelope(msgType, payload)
	for _, id := range r.order {
		sess, ok := r.members[id]
		if !ok {
			continue
		}
		if err := sess.Conn.Send(env); err != nil {
			util.Debugf("room %s: broadcast to %s failed: %v", r.ID, sess.ID, err)
		}
	}
}

func envelope(msgType string, payload interface{}) protocol.Envelope {
	return protocol.Envelope{Type: msgType, Payload: mustMarshal(payload)}
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		util.Errorf("room: marshal %T failed: %v", v, err)
		return nil
	}
	return b
}

// playerViews returns the current membership as the PlayerView list used in
// RoomJoined, in join order for deterministic client rendering.
func (r *Room) playerViews() []protocol.PlayerView {
	views := make([]protocol.PlayerView, 0, len(r.order))
	for _, id := range r.order {
		sess, ok := r.members[id]
		if !ok {
			continue
		}
		views = append(views, protocol.PlayerView{PlayerID: sess.ID, Address: sess.Address})
	}
	return views
}
