// Package gateway is the WebSocket front door: it accepts connections,
// applies the same policy gate the pool's slave.WebSocketServer used for
// mining clients, frames every message as a protocol.Envelope, and routes
// decoded frames to the matchmaker (to join a room) or to a session's
// current room (everything else). Grounded on internal/slave/websocket.go's
// WSClient/handleConnection/handleClient pattern, narrowed from a JSON-RPC
// request/response/notify split down to the game's single Envelope shape.
package gateway

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/saltmark/hunt-server/internal/protocol"
	"github.com/saltmark/hunt-server/internal/session"
	"github.com/saltmark/hunt-server/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Policy is the subset of policy.PolicyServer the gateway consults on
// connect and on malformed frames. Kept narrow so gateway tests can supply a
// fake without pulling in Redis.
type Policy interface {
	IsBanned(ip string) bool
	ApplyConnectionLimit(ip string) bool
	ApplyMalformedPolicy(ip string) bool
	IsBlacklisted(address string) bool
}

// RoomHandle is the subset of *room.Room a gateway connection needs once a
// session has joined it.
type RoomHandle interface {
	Dispatch(sess *session.Session, env protocol.Envelope)
	Leave(sessionID string)
}

// Matchmaker finds or creates a room for a freshly joining session and looks
// up a room a session already belongs to by id.
type Matchmaker interface {
	Join(sess *session.Session, address string)
	RoomByID(roomID string) (RoomHandle, bool)
}

// Server accepts WebSocket connections and owns every live session until its
// connection drops.
type Server struct {
	policy     Policy
	matchmaker Matchmaker

	httpServer *http.Server
	clients    sync.Map // sessionID -> *gatewayConn
	clientSeq  uint64

	quit chan struct{}
	wg   sync.WaitGroup
}

// New builds a gateway bound to addr (":3002"-style) that will listen once
// Start is called.
func New(addr string, policy Policy, mm Matchmaker) *Server {
	s := &Server{
		policy:     policy,
		matchmaker: mm,
		quit:       make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleConnection)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start binds the listening socket, returning the error if that fails (for
// example when the port is already in use), then serves in the background.
// Serve errors other than a clean shutdown are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		util.Infof("gateway listening on %s", s.httpServer.Addr)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			util.Errorf("gateway server error: %v", err)
		}
	}()
	return nil
}

// Stop closes the listener and every open connection, then waits for all
// per-connection goroutines to exit.
func (s *Server) Stop() {
	close(s.quit)
	if s.httpServer != nil {
		s.httpServer.Close()
	}
	s.clients.Range(func(_, value interface{}) bool {
		value.(*gatewayConn).conn.Close()
		return true
	})
	s.wg.Wait()
	util.Info("gateway stopped")
}

// handleConnection upgrades an incoming request after a policy check, then
// hands the connection to its own read loop.
func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	ip := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip = forwarded
	}

	if s.policy != nil {
		if s.policy.IsBanned(ip) {
			http.Error(w, "Banned", http.StatusForbidden)
			return
		}
		if !s.policy.ApplyConnectionLimit(ip) {
			http.Error(w, "Too many connections", http.StatusTooManyRequests)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.Warnf("gateway upgrade error: %v", err)
		return
	}

	id := atomic.AddUint64(&s.clientSeq, 1)
	gc := &gatewayConn{conn: conn, remoteAddr: ip}
	sessID := sessionID(id)
	sess := session.New(sessID, gc)
	sess.IP = ip

	s.clients.Store(sessID, gc)
	util.Debugf("gateway client %s connected from %s", sessID, ip)

	s.wg.Add(1)
	go s.handleClient(sess, gc)
}

// handleClient reads frames from one connection until it errors or the
// server shuts down, routing each to the matchmaker or the session's room.
func (s *Server) handleClient(sess *session.Session, gc *gatewayConn) {
	defer s.wg.Done()
	defer func() {
		s.clients.Delete(sess.ID)
		gc.conn.Close()
		if roomID := sess.GetRoomID(); roomID != "" {
			if rh, ok := s.matchmaker.RoomByID(roomID); ok {
				rh.Leave(sess.ID)
			}
		}
		util.Debugf("gateway client %s disconnected", sess.ID)
	}()

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		// Read the raw frame and unmarshal it ourselves rather than using
		// ReadJSON directly: ReadJSON's read and decode errors are otherwise
		// indistinguishable, and only a genuine transport failure should
		// disconnect the client. A single malformed frame is dropped.
		_, raw, err := gc.conn.ReadMessage()
		if err != nil {
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			util.Debugf("gateway client %s sent an unparseable frame: %v", sess.ID, err)
			if s.policy != nil {
				s.policy.ApplyMalformedPolicy(gc.remoteAddr)
			}
			continue
		}

		if env.Type == "JoinRoom" {
			var p protocol.JoinRoom
			if !decodePayload(env.Payload, &p) {
				if s.policy != nil {
					s.policy.ApplyMalformedPolicy(gc.remoteAddr)
				}
				continue
			}
			if s.policy != nil && s.policy.IsBlacklisted(p.Address) {
				gc.Send(protocol.Envelope{Type: "Error", Payload: mustMarshal(protocol.ErrorMsg{Message: "address is blacklisted"})})
				continue
			}
			s.matchmaker.Join(sess, p.Address)
			continue
		}

		roomID := sess.GetRoomID()
		if roomID == "" {
			gc.Send(protocol.Envelope{Type: "Error", Payload: mustMarshal(protocol.ErrorMsg{Message: "not in a room"})})
			continue
		}
		rh, ok := s.matchmaker.RoomByID(roomID)
		if !ok {
			gc.Send(protocol.Envelope{Type: "Error", Payload: mustMarshal(protocol.ErrorMsg{Message: "room no longer exists"})})
			continue
		}
		rh.Dispatch(sess, env)
	}
}

func sessionID(seq uint64) string {
	return "s-" + strconv.FormatUint(seq, 10)
}
