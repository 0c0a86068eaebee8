package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saltmark/hunt-server/internal/util"
)

const writeTimeout = 10 * time.Second

// gatewayConn adapts a *websocket.Conn to session.Sender, serializing writes
// with a mutex the way slave.WSClient does for its shared connection.
type gatewayConn struct {
	conn       *websocket.Conn
	remoteAddr string
	writeMu    sync.Mutex
}

func (c *gatewayConn) Send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		util.Debugf("gateway write error: %v", err)
		return err
	}
	return nil
}

func (c *gatewayConn) Close() error {
	return c.conn.Close()
}
