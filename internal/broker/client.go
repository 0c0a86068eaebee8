// Package broker is the client for the external off-chain payment-channel
// broker (a Yellow/Nitrolite-style settlement network). It hides challenge,
// state-signing and resize-proof details behind Ready()/TransferTo(), and its
// reconnect loop (redial after ReconnectDelay whenever auth fails or the
// connection drops; there is no separate health probe) is a single-upstream
// simplification of
// internal/rpc.UpstreamManager — this server only ever has one broker to
// reconnect to, so there is no failover to manage, only retry.
package broker

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"

	"github.com/saltmark/hunt-server/internal/util"
)

// ErrNotReady is returned by TransferTo while the connection to the broker is
// down or authentication has not yet completed.
var ErrNotReady = fmt.Errorf("broker: not ready")

// Config configures the broker connection.
type Config struct {
	WSURL       string
	PrivateKey  *ecdsa.PrivateKey
	Custody     string
	Adjudicator string
	Asset       string

	ReconnectDelay time.Duration
	RequestTimeout time.Duration
}

// rpcRequest is the envelope sent to the broker; method-tagged, matching the
// shape of the pool's own JSON-RPC call() helpers.
type rpcRequest struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is the envelope read back from the broker: either Result or
// Error is set, and a zero ID indicates an unsolicited server push (balance
// or channel update) rather than a reply to a pending request.
type rpcResponse struct {
	ID     int64           `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client is the process-global connection to the broker. Safe for concurrent
// use: TransferTo may be called from any room's background payout task.
type Client struct {
	cfg Config

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[int64]chan rpcResponse
	nextID   int64
	sessionKey *ecdsa.PrivateKey

	ready int32 // atomic bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// New returns a broker client that has not yet connected; call Start to begin
// the connect/auth/reconnect loop.
func New(cfg Config) *Client {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		cfg:     cfg,
		pending: make(map[int64]chan rpcResponse),
		quit:    make(chan struct{}),
	}
}

// Start begins the connect-authenticate-serve loop in the background.
func (c *Client) Start() {
	c.wg.Add(1)
	go c.runLoop()
}

// Stop tears down the connection. Pending TransferTo calls in flight are not
// rolled back; on-chain custody remains the source of truth for funds.
func (c *Client) Stop() {
	close(c.quit)
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// Ready reports whether the broker connection is authenticated and able to
// accept TransferTo calls right now.
func (c *Client) Ready() bool {
	return atomic.LoadInt32(&c.ready) == 1
}

func (c *Client) setReady(v bool) {
	if v {
		atomic.StoreInt32(&c.ready, 1)
	} else {
		atomic.StoreInt32(&c.ready, 0)
	}
}

func (c *Client) runLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.quit:
			return
		default:
		}

		if err := c.connectAndAuth(); err != nil {
			util.Warnf("broker: connect/auth failed: %v", err)
			c.setReady(false)
			select {
			case <-c.quit:
				return
			case <-time.After(c.cfg.ReconnectDelay):
				continue
			}
		}

		c.setReady(true)
		util.Info("broker: connected and authenticated")

		c.readLoop() // blocks until the connection drops

		c.setReady(false)
		util.Warn("broker: connection lost, reconnecting")

		select {
		case <-c.quit:
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// connectAndAuth dials the broker and performs the EIP-712 session-key
// authorization handshake (see auth.go), establishing exactly one funded
// channel for the configured asset if none already exists.
func (c *Client) connectAndAuth() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	sessionKey, err := crypto.GenerateKey()
	if err != nil {
		conn.Close()
		return fmt.Errorf("generate session key: %w", err)
	}
	c.mu.Lock()
	c.sessionKey = sessionKey
	c.mu.Unlock()

	auth, err := buildSessionAuth(c.cfg.PrivateKey, sessionKey, c.cfg.Custody, c.cfg.Adjudicator)
	if err != nil {
		conn.Close()
		return fmt.Errorf("build session auth: %w", err)
	}

	if _, err := c.callOn(conn, "auth_request", auth, c.cfg.RequestTimeout); err != nil {
		conn.Close()
		return fmt.Errorf("auth_request: %w", err)
	}

	if err := c.ensureChannel(conn); err != nil {
		conn.Close()
		return fmt.Errorf("ensure channel: %w", err)
	}

	return nil
}

// readLoop dispatches frames to pending request channels until the
// connection errors out.
func (c *Client) readLoop() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			util.Warnf("broker: malformed frame: %v", err)
			continue
		}

		if resp.ID == 0 {
			// Unsolicited push (balance/channel update); no caller to notify.
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

// call sends a request over the current connection and blocks for its reply,
// modeled on WalletClient.call's request/response pattern but multiplexed
// over one long-lived socket instead of one-shot HTTP POSTs.
func (c *Client) call(method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || !c.Ready() {
		return nil, ErrNotReady
	}
	return c.callOn(conn, method, params, timeout)
}

func (c *Client) callOn(conn *websocket.Conn, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	id := atomic.AddInt64(&c.nextID, 1)
	req := rpcRequest{ID: id, Method: method, Params: paramsJSON}

	respCh := make(chan rpcResponse, 1)
	c.mu.Lock()
	c.pending[id] = respCh
	c.mu.Unlock()

	body, err := json.Marshal(req)
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.mu.Lock()
	writeErr := conn.WriteMessage(websocket.TextMessage, body)
	c.mu.Unlock()
	if writeErr != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("write: %w", writeErr)
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, fmt.Errorf("broker error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("broker: request %q timed out", method)
	}
}

// transferParams is the payload for the transfer_to method.
type transferParams struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	Asset   string  `json:"asset"`
}

// TransferTo moves amount of the configured asset from the server's channel
// allocation to address's unified broker balance. Returns ErrNotReady while
// disconnected; the caller (WagerLedger) treats this as recoverable.
func (c *Client) TransferTo(ctx context.Context, address string, amount float64) error {
	if !c.Ready() {
		return ErrNotReady
	}

	_, err := c.call("transfer_to", transferParams{
		Address: address,
		Amount:  amount,
		Asset:   c.cfg.Asset,
	}, c.cfg.RequestTimeout)
	return err
}
