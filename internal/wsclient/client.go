// Package wsclient maintains the persistent JSON-RPC 2.0 subscription session
// against a Solana RPC websocket endpoint: accountSubscribe/accountUnsubscribe,
// request/response correlation on top of the push feed, and reconnection with
// wholesale resubscription.
package wsclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/you/solarb/internal/config"
	"github.com/you/solarb/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrClosed           = errors.New("client closed")
	ErrNotConnected     = errors.New("not connected")
	ErrSubscribeTimeout = errors.New("timeout waiting for subscription response")
)

// Notification is one decoded account-change push.
type Notification struct {
	Account string
	Data    []byte
	Slot    uint64
}

// Handler consumes notifications from Listen. Per-account ordering matches
// wire order: a single read pump feeds a single channel.
type Handler func(Notification)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage
	Err    *rpcError
}

// inbound is the minimal envelope used to route a message: correlated
// response if it carries a known request id, push otherwise.
type inbound struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type accountNotification struct {
	Params struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Data  []string `json:"data"` // [payload, "base64"]
				Owner string   `json:"owner"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

type Client struct {
	cfg      *config.Config
	log      *zap.Logger
	endpoint string
	dialer   *websocket.Dialer
	limiter  *rate.Limiter

	connectMu sync.Mutex // serializes Connect; makes it idempotent under concurrency

	mu        sync.Mutex // guards conn and connected
	conn      *websocket.Conn
	connected bool

	wmu sync.Mutex // serializes writes to the connection

	subMu        sync.Mutex // guards the four maps below
	subscribed   map[string]struct{}
	subToAccount map[int64]string
	accountToSub map[string]int64
	pending      map[int64]chan rpcResponse

	nextID   atomic.Int64
	closed   atomic.Bool
	notifyCh chan Notification
	reconCh  chan struct{}
}

func NewClient(cfg *config.Config, log *zap.Logger) (*Client, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout:  cfg.ConnectionTimeout(),
		EnableCompression: true,
	}
	if cfg.RPC.Proxy != "" {
		proxyURL, err := url.Parse(cfg.RPC.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		dialer.Proxy = http.ProxyURL(proxyURL)
		log.Info("using proxy", zap.String("proxy", cfg.RPC.Proxy))
	}

	return &Client{
		cfg:          cfg,
		log:          log,
		endpoint:     wsEndpoint(cfg.RPC.Endpoint),
		dialer:       dialer,
		limiter:      rate.NewLimiter(rate.Limit(cfg.WebSocket.SubscribeRate), int(cfg.WebSocket.SubscribeRate)+1),
		subscribed:   make(map[string]struct{}),
		subToAccount: make(map[int64]string),
		accountToSub: make(map[string]int64),
		pending:      make(map[int64]chan rpcResponse),
		notifyCh:     make(chan Notification, 1024),
		reconCh:      make(chan struct{}, 1),
	}, nil
}

// wsEndpoint rewrites an HTTP RPC endpoint into its websocket form.
func wsEndpoint(endpoint string) string {
	endpoint = strings.Replace(endpoint, "https://", "wss://", 1)
	return strings.Replace(endpoint, "http://", "ws://", 1)
}

// Connect establishes the session, retrying forever with a fixed delay until
// success, close, or context cancellation. A no-op when already connected.
// On success it starts the read pump and replays every previously subscribed
// address through the normal subscribe path with fresh ids.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	for {
		if c.closed.Load() {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c.mu.Lock()
		if c.connected {
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		c.log.Info("connecting to websocket", zap.String("endpoint", c.endpoint))
		conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
		if err != nil {
			c.log.Error("websocket connection failed",
				zap.Error(err),
				zap.Duration("retry_in", c.cfg.ReconnectInterval()),
			)
			metrics.WSConnectFailures.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.ReconnectInterval()):
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		c.log.Info("websocket connected")

		go c.readPump(conn)

		// Server-assigned subscription ids do not survive the session, so the
		// old id map is discarded wholesale and every address resubscribed.
		c.resubscribeAll(ctx)
		return nil
	}
}

// SubscribeAccount subscribes to account changes. A second call for the same
// address returns the existing subscription id without issuing a wire request.
// A correlation timeout is surfaced as ErrSubscribeTimeout; the caller may
// retry explicitly.
func (c *Client) SubscribeAccount(ctx context.Context, account string) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}

	c.subMu.Lock()
	if id, ok := c.accountToSub[account]; ok {
		c.subMu.Unlock()
		c.log.Debug("already subscribed", zap.String("account", account))
		return id, nil
	}
	c.subMu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	id := c.nextID.Add(1)
	slot := make(chan rpcResponse, 1)
	c.subMu.Lock()
	c.pending[id] = slot
	c.subMu.Unlock()
	defer func() {
		c.subMu.Lock()
		delete(c.pending, id)
		c.subMu.Unlock()
	}()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountSubscribe",
		Params: []any{
			account,
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		},
	}
	if err := c.writeJSON(req); err != nil {
		return 0, fmt.Errorf("subscribe %s: %w", account, err)
	}

	select {
	case resp := <-slot:
		if resp.Err != nil {
			return 0, fmt.Errorf("subscribe %s: rpc error %d: %s", account, resp.Err.Code, resp.Err.Message)
		}
		var subID int64
		if err := json.Unmarshal(resp.Result, &subID); err != nil {
			return 0, fmt.Errorf("subscribe %s: bad result: %w", account, err)
		}

		c.subMu.Lock()
		c.subscribed[account] = struct{}{}
		c.subToAccount[subID] = account
		c.accountToSub[account] = subID
		c.subMu.Unlock()

		c.log.Info("subscribed to account",
			zap.String("account", account),
			zap.Int64("subscription_id", subID),
		)
		return subID, nil

	case <-time.After(c.cfg.SubscribeTimeout()):
		c.log.Error("timeout waiting for subscription response", zap.String("account", account))
		return 0, ErrSubscribeTimeout

	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// UnsubscribeAccount cancels the account subscription. Unknown addresses are
// a no-op; failures are logged, not escalated.
func (c *Client) UnsubscribeAccount(ctx context.Context, account string) {
	c.subMu.Lock()
	subID, ok := c.accountToSub[account]
	c.subMu.Unlock()
	if !ok {
		return
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "accountUnsubscribe",
		Params:  []any{subID},
	}
	if err := c.writeJSON(req); err != nil {
		c.log.Error("failed to unsubscribe", zap.String("account", account), zap.Error(err))
		return
	}

	c.subMu.Lock()
	delete(c.subscribed, account)
	delete(c.accountToSub, account)
	delete(c.subToAccount, subID)
	c.subMu.Unlock()
	c.log.Info("unsubscribed from account", zap.String("account", account))
}

// Listen dispatches notifications to handler until the context ends or the
// client is closed. Transport failures reconnect via Connect in an explicit
// outer loop; no notifications flow while disconnected.
func (c *Client) Listen(ctx context.Context, handler Handler) error {
	for {
		if c.closed.Load() {
			return ErrClosed
		}
		if err := c.Connect(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-c.notifyCh:
			handler(n)
		case <-c.reconCh:
			c.log.Warn("websocket connection lost, reconnecting")
			metrics.WSReconnects.Inc()
		}
	}
}

// Close shuts the client down: transport closed, subscription state cleared,
// Connect/Listen loops unblocked. Safe to call mid-reconnect.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.mu.Unlock()

	c.subMu.Lock()
	c.subscribed = make(map[string]struct{})
	c.subToAccount = make(map[int64]string)
	c.accountToSub = make(map[string]int64)
	c.pending = make(map[int64]chan rpcResponse)
	c.subMu.Unlock()

	// wake a blocked Listen
	select {
	case c.reconCh <- struct{}{}:
	default:
	}
	c.log.Info("websocket client closed")
}

// IsConnected reports whether a session is currently established.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SubscribedAccounts returns the membership set of subscribed addresses.
func (c *Client) SubscribedAccounts() []string {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	out := make([]string, 0, len(c.subscribed))
	for a := range c.subscribed {
		out = append(out, a)
	}
	return out
}

// SubscriptionIDs returns the live server-assigned ids, keyed by account.
func (c *Client) SubscriptionIDs() map[string]int64 {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	out := make(map[string]int64, len(c.accountToSub))
	for a, id := range c.accountToSub {
		out[a] = id
	}
	return out
}

// readPump owns all reads for one connection. It fulfills pending request
// slots and forwards account notifications; on any transport error it marks
// the client disconnected and signals Listen.
func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.log.Warn("websocket read failed", zap.Error(err))
			}
			c.markDisconnected(conn)
			return
		}
		c.handleMessage(raw)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var env inbound
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Error("failed to decode message", zap.Error(err))
		return
	}

	// Correlated responses are routed to their pending slot and never reach
	// the notification handler.
	if env.ID != nil {
		c.fulfill(*env.ID, rpcResponse{Result: env.Result, Err: env.Error})
		return
	}

	if env.Method != "accountNotification" {
		return
	}

	var note accountNotification
	if err := json.Unmarshal(raw, &note); err != nil {
		c.log.Error("malformed account notification", zap.Error(err))
		return
	}

	c.subMu.Lock()
	account, ok := c.subToAccount[note.Params.Subscription]
	c.subMu.Unlock()
	if !ok {
		c.log.Debug("notification for unknown subscription",
			zap.Int64("subscription_id", note.Params.Subscription))
		return
	}

	if len(note.Params.Result.Value.Data) == 0 {
		return
	}
	data, err := base64.StdEncoding.DecodeString(note.Params.Result.Value.Data[0])
	if err != nil {
		c.log.Error("failed to decode account data",
			zap.String("account", account), zap.Error(err))
		return
	}

	metrics.WSNotifications.Inc()
	n := Notification{Account: account, Data: data, Slot: note.Params.Result.Context.Slot}
	select {
	case c.notifyCh <- n:
	default:
		c.log.Warn("notification channel full, dropping", zap.String("account", account))
	}
}

// fulfill resolves the pending slot for id exactly once; a duplicate response
// finds no slot and is a no-op.
func (c *Client) fulfill(id int64, resp rpcResponse) {
	c.subMu.Lock()
	slot, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.subMu.Unlock()
	if !ok {
		c.log.Debug("response for unknown request id", zap.Int64("id", id))
		return
	}
	slot <- resp
}

func (c *Client) markDisconnected(conn *websocket.Conn) {
	c.mu.Lock()
	// Only the pump of the current connection may tear state down; a stale
	// pump exiting late must not clobber a fresh session.
	if c.conn == conn {
		c.connected = false
		c.conn = nil
		_ = conn.Close()
	}
	c.mu.Unlock()

	select {
	case c.reconCh <- struct{}{}:
	default:
	}
}

// resubscribeAll replays every subscribed address after a reconnect. The old
// id mappings are dropped first; individual failures are logged and skipped,
// leaving the address subscribed for membership but silent until the next
// reconnect retries it.
func (c *Client) resubscribeAll(ctx context.Context) {
	c.subMu.Lock()
	accounts := make([]string, 0, len(c.subscribed))
	for a := range c.subscribed {
		accounts = append(accounts, a)
	}
	c.subToAccount = make(map[int64]string)
	c.accountToSub = make(map[string]int64)
	c.subMu.Unlock()

	if len(accounts) == 0 {
		return
	}
	c.log.Info("resubscribing to accounts", zap.Int("count", len(accounts)))
	for _, account := range accounts {
		if _, err := c.SubscribeAccount(ctx, account); err != nil {
			c.log.Error("failed to resubscribe, skipping",
				zap.String("account", account), zap.Error(err))
		}
	}
	c.log.Info("resubscription complete")
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteJSON(v)
}
