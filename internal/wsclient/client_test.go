package wsclient

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/solarb/internal/config"
	"go.uber.org/zap"
)

const testAccount = "3ucNos4NbumPLZNWztqGHNFFgkHeRMBQAVemeeomsUxv"

func newTestConfig(endpoint string) *config.Config {
	cfg := &config.Config{}
	cfg.RPC.Endpoint = endpoint
	cfg.WebSocket.ReconnectIntervalSec = 1
	cfg.WebSocket.ConnectionTimeoutSec = 5
	cfg.WebSocket.SubscribeTimeoutSec = 1
	cfg.WebSocket.SubscribeRate = 100
	return cfg
}

// newTestServer upgrades every request and hands the connection to handler.
func newTestServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := NewClient(newTestConfig(endpoint), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// grantSubscriptions answers every accountSubscribe with sequential ids and
// reports each subscribed account on reqs.
func grantSubscriptions(nextID *atomic.Int64, reqs chan<- string) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req["method"] != "accountSubscribe" {
				continue
			}
			if reqs != nil {
				reqs <- req["params"].([]any)[0].(string)
			}
			_ = conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"id":      req["id"],
				"result":  nextID.Add(1),
			})
		}
	}
}

func TestSubscribeAccount_DedupByAddress(t *testing.T) {
	var nextID atomic.Int64
	reqs := make(chan string, 10)
	_, url := newTestServer(t, grantSubscriptions(&nextID, reqs))

	c := newTestClient(t, url)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))

	id1, err := c.SubscribeAccount(ctx, testAccount)
	require.NoError(t, err)
	id2, err := c.SubscribeAccount(ctx, testAccount)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, reqs, 1, "second subscribe must not issue a wire request")
	assert.Equal(t, []string{testAccount}, c.SubscribedAccounts())
}

func TestSubscribeAccount_Timeout(t *testing.T) {
	// server swallows requests and never answers
	_, url := newTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := newTestClient(t, url)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))

	_, err := c.SubscribeAccount(ctx, testAccount)
	assert.ErrorIs(t, err, ErrSubscribeTimeout)
	assert.Empty(t, c.SubscribedAccounts(), "timed-out subscribe must not mark the address subscribed")
}

func TestListen_ForwardsNotifications(t *testing.T) {
	payload := []byte("pool account bytes")
	var nextID atomic.Int64
	connCh := make(chan *websocket.Conn, 1)
	_, url := newTestServer(t, func(conn *websocket.Conn) {
		connCh <- conn
		grantSubscriptions(&nextID, nil)(conn)
	})

	c := newTestClient(t, url)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	subID, err := c.SubscribeAccount(ctx, testAccount)
	require.NoError(t, err)

	got := make(chan Notification, 1)
	go func() { _ = c.Listen(ctx, func(n Notification) { got <- n }) }()

	serverConn := <-connCh
	// garbage first: must be dropped without killing the loop
	require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, serverConn.WriteJSON(map[string]any{
		"jsonrpc": "2.0",
		"method":  "accountNotification",
		"params": map[string]any{
			"subscription": subID,
			"result": map[string]any{
				"context": map[string]any{"slot": 4242},
				"value": map[string]any{
					"data": []string{base64.StdEncoding.EncodeToString(payload), "base64"},
				},
			},
		},
	}))

	select {
	case n := <-got:
		assert.Equal(t, testAccount, n.Account)
		assert.Equal(t, payload, n.Data)
		assert.Equal(t, uint64(4242), n.Slot)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a notification, got none")
	}
}

func TestListen_ResubscribesAfterReconnect(t *testing.T) {
	var (
		connSeq atomic.Int64
		nextID  atomic.Int64
	)
	reqs := make(chan string, 10)
	_, url := newTestServer(t, func(conn *websocket.Conn) {
		seq := connSeq.Add(1)
		defer conn.Close()
		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req["method"] != "accountSubscribe" {
				continue
			}
			reqs <- req["params"].([]any)[0].(string)
			_ = conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"id":      req["id"],
				"result":  nextID.Add(1),
			})
			if seq == 1 {
				// first session dies right after granting the subscription
				return
			}
		}
	})

	c := newTestClient(t, url)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	oldID, err := c.SubscribeAccount(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, testAccount, <-reqs)

	go func() { _ = c.Listen(ctx, func(Notification) {}) }()

	// reconnect drives the address back through the subscribe path
	select {
	case acct := <-reqs:
		assert.Equal(t, testAccount, acct)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a resubscription request after reconnect")
	}

	require.Eventually(t, func() bool {
		ids := c.SubscriptionIDs()
		id, ok := ids[testAccount]
		return ok && id != oldID
	}, 5*time.Second, 20*time.Millisecond, "address must carry a fresh server-assigned id")

	assert.Equal(t, []string{testAccount}, c.SubscribedAccounts())
}

func TestUnsubscribeAccount(t *testing.T) {
	var nextID atomic.Int64
	unsub := make(chan struct{}, 1)
	_, url := newTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req["method"] {
			case "accountSubscribe":
				_ = conn.WriteJSON(map[string]any{
					"jsonrpc": "2.0",
					"id":      req["id"],
					"result":  nextID.Add(1),
				})
			case "accountUnsubscribe":
				unsub <- struct{}{}
			}
		}
	})

	c := newTestClient(t, url)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))

	// unknown address: no-op, no wire traffic
	c.UnsubscribeAccount(ctx, "unknown")
	assert.Empty(t, unsub)

	_, err := c.SubscribeAccount(ctx, testAccount)
	require.NoError(t, err)

	c.UnsubscribeAccount(ctx, testAccount)
	select {
	case <-unsub:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an unsubscribe request")
	}
	assert.Empty(t, c.SubscribedAccounts())
	assert.Empty(t, c.SubscriptionIDs())
}

func TestClose_RejectsFurtherUse(t *testing.T) {
	var nextID atomic.Int64
	_, url := newTestServer(t, grantSubscriptions(&nextID, nil))

	c := newTestClient(t, url)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))

	c.Close()
	_, err := c.SubscribeAccount(ctx, testAccount)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Connect(ctx), ErrClosed)
	assert.ErrorIs(t, c.Listen(ctx, func(Notification) {}), ErrClosed)

	// closing twice is safe
	c.Close()
}

func TestWSEndpointRewrite(t *testing.T) {
	assert.Equal(t, "wss://api.mainnet-beta.solana.com", wsEndpoint("https://api.mainnet-beta.solana.com"))
	assert.Equal(t, "ws://localhost:8899", wsEndpoint("http://localhost:8899"))
	assert.Equal(t, "wss://rpc.example.com", wsEndpoint("wss://rpc.example.com"))
}
