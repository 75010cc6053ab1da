package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/tremor/internal/link"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   []string
	fail   bool
	closed bool
}

func (c *fakeConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.msgs = append(c.msgs, string(msg))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

// joinNode runs the join synchronously against a hub that is not running.
func joinNode(h *Hub, c Conn) int {
	reply := make(chan int, 1)
	h.handle(nodeJoin{conn: c, reply: reply})
	return <-reply
}

func joinConsole(h *Hub, c Conn) int {
	reply := make(chan int, 1)
	h.handle(consoleJoin{conn: c, reply: reply})
	return <-reply
}

func TestHub_AssignsLowestFreeSlot(t *testing.T) {
	h := NewHub(2)

	first := &fakeConn{}
	assert.Equal(t, 1, joinNode(h, first))
	assert.Equal(t, 2, joinNode(h, &fakeConn{}))

	rejected := &fakeConn{}
	assert.Equal(t, 0, joinNode(h, rejected), "all slots taken")

	h.handle(nodeLeave{player: 1, conn: first})
	assert.Equal(t, 1, joinNode(h, &fakeConn{}), "freed slot reused")
}

func TestHub_RoutesConsoleMessages(t *testing.T) {
	h := NewHub(DefaultMaxPlayers)
	n1, n2 := &fakeConn{}, &fakeConn{}
	joinNode(h, n1)
	joinNode(h, n2)

	h.handle(consoleMessage{payload: []byte(`{"player_id":2,"progress":50}`)})
	assert.Empty(t, n1.messages())
	assert.Equal(t, []string{`{"player_id":2,"progress":50}`}, n2.messages())

	h.handle(consoleMessage{payload: []byte(`{"light":"green"}`)})
	assert.Equal(t, []string{`{"light":"green"}`}, n1.messages())
	assert.Len(t, n2.messages(), 2)

	// Ignored: not JSON, unknown player, bad player_id
	h.handle(consoleMessage{payload: []byte("WINNER")})
	h.handle(consoleMessage{payload: []byte(`{"player_id":4,"status":"winner"}`)})
	h.handle(consoleMessage{payload: []byte(`{"player_id":"one"}`)})
	h.handle(consoleMessage{payload: []byte(`{"player_id":1.5}`)})
	assert.Len(t, n1.messages(), 1)
	assert.Len(t, n2.messages(), 2)

	// An integral float names the player
	h.handle(consoleMessage{payload: []byte(`{"player_id":1.0,"progress":10}`)})
	assert.Equal(t, `{"player_id":1.0,"progress":10}`, n1.messages()[1])
	assert.Len(t, n2.messages(), 2)

	// Valid JSON that is not an object is broadcast
	h.handle(consoleMessage{payload: []byte(`[1]`)})
	assert.Equal(t, `[1]`, n1.messages()[2])
	assert.Equal(t, `[1]`, n2.messages()[2])
}

func TestHub_NodeLinesAndStatusReachConsoles(t *testing.T) {
	h := NewHub(DefaultMaxPlayers)
	console := &fakeConn{}
	joinConsole(h, console)

	node := &fakeConn{}
	p := joinNode(h, node)
	h.handle(nodeLine{player: p, conn: node, line: []byte("5")})
	h.handle(nodeLeave{player: p, conn: node})
	h.handle(nodeLine{player: p, conn: node, line: []byte("6")})

	assert.Equal(t, []string{
		`{"status":"connected","player":1}`,
		`{"player":1,"data":"5"}`,
		`{"status":"disconnected","player":1}`,
	}, console.messages())
}

func TestHub_DropsFailedPeers(t *testing.T) {
	h := NewHub(DefaultMaxPlayers)
	badNode := &fakeConn{fail: true}
	joinNode(h, badNode)
	badConsole := &fakeConn{fail: true}
	joinConsole(h, badConsole)

	h.handle(consoleMessage{payload: []byte(`{"light":"red"}`)})
	assert.True(t, badNode.closed)
	assert.Empty(t, h.nodes)
	assert.True(t, badConsole.closed)
	assert.Empty(t, h.consoles)
}

func TestHub_StaleConnectionCannotTouchReusedSlot(t *testing.T) {
	h := NewHub(DefaultMaxPlayers)
	console := &fakeConn{}
	joinConsole(h, console)

	stale := &fakeConn{fail: true}
	require.Equal(t, 1, joinNode(h, stale))

	// The failed write frees slot 1 before the stale reader notices.
	h.handle(consoleMessage{payload: []byte(`{"light":"red"}`)})
	require.True(t, stale.closed)

	fresh := &fakeConn{}
	require.Equal(t, 1, joinNode(h, fresh), "freed slot reused")

	h.handle(nodeLine{player: 1, conn: stale, line: []byte("9")})
	h.handle(nodeLeave{player: 1, conn: stale})

	assert.False(t, fresh.closed)
	assert.Same(t, fresh, h.nodes[1].(*fakeConn))
	assert.Equal(t, []string{
		`{"status":"connected","player":1}`,
		`{"status":"disconnected","player":1}`,
		`{"status":"connected","player":1}`,
	}, console.messages(), "lines and leaves from the old connection are ignored")

	h.handle(nodeLine{player: 1, conn: fresh, line: []byte("4")})
	assert.Equal(t, `{"player":1,"data":"4"}`, console.messages()[3])
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestServer_EndToEnd(t *testing.T) {
	hub := NewHub(DefaultMaxPlayers)
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(NewServer(hub, "").Handler())
	defer srv.Close()
	ctx := context.Background()

	console, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(srv, "/console"), nil)
	require.NoError(t, err)
	defer console.Close()

	// The console must be registered to see the node's connected status
	require.Eventually(t, func() bool { return hub.Consoles() == 1 }, 2*time.Second, 5*time.Millisecond)

	node, err := link.DialWebSocket(ctx, wsURL(srv, "/node"), nil)
	require.NoError(t, err)
	defer node.Close()

	require.Eventually(t, func() bool {
		return len(hub.Players()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	readConsole := func() map[string]any {
		_ = console.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := console.ReadMessage()
		require.NoError(t, err)
		var v map[string]any
		require.NoError(t, json.Unmarshal(msg, &v))
		return v
	}

	assert.Equal(t, map[string]any{"status": "connected", "player": float64(1)}, readConsole())

	require.NoError(t, console.WriteMessage(websocket.TextMessage, []byte(`{"player_id":1,"status":"winner"}`)))
	select {
	case line := <-node.Lines():
		assert.Equal(t, `{"player_id":1,"status":"winner"}`, string(line))
	case <-time.After(2 * time.Second):
		t.Fatal("node did not receive routed command")
	}

	require.NoError(t, node.Send(ctx, 3))
	assert.Equal(t, map[string]any{"player": float64(1), "data": "3"}, readConsole())

	require.NoError(t, node.Close())
	assert.Equal(t, map[string]any{"status": "disconnected", "player": float64(1)}, readConsole())
}
