package link

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dyluth/tremor/internal/command"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second
	wsWriteWait  = 10 * time.Second
)

// WebSocket is a node's connection to a host bridge. Text messages from the bridge are
// command lines; shake scores go back as text messages.
type WebSocket struct {
	conn  *websocket.Conn
	lines chan []byte

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// DialWebSocket connects to url (e.g. ws://localhost:8765/node) and starts the read and ping loops.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	ws := &WebSocket{
		conn:  conn,
		lines: make(chan []byte, 8),
		done:  make(chan struct{}),
	}

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go ws.readLoop()
	go ws.pingLoop()

	return ws, nil
}

func (ws *WebSocket) Lines() <-chan []byte {
	return ws.lines
}

// Send writes a shake score as a text message. Implements telemetry.Sink.
func (ws *WebSocket) Send(_ context.Context, score int) error {
	return ws.WriteLine([]byte(strconv.Itoa(score)))
}

// WriteLine writes one text message.
func (ws *WebSocket) WriteLine(line []byte) error {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	_ = ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := ws.conn.WriteMessage(websocket.TextMessage, line); err != nil {
		return fmt.Errorf("failed to write websocket message: %w", err)
	}
	return nil
}

// Close sends a close frame and tears down the connection. Safe to call multiple times.
func (ws *WebSocket) Close() error {
	var err error
	ws.once.Do(func() {
		close(ws.done)
		ws.writeMu.Lock()
		_ = ws.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait))
		ws.writeMu.Unlock()
		err = ws.conn.Close()
	})
	return err
}

func (ws *WebSocket) readLoop() {
	defer close(ws.lines)

	for {
		msgType, payload, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WARN] WebSocket read failed: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		for _, line := range SplitLines(payload) {
			select {
			case ws.lines <- line:
			case <-ws.done:
				return
			}
		}
	}
}

func (ws *WebSocket) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ws.writeMu.Lock()
			err := ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			ws.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ws.done:
			return
		}
	}
}

// SplitLines splits a message payload into non-blank lines, each cut to
// command.MaxLineLength bytes with any trailing '\r' removed.
func SplitLines(payload []byte) [][]byte {
	var out [][]byte
	for _, line := range bytes.Split(payload, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if len(line) > command.MaxLineLength {
			line = line[:command.MaxLineLength]
		}
		out = append(out, bytes.Clone(line))
	}
	return out
}
