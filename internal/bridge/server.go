package bridge

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dyluth/tremor/internal/link"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	writeWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	// Consoles are served from anywhere on the LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket connection to Conn. Writes are serialized.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	once sync.Once
	done chan struct{}
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{conn: conn, done: make(chan struct{})}

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.pingLoop()
	return c
}

func (c *wsConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Server exposes a hub over HTTP: nodes connect to /node, consoles to /console.
type Server struct {
	hub    *Hub
	server *http.Server
}

// NewServer creates a bridge server for hub listening on addr (e.g. ":8765").
func NewServer(hub *Hub, addr string) *Server {
	s := &Server{hub: hub}
	mux := http.NewServeMux()
	mux.HandleFunc("/node", s.handleNode)
	mux.HandleFunc("/console", s.handleConsole)
	s.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe binds addr and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	log.Printf("[INFO] Bridge listening on %s (nodes: /node, consoles: /console)", ln.Addr())
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("bridge server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WARN] Node upgrade failed: %v", err)
		return
	}
	conn := newWSConn(ws)

	reply := make(chan int, 1)
	if !s.hub.post(nodeJoin{conn: conn, reply: reply}) {
		conn.Close()
		return
	}
	player := <-reply
	if player == 0 {
		conn.Close()
		return
	}

	defer s.hub.post(nodeLeave{player: player, conn: conn})
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		for _, line := range link.SplitLines(payload) {
			if !s.hub.post(nodeLine{player: player, conn: conn, line: line}) {
				return
			}
		}
	}
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WARN] Console upgrade failed: %v", err)
		return
	}
	conn := newWSConn(ws)

	reply := make(chan int, 1)
	if !s.hub.post(consoleJoin{conn: conn, reply: reply}) {
		conn.Close()
		return
	}
	id := <-reply
	log.Printf("[INFO] Console %d connected from %s", id, r.RemoteAddr)

	defer s.hub.post(consoleLeave{id: id})
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			log.Printf("[INFO] Console %d disconnected", id)
			return
		}
		if !s.hub.post(consoleMessage{payload: payload}) {
			return
		}
	}
}
