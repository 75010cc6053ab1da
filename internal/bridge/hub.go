// Package bridge relays between host consoles and controller nodes over websockets.
//
// Nodes are numbered 1..MaxPlayers in connection order, reusing freed numbers.
// A console message carrying "player_id" goes to that player only; any other JSON
// value is broadcast to every node; non-JSON messages are ignored. Each line a node
// sends is wrapped as {"player": n, "data": line} and fanned out to every console.
package bridge

import (
	"encoding/json"
	"log"
	"math"
	"sort"
)

// DefaultMaxPlayers is the number of node slots.
const DefaultMaxPlayers = 4

// Conn is one websocket peer as seen by the hub.
type Conn interface {
	Send(msg []byte) error
	Close() error
}

// Hub messages. All hub state is owned by the Run goroutine.
type (
	nodeJoin struct {
		conn  Conn
		reply chan int // assigned player number, 0 if every slot is taken
	}
	// nodeLeave and nodeLine carry the connection so a stale reader cannot act
	// on a slot that has since been given to another node.
	nodeLeave struct {
		player int
		conn   Conn
	}
	nodeLine struct {
		player int
		conn   Conn
		line   []byte
	}
	consoleJoin struct {
		conn  Conn
		reply chan int
	}
	consoleLeave struct {
		id int
	}
	consoleMessage struct {
		payload []byte
	}
	listPlayers struct {
		reply chan []int
	}
	countConsoles struct {
		reply chan int
	}
)

// Status is broadcast to consoles when a node connects or disconnects.
type Status struct {
	Status string `json:"status"`
	Player int    `json:"player"`
}

// NodeMessage wraps a line received from a node.
type NodeMessage struct {
	Player int    `json:"player"`
	Data   string `json:"data"`
}

// Hub routes messages between consoles and nodes.
type Hub struct {
	Inbox chan any

	maxPlayers  int
	nodes       map[int]Conn
	consoles    map[int]Conn
	nextConsole int
	quit        chan struct{}
}

// NewHub creates a hub with maxPlayers node slots. Call Run to start it.
func NewHub(maxPlayers int) *Hub {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	return &Hub{
		Inbox:       make(chan any, 64),
		maxPlayers:  maxPlayers,
		nodes:       make(map[int]Conn),
		consoles:    make(map[int]Conn),
		nextConsole: 1,
		quit:        make(chan struct{}),
	}
}

// Stop ends Run and closes every connection.
func (h *Hub) Stop() {
	close(h.quit)
}

// Run processes inbox messages until Stop is called.
func (h *Hub) Run() {
	defer h.closeAll()
	for {
		select {
		case <-h.quit:
			return
		case msg := <-h.Inbox:
			h.handle(msg)
		}
	}
}

// post delivers msg to the hub, returning false once the hub has stopped.
func (h *Hub) post(msg any) bool {
	select {
	case h.Inbox <- msg:
		return true
	case <-h.quit:
		return false
	}
}

// Players returns the connected player numbers in ascending order.
func (h *Hub) Players() []int {
	reply := make(chan []int, 1)
	if !h.post(listPlayers{reply: reply}) {
		return nil
	}
	select {
	case players := <-reply:
		return players
	case <-h.quit:
		return nil
	}
}

// Consoles returns the number of connected consoles.
func (h *Hub) Consoles() int {
	reply := make(chan int, 1)
	if !h.post(countConsoles{reply: reply}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-h.quit:
		return 0
	}
}

func (h *Hub) handle(msg any) {
	switch m := msg.(type) {
	case nodeJoin:
		player := h.freeSlot()
		if player != 0 {
			h.nodes[player] = m.conn
			log.Printf("[INFO] Node connected as player %d", player)
			h.toConsoles(Status{Status: "connected", Player: player})
		} else {
			log.Printf("[WARN] Node rejected: all %d player slots taken", h.maxPlayers)
		}
		m.reply <- player
	case nodeLeave:
		if c, ok := h.nodes[m.player]; ok && c == m.conn {
			_ = c.Close()
			delete(h.nodes, m.player)
			log.Printf("[INFO] Player %d disconnected", m.player)
			h.toConsoles(Status{Status: "disconnected", Player: m.player})
		}
	case nodeLine:
		if c, ok := h.nodes[m.player]; ok && c == m.conn {
			h.toConsoles(NodeMessage{Player: m.player, Data: string(m.line)})
		}
	case consoleJoin:
		id := h.nextConsole
		h.nextConsole++
		h.consoles[id] = m.conn
		m.reply <- id
	case consoleLeave:
		if c, ok := h.consoles[m.id]; ok {
			_ = c.Close()
			delete(h.consoles, m.id)
		}
	case consoleMessage:
		h.route(m.payload)
	case listPlayers:
		players := make([]int, 0, len(h.nodes))
		for p := range h.nodes {
			players = append(players, p)
		}
		sort.Ints(players)
		m.reply <- players
	case countConsoles:
		m.reply <- len(h.consoles)
	default:
		log.Printf("[WARN] Hub ignored unknown message %T", msg)
	}
}

// route forwards a console message unchanged: to one player if it is an object
// naming one, else to all.
func (h *Hub) route(payload []byte) {
	if !json.Valid(payload) {
		log.Printf("[DEBUG] Ignoring non-JSON console message: %q", payload)
		return
	}

	var fields map[string]json.RawMessage
	var raw json.RawMessage
	targeted := false
	if json.Unmarshal(payload, &fields) == nil {
		raw, targeted = fields["player_id"]
	}
	if !targeted {
		for p := range h.nodes {
			h.toNode(p, payload)
		}
		return
	}

	player, ok := playerNumber(raw)
	if !ok {
		log.Printf("[WARN] Target player %s not connected", raw)
		return
	}
	if _, ok := h.nodes[player]; !ok {
		log.Printf("[WARN] Target player %d not connected", player)
		return
	}
	h.toNode(player, payload)
}

// playerNumber accepts any JSON number with an integral value, so 1 and 1.0 both name player 1.
func playerNumber(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func (h *Hub) toNode(player int, payload []byte) {
	c := h.nodes[player]
	if err := c.Send(payload); err != nil {
		log.Printf("[WARN] Write to player %d failed: %v", player, err)
		h.handle(nodeLeave{player: player, conn: c})
	}
}

func (h *Hub) toConsoles(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Printf("[ERROR] Failed to encode console message: %v", err)
		return
	}

	var failed []int
	for id, c := range h.consoles {
		if err := c.Send(msg); err != nil {
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		h.handle(consoleLeave{id: id})
	}
}

func (h *Hub) freeSlot() int {
	for p := 1; p <= h.maxPlayers; p++ {
		if _, taken := h.nodes[p]; !taken {
			return p
		}
	}
	return 0
}

func (h *Hub) closeAll() {
	for _, c := range h.nodes {
		_ = c.Close()
	}
	for _, c := range h.consoles {
		_ = c.Close()
	}
}
