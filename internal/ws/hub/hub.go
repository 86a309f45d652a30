package hub

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Connection is one websocket client registered with the hub. A user may hold
// any number of connections at once (multi-device); each tracks its own room
// set independently.
type Connection struct {
	conn      *websocket.Conn
	send      chan []byte
	rooms     map[string]struct{}
	userID    string
	closeOnce sync.Once
}

func (c *Connection) UserID() string { return c.userID }

type commandKind int

const (
	cmdRegister commandKind = iota
	cmdUnregister
	cmdJoin
	cmdLeave
	cmdBroadcast
	cmdBarrier
)

type command struct {
	kind    commandKind
	conn    *Connection
	room    string
	payload []byte
	exclude *Connection
	done    chan struct{}
}

// Hub is the room membership registry: a mapping from room name to the set of
// connections subscribed to it. All mutations and broadcasts funnel through a
// single command channel consumed by Run, so join/leave/broadcast are atomic
// relative to each other and FIFO per sender: a connection that joins a room
// sees every broadcast it issues to that room afterwards.
type Hub struct {
	commands chan command
	rooms    map[string]map[*Connection]struct{}
}

func NewConnection(conn *websocket.Conn, userID string) *Connection {
	return &Connection{
		conn:   conn,
		send:   make(chan []byte, 128),
		rooms:  make(map[string]struct{}),
		userID: userID,
	}
}

func NewHub() *Hub {
	return &Hub{
		commands: make(chan command, 256),
		rooms:    make(map[string]map[*Connection]struct{}),
	}
}

func (h *Hub) Run() {
	for cmd := range h.commands {
		switch cmd.kind {
		case cmdRegister:
			// Nothing to do until the connection joins a room.

		case cmdUnregister:
			for room := range cmd.conn.rooms {
				h.removeFromRoom(cmd.conn, room)
			}
			cmd.conn.CloseSend()

		case cmdJoin:
			room := h.rooms[cmd.room]
			if room == nil {
				room = make(map[*Connection]struct{})
				h.rooms[cmd.room] = room
			}
			room[cmd.conn] = struct{}{}
			cmd.conn.rooms[cmd.room] = struct{}{}

		case cmdLeave:
			h.removeFromRoom(cmd.conn, cmd.room)

		case cmdBroadcast:
			for c := range h.rooms[cmd.room] {
				if c == cmd.exclude {
					continue
				}
				c.Send(cmd.payload)
			}

		case cmdBarrier:
			close(cmd.done)
		}
	}
}

func (h *Hub) removeFromRoom(c *Connection, room string) {
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	delete(c.rooms, room)
}

func (h *Hub) Register(c *Connection) {
	h.commands <- command{kind: cmdRegister, conn: c}
}

// Unregister removes the connection from every room it joined and closes its
// send channel. Safe to call once per connection, typically on disconnect.
func (h *Hub) Unregister(c *Connection) {
	h.commands <- command{kind: cmdUnregister, conn: c}
}

func (h *Hub) Join(c *Connection, room string) {
	h.commands <- command{kind: cmdJoin, conn: c, room: room}
}

func (h *Hub) Leave(c *Connection, room string) {
	h.commands <- command{kind: cmdLeave, conn: c, room: room}
}

func (h *Hub) Broadcast(room string, payload []byte) {
	h.commands <- command{kind: cmdBroadcast, room: room, payload: payload}
}

// BroadcastExcept delivers to every room member except one connection. Other
// connections of the same user still receive the payload.
func (h *Hub) BroadcastExcept(room string, payload []byte, exclude *Connection) {
	h.commands <- command{kind: cmdBroadcast, room: room, payload: payload, exclude: exclude}
}

// barrier blocks until every previously queued command has been applied.
func (h *Hub) barrier() {
	done := make(chan struct{})
	h.commands <- command{kind: cmdBarrier, done: done}
	<-done
}

// Send queues a payload for the write pump, dropping it if the client's
// buffer is full. Delivery to slow consumers is best effort.
func (c *Connection) Send(b []byte) {
	select {
	case c.send <- b:
	default:
	}
}

func (c *Connection) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
