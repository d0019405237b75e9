package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// allowedOrigin is set once at startup from Config.AllowedOrigin. "*" (the
// default) accepts any origin; any other value must match the request's
// Origin header exactly.
var allowedOrigin atomic.Pointer[string]

// SetAllowedOrigin installs the origin the websocket upgrader accepts.
func SetAllowedOrigin(origin string) {
	allowedOrigin.Store(&origin)
}

// ClientConn wraps one websocket connection's outbound side: a buffered
// send queue drained by its own writePump, so a slow client never blocks
// the engine's tick.
type ClientConn struct {
	ws       *websocket.Conn
	send     chan []byte
	SocketID string
}

func NewClientConn(ws *websocket.Conn, socketID string) *ClientConn {
	return &ClientConn{ws: ws, send: make(chan []byte, 64), SocketID: socketID}
}

// Enqueue queues a message for delivery; non-blocking, drops the message
// if the client's buffer is full rather than stall the caller.
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
	}
}

func (c *ClientConn) EnqueueJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Enqueue(b)
}

func (c *ClientConn) Close() {
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
	_ = c.ws.Close()
}

func (c *ClientConn) writePump() {
	defer c.ws.Close()
	pinger := time.NewTicker(30 * time.Second)
	defer pinger.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-pinger.C:
			c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		want := allowedOrigin.Load()
		if want == nil || *want == "" || *want == "*" {
			return true
		}
		return r.Header.Get("Origin") == *want
	},
}

// session is the per-connection dispatch state: which room/slot this socket
// currently represents, established by create_room/join_room/reconnect and
// required before player_input is accepted.
type session struct {
	room    *Room
	slot    *PlayerSlot
	limiter *InputLimiter
}

// HandleWS upgrades the HTTP request to a websocket and runs the
// connection's read loop until it closes.
func HandleWS(mgr *RoomManager, w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if Log != nil {
			Log.Warnw("ws upgrade failed", "err", err)
		}
		return
	}
	conn := NewClientConn(ws, newSocketID())
	go conn.writePump()
	readLoop(mgr, conn)
}

func readLoop(mgr *RoomManager, conn *ClientConn) {
	defer conn.Close()
	sess := &session{limiter: newInputLimiter()}
	defer func() {
		if sess.room != nil && sess.slot != nil && sess.slot.isConnected() {
			mgr.Disconnect(sess.room, sess.slot)
		}
	}()

	conn.ws.SetReadLimit(1 << 16)
	conn.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, payload, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		dispatch(mgr, conn, sess, payload)
	}
}

func dispatch(mgr *RoomManager, conn *ClientConn, sess *session, payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		conn.EnqueueJSON(RoomErrorPayload{Type: "room_error", Kind: ErrInvalidInput, Message: "malformed message"})
		return
	}

	switch env.Type {
	case "create_room":
		room := mgr.CreateRoom(conn.SocketID, conn)
		sess.room, sess.slot = room, room.Host
		conn.EnqueueJSON(RoomCreatedPayload{Type: "room_created", Room: room.ID, SessionID: room.Host.SessionID, Role: RoleHost})

	case "join_room":
		var msg JoinRoomMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			conn.EnqueueJSON(RoomErrorPayload{Type: "room_error", Kind: ErrInvalidInput, Message: "malformed join_room"})
			return
		}
		room, slot, gerr := mgr.JoinRoom(msg.Room, conn.SocketID, conn)
		if gerr != nil {
			conn.EnqueueJSON(RoomErrorPayload{Type: "room_error", Kind: gerr.Kind, Message: gerr.Message})
			return
		}
		sess.room, sess.slot = room, slot
		conn.EnqueueJSON(RoomJoinedPayload{Type: "room_joined", Room: room.ID, SessionID: slot.SessionID, Role: slot.Role})
		if peer := room.PeerOf(slot); peer != nil {
			broadcastToSlot(peer, PlayerJoinedPayload{Type: "player_joined", Role: slot.Role})
		}

	case "reconnect":
		var msg ReconnectMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			conn.EnqueueJSON(RoomErrorPayload{Type: "room_error", Kind: ErrInvalidInput, Message: "malformed reconnect"})
			return
		}
		room := mgr.RoomByCode(roomCodeFromSession(mgr, msg.SessionID))
		if room == nil {
			conn.EnqueueJSON(ReconnectFailedPayload{Type: "reconnect_failed", Kind: ErrRoomNotFound, Message: errRoomNotFound.Message})
			return
		}
		r, slot, gerr := mgr.Reconnect(room.ID, msg.SessionID, conn.SocketID, conn)
		if gerr != nil {
			conn.EnqueueJSON(ReconnectFailedPayload{Type: "reconnect_failed", Kind: gerr.Kind, Message: gerr.Message})
			return
		}
		sess.room, sess.slot = r, slot
		var mapSnap MapSnapshot
		if r.Engine != nil {
			mapSnap = r.Engine.MapSnapshotFull()
		}
		conn.EnqueueJSON(ReconnectSuccessPayload{Type: "reconnect_success", Role: slot.Role, Map: mapSnap})

	case "leave_room":
		if sess.room != nil && sess.slot != nil {
			mgr.LeaveRoom(sess.room, sess.slot)
		}

	case "player_input":
		handlePlayerInput(conn, sess, payload)

	case "ping":
		var msg PingMessage
		_ = json.Unmarshal(payload, &msg)
		conn.EnqueueJSON(PongPayload{Type: "pong", ClientTimestamp: msg.Timestamp, ServerTimestamp: time.Now().UnixMilli()})

	case "game_over":
		// Client-reported game_over is informational only; the engine is
		// authoritative and already drives finishRoom.

	default:
		conn.EnqueueJSON(RoomErrorPayload{Type: "room_error", Kind: ErrInvalidInput, Message: "unknown message type"})
	}
}

func handlePlayerInput(conn *ClientConn, sess *session, payload []byte) {
	if sess.room == nil || sess.slot == nil || sess.room.Engine == nil {
		return
	}
	if !sess.limiter.Allow() {
		if sess.room.metrics != nil {
			sess.room.metrics.IncLimited()
		}
		conn.EnqueueJSON(RoomErrorPayload{Type: "room_error", Kind: ErrInvalidInput, Message: "player_input rate limit exceeded"})
		return
	}
	var msg InputMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		if sess.room.metrics != nil {
			sess.room.metrics.IncInvalid()
		}
		conn.EnqueueJSON(RoomErrorPayload{Type: "room_error", Kind: ErrInvalidInput, Message: "malformed player_input"})
		return
	}
	in, gerr := validateInput(msg)
	if gerr != nil {
		if sess.room.metrics != nil {
			sess.room.metrics.IncInvalid()
		}
		conn.EnqueueJSON(RoomErrorPayload{Type: "room_error", Kind: gerr.Kind, Message: gerr.Message})
		return
	}
	if sess.slot.Role == RoleHost {
		sess.room.Engine.SetHostInput(in)
	} else {
		sess.room.Engine.SetGuestInput(in)
	}
	if sess.room.metrics != nil {
		sess.room.metrics.IncAccepted()
	}
}

// roomCodeFromSession scans rooms for the one holding sessionID. Reconnect
// messages carry only the session id, not a room code.
func roomCodeFromSession(mgr *RoomManager, sessionID SessionID) string {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	for code, room := range mgr.rooms {
		if room.SlotForSession(sessionID) != nil {
			return code
		}
	}
	return ""
}

func broadcastToSlot(slot *PlayerSlot, payload any) {
	if slot == nil {
		return
	}
	if c := slot.Conn(); c != nil {
		c.EnqueueJSON(payload)
	}
}

func broadcastToRoom(room *Room, payload any) {
	room.mu.Lock()
	host, guest := room.Host, room.Guest
	room.mu.Unlock()
	broadcastToSlot(host, payload)
	broadcastToSlot(guest, payload)
}

// runBroadcastLoop pushes state_sync (and any map_changes) to both slots at
// a fixed cadence, decoupled from the 60Hz tick.
func runBroadcastLoop(room *Room) {
	ticker := time.NewTicker(BroadcastInterval)
	defer ticker.Stop()
	room.mu.Lock()
	stop := room.broadcastStop
	room.mu.Unlock()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			engine := room.Engine
			if engine == nil {
				continue
			}
			broadcastToRoom(room, engine.LatestSnapshot())
			if changes := engine.TakeMapChanges(); changes != nil {
				broadcastToRoom(room, changes)
			}
			for _, ev := range engine.DrainAddendum() {
				broadcastToRoom(room, map[string]any{"type": ev.Type, "payload": ev.Payload})
			}
		}
	}
}
