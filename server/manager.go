package server

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RoomManager owns every room's lifecycle: creation, join/leave,
// disconnect/reconnect grace handling, and garbage collection of finished
// rooms. One process-wide instance, constructed once via sync.Once.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	rng   *rand.Rand

	reconnectGrace time.Duration
	maxPlayers     int
	log            *zap.SugaredLogger
	enableAddendum bool
}

var (
	defaultManager *RoomManager
	managerOnce    sync.Once
)

// GetRoomManager returns the process-wide RoomManager, constructing it on
// first use with default settings. Call InitRoomManager first to override
// the reconnect grace period or logger.
func GetRoomManager() *RoomManager {
	managerOnce.Do(func() {
		defaultManager = newRoomManager(ReconnectGraceTime, MaxPlayersPerRoom, Log, false)
	})
	return defaultManager
}

// InitRoomManager installs the process-wide RoomManager with explicit
// settings; must be called before the first GetRoomManager if defaults
// don't apply. Safe to call once at startup only.
func InitRoomManager(grace time.Duration, maxPlayers int, log *zap.SugaredLogger, enableAddendum bool) *RoomManager {
	managerOnce.Do(func() {
		defaultManager = newRoomManager(grace, maxPlayers, log, enableAddendum)
	})
	return defaultManager
}

func newRoomManager(grace time.Duration, maxPlayers int, log *zap.SugaredLogger, enableAddendum bool) *RoomManager {
	return &RoomManager{
		rooms:          make(map[string]*Room),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		reconnectGrace: grace,
		maxPlayers:     maxPlayers,
		log:            log,
		enableAddendum: enableAddendum,
	}
}

func (m *RoomManager) generateRoomCode() string {
	b := make([]byte, RoomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[m.rng.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}

// CreateRoom allocates a fresh room with a unique code and host slot bound
// to conn, starting it in the waiting state.
func (m *RoomManager) CreateRoom(socketID string, conn *ClientConn) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	var code string
	for {
		code = m.generateRoomCode()
		if _, exists := m.rooms[code]; !exists {
			break
		}
	}
	room := newRoom(code)
	room.Host = newPlayerSlot(RoleHost, ColorYellow, socketID, conn)
	m.rooms[code] = room
	if m.log != nil {
		m.log.Infow("room created", "room", code)
	}
	return room
}

// JoinRoom binds conn to the guest slot of an existing waiting room and,
// once both slots are filled, starts its engine and broadcast loop.
func (m *RoomManager) JoinRoom(code, socketID string, conn *ClientConn) (*Room, *PlayerSlot, *GameError) {
	m.mu.RLock()
	room, ok := m.rooms[code]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, errRoomNotFound
	}
	if m.maxPlayers < MaxPlayersPerRoom {
		return nil, nil, errRoomFull
	}

	room.mu.Lock()
	if room.status == RoomFinished {
		room.mu.Unlock()
		return nil, nil, errRoomNotFound
	}
	if room.Guest != nil {
		room.mu.Unlock()
		return nil, nil, errRoomFull
	}
	room.Guest = newPlayerSlot(RoleGuest, ColorGreen, socketID, conn)
	slot := room.Guest
	bothPresent := room.Host != nil && room.Guest != nil
	room.mu.Unlock()

	if bothPresent {
		m.startEngine(room)
	}
	return room, slot, nil
}

// startEngine constructs and runs the room's Engine and broadcast loop.
// Called once, exactly when the second slot fills.
func (m *RoomManager) startEngine(room *Room) {
	room.mu.Lock()
	if room.Engine != nil {
		room.mu.Unlock()
		return
	}
	engine := NewEngine(room.ID, room.Host, room.Guest, m.log, room.metrics, m.enableAddendum)
	engine.onGameOver = func(winner, reason string) {
		m.finishRoom(room, winner, reason)
	}
	room.Engine = engine
	room.status = RoomPlaying
	room.broadcastStop = make(chan struct{})
	room.mu.Unlock()

	go engine.Run()
	go runBroadcastLoop(room)

	now := time.Now().UnixMilli()
	broadcastToRoom(room, GameStartPayload{Type: "game_start", Timestamp: now})
	broadcastToRoom(room, GameStateInitPayload{
		Type:           "game_state_init",
		Seed:           seedFromRoomID(room.ID),
		MapID:          DefaultMapID,
		HostPosition:   HostSpawn,
		GuestPosition:  GuestSpawn,
		HostTankColor:  string(ColorYellow),
		GuestTankColor: string(ColorGreen),
		Timestamp:      now,
	})
}

// finishRoom stops a room's engine/broadcast loop and marks it finished.
// It is idempotent: a room already finished is left untouched.
func (m *RoomManager) finishRoom(room *Room, winner, reason string) {
	room.mu.Lock()
	if room.status == RoomFinished {
		room.mu.Unlock()
		return
	}
	room.status = RoomFinished
	engine := room.Engine
	stop := room.broadcastStop
	room.mu.Unlock()

	if engine != nil {
		engine.Stop()
	}
	if stop != nil {
		close(stop)
	}

	payload := GameOverPayload{Type: "game_over", Winner: winner, Reason: reason, Timestamp: time.Now().UnixMilli()}
	broadcastToRoom(room, payload)
}

// LeaveRoom handles an explicit leave_room: the room ends immediately for
// both slots. This is a two-player cooperative session, not a lobby either
// slot can continue solo, so one player leaving ends the attempt.
func (m *RoomManager) LeaveRoom(room *Room, slot *PlayerSlot) {
	peer := room.PeerOf(slot)
	if peer != nil {
		broadcastToSlot(peer, PlayerLeftPayload{Type: "player_left", Role: slot.Role})
	}
	m.finishRoom(room, "draw", "player_left")
}

// Disconnect marks a slot disconnected after its socket drops without an
// explicit leave_room, starting the reconnect grace timer.
func (m *RoomManager) Disconnect(room *Room, slot *PlayerSlot) {
	slot.markDisconnected()
	peer := room.PeerOf(slot)
	if peer != nil {
		broadcastToSlot(peer, OpponentDisconnectedPayload{
			Type: "opponent_disconnected", Role: slot.Role,
			GraceSeconds: int(m.reconnectGrace / time.Second),
		})
	}

	slot.armReconnectTimer(m.reconnectGrace, func() {
		if !slot.isConnected() {
			m.LeaveRoom(room, slot)
		}
	})
}

// Reconnect rebinds a disconnected slot to a new connection by session id.
func (m *RoomManager) Reconnect(code string, sessionID SessionID, socketID string, conn *ClientConn) (*Room, *PlayerSlot, *GameError) {
	m.mu.RLock()
	room, ok := m.rooms[code]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, newError(ErrRoomNotFound, "no room exists with that code")
	}
	if room.Status() == RoomFinished {
		return nil, nil, newError(ErrRoomNotFound, "room has already ended")
	}
	slot := room.SlotForSession(sessionID)
	if slot == nil {
		return nil, nil, newError(ErrUnauthorized, "session does not belong to this room")
	}
	slot.markConnected(socketID, conn)
	if peer := room.PeerOf(slot); peer != nil {
		broadcastToSlot(peer, OpponentReconnectedPayload{Type: "opponent_reconnected", Role: slot.Role})
	}
	return room, slot, nil
}

// RoomByCode returns the room for code, or nil.
func (m *RoomManager) RoomByCode(code string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[code]
}

// Snapshot returns a read-only summary of every room, for the admin
// introspection endpoint.
func (m *RoomManager) Snapshot() []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]map[string]any, 0, len(m.rooms))
	for code, room := range m.rooms {
		out = append(out, map[string]any{
			"room":    code,
			"status":  room.Status(),
			"created": room.CreatedAt,
			"metrics": room.metrics.Snapshot(),
		})
	}
	return out
}

// RunGC periodically removes finished rooms older than ttl, bounding
// memory for a long-running process.
func (m *RoomManager) RunGC(interval, ttl time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.sweepFinished(ttl)
		}
	}
}

func (m *RoomManager) sweepFinished(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, room := range m.rooms {
		if room.Status() == RoomFinished && room.CreatedAt.Before(cutoff) {
			delete(m.rooms, code)
		}
	}
}
