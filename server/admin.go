package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleAdminRooms reports a read-only snapshot of every room's status and
// metrics. There is no write path: a tank room has no tunable physics
// config to push at runtime (see DESIGN.md).
//
// GET /admin/rooms
func HandleAdminRooms(mgr *RoomManager, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"rooms": mgr.Snapshot()})
}

// HandleHealth reports process liveness and a coarse room/player count.
//
// GET /health
func HandleHealth(mgr *RoomManager, w http.ResponseWriter, r *http.Request) {
	rooms := mgr.Snapshot()
	players := 0
	for _, room := range rooms {
		if status, _ := room["status"].(RoomStatus); status == RoomPlaying {
			players += 2
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
		"rooms":     len(rooms),
		"players":   players,
	})
}
