package server

// TankSnapshot is one tank's wire-visible state inside a state_sync.
type TankSnapshot struct {
	ID             int       `json:"id"`
	X              float64   `json:"x"`
	Y              float64   `json:"y"`
	Direction      Direction `json:"direction"`
	Moving         bool      `json:"moving"`
	Alive          bool      `json:"alive"`
	Side           Side      `json:"side"`
	Level          TankLevel `json:"level"`
	Color          TankColor `json:"color"`
	HP             int       `json:"hp"`
	HelmetDuration float64   `json:"helmetDuration,omitempty"`
	FrozenTimeout  float64   `json:"frozen,omitempty"`
	Cooldown       float64   `json:"cooldown,omitempty"`
	WithPowerUp    bool      `json:"withPowerUp,omitempty"`
}

// BulletSnapshot is one bullet's wire-visible state.
type BulletSnapshot struct {
	ID        int       `json:"id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Direction Direction `json:"direction"`
	Speed     float64   `json:"speed"`
	Power     int       `json:"power"`
	TankID    int       `json:"tankId"`
}

// MapSnapshot is the destructible terrain, sent in full only in
// reconnect_success; game_state_init carries the map id but not the terrain
// arrays, and state_sync carries no terrain. Deltas travel as map_changes.
type MapSnapshot struct {
	Bricks      []bool `json:"bricks"`
	Steels      []bool `json:"steels"`
	EagleBroken bool   `json:"eagleBroken"`
}

func snapshotTank(t *Tank) TankSnapshot {
	return TankSnapshot{
		ID: t.ID, X: t.X, Y: t.Y, Direction: t.Dir, Moving: t.Moving, Alive: t.Alive,
		Side: t.Side, Level: t.Level, Color: t.Color, HP: t.HP,
		HelmetDuration: t.HelmetDuration, FrozenTimeout: t.FrozenTimeout, Cooldown: t.Cooldown,
		WithPowerUp: t.WithPowerUp,
	}
}

func snapshotBullet(b *Bullet) BulletSnapshot {
	return BulletSnapshot{ID: b.ID, X: b.X, Y: b.Y, Direction: b.Dir, Speed: b.Speed, Power: b.Power, TankID: b.TankID}
}

// buildSnapshot produces the payload for a periodic state_sync broadcast.
// Called only from the tick goroutine; the result is published through
// Engine.latestSnapshot for the broadcast loop to read lock-free.
func (e *Engine) buildSnapshot(now int64) StateSyncPayload {
	tanks := make([]TankSnapshot, 0, len(e.Tanks))
	for _, t := range e.Tanks {
		tanks = append(tanks, snapshotTank(t))
	}
	bullets := make([]BulletSnapshot, 0, len(e.Bullets))
	for _, b := range e.Bullets {
		bullets = append(bullets, snapshotBullet(b))
	}
	return StateSyncPayload{
		Type:    "state_sync",
		Tanks:   tanks,
		Bullets: bullets,
		Players: PlayersSnapshot{
			Host:  snapshotSlot(e.HostSlot),
			Guest: snapshotSlot(e.GuestSlot),
		},
		RemainingBots: e.RemainingBots(),
		GameStatus:    e.Status,
		Timestamp:     now,
	}
}

// MapSnapshotFull returns the complete terrain state, copied out of the
// engine's live grids. Safe to call from any goroutine:
// reconnect_success can happen mid-game on the gateway's goroutine while
// the tick goroutine is flipping cells via DestroyBrick/DestroySteel, so a
// reference to the live slices would race.
func (e *Engine) MapSnapshotFull() MapSnapshot {
	bricks := make([]bool, len(e.Map.Bricks))
	copy(bricks, e.Map.Bricks)
	steels := make([]bool, len(e.Map.Steels))
	copy(steels, e.Map.Steels)
	return MapSnapshot{Bricks: bricks, Steels: steels, EagleBroken: e.Map.EagleBroken}
}

// buildMapChanges returns a delta payload for bricks/steels destroyed this
// tick, or nil if nothing changed.
// Called only from the tick goroutine.
func (e *Engine) buildMapChanges() *MapChangesPayload {
	if len(e.bricksDestroyedThisTick) == 0 && len(e.steelsDestroyedThisTick) == 0 && !e.Map.EagleBroken {
		return nil
	}
	return &MapChangesPayload{
		Type:            "map_changes",
		BricksDestroyed: e.bricksDestroyedThisTick,
		SteelsDestroyed: e.steelsDestroyedThisTick,
		EagleBroken:     e.Map.EagleBroken,
	}
}

// LatestSnapshot returns the most recently published state_sync payload.
// Safe to call from any goroutine; used by the room's broadcast loop.
func (e *Engine) LatestSnapshot() StateSyncPayload {
	if p := e.latestSnapshot.Load(); p != nil {
		return *p
	}
	return StateSyncPayload{}
}

// TakeMapChanges returns and clears the map delta published by the most
// recent tick, or nil if there was none. Safe to call from any goroutine.
func (e *Engine) TakeMapChanges() *MapChangesPayload {
	return e.latestMapChanges.Swap(nil)
}
