package server

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// inputCell is the lock-protected "latest input wins" slot the transport
// writes into and the engine's tick reads from each iteration.
type inputCell struct {
	mu    sync.Mutex
	value PlayerInput
	has   bool
}

func (c *inputCell) Set(v PlayerInput) {
	c.mu.Lock()
	c.value = v
	c.has = true
	c.mu.Unlock()
}

func (c *inputCell) Get() (PlayerInput, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.has
}

type respawnEntry struct {
	slot *PlayerSlot
	at   float64 // elapsedMs at which this slot's tank should respawn
}

type botAIState struct {
	decisionAt float64 // elapsedMs at which the bot may pick a new direction
	fireAt     float64
}

// Engine is the per-room authoritative simulation: tanks, bullets, the tile
// map, the AI spawn queue, and the tick that advances all of it. Only the
// goroutine running Run (the tick loop) may mutate Engine state after
// construction — the one exception is the two inputCell slots, which the
// transport writes into from its own goroutines.
type Engine struct {
	RoomID string
	Map    *TileMap

	Tanks   map[int]*Tank
	Bullets map[int]*Bullet

	nextTankID   int
	nextBulletID int

	HostSlot  *PlayerSlot
	GuestSlot *PlayerSlot

	hostInput  inputCell
	guestInput inputCell

	botQueue        []TankLevel
	botDispatched   int // bots handed out from the queue so far (spawned)
	spawnCycleIndex int
	botElapsedMs    float64
	bots            map[int]*botAIState

	pendingRemoval map[int]bool
	respawns       []respawnEntry

	rngState int64 // LCG state, continued stream for bot AI randomness

	Status    GameStatus
	elapsedMs float64

	bricksDestroyedThisTick []int
	steelsDestroyedThisTick []int

	latestSnapshot   atomic.Pointer[StateSyncPayload]
	latestMapChanges atomic.Pointer[MapChangesPayload]

	addendumEnabled bool
	addendumMu      sync.Mutex
	addendum        []addendumEvent

	stopCh            chan struct{}
	stopped           bool
	mu                sync.Mutex
	consecutivePanics int

	log     *zap.SugaredLogger
	metrics *RoomMetrics

	onGameOver func(winner, reason string)
}

type addendumEvent struct {
	Type    string
	Payload any
}

// NewEngine builds a fresh engine for roomID: parses the default stage,
// seeds the deterministic bot queue from the room id, spawns the two
// player tanks at their fixed slots, and fires the initial AI burst.
func NewEngine(roomID string, host, guest *PlayerSlot, log *zap.SugaredLogger, metrics *RoomMetrics, enableAddendum bool) *Engine {
	e := &Engine{
		RoomID:          roomID,
		Map:             ParseStageDescriptor(DefaultStageDescriptor),
		Tanks:           make(map[int]*Tank),
		Bullets:         make(map[int]*Bullet),
		HostSlot:        host,
		GuestSlot:       guest,
		bots:            make(map[int]*botAIState),
		pendingRemoval:  make(map[int]bool),
		Status:          GamePlaying,
		stopCh:          make(chan struct{}),
		log:             log,
		metrics:         metrics,
		rngState:        seedFromRoomID(roomID),
		addendumEnabled: enableAddendum,
	}
	e.botQueue = buildBotQueue(roomID)
	e.spawnPlayerTank(host, HostSpawn, ColorYellow)
	e.spawnPlayerTank(guest, GuestSpawn, ColorGreen)
	for i := 0; i < InitialBotBurst; i++ {
		e.dispatchNextBot()
	}
	return e
}

// seedFromRoomID derives a deterministic LCG seed from a room's code so two
// engines created with the same id reproduce the same bot order and the
// same bot-AI randomness stream.
func seedFromRoomID(roomID string) int64 {
	var seed int64
	for i := 0; i < len(roomID); i++ {
		seed = seed*131 + int64(roomID[i])
	}
	seed %= 233280
	if seed < 0 {
		seed += 233280
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}

// lcgNext advances the linear congruential generator used for deterministic
// bot-order shuffling: s <- (s*9301+49297) mod 233280.
func lcgNext(s int64) int64 {
	return (s*9301 + 49297) % 233280
}

// buildBotQueue produces the 20-level AI spawn queue (18 basic, 1 fast, 1
// power) shuffled by the room-seeded LCG via Fisher-Yates.
func buildBotQueue(roomID string) []TankLevel {
	queue := make([]TankLevel, 0, BotQueueSize)
	for i := 0; i < 18; i++ {
		queue = append(queue, LevelBasic)
	}
	queue = append(queue, LevelFast, LevelPower)

	s := seedFromRoomID(roomID)
	for i := len(queue) - 1; i > 0; i-- {
		s = lcgNext(s)
		j := int(s) % (i + 1)
		if j < 0 {
			j += i + 1
		}
		queue[i], queue[j] = queue[j], queue[i]
	}
	return queue
}

func (e *Engine) nextTank() int {
	e.nextTankID++
	return e.nextTankID
}

func (e *Engine) nextBullet() int {
	e.nextBulletID++
	return e.nextBulletID
}

func (e *Engine) spawnPlayerTank(slot *PlayerSlot, pos Vec2, color TankColor) {
	id := e.nextTank()
	t := &Tank{
		ID: id, X: pos.X, Y: pos.Y, Dir: DirUp, Alive: true,
		Side: SidePlayer, Level: LevelBasic, Color: color, HP: 1,
		HelmetDuration: SpawnHelmetMs,
	}
	e.Tanks[id] = t
	slot.ActiveTankID = id
	slot.HasActiveTank = true
}

// dispatchNextBot pulls the next level off the queue (if any remain) and
// spawns it; it is a no-op once the queue is drained.
func (e *Engine) dispatchNextBot() {
	if e.botDispatched >= len(e.botQueue) {
		return
	}
	level := e.botQueue[e.botDispatched]
	index := e.botDispatched
	e.botDispatched++

	pos := BotSpawnCycle[e.spawnCycleIndex%len(BotSpawnCycle)]
	e.spawnCycleIndex++

	hp := 1
	color := ColorSilver
	if level == LevelArmor {
		hp = 4
		color = ColorRed
	}
	withPowerUp := index == 3 || index == 10 || index == 17

	id := e.nextTank()
	t := &Tank{
		ID: id, X: pos.X, Y: pos.Y, Dir: DirDown, Alive: true,
		Side: SideBot, Level: level, Color: color, HP: hp,
		HelmetDuration: SpawnHelmetMs, WithPowerUp: withPowerUp,
	}
	e.Tanks[id] = t
	e.bots[id] = &botAIState{}
	if e.addendumEnabled {
		e.pushAddendum("enemy_spawn", map[string]any{"tankId": id, "level": string(level), "x": pos.X, "y": pos.Y})
	}
}

// RemainingBots reports how many queued bot levels have not yet spawned.
func (e *Engine) RemainingBots() int {
	return len(e.botQueue) - e.botDispatched
}

// SetHostInput / SetGuestInput are the transport's entry points into the
// latest-input cells; safe to call concurrently with the tick.
func (e *Engine) SetHostInput(in PlayerInput)  { e.hostInput.Set(in) }
func (e *Engine) SetGuestInput(in PlayerInput) { e.guestInput.Set(in) }

// Stop signals the tick loop to exit at its next opportunity.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.stopped {
		e.stopped = true
		close(e.stopCh)
	}
	e.mu.Unlock()
}

// Run drives the fixed 60Hz tick loop until Stop is called. It recovers
// panics from individual ticks and finishes the room after three consecutive
// failures.
func (e *Engine) Run() {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-e.stopCh:
			return
		case now := <-ticker.C:
			delta := now.Sub(last).Seconds() * 1000
			last = now
			e.tickSafely(delta)
			if e.Status == GameOver {
				return
			}
		}
	}
}

func (e *Engine) tickSafely(deltaMs float64) {
	defer func() {
		if r := recover(); r != nil {
			e.consecutivePanics++
			if e.log != nil {
				e.log.Errorw("panic recovered in engine tick", "room", e.RoomID, "panic", r, "streak", e.consecutivePanics)
			}
			if e.consecutivePanics >= 3 {
				e.Status = GameOver
				if e.onGameOver != nil {
					e.onGameOver("draw", "server_error")
				}
			}
		}
	}()
	start := time.Now()
	e.Tick(deltaMs)
	e.consecutivePanics = 0
	if e.metrics != nil {
		e.metrics.AddTick(time.Since(start).Nanoseconds())
	}
}

// Tick advances the world by deltaMs milliseconds, in a fixed order: dead-
// tank sweep, player updates, bot AI, bullet motion, bullet-wall collisions,
// bullet-tank collisions, cooldown decay, respawns, and game-over
// evaluation.
func (e *Engine) Tick(deltaMs float64) {
	if deltaMs <= 0 {
		return
	}
	e.elapsedMs += deltaMs
	e.bricksDestroyedThisTick = nil
	e.steelsDestroyedThisTick = nil

	e.sweepDeadTanks()

	e.updatePlayerTank(e.HostSlot, &e.hostInput, deltaMs)
	e.updatePlayerTank(e.GuestSlot, &e.guestInput, deltaMs)

	e.updateBotAI(deltaMs)

	e.updateBullets(deltaMs)
	e.bulletWallCollisions()
	e.bulletTankCollisions()
	e.decayCooldowns(deltaMs)

	e.advanceBotSpawnSchedule(deltaMs)
	e.processRespawns()
	e.markFreshlyDead()
	e.evaluateGameOver()

	e.publishSnapshot()
}

// publishSnapshot builds this tick's outbound state and stores it where the
// room's broadcast goroutine can read it lock-free, decoupling the 60Hz
// tick cadence from the 16ms broadcast cadence.
func (e *Engine) publishSnapshot() {
	now := time.Now().UnixMilli()
	snap := e.buildSnapshot(now)
	e.latestSnapshot.Store(&snap)
	if changes := e.buildMapChanges(); changes != nil {
		e.latestMapChanges.Store(changes)
	}
}

// sweepDeadTanks removes tanks that were already dead as of the start of
// this tick, giving clients
// exactly one extra snapshot with alive=false for death animation.
func (e *Engine) sweepDeadTanks() {
	for id := range e.pendingRemoval {
		delete(e.Tanks, id)
		delete(e.bots, id)
	}
	e.pendingRemoval = make(map[int]bool)
}

func (e *Engine) markFreshlyDead() {
	for id, t := range e.Tanks {
		if t.Alive || e.pendingRemoval[id] {
			continue
		}
		e.pendingRemoval[id] = true
		if t.Side == SidePlayer {
			if slot := e.slotOwning(id); slot != nil {
				e.handlePlayerDeath(slot)
			}
		}
	}
}

func (e *Engine) activeTank(slot *PlayerSlot) *Tank {
	if slot == nil || !slot.HasActiveTank {
		return nil
	}
	return e.Tanks[slot.ActiveTankID]
}

// updatePlayerTank applies one slot's latest input for this tick: turn-
// alignment, movement with wall collision (no sliding), and firing.
func (e *Engine) updatePlayerTank(slot *PlayerSlot, cell *inputCell, deltaMs float64) {
	tank := e.activeTank(slot)
	if tank == nil || !tank.Alive {
		return
	}
	in, ok := cell.Get()
	if !ok {
		return
	}

	if in.HasDirection && in.Direction != tank.Dir {
		alignTurn(tank, in.Direction, func(r Rect) bool {
			return wallCollides(e.Map, r, WallCollisionSlop)
		})
		tank.Dir = in.Direction
	}
	tank.Moving = in.Moving

	if in.Moving && tank.FrozenTimeout <= 0 {
		e.moveTankDirectional(tank, deltaMs)
	}

	if in.Firing && tank.Cooldown <= 0 {
		e.fireBullet(tank)
	}
}

// fireBullet spawns a bullet at the tank's muzzle and resets its cooldown.
func (e *Engine) fireBullet(tank *Tank) {
	mx, my := muzzle(tank)
	id := e.nextBullet()
	e.Bullets[id] = &Bullet{ID: id, X: mx, Y: my, Dir: tank.Dir, Speed: BulletSpeedU, TankID: tank.ID, Power: 1}
	tank.Cooldown = FireCooldownMs
	if e.metrics != nil {
		e.metrics.IncBulletFired()
	}
}

// updateBullets advances every bullet and removes any that left the field.
func (e *Engine) updateBullets(deltaMs float64) {
	for id, b := range e.Bullets {
		b.advance(deltaMs)
		if b.outOfBounds() {
			delete(e.Bullets, id)
		}
	}
}

// bulletWallCollisions resolves bullets against the eagle, brick, and steel
// grids.
func (e *Engine) bulletWallCollisions() {
	for id, b := range e.Bullets {
		rect := b.Rect()
		hitWall := false

		if !e.Map.EagleBroken && Overlap(rect, eagleRect(e.Map), 0) {
			e.Map.EagleBroken = true
			hitWall = true
			if e.addendumEnabled {
				e.pushAddendum("eagle_destroyed", map[string]any{"tankId": b.TankID})
			}
		}

		bc0, bc1 := brickColumnRange(rect)
		br0, br1 := brickRowRange(rect)
		for row := br0; row <= br1; row++ {
			for col := bc0; col <= bc1; col++ {
				if e.Map.BrickAt(col, row) && Overlap(rect, brickRect(col, row), 0) {
					hitWall = true
					if e.Map.DestroyBrick(col, row) {
						idx := row*BrickGridDim + col
						e.bricksDestroyedThisTick = append(e.bricksDestroyedThisTick, idx)
					}
				}
			}
		}

		sc0, sc1 := steelColumnRange(rect)
		sr0, sr1 := steelRowRange(rect)
		for row := sr0; row <= sr1; row++ {
			for col := sc0; col <= sc1; col++ {
				if e.Map.SteelAt(col, row) && Overlap(rect, steelRect(col, row), 0) {
					hitWall = true
					if b.Power >= 3 {
						if e.Map.DestroySteel(col, row) {
							idx := row*SteelGridDim + col
							e.steelsDestroyedThisTick = append(e.steelsDestroyedThisTick, idx)
						}
					}
				}
			}
		}

		if hitWall {
			delete(e.Bullets, id)
		}
	}
	if n := len(e.bricksDestroyedThisTick) + len(e.steelsDestroyedThisTick); n > 0 {
		if e.metrics != nil {
			for i := 0; i < n; i++ {
				e.metrics.IncWallDestroyed()
			}
		}
		if e.addendumEnabled {
			e.pushAddendum("bricks_removed", map[string]any{
				"bricksDestroyed": e.bricksDestroyedThisTick,
				"steelsDestroyed": e.steelsDestroyedThisTick,
			})
		}
	}
}

// bulletTankCollisions resolves bullets against tanks: an owner lookup that
// fails (owner removed) destroys the bullet outright, otherwise friendly
// fire is suppressed and bot-vs-bot bullets pass through undamaged.
func (e *Engine) bulletTankCollisions() {
	for id, b := range e.Bullets {
		owner, ownerExists := e.Tanks[b.TankID]
		if !ownerExists {
			delete(e.Bullets, id)
			continue
		}
		rect := b.Rect()
		for _, target := range e.Tanks {
			if target.ID == owner.ID || !target.Alive {
				continue
			}
			if !Overlap(rect, target.Rect(), 0) {
				continue
			}
			if owner.Side == SideBot && target.Side == SideBot {
				continue // passes through, no consume, no damage
			}
			delete(e.Bullets, id)
			e.applyBulletDamage(owner, target)
			break
		}
	}
}

func (e *Engine) applyBulletDamage(owner, target *Tank) {
	switch {
	case owner.Side == SidePlayer && target.Side == SidePlayer:
		// friendly fire suppressed: bullet already consumed, no damage
	case owner.Side == SidePlayer && target.Side == SideBot:
		e.damageTank(target)
		if !target.Alive {
			e.awardKillScore(owner, target)
		}
	case owner.Side == SideBot && target.Side == SidePlayer:
		if target.HelmetDuration <= 0 {
			e.damageTank(target)
		}
	}
}

func (e *Engine) damageTank(t *Tank) {
	t.HP--
	if t.HP <= 0 {
		t.Alive = false
		if e.metrics != nil {
			e.metrics.IncTankDestroyed()
		}
	}
}

func (e *Engine) awardKillScore(owner, target *Tank) {
	slot := e.slotOwning(owner.ID)
	if slot == nil {
		return
	}
	switch target.Level {
	case LevelFast:
		slot.Score += 200
	case LevelPower:
		slot.Score += 150
	case LevelArmor:
		slot.Score += 300
	default:
		slot.Score += 100
	}
}

func (e *Engine) slotOwning(tankID int) *PlayerSlot {
	if e.HostSlot != nil && e.HostSlot.HasActiveTank && e.HostSlot.ActiveTankID == tankID {
		return e.HostSlot
	}
	if e.GuestSlot != nil && e.GuestSlot.HasActiveTank && e.GuestSlot.ActiveTankID == tankID {
		return e.GuestSlot
	}
	return nil
}

// decayCooldowns ticks down every tank's fire cooldown, spawn helmet, and
// freeze timer.
func (e *Engine) decayCooldowns(deltaMs float64) {
	for _, t := range e.Tanks {
		t.Cooldown = decayCountdown(t.Cooldown, deltaMs)
		t.HelmetDuration = decayCountdown(t.HelmetDuration, deltaMs)
		t.FrozenTimeout = decayCountdown(t.FrozenTimeout, deltaMs)
	}
}

// advanceBotSpawnSchedule spawns one bot every BotSpawnIntervalMs after the
// initial burst, until the queue is drained.
func (e *Engine) advanceBotSpawnSchedule(deltaMs float64) {
	if e.RemainingBots() == 0 {
		return
	}
	e.botElapsedMs += deltaMs
	for e.botElapsedMs >= BotSpawnIntervalMs && e.RemainingBots() > 0 {
		e.botElapsedMs -= BotSpawnIntervalMs
		e.dispatchNextBot()
	}
}

// queueRespawn schedules a dead player slot's tank to reappear after
// RespawnDelayMs.
func (e *Engine) queueRespawn(slot *PlayerSlot) {
	e.respawns = append(e.respawns, respawnEntry{slot: slot, at: e.elapsedMs + RespawnDelayMs})
}

func (e *Engine) processRespawns() {
	if len(e.respawns) == 0 {
		return
	}
	remaining := e.respawns[:0]
	for _, r := range e.respawns {
		if e.elapsedMs < r.at {
			remaining = append(remaining, r)
			continue
		}
		pos, color := HostSpawn, ColorYellow
		if r.slot == e.GuestSlot {
			pos, color = GuestSpawn, ColorGreen
		}
		e.spawnPlayerTank(r.slot, pos, color)
	}
	e.respawns = remaining
}

// handlePlayerDeath is invoked once per slot when its active tank is first
// seen with alive=false (the tick it is marked for removal, before the next
// tick's sweep): decrements lives and either queues a respawn or ends that
// slot's participation.
func (e *Engine) handlePlayerDeath(slot *PlayerSlot) {
	slot.HasActiveTank = false
	slot.Lives--
	if slot.Lives > 0 {
		e.queueRespawn(slot)
	}
}

func (e *Engine) evaluateGameOver() {
	if e.Status == GameOver {
		return
	}
	if e.Map.EagleBroken {
		e.finish("draw", "eagle_destroyed")
		return
	}
	if e.HostSlot.Lives <= 0 && e.GuestSlot.Lives <= 0 {
		e.finish("draw", "all_lives_lost")
		return
	}
	if e.RemainingBots() == 0 && e.countAliveBots() == 0 && e.botDispatched > 0 {
		e.finish("draw", "bots_cleared")
	}
}

func (e *Engine) countAliveBots() int {
	n := 0
	for _, t := range e.Tanks {
		if t.Side == SideBot && t.Alive {
			n++
		}
	}
	return n
}

func (e *Engine) finish(winner, reason string) {
	e.Status = GameOver
	if e.onGameOver != nil {
		e.onGameOver(winner, reason)
	}
}

func (e *Engine) pushAddendum(eventType string, payload any) {
	e.addendumMu.Lock()
	e.addendum = append(e.addendum, addendumEvent{Type: eventType, Payload: payload})
	e.addendumMu.Unlock()
}

// DrainAddendum returns and clears buffered optional addendum events
// (spec Open Questions: enemy_spawn/bricks_removed, off by default). Safe
// to call from the broadcast goroutine while the tick goroutine pushes.
func (e *Engine) DrainAddendum() []addendumEvent {
	e.addendumMu.Lock()
	defer e.addendumMu.Unlock()
	if len(e.addendum) == 0 {
		return nil
	}
	out := e.addendum
	e.addendum = nil
	return out
}

// botRNG advances the engine's continued LCG stream for bot AI decisions,
// returning a value in [0, n).
func (e *Engine) botRNG(n int) int {
	e.rngState = lcgNext(e.rngState)
	v := int(e.rngState) % n
	if v < 0 {
		v += n
	}
	return v
}

var botDirections = []Direction{DirUp, DirDown, DirLeft, DirRight}

// updateBotAI folds each AI tank's movement/fire decisions into the tick
// body, running after both player updates so a player's shot this tick
// sees bots at this tick's position rather than next tick's.
func (e *Engine) updateBotAI(deltaMs float64) {
	for id, ai := range e.bots {
		tank, ok := e.Tanks[id]
		if !ok || !tank.Alive {
			delete(e.bots, id)
			continue
		}
		if e.elapsedMs >= ai.decisionAt {
			tank.Dir = botDirections[e.botRNG(len(botDirections))]
			tank.Moving = true
			ai.decisionAt = e.elapsedMs + 400 + float64(e.botRNG(900))
		}
		if tank.Moving && tank.FrozenTimeout <= 0 {
			e.moveTankDirectional(tank, deltaMs)
		}
		if e.elapsedMs >= ai.fireAt && tank.Cooldown <= 0 {
			e.fireBullet(tank)
			ai.fireAt = e.elapsedMs + 600 + float64(e.botRNG(1200))
		}
	}
}

// moveTankDirectional is the shared movement primitive for both player and
// bot tanks: candidate position along facing, clamp to field, reject the
// whole move on any wall collision (no sliding).
func (e *Engine) moveTankDirectional(tank *Tank, deltaMs float64) {
	dist := tank.Speed() * deltaMs
	x, y := tank.X, tank.Y
	switch tank.Dir {
	case DirUp:
		y -= dist
	case DirDown:
		y += dist
	case DirLeft:
		x -= dist
	case DirRight:
		x += dist
	default:
		return
	}
	x = clampField(x, TankSize)
	y = clampField(y, TankSize)
	candidate := Rect{X: x, Y: y, W: TankSize, H: TankSize}
	if wallCollides(e.Map, candidate, WallCollisionSlop) {
		return
	}
	tank.X, tank.Y = x, y
}
