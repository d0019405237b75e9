package server

import "time"

// Field geometry. One block is 16 units; the battlefield is a 13x13 block
// grid, so FieldSize is 208 units on a side.
const (
	BlockSize  float64 = 16
	FieldSize  float64 = BlockSize * 13
	TankSize   float64 = 16
	BulletSize float64 = 3

	BrickGridDim  = 52 // 52x52 cells, 4 units each
	BrickCellSize = 4
	SteelGridDim  = 26 // 26x26 cells, 8 units each
	SteelCellSize = 8
)

// Speeds are in units/ms; motion per tick is speed * delta.
const (
	PlayerSpeed   float64 = 0.045
	BotSpeedBasic float64 = 0.030
	BotSpeedArmor float64 = 0.030
	BotSpeedFast  float64 = 0.060
	BotSpeedPower float64 = 0.045
	BulletSpeedU  float64 = 0.180

	FireCooldownMs    float64 = 300
	SpawnHelmetMs     float64 = 2000
	RespawnDelayMs    float64 = 1000
	WallCollisionSlop float64 = -0.01
)

// Tick / broadcast cadence.
const (
	TickRate           = 60
	TickInterval       = time.Second / TickRate
	BroadcastInterval  = 16 * time.Millisecond
	ReconnectGraceTime = 30 * time.Second
	RoomCodeLength     = 6
	MaxPlayersPerRoom  = 2
	BotQueueSize       = 20
	BotSpawnIntervalMs = 3000
	InitialBotBurst    = 4
)

// Player slot spawn points.
var (
	HostSpawn  = Vec2{X: 64, Y: 192}
	GuestSpawn = Vec2{X: 128, Y: 192}
)

// Bot spawn positions cycle through these three points as the AI queue
// drains. The third point (x=384) falls outside FieldSize (208); kept
// literal rather than rescaled since it's specified exactly this way.
var BotSpawnCycle = []Vec2{{X: 0, Y: 0}, {X: 192, Y: 0}, {X: 384, Y: 0}}

// Vec2 is a plain 2D point; used for constants and muzzle offsets.
type Vec2 struct {
	X float64
	Y float64
}
