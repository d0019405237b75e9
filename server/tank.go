package server

import "math"

// Tank is the authoritative state of one tank, player or bot. All fields
// are mutated only by the owning engine's tick goroutine.
type Tank struct {
	ID    int
	X, Y  float64
	Dir   Direction
	Moving  bool
	Alive   bool
	Side    Side
	Level   TankLevel
	Color   TankColor
	HP      int
	HelmetDuration float64 // ms remaining of spawn invincibility
	FrozenTimeout  float64 // ms remaining of immobility
	Cooldown       float64 // ms remaining before next shot is permitted
	WithPowerUp    bool
}

// Rect returns the tank's current axis-aligned bounding box.
func (t *Tank) Rect() Rect {
	return Rect{X: t.X, Y: t.Y, W: TankSize, H: TankSize}
}

// Speed returns the tank's movement speed in units/ms for its side+level.
func (t *Tank) Speed() float64 {
	if t.Side == SidePlayer {
		return PlayerSpeed
	}
	switch t.Level {
	case LevelFast:
		return BotSpeedFast
	case LevelPower:
		return BotSpeedPower
	case LevelArmor:
		return BotSpeedArmor
	default:
		return BotSpeedBasic
	}
}

// clampField clamps a coordinate so the tank's bounding box stays within
// [0, FieldSize].
func clampField(v, size float64) float64 {
	if v < 0 {
		return 0
	}
	if max := FieldSize - size; v > max {
		return max
	}
	return v
}

func floor8(v float64) float64 { return math.Floor(v/8) * 8 }
func ceil8(v float64) float64  { return math.Ceil(v/8) * 8 }
func round8(v float64) float64 { return math.Round(v/8) * 8 }

// alignTurn handles a tank's requested direction change: when the new
// direction is perpendicular to its current facing, snap the cross axis to
// an 8-unit grid line before the direction change takes effect. Parallel
// (same-direction) and 180-degree turns never align.
//
// collides is a callback the engine supplies so alignTurn can probe wall
// collision without depending on *Engine directly.
func alignTurn(t *Tank, newDir Direction, collides func(rect Rect) bool) {
	if newDir == DirNone || newDir == t.Dir {
		return
	}
	perpendicular := t.Dir.IsHorizontal() != newDir.IsHorizontal() && t.Dir != DirNone
	if !perpendicular {
		return
	}
	if newDir.IsHorizontal() {
		alignAxis(&t.Y, t.X, TankSize, collides, true)
	} else {
		alignAxis(&t.X, t.Y, TankSize, collides, false)
	}
}

// alignAxis snaps *coord (the cross axis) to floor8/ceil8 if exactly one is
// collision-free at the tank's current position on the other axis;
// otherwise it falls back to round8.
func alignAxis(coord *float64, other, size float64, collides func(rect Rect) bool, alignIsY bool) {
	fl := floor8(*coord)
	ce := ceil8(*coord)
	rectFor := func(v float64) Rect {
		if alignIsY {
			return Rect{X: other, Y: v, W: size, H: size}
		}
		return Rect{X: v, Y: other, W: size, H: size}
	}
	flFree := !collides(rectFor(fl))
	ceFree := !collides(rectFor(ce))
	switch {
	case flFree && !ceFree:
		*coord = fl
	case ceFree && !flFree:
		*coord = ce
	default:
		*coord = round8(*coord)
	}
}

// muzzle returns the world position a new bullet should spawn at: the
// tank's front-center, offset outward by the bullet's own size along the
// tank's facing.
func muzzle(t *Tank) (x, y float64) {
	cx := t.X + TankSize/2 - BulletSize/2
	cy := t.Y + TankSize/2 - BulletSize/2
	switch t.Dir {
	case DirUp:
		return cx, t.Y - BulletSize
	case DirDown:
		return cx, t.Y + TankSize
	case DirLeft:
		return t.X - BulletSize, cy
	case DirRight:
		return t.X + TankSize, cy
	default:
		return cx, cy
	}
}

func decayCountdown(v, delta float64) float64 {
	v -= delta
	if v < 0 {
		return 0
	}
	return v
}
