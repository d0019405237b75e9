package server

import "testing"

func TestFloorCeilRound8(t *testing.T) {
	cases := []struct {
		v                float64
		floor, ceil, rnd float64
	}{
		{0, 0, 0, 0},
		{3, 0, 8, 0},
		{5, 0, 8, 8},
		{8, 8, 8, 8},
		{12, 8, 16, 16},
	}
	for _, c := range cases {
		if got := floor8(c.v); got != c.floor {
			t.Errorf("floor8(%v) = %v, want %v", c.v, got, c.floor)
		}
		if got := ceil8(c.v); got != c.ceil {
			t.Errorf("ceil8(%v) = %v, want %v", c.v, got, c.ceil)
		}
		if got := round8(c.v); got != c.rnd {
			t.Errorf("round8(%v) = %v, want %v", c.v, got, c.rnd)
		}
	}
}

func TestAlignTurnSnapsOnPerpendicularTurn(t *testing.T) {
	tank := &Tank{X: 101, Y: 64, Dir: DirRight}
	noCollide := func(Rect) bool { return false }
	alignTurn(tank, DirUp, noCollide)
	if tank.X != 104 && tank.X != 96 {
		t.Fatalf("expected X snapped to an 8-unit line, got %v", tank.X)
	}
}

func TestAlignTurnSkipsParallelTurn(t *testing.T) {
	tank := &Tank{X: 64, Y: 101, Dir: DirRight}
	noCollide := func(Rect) bool { return false }
	alignTurn(tank, DirRight, noCollide)
	if tank.Y != 101 {
		t.Fatalf("same-direction turn must not realign, got Y=%v", tank.Y)
	}
}

func TestAlignTurnSkipsOppositeTurn(t *testing.T) {
	tank := &Tank{X: 64, Y: 101, Dir: DirRight}
	noCollide := func(Rect) bool { return false }
	alignTurn(tank, DirLeft, noCollide)
	if tank.Y != 101 {
		t.Fatalf("180-degree turn must not realign, got Y=%v", tank.Y)
	}
}

func TestAlignAxisPrefersOnlyCollisionFreeOption(t *testing.T) {
	// floor8(101)=96, ceil8(101)=104. Block the floor option; alignAxis
	// should fall back to the ceiling line.
	coord := 101.0
	collides := func(r Rect) bool { return r.Y == 96 }
	alignAxis(&coord, 64, TankSize, collides, true)
	if coord != 104 {
		t.Fatalf("expected fallback to the collision-free ceiling line, got %v", coord)
	}
}

func TestMuzzleOffsetsAlongFacing(t *testing.T) {
	tank := &Tank{X: 0, Y: 0, Dir: DirUp}
	_, y := muzzle(tank)
	if y >= 0 {
		t.Fatalf("muzzle facing up should be above the tank's top edge, got y=%v", y)
	}
}

func TestDecayCountdownClampsAtZero(t *testing.T) {
	if got := decayCountdown(5, 10); got != 0 {
		t.Fatalf("decayCountdown should clamp at 0, got %v", got)
	}
	if got := decayCountdown(100, 10); got != 90 {
		t.Fatalf("decayCountdown(100,10) = %v, want 90", got)
	}
}
