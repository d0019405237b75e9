package server

import "testing"

func TestOverlapDetectsIntersection(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 16, H: 16}
	b := Rect{X: 10, Y: 10, W: 16, H: 16}
	if !Overlap(a, b, 0) {
		t.Fatal("expected overlap between intersecting boxes")
	}
}

func TestOverlapRejectsSeparated(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 16, H: 16}
	b := Rect{X: 100, Y: 100, W: 16, H: 16}
	if Overlap(a, b, 0) {
		t.Fatal("expected no overlap between distant boxes")
	}
}

func TestOverlapNegativeThresholdIgnoresSubUnitPenetration(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 16, H: 16}
	b := Rect{X: 15.995, Y: 0, W: 16, H: 16} // overlaps a by 0.005 units
	if !Overlap(a, b, 0) {
		t.Fatal("expected a strict overlap test to catch the 0.005-unit penetration")
	}
	if Overlap(a, b, WallCollisionSlop) {
		t.Fatal("grazing threshold should absorb sub-unit penetration, not block it")
	}
}

func TestWallCollidesAgainstBrick(t *testing.T) {
	m := &TileMap{Bricks: make([]bool, BrickGridDim*BrickGridDim), Steels: make([]bool, SteelGridDim*SteelGridDim)}
	m.Bricks[0] = true // col 0, row 0
	r := Rect{X: 0, Y: 0, W: TankSize, H: TankSize}
	if !wallCollides(m, r, 0) {
		t.Fatal("expected collision with brick at origin")
	}
}

func TestWallCollidesIgnoresAbsentCells(t *testing.T) {
	m := &TileMap{Bricks: make([]bool, BrickGridDim*BrickGridDim), Steels: make([]bool, SteelGridDim*SteelGridDim)}
	r := Rect{X: 0, Y: 0, W: TankSize, H: TankSize}
	if wallCollides(m, r, 0) {
		t.Fatal("expected no collision against an empty map")
	}
}
