package server

import "testing"

func TestParseStageDescriptorBorderIsSteel(t *testing.T) {
	m := ParseStageDescriptor(DefaultStageDescriptor)
	if !m.SteelAt(0, 0) {
		t.Fatal("expected the top-left corner of the default stage to be steel")
	}
	if !m.SteelAt(SteelGridDim-1, 0) {
		t.Fatal("expected the top-right corner of the default stage to be steel")
	}
}

func TestParseStageDescriptorPlacesEagle(t *testing.T) {
	m := ParseStageDescriptor(DefaultStageDescriptor)
	if m.EagleX == 0 && m.EagleY == 0 {
		t.Fatal("expected the eagle to be placed somewhere other than the origin")
	}
	if m.EagleBroken {
		t.Fatal("a freshly parsed map should not start with a broken eagle")
	}
}

func TestDestroyBrickIsIdempotent(t *testing.T) {
	m := ParseStageDescriptor(DefaultStageDescriptor)
	col, row := 3, 2
	m.Bricks[row*BrickGridDim+col] = true
	if !m.DestroyBrick(col, row) {
		t.Fatal("first destroy of a present brick should report a change")
	}
	if m.DestroyBrick(col, row) {
		t.Fatal("destroying an already-absent brick should report no change")
	}
	if m.BrickAt(col, row) {
		t.Fatal("brick should be absent after destruction")
	}
}

func TestBrickAtOutOfRangeIsFalse(t *testing.T) {
	m := ParseStageDescriptor(DefaultStageDescriptor)
	if m.BrickAt(-1, 0) || m.BrickAt(BrickGridDim, 0) {
		t.Fatal("out-of-range brick lookups should report absent, not panic")
	}
}

func TestHexToBits4x4FullySolid(t *testing.T) {
	bits := hexToBits4x4('F')
	for i, b := range bits {
		if !b {
			t.Fatalf("hex 'F' should be fully solid, cell %d was empty", i)
		}
	}
}
