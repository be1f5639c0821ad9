package domain

import "testing"

func TestOverlayFieldWise(t *testing.T) {
	lower := TerrainEntry{Type: Byte(3), Scenery: Byte(7), Road: Byte(1), Height: Byte(40)}
	upper := TerrainEntry{Type: Byte(9)}

	got := lower.Overlay(upper)
	if got.Type == nil || *got.Type != 9 {
		t.Fatalf("expected overlaid type 9, got %v", got.Type)
	}
	if got.Scenery == nil || *got.Scenery != 7 {
		t.Fatalf("scenery should pass through, got %v", got.Scenery)
	}
	if got.Road == nil || *got.Road != 1 {
		t.Fatalf("road should pass through, got %v", got.Road)
	}
	if got.Height == nil || *got.Height != 40 {
		t.Fatalf("height should pass through, got %v", got.Height)
	}
}

func TestOverlayNilFieldsPassThrough(t *testing.T) {
	lower := TerrainEntry{Road: Byte(2)}
	got := lower.Overlay(TerrainEntry{})
	if !got.Equal(lower) {
		t.Fatalf("all-nil overlay must be identity, got %+v", got)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := TerrainEntry{Type: Byte(5)}
	cp := orig.Clone()
	*cp.Type = 6
	if *orig.Type != 5 {
		t.Fatalf("clone aliased the original: %d", *orig.Type)
	}
}

func TestEqualDistinguishesNilFromSet(t *testing.T) {
	if (TerrainEntry{Type: Byte(0)}).Equal(TerrainEntry{}) {
		t.Fatal("explicit zero must differ from absent")
	}
	if !(TerrainEntry{}).Equal(TerrainEntry{}) {
		t.Fatal("two empty entries must be equal")
	}
}

func TestVertexIndexRoundTrip(t *testing.T) {
	info := TerrainInfo{MapWidth: 9, MapHeight: 9, LandblockStride: 8}
	if got := info.VertexIndex(1, 1); got != 10 {
		t.Fatalf("expected index 10 for (1,1), got %d", got)
	}
	x, y := info.VertexCoords(10)
	if x != 1 || y != 1 {
		t.Fatalf("expected (1,1), got (%d,%d)", x, y)
	}
	if info.VertexCount() != 81 {
		t.Fatalf("expected 81 vertices, got %d", info.VertexCount())
	}
}

func TestContains(t *testing.T) {
	info := TerrainInfo{MapWidth: 3, MapHeight: 3}
	cases := []struct {
		x, y int64
		want bool
	}{
		{0, 0, true},
		{2, 2, true},
		{3, 0, false},
		{0, 3, false},
		{-1, 0, false},
	}
	for _, tc := range cases {
		if got := info.Contains(tc.x, tc.y); got != tc.want {
			t.Errorf("Contains(%d,%d) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestLandblocks(t *testing.T) {
	info := TerrainInfo{MapWidth: 16, MapHeight: 16, LandblockStride: 8}
	// vertices in the first block and one in the block to its right
	blocks := info.Landblocks([]uint32{0, 1, info.VertexIndex(9, 0), info.VertexIndex(1, 1)})
	if len(blocks) != 2 || blocks[0] != 0 || blocks[1] != 1 {
		t.Fatalf("expected blocks [0 1], got %v", blocks)
	}
}
