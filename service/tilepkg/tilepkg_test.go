package tilepkg

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-gl/mathgl/mgl32"

	"gaia/api/model"
	"gaia/api/quadtree"
)

type fakeCache struct {
	tiles   map[quadtree.Tile]bool
	touched []quadtree.Tile
}

func newFakeCache(tiles ...quadtree.Tile) *fakeCache {
	c := &fakeCache{tiles: map[quadtree.Tile]bool{}}
	for _, t := range tiles {
		c.tiles[t.ToOrigin()] = true
	}
	return c
}

func (c *fakeCache) Contains(tile quadtree.Tile) bool {
	return c.tiles[tile.ToOrigin()]
}

func (c *fakeCache) Touch(tile quadtree.Tile) bool {
	c.touched = append(c.touched, tile)
	return c.tiles[tile.ToOrigin()]
}

func TestLevelPolicy(t *testing.T) {
	p := DefaultLevelPolicy()
	cases := []struct {
		height float64
		want   uint8
	}{
		{0.0, 6},
		{0.01, 6},
		{0.05, 5},
		{0.06, 5},
		{0.15, 4},
		{0.3, 3},
		{0.6, 2},
		{0.7, 1},
		{100, 1},
	}
	for _, c := range cases {
		if got := p.Level(c.height); got != c.want {
			t.Errorf("Level(%v) = %d, want %d", c.height, got, c.want)
		}
	}
}

func TestLevelPolicyCapsAtMaxLevel(t *testing.T) {
	p := LevelPolicy{Thresholds: []LevelThreshold{{Below: 1, Level: 12}}, Fallback: 0}
	if got := p.Level(0.5); got != quadtree.MaxLevel {
		t.Fatalf("got %d", got)
	}
}

func TestFrustumIntersectsBox(t *testing.T) {
	f := NewFrustum(mgl32.Ortho(0, 1, 0, 1, -1, 1))
	cases := []struct {
		name     string
		min, max mgl32.Vec3
		want     bool
	}{
		{"inside", mgl32.Vec3{0.2, 0.2, 0}, mgl32.Vec3{0.3, 0.3, 0.05}, true},
		{"straddles left edge", mgl32.Vec3{-0.1, 0.2, 0}, mgl32.Vec3{0.1, 0.3, 0.05}, true},
		{"left of view", mgl32.Vec3{-0.5, 0.2, 0}, mgl32.Vec3{-0.1, 0.3, 0.05}, false},
		{"above view", mgl32.Vec3{0.2, 1.5, 0}, mgl32.Vec3{0.3, 1.6, 0.05}, false},
		{"behind far plane", mgl32.Vec3{0.2, 0.2, -3}, mgl32.Vec3{0.3, 0.3, -2}, false},
	}
	for _, c := range cases {
		if got := f.IntersectsBox(c.min, c.max); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDesiredTilesDropsTilesOutsideFrustum(t *testing.T) {
	f := NewFrustum(mgl32.Ortho(0.5, 1, 0, 1, -1, 1))
	desired := DesiredTiles(6, [2]float64{0.5, 0.5}, f, 6, 0.05)

	has := func(x uint8) bool {
		for _, tile := range desired {
			if tile.X == x && tile.Y == 32 && tile.Offset == 0 {
				return true
			}
		}
		return false
	}
	// x=26 spans [0.406, 0.422], left of the view
	if has(26) {
		t.Fatalf("tile outside the frustum was kept: %s", spew.Sdump(desired))
	}
	if !has(32) || !has(38) {
		t.Fatalf("visible tiles missing: %s", spew.Sdump(desired))
	}
	for _, tile := range desired {
		if tile.X < 31 {
			t.Fatalf("unexpected tile %s", tile)
		}
	}
}

func TestDesiredTilesDedupesClampedRows(t *testing.T) {
	f := NewFrustum(mgl32.Ortho(-10, 10, -10, 10, -1, 1))
	desired := DesiredTiles(0, [2]float64{0.5, 0.5}, f, 6, 0.05)

	// level 0 has a single row, so every dy collapses onto it
	if len(desired) != 13 {
		t.Fatalf("got %d tiles: %s", len(desired), spew.Sdump(desired))
	}
	seen := map[quadtree.Tile]bool{}
	for _, tile := range desired {
		if seen[tile] {
			t.Fatalf("duplicate %s", tile)
		}
		seen[tile] = true
	}
}

func TestCoveringTileExactMatch(t *testing.T) {
	tile := quadtree.Tile{Offset: 2, Level: 3, X: 5, Y: 2}
	cache := newFakeCache(tile)

	rt, ok := CoveringTile(cache, tile, model.ElevationTileSize)
	if !ok {
		t.Fatal("expected a covering tile")
	}
	if rt.Tile != tile || rt.Desired != tile {
		t.Fatalf("got %+v", rt)
	}
	if !rt.Crop.IsFull(model.ElevationTileSize) || rt.Crop.Width != 128 {
		t.Fatalf("exact match must use the full crop, got %+v", rt.Crop)
	}
}

func TestCoveringTileGrandparent(t *testing.T) {
	tile := quadtree.Tile{Offset: -1, Level: 3, X: 5, Y: 2}
	grandparent := quadtree.NewAtOrigin(1, 1, 0)
	cache := newFakeCache(grandparent)

	rt, ok := CoveringTile(cache, tile, model.ElevationTileSize)
	if !ok {
		t.Fatal("expected a covering tile")
	}
	if rt.Tile.ToOrigin() != grandparent || rt.Tile.Offset != -1 {
		t.Fatalf("got ancestor %s", rt.Tile)
	}
	// (2,2,1) is BottomLeft of (1,1,0); (3,5,2) is TopRight of (2,2,1)
	want := IndexCrop{Left: 32, Top: 64, Width: 32}
	if rt.Crop != want {
		t.Fatalf("crop = %+v, want %+v", rt.Crop, want)
	}
	if len(cache.touched) != 1 || cache.touched[0].ToOrigin() != grandparent {
		t.Fatalf("covering ancestor should be touched, got %v", cache.touched)
	}
}

func TestCoveringTileUnavailable(t *testing.T) {
	cache := newFakeCache(quadtree.NewAtOrigin(0, 1, 0))
	if _, ok := CoveringTile(cache, quadtree.NewAtOrigin(2, 1, 1), model.ElevationTileSize); ok {
		t.Fatal("tile in the other hemisphere has no cached ancestor")
	}
}

func TestFindCoveringPathOrder(t *testing.T) {
	tile := quadtree.NewAtOrigin(3, 5, 2)
	_, path, ok := FindCovering(newFakeCache(quadtree.NewAtOrigin(0, 0, 0)), tile)
	if !ok {
		t.Fatal("root should cover")
	}
	want := []quadtree.PositionInParent{quadtree.TopRight, quadtree.BottomLeft, quadtree.TopRight}
	if len(path) != len(want) {
		t.Fatalf("path = %v", path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}
}

func TestIndexCropIndices(t *testing.T) {
	got := IndexCrop{Left: 0, Top: 0, Width: 1}.Indices(3)
	want := []uint32{0, 3, 1, 1, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	shifted := IndexCrop{Left: 1, Top: 1, Width: 1}.Indices(3)
	if shifted[0] != 4 || shifted[5] != 8 {
		t.Fatalf("got %v", shifted)
	}

	full := FullCrop(model.ElevationTileSize).Indices(model.ElevationTileSize)
	if len(full) != 128*128*6 {
		t.Fatalf("full crop has %d indices", len(full))
	}
}

func TestChooserPlansFetchAndRender(t *testing.T) {
	ch := NewChooser()
	camera := Camera{
		Height:         0.01,
		LookAt:         [2]float64{0.5, 0.5},
		ViewProjection: mgl32.Ortho(0.45, 0.55, 0.45, 0.55, -1, 1),
	}

	empty := ch.Choose(newFakeCache(), camera)
	if empty.Level != 6 {
		t.Fatalf("level = %d", empty.Level)
	}
	if len(empty.Render) != 0 || len(empty.Fetch) == 0 {
		t.Fatalf("empty cache: %s", spew.Sdump(empty))
	}

	roots := newFakeCache(quadtree.NewAtOrigin(0, 0, 0), quadtree.NewAtOrigin(0, 1, 0))
	plan := ch.Choose(roots, camera)
	if len(plan.Render) != len(plan.Fetch) || len(plan.Fetch) != len(empty.Fetch) {
		t.Fatalf("roots cached: render %d fetch %d", len(plan.Render), len(plan.Fetch))
	}
	for _, rt := range plan.Render {
		if rt.Tile.Level != 0 || rt.Crop.Width != 2 {
			t.Fatalf("expected root substitute with width 2 crop, got %+v", rt)
		}
	}

	exact := newFakeCache(plan.Fetch...)
	done := ch.Choose(exact, camera)
	if len(done.Fetch) != 0 {
		t.Fatalf("everything cached but still fetching %v", done.Fetch)
	}
	for _, rt := range done.Render {
		if rt.Tile != rt.Desired || !rt.Crop.IsFull(model.ElevationTileSize) {
			t.Fatalf("got %+v", rt)
		}
	}
}
