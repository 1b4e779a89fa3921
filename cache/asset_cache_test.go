package mycache

import (
	"testing"

	"gaia/api/model"
	"gaia/api/quadtree"
)

func TestAssetCacheEvictsLeastRecentlyAccessed(t *testing.T) {
	var evicted []quadtree.Tile
	c, err := NewAssetCache[string](3, func(tile quadtree.Tile, _ string) {
		evicted = append(evicted, tile)
	})
	if err != nil {
		t.Fatal(err)
	}

	a := quadtree.NewAtOrigin(2, 0, 0)
	b := quadtree.NewAtOrigin(2, 1, 0)
	d := quadtree.NewAtOrigin(2, 2, 0)
	e := quadtree.NewAtOrigin(2, 3, 0)

	c.Add(a, "a")
	c.Add(b, "b")
	c.Add(d, "d")

	// a was inserted first but is now the most recently accessed
	if _, ok := c.Get(a); !ok {
		t.Fatal("a should be cached")
	}
	c.Add(e, "e")

	if len(evicted) != 1 || evicted[0] != b {
		t.Fatalf("evicted %v, want [%v]", evicted, b)
	}
	if !c.Contains(a) || c.Contains(b) || !c.Contains(d) || !c.Contains(e) {
		t.Fatalf("unexpected contents %v", c.Keys())
	}
	if c.Len() != 3 || c.Cap() != 3 {
		t.Fatalf("len %d cap %d", c.Len(), c.Cap())
	}
}

func TestAssetCacheNormalizesOffset(t *testing.T) {
	c, err := NewAssetCache[int](4, nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Add(quadtree.Tile{Offset: 5, Level: 1, X: 2, Y: 1}, 42)

	v, ok := c.Get(quadtree.Tile{Offset: -3, Level: 1, X: 2, Y: 1})
	if !ok || v != 42 {
		t.Fatalf("lookup across offsets = %v, %v", v, ok)
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0].Offset != 0 {
		t.Fatalf("keys must be origin tiles: %v", keys)
	}
}

func TestAssetCachePeekAndContainsKeepRecency(t *testing.T) {
	c, err := NewAssetCache[int](2, nil)
	if err != nil {
		t.Fatal(err)
	}
	a := quadtree.NewAtOrigin(1, 0, 0)
	b := quadtree.NewAtOrigin(1, 1, 0)
	c.Add(a, 1)
	c.Add(b, 2)

	c.Peek(a)
	c.Contains(a)
	c.Add(quadtree.NewAtOrigin(1, 2, 0), 3)
	if c.Contains(a) {
		t.Fatal("Peek/Contains must not refresh recency")
	}

	if !c.Touch(b) {
		t.Fatal("b should be cached")
	}
	c.Add(quadtree.NewAtOrigin(1, 3, 0), 4)
	if !c.Contains(b) {
		t.Fatal("Touch must refresh recency")
	}
}

func TestNewAssetCacheRejectsZeroCapacity(t *testing.T) {
	if _, err := NewAssetCache[int](0, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRawCache(t *testing.T) {
	c, err := NewRawCache(1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	tile := quadtree.Tile{Offset: 3, Level: 2, X: 1, Y: 1}
	data := &model.TileAssetData{Tile: tile.ToOrigin(), Elevation: make([]uint16, 16)}
	c.Set(tile, data)

	got, ok := c.Get(tile.ToOrigin())
	if !ok || got != data {
		t.Fatalf("get = %v, %v", got, ok)
	}

	c.Del(tile)
	if _, ok := c.Get(tile); ok {
		t.Fatal("deleted entry still present")
	}
}
