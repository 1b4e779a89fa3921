package mycache

import (
	"fmt"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"gaia/api/quadtree"
)

// AssetCache holds resident tile assets keyed by origin tile. It is owned by exactly one
// goroutine (the frame loop) and does no locking.
type AssetCache[R any] struct {
	lru      *simplelru.LRU[quadtree.Tile, R]
	capacity int
}

// NewAssetCache builds a cache holding at most capacity tiles. onEvict, if set, is called
// with every entry dropped to make room.
func NewAssetCache[R any](capacity int, onEvict func(tile quadtree.Tile, asset R)) (*AssetCache[R], error) {
	var cb simplelru.EvictCallback[quadtree.Tile, R]
	if onEvict != nil {
		cb = func(key quadtree.Tile, value R) { onEvict(key, value) }
	}
	lru, err := simplelru.NewLRU[quadtree.Tile, R](capacity, cb)
	if err != nil {
		return nil, fmt.Errorf("asset cache capacity %d: %w", capacity, err)
	}
	return &AssetCache[R]{lru: lru, capacity: capacity}, nil
}

// Add stores asset for tile, evicting the least recently used entry when full.
func (c *AssetCache[R]) Add(tile quadtree.Tile, asset R) (evicted bool) {
	return c.lru.Add(tile.ToOrigin(), asset)
}

// Get returns the asset and marks it as recently used.
func (c *AssetCache[R]) Get(tile quadtree.Tile) (R, bool) {
	return c.lru.Get(tile.ToOrigin())
}

// Peek returns the asset without touching recency.
func (c *AssetCache[R]) Peek(tile quadtree.Tile) (R, bool) {
	return c.lru.Peek(tile.ToOrigin())
}

func (c *AssetCache[R]) Contains(tile quadtree.Tile) bool {
	return c.lru.Contains(tile.ToOrigin())
}

// Touch marks tile as recently used and reports whether it is cached.
func (c *AssetCache[R]) Touch(tile quadtree.Tile) bool {
	_, ok := c.lru.Get(tile.ToOrigin())
	return ok
}

func (c *AssetCache[R]) Remove(tile quadtree.Tile) bool {
	return c.lru.Remove(tile.ToOrigin())
}

// Keys lists the cached tiles from oldest to newest.
func (c *AssetCache[R]) Keys() []quadtree.Tile {
	return c.lru.Keys()
}

func (c *AssetCache[R]) Len() int {
	return c.lru.Len()
}

func (c *AssetCache[R]) Cap() int {
	return c.capacity
}

func (c *AssetCache[R]) Purge() {
	c.lru.Purge()
}
