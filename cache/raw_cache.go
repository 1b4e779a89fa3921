package mycache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"gaia/api/model"
	"gaia/api/quadtree"
)

// RawCache keeps decoded tile assets for loaders. Unlike AssetCache it is safe for
// concurrent use, and admission is decided by ristretto so a Set may be dropped.
type RawCache struct {
	cache *ristretto.Cache[string, *model.TileAssetData]
	ttl   time.Duration
}

func NewRawCache(maxCost int64, ttl time.Duration) (*RawCache, error) {
	cache, err := ristretto.NewCache[string, *model.TileAssetData](&ristretto.Config[string, *model.TileAssetData]{
		NumCounters: 10000,
		MaxCost:     maxCost, // 按字节计费
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("raw cache: %w", err)
	}
	return &RawCache{cache: cache, ttl: ttl}, nil
}

// Get 从缓存读取，ok 表示命中
func (c *RawCache) Get(tile quadtree.Tile) (*model.TileAssetData, bool) {
	return c.cache.Get(tile.ToOrigin().Key())
}

// Set stores data with its byte size as cost and waits until it is visible to Get.
func (c *RawCache) Set(tile quadtree.Tile, data *model.TileAssetData) {
	if data == nil {
		return
	}
	key := tile.ToOrigin().Key()
	if c.ttl > 0 {
		c.cache.SetWithTTL(key, data, data.Size(), c.ttl)
	} else {
		c.cache.Set(key, data, data.Size())
	}
	c.cache.Wait()
}

func (c *RawCache) Del(tile quadtree.Tile) {
	c.cache.Del(tile.ToOrigin().Key())
}

func (c *RawCache) Close() {
	c.cache.Close()
}
