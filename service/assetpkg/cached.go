package assetpkg

import (
	mycache "gaia/api/cache"
	"gaia/api/model"
	"gaia/api/quadtree"
)

// CachedLoader serves repeated loads of the same tile from a RawCache. The returned data is
// shared between callers and must be treated as read-only.
type CachedLoader struct {
	Next  Loader
	Cache *mycache.RawCache
}

func NewCachedLoader(next Loader, cache *mycache.RawCache) *CachedLoader {
	return &CachedLoader{Next: next, Cache: cache}
}

func (l *CachedLoader) Load(tile quadtree.Tile) (*model.TileAssetData, error) {
	if data, ok := l.Cache.Get(tile); ok {
		return data, nil
	}
	data, err := l.Next.Load(tile)
	if err != nil {
		return nil, err
	}
	l.Cache.Set(tile, data)
	return data, nil
}

func (l *CachedLoader) Close() error {
	l.Cache.Close()
	return nil
}
