package service

import (
	"context"
	"errors"
	"sync"

	mycache "gaia/api/cache"
	"gaia/api/config"
	"gaia/api/log"
	"gaia/api/quadtree"
	"gaia/api/service/assetpkg"
	"gaia/api/service/fetcher"
	"gaia/api/service/tilepkg"
)

type GlobeOptions struct {
	Capacity int
	Chooser  *tilepkg.Chooser
	Fetch    fetcher.Options
}

func GlobeOptionsFromConfig(cfg *config.Config) GlobeOptions {
	return GlobeOptions{
		Capacity: cfg.Cache.Capacity,
		Chooser:  tilepkg.NewChooserFromConfig(cfg.Chooser),
		Fetch:    fetcher.OptionsFromConfig(cfg.Fetch),
	}
}

type GlobeStats struct {
	Cached   int   `json:"cached"`
	Capacity int   `json:"capacity"`
	InFlight int   `json:"inFlight"`
	Loaded   int64 `json:"loaded"`
	Failed   int64 `json:"failed"`
}

// Globe is the per-viewer frame loop: it owns the resident asset cache and talks to one
// background fetcher through channels. All methods except Start must be called from the
// same goroutine.
type Globe[R any] struct {
	cache    *mycache.AssetCache[R]
	chooser  *tilepkg.Chooser
	fetcher  *fetcher.Fetcher
	uploader assetpkg.Uploader[R]

	// origin tiles sent at least once and not merged yet, for Stats
	inflight map[quadtree.Tile]struct{}

	startOnce sync.Once
	done      chan struct{}
}

// NewGlobe wires backend into a globe. onEvict, when set, is called for every resident
// handle dropped from the cache so the renderer can release it.
func NewGlobe[R any](backend assetpkg.Backend[R], opts GlobeOptions, onEvict func(quadtree.Tile, R)) (*Globe[R], error) {
	chooser := opts.Chooser
	if chooser == nil {
		chooser = tilepkg.NewChooser()
	}
	g := &Globe[R]{
		chooser:  chooser,
		fetcher:  fetcher.New(backend, opts.Fetch),
		uploader: backend,
		inflight: make(map[quadtree.Tile]struct{}),
		done:     make(chan struct{}),
	}
	// an evicted tile has to be loadable again
	cache, err := mycache.NewAssetCache[R](opts.Capacity, func(tile quadtree.Tile, resident R) {
		g.fetcher.Forget(tile)
		if onEvict != nil {
			onEvict(tile, resident)
		}
	})
	if err != nil {
		return nil, err
	}
	g.cache = cache
	return g, nil
}

// Start launches the fetch worker. It stops when ctx is done; Done is closed afterwards.
func (g *Globe[R]) Start(ctx context.Context) {
	g.startOnce.Do(func() {
		go func() {
			defer close(g.done)
			if err := g.fetcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("tile fetcher stopped: %v", err)
			}
		}()
	})
}

func (g *Globe[R]) Done() <-chan struct{} {
	return g.done
}

// Merge moves every finished load into the cache without waiting. It returns the number
// of tiles that became resident.
func (g *Globe[R]) Merge() int {
	merged := 0
	for {
		select {
		case res := <-g.fetcher.Results():
			key := res.Tile.ToOrigin()
			delete(g.inflight, key)
			if res.Err != nil {
				// still missing, so the next frame that wants it asks again
				continue
			}
			resident, err := g.uploader.Upload(res.Data)
			if err != nil {
				log.Errorf("upload tile %s: %v", key, err)
				g.fetcher.Forget(key)
				continue
			}
			g.cache.Add(key, resident)
			merged++
		default:
			return merged
		}
	}
}

// Frame runs one decision step for camera and returns what to draw.
func (g *Globe[R]) Frame(camera tilepkg.Camera) *tilepkg.RenderPlan {
	g.Merge()
	plan := g.chooser.Choose(g.cache, camera)
	for _, tile := range plan.Fetch {
		g.request(tile)
	}
	return plan
}

// request never blocks: with a full queue the tile is skipped and asked for again on a
// later frame. Tiles already sent are sent again so the fetcher sees they are still wanted.
func (g *Globe[R]) request(tile quadtree.Tile) {
	select {
	case g.fetcher.Requests() <- tile:
		g.inflight[tile.ToOrigin()] = struct{}{}
	default:
		log.Debugf("fetch queue full, skip tile %s this frame", tile)
	}
}

// Resident returns the handle drawn for tile, without changing its recency.
func (g *Globe[R]) Resident(tile quadtree.Tile) (R, bool) {
	return g.cache.Peek(tile)
}

func (g *Globe[R]) Stats() GlobeStats {
	return GlobeStats{
		Cached:   g.cache.Len(),
		Capacity: g.cache.Cap(),
		InFlight: len(g.inflight),
		Loaded:   g.fetcher.Loaded(),
		Failed:   g.fetcher.Failed(),
	}
}

// Release drops every resident handle through onEvict.
func (g *Globe[R]) Release() {
	g.cache.Purge()
	clear(g.inflight)
}
