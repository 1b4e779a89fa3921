package fetcher

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"gaia/api/config"
	"gaia/api/log"
	"gaia/api/model"
	"gaia/api/quadtree"
	"gaia/api/service/assetpkg"
)

var ErrLoadPanic = errors.New("tile loader panicked")

// Result is the outcome of one load. Exactly one of Data and Err is set.
type Result struct {
	Tile quadtree.Tile
	Data *model.TileAssetData
	Err  error
}

type Options struct {
	QueueSize int
	RateLimit float64 // loads per second, 0 = unlimited
	Burst     int
	Now       func() time.Time
}

func OptionsFromConfig(c config.FetchConfig) Options {
	return Options{QueueSize: c.QueueSize, RateLimit: c.RateLimit, Burst: c.Burst}
}

// Fetcher turns tile requests into loaded assets on a single goroutine. Pending requests
// are coalesced per tile and serviced most recent first, so a moving camera gets the
// tiles it is looking at now; old requests may wait indefinitely. Callers are expected to
// request every tile they still want on every frame.
//
// A tile taken off the queue is held: while it loads, and after a successful load until the
// consumer calls Forget, requests for it are dropped since the asset is already on the way
// or in use. Failed loads release the tile by themselves.
type Fetcher struct {
	loader   assetpkg.Loader
	requests chan quadtree.Tile
	results  chan Result
	limiter  *rate.Limiter
	now      func() time.Time

	// owned by the Run goroutine
	pending jobQueue
	index   map[quadtree.Tile]*Job
	seq     uint64
	closed  bool

	heldMu sync.Mutex
	held   map[quadtree.Tile]struct{}

	loaded atomic.Int64
	failed atomic.Int64
}

func New(loader assetpkg.Loader, opts Options) *Fetcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	f := &Fetcher{
		loader:   loader,
		requests: make(chan quadtree.Tile, opts.QueueSize),
		results:  make(chan Result, opts.QueueSize),
		now:      opts.Now,
		index:    make(map[quadtree.Tile]*Job),
		held:     make(map[quadtree.Tile]struct{}),
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return f
}

// Requests is the inbound side. Closing it lets Run finish the pending jobs and return.
func (f *Fetcher) Requests() chan<- quadtree.Tile {
	return f.requests
}

func (f *Fetcher) Results() <-chan Result {
	return f.results
}

// Forget lets tile be loaded again. Call it when a loaded asset is dropped or could not be
// used.
func (f *Fetcher) Forget(tile quadtree.Tile) {
	f.heldMu.Lock()
	delete(f.held, tile.ToOrigin())
	f.heldMu.Unlock()
}

func (f *Fetcher) hold(key quadtree.Tile) {
	f.heldMu.Lock()
	f.held[key] = struct{}{}
	f.heldMu.Unlock()
}

func (f *Fetcher) isHeld(key quadtree.Tile) bool {
	f.heldMu.Lock()
	defer f.heldMu.Unlock()
	_, ok := f.held[key]
	return ok
}

// Loaded and Failed count finished jobs.
func (f *Fetcher) Loaded() int64 { return f.loaded.Load() }
func (f *Fetcher) Failed() int64 { return f.failed.Load() }

// Run services requests until ctx is done or the request channel is closed and drained.
// It must be called from exactly one goroutine.
func (f *Fetcher) Run(ctx context.Context) error {
	for {
		if len(f.pending) == 0 {
			if f.closed {
				return nil
			}
			// the only place the worker parks
			select {
			case <-ctx.Done():
				return ctx.Err()
			case tile, ok := <-f.requests:
				if !ok {
					return nil
				}
				f.enqueue(tile)
			}
		}
		f.drain()
		if len(f.pending) == 0 {
			// everything received was held
			continue
		}

		job := heap.Pop(&f.pending).(*Job)
		key := job.Tile.ToOrigin()
		delete(f.index, key)
		f.hold(key)

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		res := f.load(job.Tile)
		if res.Err != nil {
			f.Forget(key)
		}
		select {
		case f.results <- res:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain merges every request already queued without blocking.
func (f *Fetcher) drain() {
	if f.closed {
		return
	}
	for {
		select {
		case tile, ok := <-f.requests:
			if !ok {
				f.closed = true
				return
			}
			f.enqueue(tile)
		default:
			return
		}
	}
}

// enqueue adds a job, or refreshes the recency of the one already pending for the tile.
// Held tiles are ignored.
func (f *Fetcher) enqueue(tile quadtree.Tile) {
	f.seq++
	key := tile.ToOrigin()
	if f.isHeld(key) {
		return
	}
	if job, ok := f.index[key]; ok {
		job.Tile = tile
		job.CreatedAt = f.now()
		job.seq = f.seq
		heap.Fix(&f.pending, job.index)
		return
	}
	job := &Job{Tile: tile, CreatedAt: f.now(), seq: f.seq}
	heap.Push(&f.pending, job)
	f.index[key] = job
}

func (f *Fetcher) load(tile quadtree.Tile) (res Result) {
	res.Tile = tile
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Data = nil
			res.Err = fmt.Errorf("%w: tile %s: %v", ErrLoadPanic, tile, r)
		}
		if res.Err != nil {
			f.failed.Add(1)
			log.Warnf("load tile %s failed: %v", tile, res.Err)
			return
		}
		f.loaded.Add(1)
		log.Debugf("load tile %s cost %v", tile, time.Since(start))
	}()

	data, err := f.loader.Load(tile)
	if err != nil {
		res.Err = fmt.Errorf("load tile %s: %w", tile, err)
		return
	}
	if data == nil {
		res.Err = fmt.Errorf("load tile %s: loader returned no data", tile)
		return
	}
	res.Data = data
	return
}
