package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gaia/api/model"
	"gaia/api/quadtree"
	"gaia/api/service/assetpkg"
)

type recordingLoader struct {
	mu     sync.Mutex
	loaded []quadtree.Tile
	fail   map[quadtree.Tile]error
	panics map[quadtree.Tile]bool
}

func (l *recordingLoader) Load(tile quadtree.Tile) (*model.TileAssetData, error) {
	l.mu.Lock()
	l.loaded = append(l.loaded, tile)
	l.mu.Unlock()
	if l.panics[tile.ToOrigin()] {
		panic("corrupt tile")
	}
	if err := l.fail[tile.ToOrigin()]; err != nil {
		return nil, err
	}
	return &model.TileAssetData{Tile: tile.ToOrigin()}, nil
}

// tickingClock returns strictly increasing times.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Unix(1700000000, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

func runToCompletion(t *testing.T, f *Fetcher) []Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	close(f.results)
	var out []Result
	for res := range f.Results() {
		out = append(out, res)
	}
	return out
}

func TestDuplicateRequestsLoadOnce(t *testing.T) {
	loader := &recordingLoader{}
	f := New(loader, Options{QueueSize: 16, Now: tickingClock()})

	tile := quadtree.NewAtOrigin(3, 4, 2)
	f.Requests() <- tile
	f.Requests() <- tile.OffsetBy(16, 0) // same origin tile, other copy
	close(f.requests)

	results := runToCompletion(t, f)
	if len(loader.loaded) != 1 {
		t.Fatalf("loaded %v", loader.loaded)
	}
	if len(results) != 1 || results[0].Err != nil || results[0].Data == nil {
		t.Fatalf("results %+v", results)
	}
	if results[0].Tile.ToOrigin() != tile {
		t.Fatalf("result for %s", results[0].Tile)
	}
}

func TestMostRecentRequestServedFirst(t *testing.T) {
	loader := &recordingLoader{}
	f := New(loader, Options{QueueSize: 16, Now: tickingClock()})

	a := quadtree.NewAtOrigin(2, 0, 0)
	b := quadtree.NewAtOrigin(2, 1, 0)
	c := quadtree.NewAtOrigin(2, 2, 0)
	for _, tile := range []quadtree.Tile{a, b, c} {
		f.Requests() <- tile
	}
	close(f.requests)

	results := runToCompletion(t, f)
	want := []quadtree.Tile{c, b, a}
	if len(loader.loaded) != len(want) || len(results) != len(want) {
		t.Fatalf("loaded %v", loader.loaded)
	}
	for i := range want {
		if loader.loaded[i] != want[i] || results[i].Tile != want[i] {
			t.Fatalf("order %v, want %v", loader.loaded, want)
		}
	}
}

func TestRepeatedRequestRefreshesRecency(t *testing.T) {
	loader := &recordingLoader{}
	f := New(loader, Options{QueueSize: 16, Now: tickingClock()})

	a := quadtree.NewAtOrigin(2, 0, 0)
	b := quadtree.NewAtOrigin(2, 1, 0)
	f.Requests() <- a
	f.Requests() <- b
	f.Requests() <- a
	close(f.requests)

	runToCompletion(t, f)
	if len(loader.loaded) != 2 || loader.loaded[0] != a || loader.loaded[1] != b {
		t.Fatalf("loaded %v", loader.loaded)
	}
}

func TestLoadFailuresAreReported(t *testing.T) {
	bad := quadtree.NewAtOrigin(1, 0, 0)
	broken := quadtree.NewAtOrigin(1, 1, 0)
	good := quadtree.NewAtOrigin(1, 2, 0)
	loader := &recordingLoader{
		fail:   map[quadtree.Tile]error{bad: assetpkg.ErrNotFound},
		panics: map[quadtree.Tile]bool{broken: true},
	}
	f := New(loader, Options{QueueSize: 16, Now: tickingClock()})
	f.Requests() <- bad
	f.Requests() <- broken
	f.Requests() <- good
	close(f.requests)

	results := runToCompletion(t, f)
	if len(results) != 3 {
		t.Fatalf("results %+v", results)
	}
	byTile := map[quadtree.Tile]Result{}
	for _, r := range results {
		byTile[r.Tile] = r
	}
	if !errors.Is(byTile[bad].Err, assetpkg.ErrNotFound) || byTile[bad].Data != nil {
		t.Fatalf("bad: %+v", byTile[bad])
	}
	if !errors.Is(byTile[broken].Err, ErrLoadPanic) {
		t.Fatalf("broken: %+v", byTile[broken])
	}
	if byTile[good].Err != nil || byTile[good].Data == nil {
		t.Fatalf("good: %+v", byTile[good])
	}
	if f.Loaded() != 1 || f.Failed() != 2 {
		t.Fatalf("loaded %d failed %d", f.Loaded(), f.Failed())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := New(&recordingLoader{}, Options{QueueSize: 4})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRateLimitedFetcherStillServes(t *testing.T) {
	loader := &recordingLoader{}
	f := New(loader, Options{QueueSize: 4, RateLimit: 1000, Burst: 1, Now: tickingClock()})
	f.Requests() <- quadtree.NewAtOrigin(0, 0, 0)
	f.Requests() <- quadtree.NewAtOrigin(0, 1, 0)
	close(f.requests)

	if results := runToCompletion(t, f); len(results) != 2 {
		t.Fatalf("results %+v", results)
	}
}

func TestLoadedTileHeldUntilForgotten(t *testing.T) {
	bad := quadtree.NewAtOrigin(2, 3, 0)
	loader := &recordingLoader{fail: map[quadtree.Tile]error{bad: assetpkg.ErrNotFound}}
	f := New(loader, Options{QueueSize: 16, Now: tickingClock()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	next := func() Result {
		t.Helper()
		select {
		case res := <-f.Results():
			return res
		case <-time.After(5 * time.Second):
			t.Fatal("no result")
		}
		return Result{}
	}

	a := quadtree.NewAtOrigin(2, 0, 0)
	b := quadtree.NewAtOrigin(2, 1, 0)

	f.Requests() <- a
	if res := next(); res.Tile != a {
		t.Fatalf("got %s", res.Tile)
	}
	// a is still in use, asking again must not reload it
	f.Requests() <- a
	f.Requests() <- b
	if res := next(); res.Tile != b {
		t.Fatalf("got %s", res.Tile)
	}

	f.Forget(a)
	f.Requests() <- a
	if res := next(); res.Tile != a {
		t.Fatalf("got %s", res.Tile)
	}

	// failed loads are not held
	f.Requests() <- bad
	if res := next(); res.Err == nil {
		t.Fatalf("expected failure, got %+v", res)
	}
	f.Requests() <- bad
	if res := next(); res.Tile != bad || res.Err == nil {
		t.Fatalf("retry: %+v", res)
	}

	loader.mu.Lock()
	defer loader.mu.Unlock()
	want := []quadtree.Tile{a, b, a, bad, bad}
	if len(loader.loaded) != len(want) {
		t.Fatalf("loaded %v, want %v", loader.loaded, want)
	}
	for i := range want {
		if loader.loaded[i] != want[i] {
			t.Fatalf("loaded %v, want %v", loader.loaded, want)
		}
	}
}
