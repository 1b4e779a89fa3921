package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gaia/api/config"
	"gaia/api/model"
	"gaia/api/quadtree"
)

func newTestManager(t *testing.T, max int) (*SessionManager, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.Default()
	cfg.Viewer.MaxSessions = max
	m := NewSessionManager(ctx, cfg, newCountingLoader(), NewHandleUploader("http://tiles.test/"))
	t.Cleanup(func() {
		m.CloseAll()
		cancel()
	})
	return m, cancel
}

func TestSessionFrame(t *testing.T) {
	m, _ := newTestManager(t, 4)
	s, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var view *FrameView
	for {
		view, err = m.Frame(ctx, s.ID, testCamera, true)
		if err != nil {
			t.Fatal(err)
		}
		if len(view.Fetch) == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if view.Level != 6 || len(view.Tiles) != 4 {
		t.Fatalf("view level %d tiles %d", view.Level, len(view.Tiles))
	}
	for _, ft := range view.Tiles {
		if len(ft.Indices) != 128*128*6 {
			t.Fatalf("full crop indices %d", len(ft.Indices))
		}
		want := fmt.Sprintf("http://tiles.test/tiles/6/%d/%d/color", ft.Tile.X, ft.Tile.Y)
		if ft.Handle.ColorURL != want {
			t.Fatalf("color url %s, want %s", ft.Handle.ColorURL, want)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	m, _ := newTestManager(t, 2)

	a, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("err = %v", err)
	}

	if err := m.Close(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := m.Frame(context.Background(), a.ID, testCamera, false); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := a.Frame(context.Background(), testCamera, false); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("err = %v", err)
	}

	if n := m.Expire(time.Now()); n != 0 {
		t.Fatalf("fresh session expired")
	}
	if n := m.Expire(time.Now().Add(time.Hour)); n != 1 || m.Len() != 0 {
		t.Fatalf("expired %d, left %d", n, m.Len())
	}
}

func TestHandleUploader(t *testing.T) {
	u := NewHandleUploader("http://h")
	h, err := u.Upload(&model.TileAssetData{
		Tile:     quadtree.Tile{Offset: 3, Level: 2, X: 5, Y: 1},
		Metadata: model.TileMetadata{MaxElevation: 42},
	})
	if err != nil {
		t.Fatal(err)
	}
	if h.Tile.Offset != 0 || h.MetaURL != "http://h/tiles/2/5/1/meta" || h.Metadata.MaxElevation != 42 {
		t.Fatalf("handle %+v", h)
	}
	if _, err := u.Upload(nil); err == nil {
		t.Fatal("expected error")
	}
}
