package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"gaia/api/config"
	"gaia/api/log"
	"gaia/api/model"
	"gaia/api/quadtree"
	"gaia/api/service/assetpkg"
	"gaia/api/service/tilepkg"
)

var (
	ErrSessionNotFound = errors.New("viewer session not found")
	ErrTooManySessions = errors.New("too many viewer sessions")
	ErrSessionClosed   = errors.New("viewer session closed")
)

// ---------- 帧结果 ----------

type FrameTile struct {
	Desired quadtree.Tile     `json:"desired"`
	Tile    quadtree.Tile     `json:"tile"`
	Crop    tilepkg.IndexCrop `json:"crop"`
	Handle  TileHandle        `json:"handle"`
	Indices []uint32          `json:"indices,omitempty"`
}

type FrameView struct {
	Level uint8           `json:"level"`
	Tiles []FrameTile     `json:"tiles"`
	Fetch []quadtree.Tile `json:"fetch"`
	Stats GlobeStats      `json:"stats"`
}

type frameRequest struct {
	camera      tilepkg.Camera
	withIndices bool
	reply       chan *FrameView
}

// ---------- Session ----------

// Session is one remote viewer. Its globe lives on the session goroutine; handlers only
// exchange messages with it.
type Session struct {
	ID        string
	CreatedAt time.Time

	globe    *Globe[TileHandle]
	frames   chan frameRequest
	cancel   context.CancelFunc
	done     chan struct{}
	lastSeen atomic.Int64
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.globe.Release()
	s.globe.Start(ctx)
	for {
		select {
		case <-ctx.Done():
			<-s.globe.Done()
			return
		case req := <-s.frames:
			plan := s.globe.Frame(req.camera)
			req.reply <- s.view(plan, req.withIndices)
		}
	}
}

func (s *Session) view(plan *tilepkg.RenderPlan, withIndices bool) *FrameView {
	v := &FrameView{
		Level: plan.Level,
		Tiles: make([]FrameTile, 0, len(plan.Render)),
		Fetch: plan.Fetch,
		Stats: s.globe.Stats(),
	}
	for _, rt := range plan.Render {
		handle, ok := s.globe.Resident(rt.Tile)
		if !ok {
			continue
		}
		ft := FrameTile{Desired: rt.Desired, Tile: rt.Tile, Crop: rt.Crop, Handle: handle}
		if withIndices {
			ft.Indices = rt.Crop.Indices(model.ElevationTileSize)
		}
		v.Tiles = append(v.Tiles, ft)
	}
	return v
}

// Frame hands camera to the session goroutine and waits for the plan.
func (s *Session) Frame(ctx context.Context, camera tilepkg.Camera, withIndices bool) (*FrameView, error) {
	s.lastSeen.Store(time.Now().UnixNano())
	req := frameRequest{camera: camera, withIndices: withIndices, reply: make(chan *FrameView, 1)}
	select {
	case s.frames <- req:
	case <-s.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case v := <-req.reply:
		return v, nil
	case <-s.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) close() {
	s.cancel()
	<-s.done
}

// ---------- SessionManager ----------

type SessionManager struct {
	ctx     context.Context
	backend assetpkg.Backend[TileHandle]
	opts    GlobeOptions
	ttl     time.Duration
	max     int

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates sessions whose goroutines live until ctx is done, the session
// is closed or it has been idle for cfg.Viewer.SessionTTL.
func NewSessionManager(ctx context.Context, cfg *config.Config, loader assetpkg.Loader, uploader assetpkg.Uploader[TileHandle]) *SessionManager {
	return &SessionManager{
		ctx:      ctx,
		backend:  assetpkg.Combine(loader, uploader),
		opts:     GlobeOptionsFromConfig(cfg),
		ttl:      cfg.Viewer.SessionTTL,
		max:      cfg.Viewer.MaxSessions,
		sessions: make(map[string]*Session),
	}
}

func (m *SessionManager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.max > 0 && len(m.sessions) >= m.max {
		return nil, ErrTooManySessions
	}

	globe, err := NewGlobe(m.backend, m.opts, nil)
	if err != nil {
		return nil, fmt.Errorf("new globe: %w", err)
	}
	ctx, cancel := context.WithCancel(m.ctx)
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		globe:     globe,
		frames:    make(chan frameRequest),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.lastSeen.Store(s.CreatedAt.UnixNano())
	m.sessions[s.ID] = s
	go s.run(ctx)

	log.Infof("viewer session %s created, %d active", s.ID, len(m.sessions))
	return s, nil
}

func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *SessionManager) Frame(ctx context.Context, id string, camera tilepkg.Camera, withIndices bool) (*FrameView, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return s.Frame(ctx, camera, withIndices)
}

func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	log.Infof("viewer session %s closed", id)
	return nil
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Expire closes sessions idle since before now-ttl and returns how many were closed.
func (m *SessionManager) Expire(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	deadline := now.Add(-m.ttl)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(deadline) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
		log.Infof("viewer session %s expired", s.ID)
	}
	return len(stale)
}

// Janitor expires idle sessions until ctx is done, then closes the rest.
func (m *SessionManager) Janitor(ctx context.Context) error {
	interval := m.ttl / 2
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return nil
		case now := <-ticker.C:
			m.Expire(now)
		}
	}
}

func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}
