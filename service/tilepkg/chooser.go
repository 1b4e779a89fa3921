package tilepkg

import (
	"gaia/api/config"
	"gaia/api/model"
	"gaia/api/quadtree"
)

// RenderPlan is rebuilt every frame and dropped once drawn.
type RenderPlan struct {
	Level  uint8           `json:"level"`
	Render []RenderTile    `json:"render"`
	Fetch  []quadtree.Tile `json:"fetch"`
}

type Chooser struct {
	Policy      LevelPolicy
	Radius      int
	ZUpperBound float64
	GridSize    uint32
}

func NewChooser() *Chooser {
	return NewChooserFromConfig(config.Default().Chooser)
}

func NewChooserFromConfig(c config.ChooserConfig) *Chooser {
	return &Chooser{
		Policy:      LevelPolicyFromConfig(c),
		Radius:      c.Radius,
		ZUpperBound: c.ZUpperBound,
		GridSize:    model.ElevationTileSize,
	}
}

// Choose decides what to draw and what to fetch for one frame.
func (ch *Chooser) Choose(cache Cache, camera Camera) *RenderPlan {
	level := ch.Policy.Level(camera.Height)
	frustum := NewFrustum(camera.ViewProjection)
	desired := DesiredTiles(level, camera.LookAt, frustum, ch.Radius, ch.ZUpperBound)

	plan := &RenderPlan{
		Level:  level,
		Render: make([]RenderTile, 0, len(desired)),
	}
	for _, tile := range desired {
		if !cache.Contains(tile.ToOrigin()) {
			plan.Fetch = append(plan.Fetch, tile)
		}
		if rt, ok := CoveringTile(cache, tile, ch.GridSize); ok {
			plan.Render = append(plan.Render, rt)
		}
	}
	return plan
}
