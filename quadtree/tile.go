package quadtree

import (
	"fmt"
	"math"
)

// MaxLevel is the deepest generated level. Level 0 holds two tiles, one per hemisphere.
const MaxLevel uint8 = 6

// MaxAbsX bounds the world x coordinate a point may have: beyond it the map copy no longer
// fits in Tile.Offset.
const MaxAbsX = 2 * math.MaxInt16

// Tile identifies one quadtree cell. Offset counts how many map widths the tile is shifted
// east (positive) or west (negative) from the canonical copy; it has no geographic meaning.
type Tile struct {
	Offset int16 `json:"offset"`
	Level  uint8 `json:"level"`
	X      uint8 `json:"x"`
	Y      uint8 `json:"y"`
}

type PositionInParent int

const (
	TopLeft PositionInParent = iota
	TopRight
	BottomLeft
	BottomRight
)

func (p PositionInParent) String() string {
	switch p {
	case TopLeft:
		return "TopLeft"
	case TopRight:
		return "TopRight"
	case BottomLeft:
		return "BottomLeft"
	case BottomRight:
		return "BottomRight"
	}
	return fmt.Sprintf("PositionInParent(%d)", int(p))
}

// IsRight reports whether the quadrant lies in the right half of its parent.
func (p PositionInParent) IsRight() bool { return p == TopRight || p == BottomRight }

// IsBottom reports whether the quadrant lies in the bottom half of its parent.
func (p PositionInParent) IsBottom() bool { return p == BottomLeft || p == BottomRight }

func NewAtOrigin(level, x, y uint8) Tile {
	return Tile{Level: level, X: x, Y: y}
}

// LevelWidth is the width of tiles at level.
func LevelWidth(level uint8) float64 {
	return 1 / math.Pow(2, float64(level))
}

func TilesAcrossWidth(level uint8) int {
	return 1 << (int(level) + 1)
}

func TilesAcrossHeight(level uint8) int {
	return TilesAcrossWidth(level) / 2
}

// EnclosingPoint returns the tile at level whose footprint contains point.
func EnclosingPoint(level uint8, point [2]float64) Tile {
	offset := math.Floor(point[0] / 2)
	width := LevelWidth(level)

	x := int((point[0] - offset*2) / width)
	y := int(point[1] / width)

	// float rounding right at a seam can land one past the last column
	return Tile{
		Offset: int16(offset),
		Level:  level,
		X:      uint8(clamp(x, 0, TilesAcrossWidth(level)-1)),
		Y:      uint8(clamp(y, 0, TilesAcrossHeight(level)-1)),
	}
}

func (t Tile) Parent() (Tile, bool) {
	if t.Level == 0 {
		return Tile{}, false
	}
	return Tile{
		Offset: t.Offset,
		Level:  t.Level - 1,
		X:      t.X / 2,
		Y:      t.Y / 2,
	}, true
}

func (t Tile) PositionInParent() (PositionInParent, bool) {
	if t.Level == 0 {
		return 0, false
	}
	evenX, evenY := t.X%2 == 0, t.Y%2 == 0
	switch {
	case evenX && evenY:
		return TopLeft, true
	case !evenX && evenY:
		return TopRight, true
	case evenX && !evenY:
		return BottomLeft, true
	default:
		return BottomRight, true
	}
}

func (t Tile) Width() float64 {
	return LevelWidth(t.Level)
}

func (t Tile) BottomLeft() [2]float64 {
	w := t.Width()
	return [2]float64{2*float64(t.Offset) + float64(t.X)*w, float64(t.Y) * w}
}

func (t Tile) BottomRight() [2]float64 {
	bl, w := t.BottomLeft(), t.Width()
	return [2]float64{bl[0] + w, bl[1]}
}

func (t Tile) TopLeft() [2]float64 {
	bl, w := t.BottomLeft(), t.Width()
	return [2]float64{bl[0], bl[1] + w}
}

func (t Tile) TopRight() [2]float64 {
	bl, w := t.BottomLeft(), t.Width()
	return [2]float64{bl[0] + w, bl[1] + w}
}

// OffsetBy returns the neighbour dx tiles east and dy tiles north. Horizontal moves wrap
// around the globe and adjust Offset; vertical moves clamp at the poles.
func (t Tile) OffsetBy(dx, dy int) Tile {
	overflowX := int(t.X) + dx
	overflowY := int(t.Y) + dy

	width := TilesAcrossWidth(t.Level)
	height := TilesAcrossHeight(t.Level)

	return Tile{
		Offset: t.Offset + int16(floorDiv(overflowX, width)),
		Level:  t.Level,
		X:      uint8(floorMod(overflowX, width)),
		Y:      uint8(clamp(overflowY, 0, height-1)),
	}
}

// ToOrigin is the same tile on the canonical copy; use it for every cache lookup.
func (t Tile) ToOrigin() Tile {
	t.Offset = 0
	return t
}

// Key is the storage stem of the tile, shared by all of its offset copies.
func (t Tile) Key() string {
	return fmt.Sprintf("%d_%d_%d", t.Level, t.X, t.Y)
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d@%d", t.Level, t.X, t.Y, t.Offset)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
