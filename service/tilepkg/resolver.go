package tilepkg

import (
	"gaia/api/quadtree"
)

// Cache is the view of the asset cache the resolver needs. Implementations normalize the
// tile with ToOrigin.
type Cache interface {
	Contains(tile quadtree.Tile) bool
	Touch(tile quadtree.Tile) bool
}

// IndexCrop is a square window of an ancestor's elevation grid, in grid cells.
type IndexCrop struct {
	Left  uint32 `json:"left"`
	Top   uint32 `json:"top"`
	Width uint32 `json:"width"`
}

func FullCrop(gridSize uint32) IndexCrop {
	return IndexCrop{Width: gridSize - 1}
}

func (c IndexCrop) IsFull(gridSize uint32) bool {
	return c == FullCrop(gridSize)
}

// Indices lists two triangles per grid cell of the crop, indexing a row-major
// gridSize x gridSize vertex grid.
func (c IndexCrop) Indices(gridSize uint32) []uint32 {
	out := make([]uint32, 0, int(c.Width*c.Width)*6)
	for x := c.Left; x < c.Left+c.Width; x++ {
		for y := c.Top; y < c.Top+c.Width; y++ {
			a := x + y*gridSize
			b := x + (y+1)*gridSize
			cc := (x + 1) + y*gridSize
			d := (x + 1) + (y+1)*gridSize
			out = append(out, a, b, cc, cc, b, d)
		}
	}
	return out
}

// RenderTile says: draw Desired using Tile's resident data restricted to Crop.
type RenderTile struct {
	Desired quadtree.Tile `json:"desired"`
	Tile    quadtree.Tile `json:"tile"`
	Crop    IndexCrop     `json:"crop"`
}

// FindCovering walks up from tile until an ancestor (or tile itself) is cached. path holds
// the quadrants descended from that ancestor back to tile, root first.
func FindCovering(cache Cache, tile quadtree.Tile) (ancestor quadtree.Tile, path []quadtree.PositionInParent, ok bool) {
	var leafFirst []quadtree.PositionInParent
	for {
		if cache.Contains(tile.ToOrigin()) {
			cache.Touch(tile.ToOrigin())
			break
		}
		parent, hasParent := tile.Parent()
		if !hasParent {
			return quadtree.Tile{}, nil, false
		}
		pos, _ := tile.PositionInParent()
		leafFirst = append(leafFirst, pos)
		tile = parent
	}

	path = make([]quadtree.PositionInParent, len(leafFirst))
	for i, pos := range leafFirst {
		path[len(leafFirst)-1-i] = pos
	}
	return tile, path, true
}

// CropFor narrows the full grid once per quadrant in path.
func CropFor(path []quadtree.PositionInParent, gridSize uint32) IndexCrop {
	crop := FullCrop(gridSize)
	for _, pos := range path {
		crop.Width /= 2
		if pos.IsRight() {
			crop.Left += crop.Width
		}
		if pos.IsBottom() {
			crop.Top += crop.Width
		}
	}
	return crop
}

// CoveringTile finds what to draw for tile. ok is false when nothing on its ancestor chain
// is cached yet.
func CoveringTile(cache Cache, tile quadtree.Tile, gridSize uint32) (RenderTile, bool) {
	ancestor, path, ok := FindCovering(cache, tile)
	if !ok {
		return RenderTile{}, false
	}
	return RenderTile{
		Desired: tile,
		Tile:    ancestor,
		Crop:    CropFor(path, gridSize),
	}, true
}
