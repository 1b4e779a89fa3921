package tilepkg

import (
	"github.com/go-gl/mathgl/mgl32"

	"gaia/api/quadtree"
)

// Camera is the per-frame input supplied by the camera controller.
type Camera struct {
	Height         float64    `json:"height"`
	LookAt         [2]float64 `json:"lookAt"`
	ViewProjection mgl32.Mat4 `json:"viewProjection"`
}

// DesiredTiles lists the tiles at level that should ideally be drawn around lookAt.
//
// The scan covers a square of radius tiles around the center. The radius is not derived
// from the frustum: it has to be large enough for the steepest angle the camera controller
// allows, which keeps this function independent of camera geometry. Tiles are kept when
// their footprint extruded to [0, zUpper] touches the frustum.
func DesiredTiles(level uint8, lookAt [2]float64, frustum Frustum, radius int, zUpper float64) []quadtree.Tile {
	center := quadtree.EnclosingPoint(level, lookAt)

	side := 2*radius + 1
	seen := make(map[quadtree.Tile]struct{}, side*side)
	result := make([]quadtree.Tile, 0, side*side)

	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			tile := center.OffsetBy(dx, dy)
			// vertical clamping folds rows together near the poles
			if _, dup := seen[tile]; dup {
				continue
			}
			seen[tile] = struct{}{}

			if tileInFrustum(tile, frustum, zUpper) {
				result = append(result, tile)
			}
		}
	}
	return result
}

func tileInFrustum(tile quadtree.Tile, frustum Frustum, zUpper float64) bool {
	bl, tr := tile.BottomLeft(), tile.TopRight()
	return frustum.IntersectsBox(
		mgl32.Vec3{float32(bl[0]), float32(bl[1]), 0},
		mgl32.Vec3{float32(tr[0]), float32(tr[1]), float32(zUpper)},
	)
}
