package model

import (
	"image"
	"time"

	"gaia/api/quadtree"
)

const (
	// ElevationTileSize is the side of a tile's elevation grid. It is 2^N+1 so that the grid
	// bisects with shared edges down to a 2x2 grid.
	ElevationTileSize = 129

	// ImageryTileSize is the side of a tile's color image in pixels.
	ImageryTileSize = 675

	// ElevationOffset is added to every stored elevation so that sea-floor samples stay
	// positive; loaders subtract it again.
	ElevationOffset uint16 = 500
)

const (
	TB_MAP_TILE_ASSET = "map_tile_asset"

	EncodingRaw  = "raw"
	EncodingGzip = "gzip"
	EncodingZstd = "zstd"
)

type TileMetadata struct {
	MinElevation uint16   `json:"min_elevation"`
	MaxElevation uint16   `json:"max_elevation"`
	Polygons     []uint64 `json:"polygons"`
	Points       []uint64 `json:"points"`
}

// TileAssetData is a fully loaded tile as produced by a loader. It is handed from the fetch
// worker to the frame loop by value and never shared afterwards.
type TileAssetData struct {
	Tile      quadtree.Tile
	Color     *image.RGBA
	Elevation []uint16
	Metadata  TileMetadata
}

// Size approximates the memory held by the asset in bytes.
func (d *TileAssetData) Size() int64 {
	if d == nil {
		return 0
	}
	var n int64
	if d.Color != nil {
		n += int64(len(d.Color.Pix))
	}
	n += int64(len(d.Elevation)) * 2
	n += int64(len(d.Metadata.Polygons)+len(d.Metadata.Points)) * 8
	return n + 64
}

// TileAsset is one stored tile in the map_tile_asset table.
type TileAsset struct {
	ID        uint64    `gorm:"column:id;primary_key;auto_increment" json:"id"`
	Level     uint8     `gorm:"column:level;uniqueIndex:uk_tile" json:"level"`
	X         uint8     `gorm:"column:x;uniqueIndex:uk_tile" json:"x"`
	Y         uint8     `gorm:"column:y;uniqueIndex:uk_tile" json:"y"`
	Color     []byte    `gorm:"column:color;type:mediumblob" json:"-"`
	Elevation []byte    `gorm:"column:elevation;type:mediumblob" json:"-"`
	Encoding  string    `gorm:"column:encoding;type:varchar(16)" json:"encoding"`
	Metadata  []byte    `gorm:"column:metadata;type:json" json:"metadata"`
	Rev       int64     `gorm:"column:rev" json:"rev"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (TileAsset) TableName() string {
	return TB_MAP_TILE_ASSET
}
