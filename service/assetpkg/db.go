package assetpkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"gaia/api/model"
	"gaia/api/quadtree"
)

// mysql: Table doesn't exist
const errNoSuchTable = 1146

// DBLoader reads tiles from the map_tile_asset table.
type DBLoader struct {
	DB      *gorm.DB
	Timeout time.Duration
}

func NewDBLoader(db *gorm.DB) *DBLoader {
	return &DBLoader{DB: db, Timeout: 5 * time.Second}
}

func (l *DBLoader) Load(tile quadtree.Tile) (*model.TileAssetData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.Timeout)
	defer cancel()

	row, err := l.queryRow(ctx, tile.ToOrigin())
	if err != nil {
		return nil, err
	}
	return decodeRow(row)
}

func (l *DBLoader) queryRow(ctx context.Context, tile quadtree.Tile) (*model.TileAsset, error) {
	var row model.TileAsset
	err := l.DB.WithContext(ctx).
		Model(&model.TileAsset{}).
		Where("level = ? AND x = ? AND y = ?", tile.Level, tile.X, tile.Y).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tile.Key())
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errNoSuchTable {
		return nil, fmt.Errorf("table %s missing, run the tile import first: %w", model.TB_MAP_TILE_ASSET, err)
	}
	if err != nil {
		return nil, fmt.Errorf("query tile %s: %w", tile.Key(), err)
	}
	return &row, nil
}

func decodeRow(row *model.TileAsset) (*model.TileAssetData, error) {
	tile := quadtree.NewAtOrigin(row.Level, row.X, row.Y)

	color, err := DecodeColor(bytes.NewReader(row.Color))
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", tile.Key(), err)
	}
	rawElevation, err := Decompress(row.Encoding, row.Elevation)
	if err != nil {
		return nil, fmt.Errorf("tile %s decompress elevation: %w", tile.Key(), err)
	}
	elevation, err := DecodeElevation(rawElevation)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", tile.Key(), err)
	}
	metadata, err := DecodeMetadata(row.Metadata)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", tile.Key(), err)
	}
	return &model.TileAssetData{
		Tile:      tile,
		Color:     color,
		Elevation: elevation,
		Metadata:  metadata,
	}, nil
}
