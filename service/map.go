package service

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"gaia/api/model"
	"gaia/api/quadtree"
	"gaia/api/service/assetpkg"
)

// MapService serves single tile assets to HTTP clients, independent of any session.
type MapService struct {
	loader assetpkg.Loader
}

func NewMapService(loader assetpkg.Loader) *MapService { return &MapService{loader: loader} }

// ------------------------------------------------------------
// 1) 参数校验
// ------------------------------------------------------------

// ParseTile validates a level/x/y triple against the quadtree grid.
func ParseTile(level, x, y int) (quadtree.Tile, error) {
	if level < 0 || level > int(quadtree.MaxLevel) {
		return quadtree.Tile{}, fmt.Errorf("level %d out of range [0, %d]", level, quadtree.MaxLevel)
	}
	l := uint8(level)
	if x < 0 || x >= quadtree.TilesAcrossWidth(l) {
		return quadtree.Tile{}, fmt.Errorf("x %d out of range at level %d", x, level)
	}
	if y < 0 || y >= quadtree.TilesAcrossHeight(l) {
		return quadtree.Tile{}, fmt.Errorf("y %d out of range at level %d", y, level)
	}
	return quadtree.NewAtOrigin(l, uint8(x), uint8(y)), nil
}

// ------------------------------------------------------------
// 2) 资源读取
// ------------------------------------------------------------

// Load runs the loader off the caller's goroutine so ctx can abandon a slow read.
func (s *MapService) Load(ctx context.Context, tile quadtree.Tile) (*model.TileAssetData, error) {
	type result struct {
		data *model.TileAssetData
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := s.loader.Load(tile)
		ch <- result{data, err}
	}()
	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *MapService) Metadata(ctx context.Context, tile quadtree.Tile) (model.TileMetadata, error) {
	data, err := s.Load(ctx, tile)
	if err != nil {
		return model.TileMetadata{}, err
	}
	return data.Metadata, nil
}

// ColorPNG re-encodes the tile image losslessly for the client.
func (s *MapService) ColorPNG(ctx context.Context, tile quadtree.Tile) ([]byte, error) {
	data, err := s.Load(ctx, tile)
	if err != nil {
		return nil, err
	}
	if data.Color == nil {
		return nil, fmt.Errorf("tile %s has no color image", tile.Key())
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, data.Color); err != nil {
		return nil, fmt.Errorf("encode png %s: %w", tile.Key(), err)
	}
	return buf.Bytes(), nil
}

// Elevation returns the grid as little-endian u16 with the storage offset applied, the same
// layout as the generated .gray files.
func (s *MapService) Elevation(ctx context.Context, tile quadtree.Tile) ([]byte, error) {
	data, err := s.Load(ctx, tile)
	if err != nil {
		return nil, err
	}
	return assetpkg.EncodeElevation(data.Elevation), nil
}
