package assetpkg

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"

	"gaia/api/model"
	"gaia/api/quadtree"
)

// FileLoader reads the generated tile files {dir}/{level}_{x}_{y}.jpg, .gray and .json.
type FileLoader struct {
	Dir string
}

func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{Dir: dir}
}

func (l *FileLoader) Path(tile quadtree.Tile, ext string) string {
	return filepath.Join(l.Dir, tile.ToOrigin().Key()+ext)
}

func (l *FileLoader) Load(tile quadtree.Tile) (*model.TileAssetData, error) {
	color, err := l.loadColor(tile)
	if err != nil {
		return nil, err
	}
	elevation, err := l.loadElevation(tile)
	if err != nil {
		return nil, err
	}
	metadata, err := l.loadMetadata(tile)
	if err != nil {
		return nil, err
	}
	return &model.TileAssetData{
		Tile:      tile.ToOrigin(),
		Color:     color,
		Elevation: elevation,
		Metadata:  metadata,
	}, nil
}

func (l *FileLoader) loadColor(tile quadtree.Tile) (*image.RGBA, error) {
	f, err := os.Open(l.Path(tile, ".jpg"))
	if err != nil {
		return nil, notFound(err)
	}
	defer f.Close()
	return DecodeColor(f)
}

func (l *FileLoader) loadElevation(tile quadtree.Tile) ([]uint16, error) {
	raw, err := os.ReadFile(l.Path(tile, ".gray"))
	if err != nil {
		return nil, notFound(err)
	}
	return DecodeElevation(raw)
}

func (l *FileLoader) loadMetadata(tile quadtree.Tile) (model.TileMetadata, error) {
	raw, err := os.ReadFile(l.Path(tile, ".json"))
	if err != nil {
		return model.TileMetadata{}, notFound(err)
	}
	return DecodeMetadata(raw)
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
