package assetpkg

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	mycache "gaia/api/cache"
	"gaia/api/config"
	"gaia/api/model"
	"gaia/api/quadtree"
)

var ErrNotFound = errors.New("tile asset not found")

// Loader reads everything needed to draw one tile. Implementations block and must be safe
// to call from the fetch worker goroutine.
type Loader interface {
	Load(tile quadtree.Tile) (*model.TileAssetData, error)
}

type LoaderFunc func(tile quadtree.Tile) (*model.TileAssetData, error)

func (f LoaderFunc) Load(tile quadtree.Tile) (*model.TileAssetData, error) {
	return f(tile)
}

// Uploader turns loaded data into the renderer's resident form R. It runs on the frame
// goroutine and must not modify data.
type Uploader[R any] interface {
	Upload(data *model.TileAssetData) (R, error)
}

type UploaderFunc[R any] func(data *model.TileAssetData) (R, error)

func (f UploaderFunc[R]) Upload(data *model.TileAssetData) (R, error) {
	return f(data)
}

// Backend is everything a globe needs from the graphics side.
type Backend[R any] interface {
	Loader
	Uploader[R]
}

type backend[R any] struct {
	Loader
	Uploader[R]
}

func Combine[R any](loader Loader, uploader Uploader[R]) Backend[R] {
	return backend[R]{Loader: loader, Uploader: uploader}
}

// NewLoader builds the loader selected by cfg.Tiles.Source. When cfg.Cache.RawMaxCost is
// positive the loader is wrapped by a CachedLoader, which has to be closed by the caller.
func NewLoader(cfg *config.Config, db *gorm.DB) (Loader, error) {
	var loader Loader
	switch cfg.Tiles.Source {
	case "file":
		loader = NewFileLoader(cfg.Tiles.Dir)
	case "db":
		if db == nil {
			return nil, fmt.Errorf("tiles.source is db but no database connection")
		}
		loader = NewDBLoader(db)
	default:
		return nil, fmt.Errorf("unknown tiles.source %q", cfg.Tiles.Source)
	}

	if cfg.Cache.RawMaxCost <= 0 {
		return loader, nil
	}
	raw, err := mycache.NewRawCache(cfg.Cache.RawMaxCost, cfg.Cache.RawTTL)
	if err != nil {
		return nil, err
	}
	return NewCachedLoader(loader, raw), nil
}
