package service

import (
	"fmt"
	"strings"

	"gaia/api/model"
	"gaia/api/quadtree"
)

// TileHandle is the resident form of a tile for remote viewers: the data stays on the
// server and the client downloads it from the tile endpoints.
type TileHandle struct {
	Tile         quadtree.Tile      `json:"tile"`
	Metadata     model.TileMetadata `json:"metadata"`
	ColorURL     string             `json:"colorUrl"`
	ElevationURL string             `json:"elevationUrl"`
	MetaURL      string             `json:"metaUrl"`
}

type HandleUploader struct {
	BaseURL string
}

func NewHandleUploader(baseURL string) *HandleUploader {
	return &HandleUploader{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (u *HandleUploader) Upload(data *model.TileAssetData) (TileHandle, error) {
	if data == nil {
		return TileHandle{}, fmt.Errorf("upload: no data")
	}
	t := data.Tile.ToOrigin()
	prefix := fmt.Sprintf("%s/tiles/%d/%d/%d", u.BaseURL, t.Level, t.X, t.Y)
	return TileHandle{
		Tile:         t,
		Metadata:     data.Metadata,
		ColorURL:     prefix + "/color",
		ElevationURL: prefix + "/elevation",
		MetaURL:      prefix + "/meta",
	}, nil
}
