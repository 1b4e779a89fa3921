package assetpkg

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"gaia/api/model"
)

// MaxBlobSize is the largest inflated blob Decompress accepts: one stored elevation grid.
const MaxBlobSize = 2 * model.ElevationTileSize * model.ElevationTileSize

// shared decoder, DecodeAll is safe for concurrent use
var zstdDecoder *zstd.Decoder

func init() {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("zstd decoder: %v", err))
	}
	zstdDecoder = dec
}

// DecodeColor decodes a JPEG or PNG tile image into RGBA.
func DecodeColor(r io.Reader) (*image.RGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode color: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}

// DecodeElevation reads little-endian u16 samples, removing model.ElevationOffset with
// saturation at zero. The grid must be exactly ElevationTileSize squared.
func DecodeElevation(raw []byte) ([]uint16, error) {
	const want = model.ElevationTileSize * model.ElevationTileSize
	if len(raw) != want*2 {
		return nil, fmt.Errorf("decode elevation: got %d bytes, want %d", len(raw), want*2)
	}
	out := make([]uint16, want)
	for i := range out {
		v := binary.LittleEndian.Uint16(raw[i*2:])
		if v > model.ElevationOffset {
			out[i] = v - model.ElevationOffset
		}
	}
	return out, nil
}

// EncodeElevation is the inverse of DecodeElevation, used for stored and served grids.
func EncodeElevation(samples []uint16) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		stored := uint32(v) + uint32(model.ElevationOffset)
		if stored > 0xffff {
			stored = 0xffff
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(stored))
	}
	return out
}

func DecodeMetadata(raw []byte) (model.TileMetadata, error) {
	var md model.TileMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return md, fmt.Errorf("decode metadata: %w", err)
	}
	return md, nil
}

// Decompress undoes the blob encoding used by the map_tile_asset table. Blobs inflating past
// MaxBlobSize are rejected before they are fully decoded.
func Decompress(encoding string, blob []byte) ([]byte, error) {
	switch encoding {
	case model.EncodingRaw, "":
		return blob, nil
	case model.EncodingGzip:
		gr, err := gzip.NewReader(bytes.NewReader(blob))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		raw, err := io.ReadAll(io.LimitReader(gr, MaxBlobSize+1))
		if err != nil {
			return nil, err
		}
		if len(raw) > MaxBlobSize {
			return nil, fmt.Errorf("gzip blob inflates past %d bytes", MaxBlobSize)
		}
		return raw, nil
	case model.EncodingZstd:
		var h zstd.Header
		if err := h.Decode(blob); err != nil {
			return nil, fmt.Errorf("zstd header: %w", err)
		}
		if h.HasFCS && h.FrameContentSize > MaxBlobSize {
			return nil, fmt.Errorf("zstd blob declares %d bytes, max %d", h.FrameContentSize, MaxBlobSize)
		}
		raw, err := zstdDecoder.DecodeAll(blob, make([]byte, 0, MaxBlobSize))
		if err != nil {
			return nil, err
		}
		if len(raw) > MaxBlobSize {
			return nil, fmt.Errorf("zstd blob inflates past %d bytes", MaxBlobSize)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", encoding)
}

// Compress is used by importers and tests to produce stored blobs.
func Compress(encoding string, raw []byte) ([]byte, error) {
	switch encoding {
	case model.EncodingRaw, "":
		return raw, nil
	case model.EncodingGzip:
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(raw); err != nil {
			return nil, err
		}
		if err := gw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case model.EncodingZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	}
	return nil, fmt.Errorf("unknown encoding %q", encoding)
}
