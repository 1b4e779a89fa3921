package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm/clause"

	"gaia/api/config"
	"gaia/api/model"
	"gaia/api/quadtree"
	"gaia/api/service/assetpkg"
	"gaia/api/system"
)

// 把生成好的瓦片目录（{level}_{x}_{y}.jpg/.gray/.json）导入 map_tile_asset 表。
// 默认输出 SQL 文件；指定 -config 且 database.dsn 不为空时直接写库。

var tileNameRe = regexp.MustCompile(`^(\d+)_(\d+)_(\d+)\.jpg$`)

func main() {
	input := flag.String("input", "assets/generated/tiles", "Directory of generated tiles")
	encoding := flag.String("encoding", model.EncodingZstd, "Elevation blob encoding: raw | gzip | zstd")
	rev := flag.Int64("rev", 1, "Tile revision")
	outDir := flag.String("out", "out_sql", "Output directory for the SQL file")
	confPath := flag.String("config", "", "Config file; with a database dsn rows are written directly")
	flag.Parse()

	tiles, err := scanTiles(*input)
	must(err)
	if len(tiles) == 0 {
		fmt.Fprintf(os.Stderr, "no tiles found in %s\n", *input)
		os.Exit(1)
	}

	rows := make([]*model.TileAsset, 0, len(tiles))
	for _, tile := range tiles {
		row, err := buildRow(*input, tile, *encoding, *rev)
		if err != nil {
			// 单块损坏不影响其他块
			fmt.Fprintf(os.Stderr, "warn: skip tile %s: %v\n", tile.Key(), err)
			continue
		}
		rows = append(rows, row)
	}

	if *confPath != "" {
		must(config.Init(*confPath))
		cfg := config.GetConfig()
		if cfg.Database.DSN != "" {
			must(writeDb(cfg.Database, rows))
			fmt.Printf("OK\n%d tiles written to %s\n", len(rows), model.TB_MAP_TILE_ASSET)
			return
		}
	}

	_ = os.MkdirAll(*outDir, 0o755)
	sqlPath := filepath.Join(*outDir, "map_tile_asset_inserts.sql")
	must(os.WriteFile(sqlPath, []byte(buildSQL(rows, *encoding)), 0o644))

	fmt.Printf("OK\ntiles: %d (encoding %s, rev %d)\n", len(rows), *encoding, *rev)
	fmt.Println("files:")
	fmt.Println("  ", sqlPath)
}

// ---- helpers ----

func scanTiles(dir string) ([]quadtree.Tile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var tiles []quadtree.Tile
	for _, e := range entries {
		m := tileNameRe.FindStringSubmatch(e.Name())
		if len(m) != 4 {
			continue
		}
		tile, err := parseTile(m[1], m[2], m[3])
		if err != nil {
			fmt.Fprintf(os.Stderr, "warn: %s: %v\n", e.Name(), err)
			continue
		}
		tiles = append(tiles, tile)
	}
	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i], tiles[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return tiles, nil
}

func parseTile(level, x, y string) (quadtree.Tile, error) {
	l, err := strconv.Atoi(level)
	if err != nil {
		return quadtree.Tile{}, err
	}
	tx, err := strconv.Atoi(x)
	if err != nil {
		return quadtree.Tile{}, err
	}
	ty, err := strconv.Atoi(y)
	if err != nil {
		return quadtree.Tile{}, err
	}
	if l > int(quadtree.MaxLevel) || tx >= quadtree.TilesAcrossWidth(uint8(l)) || ty >= quadtree.TilesAcrossHeight(uint8(l)) {
		return quadtree.Tile{}, fmt.Errorf("tile %d/%d/%d outside the grid", l, tx, ty)
	}
	return quadtree.NewAtOrigin(uint8(l), uint8(tx), uint8(ty)), nil
}

// buildRow keeps the source jpg bytes and the stored (offset) elevation samples; it only
// decodes them to reject broken tiles before they reach the table.
func buildRow(dir string, tile quadtree.Tile, encoding string, rev int64) (*model.TileAsset, error) {
	loader := assetpkg.NewFileLoader(dir)
	if _, err := loader.Load(tile); err != nil {
		return nil, err
	}

	color, err := os.ReadFile(loader.Path(tile, ".jpg"))
	if err != nil {
		return nil, err
	}
	gray, err := os.ReadFile(loader.Path(tile, ".gray"))
	if err != nil {
		return nil, err
	}
	metadata, err := os.ReadFile(loader.Path(tile, ".json"))
	if err != nil {
		return nil, err
	}
	elevation, err := assetpkg.Compress(encoding, gray)
	if err != nil {
		return nil, err
	}
	return &model.TileAsset{
		Level:     tile.Level,
		X:         tile.X,
		Y:         tile.Y,
		Color:     color,
		Elevation: elevation,
		Encoding:  encoding,
		Metadata:  metadata,
		Rev:       rev,
		UpdatedAt: time.Now(),
	}, nil
}

func buildSQL(rows []*model.TileAsset, encoding string) string {
	buf := &strings.Builder{}
	fmt.Fprintf(buf, "-- INSERTs for %s (%d tiles, elevation encoding=%s)\n", model.TB_MAP_TILE_ASSET, len(rows), encoding)
	for _, r := range rows {
		fmt.Fprintf(buf,
			"REPLACE INTO %s (level, x, y, color, elevation, encoding, metadata, rev, updated_at) VALUES "+
				"(%d,%d,%d,UNHEX('%s'),UNHEX('%s'),'%s','%s',%d,NOW());\n",
			model.TB_MAP_TILE_ASSET,
			r.Level, r.X, r.Y,
			toHex(r.Color), toHex(r.Elevation),
			escapeSQL(r.Encoding), escapeSQL(string(r.Metadata)), r.Rev)
	}
	return buf.String()
}

func writeDb(cfg config.DatabaseConfig, rows []*model.TileAsset) error {
	db, err := system.InitDb(cfg)
	if err != nil {
		return err
	}
	defer system.CloseDb()

	if err := db.AutoMigrate(&model.TileAsset{}); err != nil {
		return fmt.Errorf("migrate %s: %w", model.TB_MAP_TILE_ASSET, err)
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "level"}, {Name: "x"}, {Name: "y"}},
		DoUpdates: clause.AssignmentColumns([]string{"color", "elevation", "encoding", "metadata", "rev", "updated_at"}),
	}).CreateInBatches(rows, 50).Error
}

func toHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

func escapeSQL(s string) string {
	// 最简转义：单引号 -> 两个单引号；反斜杠 -> 双反斜杠
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `''`)
	return s
}

func must(err error) {
	if err != nil {
		if err == io.EOF {
			return
		}
		panic(err)
	}
}
