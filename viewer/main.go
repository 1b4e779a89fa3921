package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"gorm.io/gorm"

	"gaia/api/config"
	"gaia/api/log"
	"gaia/api/model"
	"gaia/api/quadtree"
	"gaia/api/service"
	"gaia/api/service/assetpkg"
	"gaia/api/service/tilepkg"
	"gaia/api/system"
)

const (
	screenWidth  = 1280
	screenHeight = 720

	minHeight = 0.005
	maxHeight = 2.0
)

func main() {
	confPath := flag.String("config", "", "Path to config.yaml")
	flag.Parse()

	if err := config.Init(*confPath); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.GetConfig()
	if err := log.Init(cfg.Log); err != nil {
		log.Fatalf("init log: %v", err)
	}

	var db *gorm.DB
	if cfg.Tiles.Source == "db" {
		var err error
		if db, err = system.InitDb(cfg.Database); err != nil {
			log.Fatalf("init db: %v", err)
		}
		defer system.CloseDb()
	}
	loader, err := assetpkg.NewLoader(cfg, db)
	if err != nil {
		log.Fatalf("init tile loader: %v", err)
	}
	if c, ok := loader.(io.Closer); ok {
		defer c.Close()
	}

	backend := assetpkg.Combine[*ebiten.Image](loader, assetpkg.UploaderFunc[*ebiten.Image](upload))
	globe, err := service.NewGlobe(backend, service.GlobeOptionsFromConfig(cfg), func(_ quadtree.Tile, img *ebiten.Image) {
		img.Deallocate()
	})
	if err != nil {
		log.Fatalf("init globe: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	globe.Start(ctx)

	g := &game{
		globe:  globe,
		lookAt: [2]float64{1, 0.5},
		height: 0.8,
	}
	ebiten.SetWindowTitle("gaia")
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(g); err != nil {
		log.Errorf("viewer: %v", err)
	}
}

func upload(data *model.TileAssetData) (*ebiten.Image, error) {
	if data.Color == nil {
		return nil, fmt.Errorf("tile %s has no color image", data.Tile)
	}
	return ebiten.NewImageFromImage(data.Color), nil
}

// ---------- camera ----------

type game struct {
	globe *service.Globe[*ebiten.Image]
	plan  *tilepkg.RenderPlan

	lookAt [2]float64
	height float64

	dragging   bool
	lastCursor [2]int
	width      int
	heightPx   int
}

// extent is the world rectangle on screen. The visible width grows linearly with height.
func (g *game) extent() (left, right, bottom, top float64) {
	halfW := g.height * 1.5
	halfH := halfW * float64(g.heightPx) / float64(g.width)
	return g.lookAt[0] - halfW, g.lookAt[0] + halfW, g.lookAt[1] - halfH, g.lookAt[1] + halfH
}

func (g *game) camera() tilepkg.Camera {
	left, right, bottom, top := g.extent()
	return tilepkg.Camera{
		Height:         g.height,
		LookAt:         g.lookAt,
		ViewProjection: mgl32.Ortho(float32(left), float32(right), float32(bottom), float32(top), -1, 1),
	}
}

func (g *game) handleInput() {
	left, right, bottom, top := g.extent()
	perPxX := (right - left) / float64(g.width)
	perPxY := (top - bottom) / float64(g.heightPx)

	x, y := ebiten.CursorPosition()
	pressed := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) || ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle)
	if pressed && g.dragging {
		g.lookAt[0] -= float64(x-g.lastCursor[0]) * perPxX
		g.lookAt[1] += float64(y-g.lastCursor[1]) * perPxY
	}
	g.dragging = pressed
	g.lastCursor = [2]int{x, y}

	step := 0.02 * g.height
	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) || ebiten.IsKeyPressed(ebiten.KeyA) {
		g.lookAt[0] -= step
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) || ebiten.IsKeyPressed(ebiten.KeyD) {
		g.lookAt[0] += step
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) || ebiten.IsKeyPressed(ebiten.KeyW) {
		g.lookAt[1] += step
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) || ebiten.IsKeyPressed(ebiten.KeyS) {
		g.lookAt[1] -= step
	}

	if _, wheel := ebiten.Wheel(); wheel != 0 {
		g.height *= math.Pow(1.1, -wheel)
	}
	g.height = math.Max(minHeight, math.Min(maxHeight, g.height))
	g.lookAt[1] = math.Max(0, math.Min(1, g.lookAt[1]))
	// whole map widths are invisible, keep x far from the Tile.Offset range
	if math.Abs(g.lookAt[0]) > 1024 {
		g.lookAt[0] = math.Mod(g.lookAt[0], 2)
	}
}

func (g *game) Update() error {
	if g.width == 0 {
		g.width, g.heightPx = screenWidth, screenHeight
	}
	g.handleInput()
	g.plan = g.globe.Frame(g.camera())
	return nil
}

// ---------- drawing ----------

func (g *game) Draw(screen *ebiten.Image) {
	if g.plan == nil {
		return
	}
	left, right, bottom, top := g.extent()
	toScreenX := func(wx float64) float64 { return (wx - left) / (right - left) * float64(g.width) }
	toScreenY := func(wy float64) float64 { return (top - wy) / (top - bottom) * float64(g.heightPx) }

	// coarse substitutes first so exact tiles end up on top
	for pass := 0; pass < 2; pass++ {
		for _, rt := range g.plan.Render {
			exact := rt.Tile == rt.Desired
			if exact != (pass == 1) {
				continue
			}
			img, ok := g.globe.Resident(rt.Tile)
			if !ok {
				continue
			}
			sub := cropImage(img, rt.Crop)
			sw, sh := sub.Bounds().Dx(), sub.Bounds().Dy()
			if sw == 0 || sh == 0 {
				continue
			}

			bl, tr := rt.Desired.BottomLeft(), rt.Desired.TopRight()
			destW := toScreenX(tr[0]) - toScreenX(bl[0])
			destH := toScreenY(bl[1]) - toScreenY(tr[1])

			op := &ebiten.DrawImageOptions{}
			// image rows grow with world y, screen rows the other way
			op.GeoM.Scale(destW/float64(sw), -destH/float64(sh))
			op.GeoM.Translate(toScreenX(bl[0]), toScreenY(bl[1]))
			op.Filter = ebiten.FilterLinear
			screen.DrawImage(sub, op)
		}
	}

	stats := g.globe.Stats()
	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"level %d  height %.4f  lookAt (%.4f, %.4f)\nrender %d  fetch %d  cached %d/%d  in flight %d  failed %d\nTPS %.0f",
		g.plan.Level, g.height, g.lookAt[0], g.lookAt[1],
		len(g.plan.Render), len(g.plan.Fetch), stats.Cached, stats.Capacity, stats.InFlight, stats.Failed,
		ebiten.ActualTPS()))
}

// cropImage maps a grid crop onto the tile image, which spans the same footprint.
func cropImage(img *ebiten.Image, crop tilepkg.IndexCrop) *ebiten.Image {
	if crop.IsFull(model.ElevationTileSize) {
		return img
	}
	b := img.Bounds()
	cells := float64(model.ElevationTileSize - 1)
	sx := float64(b.Dx()) / cells
	sy := float64(b.Dy()) / cells
	r := image.Rect(
		b.Min.X+int(float64(crop.Left)*sx),
		b.Min.Y+int(float64(crop.Top)*sy),
		b.Min.X+int(math.Ceil(float64(crop.Left+crop.Width)*sx)),
		b.Min.Y+int(math.Ceil(float64(crop.Top+crop.Width)*sy)),
	)
	return img.SubImage(r).(*ebiten.Image)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.width, g.heightPx = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}
