package home

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gaia/api/api/common"
	"gaia/api/codes"
	"gaia/api/log"
	"gaia/api/quadtree"
	"gaia/api/service"
	"gaia/api/service/assetpkg"
)

var mapService *service.MapService

func Setup(svc *service.MapService) {
	mapService = svc
}

// ---------- 工具：参数解析 ----------

func parseTileParams(c *gin.Context) (quadtree.Tile, error) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		return quadtree.Tile{}, errors.New("level must be an integer")
	}
	x, err := strconv.Atoi(c.Param("x"))
	if err != nil {
		return quadtree.Tile{}, errors.New("x must be an integer")
	}
	y, err := strconv.Atoi(c.Param("y"))
	if err != nil {
		return quadtree.Tile{}, errors.New("y must be an integer")
	}
	return service.ParseTile(level, x, y)
}

func fail(c *gin.Context, res common.Response, err error) {
	switch {
	case errors.Is(err, assetpkg.ErrNotFound):
		res.Code = codes.CODE_ERR_OBJ_NOT_FOUND
	default:
		log.Error("tile asset error: ", err)
		res.Code = codes.CODE_ERR_UNKNOWN
	}
	res.Msg = err.Error()
	c.JSON(http.StatusOK, res)
}

// ---------- Gin Handler ----------

// GET /tiles/:level/:x/:y/meta
func TileMeta(c *gin.Context) {
	res := common.Response{Timestamp: time.Now().Unix(), Code: codes.CODE_SUCCESS, Msg: "success"}

	tile, err := parseTileParams(c)
	if err != nil {
		res.Code = codes.CODE_ERR_BAD_PARAMS
		res.Msg = err.Error()
		c.JSON(http.StatusOK, res)
		return
	}
	md, err := mapService.Metadata(c.Request.Context(), tile)
	if err != nil {
		fail(c, res, err)
		return
	}
	res.Data = gin.H{"tile": tile, "metadata": md}
	c.JSON(http.StatusOK, res)
}

// GET /tiles/:level/:x/:y/color
// 成功返回 image/png，失败返回 JSON
func TileColor(c *gin.Context) {
	res := common.Response{Timestamp: time.Now().Unix()}

	tile, err := parseTileParams(c)
	if err != nil {
		res.Code = codes.CODE_ERR_BAD_PARAMS
		res.Msg = err.Error()
		c.JSON(http.StatusOK, res)
		return
	}
	body, err := mapService.ColorPNG(c.Request.Context(), tile)
	if err != nil {
		fail(c, res, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", body)
}

// GET /tiles/:level/:x/:y/elevation
// 成功返回 little-endian u16 网格（含 +500 偏移），失败返回 JSON
func TileElevation(c *gin.Context) {
	res := common.Response{Timestamp: time.Now().Unix()}

	tile, err := parseTileParams(c)
	if err != nil {
		res.Code = codes.CODE_ERR_BAD_PARAMS
		res.Msg = err.Error()
		c.JSON(http.StatusOK, res)
		return
	}
	body, err := mapService.Elevation(c.Request.Context(), tile)
	if err != nil {
		fail(c, res, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "application/octet-stream", body)
}
