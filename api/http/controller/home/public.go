package home

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gaia/api/api/common"
	"gaia/api/codes"
	"gaia/api/config"
	"gaia/api/model"
	"gaia/api/quadtree"
	"gaia/api/service/tilepkg"
)

// GET /public/config
// 客户端渲染所需的常量与选层策略
func Public(c *gin.Context) {
	res := common.Response{}
	res.Timestamp = time.Now().Unix()

	res.Code = codes.CODE_SUCCESS
	res.Msg = "success"

	cfg := config.GetConfig()
	res.Data = gin.H{
		"max_level":           quadtree.MaxLevel,
		"elevation_tile_size": model.ElevationTileSize,
		"imagery_tile_size":   model.ImageryTileSize,
		"level_policy":        tilepkg.LevelPolicyFromConfig(cfg.Chooser),
		"radius":              cfg.Chooser.Radius,
		"z_upper_bound":       cfg.Chooser.ZUpperBound,
		"session_ttl":         cfg.Viewer.SessionTTL.Seconds(),
	}

	c.JSON(http.StatusOK, res)
}
