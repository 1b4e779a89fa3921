package http

import (
	"github.com/gin-gonic/gin"

	"gaia/api/api/http/controller/home"
	"gaia/api/api/http/controller/viewer"
)

func Routers(e *gin.RouterGroup) {

	homeGroup := e.Group("/")
	homeGroup.GET("public/config", home.Public)

	tileGroup := e.Group("/tiles/:level/:x/:y")
	tileGroup.GET("meta", home.TileMeta)
	tileGroup.GET("color", home.TileColor)
	tileGroup.GET("elevation", home.TileElevation)

	viewerGroup := e.Group("/viewer")
	viewerGroup.POST("session", viewer.CreateSession)
	viewerGroup.POST("session/:id/frame", viewer.Frame)
	viewerGroup.DELETE("session/:id", viewer.CloseSession)
	viewerGroup.GET("session/:id/stream", viewer.Stream)
}
