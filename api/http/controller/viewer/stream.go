package viewer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gaia/api/api/common"
	"gaia/api/codes"
	"gaia/api/log"
	"gaia/api/service"
)

const (
	streamWriteWait = 10 * time.Second
	streamIdleWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // 跨域由 cors 中间件统一处理
}

// GET /viewer/session/:id/stream
// 升级为 websocket：客户端每帧发送一个 FrameReq，服务端按顺序回一个 common.Response{Data: FrameView}。
func Stream(c *gin.Context) {
	id := c.Param("id")
	if _, err := sessions.Get(id); err != nil {
		c.JSON(http.StatusOK, common.Response{Timestamp: time.Now().Unix(), Code: errorCode(err), Msg: err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("viewer stream %s: upgrade: %v", id, err)
		return
	}
	defer conn.Close()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamIdleWait))
		var req FrameReq
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugf("viewer stream %s: read: %v", id, err)
			}
			return
		}

		res, stop := streamFrame(c.Request.Context(), id, &req)
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(res); err != nil {
			log.Debugf("viewer stream %s: write: %v", id, err)
			return
		}
		if stop {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, res.Msg), time.Now().Add(streamWriteWait))
			return
		}
	}
}

// streamFrame answers one frame; stop reports that the session is gone.
func streamFrame(parent context.Context, id string, req *FrameReq) (common.Response, bool) {
	res := common.Response{Timestamp: time.Now().Unix(), Code: codes.CODE_SUCCESS, Msg: "success"}

	camera, err := req.Camera()
	if err != nil {
		res.Code, res.Msg = codes.CODE_ERR_BAD_PARAMS, err.Error()
		return res, false
	}

	ctx, cancel := context.WithTimeout(parent, frameTimeout)
	defer cancel()
	view, err := sessions.Frame(ctx, id, camera, req.WithIndices)
	if err != nil {
		res.Code, res.Msg = errorCode(err), err.Error()
		gone := errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, service.ErrSessionClosed)
		return res, gone
	}
	res.Data = view
	return res, false
}
