package viewer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gaia/api/api/common"
	"gaia/api/codes"
	"gaia/api/log"
	"gaia/api/service"
)

const frameTimeout = 5 * time.Second

var sessions *service.SessionManager

func Setup(m *service.SessionManager) {
	sessions = m
}

// POST /viewer/session
func CreateSession(c *gin.Context) {
	res := common.Response{Timestamp: time.Now().Unix(), Code: codes.CODE_SUCCESS, Msg: "success"}

	s, err := sessions.Create()
	if err != nil {
		res.Code, res.Msg = errorCode(err), err.Error()
		c.JSON(http.StatusOK, res)
		return
	}
	res.Data = CreateSessionResp{SessionID: s.ID, CreatedAt: s.CreatedAt.Unix()}
	c.JSON(http.StatusOK, res)
}

// POST /viewer/session/:id/frame
// Body: FrameReq (JSON)
// 返回：service.FrameView
func Frame(c *gin.Context) {
	res := common.Response{Timestamp: time.Now().Unix(), Code: codes.CODE_SUCCESS, Msg: "success"}

	id := c.Param("id")
	var req FrameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		res.Code = codes.CODE_ERR_BAD_PARAMS
		res.Msg = "invalid json body: " + err.Error()
		c.JSON(http.StatusOK, res)
		return
	}
	camera, err := req.Camera()
	if err != nil {
		res.Code = codes.CODE_ERR_BAD_PARAMS
		res.Msg = err.Error()
		c.JSON(http.StatusOK, res)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), frameTimeout)
	defer cancel()

	view, err := sessions.Frame(ctx, id, camera, req.WithIndices)
	if err != nil {
		res.Code, res.Msg = errorCode(err), err.Error()
		c.JSON(http.StatusOK, res)
		return
	}
	res.Data = view
	c.JSON(http.StatusOK, res)
}

// DELETE /viewer/session/:id
func CloseSession(c *gin.Context) {
	res := common.Response{Timestamp: time.Now().Unix(), Code: codes.CODE_SUCCESS, Msg: "success"}

	if err := sessions.Close(c.Param("id")); err != nil {
		res.Code, res.Msg = errorCode(err), err.Error()
	}
	c.JSON(http.StatusOK, res)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrSessionClosed):
		return codes.CODE_ERR_OBJ_NOT_FOUND
	case errors.Is(err, service.ErrTooManySessions):
		return codes.CODE_ERR_LIMIT
	case errors.Is(err, context.DeadlineExceeded):
		return codes.CODE_ERR_TIMEOUT
	}
	log.Error("viewer session error: ", err)
	return codes.CODE_ERR_UNKNOWN
}
