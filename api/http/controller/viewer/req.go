package viewer

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"gaia/api/quadtree"
	"gaia/api/service/tilepkg"
)

// ---------- 请求与响应结构 ----------

type FrameReq struct {
	Height         float64    `json:"height"`
	LookAt         [2]float64 `json:"lookAt"`
	ViewProjection []float32  `json:"viewProjection" binding:"required,len=16"` // 列主序 4x4
	WithIndices    bool       `json:"withIndices"`
}

type CreateSessionResp struct {
	SessionID string `json:"sessionId"`
	CreatedAt int64  `json:"createdAt"`
}

// Camera validates the request and converts it to the frame input.
func (r *FrameReq) Camera() (tilepkg.Camera, error) {
	if math.IsNaN(r.Height) || math.IsInf(r.Height, 0) || r.Height < 0 {
		return tilepkg.Camera{}, fmt.Errorf("height must be a non-negative number")
	}
	for _, v := range r.LookAt {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return tilepkg.Camera{}, fmt.Errorf("lookAt must be finite")
		}
	}
	if math.Abs(r.LookAt[0]) >= quadtree.MaxAbsX {
		return tilepkg.Camera{}, fmt.Errorf("lookAt[0] must be within (-%d, %d)", quadtree.MaxAbsX, quadtree.MaxAbsX)
	}
	if r.LookAt[1] < 0 || r.LookAt[1] > 1 {
		return tilepkg.Camera{}, fmt.Errorf("lookAt[1] must be within [0, 1]")
	}
	if len(r.ViewProjection) != 16 {
		return tilepkg.Camera{}, fmt.Errorf("viewProjection needs 16 values, got %d", len(r.ViewProjection))
	}
	var m mgl32.Mat4
	copy(m[:], r.ViewProjection)
	return tilepkg.Camera{Height: r.Height, LookAt: r.LookAt, ViewProjection: m}, nil
}
