package tilepkg

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Frustum is the six clip planes of a view-projection matrix, normals pointing inwards.
type Frustum struct {
	planes [6]mgl32.Vec4
}

// NewFrustum extracts the planes of m, assuming OpenGL clip space (-w <= x, y, z <= w).
func NewFrustum(m mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)
	return Frustum{planes: [6]mgl32.Vec4{
		r3.Add(r0), // left
		r3.Sub(r0), // right
		r3.Add(r1), // bottom
		r3.Sub(r1), // top
		r3.Add(r2), // near
		r3.Sub(r2), // far
	}}
}

// IntersectsBox reports whether the axis aligned box [min, max] is at least partly inside.
// A box is rejected only when it lies entirely behind one plane, so a few boxes near the
// frustum corners are kept although invisible.
func (f Frustum) IntersectsBox(min, max mgl32.Vec3) bool {
	for _, p := range f.planes {
		// corner furthest along the plane normal
		v := min
		if p[0] >= 0 {
			v[0] = max[0]
		}
		if p[1] >= 0 {
			v[1] = max[1]
		}
		if p[2] >= 0 {
			v[2] = max[2]
		}
		if p[0]*v[0]+p[1]*v[1]+p[2]*v[2]+p[3] < 0 {
			return false
		}
	}
	return true
}
