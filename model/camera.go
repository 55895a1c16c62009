package model

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Clip planes of the perspective projection.
const (
	NearPlane = 0.01
	FarPlane  = 1000.0
)

// Up is the world up direction.
var Up = glm.Vec3{0, 1, 0}

// Camera describes where the world pass is looked at from.
// Yaw and Pitch are in radians, Fov is the vertical field of view in degrees.
type Camera struct {
	Position glm.Vec3
	Yaw      float64
	Pitch    float64
	Fov      float64
}

// DefaultCamera sits at the origin with a 45 degree field of view.
func DefaultCamera() Camera {
	return Camera{Fov: 45}
}

// Front returns the normalized direction the camera faces.
func (c Camera) Front() glm.Vec3 {
	front := glm.Vec3{
		float32(math.Cos(c.Yaw) * math.Cos(c.Pitch)),
		float32(math.Sin(c.Pitch)),
		float32(math.Sin(c.Yaw) * math.Cos(c.Pitch)),
	}
	return front.Mul(-1).Normalize()
}

// View returns the right handed world view matrix.
func (c Camera) View() glm.Mat4 {
	return glm.LookAtV(c.Position, c.Position.Add(c.Front()), Up)
}

// Projection returns the left handed perspective projection for a surface
// of the given size, with Y flipped for Vulkan clip space.
func (c Camera) Projection(width, height float32) glm.Mat4 {
	proj := perspectiveLH(glm.DegToRad(float32(c.Fov)), width/height, NearPlane, FarPlane)
	proj[5] *= -1
	return proj
}

// OrthoView looks from the origin down +z.
func (c Camera) OrthoView() glm.Mat4 {
	return lookAtLH(glm.Vec3{}, glm.Vec3{0, 0, 1}, Up)
}

// OrthoProjection maps [0,width]x[0,height] with depth in [0,1].
func OrthoProjection(width, height float32) glm.Mat4 {
	return orthographicRH(0, width, 0, height, 0, 1)
}

// Uniform fills the camera uniform for the world or the overlay pass.
func (c Camera) Uniform(width, height float32, orthographic bool) CameraUniform {
	if orthographic {
		return CameraUniform{
			View:       c.OrthoView(),
			Projection: OrthoProjection(width, height),
		}
	}
	return CameraUniform{
		View:       c.View(),
		Projection: c.Projection(width, height),
	}
}

// perspectiveLH has depth in [0,1].
func perspectiveLH(fovY, aspect, near, far float32) glm.Mat4 {
	h := float32(1 / math.Tan(float64(fovY)/2))
	w := h / aspect
	r := far / (far - near)
	return glm.Mat4{
		w, 0, 0, 0,
		0, h, 0, 0,
		0, 0, r, 1,
		0, 0, -r * near, 0,
	}
}

func lookAtLH(eye, center, up glm.Vec3) glm.Mat4 {
	f := center.Sub(eye).Normalize()
	s := up.Cross(f).Normalize()
	u := f.Cross(s)
	return glm.Mat4{
		s[0], u[0], f[0], 0,
		s[1], u[1], f[1], 0,
		s[2], u[2], f[2], 0,
		-s.Dot(eye), -u.Dot(eye), -f.Dot(eye), 1,
	}
}

func orthographicRH(left, right, bottom, top, near, far float32) glm.Mat4 {
	rw := 1 / (right - left)
	rh := 1 / (top - bottom)
	r := 1 / (near - far)
	return glm.Mat4{
		2 * rw, 0, 0, 0,
		0, 2 * rh, 0, 0,
		0, 0, r, 0,
		-(left + right) * rw, -(top + bottom) * rh, r * near, 1,
	}
}
