package model_test

import (
	"math"
	"testing"

	"github.com/devblok/roast/model"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func assertVec4(t *testing.T, expected, actual glm.Vec4) {
	t.Helper()
	for i := range expected {
		assert.InDelta(t, expected[i], actual[i], 1e-4, "component %d of %v", i, actual)
	}
}

func TestCameraFront(t *testing.T) {
	cam := model.DefaultCamera()
	front := cam.Front()
	assert.InDelta(t, -1, front[0], 1e-6)
	assert.InDelta(t, 0, front[1], 1e-6)
	assert.InDelta(t, 0, front[2], 1e-6)

	cam.Yaw = math.Pi / 2
	front = cam.Front()
	assert.InDelta(t, 0, front[0], 1e-6)
	assert.InDelta(t, -1, front[2], 1e-6)
}

func TestCameraView(t *testing.T) {
	cam := model.DefaultCamera()
	p := cam.View().Mul4x1(glm.Vec4{-5, 0, 0, 1})
	assertVec4(t, glm.Vec4{0, 0, -5, 1}, p)
}

func TestCameraOrthoViewIsIdentity(t *testing.T) {
	cam := model.DefaultCamera()
	assert.True(t, cam.OrthoView().ApproxEqual(glm.Ident4()))
}

func TestOrthoProjection(t *testing.T) {
	proj := model.OrthoProjection(800, 600)
	assertVec4(t, glm.Vec4{1, 1, 0, 1}, proj.Mul4x1(glm.Vec4{800, 600, 0, 1}))
	assertVec4(t, glm.Vec4{-1, -1, 0, 1}, proj.Mul4x1(glm.Vec4{0, 0, 0, 1}))
	assertVec4(t, glm.Vec4{0, 0, 0, 1}, proj.Mul4x1(glm.Vec4{400, 300, 0, 1}))
}

func TestCameraProjectionDepthRange(t *testing.T) {
	cam := model.DefaultCamera()
	proj := cam.Projection(800, 600)

	near := proj.Mul4x1(glm.Vec4{0, 0, model.NearPlane, 1})
	assert.InDelta(t, 0, near[2]/near[3], 1e-4)

	far := proj.Mul4x1(glm.Vec4{0, 0, model.FarPlane, 1})
	assert.InDelta(t, 1, far[2]/far[3], 1e-4)

	assert.Less(t, proj[5], float32(0), "y axis should be flipped")
}

func TestCameraUniform(t *testing.T) {
	cam := model.DefaultCamera()

	world := cam.Uniform(800, 600, false)
	assert.Equal(t, cam.View(), world.View)
	assert.Equal(t, cam.Projection(800, 600), world.Projection)

	overlay := cam.Uniform(800, 600, true)
	assert.Equal(t, model.OrthoProjection(800, 600), overlay.Projection)
	assert.True(t, overlay.View.ApproxEqual(glm.Ident4()))
}
