package main

import (
	"github.com/devblok/roast/model"
	glm "github.com/go-gl/mathgl/mgl32"
)

// cube is a unit cube with a colour per face.
func cube() model.Mesh {
	faces := []struct {
		normal, u, v glm.Vec3
		color        glm.Vec4
	}{
		{glm.Vec3{0, 0, 1}, glm.Vec3{1, 0, 0}, glm.Vec3{0, 1, 0}, glm.Vec4{0.9, 0.3, 0.3, 1}},
		{glm.Vec3{0, 0, -1}, glm.Vec3{-1, 0, 0}, glm.Vec3{0, 1, 0}, glm.Vec4{0.3, 0.9, 0.3, 1}},
		{glm.Vec3{1, 0, 0}, glm.Vec3{0, 0, -1}, glm.Vec3{0, 1, 0}, glm.Vec4{0.3, 0.3, 0.9, 1}},
		{glm.Vec3{-1, 0, 0}, glm.Vec3{0, 0, 1}, glm.Vec3{0, 1, 0}, glm.Vec4{0.9, 0.9, 0.3, 1}},
		{glm.Vec3{0, 1, 0}, glm.Vec3{1, 0, 0}, glm.Vec3{0, 0, -1}, glm.Vec4{0.3, 0.9, 0.9, 1}},
		{glm.Vec3{0, -1, 0}, glm.Vec3{1, 0, 0}, glm.Vec3{0, 0, 1}, glm.Vec4{0.9, 0.3, 0.9, 1}},
	}

	var mesh model.Mesh
	mesh.VertexType = model.VertexTypeColor
	for _, f := range faces {
		center := f.normal.Mul(0.5)
		u, v := f.u.Mul(0.5), f.v.Mul(0.5)
		base := uint32(len(mesh.Vertices))
		for _, corner := range []glm.Vec3{
			center.Sub(u).Sub(v),
			center.Add(u).Sub(v),
			center.Add(u).Add(v),
			center.Sub(u).Add(v),
		} {
			mesh.Vertices = append(mesh.Vertices, model.Vertex{Pos: corner, ColorTex: f.color})
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return mesh
}
