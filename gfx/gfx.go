// Package gfx defines the GPU resources that rendering backends must provide.
package gfx

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// Extent3D is the size of an image in pixels.
type Extent3D struct {
	Width, Height, Depth int
}

// Texture is an immutable sampled image resident on the GPU.
type Texture interface {
	Releasable

	// Extent returns the size of the base mip level.
	Extent() Extent3D

	// MipLevels returns the number of mip levels the image holds.
	MipLevels() uint32
}

// Geometry is an immutable pair of vertex and index buffers.
// Multiple meshes may draw from the same Geometry.
type Geometry interface {
	Releasable

	// VertexCount returns the number of vertices in the vertex buffer.
	VertexCount() uint32

	// IndexCount returns the number of indices in the index buffer.
	IndexCount() uint32
}
