package model

import (
	"unsafe"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"
)

// Vertex is a mesh vertex. ColorTex is either an RGBA colour or
// one/two sets of texture coordinates depending on the VertexType.
type Vertex struct {
	Pos      glm.Vec3
	ColorTex glm.Vec4
}

// VertexType tells the shaders how to interpret Vertex.ColorTex.
type VertexType uint32

// Vertex layouts, in host ordinal order.
const (
	VertexTypeColor VertexType = iota
	VertexTypeTex1
	VertexTypeTex2
)

// VertexTypeFromOrdinal converts a host ordinal into a VertexType.
func VertexTypeFromOrdinal(ordinal int) (VertexType, bool) {
	switch ordinal {
	case 0:
		return VertexTypeColor, true
	case 1:
		return VertexTypeTex1, true
	case 2:
		return VertexTypeTex2, true
	}
	return 0, false
}

func (v VertexType) String() string {
	switch v {
	case VertexTypeColor:
		return "Color"
	case VertexTypeTex1:
		return "Tex1"
	case VertexTypeTex2:
		return "Tex2"
	}
	return "Unknown"
}

// Sampling is the filter used when a texture is sampled.
type Sampling uint8

// Sampling modes, in host ordinal order.
const (
	// SamplingSmooth interpolates nearby pixels.
	SamplingSmooth Sampling = iota
	// SamplingPixel uses the nearest pixel.
	SamplingPixel
)

// SamplingFromOrdinal converts a host ordinal into a Sampling.
func SamplingFromOrdinal(ordinal int) (Sampling, bool) {
	switch ordinal {
	case 0:
		return SamplingSmooth, true
	case 1:
		return SamplingPixel, true
	}
	return 0, false
}

func (s Sampling) String() string {
	if s == SamplingPixel {
		return "Pixel"
	}
	return "Smooth"
}

// PushConstants are pushed once per draw call.
type PushConstants struct {
	Model        glm.Mat4
	TexOffsets   glm.Vec4
	OverlayColor glm.Vec4
	Opacity      float32
	VertexType   VertexType
}

// CameraUniform defines a view-projection pair
type CameraUniform struct {
	View       glm.Mat4
	Projection glm.Mat4
}

// Bytes views the uniform as raw bytes for upload.
func (u *CameraUniform) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), unsafe.Sizeof(*u))
}

// VertexBindingDescriptions return Vulkan Vertex descriptors
func VertexBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}}
}

// VertexAttributeDescriptions return Vulkan attribute descriptors
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   vk.FormatR32g32b32a32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.ColorTex)),
		},
	}
}

// VertexBytes reinterprets vertices as raw bytes for upload.
func VertexBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	size := int(unsafe.Sizeof(Vertex{})) * len(vertices)
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), size)
}

// IndexBytes reinterprets indices as raw bytes for upload.
func IndexBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), 4*len(indices))
}
