package resource_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/devblok/roast/core"
	"github.com/devblok/roast/model"
	"github.com/devblok/roast/resource"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) (*core.HeadlessBackend, *resource.TextureStore, *resource.MeshStore) {
	t.Helper()
	backend := core.NewHeadlessBackend(core.NewHeadlessWindow(64, 64))
	textures, err := resource.NewTextureStore(backend)
	require.NoError(t, err)
	return backend, textures, resource.NewMeshStore(backend)
}

func triangle() ([]model.Vertex, []uint32) {
	return []model.Vertex{
		{Pos: glm.Vec3{0, 0, 0}},
		{Pos: glm.Vec3{1, 0, 0}},
		{Pos: glm.Vec3{0, 1, 0}},
	}, []uint32{0, 1, 2}
}

func texID(id resource.TextureID) *resource.TextureID {
	return &id
}

func TestTextureHandlesAreMonotonic(t *testing.T) {
	backend, textures, _ := newStores(t)
	assert.Equal(t, 1, backend.Stats().Textures, "default texture is uploaded")

	var prev resource.TextureID
	for i := 0; i < 5; i++ {
		id, err := textures.Register(image.NewRGBA(image.Rect(0, 0, 4, 2)), model.SamplingSmooth, i%2 == 0)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, resource.TextureID(0), id)
		} else {
			assert.Greater(t, id, prev)
		}
		prev = id
	}
	assert.Equal(t, 5, textures.Len())

	tex, ok := textures.Get(0)
	require.True(t, ok)
	assert.Equal(t, 4, tex.Width())
	assert.Equal(t, 2, tex.Height())
	assert.Equal(t, model.SamplingSmooth, tex.Sampling())
	assert.True(t, tex.Mipmapped())
	assert.Equal(t, uint32(3), tex.GPU().MipLevels())
}

func TestTextureRegisterFailureKeepsHandle(t *testing.T) {
	_, textures, _ := newStores(t)
	_, err := textures.Register(image.NewRGBA(image.Rect(0, 0, 0, 0)), model.SamplingPixel, false)
	assert.Error(t, err)

	id, err := textures.Register(image.NewRGBA(image.Rect(0, 0, 1, 1)), model.SamplingPixel, false)
	require.NoError(t, err)
	assert.Equal(t, resource.TextureID(0), id)
}

func TestTextureLookupAndResolve(t *testing.T) {
	_, textures, _ := newStores(t)
	id, err := textures.Register(image.NewRGBA(image.Rect(0, 0, 2, 2)), model.SamplingPixel, false)
	require.NoError(t, err)

	_, err = textures.Lookup(42)
	assert.Equal(t, resource.ErrTextureNotFound, err)

	tex, err := textures.Lookup(id)
	require.NoError(t, err)
	assert.Same(t, tex, textures.Resolve(&id))

	fallback := textures.Default()
	require.NotNil(t, fallback)
	assert.Same(t, fallback, textures.Resolve(nil))
	assert.Same(t, fallback, textures.Resolve(texID(42)))
	assert.Equal(t, model.SamplingPixel, fallback.Sampling())
	assert.True(t, fallback.Mipmapped())
	assert.Equal(t, 8, fallback.Width())
}

func TestHandleSpaceExhausted(t *testing.T) {
	_, textures, meshes := newStores(t)
	resource.ExhaustHandles(textures, meshes)

	id, err := textures.Register(image.NewRGBA(image.Rect(0, 0, 1, 1)), model.SamplingSmooth, false)
	require.NoError(t, err)
	assert.Equal(t, resource.TextureID(1<<64-1), id)

	_, err = textures.Register(image.NewRGBA(image.Rect(0, 0, 1, 1)), model.SamplingSmooth, false)
	assert.Equal(t, resource.ErrHandleSpaceExhausted, err)

	vertices, indices := triangle()
	last, err := meshes.Register(vertices, indices, model.VertexTypeColor, nil, nil)
	require.NoError(t, err)
	_, err = meshes.Register(vertices, indices, model.VertexTypeColor, nil, nil)
	assert.Equal(t, resource.ErrHandleSpaceExhausted, err)
	_, err = meshes.RegisterFromGeometry(last)
	assert.Equal(t, resource.ErrHandleSpaceExhausted, err)
}

func TestMeshDefaults(t *testing.T) {
	_, _, meshes := newStores(t)
	vertices, indices := triangle()
	id, err := meshes.Register(vertices, indices, model.VertexTypeTex2, texID(3), nil)
	require.NoError(t, err)
	assert.Equal(t, resource.MeshID(0), id)

	mesh, err := meshes.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, model.VertexTypeTex2, mesh.VertexType())
	assert.Equal(t, glm.Ident4(), mesh.Transform())
	assert.Equal(t, float32(1), mesh.Opacity())
	_, ok := mesh.OverlayColor()
	assert.False(t, ok)

	t0, t1 := mesh.Textures()
	require.NotNil(t, t0)
	assert.Equal(t, resource.TextureID(3), *t0)
	assert.Nil(t, t1)

	pc := mesh.PushConstants()
	assert.Equal(t, glm.Vec4{1, 1, 1, 1}, pc.OverlayColor)
	assert.Equal(t, float32(1), pc.Opacity)
	assert.Equal(t, model.VertexTypeTex2, pc.VertexType)

	_, err = meshes.Lookup(7)
	assert.Equal(t, resource.ErrMeshNotFound, err)
}

func TestMeshSetters(t *testing.T) {
	_, _, meshes := newStores(t)
	vertices, indices := triangle()
	id, err := meshes.Register(vertices, indices, model.VertexTypeTex1, nil, nil)
	require.NoError(t, err)
	mesh, _ := meshes.Get(id)

	transform := glm.Translate3D(1, 2, 3)
	mesh.SetTransform(transform)
	mesh.SetTextureOffsets(glm.Vec2{0.25, 0.5}, glm.Vec2{0.75, 1})
	red := glm.Vec4{1, 0, 0, 1}
	mesh.SetOverlayColor(&red)
	red[1] = 1
	require.NoError(t, mesh.SetOpacity(0.25))
	assert.Equal(t, resource.ErrOpacityOutOfRange, mesh.SetOpacity(1.5))
	assert.Equal(t, resource.ErrOpacityOutOfRange, mesh.SetOpacity(-0.1))
	mesh.SetTextures(texID(1), texID(2))

	pc := mesh.PushConstants()
	assert.Equal(t, transform, pc.Model)
	assert.Equal(t, glm.Vec4{0.25, 0.5, 0.75, 1}, pc.TexOffsets)
	assert.Equal(t, glm.Vec4{1, 0, 0, 1}, pc.OverlayColor, "overlay colour is copied")
	assert.Equal(t, float32(0.25), pc.Opacity)

	t0, t1 := mesh.Textures()
	assert.Equal(t, resource.TextureID(1), *t0)
	assert.Equal(t, resource.TextureID(2), *t1)
	*t0 = 9
	t0, _ = mesh.Textures()
	assert.Equal(t, resource.TextureID(1), *t0, "textures are returned by value")

	mesh.SetOverlayColor(nil)
	_, ok := mesh.OverlayColor()
	assert.False(t, ok)
}

func TestRegisterFromGeometry(t *testing.T) {
	backend, _, meshes := newStores(t)
	vertices, indices := triangle()
	source, err := meshes.Register(vertices, indices, model.VertexTypeTex1, texID(4), texID(5))
	require.NoError(t, err)
	src, _ := meshes.Get(source)
	src.SetTransform(glm.Scale3D(2, 2, 2))
	require.NoError(t, src.SetOpacity(0.5))

	clone, err := meshes.RegisterFromGeometry(source)
	require.NoError(t, err)
	assert.Greater(t, clone, source)
	assert.Equal(t, 1, backend.Stats().Geometries, "geometry is shared")

	dst, _ := meshes.Get(clone)
	assert.Same(t, src.Geometry(), dst.Geometry())
	assert.Equal(t, glm.Ident4(), dst.Transform(), "fresh instance state")
	assert.Equal(t, float32(1), dst.Opacity())
	t0, t1 := dst.Textures()
	assert.Equal(t, resource.TextureID(4), *t0)
	assert.Equal(t, resource.TextureID(5), *t1)

	dst.SetTransform(glm.Translate3D(5, 0, 0))
	assert.Equal(t, glm.Scale3D(2, 2, 2), src.Transform())

	geometry := dst.Geometry().(*core.HeadlessGeometry)
	assert.Equal(t, vertices, geometry.Vertices())
	assert.Equal(t, indices, geometry.Indices())

	_, err = meshes.RegisterFromGeometry(99)
	assert.Equal(t, resource.ErrMeshNotFound, err)
}

func TestDefaultTextureImage(t *testing.T) {
	img := resource.DefaultTextureImage()
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
	assert.Equal(t, img.Pix, resource.DefaultTextureImage().Pix, "deterministic")

	distinct := map[color.RGBA]bool{}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := img.RGBAAt(x, y)
			distinct[c] = true
			assert.Equal(t, uint8(255), c.A)
			assert.Equal(t, uint8(204), c.B)
			low := c.R
			if c.G < low {
				low = c.G
			}
			assert.Equal(t, uint8(102), low)
		}
	}
	assert.Greater(t, len(distinct), 1)
}

func TestJavaRandomCompatible(t *testing.T) {
	assert.InDelta(t, 0.730967787376657, resource.JavaDoubles(0, 1)[0], 1e-12)

	values := resource.JavaDoubles(16, 128)
	for _, v := range values {
		assert.True(t, v >= 0 && v < 1)
	}
	assert.Equal(t, values, resource.JavaDoubles(16, 128))
}

func TestDecodeImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, err := resource.DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, img.RGBAAt(1, 1))

	_, err = resource.DecodeImage([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestStoresRelease(t *testing.T) {
	backend, textures, meshes := newStores(t)
	vertices, indices := triangle()
	_, err := meshes.Register(vertices, indices, model.VertexTypeColor, nil, nil)
	require.NoError(t, err)
	_, err = textures.Register(image.NewRGBA(image.Rect(0, 0, 1, 1)), model.SamplingSmooth, false)
	require.NoError(t, err)

	meshes.Release()
	textures.Release()
	assert.Zero(t, meshes.Len())
	assert.Zero(t, textures.Len())
	assert.Nil(t, textures.Default())
	backend.Destroy()
}
