package host_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/devblok/roast/core"
	"github.com/devblok/roast/ffi"
	"github.com/devblok/roast/host"
	"github.com/devblok/roast/model"
	"github.com/devblok/roast/renderer"
	"github.com/devblok/roast/resource"
	"github.com/devblok/roast/session"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/envy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headless struct {
	backend *core.HeadlessBackend
	window  *core.HeadlessWindow
}

// recordingFactory creates headless backends and remembers them.
type recordingFactory struct {
	created []headless
}

func (f *recordingFactory) NewBackend(appName, appVersion string, settings core.RendererSettings, cfg core.Configuration) (core.Backend, core.Window, error) {
	window := core.NewHeadlessWindow(int32(cfg.Renderer.ScreenWidth), int32(cfg.Renderer.ScreenHeight))
	backend := core.NewHeadlessBackend(window)
	f.created = append(f.created, headless{backend: backend, window: window})
	return backend, window, nil
}

func newHost(t *testing.T) (*host.Backend, *recordingFactory) {
	t.Helper()
	cfg := core.DefaultConfiguration()
	cfg.Renderer.ScreenWidth, cfg.Renderer.ScreenHeight = 320, 240
	cfg.Time.FramesPerSecond = 0

	factory := &recordingFactory{}
	b := host.New(host.WithFactory(factory), host.WithConfiguration(cfg))
	t.Cleanup(b.Destroy)
	return b, factory
}

func initSession(t *testing.T, b *host.Backend) session.Handle {
	t.Helper()
	h, err := b.Init([]byte("roast-test"), []byte("1.2.3"), core.RendererSettings{})
	require.Nil(t, err)
	return h
}

// expectKind checks the kind of err and frees it.
func expectKind(t *testing.T, b *host.Backend, kind ffi.Kind, err *ffi.Error) {
	t.Helper()
	require.NotNil(t, err)
	assert.Equal(t, kind, err.Kind, err.Error())
	assert.Nil(t, b.FreeError(err))
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var triangle = []model.Vertex{
	{Pos: glm.Vec3{0, 0, 0}},
	{Pos: glm.Vec3{1, 0, 0}},
	{Pos: glm.Vec3{0, 1, 0}},
}

func TestInitHandlesIncrease(t *testing.T) {
	b, factory := newHost(t)

	h1 := initSession(t, b)
	h2 := initSession(t, b)
	assert.Equal(t, session.Handle(1), h1)
	assert.Equal(t, session.Handle(2), h2)
	assert.Len(t, factory.created, 2)

	size, err := b.SurfaceSize(h2)
	require.Nil(t, err)
	assert.Equal(t, ffi.MakePair(320.0, 240.0), size)
}

func TestInitFailures(t *testing.T) {
	failing := host.New(host.WithFactory(host.FactoryFunc(
		func(string, string, core.RendererSettings, core.Configuration) (core.Backend, core.Window, error) {
			return nil, nil, errors.New("no device")
		})))
	_, err := failing.Init([]byte("app"), []byte("1.0.0"), core.RendererSettings{})
	require.NotNil(t, err)
	assert.Equal(t, ffi.Generic, err.Kind)
	assert.Equal(t, "no device", err.Error())
	assert.Nil(t, failing.FreeError(err))

	panicking := host.New(host.WithFactory(host.FactoryFunc(
		func(string, string, core.RendererSettings, core.Configuration) (core.Backend, core.Window, error) {
			panic("driver crashed")
		})))
	_, err = panicking.Init([]byte("app"), []byte("1.0.0"), core.RendererSettings{})
	require.NotNil(t, err)
	assert.Equal(t, ffi.Generic, err.Kind)
	assert.Equal(t, "panic!: driver crashed", err.Error())
	assert.Nil(t, panicking.FreeError(err))
	assert.Zero(t, panicking.OutstandingErrors())
}

func TestHeadlessFactory(t *testing.T) {
	b := host.New(host.WithFactory(host.HeadlessFactory))
	defer b.Destroy()

	h := initSession(t, b)
	size, err := b.SurfaceSize(h)
	require.Nil(t, err)
	assert.Equal(t, 800.0, size.First)
	assert.Equal(t, 600.0, size.Second)
}

func TestInvalidHandles(t *testing.T) {
	b, _ := newHost(t)
	initSession(t, b)

	expectKind(t, b, ffi.NullPointer, b.Stop(0))
	expectKind(t, b, ffi.IllegalState, b.Stop(7))
	_, err := b.CreateTexture(7, pngBytes(t, 1, 1), 0, false)
	expectKind(t, b, ffi.IllegalState, err)
	_, err = b.MeshOpacity(0, 0)
	expectKind(t, b, ffi.NullPointer, err)

	assert.Zero(t, b.OutstandingErrors())
}

func TestTextures(t *testing.T) {
	b, _ := newHost(t)
	h := initSession(t, b)

	id, err := b.CreateTexture(h, pngBytes(t, 4, 2), 1, true)
	require.Nil(t, err)
	assert.Equal(t, resource.TextureID(0), id)

	width, err := b.TextureWidth(h, id)
	require.Nil(t, err)
	height, err := b.TextureHeight(h, id)
	require.Nil(t, err)
	sampling, err := b.TextureSampling(h, id)
	require.Nil(t, err)
	mipmapped, err := b.TextureMipmapped(h, id)
	require.Nil(t, err)
	assert.Equal(t, 4, width)
	assert.Equal(t, 2, height)
	assert.Equal(t, model.SamplingPixel, sampling)
	assert.True(t, mipmapped)

	next, err := b.CreateTexture(h, pngBytes(t, 1, 1), 0, false)
	require.Nil(t, err)
	assert.Equal(t, id+1, next)

	_, err = b.CreateTexture(h, pngBytes(t, 1, 1), 2, false)
	require.NotNil(t, err)
	assert.Equal(t, "invalid texture sampling", err.Error())
	expectKind(t, b, ffi.IllegalArgument, err)

	_, err = b.CreateTexture(h, []byte("not an image"), 0, false)
	expectKind(t, b, ffi.Generic, err)

	_, err = b.TextureWidth(h, 42)
	expectKind(t, b, ffi.IllegalState, err)

	assert.Zero(t, b.OutstandingErrors())
}

func TestMeshProperties(t *testing.T) {
	b, _ := newHost(t)
	h := initSession(t, b)
	tex, err := b.CreateTexture(h, pngBytes(t, 2, 2), 0, false)
	require.Nil(t, err)

	id, err := b.CreateMesh(h, triangle, []uint32{0, 1, 2}, 1, ffi.Some(tex), ffi.None[resource.TextureID]())
	require.Nil(t, err)

	vertexType, err := b.MeshVertexType(h, id)
	require.Nil(t, err)
	assert.Equal(t, model.VertexTypeTex1, vertexType)

	textures, err := b.MeshTextures(h, id)
	require.Nil(t, err)
	assert.Equal(t, ffi.Some(tex), textures.First)
	assert.False(t, textures.Second.Present)

	require.Nil(t, b.SetMeshTextures(h, id, ffi.MakePair(ffi.None[resource.TextureID](), ffi.Some(tex))))
	textures, err = b.MeshTextures(h, id)
	require.Nil(t, err)
	assert.False(t, textures.First.Present)
	assert.Equal(t, ffi.Some(tex), textures.Second)

	transform := glm.Translate3D(1, 2, 3)
	require.Nil(t, b.SetMeshTransform(h, id, transform))
	got, err := b.MeshTransform(h, id)
	require.Nil(t, err)
	assert.Equal(t, transform, got)

	offsets := ffi.MakePair(glm.Vec2{0.5, 0}, glm.Vec2{0, 0.25})
	require.Nil(t, b.SetMeshTextureOffsets(h, id, offsets))
	gotOffsets, err := b.MeshTextureOffsets(h, id)
	require.Nil(t, err)
	assert.Equal(t, offsets, gotOffsets)

	overlay, err := b.MeshOverlayColor(h, id)
	require.Nil(t, err)
	assert.False(t, overlay.Present)
	require.Nil(t, b.SetMeshOverlayColor(h, id, ffi.Some(glm.Vec4{1, 0, 0, 1})))
	overlay, err = b.MeshOverlayColor(h, id)
	require.Nil(t, err)
	assert.Equal(t, ffi.Some(glm.Vec4{1, 0, 0, 1}), overlay)
	require.Nil(t, b.SetMeshOverlayColor(h, id, ffi.None[glm.Vec4]()))
	overlay, err = b.MeshOverlayColor(h, id)
	require.Nil(t, err)
	assert.False(t, overlay.Present)

	opacity, err := b.MeshOpacity(h, id)
	require.Nil(t, err)
	assert.Equal(t, float32(1), opacity)
	require.Nil(t, b.SetMeshOpacity(h, id, 0.25))
	expectKind(t, b, ffi.IllegalArgument, b.SetMeshOpacity(h, id, 1.5))
	opacity, err = b.MeshOpacity(h, id)
	require.Nil(t, err)
	assert.Equal(t, float32(0.25), opacity)

	_, err = b.CreateMesh(h, triangle, []uint32{0, 1, 2}, 5, ffi.None[resource.TextureID](), ffi.None[resource.TextureID]())
	require.NotNil(t, err)
	assert.Equal(t, "invalid vertex type", err.Error())
	expectKind(t, b, ffi.IllegalArgument, err)

	expectKind(t, b, ffi.IllegalState, b.SetMeshOpacity(h, 99, 0.5))
	assert.Zero(t, b.OutstandingErrors())
}

func TestMeshWithSharedGeometry(t *testing.T) {
	b, factory := newHost(t)
	h := initSession(t, b)
	backend := factory.created[0].backend
	geometries := backend.Stats().Geometries

	source, err := b.CreateMesh(h, triangle, []uint32{0, 1, 2}, 0, ffi.None[resource.TextureID](), ffi.None[resource.TextureID]())
	require.Nil(t, err)
	shared, err := b.CreateMeshWithGeometry(h, source)
	require.Nil(t, err)
	assert.Equal(t, source+1, shared)
	assert.Equal(t, geometries+1, backend.Stats().Geometries, "geometry is uploaded once")

	require.Nil(t, b.SetMeshTransform(h, shared, glm.Translate3D(5, 0, 0)))
	original, err := b.MeshTransform(h, source)
	require.Nil(t, err)
	assert.Equal(t, glm.Ident4(), original)

	_, err = b.CreateMeshWithGeometry(h, 1000)
	expectKind(t, b, ffi.IllegalState, err)
}

func scenePass(records []core.DrawRecord, pass core.Pass) []core.DrawRecord {
	var out []core.DrawRecord
	for _, r := range records {
		if r.Pass == pass {
			out = append(out, r)
		}
	}
	return out
}

func TestRender(t *testing.T) {
	b, factory := newHost(t)
	h := initSession(t, b)
	backend, window := factory.created[0].backend, factory.created[0].window

	// a handle that was never registered falls back to the default texture
	missing := ffi.Some(resource.TextureID(77))
	world, err := b.CreateMesh(h, triangle, []uint32{0, 1, 2}, 1, missing, ffi.None[resource.TextureID]())
	require.Nil(t, err)
	overlay, err := b.CreateMesh(h, triangle, []uint32{0, 1, 2}, 0, ffi.None[resource.TextureID](), ffi.None[resource.TextureID]())
	require.Nil(t, err)

	require.Nil(t, b.DrawRect(h, renderer.Rect{X: 1, Y: 2, Width: 3, Height: 4, Color: glm.Vec4{1, 1, 1, 1}}))
	require.Nil(t, b.Render(h, model.DefaultCamera(), []resource.MeshID{world}, []resource.MeshID{overlay}))
	assert.Equal(t, 1, backend.Stats().Frames)

	frame := backend.LastFrame()
	scene := scenePass(frame, core.ScenePass)
	require.Len(t, scene, 1)
	assert.NotNil(t, scene[0].Textures[0])
	assert.Len(t, scenePass(frame, core.OverlayPass), 2, "GUI rect and overlay mesh")

	err = b.Render(h, model.DefaultCamera(), []resource.MeshID{world, 500}, nil)
	expectKind(t, b, ffi.IllegalState, err)
	assert.Equal(t, 1, backend.Stats().Frames)
	assert.Zero(t, backend.Stats().Discards, "unknown meshes fail before a frame is acquired")
	assert.Equal(t, core.SwapchainValid, backend.State())

	window.Resize(0, 0)
	backend.RequestRecreate()
	require.Nil(t, b.Render(h, model.DefaultCamera(), []resource.MeshID{world}, nil))
	assert.Equal(t, 1, backend.Stats().Frames, "nothing is drawn to an empty surface")

	window.Resize(640, 480)
	require.Nil(t, b.Render(h, model.DefaultCamera(), []resource.MeshID{world}, nil))
	assert.Equal(t, 2, backend.Stats().Frames)
	assert.Equal(t, 2, backend.Stats().Rebuilds)

	backend.OutOfDateOnPresent(1)
	require.Nil(t, b.Render(h, model.DefaultCamera(), []resource.MeshID{world}, nil))
	require.Nil(t, b.Render(h, model.DefaultCamera(), []resource.MeshID{world}, nil))
	assert.Equal(t, 3, backend.Stats().Rebuilds)

	assert.Zero(t, b.OutstandingErrors())
}

func TestGUIWidgets(t *testing.T) {
	b, factory := newHost(t)
	h := initSession(t, b)
	backend := factory.created[0].backend

	require.Nil(t, b.DrawLabel(h, 4, 4, []byte("fps"), glm.Vec4{1, 1, 1, 1}))
	require.Nil(t, b.DrawPanel(h, renderer.Panel{
		Bounds:    renderer.Rect{X: 10, Y: 10, Width: 100, Height: 30, Color: glm.Vec4{0, 0, 0, 1}},
		Direction: renderer.HorizontalRight,
		Items:     []renderer.Widget{renderer.Label{Text: "ok"}},
	}))
	require.Nil(t, b.Render(h, model.DefaultCamera(), nil, nil))

	overlay := scenePass(backend.LastFrame(), core.OverlayPass)
	require.Len(t, overlay, 6, "three glyphs, a background and two glyphs")
	assert.Equal(t, glm.Vec3{4, 4, -0.5}, overlay[0].PushConstants.Model.Col(3).Vec3())
	assert.Equal(t, glm.Vec3{18, 4, -0.5}, overlay[2].PushConstants.Model.Col(3).Vec3())
	assert.Equal(t, renderer.GlyphOffset('s'), overlay[2].PushConstants.TexOffsets)
	assert.Equal(t, glm.Vec4{0, 0, 0, 1}, overlay[3].PushConstants.OverlayColor)
	assert.Equal(t, glm.Vec3{96, 10, -0.5}, overlay[4].PushConstants.Model.Col(3).Vec3())
	assert.Equal(t, glm.Vec3{103, 10, -0.5}, overlay[5].PushConstants.Model.Col(3).Vec3())

	// the loop begins a new GUI frame, so only the central panel is left
	err := b.RunEventLoop(h, func() *ffi.Error {
		if err := b.DrawCentralPanel(h, renderer.Vertical, 5, renderer.Label{Text: "c"}); err != nil {
			return err
		}
		if err := b.Render(h, model.DefaultCamera(), nil, nil); err != nil {
			return err
		}
		return b.Stop(h)
	})
	require.Nil(t, err)
	overlay = scenePass(backend.LastFrame(), core.OverlayPass)
	require.Len(t, overlay, 1)
	assert.Equal(t, glm.Vec3{5, 5, -0.5}, overlay[0].PushConstants.Model.Col(3).Vec3())

	expectKind(t, b, ffi.IllegalState, b.DrawLabel(9, 0, 0, []byte("x"), glm.Vec4{}))
	assert.Zero(t, b.OutstandingErrors())
}

func TestNullForeignData(t *testing.T) {
	b, factory := newHost(t)
	h := initSession(t, b)
	none := ffi.None[resource.TextureID]()

	_, err := b.Init(nil, []byte("1.0.0"), core.RendererSettings{})
	require.NotNil(t, err)
	assert.Equal(t, "string is null", err.Error())
	expectKind(t, b, ffi.NullPointer, err)
	_, err = b.Init([]byte("app"), nil, core.RendererSettings{})
	expectKind(t, b, ffi.NullPointer, err)
	assert.Len(t, factory.created, 1, "no backend is created for a null name")

	_, err = b.CreateTexture(h, nil, 0, false)
	require.NotNil(t, err)
	assert.Equal(t, "array is null", err.Error())
	expectKind(t, b, ffi.NullPointer, err)

	_, err = b.CreateMesh(h, nil, []uint32{0, 1, 2}, 0, none, none)
	expectKind(t, b, ffi.NullPointer, err)
	_, err = b.CreateMesh(h, triangle, nil, 0, none, none)
	expectKind(t, b, ffi.NullPointer, err)

	expectKind(t, b, ffi.NullPointer, b.DrawLabel(h, 0, 0, nil, glm.Vec4{}))
	expectKind(t, b, ffi.NullPointer, b.CreatePropagatedError(nil))

	// empty is not null
	_, err = b.CreateTexture(h, []byte{}, 0, false)
	expectKind(t, b, ffi.Generic, err)
	empty := b.CreatePropagatedError([]byte{})
	require.NotNil(t, empty)
	assert.Equal(t, ffi.Propagated, empty.Kind)
	assert.Nil(t, b.FreeError(empty))

	assert.Zero(t, b.OutstandingErrors())
}

func TestNewReadsEnvironment(t *testing.T) {
	envy.Temp(func() {
		envy.Set(core.EnvHeadless, "true")
		envy.Set(core.EnvFramesPerSecond, "0")

		b := host.New()
		defer b.Destroy()
		assert.True(t, b.Configuration().Renderer.Headless)
		assert.Zero(t, b.Configuration().Time.FramesPerSecond)

		h := initSession(t, b)
		size, err := b.SurfaceSize(h)
		require.Nil(t, err)
		assert.Equal(t, ffi.MakePair(800.0, 600.0), size, "the headless factory is picked")

		configured := host.New(host.WithFactory(&recordingFactory{}), host.WithConfiguration(core.DefaultConfiguration()))
		assert.False(t, configured.Configuration().Renderer.Headless, "an explicit configuration ignores the environment")
	})

	envy.Temp(func() {
		envy.Set(core.EnvFramesPerSecond, "0")
		envy.Set(core.EnvHeadless, "sometimes")

		b := host.New(host.WithFactory(&recordingFactory{}))
		assert.Equal(t, core.DefaultConfiguration(), b.Configuration(), "invalid overrides are dropped as a whole")
	})
}

func TestErrorsOfAnotherBackend(t *testing.T) {
	first, _ := newHost(t)
	second, _ := newHost(t)

	mine := first.CreatePropagatedError([]byte("first"))
	theirs := second.CreatePropagatedError([]byte("second"))
	require.Equal(t, mine.Token, theirs.Token)

	expectKind(t, second, ffi.IllegalState, second.FreeError(mine))
	_, ok := second.ErrorPayload(mine)
	assert.False(t, ok)
	payload, ok := second.ErrorPayload(theirs)
	require.True(t, ok)
	assert.Equal(t, "second", string(payload))

	assert.Nil(t, first.FreeError(mine))
	assert.Nil(t, second.FreeError(theirs))
	assert.Zero(t, first.OutstandingErrors())
	assert.Zero(t, second.OutstandingErrors())
}

func TestOnlyOneEventLoop(t *testing.T) {
	b, _ := newHost(t)
	h1 := initSession(t, b)
	h2 := initSession(t, b)

	steps := 0
	err := b.RunEventLoop(h1, func() *ffi.Error {
		steps++
		assert.Nil(t, b.Render(h1, model.DefaultCamera(), nil, nil))

		renderErr := b.Render(h2, model.DefaultCamera(), nil, nil)
		require.NotNil(t, renderErr)
		assert.Equal(t, "only one backend can run its event loop at a time", renderErr.Error())
		expectKind(t, b, ffi.IllegalState, renderErr)

		again := b.RunEventLoop(h1, func() *ffi.Error { return nil })
		require.NotNil(t, again)
		assert.Equal(t, "cannot run a backend twice", again.Error())
		expectKind(t, b, ffi.IllegalState, again)

		return b.Stop(h1)
	})
	require.Nil(t, err)
	assert.Equal(t, 1, steps)

	// both are usable again once the loop returned
	require.Nil(t, b.Render(h2, model.DefaultCamera(), nil, nil))
	require.Nil(t, b.Stop(h1))
	assert.Zero(t, b.OutstandingErrors())
}

func TestPropagatedErrors(t *testing.T) {
	b, _ := newHost(t)
	h := initSession(t, b)

	payload := []byte("java.io.IOException")
	propagated := b.CreatePropagatedError(payload)
	payload[0] = 'x'

	err := b.RunEventLoop(h, func() *ffi.Error {
		return propagated
	})
	require.NotNil(t, err)
	assert.Equal(t, ffi.Propagated, err.Kind)
	assert.Equal(t, propagated.Token, err.Token)

	got, ok := b.ErrorPayload(err)
	require.True(t, ok)
	assert.Equal(t, "java.io.IOException", string(got))
	assert.Equal(t, 1, b.OutstandingErrors())

	assert.Nil(t, b.FreeError(err))
	_, ok = b.ErrorPayload(err)
	assert.False(t, ok)

	// freeing twice is reported, not fatal
	expectKind(t, b, ffi.IllegalState, b.FreeError(err))
	expectKind(t, b, ffi.NullPointer, b.FreeError(nil))
	assert.Zero(t, b.OutstandingErrors())
}

func TestStepPanicIsCaught(t *testing.T) {
	b, _ := newHost(t)
	h := initSession(t, b)

	err := b.RunEventLoop(h, func() *ffi.Error {
		panic(errors.New("step failed"))
	})
	require.NotNil(t, err)
	assert.Equal(t, "panic!: step failed", err.Error())
	expectKind(t, b, ffi.Generic, err)

	// the session survives the panic
	require.Nil(t, b.Render(h, model.DefaultCamera(), nil, nil))
}

func TestNewRendererSettings(t *testing.T) {
	settings := host.NewRendererSettings(0.75, 0.5, 2, true)
	assert.Equal(t, [2]float64{0.75, 0.5}, settings.RendererSize)
	assert.Equal(t, core.FullscreenBorderless, settings.Fullscreen)
	assert.True(t, settings.Transparent)

	assert.Equal(t, core.FullscreenExclusive, host.NewRendererSettings(1, 1, 1, false).Fullscreen)
	assert.Equal(t, core.FullscreenNone, host.NewRendererSettings(1, 1, 9, false).Fullscreen)
}
