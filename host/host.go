// Package host is everything the host process calls. Every call validates
// its backend handle first and returns a tagged *ffi.Error instead of
// panicking; the host frees each returned error with FreeError.
//
// Strings and arrays arrive as Go slices, a nil slice standing for a null
// reference. Sessions are not safe for concurrent use: all calls for a
// handle must come from the goroutine that runs its event loop.
package host

import (
	"errors"

	"github.com/devblok/roast/core"
	"github.com/devblok/roast/ffi"
	"github.com/devblok/roast/model"
	"github.com/devblok/roast/renderer"
	"github.com/devblok/roast/resource"
	"github.com/devblok/roast/session"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

// Option configures a Backend.
type Option func(*Backend)

// WithFactory replaces the backend factory.
func WithFactory(factory BackendFactory) Option {
	return func(b *Backend) {
		b.factory = factory
	}
}

// WithConfiguration replaces the configuration. The environment is not
// consulted then.
func WithConfiguration(cfg core.Configuration) Option {
	return func(b *Backend) {
		b.config = cfg
		b.configured = true
	}
}

// New creates the host surface. Without a configuration the defaults are
// used, overridden by the ROAST_ environment variables. Unless a factory is
// given, sessions get an SDL window and a Vulkan device, or a headless
// backend when the configuration asks for one.
func New(opts ...Option) *Backend {
	b := &Backend{
		manager:  session.NewManager(),
		payloads: ffi.NewPayloads(),
		config:   core.DefaultConfiguration(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if !b.configured {
		cfg := b.config
		if err := core.ApplyEnvironment(&cfg); err != nil {
			log.WithError(err).Warn("ignoring environment overrides")
		} else {
			b.config = cfg
		}
	}
	if b.factory == nil {
		if b.config.Renderer.Headless {
			b.factory = HeadlessFactory
		} else {
			b.factory = NewVulkanFactory(core.NewShaderSource(b.config.Renderer))
		}
	}
	return b
}

// Backend is the host facing surface.
type Backend struct {
	manager    *session.Manager
	payloads   *ffi.Payloads
	factory    BackendFactory
	config     core.Configuration
	configured bool
}

// Configuration returns the configuration sessions are created with.
func (b *Backend) Configuration() core.Configuration {
	return b.config
}

// InstallLogger forwards all logging to the host. Only the first call in
// a process has any effect.
func InstallLogger(callbacks ffi.LogCallbacks) bool {
	return ffi.InstallHostLogger(log.StandardLogger(), callbacks)
}

// classify tags errors from the stores for the host.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, resource.ErrMeshNotFound), errors.Is(err, resource.ErrTextureNotFound):
		return ffi.Wrap(ffi.IllegalState, err)
	case errors.Is(err, resource.ErrOpacityOutOfRange):
		return ffi.Wrap(ffi.IllegalArgument, err)
	}
	return err
}

func withSession[T any](b *Backend, h session.Handle, fn func(*session.Session) (T, error)) (T, *ffi.Error) {
	return ffi.CatchValue(b.payloads, func() (T, error) {
		var out T
		err := b.manager.With(h, func(s *session.Session) error {
			var err error
			out, err = fn(s)
			return err
		})
		return out, classify(err)
	})
}

func withMesh[T any](b *Backend, h session.Handle, id resource.MeshID, fn func(*resource.Mesh) (T, error)) (T, *ffi.Error) {
	return withSession(b, h, func(s *session.Session) (T, error) {
		mesh, err := s.Meshes().Lookup(id)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(mesh)
	})
}

func withTexture[T any](b *Backend, h session.Handle, id resource.TextureID, fn func(*resource.Texture) T) (T, *ffi.Error) {
	return withSession(b, h, func(s *session.Session) (T, error) {
		texture, err := s.Textures().Lookup(id)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(texture), nil
	})
}

// NewRendererSettings builds renderer settings from the values the host
// passes in. width and height are fractions of the display size.
func NewRendererSettings(width, height float64, fullscreen int, transparent bool) core.RendererSettings {
	return core.RendererSettings{
		RendererSize: [2]float64{width, height},
		Fullscreen:   core.FullscreenFromOrdinal(fullscreen),
		Transparent:  transparent,
	}
}

// Init creates a session and returns its handle. appName and appVersion
// are UTF-8 text.
func (b *Backend) Init(appName, appVersion []byte, settings core.RendererSettings) (session.Handle, *ffi.Error) {
	return ffi.CatchValue(b.payloads, func() (session.Handle, error) {
		name, err := ffi.StringFromForeign(appName, appName != nil)
		if err != nil {
			return 0, err
		}
		version, err := ffi.StringFromForeign(appVersion, appVersion != nil)
		if err != nil {
			return 0, err
		}

		backend, window, err := b.factory.NewBackend(name, version, settings, b.config)
		if err != nil {
			return 0, err
		}

		s, err := session.New(backend, window, b.config.Time)
		if err != nil {
			backend.Destroy()
			window.Destroy()
			return 0, err
		}

		h, err := b.manager.Insert(s)
		if err != nil {
			s.Destroy()
			return 0, err
		}
		return h, nil
	})
}

// RunEventLoop runs the loop of h, calling step once per frame, until Stop
// is called or the window closes. An error from step ends the loop and is
// returned as it is.
func (b *Backend) RunEventLoop(h session.Handle, step func() *ffi.Error) *ffi.Error {
	return b.payloads.Catch(func() error {
		return classify(b.manager.Run(h, func() error {
			if err := step(); err != nil {
				return err
			}
			return nil
		}))
	})
}

// Stop ends the event loop of h after the current frame.
func (b *Backend) Stop(h session.Handle) *ffi.Error {
	_, err := withSession(b, h, func(s *session.Session) (struct{}, error) {
		s.Stop()
		return struct{}{}, nil
	})
	return err
}

// CreateTexture decodes image and uploads it.
func (b *Backend) CreateTexture(h session.Handle, image []byte, sampling int, mipmaps bool) (resource.TextureID, *ffi.Error) {
	return withSession(b, h, func(s *session.Session) (resource.TextureID, error) {
		data, err := ffi.SliceFromForeign(image, image != nil)
		if err != nil {
			return 0, err
		}
		mode, ok := model.SamplingFromOrdinal(sampling)
		if !ok {
			return 0, ffi.Errorf(ffi.IllegalArgument, "invalid texture sampling")
		}
		img, err := resource.DecodeImage(data)
		if err != nil {
			return 0, err
		}
		return s.Textures().Register(img, mode, mipmaps)
	})
}

// CreateMesh uploads the geometry of a new mesh.
func (b *Backend) CreateMesh(h session.Handle, vertices []model.Vertex, indices []uint32, vertexType int, t0, t1 ffi.Option[resource.TextureID]) (resource.MeshID, *ffi.Error) {
	return withSession(b, h, func(s *session.Session) (resource.MeshID, error) {
		v, err := ffi.SliceFromForeign(vertices, vertices != nil)
		if err != nil {
			return 0, err
		}
		i, err := ffi.SliceFromForeign(indices, indices != nil)
		if err != nil {
			return 0, err
		}
		layout, ok := model.VertexTypeFromOrdinal(vertexType)
		if !ok {
			return 0, ffi.Errorf(ffi.IllegalArgument, "invalid vertex type")
		}
		return s.Meshes().Register(v, i, layout, t0.Ptr(), t1.Ptr())
	})
}

// CreateMeshWithGeometry creates a mesh sharing the geometry of mesh.
func (b *Backend) CreateMeshWithGeometry(h session.Handle, mesh resource.MeshID) (resource.MeshID, *ffi.Error) {
	return withSession(b, h, func(s *session.Session) (resource.MeshID, error) {
		return s.Meshes().RegisterFromGeometry(mesh)
	})
}

// MeshVertexType returns the vertex layout of mesh.
func (b *Backend) MeshVertexType(h session.Handle, mesh resource.MeshID) (model.VertexType, *ffi.Error) {
	return withMesh(b, h, mesh, func(m *resource.Mesh) (model.VertexType, error) {
		return m.VertexType(), nil
	})
}

// TexturePair is the texture handle of both mesh slots.
type TexturePair = ffi.Pair[ffi.Option[resource.TextureID], ffi.Option[resource.TextureID]]

// MeshTextures returns the textures of mesh.
func (b *Backend) MeshTextures(h session.Handle, mesh resource.MeshID) (TexturePair, *ffi.Error) {
	return withMesh(b, h, mesh, func(m *resource.Mesh) (TexturePair, error) {
		t0, t1 := m.Textures()
		return ffi.MakePair(ffi.OptionFromPtr(t0), ffi.OptionFromPtr(t1)), nil
	})
}

// SetMeshTextures replaces the textures of mesh.
func (b *Backend) SetMeshTextures(h session.Handle, mesh resource.MeshID, textures TexturePair) *ffi.Error {
	_, err := withMesh(b, h, mesh, func(m *resource.Mesh) (struct{}, error) {
		m.SetTextures(textures.First.Ptr(), textures.Second.Ptr())
		return struct{}{}, nil
	})
	return err
}

// MeshTransform returns the model matrix of mesh.
func (b *Backend) MeshTransform(h session.Handle, mesh resource.MeshID) (glm.Mat4, *ffi.Error) {
	return withMesh(b, h, mesh, func(m *resource.Mesh) (glm.Mat4, error) {
		return m.Transform(), nil
	})
}

// SetMeshTransform replaces the model matrix of mesh.
func (b *Backend) SetMeshTransform(h session.Handle, mesh resource.MeshID, transform glm.Mat4) *ffi.Error {
	_, err := withMesh(b, h, mesh, func(m *resource.Mesh) (struct{}, error) {
		m.SetTransform(transform)
		return struct{}{}, nil
	})
	return err
}

// MeshTextureOffsets returns the UV offsets of both texture slots of mesh.
func (b *Backend) MeshTextureOffsets(h session.Handle, mesh resource.MeshID) (ffi.Pair[glm.Vec2, glm.Vec2], *ffi.Error) {
	return withMesh(b, h, mesh, func(m *resource.Mesh) (ffi.Pair[glm.Vec2, glm.Vec2], error) {
		o0, o1 := m.TextureOffsets()
		return ffi.MakePair(o0, o1), nil
	})
}

// SetMeshTextureOffsets replaces the UV offsets of mesh.
func (b *Backend) SetMeshTextureOffsets(h session.Handle, mesh resource.MeshID, offsets ffi.Pair[glm.Vec2, glm.Vec2]) *ffi.Error {
	_, err := withMesh(b, h, mesh, func(m *resource.Mesh) (struct{}, error) {
		m.SetTextureOffsets(offsets.First, offsets.Second)
		return struct{}{}, nil
	})
	return err
}

// MeshOverlayColor returns the overlay colour of mesh, if it has one.
func (b *Backend) MeshOverlayColor(h session.Handle, mesh resource.MeshID) (ffi.Option[glm.Vec4], *ffi.Error) {
	return withMesh(b, h, mesh, func(m *resource.Mesh) (ffi.Option[glm.Vec4], error) {
		c, ok := m.OverlayColor()
		if !ok {
			return ffi.None[glm.Vec4](), nil
		}
		return ffi.Some(c), nil
	})
}

// SetMeshOverlayColor sets or clears the overlay colour of mesh.
func (b *Backend) SetMeshOverlayColor(h session.Handle, mesh resource.MeshID, color ffi.Option[glm.Vec4]) *ffi.Error {
	_, err := withMesh(b, h, mesh, func(m *resource.Mesh) (struct{}, error) {
		m.SetOverlayColor(color.Ptr())
		return struct{}{}, nil
	})
	return err
}

// MeshOpacity returns the opacity of mesh.
func (b *Backend) MeshOpacity(h session.Handle, mesh resource.MeshID) (float32, *ffi.Error) {
	return withMesh(b, h, mesh, func(m *resource.Mesh) (float32, error) {
		return m.Opacity(), nil
	})
}

// SetMeshOpacity sets the opacity of mesh, which must be within [0,1].
func (b *Backend) SetMeshOpacity(h session.Handle, mesh resource.MeshID, opacity float32) *ffi.Error {
	_, err := withMesh(b, h, mesh, func(m *resource.Mesh) (struct{}, error) {
		return struct{}{}, m.SetOpacity(opacity)
	})
	return err
}

// TextureWidth returns the width of texture in pixels.
func (b *Backend) TextureWidth(h session.Handle, texture resource.TextureID) (int, *ffi.Error) {
	return withTexture(b, h, texture, (*resource.Texture).Width)
}

// TextureHeight returns the height of texture in pixels.
func (b *Backend) TextureHeight(h session.Handle, texture resource.TextureID) (int, *ffi.Error) {
	return withTexture(b, h, texture, (*resource.Texture).Height)
}

// TextureSampling returns the sampling mode of texture.
func (b *Backend) TextureSampling(h session.Handle, texture resource.TextureID) (model.Sampling, *ffi.Error) {
	return withTexture(b, h, texture, (*resource.Texture).Sampling)
}

// TextureMipmapped reports whether texture has mipmaps.
func (b *Backend) TextureMipmapped(h session.Handle, texture resource.TextureID) (bool, *ffi.Error) {
	return withTexture(b, h, texture, (*resource.Texture).Mipmapped)
}

// Render draws one frame.
func (b *Backend) Render(h session.Handle, camera model.Camera, world, overlay []resource.MeshID) *ffi.Error {
	_, err := withSession(b, h, func(s *session.Session) (struct{}, error) {
		return struct{}{}, s.Renderer().Render(renderer.Scene{
			Camera:  camera,
			World:   world,
			Overlay: overlay,
		})
	})
	return err
}

// DrawRect queues a GUI rectangle for the current frame.
func (b *Backend) DrawRect(h session.Handle, rect renderer.Rect) *ffi.Error {
	_, err := withSession(b, h, func(s *session.Session) (struct{}, error) {
		s.GUI().Add(rect)
		return struct{}{}, nil
	})
	return err
}

// DrawLabel queues a line of UTF-8 text for the current frame, its top left
// corner at x, y.
func (b *Backend) DrawLabel(h session.Handle, x, y float32, text []byte, color glm.Vec4) *ffi.Error {
	_, err := withSession(b, h, func(s *session.Session) (struct{}, error) {
		str, err := ffi.StringFromForeign(text, text != nil)
		if err != nil {
			return struct{}{}, err
		}
		s.GUI().Add(renderer.Label{X: x, Y: y, Text: str, Color: color})
		return struct{}{}, nil
	})
	return err
}

// DrawPanel queues a panel and its contents for the current frame.
func (b *Backend) DrawPanel(h session.Handle, panel renderer.Panel) *ffi.Error {
	_, err := withSession(b, h, func(s *session.Session) (struct{}, error) {
		s.GUI().Add(panel)
		return struct{}{}, nil
	})
	return err
}

// DrawCentralPanel queues a panel covering the whole surface.
func (b *Backend) DrawCentralPanel(h session.Handle, direction renderer.Direction, padding float32, items ...renderer.Widget) *ffi.Error {
	_, err := withSession(b, h, func(s *session.Session) (struct{}, error) {
		s.GUI().CentralPanel(direction, padding, items...)
		return struct{}{}, nil
	})
	return err
}

// SurfaceSize returns the pixel size of the surface of h.
func (b *Backend) SurfaceSize(h session.Handle) (ffi.Pair[float64, float64], *ffi.Error) {
	return withSession(b, h, func(s *session.Session) (ffi.Pair[float64, float64], error) {
		width, height := s.Backend().SurfaceSize()
		return ffi.MakePair(width, height), nil
	})
}

// CreatePropagatedError copies a host error payload into a new error. A
// nil payload gives a NullPointer error instead.
func (b *Backend) CreatePropagatedError(payload []byte) *ffi.Error {
	return b.payloads.Catch(func() error {
		data, err := ffi.SliceFromForeign(payload, payload != nil)
		if err != nil {
			return err
		}
		return b.payloads.NewPropagated(data)
	})
}

// ErrorPayload returns the payload of a live error.
func (b *Backend) ErrorPayload(err *ffi.Error) ([]byte, bool) {
	return b.payloads.Payload(err)
}

// FreeError releases the payload of err. Freeing an error twice is
// reported as an IllegalState error, which has to be freed in turn.
func (b *Backend) FreeError(err *ffi.Error) *ffi.Error {
	return b.payloads.Catch(func() error {
		return b.payloads.Free(err)
	})
}

// OutstandingErrors is the number of errors the host has not freed.
func (b *Backend) OutstandingErrors() int {
	return b.payloads.Outstanding()
}

// Destroy destroys every stored session.
func (b *Backend) Destroy() {
	b.manager.Destroy()
}
