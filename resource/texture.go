package resource

import (
	"fmt"
	"image"

	"github.com/devblok/roast/core"
	"github.com/devblok/roast/gfx"
	"github.com/devblok/roast/model"
	log "github.com/sirupsen/logrus"
)

// Texture is an immutable image uploaded to the GPU together with the
// way it should be sampled.
type Texture struct {
	gpu       gfx.Texture
	width     int
	height    int
	sampling  model.Sampling
	mipmapped bool
}

// GPU returns the backend texture.
func (t *Texture) GPU() gfx.Texture {
	return t.gpu
}

// Width of the base level in pixels.
func (t *Texture) Width() int {
	return t.width
}

// Height of the base level in pixels.
func (t *Texture) Height() int {
	return t.height
}

// Sampling returns the filter used for this texture.
func (t *Texture) Sampling() model.Sampling {
	return t.sampling
}

// Mipmapped reports whether a full mip chain was generated.
func (t *Texture) Mipmapped() bool {
	return t.mipmapped
}

// NewTextureStore creates a store uploading to backend. The default
// texture is uploaded right away and lives outside the handle space.
func NewTextureStore(backend core.Backend) (*TextureStore, error) {
	s := &TextureStore{
		backend:  backend,
		textures: make(map[TextureID]*Texture),
	}

	fallback, err := s.upload(DefaultTextureImage(), model.SamplingPixel, true)
	if err != nil {
		return nil, fmt.Errorf("default texture: %s", err)
	}
	s.fallback = fallback
	return s, nil
}

// TextureStore owns every texture registered by the host.
type TextureStore struct {
	backend  core.Backend
	textures map[TextureID]*Texture
	handles  handles
	fallback *Texture
}

func (s *TextureStore) upload(img *image.RGBA, sampling model.Sampling, mipmapped bool) (*Texture, error) {
	gpu, err := s.backend.CreateTexture(img, sampling, mipmapped)
	if err != nil {
		return nil, err
	}
	size := img.Bounds().Size()
	return &Texture{
		gpu:       gpu,
		width:     size.X,
		height:    size.Y,
		sampling:  sampling,
		mipmapped: mipmapped,
	}, nil
}

// Register uploads img and returns its handle.
func (s *TextureStore) Register(img *image.RGBA, sampling model.Sampling, mipmapped bool) (TextureID, error) {
	if s.handles.exhausted {
		return 0, ErrHandleSpaceExhausted
	}

	texture, err := s.upload(img, sampling, mipmapped)
	if err != nil {
		return 0, err
	}

	raw, err := s.handles.take()
	if err != nil {
		texture.gpu.Release()
		return 0, err
	}
	id := TextureID(raw)
	s.textures[id] = texture

	log.WithFields(log.Fields{
		"texture":   id,
		"width":     texture.width,
		"height":    texture.height,
		"sampling":  sampling,
		"mipmapped": mipmapped,
	}).Debug("texture registered")
	return id, nil
}

// Get returns the texture behind id.
func (s *TextureStore) Get(id TextureID) (*Texture, bool) {
	t, ok := s.textures[id]
	return t, ok
}

// Lookup is Get with ErrTextureNotFound for unknown handles.
func (s *TextureStore) Lookup(id TextureID) (*Texture, error) {
	t, ok := s.textures[id]
	if !ok {
		return nil, ErrTextureNotFound
	}
	return t, nil
}

// Resolve returns the texture behind id, or the default texture when id is
// nil or unknown.
func (s *TextureStore) Resolve(id *TextureID) *Texture {
	if id == nil {
		return s.fallback
	}
	if t, ok := s.textures[*id]; ok {
		return t
	}
	log.WithField("texture", *id).Warn("unknown texture handle, using the default texture")
	return s.fallback
}

// Default returns the fallback texture.
func (s *TextureStore) Default() *Texture {
	return s.fallback
}

// Len is the number of registered textures, the default one excluded.
func (s *TextureStore) Len() int {
	return len(s.textures)
}

// Release frees every texture on the backend. The store is unusable afterwards.
func (s *TextureStore) Release() {
	for id, t := range s.textures {
		t.gpu.Release()
		delete(s.textures, id)
	}
	if s.fallback != nil {
		s.fallback.gpu.Release()
		s.fallback = nil
	}
}
