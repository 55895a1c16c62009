package resource

import (
	"github.com/devblok/roast/core"
	"github.com/devblok/roast/gfx"
	"github.com/devblok/roast/model"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

// Mesh is a drawable instance: immutable geometry, possibly shared with
// other meshes, plus per instance state the host is free to change.
type Mesh struct {
	geometry   gfx.Geometry
	vertexType model.VertexType
	textures   [2]*TextureID

	transform  glm.Mat4
	texOffsets [2]glm.Vec2
	overlay    *glm.Vec4
	opacity    float32
}

func newMesh(geometry gfx.Geometry, vertexType model.VertexType, t0, t1 *TextureID) *Mesh {
	return &Mesh{
		geometry:   geometry,
		vertexType: vertexType,
		textures:   [2]*TextureID{copyID(t0), copyID(t1)},
		transform:  glm.Ident4(),
		opacity:    1,
	}
}

func copyID(id *TextureID) *TextureID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// Geometry returns the buffers this mesh draws from.
func (m *Mesh) Geometry() gfx.Geometry {
	return m.geometry
}

// VertexType is fixed at creation.
func (m *Mesh) VertexType() model.VertexType {
	return m.vertexType
}

// Textures returns the texture handle for both slots, nil for none.
func (m *Mesh) Textures() (*TextureID, *TextureID) {
	return copyID(m.textures[0]), copyID(m.textures[1])
}

// SetTextures replaces both texture slots.
func (m *Mesh) SetTextures(t0, t1 *TextureID) {
	m.textures = [2]*TextureID{copyID(t0), copyID(t1)}
}

// Transform returns the model matrix.
func (m *Mesh) Transform() glm.Mat4 {
	return m.transform
}

// SetTransform replaces the model matrix.
func (m *Mesh) SetTransform(transform glm.Mat4) {
	m.transform = transform
}

// TextureOffsets returns the UV offsets of both texture slots.
func (m *Mesh) TextureOffsets() (glm.Vec2, glm.Vec2) {
	return m.texOffsets[0], m.texOffsets[1]
}

// SetTextureOffsets replaces the UV offsets of both texture slots.
func (m *Mesh) SetTextureOffsets(o0, o1 glm.Vec2) {
	m.texOffsets = [2]glm.Vec2{o0, o1}
}

// OverlayColor returns the colour multiplied over the mesh, if any.
func (m *Mesh) OverlayColor() (glm.Vec4, bool) {
	if m.overlay == nil {
		return glm.Vec4{}, false
	}
	return *m.overlay, true
}

// SetOverlayColor sets or, with nil, clears the overlay colour.
func (m *Mesh) SetOverlayColor(color *glm.Vec4) {
	if color == nil {
		m.overlay = nil
		return
	}
	c := *color
	m.overlay = &c
}

// Opacity of the whole mesh.
func (m *Mesh) Opacity() float32 {
	return m.opacity
}

// SetOpacity fails with ErrOpacityOutOfRange outside [0,1].
func (m *Mesh) SetOpacity(opacity float32) error {
	if !(opacity >= 0 && opacity <= 1) {
		return ErrOpacityOutOfRange
	}
	m.opacity = opacity
	return nil
}

// PushConstants fills the per draw data for this mesh.
func (m *Mesh) PushConstants() model.PushConstants {
	overlay := glm.Vec4{1, 1, 1, 1}
	if m.overlay != nil {
		overlay = *m.overlay
	}
	return model.PushConstants{
		Model: m.transform,
		TexOffsets: glm.Vec4{
			m.texOffsets[0][0], m.texOffsets[0][1],
			m.texOffsets[1][0], m.texOffsets[1][1],
		},
		OverlayColor: overlay,
		Opacity:      m.opacity,
		VertexType:   m.vertexType,
	}
}

// NewMeshStore creates an empty store uploading to backend.
func NewMeshStore(backend core.Backend) *MeshStore {
	return &MeshStore{
		backend: backend,
		meshes:  make(map[MeshID]*Mesh),
	}
}

// MeshStore owns every mesh registered by the host and the geometry
// behind them.
type MeshStore struct {
	backend    core.Backend
	meshes     map[MeshID]*Mesh
	geometries []gfx.Geometry
	handles    handles
}

func (s *MeshStore) insert(m *Mesh) (MeshID, error) {
	raw, err := s.handles.take()
	if err != nil {
		return 0, err
	}
	id := MeshID(raw)
	s.meshes[id] = m
	return id, nil
}

// Register uploads the geometry and creates a mesh drawing it.
func (s *MeshStore) Register(vertices []model.Vertex, indices []uint32, vertexType model.VertexType, t0, t1 *TextureID) (MeshID, error) {
	if s.handles.exhausted {
		return 0, ErrHandleSpaceExhausted
	}

	geometry, err := s.backend.CreateGeometry(vertices, indices)
	if err != nil {
		return 0, err
	}

	id, err := s.insert(newMesh(geometry, vertexType, t0, t1))
	if err != nil {
		geometry.Release()
		return 0, err
	}
	s.geometries = append(s.geometries, geometry)

	log.WithFields(log.Fields{
		"mesh":     id,
		"vertices": len(vertices),
		"indices":  len(indices),
		"type":     vertexType,
	}).Debug("mesh registered")
	return id, nil
}

// RegisterFromGeometry creates a mesh sharing the buffers and textures of
// source with fresh instance state.
func (s *MeshStore) RegisterFromGeometry(source MeshID) (MeshID, error) {
	m, ok := s.meshes[source]
	if !ok {
		return 0, ErrMeshNotFound
	}

	id, err := s.insert(newMesh(m.geometry, m.vertexType, m.textures[0], m.textures[1]))
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"mesh":   id,
		"source": source,
	}).Debug("mesh registered from geometry")
	return id, nil
}

// Get returns the mesh behind id.
func (s *MeshStore) Get(id MeshID) (*Mesh, bool) {
	m, ok := s.meshes[id]
	return m, ok
}

// Lookup is Get with ErrMeshNotFound for unknown handles.
func (s *MeshStore) Lookup(id MeshID) (*Mesh, error) {
	m, ok := s.meshes[id]
	if !ok {
		return nil, ErrMeshNotFound
	}
	return m, nil
}

// Len is the number of registered meshes.
func (s *MeshStore) Len() int {
	return len(s.meshes)
}

// Release frees all geometry on the backend. The store is unusable afterwards.
func (s *MeshStore) Release() {
	for _, g := range s.geometries {
		g.Release()
	}
	s.geometries = nil
	s.meshes = make(map[MeshID]*Mesh)
}
