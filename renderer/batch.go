package renderer

import (
	"fmt"

	"github.com/devblok/roast/resource"
)

// MeshLookup finds meshes by handle.
type MeshLookup interface {
	Get(id resource.MeshID) (*resource.Mesh, bool)
}

// DrawCall is one mesh to draw. When Rebind is set the texture pair has to
// be bound before drawing it.
type DrawCall struct {
	ID       resource.MeshID
	Mesh     *resource.Mesh
	Rebind   bool
	Textures [2]*resource.TextureID
}

// Batch turns ids into draw calls in the same order, marking only the calls
// that need a new texture pair bound. A mesh with no texture in a slot keeps
// whatever is bound there.
func Batch(ids []resource.MeshID, meshes MeshLookup) ([]DrawCall, error) {
	calls := make([]DrawCall, 0, len(ids))

	var bound *[2]*resource.TextureID
	for _, id := range ids {
		mesh, ok := meshes.Get(id)
		if !ok {
			return nil, fmt.Errorf("mesh %d: %w", id, resource.ErrMeshNotFound)
		}

		t0, t1 := mesh.Textures()
		call := DrawCall{
			ID:       id,
			Mesh:     mesh,
			Textures: [2]*resource.TextureID{t0, t1},
		}
		if bound == nil || conflicts(bound[0], t0) || conflicts(bound[1], t1) {
			call.Rebind = true
			bound = &call.Textures
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// conflicts reports whether want needs a different texture than the bound one.
func conflicts(bound, want *resource.TextureID) bool {
	if want == nil {
		return false
	}
	return bound == nil || *bound != *want
}

// Rebinds counts the calls that bind textures.
func Rebinds(calls []DrawCall) int {
	n := 0
	for _, c := range calls {
		if c.Rebind {
			n++
		}
	}
	return n
}
