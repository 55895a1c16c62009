// Package resource maps the numeric handles given out to the host onto
// textures and meshes living on a core.Backend.
package resource

import (
	"errors"
	"math"
)

// Errors returned by the stores.
var (
	ErrTextureNotFound      = errors.New("texture handle does not point to a valid texture")
	ErrMeshNotFound         = errors.New("mesh handle does not point to a valid mesh")
	ErrHandleSpaceExhausted = errors.New("handle space exhausted")
	ErrOpacityOutOfRange    = errors.New("opacity must be between 0 and 1")
)

// TextureID identifies a registered texture.
type TextureID uint64

// MeshID identifies a registered mesh.
type MeshID uint64

// handles hands out increasing numbers starting at 0 and refuses to wrap.
type handles struct {
	next      uint64
	exhausted bool
}

func (h *handles) take() (uint64, error) {
	if h.exhausted {
		return 0, ErrHandleSpaceExhausted
	}
	id := h.next
	if h.next == math.MaxUint64 {
		h.exhausted = true
	} else {
		h.next++
	}
	return id, nil
}
