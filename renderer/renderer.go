// Package renderer turns a scene description into recorded frames on a
// core.Backend.
package renderer

import (
	"github.com/devblok/roast/core"
	"github.com/devblok/roast/model"
	"github.com/devblok/roast/resource"
	log "github.com/sirupsen/logrus"
)

// Scene is what one Render call draws. World meshes are drawn with the
// perspective camera, overlay meshes on top with an orthographic one.
type Scene struct {
	Camera  model.Camera
	World   []resource.MeshID
	Overlay []resource.MeshID
}

// GUIPainter paints immediate mode GUI primitives into the overlay pass,
// before the overlay meshes.
type GUIPainter interface {
	// BeginFrame starts collecting primitives for the next frame.
	BeginFrame()

	// Paint records the collected primitives.
	Paint(frame core.Frame) error

	// Resize is called whenever the swapchain is recreated.
	Resize(width, height uint32)
}

// New creates a renderer drawing meshes and textures from the stores.
func New(backend core.Backend, textures *resource.TextureStore, meshes *resource.MeshStore) *Renderer {
	r := &Renderer{
		backend:  backend,
		textures: textures,
		meshes:   meshes,
	}
	backend.SetRecreateHook(r.resized)
	return r
}

// Renderer records and presents frames.
type Renderer struct {
	backend  core.Backend
	textures *resource.TextureStore
	meshes   *resource.MeshStore
	gui      GUIPainter
}

// SetGUI sets the painter for the overlay pass, nil to disable.
func (r *Renderer) SetGUI(gui GUIPainter) {
	r.gui = gui
}

// GUI returns the current painter.
func (r *Renderer) GUI() GUIPainter {
	return r.gui
}

func (r *Renderer) resized(width, height uint32) {
	log.WithFields(log.Fields{
		"width":  width,
		"height": height,
	}).Debug("swapchain recreated")
	if r.gui != nil {
		r.gui.Resize(width, height)
	}
}

// Render draws one frame of scene. Nothing happens when there is no frame to
// draw. Unknown meshes are reported before a frame is acquired. Failures of
// the device drop the frame and are only logged, only a failed acquisition
// is returned as is.
func (r *Renderer) Render(scene Scene) error {
	world, err := Batch(scene.World, r.meshes)
	if err != nil {
		return err
	}
	overlay, err := Batch(scene.Overlay, r.meshes)
	if err != nil {
		return err
	}

	frame, ok, err := r.backend.BeginFrame()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := r.record(frame, scene.Camera, world, overlay); err != nil {
		log.WithFields(log.Fields{
			"error":   err,
			"world":   len(world),
			"overlay": len(overlay),
		}).Error("recording frame failed, dropping it")
		frame.Discard()
		return nil
	}

	if err := frame.Submit(); err != nil {
		log.WithField("error", err).Error("submitting frame failed, dropping it")
	}
	return nil
}

func (r *Renderer) record(frame core.Frame, camera model.Camera, world, overlay []DrawCall) error {
	w, h := frame.Extent()
	width, height := float32(w), float32(h)

	if err := frame.BeginPass(core.ScenePass, camera.Uniform(width, height, false)); err != nil {
		return err
	}
	if err := r.draw(frame, world); err != nil {
		return err
	}

	if err := frame.BeginPass(core.OverlayPass, camera.Uniform(width, height, true)); err != nil {
		return err
	}
	if r.gui != nil {
		if err := r.gui.Paint(frame); err != nil {
			return err
		}
	}
	if err := r.draw(frame, overlay); err != nil {
		return err
	}
	return frame.End()
}

func (r *Renderer) draw(frame core.Frame, calls []DrawCall) error {
	for _, call := range calls {
		if call.Rebind {
			t0 := r.textures.Resolve(call.Textures[0])
			t1 := r.textures.Resolve(call.Textures[1])
			if err := frame.BindTextures(t0.GPU(), t1.GPU()); err != nil {
				return err
			}
		}
		if err := frame.Draw(call.Mesh.Geometry(), call.Mesh.PushConstants()); err != nil {
			return err
		}
	}
	return nil
}
