// Package session keeps the backends created by the host and makes sure
// only one of them runs its event loop at a time.
package session

import (
	"runtime"
	"sync/atomic"

	"github.com/devblok/roast/core"
	"github.com/devblok/roast/renderer"
	"github.com/devblok/roast/resource"
	log "github.com/sirupsen/logrus"
)

// New creates a session rendering to backend and polling window. The
// session owns both from now on.
func New(backend core.Backend, window core.Window, pacing core.TimeConfiguration) (*Session, error) {
	textures, err := resource.NewTextureStore(backend)
	if err != nil {
		return nil, err
	}
	meshes := resource.NewMeshStore(backend)

	gui, err := renderer.NewImmediateGUI(backend)
	if err != nil {
		textures.Release()
		return nil, err
	}
	r := renderer.New(backend, textures, meshes)
	r.SetGUI(gui)

	return &Session{
		backend:  backend,
		window:   window,
		pacing:   pacing,
		textures: textures,
		meshes:   meshes,
		gui:      gui,
		renderer: r,
	}, nil
}

// Session is one live backend with its resources.
type Session struct {
	backend  core.Backend
	window   core.Window
	pacing   core.TimeConfiguration
	textures *resource.TextureStore
	meshes   *resource.MeshStore
	gui      *renderer.ImmediateGUI
	renderer *renderer.Renderer

	stop atomic.Bool
}

// Backend returns the GPU backend.
func (s *Session) Backend() core.Backend {
	return s.backend
}

// Textures returns the texture store.
func (s *Session) Textures() *resource.TextureStore {
	return s.textures
}

// Meshes returns the mesh store.
func (s *Session) Meshes() *resource.MeshStore {
	return s.meshes
}

// GUI returns the overlay GUI painter.
func (s *Session) GUI() *renderer.ImmediateGUI {
	return s.gui
}

// Renderer returns the frame renderer.
func (s *Session) Renderer() *renderer.Renderer {
	return s.renderer
}

// Stop makes the event loop return after the current iteration. Safe to
// call from any goroutine.
func (s *Session) Stop() {
	s.stop.Store(true)
}

// RunEventLoop shows the window and calls step once per frame until Stop is
// called or the window is closed. The calling goroutine is locked to its OS
// thread for the duration. An error from step ends the loop.
func (s *Session) RunEventLoop(step func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	pace := core.NewTime(s.pacing)
	defer pace.Stop()

	s.stop.Store(false)
	s.window.Show()
	log.WithField("fps", pace.Fps()).Info("event loop started")
	defer log.Info("event loop stopped")

	for !s.stop.Load() {
		for _, event := range s.window.PollEvents() {
			switch event {
			case core.EventResized:
				s.backend.RequestRecreate()
			case core.EventCloseRequested:
				s.stop.Store(true)
			}
		}
		if s.stop.Load() {
			break
		}

		s.gui.BeginFrame()
		if err := step(); err != nil {
			return err
		}
		pace.Wait()
	}
	return nil
}

// Destroy releases every resource, the backend and the window.
func (s *Session) Destroy() {
	s.gui.Release()
	s.meshes.Release()
	s.textures.Release()
	s.backend.Destroy()
	s.window.Destroy()
}
