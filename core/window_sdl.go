package core

import (
	"errors"
	"unsafe"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

// InitSDL initialises video, events and the Vulkan loader. It returns the
// loader's vkGetInstanceProcAddr and a function undoing the initialisation.
func InitSDL() (unsafe.Pointer, func(), error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, nil, errors.New("sdl.Init(): " + err.Error())
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, nil, errors.New("sdl.VulkanLoadLibrary(): " + err.Error())
	}
	return sdl.VulkanGetVkGetInstanceProcAddr(), func() {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
	}, nil
}

// NewSDLWindow creates a hidden Vulkan capable window centred on the first
// display and sized as a fraction of it.
func NewSDLWindow(title string, settings RendererSettings) (*SDLWindow, error) {
	bounds, err := sdl.GetDisplayBounds(0)
	if err != nil {
		return nil, errors.New("sdl.GetDisplayBounds(): " + err.Error())
	}

	width := int32(float64(bounds.W) * settings.RendererSize[0])
	height := int32(float64(bounds.H) * settings.RendererSize[1])
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	flags := uint32(sdl.WINDOW_VULKAN | sdl.WINDOW_HIDDEN | sdl.WINDOW_RESIZABLE)
	switch settings.Fullscreen {
	case FullscreenExclusive:
		flags |= sdl.WINDOW_FULLSCREEN
	case FullscreenBorderless:
		flags |= sdl.WINDOW_FULLSCREEN_DESKTOP
	}

	window, err := sdl.CreateWindow(title,
		bounds.X+(bounds.W-width)/2,
		bounds.Y+(bounds.H-height)/2,
		width, height, flags)
	if err != nil {
		return nil, errors.New("sdl.CreateWindow(): " + err.Error())
	}

	log.WithFields(log.Fields{
		"width":      width,
		"height":     height,
		"fullscreen": settings.Fullscreen,
	}).Debug("window created")

	return &SDLWindow{window: window}, nil
}

// SDLWindow implements Window over an SDL window.
type SDLWindow struct {
	window *sdl.Window
}

// Extensions are the instance extensions the window needs for its surface.
func (w *SDLWindow) Extensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// CreateSurface creates the window's surface and sets it on instance.
func (w *SDLWindow) CreateSurface(instance Instance) error {
	inner, ok := instance.Inner().(vk.Instance)
	if !ok {
		return errors.New("instance is not a Vulkan instance")
	}
	surface, err := w.window.VulkanCreateSurface(inner)
	if err != nil {
		return errors.New("sdl.VulkanCreateSurface(): " + err.Error())
	}
	instance.SetSurface(surface)
	return nil
}

// PollEvents implements interface
func (w *SDLWindow) PollEvents() []WindowEvent {
	var events []WindowEvent
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch et := event.(type) {
		case *sdl.QuitEvent:
			events = append(events, EventCloseRequested)
		case *sdl.WindowEvent:
			switch et.Event {
			case sdl.WINDOWEVENT_CLOSE:
				events = append(events, EventCloseRequested)
			case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED,
				sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED:
				events = append(events, EventResized)
			}
		}
	}
	return events
}

// Size implements interface
func (w *SDLWindow) Size() (int32, int32) {
	return w.window.VulkanGetDrawableSize()
}

// Show implements interface
func (w *SDLWindow) Show() {
	w.window.Show()
}

// Destroy implements interface
func (w *SDLWindow) Destroy() {
	if err := w.window.Destroy(); err != nil {
		log.WithError(err).Warn("destroying window")
	}
}
