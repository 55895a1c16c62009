// Package core owns the GPU: the Vulkan instance and device, the swapchain
// and its recreation protocol, texture and geometry uploads, and frame
// recording. A headless implementation of the same contracts is provided
// for running without a GPU.
package core

import (
	"errors"
	"image"
	"unsafe"

	"github.com/devblok/roast/gfx"
	"github.com/devblok/roast/model"
	vk "github.com/devblok/vulkan"
)

// Errors shared by the backends.
var (
	ErrNoSuitableDevice = errors.New("no suitable physical device found")
	ErrOutOfDate        = errors.New("swapchain is out of date")
	ErrFrameFinished    = errors.New("frame was already submitted")
	ErrForeignResource  = errors.New("resource was not created by this backend")
)

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        uint
	Features      DeviceFeatures
}

// Instance describes a Vulkan instance and supporting methods.
// Once created it is ready to use.
type Instance interface {
	// PhysicalDevicesInfo returns a struct for each Physical Device
	// along with info about those devices
	PhysicalDevicesInfo() []PhysicalDeviceInfo

	// AvailableDevices returns handles of Physical Devices
	// in enumeration order
	AvailableDevices() []vk.PhysicalDevice

	// SetSurface sets the window surface for rendering
	SetSurface(unsafe.Pointer)

	// Surface returns the window surface, if it's not set
	// it should return a valid but empty surface
	Surface() vk.Surface

	// Extensions returns enabled instance extensions
	Extensions() []string

	// Inner returns the inner handle of the underlying API
	Inner() interface{}

	// Destroy destroys internal members
	Destroy()
}

// Backend is a GPU able to hold textures and geometry and to produce frames.
type Backend interface {
	// CreateTexture uploads an immutable texture, optionally with a full mip chain.
	CreateTexture(img *image.RGBA, sampling model.Sampling, mipmapped bool) (gfx.Texture, error)

	// CreateGeometry uploads immutable vertex and index buffers.
	CreateGeometry(vertices []model.Vertex, indices []uint32) (gfx.Geometry, error)

	// BeginFrame acquires the next image. The boolean is false when there is
	// no frame to draw this time around, which is not an error.
	BeginFrame() (Frame, bool, error)

	// SurfaceSize is the current pixel size of the surface.
	SurfaceSize() (float64, float64)

	// RequestRecreate flags the swapchain for recreation on the next frame.
	RequestRecreate()

	// SetRecreateHook registers a function called after every successful
	// swapchain recreation with the new extent.
	SetRecreateHook(func(width, height uint32))

	// Destroy waits for the device and releases everything.
	Destroy()
}

// Pass selects the subpass a frame is recording into.
type Pass int

// Passes in recording order.
const (
	ScenePass Pass = iota
	OverlayPass
)

func (p Pass) String() string {
	if p == OverlayPass {
		return "overlay"
	}
	return "scene"
}

// Frame is one acquired swapchain image being recorded. It is single use:
// after Submit every method returns ErrFrameFinished.
type Frame interface {
	// Extent is the pixel size of the acquired image.
	Extent() (uint32, uint32)

	// BeginPass starts the scene pass or advances to the overlay subpass,
	// binding the given camera.
	BeginPass(pass Pass, camera model.CameraUniform) error

	// BindTextures allocates and binds a descriptor set for the texture pair.
	BindTextures(t0, t1 gfx.Texture) error

	// Draw records one indexed draw of g.
	Draw(g gfx.Geometry, pc model.PushConstants) error

	// End finishes recording.
	End() error

	// Submit queues the recorded work and presents the image.
	Submit() error

	// Discard abandons the frame without presenting it. The swapchain is
	// recreated before the next frame.
	Discard()
}

// WindowEvent is something the window reported since the last poll.
type WindowEvent int

// Events a Window reports.
const (
	EventResized WindowEvent = iota
	EventCloseRequested
)

// Window is the surface provider the event loop polls.
type Window interface {
	// PollEvents drains pending window events.
	PollEvents() []WindowEvent

	// Size is the drawable size in pixels.
	Size() (int32, int32)

	// Show makes a hidden window visible.
	Show()

	// Destroy closes the window.
	Destroy()
}

// ShaderType represents the type of shader thats loaded
type ShaderType int

// Identifies shader objects with their types
const (
	VertexShaderType ShaderType = iota
	FragmentShaderType
	UnknownShaderType
)

// FullscreenMode is how the window covers the display.
type FullscreenMode int

// Fullscreen modes.
const (
	FullscreenNone FullscreenMode = iota
	FullscreenExclusive
	FullscreenBorderless
)

// FullscreenFromOrdinal maps the host ordinal, anything unknown is windowed.
func FullscreenFromOrdinal(ordinal int) FullscreenMode {
	switch ordinal {
	case 1:
		return FullscreenExclusive
	case 2:
		return FullscreenBorderless
	}
	return FullscreenNone
}
