package core

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/devblok/roast/gfx"
	"github.com/devblok/roast/model"
)

// HeadlessStats counts what a HeadlessBackend was asked to do.
type HeadlessStats struct {
	// Frames that were submitted and presented.
	Frames int
	// Rebuilds of the swapchain.
	Rebuilds int
	// Rebinds of a texture pair.
	Rebinds int
	// Draws recorded across all frames.
	Draws int
	// Textures and Geometries created.
	Textures   int
	Geometries int
	// Discards of frames that were never submitted.
	Discards int
	// Dropped frames, acquired or presented out of date.
	Dropped int
}

// DrawRecord is one draw as recorded by a headless frame.
type DrawRecord struct {
	Pass          Pass
	Geometry      gfx.Geometry
	Textures      [2]gfx.Texture
	PushConstants model.PushConstants
}

// NewHeadlessBackend creates a backend that records instead of rendering.
// The surface follows the size of window.
func NewHeadlessBackend(window Window) *HeadlessBackend {
	b := &HeadlessBackend{window: window}
	b.chain = &headlessChain{backend: b}
	b.swapchain = newSwapchain(b.chain)
	return b
}

// HeadlessBackend implements Backend without a GPU. It runs the same
// swapchain state machine as the Vulkan backend so recreation can be
// exercised, and out of date results can be scripted.
type HeadlessBackend struct {
	window    Window
	chain     *headlessChain
	swapchain *Swapchain

	stats     HeadlessStats
	lastFrame []DrawRecord

	outOfDateAcquires int
	outOfDatePresents int
	rebuildErr        error

	resources []gfx.Releasable
	destroyed bool
}

// OutOfDateOnAcquire makes the next n acquisitions report out of date.
func (b *HeadlessBackend) OutOfDateOnAcquire(n int) {
	b.outOfDateAcquires = n
}

// OutOfDateOnPresent makes the next n presentations report out of date.
func (b *HeadlessBackend) OutOfDateOnPresent(n int) {
	b.outOfDatePresents = n
}

// FailRebuild makes the next swapchain rebuild fail with err.
func (b *HeadlessBackend) FailRebuild(err error) {
	b.rebuildErr = err
}

// Stats returns the counters so far.
func (b *HeadlessBackend) Stats() HeadlessStats {
	return b.stats
}

// LastFrame returns the draws of the last presented frame in recording order.
func (b *HeadlessBackend) LastFrame() []DrawRecord {
	return b.lastFrame
}

// State exposes the swapchain state.
func (b *HeadlessBackend) State() SwapchainState {
	return b.swapchain.State()
}

// Destroyed reports whether Destroy was called.
func (b *HeadlessBackend) Destroyed() bool {
	return b.destroyed
}

// CreateTexture implements interface
func (b *HeadlessBackend) CreateTexture(img *image.RGBA, sampling model.Sampling, mipmapped bool) (gfx.Texture, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("texture image has no pixels")
	}
	mips := uint32(1)
	if mipmapped {
		mips = MipLevels(w, h)
	}
	t := &headlessTexture{
		extent:   gfx.Extent3D{Width: w, Height: h, Depth: 1},
		mips:     mips,
		sampling: sampling,
	}
	b.resources = append(b.resources, t)
	b.stats.Textures++
	return t, nil
}

// CreateGeometry implements interface
func (b *HeadlessBackend) CreateGeometry(vertices []model.Vertex, indices []uint32) (gfx.Geometry, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, errors.New("geometry needs at least one vertex and one index")
	}
	g := &HeadlessGeometry{
		vertices: append([]model.Vertex(nil), vertices...),
		indices:  append([]uint32(nil), indices...),
	}
	b.resources = append(b.resources, g)
	b.stats.Geometries++
	return g, nil
}

// BeginFrame implements interface
func (b *HeadlessBackend) BeginFrame() (Frame, bool, error) {
	idx, ok, err := b.swapchain.Acquire()
	if err != nil || !ok {
		return nil, false, err
	}
	w, h := b.swapchain.Extent()
	return &headlessFrame{
		backend: b,
		index:   idx,
		width:   w,
		height:  h,
	}, true, nil
}

// SurfaceSize implements interface
func (b *HeadlessBackend) SurfaceSize() (float64, float64) {
	w, h, _ := b.chain.surfaceExtent()
	return float64(w), float64(h)
}

// RequestRecreate implements interface
func (b *HeadlessBackend) RequestRecreate() {
	b.swapchain.RequestRecreate()
}

// SetRecreateHook implements interface
func (b *HeadlessBackend) SetRecreateHook(fn func(width, height uint32)) {
	b.swapchain.SetRecreateHook(fn)
}

// Destroy implements interface
func (b *HeadlessBackend) Destroy() {
	for idx := len(b.resources) - 1; idx >= 0; idx-- {
		b.resources[idx].Release()
	}
	b.resources = nil
	b.destroyed = true
}

type headlessChain struct {
	backend *HeadlessBackend
	images  uint32
	next    uint32
}

func (c *headlessChain) surfaceExtent() (uint32, uint32, error) {
	w, h := c.backend.window.Size()
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return uint32(w), uint32(h), nil
}

func (c *headlessChain) rebuild(width, height uint32) error {
	if err := c.backend.rebuildErr; err != nil {
		c.backend.rebuildErr = nil
		return err
	}
	c.images = 3
	c.next = 0
	c.backend.stats.Rebuilds++
	return nil
}

func (c *headlessChain) acquire() (uint32, bool, bool, error) {
	b := c.backend
	if b.outOfDateAcquires > 0 {
		b.outOfDateAcquires--
		b.stats.Dropped++
		return 0, true, false, nil
	}
	idx := c.next
	c.next = (c.next + 1) % c.images
	return idx, false, false, nil
}

type headlessFrame struct {
	backend       *HeadlessBackend
	index         uint32
	width, height uint32

	pass     Pass
	inPass   bool
	bound    *[2]gfx.Texture
	draws    []DrawRecord
	ended    bool
	finished bool
}

func (f *headlessFrame) Extent() (uint32, uint32) {
	return f.width, f.height
}

func (f *headlessFrame) BeginPass(pass Pass, camera model.CameraUniform) error {
	if f.finished || f.ended {
		return ErrFrameFinished
	}
	switch pass {
	case ScenePass:
		if f.inPass {
			return errors.New("scene pass was already begun")
		}
	case OverlayPass:
		if !f.inPass || f.pass == OverlayPass {
			return errors.New("overlay pass must follow the scene pass")
		}
	default:
		return fmt.Errorf("unknown pass %d", pass)
	}
	f.inPass = true
	f.pass = pass
	f.bound = nil
	return nil
}

func (f *headlessFrame) BindTextures(t0, t1 gfx.Texture) error {
	if f.finished || f.ended {
		return ErrFrameFinished
	}
	if !f.inPass {
		return errors.New("textures bound outside of a pass")
	}
	for _, t := range []gfx.Texture{t0, t1} {
		texture, ok := t.(*headlessTexture)
		if !ok || texture.released {
			return ErrForeignResource
		}
	}
	f.bound = &[2]gfx.Texture{t0, t1}
	f.backend.stats.Rebinds++
	return nil
}

func (f *headlessFrame) Draw(g gfx.Geometry, pc model.PushConstants) error {
	if f.finished || f.ended {
		return ErrFrameFinished
	}
	if !f.inPass || f.bound == nil {
		return errors.New("draw needs a pass and bound textures")
	}
	geometry, ok := g.(*HeadlessGeometry)
	if !ok || geometry.released {
		return ErrForeignResource
	}
	f.draws = append(f.draws, DrawRecord{
		Pass:          f.pass,
		Geometry:      g,
		Textures:      *f.bound,
		PushConstants: pc,
	})
	f.backend.stats.Draws++
	return nil
}

func (f *headlessFrame) End() error {
	if f.finished || f.ended {
		return ErrFrameFinished
	}
	f.ended = true
	return nil
}

func (f *headlessFrame) Submit() error {
	if f.finished {
		return ErrFrameFinished
	}
	f.ended = true
	f.finished = true

	b := f.backend
	if b.outOfDatePresents > 0 {
		b.outOfDatePresents--
		b.stats.Dropped++
		b.swapchain.Presented(true)
		return nil
	}
	b.swapchain.Presented(false)
	b.stats.Frames++
	b.lastFrame = f.draws
	return nil
}

func (f *headlessFrame) Discard() {
	if f.finished {
		return
	}
	f.finished = true
	f.backend.stats.Discards++
	f.backend.swapchain.RequestRecreate()
}

type headlessTexture struct {
	extent   gfx.Extent3D
	mips     uint32
	sampling model.Sampling
	released bool
}

func (t *headlessTexture) Extent() gfx.Extent3D {
	return t.extent
}

func (t *headlessTexture) MipLevels() uint32 {
	return t.mips
}

func (t *headlessTexture) Release() {
	t.released = true
}

// HeadlessGeometry keeps the uploaded data in memory.
type HeadlessGeometry struct {
	vertices []model.Vertex
	indices  []uint32
	released bool
}

// Vertices returns the vertex data the geometry was created with.
func (g *HeadlessGeometry) Vertices() []model.Vertex {
	return g.vertices
}

// Indices returns the index data the geometry was created with.
func (g *HeadlessGeometry) Indices() []uint32 {
	return g.indices
}

// VertexCount implements interface
func (g *HeadlessGeometry) VertexCount() uint32 {
	return uint32(len(g.vertices))
}

// IndexCount implements interface
func (g *HeadlessGeometry) IndexCount() uint32 {
	return uint32(len(g.indices))
}

// Release implements interface
func (g *HeadlessGeometry) Release() {
	g.released = true
}

// NewHeadlessWindow creates a window with a scripted event queue.
func NewHeadlessWindow(width, height int32) *HeadlessWindow {
	return &HeadlessWindow{
		width:  width,
		height: height,
	}
}

// HeadlessWindow implements Window. Events may be pushed from any goroutine.
type HeadlessWindow struct {
	mu        sync.Mutex
	width     int32
	height    int32
	events    []WindowEvent
	shown     bool
	destroyed bool
}

// Push queues events for the next poll.
func (w *HeadlessWindow) Push(events ...WindowEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, events...)
}

// Resize changes the drawable size and queues EventResized.
func (w *HeadlessWindow) Resize(width, height int32) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
	w.Push(EventResized)
}

// PollEvents implements interface
func (w *HeadlessWindow) PollEvents() []WindowEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := w.events
	w.events = nil
	return events
}

// Size implements interface
func (w *HeadlessWindow) Size() (int32, int32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// Show implements interface
func (w *HeadlessWindow) Show() {
	w.mu.Lock()
	w.shown = true
	w.mu.Unlock()
}

// Shown reports whether Show was called.
func (w *HeadlessWindow) Shown() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shown
}

// Destroy implements interface
func (w *HeadlessWindow) Destroy() {
	w.mu.Lock()
	w.destroyed = true
	w.mu.Unlock()
}

// Destroyed reports whether Destroy was called.
func (w *HeadlessWindow) Destroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}
