package core

import (
	log "github.com/sirupsen/logrus"
)

// SwapchainState is where the swapchain is in its recreation protocol.
type SwapchainState int

// Swapchain states.
const (
	SwapchainValid SwapchainState = iota
	SwapchainPendingRecreate
)

func (s SwapchainState) String() string {
	if s == SwapchainPendingRecreate {
		return "pending recreate"
	}
	return "valid"
}

// swapchainChain is the API specific part of a swapchain.
type swapchainChain interface {
	// surfaceExtent is the current pixel size of the surface.
	surfaceExtent() (uint32, uint32, error)

	// rebuild recreates every extent dependent object. On failure the
	// previous objects must stay usable.
	rebuild(width, height uint32) error

	// acquire gets the next image index.
	acquire() (index uint32, outOfDate, suboptimal bool, err error)
}

// Swapchain drives recreation of a chain. A resize or an out of date
// result moves it to SwapchainPendingRecreate, the next Acquire rebuilds
// unless the surface has no area.
type Swapchain struct {
	chain  swapchainChain
	state  SwapchainState
	width  uint32
	height uint32
	hook   func(width, height uint32)
}

// newSwapchain starts pending, the first Acquire builds the chain.
func newSwapchain(chain swapchainChain) *Swapchain {
	return &Swapchain{
		chain: chain,
		state: SwapchainPendingRecreate,
	}
}

// State returns the current state.
func (s *Swapchain) State() SwapchainState {
	return s.state
}

// Extent of the images as of the last rebuild.
func (s *Swapchain) Extent() (uint32, uint32) {
	return s.width, s.height
}

// SetRecreateHook registers fn to be called after every rebuild.
func (s *Swapchain) SetRecreateHook(fn func(width, height uint32)) {
	s.hook = fn
}

// RequestRecreate flags the chain for rebuilding on the next Acquire.
func (s *Swapchain) RequestRecreate() {
	s.state = SwapchainPendingRecreate
}

// Prepare rebuilds the chain if recreation is pending. It returns false
// when the surface is degenerate and nothing was built.
func (s *Swapchain) Prepare() (bool, error) {
	if s.state != SwapchainPendingRecreate {
		return true, nil
	}

	width, height, err := s.chain.surfaceExtent()
	if err != nil {
		return false, err
	}
	if width == 0 || height == 0 {
		return false, nil
	}

	if err := s.chain.rebuild(width, height); err != nil {
		return false, err
	}
	s.width, s.height = width, height
	s.state = SwapchainValid

	log.WithFields(log.Fields{
		"width":  width,
		"height": height,
	}).Debug("swapchain recreated")

	if s.hook != nil {
		s.hook(width, height)
	}
	return true, nil
}

// Acquire returns the next image index. The boolean is false when there is
// no frame this time: the surface is degenerate or the chain went out of
// date, in which case recreation is requested. Any other error is fatal.
func (s *Swapchain) Acquire() (uint32, bool, error) {
	if ok, err := s.Prepare(); err != nil || !ok {
		return 0, false, err
	}

	idx, outOfDate, suboptimal, err := s.chain.acquire()
	if err != nil {
		return 0, false, err
	}
	if outOfDate {
		s.RequestRecreate()
		return 0, false, nil
	}
	if suboptimal {
		s.RequestRecreate()
	}
	return idx, true, nil
}

// Presented reports the outcome of presentation, an out of date or
// suboptimal result requests recreation for the next frame.
func (s *Swapchain) Presented(outOfDate bool) {
	if outOfDate {
		s.RequestRecreate()
	}
}
