package core

import (
	"time"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	t := &Time{fps: cfg.FramesPerSecond}
	if cfg.FramesPerSecond > 0 {
		t.fpsTicker = time.NewTicker(time.Second / time.Duration(cfg.FramesPerSecond))
	}
	return t
}

// Time paces the frame loop
type Time struct {
	fps       int
	fpsTicker *time.Ticker
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// FpsTicker gets the initialized fps ticker, nil when unlimited
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// Wait blocks until the next frame is due. Returns immediately when unlimited.
func (t *Time) Wait() {
	if t.fpsTicker != nil {
		<-t.fpsTicker.C
	}
}

// Stop releases the ticker.
func (t *Time) Stop() {
	if t.fpsTicker != nil {
		t.fpsTicker.Stop()
	}
}
