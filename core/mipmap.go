package core

import (
	"image"
	"math/bits"

	"github.com/devblok/roast/model"
	"golang.org/x/image/draw"
)

// MipLevels is the length of a full mip chain for an image of the given size.
func MipLevels(width, height int) uint32 {
	largest := width
	if height > largest {
		largest = height
	}
	if largest <= 0 {
		return 1
	}
	return uint32(bits.Len(uint(largest)))
}

// MipChain returns img followed by every smaller level down to 1x1.
// Pixel sampled textures are reduced with nearest neighbour so edges stay hard.
func MipChain(img *image.RGBA, sampling model.Sampling) []*image.RGBA {
	var scaler draw.Scaler = draw.BiLinear
	if sampling == model.SamplingPixel {
		scaler = draw.NearestNeighbor
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	levels := MipLevels(w, h)
	chain := make([]*image.RGBA, 0, levels)
	chain = append(chain, img)

	prev := img
	for level := uint32(1); level < levels; level++ {
		w, h = half(w), half(h)
		next := image.NewRGBA(image.Rect(0, 0, w, h))
		scaler.Scale(next, next.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		chain = append(chain, next)
		prev = next
	}
	return chain
}

func half(v int) int {
	if v > 1 {
		return v / 2
	}
	return 1
}
