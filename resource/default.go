package resource

import (
	"image"
	"image/color"
	"math"
)

// Size of the default texture and the number of random draws per row.
const (
	defaultTextureSize = 8
	defaultTextureRow  = 16
	defaultTextureSeed = 16
)

// DefaultTextureImage generates the texture drawn in place of missing ones:
// an 8x8 grid of random blue-ish tiles that is identical on every run.
func DefaultTextureImage() *image.RGBA {
	rng := newJavaRandom(defaultTextureSeed)
	img := image.NewRGBA(image.Rect(0, 0, defaultTextureSize, defaultTextureSize))
	for y := 0; y < defaultTextureSize; y++ {
		for x := 0; x < defaultTextureRow; x++ {
			v := rng.nextDouble()
			if x >= defaultTextureSize {
				continue
			}
			r, g, b := hsvToRGB(v/5+0.5, 0.5, 0.8)
			img.SetRGBA(x, y, color.RGBA{R: channel(r), G: channel(g), B: channel(b), A: 255})
		}
	}
	return img
}

func channel(c float64) uint8 {
	return uint8(math.Round(c * 255))
}

// javaRandom reproduces java.util.Random so the default texture keeps the
// colours it has always had.
type javaRandom struct {
	seed int64
}

const (
	javaMultiplier = 0x5DEECE66D
	javaAddend     = 0xB
	javaMask       = (1 << 48) - 1
)

func newJavaRandom(seed int64) *javaRandom {
	return &javaRandom{seed: (seed ^ javaMultiplier) & javaMask}
}

func (r *javaRandom) next(bits uint) int64 {
	r.seed = (r.seed*javaMultiplier + javaAddend) & javaMask
	return int64(int32(r.seed >> (48 - bits)))
}

func (r *javaRandom) nextDouble() float64 {
	return float64(r.next(26)<<27+r.next(27)) * (1.0 / (1 << 53))
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	h = math.Mod(math.Mod(h, 1)+1, 1)
	s = math.Max(0, math.Min(1, s))

	sector := math.Floor(h * 6)
	f := h*6 - sector
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	switch int(sector) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	}
	return v, p, q
}
