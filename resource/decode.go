package resource

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // gif
	_ "image/jpeg" // jpeg
	_ "image/png"  // png

	_ "golang.org/x/image/bmp"  // bmp
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // tiff
	_ "golang.org/x/image/webp" // webp
)

// DecodeImage decodes an encoded image into RGBA pixels with its origin at 0,0.
func DecodeImage(data []byte) (*image.RGBA, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %s", err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("decode image: empty %s image", format)
	}
	if rgba, ok := img.(*image.RGBA); ok && bounds.Min == (image.Point{}) {
		return rgba, nil
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba, nil
}
