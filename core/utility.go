package core

import (
	"fmt"
	"image"
	"image/draw"
	"unsafe"
)

// SliceUint32 reslices bytes into a uint32, that is used
// to sumbit vulkan shaders for processing
func SliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func safeString(s string) string {
	return fmt.Sprintf("%s\x00", s)
}

func safeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}

// GetPixels returns tightly packed RGBA pixels of img, drawing it onto an
// RGBA canvas when it is not one already.
func GetPixels(img image.Image) []uint8 {
	bounds := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*bounds.Dx() && bounds.Min == (image.Point{}) {
		return rgba.Pix[:4*bounds.Dx()*bounds.Dy()]
	}
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)
	return canvas.Pix
}
