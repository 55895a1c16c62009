// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/devblok/roast/core"
	"github.com/stretchr/testify/assert"
)

var testImage = func() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 512, 512))
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}()

func TestSliceUint32(t *testing.T) {
	data := []byte{1, 0, 0, 0, 2, 0, 0, 0, 9}
	words := core.SliceUint32(data)
	assert.Len(t, words, 2)
	assert.Nil(t, core.SliceUint32([]byte{1, 2}))
}

func TestGetPixelsPacksRows(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	sub := img.SubImage(image.Rect(1, 2, 3, 4))
	pixels := core.GetPixels(sub)
	assert.Len(t, pixels, 2*2*4)
	assert.Equal(t, []uint8{10, 20, 30, 255}, pixels[:4])
}

func TestGetPixelsPassthrough(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	pixels := core.GetPixels(img)
	assert.Len(t, pixels, 3*2*4)
	assert.Equal(t, &img.Pix[0], &pixels[0])
}

func BenchmarkSliceUint32Small(b *testing.B) {
	data := make([]byte, 100)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Big(b *testing.B) {
	data := make([]byte, 100000)
	for idx := 0; idx < b.N; idx++ {
		core.SliceUint32(data)
	}
}

func BenchmarkGetPixelsConvert(b *testing.B) {
	for idx := 0; idx < b.N; idx++ {
		core.GetPixels(testImage)
	}
}
