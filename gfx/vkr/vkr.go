// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr holds the Vulkan buffer and image primitives used by the backend.
package vkr

import (
	"fmt"

	"github.com/devblok/roast/gfx"
	vk "github.com/devblok/vulkan"
)

// NewBuffer creates, configures, allocates and binds a new buffer.
// Memory is taken with the property flags given in prop.
func NewBuffer(dev vk.Device, size uint, usage vk.BufferUsageFlagBits, prop vk.MemoryPropertyFlagBits, ma *MemoryAllocator) (Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(dev, &createInfo, nil, &buffer)); err != nil {
		return Buffer{}, fmt.Errorf("vk.CreateBuffer(): %s", err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev, buffer, &req)
	req.Deref()

	memory, err := ma.Malloc(req, prop)
	if err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		return Buffer{}, err
	}

	if err := vk.Error(vk.BindBufferMemory(dev, buffer, memory.Get(), 0)); err != nil {
		vk.DestroyBuffer(dev, buffer, nil)
		memory.Release()
		return Buffer{}, fmt.Errorf("vk.BindBufferMemory(): %s", err.Error())
	}

	return Buffer{
		device: dev,
		buffer: buffer,
		size:   size,
		memory: memory,
	}, nil
}

// NewStagingBuffer creates a host visible transfer source filled with data.
func NewStagingBuffer(dev vk.Device, data []byte, ma *MemoryAllocator) (Buffer, error) {
	buf, err := NewBuffer(dev, uint(len(data)), vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit, ma)
	if err != nil {
		return Buffer{}, err
	}
	if err := buf.memory.Write(data); err != nil {
		buf.Release()
		return Buffer{}, err
	}
	return buf, nil
}

// Buffer implements a generic vulkan buffer.
type Buffer struct {
	device vk.Device
	buffer vk.Buffer
	size   uint

	memory Memory
}

// Mem returns the Memory that the buffer is based on.
func (b *Buffer) Mem() *Memory {
	return &b.memory
}

// Get returns the vulkan Buffer handle.
func (b *Buffer) Get() vk.Buffer {
	return b.buffer
}

// Size returns the requested size of the buffer in bytes.
func (b *Buffer) Size() uint {
	return b.size
}

// Release destroys the buffer and memory asociated with it.
func (b *Buffer) Release() {
	vk.DestroyBuffer(b.device, b.buffer, nil)
	b.memory.Release()
}

// ImageOptions configure NewImage.
type ImageOptions struct {
	Extent    gfx.Extent3D
	MipLevels uint32
	Format    vk.Format
	Usage     vk.ImageUsageFlagBits
	Aspect    vk.ImageAspectFlagBits
}

// NewImage creates a device local optimal tiled image with a view over all of its mip levels.
func NewImage(dev vk.Device, opts ImageOptions, ma *MemoryAllocator) (Image, error) {
	if opts.MipLevels == 0 {
		opts.MipLevels = 1
	}
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  uint32(opts.Extent.Width),
			Height: uint32(opts.Extent.Height),
			Depth:  uint32(opts.Extent.Depth),
		},
		MipLevels:     opts.MipLevels,
		ArrayLayers:   1,
		Format:        opts.Format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(opts.Usage),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}

	var image vk.Image
	if err := vk.Error(vk.CreateImage(dev, &createInfo, nil, &image)); err != nil {
		return Image{}, fmt.Errorf("vk.CreateImage(): %s", err.Error())
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev, image, &req)
	req.Deref()

	memory, err := ma.Malloc(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(dev, image, nil)
		return Image{}, err
	}

	if err := vk.Error(vk.BindImageMemory(dev, image, memory.Get(), 0)); err != nil {
		vk.DestroyImage(dev, image, nil)
		memory.Release()
		return Image{}, fmt.Errorf("vk.BindImageMemory(): %s", err.Error())
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   opts.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(opts.Aspect),
			LevelCount: opts.MipLevels,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(dev, &ivci, nil, &view)); err != nil {
		vk.DestroyImage(dev, image, nil)
		memory.Release()
		return Image{}, fmt.Errorf("vk.CreateImageView(): %s", err.Error())
	}

	return Image{
		device:    dev,
		image:     image,
		view:      view,
		extent:    opts.Extent,
		mipLevels: opts.MipLevels,
		memory:    memory,
	}, nil
}

// Image implements and abstracts vulkan image primitive.
type Image struct {
	device    vk.Device
	image     vk.Image
	view      vk.ImageView
	extent    gfx.Extent3D
	mipLevels uint32
	memory    Memory
}

// Mem returns the underlying memory of the Image.
func (i *Image) Mem() *Memory {
	return &i.memory
}

// Get returns the vulkan Image handle.
func (i *Image) Get() vk.Image {
	return i.image
}

// View returns the view spanning every mip level.
func (i *Image) View() vk.ImageView {
	return i.view
}

// Extent returns the size of the base level.
func (i *Image) Extent() gfx.Extent3D {
	return i.extent
}

// MipLevels returns the number of levels in the image.
func (i *Image) MipLevels() uint32 {
	return i.mipLevels
}

// Release destroys the view, image and the memory backing them.
func (i *Image) Release() {
	vk.DestroyImageView(i.device, i.view, nil)
	vk.DestroyImage(i.device, i.image, nil)
	i.memory.Release()
}
