// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"image"
	"math"
	"unsafe"

	"github.com/devblok/roast/gfx"
	"github.com/devblok/roast/gfx/vkr"
	"github.com/devblok/roast/model"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// Descriptor sets a single frame may allocate.
const descriptorSetsPerFrame = 4096

// NewVulkanBackend builds a backend on an opened device. On success the
// backend owns ctx and instance and destroys them with itself.
// The swapchain is built on the first BeginFrame.
func NewVulkanBackend(ctx *VulkanContext, instance Instance, window Window, cfg RendererConfiguration, source ShaderSource) (*VulkanBackend, error) {
	b := &VulkanBackend{
		ctx:           ctx,
		instance:      instance,
		window:        window,
		configuration: cfg,
	}

	if err := b.init(source); err != nil {
		b.destroyObjects()
		return nil, err
	}

	b.chain = &vulkanChain{backend: b}
	b.swapchain = newSwapchain(b.chain)
	return b, nil
}

// VulkanBackend implements Backend on a Vulkan device.
type VulkanBackend struct {
	ctx           *VulkanContext
	instance      Instance
	window        Window
	configuration RendererConfiguration

	vertexShader   *VulkanShader
	fragmentShader *VulkanShader

	commandPool   vk.CommandPool
	transferPool  vk.CommandPool
	commandBuffer vk.CommandBuffer

	// indexed by model.Sampling
	samplers [2]vk.Sampler

	cameraLayout   vk.DescriptorSetLayout
	textureLayout  vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	pipelineCache  vk.PipelineCache

	// indexed by Pass
	cameras [2]vkr.Buffer

	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore
	inFlight       vk.Fence

	chain     *vulkanChain
	swapchain *Swapchain

	resources []gfx.Releasable
}

func (b *VulkanBackend) init(source ShaderSource) error {
	if err := b.loadShaders(source); err != nil {
		return err
	}

	var err error
	if b.commandPool, err = b.createCommandPool(b.ctx.Families.Graphics); err != nil {
		return err
	}
	if b.transferPool, err = b.createCommandPool(b.ctx.Families.Transfer); err != nil {
		return err
	}

	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(b.ctx.Device, &cbai, commandBuffers)); err != nil {
		return errors.New("vk.AllocateCommandBuffers(): " + err.Error())
	}
	b.commandBuffer = commandBuffers[0]

	if err := b.createSamplers(); err != nil {
		return err
	}
	if err := b.createPipelineLayout(); err != nil {
		return err
	}

	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if err := vk.Error(vk.CreatePipelineCache(b.ctx.Device, &pcci, nil, &b.pipelineCache)); err != nil {
		return errors.New("vk.CreatePipelineCache(): " + err.Error())
	}

	for idx := range b.cameras {
		camera, err := vkr.NewBuffer(b.ctx.Device, uint(unsafe.Sizeof(model.CameraUniform{})), vk.BufferUsageUniformBufferBit,
			vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit, b.ctx.Allocator)
		if err != nil {
			return err
		}
		b.cameras[idx] = camera
	}

	return b.createSynchronization()
}

func (b *VulkanBackend) loadShaders(source ShaderSource) error {
	files, err := source.Shaders()
	if err != nil {
		return fmt.Errorf("loading shaders: %s", err.Error())
	}
	vert, frag, err := findProgram(files, meshShaderName)
	if err != nil {
		return err
	}
	if b.vertexShader, err = NewVulkanShader(vert, b.ctx.Device); err != nil {
		return err
	}
	if b.fragmentShader, err = NewVulkanShader(frag, b.ctx.Device); err != nil {
		return err
	}
	return nil
}

func (b *VulkanBackend) createCommandPool(family uint32) (vk.CommandPool, error) {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}

	var commandPool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(b.ctx.Device, &cpci, nil, &commandPool)); err != nil {
		return nil, errors.New("vk.CreateCommandPool(): " + err.Error())
	}
	return commandPool, nil
}

func (b *VulkanBackend) createSamplers() error {
	smooth := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           16,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MinLod:                  0,
		MaxLod:                  vk.LodClampNone,
	}

	pixel := smooth
	pixel.MagFilter = vk.FilterNearest
	pixel.MinFilter = vk.FilterNearest
	pixel.AnisotropyEnable = vk.False
	pixel.MaxAnisotropy = 1
	pixel.MipmapMode = vk.SamplerMipmapModeNearest

	for sampling, sci := range map[model.Sampling]vk.SamplerCreateInfo{
		model.SamplingSmooth: smooth,
		model.SamplingPixel:  pixel,
	} {
		sci := sci
		var sampler vk.Sampler
		if err := vk.Error(vk.CreateSampler(b.ctx.Device, &sci, nil, &sampler)); err != nil {
			return fmt.Errorf("vk.CreateSampler(%s): %s", sampling, err.Error())
		}
		b.samplers[sampling] = sampler
	}
	return nil
}

// createPipelineLayout lays out set 0 as the camera, set 1 as the texture
// pair and a push constant range for model.PushConstants.
func (b *VulkanBackend) createPipelineLayout() error {
	cameraBindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}}
	textureBindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}, {
		Binding:         1,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}}

	for _, layout := range []struct {
		bindings []vk.DescriptorSetLayoutBinding
		target   *vk.DescriptorSetLayout
	}{
		{cameraBindings, &b.cameraLayout},
		{textureBindings, &b.textureLayout},
	} {
		dslci := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(layout.bindings)),
			PBindings:    layout.bindings,
		}
		if err := vk.Error(vk.CreateDescriptorSetLayout(b.ctx.Device, &dslci, nil, layout.target)); err != nil {
			return errors.New("vk.CreateDescriptorSetLayout(): " + err.Error())
		}
	}

	pcr := []vk.PushConstantRange{{
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(model.PushConstants{})),
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
	}}

	setLayouts := []vk.DescriptorSetLayout{b.cameraLayout, b.textureLayout}
	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pcr)),
		PPushConstantRanges:    pcr,
	}
	if err := vk.Error(vk.CreatePipelineLayout(b.ctx.Device, &plci, nil, &b.pipelineLayout)); err != nil {
		return errors.New("vk.CreatePipelineLayout(): " + err.Error())
	}
	return nil
}

func (b *VulkanBackend) createSynchronization() error {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}

	if err := vk.Error(vk.CreateSemaphore(b.ctx.Device, &sci, nil, &b.imageAvailable)); err != nil {
		return errors.New("vk.CreateSemaphore(): " + err.Error())
	}
	if err := vk.Error(vk.CreateSemaphore(b.ctx.Device, &sci, nil, &b.renderFinished)); err != nil {
		return errors.New("vk.CreateSemaphore(): " + err.Error())
	}
	if err := vk.Error(vk.CreateFence(b.ctx.Device, &fci, nil, &b.inFlight)); err != nil {
		return errors.New("vk.CreateFence(): " + err.Error())
	}
	return nil
}

func (b *VulkanBackend) destroySynchronization() {
	vk.DestroySemaphore(b.ctx.Device, b.imageAvailable, nil)
	vk.DestroySemaphore(b.ctx.Device, b.renderFinished, nil)
	vk.DestroyFence(b.ctx.Device, b.inFlight, nil)
	b.imageAvailable, b.renderFinished, b.inFlight = nil, nil, nil
}

// resetSync brings the frame synchronization back to a known state after a
// frame was abandoned between acquisition and presentation.
func (b *VulkanBackend) resetSync() {
	b.ctx.WaitIdle()
	b.destroySynchronization()
	if err := b.createSynchronization(); err != nil {
		log.WithError(err).Error("recreating frame synchronization failed")
	}
	b.swapchain.RequestRecreate()
}

// oneTimeSubmit records fn into a fresh command buffer from pool and
// blocks on a fence until queue executed it.
func (b *VulkanBackend) oneTimeSubmit(pool vk.CommandPool, queue vk.Queue, fn func(cmd vk.CommandBuffer)) error {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        pool,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(b.ctx.Device, &cbai, commandBuffers)); err != nil {
		return fmt.Errorf("vk.AllocateCommandBuffers(): %s", err.Error())
	}
	cmd := commandBuffers[0]
	defer vk.FreeCommandBuffers(b.ctx.Device, pool, 1, commandBuffers)

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(cmd, &cbbi)); err != nil {
		return fmt.Errorf("vk.BeginCommandBuffer(): %s", err.Error())
	}

	fn(cmd)

	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return fmt.Errorf("vk.EndCommandBuffer(): %s", err.Error())
	}

	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(b.ctx.Device, &fci, nil, &fence)); err != nil {
		return fmt.Errorf("vk.CreateFence(): %s", err.Error())
	}
	defer vk.DestroyFence(b.ctx.Device, fence, nil)

	si := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    commandBuffers,
	}
	if err := vk.Error(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{si}, fence)); err != nil {
		return fmt.Errorf("vk.QueueSubmit(): %s", err.Error())
	}
	if err := vk.Error(vk.WaitForFences(b.ctx.Device, 1, []vk.Fence{fence}, vk.True, math.MaxUint64)); err != nil {
		return fmt.Errorf("vk.WaitForFences(): %s", err.Error())
	}
	return nil
}

// upload runs record on the transfer queue. When the transfer family is
// distinct, release hands ownership over to the graphics family and
// acquire takes it on a graphics queue submission.
func (b *VulkanBackend) upload(record func(cmd vk.CommandBuffer), release, acquire func(cmd vk.CommandBuffer)) error {
	if !b.ctx.Families.DistinctTransfer() {
		return b.oneTimeSubmit(b.commandPool, b.ctx.Graphics, record)
	}
	if err := b.oneTimeSubmit(b.transferPool, b.ctx.Transfer, func(cmd vk.CommandBuffer) {
		record(cmd)
		release(cmd)
	}); err != nil {
		return err
	}
	return b.oneTimeSubmit(b.commandPool, b.ctx.Graphics, acquire)
}

// ownership returns the queue family indices for a barrier, ignored
// when uploads share the graphics family.
func (b *VulkanBackend) ownership() (src, dst uint32) {
	if !b.ctx.Families.DistinctTransfer() {
		return vk.QueueFamilyIgnored, vk.QueueFamilyIgnored
	}
	return b.ctx.Families.Transfer, b.ctx.Families.Graphics
}

// CreateTexture implements interface
func (b *VulkanBackend) CreateTexture(img *image.RGBA, sampling model.Sampling, mipmapped bool) (gfx.Texture, error) {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	if width == 0 || height == 0 {
		return nil, errors.New("texture image has no pixels")
	}

	levels := []*image.RGBA{img}
	if mipmapped {
		levels = MipChain(img, sampling)
	}

	var (
		data    []byte
		regions = make([]vk.BufferImageCopy, 0, len(levels))
	)
	for idx, level := range levels {
		regions = append(regions, vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(len(data)),
			ImageExtent: vk.Extent3D{
				Width:  uint32(level.Bounds().Dx()),
				Height: uint32(level.Bounds().Dy()),
				Depth:  1,
			},
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:       uint32(idx),
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		data = append(data, GetPixels(level)...)
	}

	staging, err := vkr.NewStagingBuffer(b.ctx.Device, data, b.ctx.Allocator)
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	texture, err := vkr.NewImage(b.ctx.Device, vkr.ImageOptions{
		Extent:    gfx.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels: uint32(len(levels)),
		Format:    vk.FormatR8g8b8a8Unorm,
		Usage:     vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit,
		Aspect:    vk.ImageAspectColorBit,
	}, b.ctx.Allocator)
	if err != nil {
		return nil, err
	}

	subresource := vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     uint32(len(levels)),
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	srcFamily, dstFamily := b.ownership()

	record := func(cmd vk.CommandBuffer) {
		toTransfer := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           vk.ImageLayoutTransferDstOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			Image:               texture.Get(),
			SubresourceRange:    subresource,
		}
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toTransfer})

		vk.CmdCopyBufferToImage(cmd, staging.Get(), texture.Get(), vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)

		if b.ctx.Families.DistinctTransfer() {
			return
		}
		toShader := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayoutTransferDstOptimal,
			NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
			Image:               texture.Get(),
			SubresourceRange:    subresource,
		}
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toShader})
	}

	release := func(cmd vk.CommandBuffer) {
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayoutTransferDstOptimal,
			NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
			SrcQueueFamilyIndex: srcFamily,
			DstQueueFamilyIndex: dstFamily,
			SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
			Image:               texture.Get(),
			SubresourceRange:    subresource,
		}
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	}

	acquire := func(cmd vk.CommandBuffer) {
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayoutTransferDstOptimal,
			NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
			SrcQueueFamilyIndex: srcFamily,
			DstQueueFamilyIndex: dstFamily,
			DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
			Image:               texture.Get(),
			SubresourceRange:    subresource,
		}
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	}

	if err := b.upload(record, release, acquire); err != nil {
		texture.Release()
		return nil, err
	}

	t := &vulkanTexture{Image: texture, sampling: sampling}
	b.resources = append(b.resources, t)
	return t, nil
}

// CreateGeometry implements interface
func (b *VulkanBackend) CreateGeometry(vertices []model.Vertex, indices []uint32) (gfx.Geometry, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, errors.New("geometry needs at least one vertex and one index")
	}

	vertexData, indexData := model.VertexBytes(vertices), model.IndexBytes(indices)

	vertexBuffer, err := b.deviceBuffer(vertexData, vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit)
	if err != nil {
		return nil, err
	}
	indexBuffer, err := b.deviceBuffer(indexData, vk.BufferUsageIndexBufferBit|vk.BufferUsageTransferDstBit)
	if err != nil {
		vertexBuffer.Release()
		return nil, err
	}

	g := &vulkanGeometry{
		vertices:    vertexBuffer,
		indices:     indexBuffer,
		vertexCount: uint32(len(vertices)),
		indexCount:  uint32(len(indices)),
	}

	if err := b.fillBuffers(map[*vkr.Buffer][]byte{
		&g.vertices: vertexData,
		&g.indices:  indexData,
	}, vk.AccessVertexAttributeReadBit|vk.AccessIndexReadBit); err != nil {
		g.Release()
		return nil, err
	}

	b.resources = append(b.resources, g)
	return g, nil
}

func (b *VulkanBackend) deviceBuffer(data []byte, usage vk.BufferUsageFlagBits) (vkr.Buffer, error) {
	return vkr.NewBuffer(b.ctx.Device, uint(len(data)), usage, vk.MemoryPropertyDeviceLocalBit, b.ctx.Allocator)
}

// fillBuffers copies data into device local buffers through staging buffers.
func (b *VulkanBackend) fillBuffers(contents map[*vkr.Buffer][]byte, access vk.AccessFlagBits) error {
	type copyJob struct {
		staging vkr.Buffer
		dst     *vkr.Buffer
	}
	var jobs []copyJob
	defer func() {
		for _, job := range jobs {
			job.staging.Release()
		}
	}()
	for dst, data := range contents {
		staging, err := vkr.NewStagingBuffer(b.ctx.Device, data, b.ctx.Allocator)
		if err != nil {
			return err
		}
		jobs = append(jobs, copyJob{staging: staging, dst: dst})
	}

	srcFamily, dstFamily := b.ownership()
	barriers := func(srcAccess, dstAccess vk.AccessFlagBits) []vk.BufferMemoryBarrier {
		out := make([]vk.BufferMemoryBarrier, 0, len(jobs))
		for _, job := range jobs {
			out = append(out, vk.BufferMemoryBarrier{
				SType:               vk.StructureTypeBufferMemoryBarrier,
				SrcAccessMask:       vk.AccessFlags(srcAccess),
				DstAccessMask:       vk.AccessFlags(dstAccess),
				SrcQueueFamilyIndex: srcFamily,
				DstQueueFamilyIndex: dstFamily,
				Buffer:              job.dst.Get(),
				Size:                vk.DeviceSize(job.dst.Size()),
			})
		}
		return out
	}

	record := func(cmd vk.CommandBuffer) {
		for _, job := range jobs {
			vk.CmdCopyBuffer(cmd, job.staging.Get(), job.dst.Get(), 1, []vk.BufferCopy{{
				Size: vk.DeviceSize(job.staging.Size()),
			}})
		}
		if b.ctx.Families.DistinctTransfer() {
			return
		}
		visible := barriers(vk.AccessTransferWriteBit, access)
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			vk.PipelineStageFlags(vk.PipelineStageVertexInputBit),
			0, 0, nil, uint32(len(visible)), visible, 0, nil)
	}
	release := func(cmd vk.CommandBuffer) {
		released := barriers(vk.AccessTransferWriteBit, 0)
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			0, 0, nil, uint32(len(released)), released, 0, nil)
	}
	acquire := func(cmd vk.CommandBuffer) {
		acquired := barriers(0, access)
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageVertexInputBit),
			0, 0, nil, uint32(len(acquired)), acquired, 0, nil)
	}
	return b.upload(record, release, acquire)
}

// BeginFrame implements interface
func (b *VulkanBackend) BeginFrame() (Frame, bool, error) {
	idx, ok, err := b.swapchain.Acquire()
	if err != nil || !ok {
		return nil, false, err
	}

	f := &vulkanFrame{
		backend: b,
		res:     b.chain.res,
		index:   idx,
		cmd:     b.commandBuffer,
	}
	if err := f.begin(); err != nil {
		f.Discard()
		return nil, false, err
	}
	return f, true, nil
}

// SurfaceSize implements interface
func (b *VulkanBackend) SurfaceSize() (float64, float64) {
	if b.chain.res != nil && b.swapchain.State() == SwapchainValid {
		w, h := b.swapchain.Extent()
		return float64(w), float64(h)
	}
	w, h, err := b.chain.surfaceExtent()
	if err != nil {
		return 0, 0
	}
	return float64(w), float64(h)
}

// RequestRecreate implements interface
func (b *VulkanBackend) RequestRecreate() {
	b.swapchain.RequestRecreate()
}

// SetRecreateHook implements interface
func (b *VulkanBackend) SetRecreateHook(fn func(width, height uint32)) {
	b.swapchain.SetRecreateHook(fn)
}

// Device returns the context the backend renders with.
func (b *VulkanBackend) Device() *VulkanContext {
	return b.ctx
}

// Destroy implements interface
func (b *VulkanBackend) Destroy() {
	b.ctx.WaitIdle()
	for idx := len(b.resources) - 1; idx >= 0; idx-- {
		b.resources[idx].Release()
	}
	b.resources = nil

	if b.chain != nil && b.chain.res != nil {
		b.chain.res.destroy(b.ctx.Device)
		b.chain.res = nil
	}
	b.destroyObjects()
	b.ctx.Destroy()
	b.instance.Destroy()
}

// destroyObjects releases everything init created. Destroying a null
// handle is a no-op so a partial init is fine.
func (b *VulkanBackend) destroyObjects() {
	dev := b.ctx.Device

	b.destroySynchronization()
	for idx := range b.cameras {
		if b.cameras[idx].Get() != nil {
			b.cameras[idx].Release()
		}
	}
	vk.DestroyPipelineCache(dev, b.pipelineCache, nil)
	vk.DestroyPipelineLayout(dev, b.pipelineLayout, nil)
	vk.DestroyDescriptorSetLayout(dev, b.textureLayout, nil)
	vk.DestroyDescriptorSetLayout(dev, b.cameraLayout, nil)
	for _, sampler := range b.samplers {
		vk.DestroySampler(dev, sampler, nil)
	}
	vk.DestroyCommandPool(dev, b.transferPool, nil)
	vk.DestroyCommandPool(dev, b.commandPool, nil)
	if b.fragmentShader != nil {
		b.fragmentShader.Destroy()
	}
	if b.vertexShader != nil {
		b.vertexShader.Destroy()
	}
}

// vulkanTexture is an immutable sampled image.
type vulkanTexture struct {
	vkr.Image
	sampling model.Sampling
	released bool
}

// Release implements interface, subsequent calls do nothing
func (t *vulkanTexture) Release() {
	if t.released {
		return
	}
	t.released = true
	t.Image.Release()
}

// vulkanGeometry holds device local vertex and index buffers.
type vulkanGeometry struct {
	vertices    vkr.Buffer
	indices     vkr.Buffer
	vertexCount uint32
	indexCount  uint32
	released    bool
}

// VertexCount implements interface
func (g *vulkanGeometry) VertexCount() uint32 {
	return g.vertexCount
}

// IndexCount implements interface
func (g *vulkanGeometry) IndexCount() uint32 {
	return g.indexCount
}

// Release implements interface, subsequent calls do nothing
func (g *vulkanGeometry) Release() {
	if g.released {
		return
	}
	g.released = true
	g.vertices.Release()
	g.indices.Release()
}
