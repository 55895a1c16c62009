package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/devblok/roast/gfx"
	"github.com/devblok/roast/gfx/vkr"
	"github.com/devblok/roast/model"
	vk "github.com/devblok/vulkan"
)

const depthFormat = vk.FormatD16Unorm

// Subpasses of the render pass.
const (
	sceneSubpass uint32 = iota
	overlaySubpass
)

// vulkanChain implements swapchainChain for VulkanBackend.
type vulkanChain struct {
	backend *VulkanBackend
	res     *chainResources
}

// chainResources is everything that depends on the surface extent or format.
type chainResources struct {
	swapchain vk.Swapchain
	format    vk.SurfaceFormat
	extent    vk.Extent2D

	images []vk.Image
	views  []vk.ImageView
	depth  vkr.Image

	renderPass      vk.RenderPass
	scenePipeline   vk.Pipeline
	overlayPipeline vk.Pipeline
	framebuffers    []vk.Framebuffer

	// Stale pools would reference freed pipeline state, so they are
	// rebuilt with the chain.
	descriptorPool vk.DescriptorPool
}

func (c *vulkanChain) surfaceExtent() (uint32, uint32, error) {
	b := c.backend
	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(b.ctx.PhysicalDevice, b.instance.Surface(), &caps)); err != nil {
		return 0, 0, errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	w, h := b.window.Size()
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	extent := ChooseExtent(caps.CurrentExtent, caps.MinImageExtent, caps.MaxImageExtent, uint32(w), uint32(h))
	return extent.Width, extent.Height, nil
}

// rebuild builds a complete new set of resources and only then swaps it
// in. On failure the partial set is destroyed and the old one kept.
func (c *vulkanChain) rebuild(width, height uint32) error {
	dev := c.backend.ctx.Device
	c.backend.ctx.WaitIdle()

	res := &chainResources{
		extent: vk.Extent2D{Width: width, Height: height},
	}
	var old vk.Swapchain
	if c.res != nil {
		old = c.res.swapchain
	}

	if err := c.build(res, old); err != nil {
		res.destroy(dev)
		return err
	}
	if c.res != nil {
		c.res.destroy(dev)
	}
	c.res = res
	return nil
}

func (c *vulkanChain) build(res *chainResources, old vk.Swapchain) error {
	b := c.backend
	dev := b.ctx.Device
	surface := b.instance.Surface()

	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(b.ctx.PhysicalDevice, surface, &caps)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}
	caps.Deref()

	formats, err := surfaceFormats(b.ctx.PhysicalDevice, surface)
	if err != nil {
		return err
	}
	if res.format, err = ChooseSurfaceFormat(formats); err != nil {
		return err
	}
	modes, err := presentModes(b.ctx.PhysicalDevice, surface)
	if err != nil {
		return err
	}

	// Everything that does not need the swapchain itself comes first so a
	// failure leaves the old swapchain unretired.
	if err := c.createRenderPass(res); err != nil {
		return err
	}
	if err := c.createPipelines(res); err != nil {
		return err
	}
	if res.depth, err = vkr.NewImage(dev, vkr.ImageOptions{
		Extent: gfx.Extent3D{Width: int(res.extent.Width), Height: int(res.extent.Height), Depth: 1},
		Format: depthFormat,
		Usage:  vk.ImageUsageDepthStencilAttachmentBit,
		Aspect: vk.ImageAspectDepthBit,
	}, b.ctx.Allocator); err != nil {
		return err
	}
	if err := c.createDescriptorPool(res); err != nil {
		return err
	}

	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    ChooseImageCount(caps.MinImageCount, caps.MaxImageCount, b.configuration.SwapchainSize),
		ImageFormat:      res.format.Format,
		ImageColorSpace:  res.format.ColorSpace,
		ImageExtent:      res.extent,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   ChooseCompositeAlpha(caps.SupportedCompositeAlpha, b.configuration.Settings.Transparent),
		PresentMode:      ChoosePresentMode(modes),
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     old,
	}
	if b.ctx.Families.Graphics != b.ctx.Families.Present {
		scci.ImageSharingMode = vk.SharingModeConcurrent
		scci.QueueFamilyIndexCount = 2
		scci.PQueueFamilyIndices = []uint32{b.ctx.Families.Graphics, b.ctx.Families.Present}
	}
	if err := vk.Error(vk.CreateSwapchain(dev, &scci, nil, &res.swapchain)); err != nil {
		return errors.New("vk.CreateSwapchain(): " + err.Error())
	}

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(dev, res.swapchain, &numImages, nil)); err != nil {
		return errors.New("vk.GetSwapchainImages(num): " + err.Error())
	}
	res.images = make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(dev, res.swapchain, &numImages, res.images)); err != nil {
		return errors.New("vk.GetSwapchainImages(images): " + err.Error())
	}

	for idx, img := range res.images {
		ivci := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   res.format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var view vk.ImageView
		if err := vk.Error(vk.CreateImageView(dev, &ivci, nil, &view)); err != nil {
			return fmt.Errorf("vk.CreateImageView()[%d]: %s", idx, err.Error())
		}
		res.views = append(res.views, view)
	}

	for idx, view := range res.views {
		attachments := []vk.ImageView{
			view,
			res.depth.View(),
		}
		fci := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      res.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           res.extent.Width,
			Height:          res.extent.Height,
			Layers:          1,
		}
		var framebuffer vk.Framebuffer
		if err := vk.Error(vk.CreateFramebuffer(dev, &fci, nil, &framebuffer)); err != nil {
			return fmt.Errorf("vk.CreateFramebuffer()[%d]: %s", idx, err.Error())
		}
		res.framebuffers = append(res.framebuffers, framebuffer)
	}
	return nil
}

func surfaceFormats(pd vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, error) {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, nil)); err != nil {
		return nil, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, formats)); err != nil {
		return nil, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	for idx := range formats {
		formats[idx].Deref()
	}
	return formats, nil
}

func presentModes(pd vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, error) {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, nil)); err != nil {
		return nil, errors.New("vk.GetPhysicalDeviceSurfacePresentModes(): " + err.Error())
	}
	modes := make([]vk.PresentMode, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, modes)); err != nil {
		return nil, errors.New("vk.GetPhysicalDeviceSurfacePresentModes(): " + err.Error())
	}
	return modes, nil
}

// createRenderPass makes the scene subpass with colour and depth and the
// overlay subpass drawing over the same colour attachment without depth.
func (c *vulkanChain) createRenderPass(res *chainResources) error {
	attachments := []vk.AttachmentDescription{{
		Format:         res.format.Format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}, {
		Format:         depthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}}

	colorRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpasses := []vk.SubpassDescription{{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRef)),
		PColorAttachments:       colorRef,
		PDepthStencilAttachment: &depthRef,
	}, {
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRef)),
		PColorAttachments:    colorRef,
	}}

	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    sceneSubpass,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}, {
		SrcSubpass:      sceneSubpass,
		DstSubpass:      overlaySubpass,
		SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
		DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
	}}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	if err := vk.Error(vk.CreateRenderPass(c.backend.ctx.Device, &rpci, nil, &res.renderPass)); err != nil {
		return errors.New("vk.CreateRenderPass(): " + err.Error())
	}
	return nil
}

func (c *vulkanChain) createPipelines(res *chainResources) error {
	b := c.backend

	var stages []vk.PipelineShaderStageCreateInfo
	for _, shader := range []*VulkanShader{b.vertexShader, b.fragmentShader} {
		stage, err := shader.stageInfo()
		if err != nil {
			return err
		}
		stages = append(stages, stage)
	}

	vertexAttributeDescriptions := model.VertexAttributeDescriptions()
	vertexBindingDescriptions := model.VertexBindingDescriptions()

	pipeline := func(subpass uint32, depth bool, cull vk.CullModeFlagBits) vk.GraphicsPipelineCreateInfo {
		depthTest := vk.Bool32(vk.False)
		if depth {
			depthTest = vk.True
		}
		return vk.GraphicsPipelineCreateInfo{
			SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
			StageCount: uint32(len(stages)),
			PStages:    stages,
			PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
				SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
				VertexAttributeDescriptionCount: uint32(len(vertexAttributeDescriptions)),
				PVertexAttributeDescriptions:    vertexAttributeDescriptions,
				VertexBindingDescriptionCount:   uint32(len(vertexBindingDescriptions)),
				PVertexBindingDescriptions:      vertexBindingDescriptions,
			},
			PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
				SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
				Topology: vk.PrimitiveTopologyTriangleList,
			},
			PViewportState: &vk.PipelineViewportStateCreateInfo{
				SType:         vk.StructureTypePipelineViewportStateCreateInfo,
				ViewportCount: 1,
				ScissorCount:  1,
			},
			PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
				SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
				PolygonMode: vk.PolygonModeFill,
				CullMode:    vk.CullModeFlags(cull),
				FrontFace:   vk.FrontFaceCounterClockwise,
				LineWidth:   1.0,
			},
			PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
				SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
				DepthTestEnable:  depthTest,
				DepthWriteEnable: depthTest,
				DepthCompareOp:   vk.CompareOpLess,
				Back: vk.StencilOpState{
					FailOp:    vk.StencilOpKeep,
					PassOp:    vk.StencilOpKeep,
					CompareOp: vk.CompareOpAlways,
				},
				Front: vk.StencilOpState{
					FailOp:    vk.StencilOpKeep,
					PassOp:    vk.StencilOpKeep,
					CompareOp: vk.CompareOpAlways,
				},
			},
			PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
				SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
				RasterizationSamples: vk.SampleCount1Bit,
			},
			PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
				SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
				AttachmentCount: 1,
				PAttachments: []vk.PipelineColorBlendAttachmentState{{
					ColorWriteMask:      0xF,
					BlendEnable:         vk.True,
					SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
					DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
					ColorBlendOp:        vk.BlendOpAdd,
					SrcAlphaBlendFactor: vk.BlendFactorOne,
					DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
					AlphaBlendOp:        vk.BlendOpAdd,
				}},
			},
			PDynamicState: &vk.PipelineDynamicStateCreateInfo{
				SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
				DynamicStateCount: 2,
				PDynamicStates: []vk.DynamicState{
					vk.DynamicStateScissor,
					vk.DynamicStateViewport,
				},
			},
			Layout:     b.pipelineLayout,
			RenderPass: res.renderPass,
			Subpass:    subpass,
		}
	}

	gpci := []vk.GraphicsPipelineCreateInfo{
		pipeline(sceneSubpass, true, vk.CullModeBackBit),
		pipeline(overlaySubpass, false, vk.CullModeNone),
	}
	pipelines := make([]vk.Pipeline, len(gpci))
	if err := vk.Error(vk.CreateGraphicsPipelines(b.ctx.Device, b.pipelineCache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		return errors.New("vk.CreateGraphicsPipelines(): " + err.Error())
	}
	res.scenePipeline, res.overlayPipeline = pipelines[0], pipelines[1]
	return nil
}

func (c *vulkanChain) createDescriptorPool(res *chainResources) error {
	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 2,
	}, {
		Type:            vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 2 * descriptorSetsPerFrame,
	}}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       descriptorSetsPerFrame + 2,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	if err := vk.Error(vk.CreateDescriptorPool(c.backend.ctx.Device, &dpci, nil, &res.descriptorPool)); err != nil {
		return errors.New("vk.CreateDescriptorPool(): " + err.Error())
	}
	return nil
}

// acquire waits for the previous frame before taking the next image.
func (c *vulkanChain) acquire() (uint32, bool, bool, error) {
	b := c.backend
	if err := vk.Error(vk.WaitForFences(b.ctx.Device, 1, []vk.Fence{b.inFlight}, vk.True, math.MaxUint64)); err != nil {
		return 0, false, false, errors.New("vk.WaitForFences(): " + err.Error())
	}

	var idx uint32
	result := vk.AcquireNextImage(b.ctx.Device, c.res.swapchain, math.MaxUint64, b.imageAvailable, nil, &idx)
	switch result {
	case vk.Success:
		return idx, false, false, nil
	case vk.Suboptimal:
		return idx, false, true, nil
	case vk.ErrorOutOfDate:
		return 0, true, false, nil
	}
	return 0, false, false, errors.New("vk.AcquireNextImage(): " + vk.Error(result).Error())
}

// destroy tolerates a partially built set.
func (r *chainResources) destroy(dev vk.Device) {
	for _, framebuffer := range r.framebuffers {
		vk.DestroyFramebuffer(dev, framebuffer, nil)
	}
	for _, view := range r.views {
		vk.DestroyImageView(dev, view, nil)
	}
	if r.swapchain != nil {
		vk.DestroySwapchain(dev, r.swapchain, nil)
	}
	vk.DestroyDescriptorPool(dev, r.descriptorPool, nil)
	if r.depth.Get() != nil {
		r.depth.Release()
	}
	vk.DestroyPipeline(dev, r.overlayPipeline, nil)
	vk.DestroyPipeline(dev, r.scenePipeline, nil)
	vk.DestroyRenderPass(dev, r.renderPass, nil)

	r.framebuffers, r.views, r.images = nil, nil, nil
	r.swapchain = nil
}
