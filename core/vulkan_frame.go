package core

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/devblok/roast/gfx"
	"github.com/devblok/roast/model"
	vk "github.com/devblok/vulkan"
)

// vulkanFrame records into the backend's command buffer for one acquired image.
type vulkanFrame struct {
	backend *VulkanBackend
	res     *chainResources
	index   uint32
	cmd     vk.CommandBuffer

	pass      Pass
	inPass    bool
	textures  bool
	recording bool
	ended     bool
	finished  bool
}

func (f *vulkanFrame) begin() error {
	dev := f.backend.ctx.Device
	if err := vk.Error(vk.ResetDescriptorPool(dev, f.res.descriptorPool, 0)); err != nil {
		return fmt.Errorf("vk.ResetDescriptorPool(): %s", err.Error())
	}
	if err := vk.Error(vk.ResetCommandBuffer(f.cmd, 0)); err != nil {
		return fmt.Errorf("vk.ResetCommandBuffer(): %s", err.Error())
	}

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(f.cmd, &cbbi)); err != nil {
		return fmt.Errorf("vk.BeginCommandBuffer()[%d]: %s", f.index, err.Error())
	}
	f.recording = true
	return nil
}

// Extent implements interface
func (f *vulkanFrame) Extent() (uint32, uint32) {
	return f.res.extent.Width, f.res.extent.Height
}

// BeginPass implements interface
func (f *vulkanFrame) BeginPass(pass Pass, camera model.CameraUniform) error {
	if f.finished || f.ended {
		return ErrFrameFinished
	}

	var pipeline vk.Pipeline
	switch pass {
	case ScenePass:
		if f.inPass {
			return errors.New("scene pass was already begun")
		}
		f.beginRenderPass()
		pipeline = f.res.scenePipeline
	case OverlayPass:
		if !f.inPass || f.pass == OverlayPass {
			return errors.New("overlay pass must follow the scene pass")
		}
		vk.CmdNextSubpass(f.cmd, vk.SubpassContentsInline)
		pipeline = f.res.overlayPipeline
	default:
		return fmt.Errorf("unknown pass %d", pass)
	}
	f.pass = pass
	f.textures = false

	vk.CmdBindPipeline(f.cmd, vk.PipelineBindPointGraphics, pipeline)
	vk.CmdSetViewport(f.cmd, 0, 1, []vk.Viewport{{
		Width:    float32(f.res.extent.Width),
		Height:   float32(f.res.extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(f.cmd, 0, 1, []vk.Rect2D{{
		Extent: f.res.extent,
	}})

	buffer := &f.backend.cameras[pass]
	if err := buffer.Mem().Write(camera.Bytes()); err != nil {
		return err
	}

	set, err := f.allocateSet(f.backend.cameraLayout)
	if err != nil {
		return err
	}
	vk.UpdateDescriptorSets(f.backend.ctx.Device, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DstArrayElement: 0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.Get(),
			Offset: 0,
			Range:  vk.DeviceSize(unsafe.Sizeof(camera)),
		}},
	}}, 0, nil)
	vk.CmdBindDescriptorSets(f.cmd, vk.PipelineBindPointGraphics, f.backend.pipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	return nil
}

func (f *vulkanFrame) beginRenderPass() {
	alpha := float32(1)
	if f.backend.configuration.Settings.Transparent {
		alpha = 0
	}
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor([]float32{
		0.005, 0.005, 0.005, alpha,
	})
	clearValues[1].SetDepthStencil(1, 0)

	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  f.res.renderPass,
		Framebuffer: f.res.framebuffers[f.index],
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: f.res.extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(f.cmd, &rpbi, vk.SubpassContentsInline)
	f.inPass = true
	f.pass = ScenePass
}

func (f *vulkanFrame) allocateSet(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     f.res.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	if err := vk.Error(vk.AllocateDescriptorSets(f.backend.ctx.Device, &dsai, &set)); err != nil {
		return nil, fmt.Errorf("vk.AllocateDescriptorSets(): %s", err.Error())
	}
	return set, nil
}

// BindTextures implements interface
func (f *vulkanFrame) BindTextures(t0, t1 gfx.Texture) error {
	if f.finished || f.ended {
		return ErrFrameFinished
	}
	if !f.inPass {
		return errors.New("textures bound outside of a pass")
	}

	var infos []vk.DescriptorImageInfo
	for _, t := range []gfx.Texture{t0, t1} {
		texture, ok := t.(*vulkanTexture)
		if !ok || texture.released {
			return ErrForeignResource
		}
		infos = append(infos, vk.DescriptorImageInfo{
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			ImageView:   texture.View(),
			Sampler:     f.backend.samplers[texture.sampling],
		})
	}

	set, err := f.allocateSet(f.backend.textureLayout)
	if err != nil {
		return err
	}
	wds := make([]vk.WriteDescriptorSet, 0, len(infos))
	for idx, info := range infos {
		wds = append(wds, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      uint32(idx),
			DstArrayElement: 0,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			PImageInfo:      []vk.DescriptorImageInfo{info},
		})
	}
	vk.UpdateDescriptorSets(f.backend.ctx.Device, uint32(len(wds)), wds, 0, nil)
	vk.CmdBindDescriptorSets(f.cmd, vk.PipelineBindPointGraphics, f.backend.pipelineLayout, 1, 1, []vk.DescriptorSet{set}, 0, nil)
	f.textures = true
	return nil
}

// Draw implements interface
func (f *vulkanFrame) Draw(g gfx.Geometry, pc model.PushConstants) error {
	if f.finished || f.ended {
		return ErrFrameFinished
	}
	if !f.inPass || !f.textures {
		return errors.New("draw needs a pass and bound textures")
	}
	geometry, ok := g.(*vulkanGeometry)
	if !ok || geometry.released {
		return ErrForeignResource
	}

	vk.CmdBindVertexBuffers(f.cmd, 0, 1, []vk.Buffer{geometry.vertices.Get()}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(f.cmd, geometry.indices.Get(), 0, vk.IndexTypeUint32)
	vk.CmdPushConstants(f.cmd, f.backend.pipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit),
		0, uint32(unsafe.Sizeof(pc)), unsafe.Pointer(&pc))
	vk.CmdDrawIndexed(f.cmd, geometry.indexCount, 1, 0, 0, 0)
	return nil
}

// End implements interface. A frame without any pass still clears the
// image so it can be presented.
func (f *vulkanFrame) End() error {
	if f.finished || f.ended {
		return ErrFrameFinished
	}
	if !f.inPass {
		f.beginRenderPass()
	}
	if f.pass == ScenePass {
		vk.CmdNextSubpass(f.cmd, vk.SubpassContentsInline)
	}
	vk.CmdEndRenderPass(f.cmd)
	f.inPass = false

	f.recording = false
	if err := vk.Error(vk.EndCommandBuffer(f.cmd)); err != nil {
		return fmt.Errorf("vk.EndCommandBuffer()[%d]: %s", f.index, err.Error())
	}
	f.ended = true
	return nil
}

// Submit implements interface. Presenting to an out of date swapchain is
// not an error, the swapchain is recreated for the next frame instead.
func (f *vulkanFrame) Submit() error {
	if f.finished {
		return ErrFrameFinished
	}
	if !f.ended {
		if err := f.End(); err != nil {
			return err
		}
	}
	b := f.backend
	f.finished = true

	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{b.imageAvailable},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{f.cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{b.renderFinished},
	}}

	// Reset only once work that signals the fence is certain to follow.
	vk.ResetFences(b.ctx.Device, 1, []vk.Fence{b.inFlight})
	if err := vk.Error(vk.QueueSubmit(b.ctx.Graphics, 1, submit, b.inFlight)); err != nil {
		b.resetSync()
		return errors.New("vk.QueueSubmit(): " + err.Error())
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{b.renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{f.res.swapchain},
		PImageIndices:      []uint32{f.index},
	}

	switch result := vk.QueuePresent(b.ctx.Present, &presentInfo); result {
	case vk.Success:
		b.swapchain.Presented(false)
	case vk.Suboptimal, vk.ErrorOutOfDate:
		b.swapchain.Presented(true)
	default:
		b.swapchain.RequestRecreate()
		return errors.New("vk.QueuePresent(): " + vk.Error(result).Error())
	}
	return nil
}

// Discard implements interface
func (f *vulkanFrame) Discard() {
	if f.finished {
		return
	}
	f.finished = true
	if f.recording {
		vk.EndCommandBuffer(f.cmd)
		f.recording = false
	}
	f.backend.resetSync()
}
