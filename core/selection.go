package core

import (
	"fmt"
	"math"
	"strings"

	vk "github.com/devblok/vulkan"
)

// RequiredDeviceExtensions must all be present on the chosen device.
var RequiredDeviceExtensions = []string{
	vk.KhrSwapchainExtensionName,
	"VK_KHR_storage_buffer_storage_class",
	"VK_KHR_8bit_storage",
	"VK_KHR_16bit_storage",
	"VK_KHR_shader_float16_int8",
}

// DeviceFeatures is the subset of physical device features the renderer cares about.
type DeviceFeatures struct {
	SamplerAnisotropy bool
	ShaderInt16       bool
	ShaderInt64       bool
}

// DeviceIsSuitable checks features and extensions against what the renderer
// needs. If not suitable the string contains the reason.
func DeviceIsSuitable(features DeviceFeatures, extensions []string) (bool, string) {
	var missing []string
	if !features.SamplerAnisotropy {
		missing = append(missing, "samplerAnisotropy")
	}
	if !features.ShaderInt16 {
		missing = append(missing, "shaderInt16")
	}
	if !features.ShaderInt64 {
		missing = append(missing, "shaderInt64")
	}
	if len(missing) > 0 {
		return false, "missing features: " + strings.Join(missing, ", ")
	}

	available := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		available[ext] = struct{}{}
	}
	for _, ext := range RequiredDeviceExtensions {
		if _, ok := available[ext]; !ok {
			missing = append(missing, ext)
		}
	}
	if len(missing) > 0 {
		return false, "missing extensions: " + strings.Join(missing, ", ")
	}
	return true, ""
}

// QueueFamily is what a queue family can do.
type QueueFamily struct {
	Graphics bool
	Compute  bool
	Transfer bool
	Present  bool
}

// QueueFamilies are the family indices the logical device is opened with.
type QueueFamilies struct {
	Graphics uint32
	Present  uint32
	Transfer uint32
}

// DistinctTransfer reports whether uploads go through their own family.
func (q QueueFamilies) DistinctTransfer() bool {
	return q.Transfer != q.Graphics && q.Transfer != q.Present
}

// Unique lists every family once, graphics first.
func (q QueueFamilies) Unique() []uint32 {
	unique := []uint32{q.Graphics}
	for _, idx := range []uint32{q.Present, q.Transfer} {
		seen := false
		for _, u := range unique {
			if u == idx {
				seen = true
				break
			}
		}
		if !seen {
			unique = append(unique, idx)
		}
	}
	return unique
}

// SelectQueueFamilies picks graphics, present and transfer families.
// Graphics is the first graphics capable family, present prefers the graphics
// family and otherwise takes the first presenting one. Transfer takes the first
// transfer capable family distinct from both, falling back to graphics.
// Graphics and compute families imply transfer support.
func SelectQueueFamilies(families []QueueFamily) (QueueFamilies, bool) {
	var (
		sel                         QueueFamilies
		graphicsFound, presentFound bool
	)
	for i, f := range families {
		if f.Graphics {
			sel.Graphics = uint32(i)
			graphicsFound = true
			break
		}
	}
	if !graphicsFound {
		return sel, false
	}

	if families[sel.Graphics].Present {
		sel.Present = sel.Graphics
		presentFound = true
	} else {
		for i, f := range families {
			if f.Present {
				sel.Present = uint32(i)
				presentFound = true
				break
			}
		}
	}
	if !presentFound {
		return sel, false
	}

	sel.Transfer = sel.Graphics
	for i, f := range families {
		idx := uint32(i)
		if idx == sel.Graphics || idx == sel.Present {
			continue
		}
		if f.Transfer || f.Graphics || f.Compute {
			sel.Transfer = idx
			break
		}
	}
	return sel, true
}

// ChooseSurfaceFormat prefers B8G8R8A8Unorm in the sRGB non-linear colour
// space, otherwise takes the first one offered.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, fmt.Errorf("surface offers no formats")
	}
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f, nil
		}
	}
	// Undefined means the surface takes anything.
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: formats[0].ColorSpace}, nil
	}
	return formats[0], nil
}

// ChoosePresentMode prefers Mailbox, then Immediate, then Fifo which is always there.
func ChoosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	best := vk.PresentModeFifo
	for _, m := range modes {
		switch m {
		case vk.PresentModeMailbox:
			return m
		case vk.PresentModeImmediate:
			best = m
		}
	}
	return best
}

// ChooseImageCount asks for requested images, or min+1 when requested is 0,
// clamped to what the surface allows. A max of 0 is unbounded.
func ChooseImageCount(min, max, requested uint32) uint32 {
	count := requested
	if count == 0 {
		count = min + 1
	}
	if count < min {
		count = min
	}
	if max > 0 && count > max {
		count = max
	}
	return count
}

// ChooseCompositeAlpha picks how the presentation engine blends the window.
// Transparent surfaces try pre and post multiplied alpha first.
func ChooseCompositeAlpha(supported vk.CompositeAlphaFlags, transparent bool) vk.CompositeAlphaFlagBits {
	order := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	if transparent {
		order = []vk.CompositeAlphaFlagBits{
			vk.CompositeAlphaPreMultipliedBit,
			vk.CompositeAlphaPostMultipliedBit,
			vk.CompositeAlphaInheritBit,
			vk.CompositeAlphaOpaqueBit,
		}
	}
	for _, flag := range order {
		if supported&vk.CompositeAlphaFlags(flag) != 0 {
			return flag
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

// ChooseExtent uses the surface's current extent, or the window size clamped
// to the allowed range when the surface leaves it to the swapchain.
func ChooseExtent(current, min, max vk.Extent2D, windowWidth, windowHeight uint32) vk.Extent2D {
	if current.Width != math.MaxUint32 {
		return current
	}
	clamp := func(v, lo, hi uint32) uint32 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return vk.Extent2D{
		Width:  clamp(windowWidth, min.Width, max.Width),
		Height: clamp(windowHeight, min.Height, max.Height),
	}
}
