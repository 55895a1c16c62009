// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/devblok/roast/gfx/vkr"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// VulkanContext owns the logical device and its queues.
type VulkanContext struct {
	PhysicalDevice vk.PhysicalDevice
	Device         vk.Device
	Families       QueueFamilies

	Graphics vk.Queue
	Present  vk.Queue
	Transfer vk.Queue

	Allocator *vkr.MemoryAllocator

	name string
}

// NewVulkanContext takes the first physical device, in enumeration order,
// that can render to the instance's surface with the required features and
// extensions, and opens a logical device on it.
func NewVulkanContext(instance Instance) (*VulkanContext, error) {
	surface := instance.Surface()

	var reasons []string
	for idx, pd := range instance.AvailableDevices() {
		name := deviceName(pd)

		extensions, err := deviceExtensions(pd)
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%d %s: vk.EnumerateDeviceExtensionProperties(): %s", idx, name, err.Error()))
			continue
		}
		if ok, reason := DeviceIsSuitable(deviceFeatures(pd), extensions); !ok {
			reasons = append(reasons, fmt.Sprintf("%d %s: %s", idx, name, reason))
			continue
		}

		families, ok := SelectQueueFamilies(queueFamilies(pd, surface))
		if !ok {
			reasons = append(reasons, fmt.Sprintf("%d %s: no graphics and present queue families", idx, name))
			continue
		}

		ctx, err := openDevice(pd, families)
		if err != nil {
			return nil, err
		}
		ctx.name = name

		log.WithFields(log.Fields{
			"device":           name,
			"graphicsFamily":   families.Graphics,
			"presentFamily":    families.Present,
			"transferFamily":   families.Transfer,
			"distinctTransfer": families.DistinctTransfer(),
		}).Info("physical device selected")
		return ctx, nil
	}

	if len(reasons) == 0 {
		return nil, ErrNoSuitableDevice
	}
	return nil, fmt.Errorf("%s: %s", ErrNoSuitableDevice.Error(), strings.Join(reasons, "; "))
}

func queueFamilies(pd vk.PhysicalDevice, surface vk.Surface) []QueueFamily {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, props)

	families := make([]QueueFamily, count)
	for i := range props {
		props[i].Deref()
		flags := props[i].QueueFlags
		families[i] = QueueFamily{
			Graphics: flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0,
			Compute:  flags&vk.QueueFlags(vk.QueueComputeBit) != 0,
			Transfer: flags&vk.QueueFlags(vk.QueueTransferBit) != 0,
		}
		if props[i].QueueCount == 0 {
			families[i] = QueueFamily{}
			continue
		}

		var supportsPresent vk.Bool32
		if surface != vk.NullSurface {
			vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surface, &supportsPresent)
		}
		families[i].Present = supportsPresent.B()
	}
	return families
}

func openDevice(pd vk.PhysicalDevice, families QueueFamilies) (*VulkanContext, error) {
	var queueInfos []vk.DeviceQueueCreateInfo
	for _, family := range families.Unique() {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		})
	}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(RequiredDeviceExtensions)),
		PpEnabledExtensionNames: safeStrings(RequiredDeviceExtensions),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: vk.True,
			ShaderInt16:       vk.True,
			ShaderInt64:       vk.True,
		}},
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(pd, &dci, nil, &device)); err != nil {
		return nil, errors.New("vk.CreateDevice(): " + err.Error())
	}

	ctx := &VulkanContext{
		PhysicalDevice: pd,
		Device:         device,
		Families:       families,
		Allocator:      vkr.NewMemoryAllocator(device, pd),
	}
	vk.GetDeviceQueue(device, families.Graphics, 0, &ctx.Graphics)
	vk.GetDeviceQueue(device, families.Present, 0, &ctx.Present)
	vk.GetDeviceQueue(device, families.Transfer, 0, &ctx.Transfer)
	return ctx, nil
}

// Name of the selected physical device.
func (c *VulkanContext) Name() string {
	return c.name
}

// WaitIdle blocks until the device finished all submitted work.
func (c *VulkanContext) WaitIdle() {
	vk.DeviceWaitIdle(c.Device)
}

// Destroy destroys the logical device
func (c *VulkanContext) Destroy() {
	if count, size := c.Allocator.Live(); count > 0 {
		log.WithFields(log.Fields{
			"allocations": count,
			"bytes":       size,
		}).Warn("device memory still allocated at device destruction")
	}
	vk.DestroyDevice(c.Device, nil)
}
