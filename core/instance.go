// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// NewApplicationInfo describes the host application to the driver.
func NewApplicationInfo(name string, version uint32) *vk.ApplicationInfo {
	return &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 0, 0),
		ApplicationVersion: version,
		PApplicationName:   safeString(name),
		PEngineName:        safeString("roast"),
	}
}

// NewVulkanInstance creates a Vulkan instance. procAddr is the loader's
// vkGetInstanceProcAddr, the system loader is used when it's nil.
func NewVulkanInstance(appInfo *vk.ApplicationInfo, procAddr unsafe.Pointer, cfg InstanceConfiguration) (Instance, error) {
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, validationLayer)
		cfg.Extensions = append(cfg.Extensions, "VK_EXT_debug_report")
	}

	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.New("vk.InstanceProcAddr(): " + err.Error())
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.New("vk.Init(): " + err.Error())
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, errors.New("vk.CreateInstance(): " + err.Error())
	}
	vk.InitInstance(instance)

	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, errors.New("core.enumerateDevices(): " + err.Error())
	}

	return &VulkanInstance{
		configuration:    cfg,
		instance:         instance,
		availableDevices: physicalDevices,
	}, nil
}

// VulkanInstance describes a Vulkan API Instance
type VulkanInstance struct {
	configuration InstanceConfiguration

	availableDevices []vk.PhysicalDevice
	surface          vk.Surface
	instance         vk.Instance
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	return availableDevices, nil
}

func deviceExtensions(device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &count, props)); err != nil {
		return nil, err
	}
	extensions := make([]string, 0, count)
	for _, ext := range props {
		ext.Deref()
		extensions = append(extensions, vk.ToString(ext.ExtensionName[:]))
	}
	return extensions, nil
}

func deviceFeatures(device vk.PhysicalDevice) DeviceFeatures {
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(device, &features)
	features.Deref()
	return DeviceFeatures{
		SamplerAnisotropy: features.SamplerAnisotropy.B(),
		ShaderInt16:       features.ShaderInt16.B(),
		ShaderInt64:       features.ShaderInt64.B(),
	}
}

func deviceName(device vk.PhysicalDevice) string {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device, &props)
	props.Deref()
	return vk.ToString(props.DeviceName[:])
}

// PhysicalDevicesInfo implements interface
func (v *VulkanInstance) PhysicalDevicesInfo() []PhysicalDeviceInfo {
	pdi := make([]PhysicalDeviceInfo, len(v.availableDevices))
	for i, device := range v.availableDevices {
		extensions, err := deviceExtensions(device)
		if err != nil {
			pdi[i].Invalid = true
		}
		pdi[i].Extensions = extensions

		// Get layers info
		var numDeviceLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(device, &numDeviceLayers, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(device, &numDeviceLayers, deviceLayers)); err != nil {
			pdi[i].Invalid = true
		}
		for _, layer := range deviceLayers {
			layer.Deref()
			pdi[i].Layers = append(pdi[i].Layers, vk.ToString(layer.LayerName[:]))
		}

		// Get memory info
		var memoryProperties vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(device, &memoryProperties)
		memoryProperties.Deref()
		for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
			memoryProperties.MemoryHeaps[iMem].Deref()
			pdi[i].Memory += uint(memoryProperties.MemoryHeaps[iMem].Size)
		}

		// Get general device info
		var physicalDeviceProperties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(device, &physicalDeviceProperties)
		physicalDeviceProperties.Deref()
		pdi[i].ID = int(physicalDeviceProperties.DeviceID)
		pdi[i].VendorID = int(physicalDeviceProperties.VendorID)
		pdi[i].Name = vk.ToString(physicalDeviceProperties.DeviceName[:])
		pdi[i].DriverVersion = int(physicalDeviceProperties.DriverVersion)
		pdi[i].Features = deviceFeatures(device)
	}
	return pdi
}

// SetSurface implements interface
func (v *VulkanInstance) SetSurface(pSurface unsafe.Pointer) {
	v.surface = vk.SurfaceFromPointer(uintptr(pSurface))
}

// Surface implements interface
func (v *VulkanInstance) Surface() vk.Surface {
	if v.surface == nil {
		return vk.NullSurface
	}
	return v.surface
}

// Inner returns internal vk.Instance
func (v *VulkanInstance) Inner() interface{} {
	return v.instance
}

// Extensions implements interface
func (v *VulkanInstance) Extensions() []string {
	return v.configuration.Extensions
}

// AvailableDevices implements interface
func (v *VulkanInstance) AvailableDevices() []vk.PhysicalDevice {
	return v.availableDevices
}

// Destroy implements interface, the surface goes with the instance
func (v *VulkanInstance) Destroy() {
	if v.surface != nil {
		vk.DestroySurface(v.instance, v.surface, nil)
		v.surface = nil
	}
	v.availableDevices = nil
	vk.DestroyInstance(v.instance, nil)
}
