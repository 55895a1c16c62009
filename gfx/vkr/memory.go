// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	vk "github.com/devblok/vulkan"
)

// ErrMemoryTypeNotFound is returned when no memory heap satisfies a request.
var ErrMemoryTypeNotFound = errors.New("suitable memory type not found")

// Memory is one device allocation, bound whole to a buffer or image.
type Memory struct {
	size      uint
	mapped    bool
	allocator *MemoryAllocator
	memory    vk.DeviceMemory
}

// Len is the allocation size in bytes.
func (m *Memory) Len() uint {
	return m.size
}

// Get returns the vulkan memory handle.
func (m *Memory) Get() vk.DeviceMemory {
	return m.memory
}

// Map maps the whole allocation.
func (m *Memory) Map() (unsafe.Pointer, error) {
	var ptr unsafe.Pointer
	if err := vk.Error(vk.MapMemory(m.allocator.device, m.memory, 0, vk.DeviceSize(m.size), 0, &ptr)); err != nil {
		return nil, fmt.Errorf("vk.MapMemory(): %s", err.Error())
	}
	m.mapped = true
	return ptr, nil
}

// Unmap is a no-op unless the memory is mapped.
func (m *Memory) Unmap() {
	if m.mapped {
		vk.UnmapMemory(m.allocator.device, m.memory)
		m.mapped = false
	}
}

// Write copies data to the start of a host visible allocation.
func (m *Memory) Write(data []byte) error {
	if uint(len(data)) > m.size {
		return fmt.Errorf("write of %d bytes exceeds memory region of %d bytes", len(data), m.size)
	}
	ptr, err := m.Map()
	if err != nil {
		return err
	}
	vk.Memcopy(ptr, data)
	m.Unmap()
	return nil
}

// Release frees the allocation. Memory must not be used afterwards.
func (m *Memory) Release() {
	if m.allocator == nil {
		return
	}
	m.Unmap()
	vk.FreeMemory(m.allocator.device, m.memory, nil)
	m.allocator.live.Add(-1)
	m.allocator.bytes.Add(-int64(m.size))
	m.allocator = nil
}

// NewMemoryAllocator creates an allocator for device, choosing memory types
// from the properties of phyDevice.
func NewMemoryAllocator(device vk.Device, phyDevice vk.PhysicalDevice) *MemoryAllocator {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &props)
	props.Deref()

	types := make([]vk.MemoryType, props.MemoryTypeCount)
	for idx := range types {
		props.MemoryTypes[idx].Deref()
		types[idx] = props.MemoryTypes[idx]
	}
	return &MemoryAllocator{
		device: device,
		types:  types,
	}
}

// MemoryAllocator hands out one device allocation per resource and keeps
// count of what is still live.
type MemoryAllocator struct {
	device vk.Device
	types  []vk.MemoryType

	live  atomic.Int64
	bytes atomic.Int64
}

// Live returns the number and total size of allocations not yet released.
func (ma *MemoryAllocator) Live() (int64, int64) {
	return ma.live.Load(), ma.bytes.Load()
}

// Malloc allocates memory for req with at least the properties in prop.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (Memory, error) {
	memTypeIdx, ok := FindMemoryType(ma.types, req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if !ok {
		return Memory{}, fmt.Errorf("%w: type bits %#x, properties %#x", ErrMemoryTypeNotFound, req.MemoryTypeBits, uint32(prop))
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(ma.device, &mai, nil, &memory)); err != nil {
		return Memory{}, fmt.Errorf("vk.AllocateMemory(): %s", err.Error())
	}

	ma.live.Add(1)
	ma.bytes.Add(int64(req.Size))
	return Memory{
		size:      uint(req.Size),
		allocator: ma,
		memory:    memory,
	}, nil
}

// FindMemoryType returns the first type allowed by filter that has every
// flag in prop. Types carrying no flags beyond prop are preferred, so host
// visible requests stay off device local heaps where possible.
func FindMemoryType(types []vk.MemoryType, filter uint32, prop vk.MemoryPropertyFlags) (uint32, bool) {
	found, exact := -1, -1
	for idx, t := range types {
		if idx >= 32 || filter&(1<<uint(idx)) == 0 || t.PropertyFlags&prop != prop {
			continue
		}
		if found < 0 {
			found = idx
		}
		if t.PropertyFlags&^prop == 0 && exact < 0 {
			exact = idx
		}
	}
	if exact >= 0 {
		return uint32(exact), true
	}
	if found >= 0 {
		return uint32(found), true
	}
	return 0, false
}
