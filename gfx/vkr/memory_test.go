package vkr_test

import (
	"testing"

	"github.com/devblok/roast/gfx/vkr"
	vk "github.com/devblok/vulkan"
	"github.com/stretchr/testify/assert"
)

func flags(bits ...vk.MemoryPropertyFlagBits) vk.MemoryPropertyFlags {
	var f vk.MemoryPropertyFlags
	for _, b := range bits {
		f |= vk.MemoryPropertyFlags(b)
	}
	return f
}

func TestFindMemoryType(t *testing.T) {
	types := []vk.MemoryType{
		{PropertyFlags: flags(vk.MemoryPropertyDeviceLocalBit)},
		{PropertyFlags: flags(vk.MemoryPropertyDeviceLocalBit, vk.MemoryPropertyHostVisibleBit, vk.MemoryPropertyHostCoherentBit)},
		{PropertyFlags: flags(vk.MemoryPropertyHostVisibleBit, vk.MemoryPropertyHostCoherentBit)},
		{PropertyFlags: flags(vk.MemoryPropertyHostVisibleBit, vk.MemoryPropertyHostCachedBit)},
	}
	hostCoherent := flags(vk.MemoryPropertyHostVisibleBit, vk.MemoryPropertyHostCoherentBit)

	idx, ok := vkr.FindMemoryType(types, 0xf, flags(vk.MemoryPropertyDeviceLocalBit))
	assert.True(t, ok)
	assert.Equal(t, uint32(0), idx)

	idx, ok = vkr.FindMemoryType(types, 0xf, hostCoherent)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), idx, "plain host memory preferred over device local")

	idx, ok = vkr.FindMemoryType(types, 0x2, hostCoherent)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), idx, "filter wins over preference")

	idx, ok = vkr.FindMemoryType(types, 0xf, flags(vk.MemoryPropertyHostVisibleBit))
	assert.True(t, ok)
	assert.Equal(t, uint32(1), idx, "no exact match, first candidate")

	_, ok = vkr.FindMemoryType(types, 0x1, hostCoherent)
	assert.False(t, ok)

	_, ok = vkr.FindMemoryType(nil, 0xffffffff, 0)
	assert.False(t, ok)
}
