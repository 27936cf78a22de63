// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// ErrNoMemoryType is returned when no memory type satisfies a request.
var ErrNoMemoryType = errors.New("vkr: suitable memory type not found")

// Memory defines a usable memory region.
type Memory struct {
	mapped      unsafe.Pointer
	len, offset uint
	device      vk.Device
	memory      vk.DeviceMemory
}

// Len returns the length of assigned memory.
func (m *Memory) Len() uint {
	return m.len
}

// Offset returns the start location of assigned memory.
func (m *Memory) Offset() uint {
	return m.offset
}

// Get returns the vulkan memory handle.
func (m *Memory) Get() vk.DeviceMemory {
	return m.memory
}

// Map maps the entire region and returns a pointer to it.
// The mapping is kept until Unmap, repeated calls return the same pointer.
func (m *Memory) Map() (unsafe.Pointer, error) {
	if m.mapped != nil {
		return m.mapped, nil
	}
	var memMapped unsafe.Pointer
	if err := vk.Error(vk.MapMemory(m.device, m.memory, vk.DeviceSize(m.offset), vk.DeviceSize(m.len), 0, &memMapped)); err != nil {
		return nil, errors.Wrap(err, "vk.MapMemory()")
	}
	m.mapped = memMapped
	return memMapped, nil
}

// Bytes maps the region and views it as a byte slice.
func (m *Memory) Bytes() ([]byte, error) {
	ptr, err := m.Map()
	if err != nil {
		return nil, err
	}
	return *(*[]byte)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(ptr),
		Len:  int(m.len),
		Cap:  int(m.len),
	})), nil
}

// Unmap removes the memory mapping if it was mapped.
func (m *Memory) Unmap() {
	if m.mapped != nil {
		vk.UnmapMemory(m.device, m.memory)
		m.mapped = nil
	}
}

// Release frees memory after unmapping it if previously mapped.
func (m *Memory) Release() {
	m.Unmap()
	vk.FreeMemory(m.device, m.memory, nil)
}

// NewMemoryAllocator creates a new memory allocator. Allocates for the logical device,
// reads memory properties of the physical device to influence allocation.
func NewMemoryAllocator(device vk.Device, phyDevice vk.PhysicalDevice) *MemoryAllocator {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()

	flags := make([]vk.MemoryPropertyFlags, memProperties.MemoryTypeCount)
	for idx := range flags {
		memProperties.MemoryTypes[idx].Deref()
		flags[idx] = memProperties.MemoryTypes[idx].PropertyFlags
	}

	return &MemoryAllocator{
		device:    device,
		typeFlags: flags,
	}
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	device    vk.Device
	typeFlags []vk.MemoryPropertyFlags
}

// Malloc returns a usable memory chunk ready for use.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (Memory, error) {
	memTypeIdx, ok := findMemoryType(ma.typeFlags, req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if !ok {
		return Memory{}, errors.Wrapf(ErrNoMemoryType, "filter %b, properties %b", req.MemoryTypeBits, prop)
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(ma.device, &mai, nil, &memory)); err != nil {
		return Memory{}, errors.Wrap(err, "vk.AllocateMemory()")
	}

	return Memory{
		offset: 0,
		len:    uint(req.Size),
		device: ma.device,
		memory: memory,
	}, nil
}

// findMemoryType returns the first memory type allowed by filter
// that has all of the requested properties.
func findMemoryType(types []vk.MemoryPropertyFlags, filter uint32, prop vk.MemoryPropertyFlags) (uint32, bool) {
	for idx, flags := range types {
		if filter&(1<<uint(idx)) != 0 && flags&prop == prop {
			return uint32(idx), true
		}
	}
	return 0, false
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}
