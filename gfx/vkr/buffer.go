// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	"github.com/devblok/harness/model"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// NewBuffer creates, configures, allocates and binds a new host visible buffer.
func NewBuffer(dev *Device, size uint, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(dev.handle, &createInfo, nil, &buffer)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateBuffer()")
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev.handle, buffer, &req)
	req.Deref()

	memory, err := dev.allocator.Malloc(req, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(dev.handle, buffer, nil)
		return nil, err
	}

	if err := vk.Error(vk.BindBufferMemory(dev.handle, buffer, memory.Get(), vk.DeviceSize(memory.Offset()))); err != nil {
		vk.DestroyBuffer(dev.handle, buffer, nil)
		memory.Release()
		return nil, errors.Wrap(err, "vk.BindBufferMemory()")
	}

	return &Buffer{
		device: dev.handle,
		buffer: buffer,
		size:   size,
		memory: memory,
	}, nil
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

// Write copies data to the start of the buffer.
func (b *Buffer) Write(data []byte) error {
	if uint(len(data)) > b.size {
		return errors.Errorf("vkr: %d bytes do not fit a %d byte buffer", len(data), b.size)
	}
	mapped, err := b.memory.Bytes()
	if err != nil {
		return err
	}
	copy(mapped, data)
	return nil
}

// Release destroys the buffer and memory asociated with it.
func (b *Buffer) Release() {
	vk.DestroyBuffer(b.device, b.buffer, nil)
	b.memory.Release()
}

// NewVertexBuffer uploads vertices into a new vertex buffer.
func NewVertexBuffer(dev *Device, vertices []model.Vertex) (*VertexBuffer, error) {
	if len(vertices) == 0 {
		return nil, errors.New("vkr: vertex buffer needs at least one vertex")
	}

	size := uint(unsafe.Sizeof(model.Vertex{})) * uint(len(vertices))
	buf, err := NewBuffer(dev, size, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, err
	}

	data := *(*[]byte)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(unsafe.Pointer(&vertices[0])),
		Len:  int(size),
		Cap:  int(size),
	}))
	if err := buf.Write(data); err != nil {
		buf.Release()
		return nil, err
	}
	buf.Mem().Unmap()

	return &VertexBuffer{
		Buffer: buf,
		count:  uint32(len(vertices)),
	}, nil
}

// VertexBuffer is a buffer of model.Vertex, it satisfies renderer.VertexBuffer.
type VertexBuffer struct {
	*Buffer
	count uint32
}

// Len returns the number of vertices.
func (vb *VertexBuffer) Len() uint32 {
	return vb.count
}

// Destroy releases the buffer.
func (vb *VertexBuffer) Destroy() {
	vb.Release()
}
