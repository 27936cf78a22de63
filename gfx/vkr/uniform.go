// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"sync"
	"unsafe"

	"github.com/devblok/harness/core/renderer"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// ErrUniformPoolExhausted is returned when every uniform slot is
// still used by a frame in flight. It matches renderer.ErrPoolExhausted.
var ErrUniformPoolExhausted = errors.Wrap(renderer.ErrPoolExhausted, "vkr: uniform ring")

// NewUniformRing creates a pool of at most max uniform slots, each with
// its own buffer and descriptor set laid out by layout.
func NewUniformRing(dev *Device, layout *FrameLayout, max int) (*UniformRing, error) {
	if max <= 0 {
		return nil, errors.Errorf("vkr: uniform ring of %d slots", max)
	}

	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeUniformBuffer,
		DescriptorCount: uint32(max),
	}}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(max),
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	var descriptorPool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(dev.handle, &dpci, nil, &descriptorPool)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateDescriptorPool()")
	}

	return &UniformRing{
		dev:    dev,
		layout: layout,
		pool:   descriptorPool,
		ring:   ring{max: max},
	}, nil
}

// UniformRing hands out uniform slots for frames, it satisfies
// renderer.UniformPool. Slots come back once the frame using them
// has finished on the GPU.
type UniformRing struct {
	dev    *Device
	layout *FrameLayout
	pool   vk.DescriptorPool

	mu    sync.Mutex
	ring  ring
	slots []*uniformSlot
}

type uniformSlot struct {
	owner  *UniformRing
	index  int
	buffer *Buffer
	set    vk.DescriptorSet
}

func (s *uniformSlot) release() {
	s.owner.mu.Lock()
	s.owner.ring.put(s.index)
	s.owner.mu.Unlock()
}

// Write implements renderer.UniformPool
func (u *UniformRing) Write(data renderer.UniformData) (renderer.UniformSet, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	idx, grow, ok := u.ring.get()
	if !ok {
		return nil, ErrUniformPoolExhausted
	}
	if grow {
		slot, err := u.newSlot(idx)
		if err != nil {
			u.ring.size--
			return nil, err
		}
		u.slots = append(u.slots, slot)
	}

	slot := u.slots[idx]
	raw := *(*[]byte)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(unsafe.Pointer(&data)),
		Len:  int(unsafe.Sizeof(data)),
		Cap:  int(unsafe.Sizeof(data)),
	}))
	if err := slot.buffer.Write(raw); err != nil {
		u.ring.put(idx)
		return nil, err
	}
	return slot, nil
}

func (u *UniformRing) newSlot(idx int) (*uniformSlot, error) {
	size := uint(unsafe.Sizeof(renderer.UniformData{}))
	buf, err := NewBuffer(u.dev, size, vk.BufferUsageUniformBufferBit)
	if err != nil {
		return nil, err
	}

	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     u.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{u.layout.setLayout},
	}
	var set vk.DescriptorSet
	if err := vk.Error(vk.AllocateDescriptorSets(u.dev.handle, &dsai, &set)); err != nil {
		buf.Release()
		return nil, errors.Wrap(err, "vk.AllocateDescriptorSets()")
	}

	wds := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DstArrayElement: 0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buf.Get(),
			Offset: 0,
			Range:  vk.DeviceSize(size),
		}},
	}}
	vk.UpdateDescriptorSets(u.dev.handle, uint32(len(wds)), wds, 0, nil)

	return &uniformSlot{
		owner:  u,
		index:  idx,
		buffer: buf,
		set:    set,
	}, nil
}

// Destroy releases every slot, none may be in use.
func (u *UniformRing) Destroy() {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, slot := range u.slots {
		slot.buffer.Release()
	}
	u.slots = nil
	vk.DestroyDescriptorPool(u.dev.handle, u.pool, nil)
}

// ring tracks which of up to max slots are free.
type ring struct {
	max  int
	size int
	free []int
}

// get returns a free slot index, grow is set when the index is new.
func (r *ring) get() (idx int, grow bool, ok bool) {
	if n := len(r.free); n > 0 {
		idx = r.free[0]
		r.free = r.free[1:]
		return idx, false, true
	}
	if r.size >= r.max {
		return 0, false, false
	}
	r.size++
	return r.size - 1, true, true
}

func (r *ring) put(idx int) {
	r.free = append(r.free, idx)
}

func (r *ring) inUse() int {
	return r.size - len(r.free)
}
