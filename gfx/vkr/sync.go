// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"sync"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// syncPool recycles semaphores and fences between frames.
type syncPool struct {
	device vk.Device

	mu         sync.Mutex
	semaphores []vk.Semaphore
	fences     []vk.Fence
	created    int
}

func (p *syncPool) semaphore() (vk.Semaphore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.semaphores); n > 0 {
		sem := p.semaphores[n-1]
		p.semaphores = p.semaphores[:n-1]
		return sem, nil
	}

	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if err := vk.Error(vk.CreateSemaphore(p.device, &sci, nil, &sem)); err != nil {
		return vk.NullSemaphore, errors.Wrap(err, "vk.CreateSemaphore()")
	}
	p.created++
	return sem, nil
}

// fence returns an unsignalled fence.
func (p *syncPool) fence() (vk.Fence, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.fences); n > 0 {
		fence := p.fences[n-1]
		p.fences = p.fences[:n-1]
		return fence, nil
	}

	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(p.device, &fci, nil, &fence)); err != nil {
		return vk.NullFence, errors.Wrap(err, "vk.CreateFence()")
	}
	p.created++
	return fence, nil
}

// putSemaphore returns a semaphore that nothing waits on anymore.
func (p *syncPool) putSemaphore(sem vk.Semaphore) {
	p.mu.Lock()
	p.semaphores = append(p.semaphores, sem)
	p.mu.Unlock()
}

// putFence resets a signalled fence and keeps it for reuse.
func (p *syncPool) putFence(fence vk.Fence) {
	if err := vk.Error(vk.ResetFences(p.device, 1, []vk.Fence{fence})); err != nil {
		vk.DestroyFence(p.device, fence, nil)
		return
	}
	p.mu.Lock()
	p.fences = append(p.fences, fence)
	p.mu.Unlock()
}

func (p *syncPool) destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sem := range p.semaphores {
		vk.DestroySemaphore(p.device, sem, nil)
	}
	for _, fence := range p.fences {
		vk.DestroyFence(p.device, fence, nil)
	}
	p.semaphores, p.fences = nil, nil
}
