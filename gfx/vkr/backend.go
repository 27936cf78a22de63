// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/harness/core/renderer"
	vk "github.com/devblok/vulkan"
)

// Backend bundles the device side collaborators of a renderer.Scheduler.
type Backend struct {
	Device    *Device
	Queue     *Queue
	Layout    *FrameLayout
	Pass      *RenderPass
	Commands  *CommandAllocator
	Uniforms  *UniformRing
	Pipelines *PipelineFactory
}

// NewBackend creates everything drawing into images of format needs.
// uniformSlots caps the number of frames in flight.
func NewBackend(dev *Device, format vk.Format, uniformSlots int) (*Backend, error) {
	b := &Backend{
		Device: dev,
		Queue:  NewQueue(dev),
	}

	var err error
	if b.Layout, err = NewFrameLayout(dev); err != nil {
		return nil, err
	}
	if b.Pass, err = NewRenderPass(dev, format); err != nil {
		b.Destroy()
		return nil, err
	}
	if b.Uniforms, err = NewUniformRing(dev, b.Layout, uniformSlots); err != nil {
		b.Destroy()
		return nil, err
	}
	if b.Pipelines, err = NewPipelineFactory(dev, b.Pass, b.Layout); err != nil {
		b.Destroy()
		return nil, err
	}
	b.Commands = NewCommandAllocator(dev, b.Pass, b.Layout)
	return b, nil
}

// Scheduler returns the collaborators in the form renderer.NewScheduler takes.
func (b *Backend) Scheduler() renderer.Device {
	return renderer.Device{
		Queue:    b.Queue,
		Commands: b.Commands,
		Uniforms: b.Uniforms,
		Pass:     b.Pass,
	}
}

// Destroy waits for the queue and destroys what the backend created,
// the Device itself is left to the caller.
func (b *Backend) Destroy() {
	b.Queue.Destroy()
	if b.Pipelines != nil {
		b.Pipelines.Destroy()
	}
	if b.Uniforms != nil {
		b.Uniforms.Destroy()
	}
	if b.Pass != nil {
		b.Pass.Destroy()
	}
	if b.Layout != nil {
		b.Layout.Destroy()
	}
}
