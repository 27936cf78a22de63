// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"time"

	"github.com/devblok/harness/core/renderer"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// NewQueue wraps the device queue, it satisfies renderer.Queue.
func NewQueue(dev *Device) *Queue {
	return &Queue{dev: dev}
}

// Queue submits recorded frames and presents them.
type Queue struct {
	dev *Device
}

// Now implements renderer.Queue
func (q *Queue) Now() renderer.Future {
	return nowFuture{}
}

// Submit implements renderer.Queue. The frame waits for the acquired image,
// renders, signals a fence and is presented once rendering finished.
// Submissions to the one queue execute in order, prev is kept alive until
// the new frame has finished.
func (q *Queue) Submit(prev renderer.Future, acq renderer.Acquisition, cmd renderer.CommandBuffer, chain renderer.Swapchain) (renderer.Future, error) {
	acquired, ok := acq.Ready.(*acquireFuture)
	if !ok {
		return nil, errors.Errorf("vkr: acquisition signal %T was not created by a vkr swapchain", acq.Ready)
	}
	cb, ok := cmd.(*CommandBuffer)
	if !ok {
		return nil, errors.Errorf("vkr: can not submit %T", cmd)
	}
	swapchain, ok := chain.(*Swapchain)
	if !ok {
		return nil, errors.Errorf("vkr: can not present to %T", chain)
	}

	f := &frameFuture{
		dev:      q.dev,
		prev:     prev,
		cmd:      cb,
		acquired: acquired.sem,
	}

	var err error
	if f.rendered, err = q.dev.sync.semaphore(); err != nil {
		f.abandon()
		return nil, err
	}
	if f.fence, err = q.dev.sync.fence(); err != nil {
		f.abandon()
		return nil, err
	}

	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{f.acquired},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{f.rendered},
	}}
	if err := vk.Error(vk.QueueSubmit(q.dev.queue, 1, submit, f.fence)); err != nil {
		f.abandon()
		return nil, errors.Wrap(err, "vk.QueueSubmit()")
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{f.rendered},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{swapchain.handle},
		PImageIndices:      []uint32{uint32(acq.Index)},
	}
	err = presentResult(vk.QueuePresent(q.dev.queue, &presentInfo))
	if err == nil {
		return f, nil
	}
	// Rendering was submitted, wait for it before giving everything back.
	if werr := f.Wait(0); werr != nil {
		return nil, werr
	}
	f.release(true)
	return nil, err
}

// presentResult maps the outcome of vk.QueuePresent, a suboptimal chain
// still presented the frame.
func presentResult(result vk.Result) error {
	switch result {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return renderer.ErrOutOfDate
	default:
		return errors.Wrap(vk.Error(result), "vk.QueuePresent()")
	}
}

// Destroy waits for the queue to drain.
func (q *Queue) Destroy() {
	vk.QueueWaitIdle(q.dev.queue)
}

// nowFuture is a submission that finished before it started.
type nowFuture struct{}

func (nowFuture) CleanupFinished()         {}
func (nowFuture) Finished() bool           { return true }
func (nowFuture) Wait(time.Duration) error { return nil }

// frameFuture tracks a submitted frame through its fence.
type frameFuture struct {
	dev  *Device
	prev renderer.Future
	cmd  *CommandBuffer

	acquired vk.Semaphore
	rendered vk.Semaphore
	fence    vk.Fence

	signalled bool
	released  bool
}

// CleanupFinished releases what finished frames held on to, this one
// included once its fence is signalled.
func (f *frameFuture) CleanupFinished() {
	if f.prev != nil {
		f.prev.CleanupFinished()
		if f.prev.Finished() {
			f.prev = nil
		}
	}
	if f.Finished() {
		f.release(false)
	}
}

// Finished reports whether the fence is signalled.
func (f *frameFuture) Finished() bool {
	if f.signalled {
		return true
	}
	if vk.GetFenceStatus(f.dev.handle, f.fence) == vk.Success {
		f.signalled = true
	}
	return f.signalled
}

// Wait blocks until the frame finished rendering, a timeout of 0 waits forever.
func (f *frameFuture) Wait(timeout time.Duration) error {
	if f.signalled {
		return nil
	}
	switch result := vk.WaitForFences(f.dev.handle, 1, []vk.Fence{f.fence}, vk.True, timeoutNanos(timeout)); result {
	case vk.Success:
		f.signalled = true
		return nil
	case vk.Timeout:
		return renderer.ErrTimeout
	default:
		return errors.Wrap(vk.Error(result), "vk.WaitForFences()")
	}
}

// release gives back the fence, semaphores, command buffer and uniform slot.
func (f *frameFuture) release(discard bool) {
	if f.released {
		return
	}
	f.released = true
	if f.prev != nil {
		f.prev.CleanupFinished()
		f.prev = nil
	}
	f.dev.sync.putFence(f.fence)
	f.dev.sync.putSemaphore(f.acquired)
	if discard {
		// A failed present may leave the semaphore pending.
		vk.DestroySemaphore(f.dev.handle, f.rendered, nil)
		f.cmd.discard()
	} else {
		f.dev.sync.putSemaphore(f.rendered)
		f.cmd.release()
	}
}

// abandon cleans up a frame that was never submitted.
func (f *frameFuture) abandon() {
	f.released = true
	if f.fence != vk.NullFence {
		f.dev.sync.putFence(f.fence)
	}
	if f.rendered != vk.NullSemaphore {
		f.dev.sync.putSemaphore(f.rendered)
	}
	f.cmd.discard()
	// The acquire semaphore may still be signalled by the presentation
	// engine, it can not be reused.
	vk.DestroySemaphore(f.dev.handle, f.acquired, nil)
}
