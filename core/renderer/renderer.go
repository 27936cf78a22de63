// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package renderer sequences the GPU work of one frame: it keeps the
// presentation chain in step with the window surface, records the
// caller's draw calls and chains every submission onto the previous
// one without stalling the host, unless asked to.
//
// The package does not talk to a graphics API directly. Everything it
// drives is described by the small interfaces below, gfx/vkr provides
// the Vulkan implementation.
package renderer

import (
	"image"
	"time"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Extent is a two dimensional size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// Degenerate reports whether there is nothing to draw into.
func (e Extent) Degenerate() bool {
	return e.Width == 0 || e.Height == 0
}

// Destroyer is anything that owns GPU memory or handles.
type Destroyer interface {
	Destroy()
}

// Surface is the window side of presentation.
type Surface interface {
	// DrawableExtent returns the current size of the drawable area,
	// a minimised window reports a zero extent.
	DrawableExtent() Extent
}

// Image is a presentable image owned by a Swapchain.
type Image interface {
	Extent() Extent
}

// Acquisition is the result of acquiring the next presentable image.
type Acquisition struct {
	Index int

	// Suboptimal is set when the image can still be presented
	// but the chain no longer matches the surface.
	Suboptimal bool

	// Ready is signalled by the GPU once the image may be written.
	Ready Future
}

// Swapchain is the presentation chain bound to a Surface.
type Swapchain interface {
	Destroyer

	// ImageCount returns the number of images in the chain.
	ImageCount() int

	// Images returns the presentable images in chain order.
	Images() []Image

	// Extent returns the size the chain was created with.
	Extent() Extent

	// Recreate builds a new chain for extent, the receiver is used as a hint
	// for resource reuse and stays valid until destroyed. Returns an error
	// wrapping ErrExtentNotSupported when the surface can't take extent.
	Recreate(extent Extent) (Swapchain, error)

	// Acquire blocks until an image is available. A zero timeout waits forever.
	// Returns errors wrapping ErrOutOfDate or ErrTimeout for recoverable outcomes.
	Acquire(timeout time.Duration) (Acquisition, error)
}

// Framebuffer binds one presentable image to the render pass.
type Framebuffer interface {
	Destroyer
}

// RenderPass is the fixed render pass every pipeline is built against.
type RenderPass interface {
	NewFramebuffer(img Image) (Framebuffer, error)
}

// ClearColor is an RGBA clear value.
type ClearColor [4]float32

// Pipeline is an opaque graphics pipeline handle.
type Pipeline interface{}

// VertexBuffer is an opaque vertex buffer handle.
type VertexBuffer interface {
	// Len returns the number of vertices in the buffer.
	Len() uint32
}

// UniformSet is a descriptor set referencing one frame's uniform data.
type UniformSet interface{}

// CommandBuffer is a finished, submittable command buffer.
type CommandBuffer interface{}

// Recorder records a single one-time-submit command buffer.
type Recorder interface {
	BeginRenderPass(fb Framebuffer, clear ClearColor)
	SetViewport(vp Viewport)
	BindUniforms(set UniformSet)
	BindPipeline(p Pipeline)
	PushTransform(m glm.Mat4)
	BindVertexBuffer(b VertexBuffer)
	Draw(vertexCount, instanceCount uint32)
	EndRenderPass()

	// Build finishes recording.
	Build() (CommandBuffer, error)
}

// Readback holds an image copied to host memory by a Capturer.
type Readback interface {
	// Image decodes the copy, only valid once the frame has finished.
	Image() (image.Image, error)
}

// Capturer is implemented by recorders able to copy a presentable image
// to host memory after the render pass.
type Capturer interface {
	Capture(index int) (Readback, error)
}

// CommandAllocator hands out recorders for one-time-submit command buffers.
type CommandAllocator interface {
	Begin() (Recorder, error)
}

// UniformPool is a ring style upload pool for per frame uniform data.
// The sets it returns use a descriptor set layout shared by every
// pipeline, so binding them does not depend on any particular pipeline.
type UniformPool interface {
	Write(data UniformData) (UniformSet, error)
}

// Future represents GPU work that is not yet known to be complete.
type Future interface {
	// CleanupFinished releases resources of work that already finished.
	// It never blocks.
	CleanupFinished()

	// Finished reports whether the GPU is done with the work.
	Finished() bool

	// Wait blocks until the work is finished. A zero timeout waits forever.
	Wait(timeout time.Duration) error
}

// Queue executes and presents recorded frames.
type Queue interface {
	// Now returns an already completed future.
	Now() Future

	// Submit joins prev with the acquisition signal, executes cmd,
	// presents the acquired image, then signals a fence and flushes.
	// Returns an error wrapping ErrOutOfDate if presentation found the
	// chain out of date. On any error the work is no longer in flight.
	Submit(prev Future, acq Acquisition, cmd CommandBuffer, chain Swapchain) (Future, error)
}

// Device bundles the GPU collaborators a Scheduler drives. They are
// initialised before the Scheduler and have to outlive it.
type Device struct {
	Queue    Queue
	Commands CommandAllocator
	Uniforms UniformPool
	Pass     RenderPass
}

// UniformData is written once per frame and read by the vertex stage.
type UniformData struct {
	Transformation glm.Mat4
}

// Model is a vertex buffer ready to be drawn.
type Model struct {
	Buffer VertexBuffer
}

// Material is the pipeline a model is drawn with.
type Material struct {
	Pipeline Pipeline
}

// DrawCall contributes one piece of geometry to a frame.
type DrawCall struct {
	Transform glm.Mat4
	Model     Model
	Material  Material
}
