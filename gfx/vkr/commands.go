// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	"github.com/devblok/harness/core/renderer"
	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// NewCommandAllocator creates an allocator of one time command buffers
// recorded against layout.
func NewCommandAllocator(dev *Device, pass *RenderPass, layout *FrameLayout) *CommandAllocator {
	return &CommandAllocator{
		dev:    dev,
		pass:   pass,
		layout: layout,
	}
}

// CommandAllocator satisfies renderer.CommandAllocator.
type CommandAllocator struct {
	dev    *Device
	pass   *RenderPass
	layout *FrameLayout
}

// Begin implements renderer.CommandAllocator
func (ca *CommandAllocator) Begin() (renderer.Recorder, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        ca.dev.pool,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(ca.dev.handle, &cbai, commandBuffers)); err != nil {
		return nil, errors.Wrap(err, "vk.AllocateCommandBuffers()")
	}

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(commandBuffers[0], &cbbi)); err != nil {
		vk.FreeCommandBuffers(ca.dev.handle, ca.dev.pool, 1, commandBuffers)
		return nil, errors.Wrap(err, "vk.BeginCommandBuffer()")
	}

	return &recorder{
		alloc: ca,
		cmd:   commandBuffers[0],
	}, nil
}

// recorder records one frame. Misuse is remembered and reported by Build.
type recorder struct {
	alloc *CommandAllocator
	cmd   vk.CommandBuffer
	err   error

	framebuffer *Framebuffer
	uniforms    *uniformSlot
	readback    *Readback
	inPass      bool
}

func (r *recorder) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *recorder) BeginRenderPass(fb renderer.Framebuffer, clear renderer.ClearColor) {
	framebuffer, ok := fb.(*Framebuffer)
	if !ok {
		r.fail(errors.Errorf("vkr: can not render into %T", fb))
		return
	}
	r.framebuffer = framebuffer
	r.inPass = true

	clearValues := make([]vk.ClearValue, 1)
	clearValues[0].SetColor(clear[:])

	extent := framebuffer.image.extent
	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  r.alloc.pass.handle,
		Framebuffer: framebuffer.handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{
				X: 0, Y: 0,
			},
			Extent: vk.Extent2D{
				Width:  extent.Width,
				Height: extent.Height,
			},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(r.cmd, &rpbi, vk.SubpassContentsInline)
}

func (r *recorder) SetViewport(vp renderer.Viewport) {
	viewport := vk.Viewport{
		X:        vp.Origin[0],
		Y:        vp.Origin[1],
		Width:    vp.Dimensions[0],
		Height:   vp.Dimensions[1],
		MinDepth: vp.DepthRange[0],
		MaxDepth: vp.DepthRange[1],
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{
			X: int32(vp.Origin[0]),
			Y: int32(vp.Origin[1]),
		},
		Extent: vk.Extent2D{
			Width:  uint32(vp.Dimensions[0]),
			Height: uint32(vp.Dimensions[1]),
		},
	}
	vk.CmdSetViewport(r.cmd, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(r.cmd, 0, 1, []vk.Rect2D{scissor})
}

func (r *recorder) BindUniforms(set renderer.UniformSet) {
	slot, ok := set.(*uniformSlot)
	if !ok {
		r.fail(errors.Errorf("vkr: can not bind uniforms of %T", set))
		return
	}
	r.uniforms = slot
	vk.CmdBindDescriptorSets(r.cmd, vk.PipelineBindPointGraphics, r.alloc.layout.pipelineLayout, 0, 1, []vk.DescriptorSet{slot.set}, 0, nil)
}

func (r *recorder) BindPipeline(p renderer.Pipeline) {
	pipeline, ok := p.(*Pipeline)
	if !ok {
		r.fail(errors.Errorf("vkr: can not bind pipeline %T", p))
		return
	}
	vk.CmdBindPipeline(r.cmd, vk.PipelineBindPointGraphics, pipeline.handle)
}

func (r *recorder) PushTransform(m glm.Mat4) {
	pc := pushConstant{
		Model: m,
	}
	vk.CmdPushConstants(r.cmd, r.alloc.layout.pipelineLayout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, uint32(unsafe.Sizeof(pc)), unsafe.Pointer(&pc))
}

func (r *recorder) BindVertexBuffer(b renderer.VertexBuffer) {
	vb, ok := b.(*VertexBuffer)
	if !ok {
		r.fail(errors.Errorf("vkr: can not bind vertex buffer %T", b))
		return
	}
	vk.CmdBindVertexBuffers(r.cmd, 0, 1, []vk.Buffer{vb.Get()}, []vk.DeviceSize{0})
}

func (r *recorder) Draw(vertexCount, instanceCount uint32) {
	vk.CmdDraw(r.cmd, vertexCount, instanceCount, 0, 0)
}

func (r *recorder) EndRenderPass() {
	vk.CmdEndRenderPass(r.cmd)
	r.inPass = false
}

// Capture copies the image rendered into after the render pass ended.
func (r *recorder) Capture(index int) (renderer.Readback, error) {
	if r.framebuffer == nil || r.inPass {
		return nil, errors.New("vkr: capture needs a finished render pass")
	}
	img := r.framebuffer.image
	if !img.capturable {
		return nil, errors.Wrapf(renderer.ErrCaptureUnsupported, "image %d has no transfer source usage", index)
	}
	if _, err := pixelLayout(img.format); err != nil {
		return nil, err
	}

	buf, err := NewBuffer(r.alloc.dev, uint(img.extent.Width)*uint(img.extent.Height)*4, vk.BufferUsageTransferDstBit)
	if err != nil {
		return nil, err
	}

	r.barrier(img.image, vk.ImageLayoutPresentSrc, vk.ImageLayoutTransferSrcOptimal,
		vk.AccessColorAttachmentWriteBit, vk.AccessTransferReadBit,
		vk.PipelineStageColorAttachmentOutputBit, vk.PipelineStageTransferBit)

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{
			Width:  img.extent.Width,
			Height: img.extent.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyImageToBuffer(r.cmd, img.image, vk.ImageLayoutTransferSrcOptimal, buf.Get(), 1, []vk.BufferImageCopy{region})

	r.barrier(img.image, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutPresentSrc,
		vk.AccessTransferReadBit, 0,
		vk.PipelineStageTransferBit, vk.PipelineStageBottomOfPipeBit)

	r.readback = &Readback{
		buffer: buf,
		extent: img.extent,
		format: img.format,
	}
	return r.readback, nil
}

func (r *recorder) barrier(img vk.Image, from, to vk.ImageLayout, srcAccess, dstAccess vk.AccessFlagBits, srcStage, dstStage vk.PipelineStageFlagBits) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(srcAccess),
		DstAccessMask:       vk.AccessFlags(dstAccess),
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange:    colorSubresourceRange,
	}
	vk.CmdPipelineBarrier(r.cmd, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (r *recorder) Build() (renderer.CommandBuffer, error) {
	if r.err == nil && r.inPass {
		r.err = errors.New("vkr: render pass was not ended")
	}
	if err := vk.Error(vk.EndCommandBuffer(r.cmd)); err != nil && r.err == nil {
		r.err = errors.Wrap(err, "vk.EndCommandBuffer()")
	}
	if r.err != nil {
		vk.FreeCommandBuffers(r.alloc.dev.handle, r.alloc.dev.pool, 1, []vk.CommandBuffer{r.cmd})
		if r.readback != nil {
			r.readback.release()
		}
		if r.uniforms != nil {
			r.uniforms.release()
		}
		return nil, r.err
	}
	return &CommandBuffer{
		dev:      r.alloc.dev,
		cmd:      r.cmd,
		uniforms: r.uniforms,
		readback: r.readback,
	}, nil
}

// CommandBuffer is a recorded frame, it satisfies renderer.CommandBuffer.
type CommandBuffer struct {
	dev      *Device
	cmd      vk.CommandBuffer
	uniforms *uniformSlot

	// readback is only released here when the frame never ran.
	readback *Readback
}

func (cb *CommandBuffer) release() {
	vk.FreeCommandBuffers(cb.dev.handle, cb.dev.pool, 1, []vk.CommandBuffer{cb.cmd})
	if cb.uniforms != nil {
		cb.uniforms.release()
	}
}

func (cb *CommandBuffer) discard() {
	cb.release()
	if cb.readback != nil {
		cb.readback.release()
	}
}
