// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/harness/core/renderer"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// NewRenderPass creates the render pass frames are drawn with: a single
// color attachment that is cleared, stored and left ready for presentation.
func NewRenderPass(dev *Device, format vk.Format) (*RenderPass, error) {
	attachments := []vk.AttachmentDescription{{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}}

	colorAttachmentRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	subpassDependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorAttachmentRef)),
		PColorAttachments:    colorAttachmentRef,
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{subpassDependency},
	}

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(dev.handle, &rpci, nil, &renderPass)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateRenderPass()")
	}
	return &RenderPass{
		dev:    dev,
		handle: renderPass,
		format: format,
	}, nil
}

// RenderPass satisfies renderer.RenderPass.
type RenderPass struct {
	dev    *Device
	handle vk.RenderPass
	format vk.Format
}

// NewFramebuffer implements renderer.RenderPass
func (rp *RenderPass) NewFramebuffer(img renderer.Image) (renderer.Framebuffer, error) {
	si, ok := img.(*SwapchainImage)
	if !ok {
		return nil, errors.Errorf("vkr: can not create a framebuffer for %T", img)
	}
	if si.format != rp.format {
		return nil, errors.Errorf("vkr: image format %d does not match render pass format %d", si.format, rp.format)
	}

	attachments := []vk.ImageView{si.view}
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.handle,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           si.extent.Width,
		Height:          si.extent.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(rp.dev.handle, &fci, nil, &framebuffer)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateFramebuffer()")
	}
	return &Framebuffer{
		dev:    rp.dev,
		handle: framebuffer,
		image:  si,
	}, nil
}

// Destroy destroys the render pass.
func (rp *RenderPass) Destroy() {
	vk.DestroyRenderPass(rp.dev.handle, rp.handle, nil)
}

// Framebuffer satisfies renderer.Framebuffer.
type Framebuffer struct {
	dev    *Device
	handle vk.Framebuffer
	image  *SwapchainImage
}

// Destroy implements renderer.Destroyer
func (fb *Framebuffer) Destroy() {
	vk.DestroyFramebuffer(fb.dev.handle, fb.handle, nil)
}
