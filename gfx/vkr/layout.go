// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// pushConstant is the per draw call data, pushed before every draw.
type pushConstant struct {
	Model glm.Mat4
}

// NewFrameLayout creates the descriptor set layout of the per frame
// uniform data and the pipeline layout every pipeline is built with.
// Uniforms can then be bound before any pipeline is.
func NewFrameLayout(dev *Device) (*FrameLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}}
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var setLayout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(dev.handle, &dslci, nil, &setLayout)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateDescriptorSetLayout()")
	}

	pcr := []vk.PushConstantRange{{
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(pushConstant{})),
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}}
	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: uint32(len(pcr)),
		PPushConstantRanges:    pcr,
	}

	var pipelineLayout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(dev.handle, &plci, nil, &pipelineLayout)); err != nil {
		vk.DestroyDescriptorSetLayout(dev.handle, setLayout, nil)
		return nil, errors.Wrap(err, "vk.CreatePipelineLayout()")
	}

	return &FrameLayout{
		dev:            dev,
		setLayout:      setLayout,
		pipelineLayout: pipelineLayout,
	}, nil
}

// FrameLayout is shared by the uniform pool and every pipeline.
type FrameLayout struct {
	dev            *Device
	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
}

// Destroy destroys both layouts.
func (l *FrameLayout) Destroy() {
	vk.DestroyPipelineLayout(l.dev.handle, l.pipelineLayout, nil)
	vk.DestroyDescriptorSetLayout(l.dev.handle, l.setLayout, nil)
}
