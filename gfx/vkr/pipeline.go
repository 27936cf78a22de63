// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/harness/core"
	"github.com/devblok/harness/model"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// NewPipelineFactory creates a factory of pipelines for subpass 0 of pass.
func NewPipelineFactory(dev *Device, pass *RenderPass, layout *FrameLayout) (*PipelineFactory, error) {
	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}

	var pipelineCache vk.PipelineCache
	if err := vk.Error(vk.CreatePipelineCache(dev.handle, &pcci, nil, &pipelineCache)); err != nil {
		return nil, errors.Wrap(err, "vk.CreatePipelineCache()")
	}
	return &PipelineFactory{
		dev:    dev,
		pass:   pass,
		layout: layout,
		cache:  pipelineCache,
	}, nil
}

// PipelineFactory builds graphics pipelines from shader pairs.
type PipelineFactory struct {
	dev    *Device
	pass   *RenderPass
	layout *FrameLayout
	cache  vk.PipelineCache
}

// Build creates a pipeline drawing model.Vertex triangle lists with
// vert and frag. Viewport and scissor are dynamic, so the pipeline
// outlives swapchain rebuilds.
func (pf *PipelineFactory) Build(vert, frag core.Shader) (*Pipeline, error) {
	vs, ok := vert.(*Shader)
	if !ok || vs.typ != core.VertexShaderType {
		return nil, errors.Errorf("vkr: %T %q is not a vertex shader module", vert, vert.Name())
	}
	fs, ok := frag.(*Shader)
	if !ok || fs.typ != core.FragmentShaderType {
		return nil, errors.Errorf("vkr: %T %q is not a fragment shader module", frag, frag.Name())
	}

	stages := []vk.PipelineShaderStageCreateInfo{{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vs.stage,
		Module: vs.module,
		PName:  "main\x00",
	}, {
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  fs.stage,
		Module: fs.module,
		PName:  "main\x00",
	}}

	vertexAttributeDescriptions := model.VertexAttributeDescriptions()
	vertexBindingDescriptions := model.VertexBindingDescriptions()

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexAttributeDescriptionCount: uint32(len(vertexAttributeDescriptions)),
			PVertexAttributeDescriptions:    vertexAttributeDescriptions,
			VertexBindingDescriptionCount:   uint32(len(vertexBindingDescriptions)),
			PVertexBindingDescriptions:      vertexBindingDescriptions,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1.0,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				ColorWriteMask: 0xF,
				BlendEnable:    vk.False,
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateScissor,
				vk.DynamicStateViewport,
			},
		},
		Layout:     pf.layout.pipelineLayout,
		RenderPass: pf.pass.handle,
		Subpass:    0,
	}}

	pipelines := make([]vk.Pipeline, len(gpci))
	if err := vk.Error(vk.CreateGraphicsPipelines(pf.dev.handle, pf.cache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateGraphicsPipelines()")
	}
	return &Pipeline{
		dev:    pf.dev,
		handle: pipelines[0],
		name:   vs.name + "/" + fs.name,
	}, nil
}

// Destroy destroys the pipeline cache.
func (pf *PipelineFactory) Destroy() {
	vk.DestroyPipelineCache(pf.dev.handle, pf.cache, nil)
}

// Pipeline is a graphics pipeline, it satisfies renderer.Pipeline.
type Pipeline struct {
	dev    *Device
	handle vk.Pipeline
	name   string
}

func (p *Pipeline) String() string {
	return p.name
}

// Destroy destroys the pipeline.
func (p *Pipeline) Destroy() {
	vk.DestroyPipeline(p.dev.handle, p.handle, nil)
}
