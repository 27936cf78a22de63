// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/harness/core"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// NewShader creates a shader module from compiled SPIR-V.
func NewShader(dev *Device, src core.ShaderSource) (*Shader, error) {
	if len(src.Code) == 0 || len(src.Code)%4 != 0 {
		return nil, errors.Errorf("vkr: shader %s (%s) is not SPIR-V, %d bytes", src.Name, src.Type, len(src.Code))
	}
	stage, err := shaderStage(src.Type)
	if err != nil {
		return nil, err
	}

	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(src.Code)),
		PCode:    core.SliceUint32(src.Code),
	}

	var module vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(dev.handle, &smci, nil, &module)); err != nil {
		return nil, errors.Wrapf(err, "vk.CreateShaderModule(%s %s)", src.Name, src.Type)
	}

	return &Shader{
		dev:    dev,
		module: module,
		stage:  stage,
		name:   src.Name,
		typ:    src.Type,
	}, nil
}

// Compiler returns a core.Compiler creating shader modules on dev.
func Compiler(dev *Device) core.Compiler {
	return func(src core.ShaderSource) (core.Shader, error) {
		s, err := NewShader(dev, src)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Shader is a vulkan shader module, it satisfies core.Shader.
type Shader struct {
	dev    *Device
	module vk.ShaderModule
	stage  vk.ShaderStageFlagBits
	name   string
	typ    core.ShaderType
}

// Name implements core.Shader
func (s *Shader) Name() string {
	return s.name
}

// Type implements core.Shader
func (s *Shader) Type() core.ShaderType {
	return s.typ
}

// Destroy implements core.Shader
func (s *Shader) Destroy() {
	vk.DestroyShaderModule(s.dev.handle, s.module, nil)
}

func shaderStage(t core.ShaderType) (vk.ShaderStageFlagBits, error) {
	switch t {
	case core.VertexShaderType:
		return vk.ShaderStageVertexBit, nil
	case core.FragmentShaderType:
		return vk.ShaderStageFragmentBit, nil
	}
	return 0, errors.Errorf("vkr: unsupported shader type %s", t)
}
