// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model holds the vertex layout and the meshes drawn by the harness.
package model

import (
	"unsafe"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"
)

// Vertex is a model vertex
type Vertex struct {
	Pos glm.Vec3
}

// Uniform is the per frame data read by the vertex shader
type Uniform struct {
	Transformation glm.Mat4
}

// VertexBindingDescriptions return Vulkan Vertex descriptors
func VertexBindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}}
}

// VertexAttributeDescriptions return Vulkan attribute descriptors
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{{
		Binding:  0,
		Location: 0,
		Format:   vk.FormatR32g32b32Sfloat,
		Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
	}}
}

// Star is a two triangle star, plus one triangle to cover the middle.
func Star() []Vertex {
	return []Vertex{
		{Pos: glm.Vec3{-0.75, 1.0, 0.5}},
		{Pos: glm.Vec3{0.0, -1.0, 0.5}},
		{Pos: glm.Vec3{0.4, 0.0, 0.5}},
		{Pos: glm.Vec3{-1.0, -0.5, 0.5}},
		{Pos: glm.Vec3{0.2, -0.5, 0.5}},
		{Pos: glm.Vec3{0.75, 1.0, 0.5}},
		{Pos: glm.Vec3{0.2, -0.5, 0.5}},
		{Pos: glm.Vec3{1.0, -0.5, 0.5}},
		{Pos: glm.Vec3{0.4, 0.0, 0.5}},
	}
}
