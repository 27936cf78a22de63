// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	glm "github.com/go-gl/mathgl/mgl32"
)

// Transform places a model in the world
type Transform struct {
	Position glm.Vec3
	Rotation glm.Quat
	Scale    glm.Vec3
}

// Identity leaves the model where it was modelled.
func Identity() Transform {
	return Transform{
		Rotation: glm.QuatIdent(),
		Scale:    glm.Vec3{1, 1, 1},
	}
}

// AtPosition moves an otherwise untransformed model to position.
func AtPosition(position glm.Vec3) Transform {
	t := Identity()
	t.Position = position
	return t
}

// Matrix scales, then rotates, then translates.
func (t Transform) Matrix() glm.Mat4 {
	return glm.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).
		Mul4(t.Rotation.Normalize().Mat4()).
		Mul4(glm.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}
