// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"
)

// ErrShaderNotFound is returned by Lookup when a shader was not loaded.
var ErrShaderNotFound = errors.New("core: shader not found")

// ShaderType represents the type of shader thats loaded
type ShaderType int

// Identifies shader objects with their types
const (
	VertexShaderType ShaderType = iota
	FragmentShaderType
	UnknownShaderType
)

func (t ShaderType) String() string {
	switch t {
	case VertexShaderType:
		return "vert"
	case FragmentShaderType:
		return "frag"
	}
	return "unknown"
}

func shaderTypeOf(suffix string) ShaderType {
	switch suffix {
	case "vert":
		return VertexShaderType
	case "frag":
		return FragmentShaderType
	}
	return UnknownShaderType
}

// ShaderSource is compiled SPIR-V code waiting to become a Shader.
type ShaderSource struct {
	Name string
	Type ShaderType
	Code []byte
}

// Shader is a loaded shader module
type Shader interface {
	// Name is the file name without the type and extension
	Name() string

	// Type is the stage the shader is for
	Type() ShaderType

	// Destroy frees the shader module
	Destroy()
}

// Compiler turns a ShaderSource into a Shader for a particular device.
type Compiler func(ShaderSource) (Shader, error)

type shaderKey struct {
	typ  ShaderType
	name string
}

// NewShaderContainer compiles every source with compile. If any of them
// fails the ones already created are destroyed.
func NewShaderContainer(sources []ShaderSource, compile Compiler) (*ShaderContainer, error) {
	sc := &ShaderContainer{
		shaders: make(map[shaderKey]Shader, len(sources)),
	}
	for _, src := range sources {
		key := shaderKey{typ: src.Type, name: src.Name}
		if _, ok := sc.shaders[key]; ok {
			sc.Destroy()
			return nil, errors.Errorf("core: shader %s (%s) loaded twice", src.Name, src.Type)
		}
		shader, err := compile(src)
		if err != nil {
			sc.Destroy()
			return nil, err
		}
		sc.shaders[key] = shader
	}
	return sc, nil
}

// ShaderContainer holds the shaders by type and name.
type ShaderContainer struct {
	shaders map[shaderKey]Shader
}

// Get returns the shader of type t with the given name.
func (sc *ShaderContainer) Get(t ShaderType, name string) (Shader, bool) {
	s, ok := sc.shaders[shaderKey{typ: t, name: name}]
	return s, ok
}

// Lookup is Get for shaders that have to be there.
func (sc *ShaderContainer) Lookup(t ShaderType, name string) (Shader, error) {
	if s, ok := sc.Get(t, name); ok {
		return s, nil
	}
	return nil, errors.Wrapf(ErrShaderNotFound, "%s.%s", name, t)
}

// Len is the number of shaders loaded
func (sc *ShaderContainer) Len() int {
	return len(sc.shaders)
}

// Destroy destroys all the shaders
func (sc *ShaderContainer) Destroy() {
	for key, s := range sc.shaders {
		s.Destroy()
		delete(sc.shaders, key)
	}
}
