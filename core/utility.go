// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"os"
	"path/filepath"
	"strings"
	"unsafe"
)

const shaderSuffix = ".spv"

// parseShaderFileName splits a compiled shader file name, it is important that
// the file name does not contain more than two dots, the first is always the name
// of the shader, second is type, and the third one ensures that the shader
// is compiled (only compiled shaders have an .spv extension).
func parseShaderFileName(file string) (string, ShaderType, bool) {
	file = filepath.Base(filepath.ToSlash(file))
	if !strings.HasSuffix(file, shaderSuffix) {
		return "", UnknownShaderType, false
	}

	nodes := strings.Split(strings.TrimSuffix(file, shaderSuffix), ".")
	if len(nodes) != 2 || nodes[0] == "" {
		return "", UnknownShaderType, false
	}

	t := shaderTypeOf(nodes[1])
	if t == UnknownShaderType {
		return "", UnknownShaderType, false
	}
	return nodes[0], t, true
}

// loadShaderFilesFromDirectory get the list of files that are compiled shaders.
// All shader files will be loaded.
func loadShaderFilesFromDirectory(dir string) ([]string, []ShaderType, error) {
	var (
		shaders     []string
		shaderTypes []ShaderType
	)
	if err := filepath.Walk(dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if f.IsDir() {
			return nil
		}
		if _, t, ok := parseShaderFileName(f.Name()); ok {
			shaders = append(shaders, path)
			shaderTypes = append(shaderTypes, t)
		}
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return shaders, shaderTypes, nil
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}

// SliceUint32 reslices bytes into a uint32, that is used
// to sumbit vulkan shaders for processing
func SliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}
