// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"io/ioutil"
	"sort"

	"github.com/devblok/harness/utility/kar"
	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// DirectorySource reads every compiled shader found under dir.
func DirectorySource(dir string) ([]ShaderSource, error) {
	files, _, err := loadShaderFilesFromDirectory(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "shader directory %s", dir)
	}

	sources := make([]ShaderSource, 0, len(files))
	for _, file := range files {
		code, err := ioutil.ReadFile(file)
		if err != nil {
			return nil, err
		}
		name, t, _ := parseShaderFileName(file)
		sources = append(sources, ShaderSource{Name: name, Type: t, Code: code})
	}
	return sources, nil
}

// ArchiveSource reads every compiled shader from a memory mapped kar archive.
func ArchiveSource(path string) ([]ShaderSource, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "shader archive %s", path)
	}
	defer r.Close()

	ar, err := kar.Open(r)
	if err != nil {
		return nil, errors.Wrapf(err, "shader archive %s", path)
	}

	var sources []ShaderSource
	for _, file := range ar.Names() {
		name, t, ok := parseShaderFileName(file)
		if !ok {
			continue
		}
		code, err := ar.ReadAll(file)
		if err != nil {
			return nil, err
		}
		sources = append(sources, ShaderSource{Name: name, Type: t, Code: code})
	}
	return sources, nil
}

// BoxSource reads every compiled shader packed into box.
func BoxSource(box packr.Box) ([]ShaderSource, error) {
	files := box.List()
	sort.Strings(files)

	var sources []ShaderSource
	for _, file := range files {
		name, t, ok := parseShaderFileName(file)
		if !ok {
			continue
		}
		code, err := box.Find(file)
		if err != nil {
			return nil, errors.Wrapf(err, "shader box %s", file)
		}
		sources = append(sources, ShaderSource{Name: name, Type: t, Code: code})
	}
	return sources, nil
}
