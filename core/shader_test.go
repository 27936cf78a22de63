// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/devblok/harness/core"
	"github.com/devblok/harness/utility/kar"
	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
)

type fakeShader struct {
	src       core.ShaderSource
	destroyed *int
}

func (s fakeShader) Name() string          { return s.src.Name }
func (s fakeShader) Type() core.ShaderType { return s.src.Type }
func (s fakeShader) Destroy()              { *s.destroyed++ }

func fakeCompiler(destroyed *int) core.Compiler {
	return func(src core.ShaderSource) (core.Shader, error) {
		if len(src.Code) == 0 {
			return nil, errors.Errorf("%s: empty", src.Name)
		}
		return fakeShader{src: src, destroyed: destroyed}, nil
	}
}

var testSources = []core.ShaderSource{
	{Name: "direct", Type: core.VertexShaderType, Code: []byte{1, 2, 3, 4}},
	{Name: "direct", Type: core.FragmentShaderType, Code: []byte{5, 6, 7, 8}},
}

func TestShaderContainer(t *testing.T) {
	c := qt.New(t)
	var destroyed int

	sc, err := core.NewShaderContainer(testSources, fakeCompiler(&destroyed))
	c.Assert(err, qt.IsNil)
	c.Assert(sc.Len(), qt.Equals, 2)

	vert, ok := sc.Get(core.VertexShaderType, "direct")
	c.Assert(ok, qt.Equals, true)
	c.Assert(vert.Type(), qt.Equals, core.VertexShaderType)

	_, ok = sc.Get(core.FragmentShaderType, "missing")
	c.Assert(ok, qt.Equals, false)

	_, err = sc.Lookup(core.FragmentShaderType, "missing")
	c.Assert(errors.Cause(err), qt.Equals, core.ErrShaderNotFound)
	c.Assert(err, qt.ErrorMatches, "missing.frag: core: shader not found")

	sc.Destroy()
	c.Assert(destroyed, qt.Equals, 2)
	c.Assert(sc.Len(), qt.Equals, 0)
}

func TestShaderContainerErrors(t *testing.T) {
	c := qt.New(t)
	var destroyed int

	sources := append([]core.ShaderSource{}, testSources...)
	sources = append(sources, core.ShaderSource{Name: "broken", Type: core.VertexShaderType})
	_, err := core.NewShaderContainer(sources, fakeCompiler(&destroyed))
	c.Assert(err, qt.ErrorMatches, "broken: empty")
	c.Assert(destroyed, qt.Equals, 2)

	destroyed = 0
	sources = append([]core.ShaderSource{}, testSources...)
	sources = append(sources, testSources[0])
	_, err = core.NewShaderContainer(sources, fakeCompiler(&destroyed))
	c.Assert(err, qt.ErrorMatches, `core: shader direct \(vert\) loaded twice`)
	c.Assert(destroyed, qt.Equals, 2)
}

func TestShaderTypeString(t *testing.T) {
	c := qt.New(t)
	c.Assert(core.VertexShaderType.String(), qt.Equals, "vert")
	c.Assert(core.FragmentShaderType.String(), qt.Equals, "frag")
	c.Assert(core.UnknownShaderType.String(), qt.Equals, "unknown")
}

// names flattens sources so they can be compared regardless of order.
func names(sources []core.ShaderSource) map[string]int {
	m := make(map[string]int)
	for _, s := range sources {
		m[s.Name+"."+s.Type.String()] = len(s.Code)
	}
	return m
}

var expectedShaders = map[string]int{
	"direct.vert": 8,
	"direct.frag": 4,
	"flat.frag":   8,
}

func TestDirectorySource(t *testing.T) {
	c := qt.New(t)

	sources, err := core.DirectorySource("testdata/shaders")
	c.Assert(err, qt.IsNil)
	c.Assert(names(sources), qt.DeepEquals, expectedShaders)

	_, err = core.DirectorySource("testdata/missing")
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestBoxSource(t *testing.T) {
	c := qt.New(t)

	sources, err := core.BoxSource(packr.NewBox("./testdata/shaders"))
	c.Assert(err, qt.IsNil)
	c.Assert(names(sources), qt.DeepEquals, expectedShaders)
}

func TestArchiveSource(t *testing.T) {
	c := qt.New(t)
	dir, err := ioutil.TempDir("", "coretest")
	c.Assert(err, qt.IsNil)
	defer os.RemoveAll(dir)

	builder, err := kar.NewBuilder(kar.Header{Author: "devblok", Version: 1})
	c.Assert(err, qt.IsNil)
	defer builder.Close()
	for _, file := range []string{"direct.vert.spv", "direct.frag.spv", "nested/flat.frag.spv", "direct.vert"} {
		code, err := ioutil.ReadFile(filepath.Join("testdata/shaders", file))
		c.Assert(err, qt.IsNil)
		c.Assert(builder.Add(file, bytes.NewReader(code)), qt.IsNil)
	}

	path := filepath.Join(dir, "shaders.kar")
	f, err := os.Create(path)
	c.Assert(err, qt.IsNil)
	_, err = builder.WriteTo(f)
	c.Assert(err, qt.IsNil)
	c.Assert(f.Close(), qt.IsNil)

	sources, err := core.ArchiveSource(path)
	c.Assert(err, qt.IsNil)
	c.Assert(names(sources), qt.DeepEquals, expectedShaders)

	_, err = core.ArchiveSource(filepath.Join("testdata/shaders", "direct.vert"))
	c.Assert(errors.Cause(err), qt.Equals, kar.ErrFileFormat)
}
