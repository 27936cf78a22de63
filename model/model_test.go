// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model_test

import (
	"testing"

	"github.com/devblok/harness/model"
	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
)

func TestStar(t *testing.T) {
	c := qt.New(t)
	star := model.Star()
	c.Assert(star, qt.HasLen, 9)
	c.Assert(star[0].Pos, qt.Equals, glm.Vec3{-0.75, 1.0, 0.5})
	c.Assert(star[8].Pos, qt.Equals, glm.Vec3{0.4, 0.0, 0.5})
}

func TestVertexDescriptions(t *testing.T) {
	c := qt.New(t)
	bindings := model.VertexBindingDescriptions()
	c.Assert(bindings, qt.HasLen, 1)
	c.Assert(bindings[0].Stride, qt.Equals, uint32(12))

	attributes := model.VertexAttributeDescriptions()
	c.Assert(attributes, qt.HasLen, 1)
	c.Assert(attributes[0].Format, qt.Equals, vk.FormatR32g32b32Sfloat)
	c.Assert(attributes[0].Offset, qt.Equals, uint32(0))
}

func TestTransform(t *testing.T) {
	c := qt.New(t)
	c.Assert(model.Identity().Matrix(), qt.Equals, glm.Ident4())

	m := model.AtPosition(glm.Vec3{1, 2, 3}).Matrix()
	c.Assert(m.Mul4x1(glm.Vec4{0, 0, 0, 1}), qt.Equals, glm.Vec4{1, 2, 3, 1})

	tr := model.Identity()
	tr.Scale = glm.Vec3{2, 2, 2}
	tr.Rotation = glm.QuatRotate(glm.DegToRad(90), glm.Vec3{0, 0, 1})
	tr.Position = glm.Vec3{1, 0, 0}
	got := tr.Matrix().Mul4x1(glm.Vec4{1, 0, 0, 1})
	c.Assert(got.ApproxEqualThreshold(glm.Vec4{1, 2, 0, 1}, 1e-5), qt.Equals, true, qt.Commentf("%v", got))
}

const quadDocument = `<COLLADA>
  <library_geometries>
    <geometry id="Quad-mesh" name="Quad">
      <mesh>
        <source id="Quad-mesh-positions">
          <float_array id="Quad-mesh-positions-array" count="12">-1 -1 0 1 -1 0 1 1 0 -1 1 0</float_array>
          <technique_common><accessor source="#Quad-mesh-positions-array" count="4" stride="3"/></technique_common>
        </source>
        <source id="Quad-mesh-normals">
          <float_array id="Quad-mesh-normals-array" count="3">0 0 1</float_array>
        </source>
        <vertices id="Quad-mesh-vertices">
          <input semantic="POSITION" source="#Quad-mesh-positions"/>
        </vertices>
        <triangles count="2">
          <input semantic="VERTEX" source="#Quad-mesh-vertices" offset="0"/>
          <input semantic="NORMAL" source="#Quad-mesh-normals" offset="1"/>
          <p>0 0 1 0 2 0 2 0 3 0 0 0</p>
        </triangles>
      </mesh>
    </geometry>
  </library_geometries>
</COLLADA>`

func TestImportCollada(t *testing.T) {
	c := qt.New(t)
	vertices, err := model.ImportCollada([]byte(quadDocument))
	c.Assert(err, qt.IsNil)
	c.Assert(vertices, qt.DeepEquals, []model.Vertex{
		{Pos: glm.Vec3{-1, -1, 0}},
		{Pos: glm.Vec3{1, -1, 0}},
		{Pos: glm.Vec3{1, 1, 0}},
		{Pos: glm.Vec3{1, 1, 0}},
		{Pos: glm.Vec3{-1, 1, 0}},
		{Pos: glm.Vec3{-1, -1, 0}},
	})
}

func TestImportColladaErrors(t *testing.T) {
	c := qt.New(t)

	_, err := model.ImportCollada([]byte(`<COLLADA><library_geometries/></COLLADA>`))
	c.Assert(err, qt.Equals, model.ErrNoGeometry)

	_, err = model.ImportCollada([]byte(`not xml`))
	c.Assert(err, qt.Not(qt.IsNil))

	broken := []byte(`<COLLADA><library_geometries><geometry><mesh>
		<vertices id="v"><input semantic="POSITION" source="#missing"/></vertices>
		<triangles count="1"><input semantic="VERTEX" source="#v" offset="0"/><p>0 1 2</p></triangles>
	</mesh></geometry></library_geometries></COLLADA>`)
	_, err = model.ImportCollada(broken)
	c.Assert(err, qt.ErrorMatches, "model: source #missing not found")
}
