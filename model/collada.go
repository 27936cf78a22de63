// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"bytes"

	"github.com/devblok/harness/util/collada"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// ErrNoGeometry is returned for Collada files without any triangles.
var ErrNoGeometry = errors.New("model: no triangle geometry")

// ImportCollada reads given file and converts the first Collada
// geometry into a triangle list.
func ImportCollada(fileContents []byte) ([]Vertex, error) {
	doc, err := collada.Decode(bytes.NewReader(fileContents))
	if err != nil {
		return nil, err
	}
	if len(doc.Geometries) == 0 {
		return nil, ErrNoGeometry
	}

	mesh := &doc.Geometries[0].Mesh
	if len(mesh.Triangles.Index) == 0 {
		return nil, ErrNoGeometry
	}

	offset, source, err := findPositions(mesh)
	if err != nil {
		return nil, err
	}

	stride := mesh.Triangles.Stride()
	if len(mesh.Triangles.Index)%(stride*3) != 0 {
		return nil, errors.Errorf("model: %d indices do not form triangles of stride %d", len(mesh.Triangles.Index), stride)
	}

	floats := source.Floats.Data
	elem := source.Stride()
	vertices := make([]Vertex, 0, len(mesh.Triangles.Index)/stride)
	for idx := int(offset); idx < len(mesh.Triangles.Index); idx += stride {
		at := mesh.Triangles.Index[idx] * elem
		if at < 0 || at+3 > len(floats) {
			return nil, errors.Errorf("model: position %d out of range", mesh.Triangles.Index[idx])
		}
		vertices = append(vertices, Vertex{
			Pos: glm.Vec3{floats[at], floats[at+1], floats[at+2]},
		})
	}
	return vertices, nil
}

// findPositions follows the VERTEX input of the triangles to the
// positions source, returning the offset of the position index.
func findPositions(mesh *collada.Mesh) (uint, *collada.Source, error) {
	for _, in := range mesh.Triangles.Inputs {
		if in.Semantic != collada.SemanticVertex {
			continue
		}
		for _, vin := range mesh.Vertices.Inputs {
			if vin.Semantic != collada.SemanticPosition {
				continue
			}
			if src, ok := mesh.SourceByRef(vin.Source); ok {
				return in.Offset, src, nil
			}
			return 0, nil, errors.Errorf("model: source %s not found", vin.Source)
		}
	}
	return 0, nil, errors.New("model: positions source not found")
}
