package model

import (
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/devblok/roast/util/collada"
	glm "github.com/go-gl/mathgl/mgl32"
)

// ErrNoGeometry is returned when a Collada document holds no triangles.
var ErrNoGeometry = errors.New("collada document has no triangle geometry")

// Mesh is triangle geometry ready to be uploaded.
type Mesh struct {
	Vertices   []Vertex
	Indices    []uint32
	VertexType VertexType
}

// ImportCollada reads the first geometry of a Collada (.dae) document.
// Every triangle corner becomes its own vertex. When the triangles carry a
// TEXCOORD input the vertices are Tex1, otherwise they take the given colour.
func ImportCollada(fileContents []byte, color glm.Vec4) (Mesh, error) {
	var doc collada.Collada
	if err := xml.Unmarshal(fileContents, &doc); err != nil {
		return Mesh{}, err
	}
	if len(doc.Geometries) == 0 {
		return Mesh{}, ErrNoGeometry
	}

	mesh := doc.Geometries[0].Mesh
	tris := mesh.Triangles
	if len(tris.Index) == 0 {
		return Mesh{}, ErrNoGeometry
	}

	vin, ok := tris.Input("VERTEX")
	if !ok {
		return Mesh{}, errors.New("triangles have no VERTEX input")
	}
	positions, err := positionSource(&mesh, vin)
	if err != nil {
		return Mesh{}, err
	}

	out := Mesh{VertexType: VertexTypeColor}
	var texcoords collada.Source
	tin, hasTex := tris.Input("TEXCOORD")
	if hasTex {
		if texcoords, hasTex = mesh.Lookup(tin.Source); hasTex {
			out.VertexType = VertexTypeTex1
		}
	}

	stride := tris.Stride()
	corners := len(tris.Index) / stride
	out.Vertices = make([]Vertex, 0, corners)
	out.Indices = make([]uint32, 0, corners)
	for c := 0; c < corners; c++ {
		entry := tris.Index[c*stride : c*stride+stride]

		pos := positions.Element(entry[vin.Offset])
		if len(pos) < 3 {
			return Mesh{}, fmt.Errorf("position index %d out of range", entry[vin.Offset])
		}
		vert := Vertex{Pos: glm.Vec3{pos[0], pos[1], pos[2]}, ColorTex: color}

		if hasTex {
			uv := texcoords.Element(entry[tin.Offset])
			if len(uv) < 2 {
				return Mesh{}, fmt.Errorf("texcoord index %d out of range", entry[tin.Offset])
			}
			// Collada has v pointing up.
			vert.ColorTex = glm.Vec4{uv[0], 1 - uv[1], 0, 0}
		}

		out.Vertices = append(out.Vertices, vert)
		out.Indices = append(out.Indices, uint32(c))
	}

	return out, nil
}

// positionSource resolves the VERTEX input, which points either at the
// <vertices> element or straight at a source.
func positionSource(mesh *collada.Mesh, vin collada.Input) (collada.Source, error) {
	if src, ok := mesh.Lookup(vin.Source); ok {
		return src, nil
	}
	for _, in := range mesh.Vertices.Inputs {
		if in.Semantic == "POSITION" {
			if src, ok := mesh.Lookup(in.Source); ok {
				return src, nil
			}
		}
	}
	return collada.Source{}, fmt.Errorf("position source for %s not found", vin.Source)
}
