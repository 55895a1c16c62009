package model_test

import (
	"testing"

	"github.com/devblok/roast/model"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadDocument = `<?xml version="1.0" encoding="utf-8"?>
<COLLADA xmlns="http://www.collada.org/2005/11/COLLADASchema" version="1.4.1">
  <library_geometries>
    <geometry id="Plane-mesh" name="Plane">
      <mesh>
        <source id="Plane-mesh-positions">
          <float_array id="Plane-mesh-positions-array" count="12">-1 -1 0 1 -1 0 -1 1 0 1 1 0</float_array>
          <technique_common>
            <accessor source="#Plane-mesh-positions-array" count="4" stride="3"/>
          </technique_common>
        </source>
        <source id="Plane-mesh-map-0">
          <float_array id="Plane-mesh-map-0-array" count="8">0 0 1 0 0 1 1 1</float_array>
          <technique_common>
            <accessor source="#Plane-mesh-map-0-array" count="4" stride="2"/>
          </technique_common>
        </source>
        <vertices id="Plane-mesh-vertices">
          <input semantic="POSITION" source="#Plane-mesh-positions"/>
        </vertices>
        <triangles material="Material-material" count="2">
          <input semantic="VERTEX" source="#Plane-mesh-vertices" offset="0"/>
          <input semantic="TEXCOORD" source="#Plane-mesh-map-0" offset="1" set="0"/>
          <p>1 1 2 2 0 0 1 1 3 3 2 2</p>
        </triangles>
      </mesh>
    </geometry>
  </library_geometries>
</COLLADA>`

func TestImportColladaTextured(t *testing.T) {
	mesh, err := model.ImportCollada([]byte(quadDocument), glm.Vec4{1, 1, 1, 1})
	require.NoError(t, err)

	assert.Equal(t, model.VertexTypeTex1, mesh.VertexType)
	require.Len(t, mesh.Vertices, 6)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, mesh.Indices)

	assert.Equal(t, glm.Vec3{1, -1, 0}, mesh.Vertices[0].Pos)
	assert.Equal(t, glm.Vec4{1, 1, 0, 0}, mesh.Vertices[0].ColorTex)
	assert.Equal(t, glm.Vec3{-1, 1, 0}, mesh.Vertices[1].Pos)
	assert.Equal(t, glm.Vec4{0, 0, 0, 0}, mesh.Vertices[1].ColorTex)
}

func TestImportColladaColored(t *testing.T) {
	doc := `<COLLADA><library_geometries><geometry id="g"><mesh>
		<source id="p"><float_array id="pa" count="9">0 0 0 1 0 0 0 1 0</float_array>
		<technique_common><accessor count="3" stride="3"/></technique_common></source>
		<triangles count="1"><input semantic="VERTEX" source="#p" offset="0"/><p>0 1 2</p></triangles>
	</mesh></geometry></library_geometries></COLLADA>`

	color := glm.Vec4{1, 1, 0, 1}
	mesh, err := model.ImportCollada([]byte(doc), color)
	require.NoError(t, err)

	assert.Equal(t, model.VertexTypeColor, mesh.VertexType)
	require.Len(t, mesh.Vertices, 3)
	for _, v := range mesh.Vertices {
		assert.Equal(t, color, v.ColorTex)
	}
	assert.Equal(t, glm.Vec3{0, 1, 0}, mesh.Vertices[2].Pos)
}

func TestImportColladaErrors(t *testing.T) {
	_, err := model.ImportCollada([]byte(`<COLLADA></COLLADA>`), glm.Vec4{})
	assert.Equal(t, model.ErrNoGeometry, err)

	outOfRange := `<COLLADA><library_geometries><geometry><mesh>
		<source id="p"><float_array count="3">0 0 0</float_array>
		<technique_common><accessor count="1" stride="3"/></technique_common></source>
		<triangles count="1"><input semantic="VERTEX" source="#p" offset="0"/><p>0 0 5</p></triangles>
	</mesh></geometry></library_geometries></COLLADA>`
	_, err = model.ImportCollada([]byte(outOfRange), glm.Vec4{})
	assert.Error(t, err)

	_, err = model.ImportCollada([]byte(`not xml`), glm.Vec4{})
	assert.Error(t, err)
}
