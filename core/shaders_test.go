// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/devblok/roast/core"
	"github.com/devblok/roast/utility/kar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shaderFiles = map[string][]byte{
	"mesh.vert.spv": {3, 2, 35, 7},
	"mesh.frag.spv": {3, 2, 35, 7, 1, 0, 0, 0},
	"mesh.vert":     []byte("#version 450"),
	"readme.txt":    []byte("not a shader"),
	"a.b.c.spv":     {0, 0, 0, 0},
}

func TestDirectoryShaderSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))
	for name, data := range shaderFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", name), data, 0644))
	}

	shaders, err := core.DirectoryShaderSource(dir).Shaders()
	require.NoError(t, err)
	require.Len(t, shaders, 2)

	assert.Equal(t, "mesh", shaders[0].Name)
	assert.Equal(t, core.VertexShaderType, shaders[0].Type)
	assert.Equal(t, shaderFiles["mesh.vert.spv"], shaders[0].Code)
	assert.Equal(t, core.FragmentShaderType, shaders[1].Type)
}

func TestDirectoryShaderSourceMissing(t *testing.T) {
	_, err := core.DirectoryShaderSource(filepath.Join(t.TempDir(), "nope")).Shaders()
	assert.Error(t, err)
}

func TestArchiveShaderSource(t *testing.T) {
	builder := kar.NewBuilder(kar.Header{})
	for name, data := range shaderFiles {
		require.NoError(t, builder.Add(name, bytes.NewReader(data)))
	}

	path := filepath.Join(t.TempDir(), "shaders.kar")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = builder.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	shaders, err := core.ArchiveShaderSource(path).Shaders()
	require.NoError(t, err)
	require.Len(t, shaders, 2)
	assert.Equal(t, core.VertexShaderType, shaders[0].Type)
	assert.Equal(t, shaderFiles["mesh.frag.spv"], shaders[1].Code)
}

func TestNewShaderSource(t *testing.T) {
	assert.Equal(t, core.DirectoryShaderSource("./shaders"), core.NewShaderSource(core.DefaultConfiguration().Renderer))

	cfg := core.DefaultConfiguration().Renderer
	cfg.ShaderPack = "pack.kar"
	assert.Equal(t, core.ArchiveShaderSource("pack.kar"), core.NewShaderSource(cfg))
}
