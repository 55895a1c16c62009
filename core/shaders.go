// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devblok/roast/utility/kar"
	vk "github.com/devblok/vulkan"
	"github.com/gobuffalo/packd"
	"github.com/gobuffalo/packr"
	"golang.org/x/exp/mmap"
)

const shaderSuffix = ".spv"

// Name of the shader program every pipeline is built from.
const meshShaderName = "mesh"

// ShaderFile is one compiled SPIR-V module.
type ShaderFile struct {
	Name string
	Type ShaderType
	Code []byte
}

// ShaderSource provides compiled shaders.
type ShaderSource interface {
	Shaders() ([]ShaderFile, error)
}

// parseShaderName splits a file name of the form name.type.spv.
// It is important that the file name does not contain more than two dots,
// the first is always the name of the shader, second is type, and the third one
// ensures that the shader is compiled (only compiled shaders have an .spv extension).
func parseShaderName(file string) (string, ShaderType, bool) {
	base := path.Base(filepath.ToSlash(file))
	if !strings.HasSuffix(base, shaderSuffix) {
		return "", UnknownShaderType, false
	}
	nodes := strings.Split(strings.TrimSuffix(base, shaderSuffix), ".")
	if len(nodes) != 2 {
		return "", UnknownShaderType, false
	}
	switch nodes[1] {
	case "vert":
		return nodes[0], VertexShaderType, true
	case "frag":
		return nodes[0], FragmentShaderType, true
	}
	return "", UnknownShaderType, false
}

func sortShaders(files []ShaderFile) []ShaderFile {
	sort.Slice(files, func(i, j int) bool {
		if files[i].Name != files[j].Name {
			return files[i].Name < files[j].Name
		}
		return files[i].Type < files[j].Type
	})
	return files
}

// DirectoryShaderSource loads every compiled shader below a directory.
type DirectoryShaderSource string

// Shaders implements interface
func (d DirectoryShaderSource) Shaders() ([]ShaderFile, error) {
	var shaders []ShaderFile
	if err := filepath.Walk(string(d), func(file string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name, shaderType, ok := parseShaderName(f.Name())
		if f.IsDir() || !ok {
			return nil
		}
		code, err := ioutil.ReadFile(file)
		if err != nil {
			return err
		}
		shaders = append(shaders, ShaderFile{Name: name, Type: shaderType, Code: code})
		return nil
	}); err != nil {
		return nil, err
	}
	return sortShaders(shaders), nil
}

// BoxShaderSource loads shaders from a packr box, which embeds them into
// the binary when built with the packr tool.
type BoxShaderSource struct {
	Box packr.Box
}

// Shaders implements interface
func (b BoxShaderSource) Shaders() ([]ShaderFile, error) {
	var shaders []ShaderFile
	if err := b.Box.Walk(func(file string, f packd.File) error {
		name, shaderType, ok := parseShaderName(file)
		if !ok {
			return nil
		}
		code, err := ioutil.ReadAll(f)
		if err != nil {
			return err
		}
		shaders = append(shaders, ShaderFile{Name: name, Type: shaderType, Code: code})
		return nil
	}); err != nil {
		return nil, err
	}
	return sortShaders(shaders), nil
}

// ArchiveShaderSource memory maps a kar shader pack.
type ArchiveShaderSource string

// Shaders implements interface
func (a ArchiveShaderSource) Shaders() ([]ShaderFile, error) {
	r, err := mmap.Open(string(a))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	ar, err := kar.Open(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", string(a), err.Error())
	}

	var shaders []ShaderFile
	for _, file := range ar.Names() {
		name, shaderType, ok := parseShaderName(file)
		if !ok {
			continue
		}
		code, err := ar.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %s", file, err.Error())
		}
		shaders = append(shaders, ShaderFile{Name: name, Type: shaderType, Code: code})
	}
	return sortShaders(shaders), nil
}

// NewShaderSource picks the pack when configured, the directory otherwise.
func NewShaderSource(cfg RendererConfiguration) ShaderSource {
	if cfg.ShaderPack != "" {
		return ArchiveShaderSource(cfg.ShaderPack)
	}
	return DirectoryShaderSource(cfg.ShaderDirectory)
}

// findProgram picks the vertex and fragment stage of the named program.
func findProgram(files []ShaderFile, name string) (vert, frag ShaderFile, err error) {
	var foundVert, foundFrag bool
	for _, f := range files {
		if f.Name != name {
			continue
		}
		switch f.Type {
		case VertexShaderType:
			vert, foundVert = f, true
		case FragmentShaderType:
			frag, foundFrag = f, true
		}
	}
	if !foundVert || !foundFrag {
		return vert, frag, fmt.Errorf("shader program %q needs both a vertex and a fragment stage", name)
	}
	return vert, frag, nil
}

// NewVulkanShader creates a Vulkan specific shader wrapper
func NewVulkanShader(file ShaderFile, device vk.Device) (*VulkanShader, error) {
	if len(file.Code) == 0 || len(file.Code)%4 != 0 {
		return nil, errors.New("shader " + file.Name + " is not valid SPIR-V")
	}

	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(file.Code)),
		PCode:    SliceUint32(file.Code),
	}

	var shader vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(device, &smci, nil, &shader)); err != nil {
		return nil, fmt.Errorf("vk.CreateShaderModule(type %d): %s", file.Type, err.Error())
	}

	return &VulkanShader{
		shader:     shader,
		shaderType: file.Type,
		name:       file.Name,
		device:     device,
	}, nil
}

// VulkanShader is a Vulkan specific shader
type VulkanShader struct {
	name       string
	shaderType ShaderType
	device     vk.Device
	shader     vk.ShaderModule
}

// Type returns the shader stage
func (v *VulkanShader) Type() ShaderType {
	return v.shaderType
}

// ShaderModule is an accessor to the internal vk.ShaderModule
func (v *VulkanShader) ShaderModule() vk.ShaderModule {
	return v.shader
}

// Name of the program this stage belongs to
func (v *VulkanShader) Name() string {
	return v.name
}

// stageInfo describes the shader as a pipeline stage.
func (v *VulkanShader) stageInfo() (vk.PipelineShaderStageCreateInfo, error) {
	var stage vk.ShaderStageFlagBits
	switch v.shaderType {
	case VertexShaderType:
		stage = vk.ShaderStageVertexBit
	case FragmentShaderType:
		stage = vk.ShaderStageFragmentBit
	default:
		return vk.PipelineShaderStageCreateInfo{}, errors.New("unsupported shader type attempted creation")
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: v.shader,
		PName:  safeString("main"),
	}, nil
}

// Destroy releases the shader module
func (v *VulkanShader) Destroy() {
	vk.DestroyShaderModule(v.device, v.shader, nil)
}
