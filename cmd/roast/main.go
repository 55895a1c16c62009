// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"runtime/pprof"

	"github.com/devblok/roast/core"
	"github.com/devblok/roast/ffi"
	"github.com/devblok/roast/host"
	"github.com/devblok/roast/model"
	"github.com/devblok/roast/renderer"
	"github.com/devblok/roast/resource"
	"github.com/devblok/roast/session"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/envy"
	"github.com/gobuffalo/packr"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	configFile = flag.String("config", "", "TOML configuration file")
	modelFile  = flag.String("model", "", "Collada (.dae) model to show, a cube when empty")
	texture    = flag.String("texture", "", "Image to texture the model with")
	cpuProfile = flag.String("cpuprof", "", "Profile CPU usage to file")
	verbose    = flag.Bool("v", false, "Log debug messages")
)

// Shaders are embedded when built with packr, read from ../../shaders otherwise.
var shaderBox = packr.NewBox("../../shaders")

func main() {
	os.Exit(roast())
}

// roast runs the viewer and returns the exit code, after every deferred
// cleanup has run.
func roast() int {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not read .env")
	}
	envy.Reload()

	cfg, err := core.LoadConfiguration(*configFile)
	if err != nil {
		log.WithError(err).Error("configuration")
		return 1
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.WithError(err).Error("cpu profile")
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.WithError(err).Error("cpu profile")
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	assets, err := readAssets()
	if err != nil {
		log.WithError(err).Error("assets")
		return 1
	}

	opts := []host.Option{host.WithConfiguration(cfg)}
	if !cfg.Renderer.Headless && cfg.Renderer.ShaderPack == "" && envy.Get(core.EnvShaders, "") == "" {
		opts = append(opts, host.WithFactory(host.NewVulkanFactory(core.BoxShaderSource{Box: shaderBox})))
	}
	backend := host.New(opts...)
	defer backend.Destroy()

	if err := run(backend, cfg.Renderer.Settings, assets); err != nil {
		log.WithFields(log.Fields{
			"kind":  err.Kind,
			"error": err.Error(),
		}).Error("roast exited")
		backend.FreeError(err)
		return 1
	}
	return 0
}

// assets are read before any session exists.
type assets struct {
	mesh    model.Mesh
	texture []byte
}

func readAssets() (assets, error) {
	a := assets{mesh: cube()}
	if *texture != "" {
		data, err := ioutil.ReadFile(*texture)
		if err != nil {
			return a, err
		}
		a.texture = data
	}
	if *modelFile != "" {
		data, err := ioutil.ReadFile(*modelFile)
		if err != nil {
			return a, err
		}
		if a.mesh, err = model.ImportCollada(data, glm.Vec4{0.8, 0.8, 0.8, 1}); err != nil {
			return a, err
		}
	}
	return a, nil
}

func run(backend *host.Backend, settings core.RendererSettings, a assets) *ffi.Error {
	h, err := backend.Init([]byte("roast"), []byte("0.1.0"), settings)
	if err != nil {
		return err
	}

	var tex ffi.Option[resource.TextureID]
	if a.texture != nil {
		id, err := backend.CreateTexture(h, a.texture, 0, true)
		if err != nil {
			return err
		}
		tex = ffi.Some(id)
	}

	mesh, err := loadMesh(backend, h, a.mesh, tex)
	if err != nil {
		return err
	}

	camera := model.DefaultCamera()
	camera.Position = glm.Vec3{0, 0, 4}
	camera.Yaw = math.Pi / 2

	var angle float32
	return backend.RunEventLoop(h, func() *ffi.Error {
		angle += 0.01
		if err := backend.SetMeshTransform(h, mesh, glm.HomogRotate3DY(angle)); err != nil {
			return err
		}

		size, err := backend.SurfaceSize(h)
		if err != nil {
			return err
		}
		if err := backend.DrawPanel(h, renderer.Panel{
			Bounds: renderer.Rect{
				X:      16,
				Y:      16,
				Width:  float32(size.First) / 4,
				Height: 21,
				Color:  glm.Vec4{0.9, 0.5, 0.2, 0.8},
			},
			Direction: renderer.HorizontalRight,
			Padding:   4,
			Items: []renderer.Widget{
				renderer.Label{Text: fmt.Sprintf("%.0fx%.0f", size.First, size.Second)},
			},
		}); err != nil {
			return err
		}
		if err := backend.DrawLabel(h, 20, 20, []byte("roast"), glm.Vec4{1, 1, 1, 1}); err != nil {
			return err
		}
		return backend.Render(h, camera, []resource.MeshID{mesh}, nil)
	})
}

func loadMesh(backend *host.Backend, h session.Handle, mesh model.Mesh, tex ffi.Option[resource.TextureID]) (resource.MeshID, *ffi.Error) {
	if mesh.VertexType == model.VertexTypeColor && tex.Present {
		log.Warn("model has no texture coordinates, ignoring texture")
	}
	return backend.CreateMesh(h, mesh.Vertices, mesh.Indices, int(mesh.VertexType), tex, ffi.None[resource.TextureID]())
}
