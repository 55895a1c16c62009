package host

import (
	"github.com/Masterminds/semver/v3"
	"github.com/devblok/roast/core"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// BackendFactory creates the GPU backend and window for a new session.
type BackendFactory interface {
	NewBackend(appName, appVersion string, settings core.RendererSettings, cfg core.Configuration) (core.Backend, core.Window, error)
}

// FactoryFunc adapts a function to BackendFactory.
type FactoryFunc func(appName, appVersion string, settings core.RendererSettings, cfg core.Configuration) (core.Backend, core.Window, error)

// NewBackend implements BackendFactory
func (f FactoryFunc) NewBackend(appName, appVersion string, settings core.RendererSettings, cfg core.Configuration) (core.Backend, core.Window, error) {
	return f(appName, appVersion, settings, cfg)
}

// HeadlessFactory creates headless backends with a window of the configured
// screen size.
var HeadlessFactory BackendFactory = FactoryFunc(func(appName, appVersion string, settings core.RendererSettings, cfg core.Configuration) (core.Backend, core.Window, error) {
	window := core.NewHeadlessWindow(int32(cfg.Renderer.ScreenWidth), int32(cfg.Renderer.ScreenHeight))
	log.WithFields(log.Fields{
		"app":    appName,
		"width":  cfg.Renderer.ScreenWidth,
		"height": cfg.Renderer.ScreenHeight,
	}).Info("creating headless backend")
	return core.NewHeadlessBackend(window), window, nil
})

// sdlWindow shuts SDL down with the window.
type sdlWindow struct {
	*core.SDLWindow
	quit func()
}

func (w *sdlWindow) Destroy() {
	w.SDLWindow.Destroy()
	w.quit()
}

// NewVulkanFactory creates backends on an SDL window, loading shaders from
// source.
func NewVulkanFactory(source core.ShaderSource) BackendFactory {
	return FactoryFunc(func(appName, appVersion string, settings core.RendererSettings, cfg core.Configuration) (core.Backend, core.Window, error) {
		procAddr, quit, err := core.InitSDL()
		if err != nil {
			return nil, nil, err
		}

		sdl, err := core.NewSDLWindow(appName, settings)
		if err != nil {
			quit()
			return nil, nil, err
		}
		window := &sdlWindow{SDLWindow: sdl, quit: quit}

		instanceCfg := cfg.Instance
		instanceCfg.Extensions = append(append([]string(nil), instanceCfg.Extensions...), sdl.Extensions()...)
		instance, err := core.NewVulkanInstance(core.NewApplicationInfo(appName, appVersionNumber(appVersion)), procAddr, instanceCfg)
		if err != nil {
			window.Destroy()
			return nil, nil, err
		}

		if err := sdl.CreateSurface(instance); err != nil {
			instance.Destroy()
			window.Destroy()
			return nil, nil, err
		}

		ctx, err := core.NewVulkanContext(instance)
		if err != nil {
			instance.Destroy()
			window.Destroy()
			return nil, nil, err
		}

		rendererCfg := cfg.Renderer
		rendererCfg.Settings = settings
		backend, err := core.NewVulkanBackend(ctx, instance, window, rendererCfg, source)
		if err != nil {
			ctx.Destroy()
			instance.Destroy()
			window.Destroy()
			return nil, nil, err
		}

		log.WithFields(log.Fields{
			"app":     appName,
			"version": appVersion,
			"device":  ctx.Name(),
		}).Info("created Vulkan backend")
		return backend, window, nil
	})
}

// appVersionNumber packs a semantic version for the driver, 0 when it
// does not parse.
func appVersionNumber(version string) uint32 {
	v, err := semver.NewVersion(version)
	if err != nil {
		log.WithField("version", version).Warn("application version is not a semantic version")
		return 0
	}
	return vk.MakeVersion(int(v.Major()), int(v.Minor()), int(v.Patch()))
}
