package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gobuffalo/envy"
	"github.com/pelletier/go-toml/v2"
)

// Environment variables that override the configuration file.
const (
	EnvFramesPerSecond = "ROAST_FPS"
	EnvDebug           = "ROAST_VKDEBUG"
	EnvShaders         = "ROAST_SHADERS"
	EnvHeadless        = "ROAST_HEADLESS"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration     `toml:"time"`
	Renderer RendererConfiguration `toml:"renderer"`
	Instance InstanceConfiguration `toml:"instance"`
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int `toml:"fps"`
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	// SwapchainSize is the requested image count, 0 picks min+1.
	SwapchainSize    uint32   `toml:"swapchain_size"`
	DeviceExtensions []string `toml:"device_extensions"`

	// ScreenWidth and ScreenHeight size the headless surface.
	ScreenWidth  uint32 `toml:"screen_width"`
	ScreenHeight uint32 `toml:"screen_height"`

	// ShaderDirectory holds compiled .spv files, ShaderPack a kar archive
	// of them. The pack wins when both are set.
	ShaderDirectory string `toml:"shader_directory"`
	ShaderPack      string `toml:"shader_pack"`

	Headless bool `toml:"headless"`

	Settings RendererSettings `toml:"settings"`
}

// InstanceConfiguration configures the Vulkan instance
type InstanceConfiguration struct {
	DebugMode  bool     `toml:"debug"`
	Extensions []string `toml:"extensions"`
	Layers     []string `toml:"layers"`
}

// RendererSettings is what the host asks for when initialising a backend.
// RendererSize is the window size as a fraction of the display.
type RendererSettings struct {
	RendererSize [2]float64     `toml:"size"`
	Fullscreen   FullscreenMode `toml:"fullscreen"`
	Transparent  bool           `toml:"transparent"`
}

// DefaultConfiguration is used for everything a configuration file leaves out.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
		},
		Renderer: RendererConfiguration{
			ScreenWidth:     800,
			ScreenHeight:    600,
			ShaderDirectory: "./shaders",
			Settings: RendererSettings{
				RendererSize: [2]float64{0.5, 0.5},
			},
		},
	}
}

// LoadConfiguration reads the TOML file at path over the defaults, then
// applies environment overrides. An empty path skips the file.
func LoadConfiguration(path string) (Configuration, error) {
	cfg := DefaultConfiguration()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %s", path, err.Error())
		}
	}
	if err := ApplyEnvironment(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnvironment overrides cfg from the ROAST_* variables.
func ApplyEnvironment(cfg *Configuration) error {
	if v := envy.Get(EnvFramesPerSecond, ""); v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil || fps < 0 {
			return fmt.Errorf("%s: invalid frame rate %q", EnvFramesPerSecond, v)
		}
		cfg.Time.FramesPerSecond = fps
	}
	if v := envy.Get(EnvDebug, ""); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %s", EnvDebug, err.Error())
		}
		cfg.Instance.DebugMode = debug
	}
	if v := envy.Get(EnvShaders, ""); v != "" {
		if strings.HasSuffix(v, ".kar") {
			cfg.Renderer.ShaderPack = v
		} else {
			cfg.Renderer.ShaderDirectory = v
			cfg.Renderer.ShaderPack = ""
		}
	}
	if v := envy.Get(EnvHeadless, ""); v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %s", EnvHeadless, err.Error())
		}
		cfg.Renderer.Headless = headless
	}
	return nil
}
