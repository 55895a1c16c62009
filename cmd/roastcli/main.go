package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/devblok/roast/core"
	log "github.com/sirupsen/logrus"
)

var (
	debug  = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	indent = flag.Bool("indent", false, "Indent the output")
)

func main() {
	flag.Parse()

	cfg := core.InstanceConfiguration{
		DebugMode:  *debug,
		Extensions: []string{},
		Layers:     []string{},
	}

	coreInstance, err := core.NewVulkanInstance(core.NewApplicationInfo("roastcli", 0), nil, cfg)
	if err != nil {
		log.WithError(err).Fatal("could not create a Vulkan instance")
	}
	defer coreInstance.Destroy()

	enc := json.NewEncoder(os.Stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(coreInstance.PhysicalDevicesInfo()); err != nil {
		log.WithError(err).Fatal("could not encode device info")
	}
}
