// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command vkinfo prints the physical devices Vulkan reports as JSON,
// along with the one the harness would pick.
package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/devblok/harness/device"
	log "github.com/sirupsen/logrus"
)

var (
	debug  = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	indent = flag.Bool("indent", true, "Indent the output")
)

type report struct {
	Devices []device.PhysicalDeviceInfo `json:"devices"`
	Picked  *device.PhysicalDeviceInfo  `json:"picked,omitempty"`
}

func main() {
	flag.Parse()

	inst, err := device.NewInstance(device.DefaultApplicationInfo, nil, device.InstanceConfiguration{
		DebugMode: *debug,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer inst.Destroy()

	r := report{Devices: inst.PhysicalDevicesInfo()}
	if picked, err := device.Pick(r.Devices); err == nil {
		r.Picked = &picked
	} else {
		log.Warn(err)
	}

	enc := json.NewEncoder(os.Stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(r); err != nil {
		log.Fatal(err)
	}
}
