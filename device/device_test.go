// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device_test

import (
	"encoding/json"
	"testing"

	"github.com/devblok/harness/device"
	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"
)

func info(name string, t device.Type, ext ...string) device.PhysicalDeviceInfo {
	return device.PhysicalDeviceInfo{
		Name:       name,
		Type:       t,
		Extensions: ext,
	}
}

func TestPick(t *testing.T) {
	c := qt.New(t)

	devices := []device.PhysicalDeviceInfo{
		info("llvmpipe", device.CPU, vk.KhrSwapchainExtensionName),
		info("intel", device.IntegratedGPU, vk.KhrSwapchainExtensionName),
		info("compute only", device.DiscreteGPU),
		info("nvidia", device.DiscreteGPU, "VK_KHR_maintenance1", vk.KhrSwapchainExtensionName),
		info("amd", device.DiscreteGPU, vk.KhrSwapchainExtensionName),
	}
	devices[2].GraphicsQueue = -1

	picked, err := device.Pick(devices)
	c.Assert(err, qt.IsNil)
	c.Assert(picked.Name, qt.Equals, "nvidia")

	picked, err = device.Pick(devices[:2])
	c.Assert(err, qt.IsNil)
	c.Assert(picked.Name, qt.Equals, "intel")
}

func TestPickNoneSuitable(t *testing.T) {
	c := qt.New(t)

	invalid := info("broken", device.DiscreteGPU, vk.KhrSwapchainExtensionName)
	invalid.Invalid = true
	_, err := device.Pick([]device.PhysicalDeviceInfo{
		invalid,
		info("headless", device.IntegratedGPU),
	})
	c.Assert(err, qt.Equals, device.ErrNoSuitableDevice)

	_, err = device.Pick(nil)
	c.Assert(err, qt.Equals, device.ErrNoSuitableDevice)
}

func TestTypeJSON(t *testing.T) {
	c := qt.New(t)

	data, err := json.Marshal(info("intel", device.IntegratedGPU))
	c.Assert(err, qt.IsNil)

	var decoded map[string]interface{}
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(decoded["Type"], qt.Equals, "integrated")
	c.Assert(device.Other.String(), qt.Equals, "other")
}

func TestSafeStrings(t *testing.T) {
	c := qt.New(t)
	c.Assert(device.SafeStrings([]string{"a", "VK_KHR_surface"}), qt.DeepEquals, []string{"a\x00", "VK_KHR_surface\x00"})
	c.Assert(device.SafeStrings(nil), qt.HasLen, 0)
}
