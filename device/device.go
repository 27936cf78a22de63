// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device creates Vulkan instances and describes the
// physical devices they expose.
package device

import (
	"errors"
	"sort"

	vk "github.com/devblok/vulkan"
)

// ErrNoSuitableDevice is returned by Pick when no device can present.
var ErrNoSuitableDevice = errors.New("device: no suitable physical device found")

// Type classifies a physical device.
type Type int

// Device types, declared in order of preference.
const (
	DiscreteGPU Type = iota
	IntegratedGPU
	VirtualGPU
	CPU
	Other
)

func (t Type) String() string {
	switch t {
	case DiscreteGPU:
		return "discrete"
	case IntegratedGPU:
		return "integrated"
	case VirtualGPU:
		return "virtual"
	case CPU:
		return "cpu"
	}
	return "other"
}

// MarshalText lets the type show up by name in JSON output.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func typeOf(t vk.PhysicalDeviceType) Type {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return DiscreteGPU
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return IntegratedGPU
	case vk.PhysicalDeviceTypeVirtualGpu:
		return VirtualGPU
	case vk.PhysicalDeviceTypeCpu:
		return CPU
	}
	return Other
}

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	Index         int
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Type          Type
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        uint64

	// GraphicsQueue is the first queue family with graphics support,
	// -1 when there is none.
	GraphicsQueue int
}

// HasExtension reports whether the device exposes the named extension.
func (pdi PhysicalDeviceInfo) HasExtension(name string) bool {
	for _, ext := range pdi.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}

// Suitable reports whether the device can render and present.
func (pdi PhysicalDeviceInfo) Suitable() bool {
	return !pdi.Invalid && pdi.GraphicsQueue >= 0 && pdi.HasExtension(vk.KhrSwapchainExtensionName)
}

// Pick returns the preferred suitable device: discrete GPUs first, then
// integrated, virtual and CPU implementations. Ties keep enumeration order.
func Pick(devices []PhysicalDeviceInfo) (PhysicalDeviceInfo, error) {
	var candidates []PhysicalDeviceInfo
	for _, d := range devices {
		if d.Suitable() {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return PhysicalDeviceInfo{}, ErrNoSuitableDevice
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Type < candidates[j].Type
	})
	return candidates[0], nil
}
