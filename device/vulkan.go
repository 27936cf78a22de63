// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"unsafe"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// DefaultApplicationInfo describes the harness to the Vulkan loader.
var DefaultApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   "Harness\x00",
	PEngineName:        "Harness\x00",
}

// InstanceConfiguration configures instance creation.
type InstanceConfiguration struct {
	Extensions []string
	Layers     []string

	// DebugMode enables the validation layers.
	DebugMode bool
}

// NewInstance creates a Vulkan instance. When procAddr is nil the
// default loader is used, otherwise procAddr is the windowing system's
// vkGetInstanceProcAddr.
func NewInstance(appInfo *vk.ApplicationInfo, procAddr unsafe.Pointer, cfg InstanceConfiguration) (*Instance, error) {
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, "VK_LAYER_LUNARG_standard_validation")
		cfg.Extensions = append(cfg.Extensions, "VK_EXT_debug_report")
	}

	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: SafeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     SafeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateInstance()")
	}
	vk.InitInstance(instance)

	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	return &Instance{
		configuration:    cfg,
		instance:         instance,
		availableDevices: physicalDevices,
	}, nil
}

// Instance is a Vulkan API instance together with its physical devices.
type Instance struct {
	configuration InstanceConfiguration

	availableDevices []vk.PhysicalDevice
	surface          vk.Surface
	instance         vk.Instance
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.EnumeratePhysicalDevices()")
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, errors.Wrap(err, "vk.EnumeratePhysicalDevices()")
	}
	return availableDevices, nil
}

// PhysicalDevicesInfo describes every physical device of the instance,
// Index refers back into AvailableDevices.
func (v *Instance) PhysicalDevicesInfo() []PhysicalDeviceInfo {
	pdi := make([]PhysicalDeviceInfo, len(v.availableDevices))
	for i, dev := range v.availableDevices {
		pdi[i].Index = i

		// Get extension info
		var numDeviceExtensions uint32
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(dev, "", &numDeviceExtensions, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceExt := make([]vk.ExtensionProperties, numDeviceExtensions)
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(dev, "", &numDeviceExtensions, deviceExt)); err != nil {
			pdi[i].Invalid = true
		}
		for _, ext := range deviceExt {
			ext.Deref()
			pdi[i].Extensions = append(pdi[i].Extensions, vk.ToString(ext.ExtensionName[:]))
		}

		// Get layers info
		var numDeviceLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(dev, &numDeviceLayers, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(dev, &numDeviceLayers, deviceLayers)); err != nil {
			pdi[i].Invalid = true
		}
		for _, layer := range deviceLayers {
			layer.Deref()
			pdi[i].Layers = append(pdi[i].Layers, vk.ToString(layer.LayerName[:]))
		}

		// Get memory info
		var memoryProperties vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(dev, &memoryProperties)
		memoryProperties.Deref()
		for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
			memoryProperties.MemoryHeaps[iMem].Deref()
			pdi[i].Memory += uint64(memoryProperties.MemoryHeaps[iMem].Size)
		}

		// Get general device info
		var physicalDeviceProperties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(dev, &physicalDeviceProperties)
		physicalDeviceProperties.Deref()
		pdi[i].ID = int(physicalDeviceProperties.DeviceID)
		pdi[i].VendorID = int(physicalDeviceProperties.VendorID)
		pdi[i].Name = vk.ToString(physicalDeviceProperties.DeviceName[:])
		pdi[i].DriverVersion = int(physicalDeviceProperties.DriverVersion)
		pdi[i].Type = typeOf(physicalDeviceProperties.DeviceType)

		pdi[i].GraphicsQueue = v.graphicsQueue(dev)
	}
	return pdi
}

// graphicsQueue finds a queue family with graphics support that can
// also present to the surface, if one is set.
func (v *Instance) graphicsQueue(dev vk.PhysicalDevice) int {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &queueFamilyCount, queueFamilies)

	for idx := uint32(0); idx < queueFamilyCount; idx++ {
		queueFamilies[idx].Deref()
		if queueFamilies[idx].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		if v.surface != vk.NullSurface && v.surface != nil {
			var supportsPresent vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(dev, idx, v.surface, &supportsPresent)
			if !supportsPresent.B() {
				continue
			}
		}
		return int(idx)
	}
	return -1
}

// SetSurface sets the window surface rendered into.
func (v *Instance) SetSurface(pSurface unsafe.Pointer) {
	v.surface = vk.SurfaceFromPointer(uintptr(pSurface))
}

// Surface returns the window surface, vk.NullSurface when none is set.
func (v *Instance) Surface() vk.Surface {
	if v.surface == nil {
		return vk.NullSurface
	}
	return v.surface
}

// Handle returns the vk.Instance.
func (v *Instance) Handle() vk.Instance {
	return v.instance
}

// Extensions returns the enabled instance extensions.
func (v *Instance) Extensions() []string {
	return v.configuration.Extensions
}

// AvailableDevices returns the physical device handles.
func (v *Instance) AvailableDevices() []vk.PhysicalDevice {
	return v.availableDevices
}

// Destroy destroys the surface, if set, and the instance.
func (v *Instance) Destroy() {
	if v.surface != nil && v.surface != vk.NullSurface {
		vk.DestroySurface(v.instance, v.surface, nil)
	}
	v.availableDevices = nil
	vk.DestroyInstance(v.instance, nil)
}

// SafeString null terminates s for the Vulkan API.
func SafeString(s string) string {
	return s + "\x00"
}

// SafeStrings null terminates every string of sgs.
func SafeStrings(sgs []string) []string {
	safe := make([]string, 0, len(sgs))
	for _, s := range sgs {
		safe = append(safe, SafeString(s))
	}
	return safe
}
