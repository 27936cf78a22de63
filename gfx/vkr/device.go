// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements the vulkan backend of the frame scheduler.
package vkr

import (
	"github.com/devblok/harness/device"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NewDevice creates the logical device, its queue and command pool
// on the physical device described by info.
func NewDevice(inst *device.Instance, info device.PhysicalDeviceInfo, logger log.FieldLogger) (*Device, error) {
	if info.Index < 0 || info.Index >= len(inst.AvailableDevices()) {
		return nil, errors.Errorf("vkr: physical device %d does not exist", info.Index)
	}
	if !info.Suitable() {
		return nil, errors.Errorf("vkr: physical device %q can not present", info.Name)
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	physical := inst.AvailableDevices()[info.Index]
	family := uint32(info.GraphicsQueue)

	requiredExtensions := []string{
		vk.KhrSwapchainExtensionName,
	}
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: device.SafeStrings(requiredExtensions),
	}

	var handle vk.Device
	if err := vk.Error(vk.CreateDevice(physical, &dci, nil, &handle)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateDevice()")
	}

	var queue vk.Queue
	vk.GetDeviceQueue(handle, family, 0, &queue)

	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var commandPool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(handle, &cpci, nil, &commandPool)); err != nil {
		vk.DestroyDevice(handle, nil)
		return nil, errors.Wrap(err, "vk.CreateCommandPool()")
	}

	logger.WithFields(log.Fields{
		"device": info.Name,
		"type":   info.Type,
		"queue":  family,
	}).Info("logical device created")

	return &Device{
		info:      info,
		physical:  physical,
		handle:    handle,
		queue:     queue,
		family:    family,
		pool:      commandPool,
		allocator: NewMemoryAllocator(handle, physical),
		sync:      &syncPool{device: handle},
		log:       logger,
	}, nil
}

// Device is a logical device with the one queue frames are submitted to.
type Device struct {
	info     device.PhysicalDeviceInfo
	physical vk.PhysicalDevice
	handle   vk.Device
	queue    vk.Queue
	family   uint32
	pool     vk.CommandPool

	allocator *MemoryAllocator
	sync      *syncPool
	log       log.FieldLogger
}

// Info describes the physical device.
func (d *Device) Info() device.PhysicalDeviceInfo {
	return d.info
}

// Handle returns the vk.Device.
func (d *Device) Handle() vk.Device {
	return d.handle
}

// Allocator returns the device memory allocator.
func (d *Device) Allocator() *MemoryAllocator {
	return d.allocator
}

// WaitIdle blocks until the device finished all work.
func (d *Device) WaitIdle() error {
	return errors.Wrap(vk.Error(vk.DeviceWaitIdle(d.handle)), "vk.DeviceWaitIdle()")
}

// Destroy waits for the device and destroys it, everything created
// from it has to be destroyed before.
func (d *Device) Destroy() {
	if err := d.WaitIdle(); err != nil {
		d.log.WithError(err).Warn("destroying a busy device")
	}
	d.sync.destroy()
	vk.DestroyCommandPool(d.handle, d.pool, nil)
	vk.DestroyDevice(d.handle, nil)
}
