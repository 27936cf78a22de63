// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"math"
	"time"

	"github.com/devblok/harness/core/renderer"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// SwapchainOptions configure swapchain creation.
type SwapchainOptions struct {
	// MinImageCount is the number of images asked for, clamped
	// to what the surface supports.
	MinImageCount uint32

	// PresentImmediate presents without waiting for vertical blank
	// when the surface supports it, FIFO is used otherwise.
	PresentImmediate bool
}

// NewSwapchain creates a swapchain presenting to surface.
func NewSwapchain(dev *Device, surface vk.Surface, extent renderer.Extent, opts SwapchainOptions) (*Swapchain, error) {
	format, err := surfaceFormat(dev.physical, surface)
	if err != nil {
		return nil, err
	}

	s := &Swapchain{
		dev:        dev,
		surface:    surface,
		format:     format.Format,
		colorSpace: format.ColorSpace,
		opts:       opts,
	}
	if err := s.create(extent, vk.NullSwapchain); err != nil {
		return nil, err
	}
	return s, nil
}

// Swapchain is a vulkan swapchain and its images, it satisfies renderer.Swapchain.
type Swapchain struct {
	dev        *Device
	surface    vk.Surface
	handle     vk.Swapchain
	format     vk.Format
	colorSpace vk.ColorSpace
	opts       SwapchainOptions

	extent      renderer.Extent
	images      []*SwapchainImage
	capturable  bool
	presentMode vk.PresentMode
}

// SwapchainImage is a presentable image with its view.
type SwapchainImage struct {
	image      vk.Image
	view       vk.ImageView
	extent     renderer.Extent
	format     vk.Format
	capturable bool
}

// Extent implements renderer.Image
func (i *SwapchainImage) Extent() renderer.Extent {
	return i.extent
}

func surfaceFormat(physical vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceFormat, error) {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &count, nil)); err != nil {
		return vk.SurfaceFormat{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(physical, surface, &count, formats)); err != nil {
		return vk.SurfaceFormat{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}
	for idx := range formats {
		formats[idx].Deref()
	}
	return chooseSurfaceFormat(formats)
}

// chooseSurfaceFormat prefers 8 bit BGRA, then RGBA, since those can be
// read back by frame capture. Anything else falls back to the first format.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, errors.New("vkr: surface reports no formats")
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{
			Format:     vk.FormatB8g8r8a8Unorm,
			ColorSpace: formats[0].ColorSpace,
		}, nil
	}
	for _, want := range []vk.Format{vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Unorm} {
		for _, f := range formats {
			if f.Format == want {
				return f, nil
			}
		}
	}
	return formats[0], nil
}

func (s *Swapchain) create(extent renderer.Extent, old vk.Swapchain) error {
	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(s.dev.physical, s.surface, &caps)); err != nil {
		return errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceCapabilities()")
	}
	caps.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	minExtent := renderer.Extent{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height}
	maxExtent := renderer.Extent{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height}
	if !extentWithin(extent, minExtent, maxExtent) {
		return errors.Wrapf(renderer.ErrExtentNotSupported, "%dx%d outside of %dx%d..%dx%d",
			extent.Width, extent.Height, minExtent.Width, minExtent.Height, maxExtent.Width, maxExtent.Height)
	}

	presentMode, err := s.choosePresentMode()
	if err != nil {
		return err
	}

	usage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	capturable := caps.SupportedUsageFlags&vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit) != 0
	if capturable {
		usage |= vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)
	}

	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         s.surface,
		MinImageCount:   clampImageCount(s.opts.MinImageCount, caps.MinImageCount, caps.MaxImageCount),
		ImageFormat:     s.format,
		ImageColorSpace: s.colorSpace,
		ImageExtent: vk.Extent2D{
			Width:  extent.Width,
			Height: extent.Height,
		},
		ImageUsage:       usage,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   chooseCompositeAlpha(caps.SupportedCompositeAlpha),
		PresentMode:      presentMode,
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     old,
	}

	var swapchain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(s.dev.handle, &scci, nil, &swapchain)); err != nil {
		return errors.Wrap(err, "vk.CreateSwapchain()")
	}

	images, err := s.createImages(swapchain, extent, capturable)
	if err != nil {
		vk.DestroySwapchain(s.dev.handle, swapchain, nil)
		return err
	}

	s.handle = swapchain
	s.images = images
	s.extent = extent
	s.capturable = capturable
	s.presentMode = presentMode
	return nil
}

func (s *Swapchain) choosePresentMode() (vk.PresentMode, error) {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(s.dev.physical, s.surface, &count, nil)); err != nil {
		return vk.PresentModeFifo, errors.Wrap(err, "vk.GetPhysicalDeviceSurfacePresentModes()")
	}
	modes := make([]vk.PresentMode, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(s.dev.physical, s.surface, &count, modes)); err != nil {
		return vk.PresentModeFifo, errors.Wrap(err, "vk.GetPhysicalDeviceSurfacePresentModes()")
	}
	return choosePresentMode(modes, s.opts.PresentImmediate), nil
}

func (s *Swapchain) createImages(swapchain vk.Swapchain, extent renderer.Extent, capturable bool) ([]*SwapchainImage, error) {
	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(s.dev.handle, swapchain, &numImages, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.GetSwapchainImages()")
	}
	handles := make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(s.dev.handle, swapchain, &numImages, handles)); err != nil {
		return nil, errors.Wrap(err, "vk.GetSwapchainImages()")
	}

	images := make([]*SwapchainImage, 0, len(handles))
	for idx, img := range handles {
		ivci := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   s.format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: colorSubresourceRange,
		}

		var view vk.ImageView
		if err := vk.Error(vk.CreateImageView(s.dev.handle, &ivci, nil, &view)); err != nil {
			for _, created := range images {
				vk.DestroyImageView(s.dev.handle, created.view, nil)
			}
			return nil, errors.Wrapf(err, "vk.CreateImageView() of image %d", idx)
		}
		images = append(images, &SwapchainImage{
			image:      img,
			view:       view,
			extent:     extent,
			format:     s.format,
			capturable: capturable,
		})
	}
	return images, nil
}

// Format returns the pixel format of the images, render passes
// drawing into them have to use it.
func (s *Swapchain) Format() vk.Format {
	return s.format
}

// PresentMode returns the present mode in use.
func (s *Swapchain) PresentMode() vk.PresentMode {
	return s.presentMode
}

// ImageCount implements renderer.Swapchain
func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

// Images implements renderer.Swapchain
func (s *Swapchain) Images() []renderer.Image {
	images := make([]renderer.Image, len(s.images))
	for idx, img := range s.images {
		images[idx] = img
	}
	return images
}

// Extent implements renderer.Swapchain
func (s *Swapchain) Extent() renderer.Extent {
	return s.extent
}

// Recreate implements renderer.Swapchain, the current swapchain is
// handed to the driver as the old one and stays valid.
func (s *Swapchain) Recreate(extent renderer.Extent) (renderer.Swapchain, error) {
	next := &Swapchain{
		dev:        s.dev,
		surface:    s.surface,
		format:     s.format,
		colorSpace: s.colorSpace,
		opts:       s.opts,
	}
	if err := next.create(extent, s.handle); err != nil {
		return nil, err
	}
	return next, nil
}

// Acquire implements renderer.Swapchain
func (s *Swapchain) Acquire(timeout time.Duration) (renderer.Acquisition, error) {
	sem, err := s.dev.sync.semaphore()
	if err != nil {
		return renderer.Acquisition{}, err
	}

	var index uint32
	result := vk.AcquireNextImage(s.dev.handle, s.handle, timeoutNanos(timeout), sem, vk.NullFence, &index)
	switch result {
	case vk.Success, vk.Suboptimal:
		return renderer.Acquisition{
			Index:      int(index),
			Suboptimal: result == vk.Suboptimal,
			Ready:      &acquireFuture{sem: sem},
		}, nil
	case vk.Timeout, vk.NotReady:
		s.dev.sync.putSemaphore(sem)
		return renderer.Acquisition{}, renderer.ErrTimeout
	case vk.ErrorOutOfDate:
		s.dev.sync.putSemaphore(sem)
		return renderer.Acquisition{}, renderer.ErrOutOfDate
	}
	s.dev.sync.putSemaphore(sem)
	return renderer.Acquisition{}, errors.Wrap(vk.Error(result), "vk.AcquireNextImage()")
}

// Destroy implements renderer.Destroyer
func (s *Swapchain) Destroy() {
	for _, img := range s.images {
		vk.DestroyImageView(s.dev.handle, img.view, nil)
	}
	s.images = nil
	vk.DestroySwapchain(s.dev.handle, s.handle, nil)
}

// acquireFuture is the GPU side signal of an acquired image.
// Only the queue can wait on it.
type acquireFuture struct {
	sem vk.Semaphore
}

func (f *acquireFuture) CleanupFinished() {}
func (f *acquireFuture) Finished() bool   { return false }

func (f *acquireFuture) Wait(time.Duration) error {
	return errors.New("vkr: image acquisition can only be waited on by the queue")
}

var colorSubresourceRange = vk.ImageSubresourceRange{
	AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
	BaseMipLevel:   0,
	LevelCount:     1,
	BaseArrayLayer: 0,
	LayerCount:     1,
}

// timeoutNanos converts a timeout for the Vulkan API, 0 waits forever.
func timeoutNanos(timeout time.Duration) uint64 {
	if timeout <= 0 {
		return math.MaxUint64
	}
	return uint64(timeout.Nanoseconds())
}

func extentWithin(e, min, max renderer.Extent) bool {
	return e.Width >= min.Width && e.Width <= max.Width &&
		e.Height >= min.Height && e.Height <= max.Height
}

// clampImageCount fits the wanted image count into the surface limits,
// a max of 0 means there is no upper limit.
func clampImageCount(wanted, min, max uint32) uint32 {
	if wanted < min {
		wanted = min
	}
	if max != 0 && wanted > max {
		wanted = max
	}
	return wanted
}

func chooseCompositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if supported&vk.CompositeAlphaFlags(flag) != 0 {
			return flag
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func choosePresentMode(available []vk.PresentMode, immediate bool) vk.PresentMode {
	if immediate {
		for _, mode := range available {
			if mode == vk.PresentModeImmediate {
				return mode
			}
		}
	}
	return vk.PresentModeFifo
}
