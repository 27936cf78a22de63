// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"image"

	"github.com/devblok/harness/core/renderer"
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// Readback holds a copy of a presented image, it satisfies renderer.Readback.
// The copy is valid once the frame it was recorded in has finished.
type Readback struct {
	buffer *Buffer
	extent renderer.Extent
	format vk.Format
}

// Image converts the copy and releases the host buffer.
// It can only be called once.
func (rb *Readback) Image() (image.Image, error) {
	if rb.buffer == nil {
		return nil, errors.New("vkr: readback already consumed")
	}
	defer rb.release()

	pixels, err := rb.buffer.Mem().Bytes()
	if err != nil {
		return nil, err
	}
	return toImage(pixels, rb.extent, rb.format)
}

func (rb *Readback) release() {
	if rb.buffer != nil {
		rb.buffer.Release()
		rb.buffer = nil
	}
}

// pixelLayout reports whether format stores red first.
func pixelLayout(format vk.Format) (rgba bool, err error) {
	switch format {
	case vk.FormatR8g8b8a8Unorm, vk.FormatR8g8b8a8Srgb:
		return true, nil
	case vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb:
		return false, nil
	}
	return false, errors.Wrapf(renderer.ErrCaptureUnsupported, "format %d", format)
}

// toImage converts tightly packed 8 bit pixels into an RGBA image.
func toImage(pixels []byte, extent renderer.Extent, format vk.Format) (*image.RGBA, error) {
	rgba, err := pixelLayout(format)
	if err != nil {
		return nil, err
	}
	size := int(extent.Width) * int(extent.Height) * 4
	if len(pixels) < size {
		return nil, errors.Errorf("vkr: %d bytes of pixels for %dx%d", len(pixels), extent.Width, extent.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(extent.Width), int(extent.Height)))
	copy(img.Pix, pixels[:size])
	if !rgba {
		for idx := 0; idx < size; idx += 4 {
			img.Pix[idx], img.Pix[idx+2] = img.Pix[idx+2], img.Pix[idx]
		}
	}
	return img, nil
}
