// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"github.com/devblok/harness/core/renderer"
	"github.com/veandco/go-sdl2/sdl"
)

func newWindow(width, height uint32) (*sdl.Window, error) {
	return sdl.CreateWindow("Harness",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(width),
		int32(height),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
}

// windowSurface reports the drawable size of an SDL window,
// a minimised window has nothing to draw on.
type windowSurface struct {
	window *sdl.Window
}

func (w windowSurface) DrawableExtent() renderer.Extent {
	if w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return renderer.Extent{}
	}
	width, height := w.window.VulkanGetDrawableSize()
	if width <= 0 || height <= 0 {
		return renderer.Extent{}
	}
	return renderer.Extent{Width: uint32(width), Height: uint32(height)}
}

// resized reports window events after which the swapchain is stale.
func resized(e *sdl.WindowEvent) bool {
	switch e.Event {
	case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED,
		sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_MAXIMIZED:
		return true
	}
	return false
}
