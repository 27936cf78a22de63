// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"github.com/pkg/errors"
)

// Viewport describes the area rendered into.
type Viewport struct {
	Origin     [2]float32
	Dimensions [2]float32
	DepthRange [2]float32
}

// FrameTarget is a presentation chain together with its images.
// A FrameTarget is never modified in place apart from being marked
// stale, a rebuild produces a new one.
type FrameTarget struct {
	chain   Swapchain
	images  []Image
	optimal bool
}

// NewFrameTarget wraps a freshly created chain.
func NewFrameTarget(chain Swapchain) (FrameTarget, error) {
	images := chain.Images()
	if len(images) == 0 || len(images) != chain.ImageCount() {
		return FrameTarget{}, errors.Errorf("renderer: swapchain reports %d images, has %d", chain.ImageCount(), len(images))
	}
	return FrameTarget{
		chain:   chain,
		images:  images,
		optimal: true,
	}, nil
}

// MarkStale forces a rebuild before the next acquisition.
func (t *FrameTarget) MarkStale() {
	t.optimal = false
}

// Optimal reports whether the chain still matches the surface.
func (t FrameTarget) Optimal() bool {
	return t.optimal
}

// Swapchain returns the presentation chain.
func (t FrameTarget) Swapchain() Swapchain {
	return t.chain
}

// Images returns the presentable images.
func (t FrameTarget) Images() []Image {
	return t.images
}

// Rebuild recreates the chain of old for extent. The old target is
// left untouched and its chain is still owned by the caller.
// Errors wrapping ErrExtentNotSupported are returned as is, the
// frame should be skipped. Everything else comes back as a FatalError.
func Rebuild(old FrameTarget, extent Extent) (FrameTarget, error) {
	chain, err := old.chain.Recreate(extent)
	if err != nil {
		if errors.Is(err, ErrExtentNotSupported) {
			return FrameTarget{}, err
		}
		return FrameTarget{}, fatal("swapchain recreation", err)
	}

	target, err := NewFrameTarget(chain)
	if err != nil {
		chain.Destroy()
		return FrameTarget{}, fatal("swapchain recreation", err)
	}
	return target, nil
}

// FramebufferSet holds one framebuffer per image of a FrameTarget,
// in the same order.
type FramebufferSet []Framebuffer

// Destroy destroys every framebuffer in the set.
func (fs FramebufferSet) Destroy() {
	for _, fb := range fs {
		fb.Destroy()
	}
}

// buildFramebuffers creates the framebuffers of target and derives the
// viewport from its first image.
func buildFramebuffers(pass RenderPass, target FrameTarget) (FramebufferSet, Viewport, error) {
	extent := target.images[0].Extent()
	viewport := Viewport{
		Origin:     [2]float32{0, 0},
		Dimensions: [2]float32{float32(extent.Width), float32(extent.Height)},
		DepthRange: [2]float32{0, 1},
	}

	framebuffers := make(FramebufferSet, 0, len(target.images))
	for idx, img := range target.images {
		fb, err := pass.NewFramebuffer(img)
		if err != nil {
			framebuffers.Destroy()
			return nil, Viewport{}, fatal("framebuffer creation", errors.Wrapf(err, "image %d", idx))
		}
		framebuffers = append(framebuffers, fb)
	}
	return framebuffers, viewport, nil
}
