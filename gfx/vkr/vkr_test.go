// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"math"
	"testing"
	"time"

	"github.com/devblok/harness/core"
	"github.com/devblok/harness/core/renderer"
	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
)

func TestTimeoutNanos(t *testing.T) {
	c := qt.New(t)
	c.Assert(timeoutNanos(0), qt.Equals, uint64(math.MaxUint64))
	c.Assert(timeoutNanos(-time.Second), qt.Equals, uint64(math.MaxUint64))
	c.Assert(timeoutNanos(2*time.Millisecond), qt.Equals, uint64(2000000))
}

func TestExtentWithin(t *testing.T) {
	c := qt.New(t)
	min := renderer.Extent{Width: 1, Height: 1}
	max := renderer.Extent{Width: 4096, Height: 4096}

	c.Assert(extentWithin(renderer.Extent{Width: 800, Height: 600}, min, max), qt.Equals, true)
	c.Assert(extentWithin(renderer.Extent{Width: 4096, Height: 1}, min, max), qt.Equals, true)
	c.Assert(extentWithin(renderer.Extent{Width: 4097, Height: 600}, min, max), qt.Equals, false)
	c.Assert(extentWithin(renderer.Extent{Width: 800, Height: 0}, min, max), qt.Equals, false)
}

func TestClampImageCount(t *testing.T) {
	c := qt.New(t)
	c.Assert(clampImageCount(3, 2, 8), qt.Equals, uint32(3))
	c.Assert(clampImageCount(0, 2, 8), qt.Equals, uint32(2))
	c.Assert(clampImageCount(10, 2, 8), qt.Equals, uint32(8))
	c.Assert(clampImageCount(10, 2, 0), qt.Equals, uint32(10))
}

func TestChooseCompositeAlpha(t *testing.T) {
	c := qt.New(t)
	all := vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit | vk.CompositeAlphaInheritBit)
	c.Assert(chooseCompositeAlpha(all), qt.Equals, vk.CompositeAlphaOpaqueBit)
	c.Assert(chooseCompositeAlpha(vk.CompositeAlphaFlags(vk.CompositeAlphaInheritBit)), qt.Equals, vk.CompositeAlphaInheritBit)
	c.Assert(chooseCompositeAlpha(0), qt.Equals, vk.CompositeAlphaOpaqueBit)
}

func TestChoosePresentMode(t *testing.T) {
	c := qt.New(t)
	modes := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox, vk.PresentModeImmediate}

	c.Assert(choosePresentMode(modes, false), qt.Equals, vk.PresentModeFifo)
	c.Assert(choosePresentMode(modes, true), qt.Equals, vk.PresentModeImmediate)
	c.Assert(choosePresentMode(modes[:2], true), qt.Equals, vk.PresentModeFifo)
}

func TestChooseSurfaceFormat(t *testing.T) {
	c := qt.New(t)

	_, err := chooseSurfaceFormat(nil)
	c.Assert(err, qt.ErrorMatches, "vkr: surface reports no formats")

	f, err := chooseSurfaceFormat([]vk.SurfaceFormat{{Format: vk.FormatUndefined}})
	c.Assert(err, qt.IsNil)
	c.Assert(f.Format, qt.Equals, vk.FormatB8g8r8a8Unorm)

	f, err = chooseSurfaceFormat([]vk.SurfaceFormat{
		{Format: vk.FormatA2b10g10r10UnormPack32},
		{Format: vk.FormatR8g8b8a8Unorm},
		{Format: vk.FormatB8g8r8a8Unorm},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(f.Format, qt.Equals, vk.FormatB8g8r8a8Unorm)

	f, err = chooseSurfaceFormat([]vk.SurfaceFormat{{Format: vk.FormatA2b10g10r10UnormPack32}})
	c.Assert(err, qt.IsNil)
	c.Assert(f.Format, qt.Equals, vk.FormatA2b10g10r10UnormPack32)
}

func TestFindMemoryType(t *testing.T) {
	c := qt.New(t)
	types := []vk.MemoryPropertyFlags{
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit),
	}
	hostCoherent := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

	idx, ok := findMemoryType(types, 0x7, hostCoherent)
	c.Assert(ok, qt.Equals, true)
	c.Assert(idx, qt.Equals, uint32(2))

	idx, ok = findMemoryType(types, 0x7, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	c.Assert(ok, qt.Equals, true)
	c.Assert(idx, qt.Equals, uint32(1))

	_, ok = findMemoryType(types, 0x3, hostCoherent)
	c.Assert(ok, qt.Equals, false)
}

func TestRing(t *testing.T) {
	c := qt.New(t)
	r := ring{max: 2}

	idx, grow, ok := r.get()
	c.Assert([]interface{}{idx, grow, ok}, qt.DeepEquals, []interface{}{0, true, true})
	idx, grow, ok = r.get()
	c.Assert([]interface{}{idx, grow, ok}, qt.DeepEquals, []interface{}{1, true, true})
	_, _, ok = r.get()
	c.Assert(ok, qt.Equals, false)
	c.Assert(r.inUse(), qt.Equals, 2)

	r.put(1)
	r.put(0)
	idx, grow, ok = r.get()
	c.Assert([]interface{}{idx, grow, ok}, qt.DeepEquals, []interface{}{1, false, true})
	c.Assert(r.inUse(), qt.Equals, 1)
}

func TestToImage(t *testing.T) {
	c := qt.New(t)
	extent := renderer.Extent{Width: 2, Height: 1}
	pixels := []byte{
		10, 20, 30, 255,
		40, 50, 60, 128,
	}

	img, err := toImage(pixels, extent, vk.FormatR8g8b8a8Unorm)
	c.Assert(err, qt.IsNil)
	c.Assert(img.Pix, qt.DeepEquals, pixels)

	img, err = toImage(pixels, extent, vk.FormatB8g8r8a8Srgb)
	c.Assert(err, qt.IsNil)
	c.Assert(img.Pix, qt.DeepEquals, []byte{30, 20, 10, 255, 60, 50, 40, 128})
	c.Assert(pixels[0], qt.Equals, byte(10))

	_, err = toImage(pixels[:4], extent, vk.FormatR8g8b8a8Unorm)
	c.Assert(err, qt.ErrorMatches, `vkr: 4 bytes of pixels for 2x1`)

	_, err = toImage(pixels, extent, vk.FormatR16g16b16a16Sfloat)
	c.Assert(err, qt.ErrorMatches, `format \d+: renderer: command recorder can not capture images`)
}

func TestShaderStage(t *testing.T) {
	c := qt.New(t)

	stage, err := shaderStage(core.VertexShaderType)
	c.Assert(err, qt.IsNil)
	c.Assert(stage, qt.Equals, vk.ShaderStageVertexBit)

	stage, err = shaderStage(core.FragmentShaderType)
	c.Assert(err, qt.IsNil)
	c.Assert(stage, qt.Equals, vk.ShaderStageFragmentBit)

	_, err = shaderStage(core.UnknownShaderType)
	c.Assert(err, qt.ErrorMatches, `vkr: unsupported shader type unknown`)
}

func TestNowFuture(t *testing.T) {
	c := qt.New(t)
	f := NewQueue(nil).Now()
	f.CleanupFinished()
	c.Assert(f.Finished(), qt.Equals, true)
	c.Assert(f.Wait(time.Second), qt.IsNil)
}

func TestPresentResult(t *testing.T) {
	c := qt.New(t)
	c.Assert(presentResult(vk.Success), qt.IsNil)
	c.Assert(presentResult(vk.Suboptimal), qt.IsNil)
	c.Assert(presentResult(vk.ErrorOutOfDate), qt.Equals, renderer.ErrOutOfDate)

	err := presentResult(vk.ErrorDeviceLost)
	c.Assert(err, qt.ErrorMatches, `vk.QueuePresent\(\): .+`)
	c.Assert(renderer.IsRecoverable(err), qt.Equals, false)
}

func TestUniformPoolExhausted(t *testing.T) {
	c := qt.New(t)
	c.Assert(errors.Is(ErrUniformPoolExhausted, renderer.ErrPoolExhausted), qt.Equals, true)
	c.Assert(renderer.IsFatal(ErrUniformPoolExhausted), qt.Equals, false)
}
