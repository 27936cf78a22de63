// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer_test

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/devblok/harness/core/renderer"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// fakeGPU stands in for every GPU collaborator of the scheduler and
// keeps a log of what was asked of it.
type fakeGPU struct {
	imageCount  int
	minExtent   renderer.Extent
	recreateErr error

	acquireErrs  []error
	suboptimal   []bool
	submitErrs   []error
	nextIndex    int
	uniformErr   error
	exhausted    int
	captureImage image.Image

	ops          []string
	chains       []*fakeChain
	framebuffers []*fakeFramebuffer
	futures      []*fakeFuture
	submits      []submission
	uniforms     []renderer.UniformData
	acquires     int
}

type submission struct {
	prev   *fakeFuture
	acq    renderer.Acquisition
	cmd    *fakeCommandBuffer
	chain  *fakeChain
	result *fakeFuture
}

func newFakeGPU(imageCount int) *fakeGPU {
	return &fakeGPU{imageCount: imageCount}
}

func (g *fakeGPU) device() renderer.Device {
	return renderer.Device{
		Queue:    g,
		Commands: g,
		Uniforms: g,
		Pass:     g,
	}
}

func (g *fakeGPU) newChain(extent renderer.Extent) *fakeChain {
	c := &fakeChain{gpu: g, id: len(g.chains), extent: extent}
	for idx := 0; idx < g.imageCount; idx++ {
		c.images = append(c.images, fakeImage{extent: extent})
	}
	g.chains = append(g.chains, c)
	return c
}

func (g *fakeGPU) newFuture(finished bool) *fakeFuture {
	f := &fakeFuture{id: len(g.futures), finished: finished}
	g.futures = append(g.futures, f)
	return f
}

// Now implements renderer.Queue
func (g *fakeGPU) Now() renderer.Future {
	f := g.newFuture(true)
	f.now = true
	return f
}

// Submit implements renderer.Queue
func (g *fakeGPU) Submit(prev renderer.Future, acq renderer.Acquisition, cmd renderer.CommandBuffer, chain renderer.Swapchain) (renderer.Future, error) {
	g.ops = append(g.ops, "submit")
	g.submits = append(g.submits, submission{
		prev:  prev.(*fakeFuture),
		acq:   acq,
		cmd:   cmd.(*fakeCommandBuffer),
		chain: chain.(*fakeChain),
	})
	if len(g.submitErrs) > 0 {
		err := g.submitErrs[0]
		g.submitErrs = g.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f := g.newFuture(false)
	g.submits[len(g.submits)-1].result = f
	return f, nil
}

// Begin implements renderer.CommandAllocator
func (g *fakeGPU) Begin() (renderer.Recorder, error) {
	return &fakeRecorder{gpu: g, cmd: &fakeCommandBuffer{}}, nil
}

// Write implements renderer.UniformPool
func (g *fakeGPU) Write(data renderer.UniformData) (renderer.UniformSet, error) {
	if g.uniformErr != nil {
		return nil, g.uniformErr
	}
	if g.exhausted > 0 {
		g.exhausted--
		return nil, errors.Wrap(renderer.ErrPoolExhausted, "fake")
	}
	g.uniforms = append(g.uniforms, data)
	return len(g.uniforms) - 1, nil
}

// NewFramebuffer implements renderer.RenderPass
func (g *fakeGPU) NewFramebuffer(img renderer.Image) (renderer.Framebuffer, error) {
	fb := &fakeFramebuffer{id: len(g.framebuffers), extent: img.Extent()}
	g.framebuffers = append(g.framebuffers, fb)
	return fb, nil
}

type fakeImage struct {
	extent renderer.Extent
}

func (i fakeImage) Extent() renderer.Extent { return i.extent }

type fakeChain struct {
	gpu       *fakeGPU
	id        int
	extent    renderer.Extent
	images    []renderer.Image
	destroyed bool
	hintedBy  int
}

func (c *fakeChain) ImageCount() int { return len(c.images) }
func (c *fakeChain) Images() []renderer.Image { return c.images }
func (c *fakeChain) Extent() renderer.Extent { return c.extent }
func (c *fakeChain) Destroy() { c.destroyed = true }
func (c *fakeChain) String() string { return fmt.Sprintf("chain#%d", c.id) }
func (c *fakeChain) Recreate(e renderer.Extent) (renderer.Swapchain, error) {
	c.gpu.ops = append(c.gpu.ops, "recreate")
	if c.gpu.recreateErr != nil {
		return nil, c.gpu.recreateErr
	}
	if e.Width < c.gpu.minExtent.Width || e.Height < c.gpu.minExtent.Height {
		return nil, fmt.Errorf("fake: %dx%d: %w", e.Width, e.Height, renderer.ErrExtentNotSupported)
	}
	nc := c.gpu.newChain(e)
	nc.hintedBy = c.id
	return nc, nil
}

func (c *fakeChain) Acquire(timeout time.Duration) (renderer.Acquisition, error) {
	g := c.gpu
	g.ops = append(g.ops, "acquire")
	g.acquires++
	if len(g.acquireErrs) > 0 {
		err := g.acquireErrs[0]
		g.acquireErrs = g.acquireErrs[1:]
		if err != nil {
			return renderer.Acquisition{}, err
		}
	}
	var suboptimal bool
	if len(g.suboptimal) > 0 {
		suboptimal = g.suboptimal[0]
		g.suboptimal = g.suboptimal[1:]
	}
	idx := g.nextIndex % len(c.images)
	g.nextIndex++
	return renderer.Acquisition{
		Index:      idx,
		Suboptimal: suboptimal,
		Ready:      g.newFuture(false),
	}, nil
}

type fakeFramebuffer struct {
	id        int
	extent    renderer.Extent
	destroyed bool
}

func (f *fakeFramebuffer) Destroy() { f.destroyed = true }

type fakeFuture struct {
	id       int
	now      bool
	finished bool
	waits    int
	cleanups int
}

func (f *fakeFuture) CleanupFinished() { f.cleanups++ }
func (f *fakeFuture) Finished() bool { return f.finished }
func (f *fakeFuture) Wait(timeout time.Duration) error {
	f.waits++
	f.finished = true
	return nil
}

type fakeCommandBuffer struct {
	ops []string
}

type fakeRecorder struct {
	gpu *fakeGPU
	cmd *fakeCommandBuffer
}

func (r *fakeRecorder) op(format string, args ...interface{}) {
	r.cmd.ops = append(r.cmd.ops, fmt.Sprintf(format, args...))
}

func (r *fakeRecorder) BeginRenderPass(fb renderer.Framebuffer, clear renderer.ClearColor) {
	r.op("begin fb=%d clear=%v", fb.(*fakeFramebuffer).id, clear)
}

func (r *fakeRecorder) SetViewport(vp renderer.Viewport) {
	r.op("viewport %vx%v", vp.Dimensions[0], vp.Dimensions[1])
}

func (r *fakeRecorder) BindUniforms(set renderer.UniformSet) { r.op("uniforms %v", set) }
func (r *fakeRecorder) BindPipeline(p renderer.Pipeline) { r.op("pipeline %v", p) }
func (r *fakeRecorder) PushTransform(m glm.Mat4) { r.op("transform %v", m.Col(3).Vec3()) }
func (r *fakeRecorder) BindVertexBuffer(b renderer.VertexBuffer) {
	r.op("vertices %s", b.(fakeBuffer).name)
}
func (r *fakeRecorder) Draw(vertexCount, instanceCount uint32) {
	r.op("draw %d %d", vertexCount, instanceCount)
}
func (r *fakeRecorder) EndRenderPass() { r.op("end") }

func (r *fakeRecorder) Build() (renderer.CommandBuffer, error) {
	return r.cmd, nil
}

func (r *fakeRecorder) Capture(index int) (renderer.Readback, error) {
	r.op("capture %d", index)
	return fakeReadback{img: r.gpu.captureImage}, nil
}

type fakeReadback struct {
	img image.Image
}

func (rb fakeReadback) Image() (image.Image, error) { return rb.img, nil }

type fakeBuffer struct {
	name string
	len  uint32
}

func (b fakeBuffer) Len() uint32 { return b.len }

type fakeSurface struct {
	extent renderer.Extent
}

func (s *fakeSurface) DrawableExtent() renderer.Extent { return s.extent }

func drawCall(name string, vertices uint32) renderer.DrawCall {
	return renderer.DrawCall{
		Transform: glm.Ident4(),
		Model:     renderer.Model{Buffer: fakeBuffer{name: name, len: vertices}},
		Material:  renderer.Material{Pipeline: "pipeline-" + name},
	}
}

func solidImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}
