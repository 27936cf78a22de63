// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"image"
	"sync"
	"sync/atomic"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// State is the step of frame submission the Scheduler is in.
type State int32

// Submission states, a frame always ends back in Idle.
const (
	Idle State = iota
	Acquiring
	Recording
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Recording:
		return "recording"
	case Submitting:
		return "submitting"
	}
	return "unknown"
}

// Stats counts what happened to submitted frames.
type Stats struct {
	// Frames submitted to the GPU.
	Frames uint64

	// Skipped frames, degenerate extent, unsupported extent,
	// out of date chain or acquisition timeout.
	Skipped uint64

	// Rebuilds of the presentation chain.
	Rebuilds uint64
}

// Scheduler acquires, records, submits and presents frames.
// Frame submission must happen from one goroutine, OnResized,
// State and Stats are safe to call from any.
type Scheduler struct {
	stats Stats // accessed atomically, kept first for alignment

	busy    int32
	state   int32
	resized int32

	dev     Device
	surface Surface
	cfg     Configuration
	log     log.FieldLogger

	transformLock sync.Mutex
	transform     glm.Mat4

	target       FrameTarget
	framebuffers FramebufferSet
	viewport     Viewport
	inFlight     inFlight
	retired      graveyard
}

// NewScheduler creates a scheduler presenting to surface through chain,
// which the scheduler owns from now on.
func NewScheduler(dev Device, surface Surface, chain Swapchain, cfg Configuration) (*Scheduler, error) {
	if dev.Queue == nil || dev.Commands == nil || dev.Uniforms == nil || dev.Pass == nil {
		return nil, errors.New("renderer: device is missing collaborators")
	}
	if surface == nil || chain == nil {
		return nil, errors.New("renderer: surface and swapchain are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}

	target, err := NewFrameTarget(chain)
	if err != nil {
		return nil, err
	}

	framebuffers, viewport, err := buildFramebuffers(dev.Pass, target)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		dev:          dev,
		surface:      surface,
		cfg:          cfg,
		log:          cfg.Logger,
		transform:    glm.Ident4(),
		target:       target,
		framebuffers: framebuffers,
		viewport:     viewport,
		inFlight:     inFlight{future: dev.Queue.Now()},
	}, nil
}

// OnResized marks the presentation chain stale, it is rebuilt
// by the next frame that has something to draw into.
func (s *Scheduler) OnResized() {
	atomic.StoreInt32(&s.resized, 1)
}

// SetTransform sets the matrix uploaded as the frame's uniform data.
func (s *Scheduler) SetTransform(m glm.Mat4) {
	s.transformLock.Lock()
	s.transform = m
	s.transformLock.Unlock()
}

// Transform returns the matrix uploaded as the frame's uniform data.
func (s *Scheduler) Transform() glm.Mat4 {
	s.transformLock.Lock()
	defer s.transformLock.Unlock()
	return s.transform
}

// State returns the current submission step.
func (s *Scheduler) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// Stats returns a snapshot of the frame counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Frames:   atomic.LoadUint64(&s.stats.Frames),
		Skipped:  atomic.LoadUint64(&s.stats.Skipped),
		Rebuilds: atomic.LoadUint64(&s.stats.Rebuilds),
	}
}

// Target returns the current frame target.
func (s *Scheduler) Target() FrameTarget {
	return s.target
}

// Framebuffers returns the framebuffers of the current frame target.
func (s *Scheduler) Framebuffers() FramebufferSet {
	return s.framebuffers
}

// Viewport returns the viewport of the current frame target.
func (s *Scheduler) Viewport() Viewport {
	return s.viewport
}

// SubmitFrame draws drawCalls, in order, into the next presentable image.
// With blockUntilDrawn it waits for the GPU to finish the frame.
//
// Frames that can't be drawn right now (minimised window, resize in
// progress, out of date chain) are skipped silently. A returned error
// is always a FatalError and the session should be shut down.
func (s *Scheduler) SubmitFrame(drawCalls []DrawCall, blockUntilDrawn bool) error {
	_, err := s.frame(drawCalls, blockUntilDrawn, false)
	return err
}

// CaptureFrame draws a frame like SubmitFrame, waits for it and
// returns a copy of the presented image. Returns ErrFrameSkipped
// when no frame could be drawn.
func (s *Scheduler) CaptureFrame(drawCalls []DrawCall) (image.Image, error) {
	rb, err := s.frame(drawCalls, true, true)
	if err != nil {
		return nil, err
	}
	if rb == nil {
		return nil, ErrFrameSkipped
	}
	img, err := rb.Image()
	if err != nil {
		return nil, fatal("capture", err)
	}
	return img, nil
}

func (s *Scheduler) frame(drawCalls []DrawCall, block, capture bool) (Readback, error) {
	if !atomic.CompareAndSwapInt32(&s.busy, 0, 1) {
		return nil, fatal("submission", ErrReentrant)
	}
	defer atomic.StoreInt32(&s.busy, 0)
	defer s.setState(Idle)

	if err := validate(drawCalls); err != nil {
		return nil, err
	}

	extent := s.surface.DrawableExtent()
	if extent.Degenerate() {
		s.skip("degenerate extent", extent)
		return nil, nil
	}

	s.reclaim()

	if atomic.SwapInt32(&s.resized, 0) == 1 {
		s.target.MarkStale()
	}
	if !s.target.Optimal() {
		if err := s.rebuild(extent); err != nil {
			if IsRecoverable(err) {
				s.skip("extent not supported", extent)
				return nil, nil
			}
			return nil, err
		}
	}

	s.setState(Acquiring)
	acq, err := s.target.chain.Acquire(s.cfg.AcquireTimeout)
	switch {
	case err == nil:
	case errors.Is(err, ErrOutOfDate):
		s.target.MarkStale()
		s.skip("acquire out of date", extent)
		return nil, nil
	case errors.Is(err, ErrTimeout):
		s.skip("acquire timeout", extent)
		return nil, nil
	default:
		return nil, fatal("image acquisition", err)
	}
	if acq.Suboptimal {
		s.target.MarkStale()
	}
	if acq.Index < 0 || acq.Index >= len(s.framebuffers) {
		return nil, fatal("image acquisition", errors.Errorf("image index %d out of range [0,%d)", acq.Index, len(s.framebuffers)))
	}

	s.setState(Recording)
	cmd, rb, err := s.record(drawCalls, acq.Index, capture)
	if err != nil {
		return nil, err
	}

	s.setState(Submitting)
	drawn, err := s.submit(acq, cmd, block, extent)
	if err != nil || !drawn {
		return nil, err
	}
	return rb, nil
}

func validate(drawCalls []DrawCall) error {
	if len(drawCalls) == 0 {
		return fatal("validation", ErrNoDrawCalls)
	}
	for idx, dc := range drawCalls {
		if dc.Model.Buffer == nil || dc.Material.Pipeline == nil {
			return fatal("validation", errors.Wrapf(ErrMalformedDrawCall, "draw call %d", idx))
		}
	}
	return nil
}

// writeUniforms uploads the frame's uniforms. A full pool means every
// slot is held by frames still on the GPU, so it waits for the in-flight
// frame, reclaims what finished and tries once more.
func (s *Scheduler) writeUniforms(data UniformData) (UniformSet, error) {
	set, err := s.dev.Uniforms.Write(data)
	if err == nil || !errors.Is(err, ErrPoolExhausted) {
		return set, err
	}
	future := s.inFlight.peek()
	if future == nil {
		return nil, err
	}
	s.log.Debug("uniform pool exhausted, waiting for the frame in flight")
	if err := future.Wait(0); err != nil {
		return nil, err
	}
	s.reclaim()
	return s.dev.Uniforms.Write(data)
}

// reclaim releases resources of frames the GPU is done with.
func (s *Scheduler) reclaim() {
	if f := s.inFlight.peek(); f != nil {
		f.CleanupFinished()
	}
	s.retired.reap()
}

func (s *Scheduler) rebuild(extent Extent) error {
	target, err := Rebuild(s.target, extent)
	if err != nil {
		return err
	}

	framebuffers, viewport, err := buildFramebuffers(s.dev.Pass, target)
	if err != nil {
		target.chain.Destroy()
		return err
	}

	// Work already submitted may still reference the old chain.
	after := s.inFlight.peek()
	s.retired.bury(s.framebuffers, after)
	s.retired.bury(s.target.chain, after)

	s.target = target
	s.framebuffers = framebuffers
	s.viewport = viewport
	atomic.AddUint64(&s.stats.Rebuilds, 1)

	s.log.WithFields(log.Fields{
		"width":  extent.Width,
		"height": extent.Height,
		"images": len(target.images),
	}).Debug("presentation chain rebuilt")
	return nil
}

func (s *Scheduler) record(drawCalls []DrawCall, index int, capture bool) (CommandBuffer, Readback, error) {
	rec, err := s.dev.Commands.Begin()
	if err != nil {
		return nil, nil, fatal("command buffer allocation", err)
	}

	uniforms, err := s.writeUniforms(UniformData{Transformation: s.Transform()})
	if err != nil {
		return nil, nil, fatal("uniform upload", err)
	}

	rec.BeginRenderPass(s.framebuffers[index], s.cfg.ClearColor)
	rec.SetViewport(s.viewport)
	rec.BindUniforms(uniforms)
	for _, dc := range drawCalls {
		rec.BindPipeline(dc.Material.Pipeline)
		rec.PushTransform(dc.Transform)
		rec.BindVertexBuffer(dc.Model.Buffer)
		rec.Draw(dc.Model.Buffer.Len(), 1)
	}
	rec.EndRenderPass()

	var rb Readback
	if capture {
		capturer, ok := rec.(Capturer)
		if !ok {
			return nil, nil, fatal("capture", ErrCaptureUnsupported)
		}
		if rb, err = capturer.Capture(index); err != nil {
			return nil, nil, fatal("capture", err)
		}
	}

	cmd, err := rec.Build()
	if err != nil {
		return nil, nil, fatal("command recording", err)
	}
	return cmd, rb, nil
}

func (s *Scheduler) submit(acq Acquisition, cmd CommandBuffer, block bool, extent Extent) (bool, error) {
	prev, err := s.inFlight.take()
	if err != nil {
		return false, fatal("submission", err)
	}

	future, err := s.dev.Queue.Submit(prev, acq, cmd, s.target.chain)
	switch {
	case err == nil:
	case errors.Is(err, ErrOutOfDate):
		s.target.MarkStale()
		s.inFlight.put(s.dev.Queue.Now())
		s.skip("present out of date", extent)
		return false, nil
	default:
		s.inFlight.put(s.dev.Queue.Now())
		return false, fatal("submission", err)
	}

	s.inFlight.put(future)
	if block {
		if err := future.Wait(0); err != nil {
			return false, fatal("frame wait", err)
		}
	}
	atomic.AddUint64(&s.stats.Frames, 1)
	return true, nil
}

func (s *Scheduler) skip(reason string, extent Extent) {
	atomic.AddUint64(&s.stats.Skipped, 1)
	s.log.WithFields(log.Fields{
		"reason": reason,
		"width":  extent.Width,
		"height": extent.Height,
	}).Debug("frame skipped")
}

func (s *Scheduler) setState(st State) {
	atomic.StoreInt32(&s.state, int32(st))
}

// Destroy waits for the last frame and releases the presentation chain
// and everything built on it.
func (s *Scheduler) Destroy() {
	if f := s.inFlight.peek(); f != nil {
		if err := f.Wait(0); err != nil {
			s.log.WithError(err).Warn("waiting for the last frame failed")
		}
		f.CleanupFinished()
	}
	s.retired.destroyAll()
	s.framebuffers.Destroy()
	s.framebuffers = nil
	if s.target.chain != nil {
		s.target.chain.Destroy()
	}
}
