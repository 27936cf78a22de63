// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:generate glslangValidator -V shaders/direct.vert -o shaders/direct.vert.spv
//go:generate glslangValidator -V shaders/direct.frag -o shaders/direct.frag.spv

// Command harness opens a window and draws the star, or a Collada model,
// through the frame scheduler until the window is closed.
package main

import (
	"flag"
	"io/ioutil"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"
	"time"

	"github.com/devblok/harness/core"
	"github.com/devblok/harness/core/renderer"
	"github.com/devblok/harness/device"
	"github.com/devblok/harness/gfx/vkr"
	"github.com/devblok/harness/model"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	runtime.LockOSThread()
}

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
)

var (
	debug      = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	immediate  = flag.Bool("immediate", false, "Present without waiting for vertical blank")
	block      = flag.Bool("block", false, "Wait for every frame to be drawn before the next")
	modelFile  = flag.String("model", "", "Collada (.dae) model to draw instead of the star")
	screenshot = flag.String("screenshot", "", "Capture the first frame into a .png, .bmp or .tiff file and exit")
	verbose    = flag.Bool("v", false, "Log skipped frames and swapchain rebuilds")
)

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := trace.Start(f); err != nil {
			log.Fatal(err)
		}
		defer trace.Stop()
	}

	cfg, err := core.FromEnv(core.DefaultConfiguration())
	if err != nil {
		log.Fatal(err)
	}
	cfg.Debug = cfg.Debug || *debug
	cfg.Renderer.PresentImmediate = cfg.Renderer.PresentImmediate || *immediate

	if err := run(cfg); err != nil {
		log.WithError(err).Error("harness stopped")
		os.Exit(1)
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		f.Close()
	}
}

func run(cfg core.Configuration) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return err
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		return err
	}
	defer sdl.VulkanUnloadLibrary()

	window, err := newWindow(cfg.Renderer.ScreenWidth, cfg.Renderer.ScreenHeight)
	if err != nil {
		return err
	}
	defer window.Destroy()

	inst, err := device.NewInstance(device.DefaultApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), device.InstanceConfiguration{
		DebugMode:  cfg.Debug,
		Extensions: window.VulkanGetInstanceExtensions(),
	})
	if err != nil {
		return err
	}
	defer inst.Destroy()

	srf, err := window.VulkanCreateSurface(inst.Handle())
	if err != nil {
		return errors.Wrap(err, "window.VulkanCreateSurface()")
	}
	inst.SetSurface(srf)

	info, err := device.Pick(inst.PhysicalDevicesInfo())
	if err != nil {
		return err
	}

	dev, err := vkr.NewDevice(inst, info, log.StandardLogger())
	if err != nil {
		return err
	}
	defer dev.Destroy()

	surface := windowSurface{window: window}
	chain, err := vkr.NewSwapchain(dev, inst.Surface(), surface.DrawableExtent(), vkr.SwapchainOptions{
		MinImageCount:    cfg.Renderer.SwapchainSize,
		PresentImmediate: cfg.Renderer.PresentImmediate,
	})
	if err != nil {
		return err
	}

	backend, err := vkr.NewBackend(dev, chain.Format(), uniformSlots(cfg.Renderer.UniformSlots, chain.ImageCount()))
	if err != nil {
		chain.Destroy()
		return err
	}
	defer backend.Destroy()

	shaders, err := loadShaders(dev, cfg.Renderer.ShaderDirectory)
	if err != nil {
		chain.Destroy()
		return err
	}
	defer shaders.Destroy()

	pipeline, err := buildPipeline(backend.Pipelines, shaders, "direct")
	if err != nil {
		chain.Destroy()
		return err
	}
	defer pipeline.Destroy()

	vertices, err := loadVertices(*modelFile)
	if err != nil {
		chain.Destroy()
		return err
	}
	vb, err := vkr.NewVertexBuffer(dev, vertices)
	if err != nil {
		chain.Destroy()
		return err
	}
	defer vb.Destroy()

	schedulerCfg := cfg.Renderer.Scheduler()
	schedulerCfg.Logger = log.WithField("component", "scheduler")
	scheduler, err := renderer.NewScheduler(backend.Scheduler(), surface, chain, schedulerCfg)
	if err != nil {
		chain.Destroy()
		return err
	}
	defer scheduler.Destroy()

	log.WithFields(log.Fields{
		"device":       info.Name,
		"type":         info.Type,
		"present_mode": chain.PresentMode(),
		"images":       chain.ImageCount(),
		"vertices":     len(vertices),
	}).Info("harness ready")

	drawCalls := []renderer.DrawCall{{
		Transform: model.Identity().Matrix(),
		Model:     renderer.Model{Buffer: vb},
		Material:  renderer.Material{Pipeline: pipeline},
	}}

	if *screenshot != "" {
		return captureScreenshot(scheduler, drawCalls, *screenshot)
	}
	return loop(cfg.Time, scheduler, drawCalls)
}

func loop(cfg core.TimeConfiguration, scheduler *renderer.Scheduler, drawCalls []renderer.DrawCall) error {
	timeService := core.NewTime(cfg)
	defer timeService.Stop()

	stats := time.NewTicker(5 * time.Second)
	defer stats.Stop()

	var angle float32
	for {
		select {
		case <-timeService.EventTicker().C:
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						log.Info("event loop exited")
						return nil
					}
				case *sdl.QuitEvent:
					log.Info("event loop exited")
					return nil
				case *sdl.WindowEvent:
					if resized(et) {
						scheduler.OnResized()
					}
				}
			}
		case <-timeService.FpsTicker().C:
			angle += 0.01
			scheduler.SetTransform(glm.HomogRotate3DZ(angle))
			if err := scheduler.SubmitFrame(drawCalls, *block); err != nil {
				return err
			}
		case <-stats.C:
			st := scheduler.Stats()
			log.WithFields(log.Fields{
				"frames":   st.Frames,
				"skipped":  st.Skipped,
				"rebuilds": st.Rebuilds,
				"cgo":      runtime.NumCgoCall(),
			}).Info("frame statistics")
		}
	}
}

// captureScreenshot retries until a frame is actually drawn, frames are
// skipped while the window is still being mapped.
func captureScreenshot(scheduler *renderer.Scheduler, drawCalls []renderer.DrawCall, path string) error {
	for attempt := 0; attempt < 100; attempt++ {
		sdl.PumpEvents()
		img, err := scheduler.CaptureFrame(drawCalls)
		if errors.Cause(err) == renderer.ErrFrameSkipped {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err != nil {
			return err
		}
		if err := writeScreenshot(path, img); err != nil {
			return err
		}
		log.WithField("path", path).Info("screenshot written")
		return nil
	}
	return errors.Wrap(renderer.ErrFrameSkipped, "no frame could be captured")
}

// uniformSlots leaves room for every chain image plus the frame being
// recorded, fewer slots would stall on every frame.
func uniformSlots(configured, images int) int {
	if min := images + 1; configured < min {
		return min
	}
	return configured
}

func loadShaders(dev *vkr.Device, location string) (*core.ShaderContainer, error) {
	var (
		sources []core.ShaderSource
		err     error
	)
	switch {
	case location == "":
		sources, err = embeddedShaders()
	case strings.HasSuffix(location, ".kar"):
		sources, err = core.ArchiveSource(location)
	default:
		sources, err = core.DirectorySource(location)
	}
	if err != nil {
		return nil, err
	}
	return core.NewShaderContainer(sources, vkr.Compiler(dev))
}

// embeddedShaders returns the compiled shaders packed into the binary.
func embeddedShaders() ([]core.ShaderSource, error) {
	return core.BoxSource(packr.NewBox("./shaders"))
}

func buildPipeline(factory *vkr.PipelineFactory, shaders *core.ShaderContainer, name string) (*vkr.Pipeline, error) {
	vert, err := shaders.Lookup(core.VertexShaderType, name)
	if err != nil {
		return nil, err
	}
	frag, err := shaders.Lookup(core.FragmentShaderType, name)
	if err != nil {
		return nil, err
	}
	return factory.Build(vert, frag)
}

func loadVertices(path string) ([]model.Vertex, error) {
	if path == "" {
		return model.Star(), nil
	}
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return model.ImportCollada(contents)
}
