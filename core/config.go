// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strconv"
	"time"

	"github.com/devblok/harness/core/renderer"
	"github.com/gobuffalo/envy"
	"github.com/pkg/errors"
)

// Environment variables read by FromEnv, a .env file
// in the working directory is read as well.
const (
	EnvWidth            = "HARNESS_WIDTH"
	EnvHeight           = "HARNESS_HEIGHT"
	EnvSwapchainSize    = "HARNESS_SWAPCHAIN_SIZE"
	EnvPresentImmediate = "HARNESS_PRESENT_IMMEDIATE"
	EnvFramesPerSecond  = "HARNESS_FPS"
	EnvShaders          = "HARNESS_SHADERS"
	EnvAcquireTimeout   = "HARNESS_ACQUIRE_TIMEOUT"
	EnvDebug            = "HARNESS_DEBUG"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration

	// Debug enables the validation layers
	Debug bool
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the event loop period in milliseconds
	EventPollDelay int
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize    uint32
	PresentImmediate bool

	ScreenWidth  uint32
	ScreenHeight uint32

	// AcquireTimeout of 0 waits for images indefinitely
	AcquireTimeout time.Duration

	// ShaderDirectory or a .kar archive, the embedded shaders
	// are used when empty
	ShaderDirectory string

	// UniformSlots caps the number of frames in flight, the harness
	// raises it to one more than the swapchain image count
	UniformSlots int
}

// DefaultConfiguration is a 60 fps, triple buffered 800x600 window.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
			EventPollDelay:  10,
		},
		Renderer: RendererConfiguration{
			SwapchainSize: 3,
			ScreenWidth:   800,
			ScreenHeight:  600,
			UniformSlots:  4,
		},
	}
}

// FromEnv overrides cfg with whatever is set in the environment.
func FromEnv(cfg Configuration) (Configuration, error) {
	var err error
	set := func(key string, parse func(string) error) {
		v := envy.Get(key, "")
		if err != nil || v == "" {
			return
		}
		if perr := parse(v); perr != nil {
			err = errors.Wrapf(perr, "%s=%q", key, v)
		}
	}

	set(EnvWidth, uint32Parser(&cfg.Renderer.ScreenWidth))
	set(EnvHeight, uint32Parser(&cfg.Renderer.ScreenHeight))
	set(EnvSwapchainSize, uint32Parser(&cfg.Renderer.SwapchainSize))
	set(EnvPresentImmediate, boolParser(&cfg.Renderer.PresentImmediate))
	set(EnvFramesPerSecond, func(v string) error {
		fps, err := strconv.Atoi(v)
		if err == nil && fps < 0 {
			return errors.New("negative frame rate")
		}
		cfg.Time.FramesPerSecond = fps
		return err
	})
	set(EnvShaders, func(v string) error {
		cfg.Renderer.ShaderDirectory = v
		return nil
	})
	set(EnvAcquireTimeout, func(v string) error {
		d, err := time.ParseDuration(v)
		cfg.Renderer.AcquireTimeout = d
		return err
	})
	set(EnvDebug, boolParser(&cfg.Debug))
	return cfg, err
}

func uint32Parser(dst *uint32) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		*dst = uint32(n)
		return err
	}
}

func boolParser(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		*dst = b
		return err
	}
}

// Scheduler derives the frame scheduler configuration.
func (r RendererConfiguration) Scheduler() renderer.Configuration {
	cfg := renderer.DefaultConfiguration()
	cfg.AcquireTimeout = r.AcquireTimeout
	return cfg
}
