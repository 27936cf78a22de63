// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"
	"time"

	"github.com/devblok/harness/core"
	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/envy"
)

func setenv(c *qt.C, values map[string]string) {
	for key, v := range values {
		envy.Set(key, v)
	}
	c.Defer(func() {
		for key := range values {
			envy.Set(key, "")
		}
	})
}

func TestFromEnv(t *testing.T) {
	c := qt.New(t)
	defer c.Done()
	setenv(c, map[string]string{
		core.EnvWidth:            "1280",
		core.EnvHeight:           "720",
		core.EnvPresentImmediate: "true",
		core.EnvFramesPerSecond:  "0",
		core.EnvAcquireTimeout:   "250ms",
		core.EnvShaders:          "assets/shaders.kar",
		core.EnvDebug:            "1",
	})

	cfg, err := core.FromEnv(core.DefaultConfiguration())
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Renderer, qt.DeepEquals, core.RendererConfiguration{
		SwapchainSize:    3,
		PresentImmediate: true,
		ScreenWidth:      1280,
		ScreenHeight:     720,
		AcquireTimeout:   250 * time.Millisecond,
		ShaderDirectory:  "assets/shaders.kar",
		UniformSlots:     4,
	})
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 0)
	c.Assert(cfg.Debug, qt.Equals, true)

	sc := cfg.Renderer.Scheduler()
	c.Assert(sc.AcquireTimeout, qt.Equals, 250*time.Millisecond)
	c.Assert(sc.Logger, qt.Not(qt.IsNil))
}

func TestFromEnvUnset(t *testing.T) {
	c := qt.New(t)
	cfg, err := core.FromEnv(core.DefaultConfiguration())
	c.Assert(err, qt.IsNil)
	c.Assert(cfg, qt.DeepEquals, core.DefaultConfiguration())
}

func TestFromEnvErrors(t *testing.T) {
	c := qt.New(t)

	for key, value := range map[string]string{
		core.EnvWidth:           "-1",
		core.EnvFramesPerSecond: "-30",
		core.EnvAcquireTimeout:  "soon",
		core.EnvDebug:           "perhaps",
	} {
		c.Run(key, func(c *qt.C) {
			setenv(c, map[string]string{key: value})
			_, err := core.FromEnv(core.DefaultConfiguration())
			c.Assert(err, qt.ErrorMatches, key+`="`+value+`": .*`)
		})
	}
}

func TestTime(t *testing.T) {
	c := qt.New(t)

	tm := core.NewTime(core.TimeConfiguration{FramesPerSecond: 1000})
	defer tm.Stop()
	c.Assert(tm.Fps(), qt.Equals, 1000)
	c.Assert(tm.EventPollDelay(), qt.Equals, 10*time.Millisecond)

	select {
	case <-tm.FpsTicker().C:
	case <-time.After(time.Second):
		c.Fatal("fps ticker did not tick")
	}
	select {
	case <-tm.EventTicker().C:
	case <-time.After(time.Second):
		c.Fatal("event ticker did not tick")
	}
}
