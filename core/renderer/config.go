// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Configuration describes the frame scheduler configuration
type Configuration struct {
	// ClearColor is what every frame starts out as.
	ClearColor ClearColor

	// AcquireTimeout bounds the wait for a presentable image,
	// zero waits for as long as it takes.
	AcquireTimeout time.Duration

	// Logger receives frame skip and rebuild notices,
	// defaults to the logrus standard logger.
	Logger log.FieldLogger
}

// DefaultConfiguration clears to opaque red and waits indefinitely.
func DefaultConfiguration() Configuration {
	return Configuration{
		ClearColor: ClearColor{1, 0, 0, 1},
		Logger:     log.StandardLogger(),
	}
}
