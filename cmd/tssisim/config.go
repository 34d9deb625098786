// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"gvisor.dev/gvisor/pkg/log"

	"github.com/usbarmory/GoTEE-tssi/mem"
	"github.com/usbarmory/GoTEE-tssi/services"
	"github.com/usbarmory/GoTEE-tssi/tssi"
)

// config is the simulator configuration file.
type config struct {
	// Window is the simulated Non-secure memory.
	Window windowConfig `toml:"window"`
	// MaxTimeout is the caller time slice ceiling.
	MaxTimeout time.Duration `toml:"max_timeout"`
	// Tick is the time slice resolution.
	Tick time.Duration `toml:"tick"`
	// LogLevel is one of warning, info or debug.
	LogLevel string `toml:"log_level"`
	// Services is the service table, in handle order.
	Services []serviceConfig `toml:"service"`
}

type windowConfig struct {
	Start uint32 `toml:"start"`
	Size  uint32 `toml:"size"`
}

type serviceConfig struct {
	// Name is the discovery name, unnamed services are only reachable by
	// handle.
	Name string `toml:"name"`
	// Kind selects the service implementation, an empty kind leaves the
	// row unused.
	Kind     string `toml:"kind"`
	Priority int    `toml:"priority"`
}

func defaultConfig() *config {
	c := &config{
		Window: windowConfig{
			Start: mem.NonSecureStart,
			Size:  1 << 20,
		},
		MaxTimeout: tssi.DefaultMaxTimeout,
		Tick:       time.Millisecond,
		LogLevel:   "info",
	}

	for _, kind := range services.Names() {
		c.Services = append(c.Services, serviceConfig{
			Name:     kind,
			Kind:     kind,
			Priority: tssi.NormalPriority + 1,
		})
	}

	return c
}

// loadConfig reads the configuration file at path, an empty path selects the
// default configuration.
func loadConfig(path string) (c *config, err error) {
	c = defaultConfig()

	if path == "" {
		return
	}

	// the file replaces the default service table
	c.Services = nil

	if _, err = toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("could not read %s, %v", path, err)
	}

	return
}

func (c *config) level() (l log.Level, err error) {
	err = l.UnmarshalJSON([]byte(strconv.Quote(c.LogLevel)))
	return
}

// build allocates the Non-secure memory and the service table.
func (c *config) build() (cfg tssi.Config, region *mem.Region, err error) {
	if region, err = mem.NewRegion(uint64(c.Window.Start), int(c.Window.Size)); err != nil {
		return
	}

	descs := make([]tssi.Descriptor, len(c.Services))

	for i, sc := range c.Services {
		if sc.Kind == "" {
			continue
		}

		entry, err := services.New(sc.Kind)

		if err != nil {
			return cfg, nil, err
		}

		descs[i] = tssi.Descriptor{
			Name:     sc.Name,
			Entry:    entry,
			Priority: sc.Priority,
		}
	}

	cfg = tssi.Config{
		Window:     region.Window(),
		Memory:     region,
		Registry:   tssi.NewRegistry(descs...),
		MaxTimeout: c.MaxTimeout,
		Tick:       c.Tick,
	}

	return
}
