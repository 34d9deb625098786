// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tssi

import (
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

// DefaultMaxTimeout is the time slice ceiling used when Config.MaxTimeout is
// not set.
const DefaultMaxTimeout = 50 * time.Millisecond

// Memory is the Secure World view of Non-secure World memory.
type Memory interface {
	// Bytes returns the n bytes of Non-secure memory at addr, the range
	// has already been validated against the Non-secure window.
	Bytes(addr uint64, n uint64) []byte
}

// Config represents the trusted services configuration, it is supplied once
// at boot.
type Config struct {
	// Window is the Non-secure World address range, every caller supplied
	// buffer must lie within it.
	Window Window
	// Memory maps Window addresses to bytes.
	Memory Memory
	// Registry is the service table.
	Registry *Registry

	// MaxTimeout is the ceiling applied to every caller time slice.
	MaxTimeout time.Duration
	// Tick is the kernel time resolution, time slices are rounded up to
	// a multiple of it when set.
	Tick time.Duration
	// Clock is the time source for caller time slices.
	Clock clock.Clock

	// Partition configures the memory protection hardware, it must mark
	// the Non-secure window as non executable from the Secure World.
	Partition func(w Window) error
	// Halt stops the system on configuration errors, it must not return.
	// The default panics.
	Halt func(reason string)
}

// ConfigError represents a fatal configuration inconsistency.
type ConfigError struct {
	// Service is the offending registry row, -1 when the error is not
	// related to a service.
	Service int
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Service < 0 {
		return "invalid trusted services configuration: " + e.Reason
	}

	return fmt.Sprintf("invalid trusted services configuration (service %d): %s", e.Service, e.Reason)
}

func configError(service int, format string, a ...interface{}) error {
	return &ConfigError{
		Service: service,
		Reason:  fmt.Sprintf(format, a...),
	}
}

func (cfg *Config) defaults() {
	if cfg.MaxTimeout == 0 {
		cfg.MaxTimeout = DefaultMaxTimeout
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}

	if cfg.Halt == nil {
		cfg.Halt = func(reason string) {
			panic(reason)
		}
	}
}

// Validate checks the configuration consistency, the returned error is a
// *ConfigError.
func Validate(cfg Config) (err error) {
	if cfg.Window.Size == 0 {
		return configError(-1, "empty Non-secure window")
	}

	if cfg.Window.End() < cfg.Window.Start {
		return configError(-1, "Non-secure window %#x+%#x overflows", cfg.Window.Start, cfg.Window.Size)
	}

	if cfg.Memory == nil {
		return configError(-1, "missing Non-secure memory")
	}

	if cfg.MaxTimeout < 0 || cfg.Tick < 0 {
		return configError(-1, "negative time slice settings")
	}

	r := cfg.Registry

	if r == nil || r.Len() == 0 {
		return configError(-1, "empty service registry")
	}

	if r.Len() > MaxServices {
		return configError(-1, "%d services exceed table capacity (%d)", r.Len(), MaxServices)
	}

	for i := 0; i < r.Len(); i++ {
		if !r.used(i) {
			continue
		}

		d := r.Descriptor(i)

		if d.Slot != i {
			return configError(i, "bad state slot %d for %q", d.Slot, d.Name)
		}

		if d.Priority <= NormalPriority || d.Priority >= HighPriority {
			return configError(i, "bad priority %d for %q", d.Priority, d.Name)
		}
	}

	return
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}
