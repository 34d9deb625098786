// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package tssi implements the trusted services dispatch layer of a Secure
// World monitor.
//
// The Non-secure World invokes bounded service routines, each running on its
// own Secure World goroutine, through a single monitor call entry point. Every
// call hands a pending request (if any) to the addressed service and yields
// the caller for up to a configurable time slice, the call returns when the
// service acknowledges completion or when the time slice expires.
package tssi

import (
	"fmt"
	"math"
	"time"

	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/pkg/sync"
	"gvisor.dev/gvisor/pkg/syncevent"
	"k8s.io/utils/clock"
)

// allFlags is the event listener filter, event flags are carried in the
// upper 32-bit word of the monitor call return value.
const allFlags = syncevent.Set(math.MaxUint32)

// System represents a booted trusted services layer.
type System struct {
	registry   *Registry
	window     Window
	memory     Memory
	clock      clock.Clock
	maxTimeout time.Duration
	tick       time.Duration
	halt       func(reason string)

	// trap serializes Non-secure World calls, the monitor call is
	// synchronous on the caller side.
	trap sync.Mutex

	// mu guards slots, caller and closed.
	mu    sync.Mutex
	slots []slot

	// caller is the rendezvous of the suspended Non-secure caller, nil
	// when no call is blocked.
	caller chan Status

	closed bool
	done   chan struct{}

	source   syncevent.Broadcaster
	listener syncevent.Waiter
	sub      syncevent.SubscriptionID

	workers sync.WaitGroup

	// misuse rate limits warnings triggered by Non-secure World input.
	misuse log.Logger
}

// Start partitions memory, validates the configuration, starts every service
// worker and registers the event listener. Configuration errors are fatal and
// invoke cfg.Halt.
func Start(cfg Config) *System {
	cfg.defaults()

	if cfg.Partition != nil {
		if err := cfg.Partition(cfg.Window); err != nil {
			cfg.Halt(fmt.Sprintf("could not partition memory, %v", err))
			return nil
		}
	}

	if err := Validate(cfg); err != nil {
		cfg.Halt(err.Error())
		return nil
	}

	s := &System{
		registry:   cfg.Registry,
		window:     cfg.Window,
		memory:     cfg.Memory,
		clock:      cfg.Clock,
		maxTimeout: cfg.MaxTimeout,
		tick:       cfg.Tick,
		halt:       cfg.Halt,
		slots:      make([]slot, cfg.Registry.Len()),
		done:       make(chan struct{}),
		misuse:     log.BasicRateLimitedLogger(time.Second),
	}

	s.listener.Init()

	for i := range s.slots {
		s.slots[i].armed = make(chan struct{})

		if !s.registry.used(i) {
			continue
		}

		s.startWorker(i)
	}

	for i := range s.slots {
		if s.registry.used(i) {
			<-s.slots[i].armed
		}
	}

	s.sub = s.source.SubscribeEvents(s.listener.Receiver(), allFlags)

	log.Infof("SM trusted services started window:%v services:%d max timeout:%v", s.window, s.services(), s.maxTimeout)

	return s
}

func (s *System) services() (n int) {
	for i := range s.slots {
		if s.registry.used(i) {
			n++
		}
	}

	return
}

func (s *System) startWorker(i int) {
	d := s.registry.Descriptor(i)
	w := &Worker{
		sys:   s,
		index: i,
	}

	s.workers.Add(1)

	go func() {
		defer s.workers.Done()
		defer w.arm()

		log.Debugf("SM starting service %q handle:%v prio:%d", d.Name, w.Handle(), d.Priority)

		d.Entry(w)

		if !s.isClosed() {
			log.Warningf("SM service %q returned, handle %v is no longer served", d.Name, w.Handle())
		}
	}()
}

// Enter transfers control to the Non-secure World entry point, the calling
// goroutine becomes the implicit Non-secure caller of every dispatch. Enter
// never returns, if entry returns the system is halted.
func (s *System) Enter(entry func(s *System)) {
	log.Infof("SM entering Non-secure World")

	entry(s)

	s.halt("Non-secure World returned")
}

// Boot starts the trusted services and enters the Non-secure World, it never
// returns.
func Boot(cfg Config, entry func(s *System)) {
	if s := Start(cfg); s != nil {
		s.Enter(entry)
	}
}

// Close interrupts any blocked Non-secure caller, resets every idle worker and
// waits for all service goroutines to return. Workers busy with a request are
// reset when they acknowledge it.
func (s *System) Close() {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	s.closed = true
	close(s.done)

	for i := range s.slots {
		sl := &s.slots[i]

		if sl.ready != nil {
			sl.ready <- MsgReset
			sl.ready = nil
		}
	}

	s.mu.Unlock()

	s.workers.Wait()
	s.source.UnsubscribeEvents(s.sub)

	log.Infof("SM trusted services stopped")
}

func (s *System) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
