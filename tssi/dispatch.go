// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tssi

import (
	"bytes"
	"context"
	"math"
	"time"

	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/pkg/syncevent"
)

// SYS_TSSI is the monitor call number of the dispatch entry point, handle,
// buffer address, buffer length and time slice are passed in r1-r4 and the
// packed result is returned in r0 (low word) and r1 (high word).
const SYS_TSSI = 0x100

// Trap is the monitor call entry point for 32-bit Non-secure Worlds, it
// returns the packed 64-bit result.
func (s *System) Trap(h uint32, addr uint32, n uint32, timeout uint32) uint64 {
	return s.Dispatch(context.Background(), Handle(h), uint64(addr), uint64(n), timeout).Pack()
}

// Dispatch serves a Non-secure World monitor call, timeout is the caller
// time slice in microseconds.
//
// Status queries and discoveries return without blocking. Idle calls and
// requests to an available service yield the caller until the next service
// completion or until the (clamped) time slice expires, the request is handed
// to the service before the caller is suspended.
//
// Pending event flags are returned, and cleared, on every call.
func (s *System) Dispatch(ctx context.Context, h Handle, addr uint64, n uint64, timeout uint32) (res Result) {
	s.trap.Lock()
	defer s.trap.Unlock()

	defer func() {
		res.Events = s.drain()
	}()

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return Result{Status: Interrupted}
	}

	var target *slot

	switch h {
	case Query:
		i, ok := s.queryTarget(addr)

		if !ok {
			s.mu.Unlock()
			s.misuse.Warningf("SM status query of invalid handle %#x", addr)
			return Result{Status: BadHandle}
		}

		if sl := &s.slots[i]; sl.available() {
			st := sl.status
			s.mu.Unlock()
			return Result{Status: st}
		}

		// a busy service is not waited for, the query yields
	case Idle:
	case Discovery:
		st := s.discover(addr, n)
		s.mu.Unlock()
		return Result{Status: st}
	default:
		i, ok := s.lookup(h)

		if !ok {
			s.mu.Unlock()
			s.misuse.Warningf("SM dispatch to invalid handle %v", h)
			return Result{Status: BadHandle}
		}

		if !s.window.Contains(addr, n) {
			s.mu.Unlock()
			s.misuse.Warningf("SM dispatch to %v with invalid buffer %#x+%#x", h, addr, n)
			return Result{Status: InvalidArgs}
		}

		sl := &s.slots[i]

		if !sl.available() {
			s.mu.Unlock()
			return Result{Status: Busy}
		}

		sl.addr = addr
		sl.n = n
		sl.pending = true
		sl.requests++

		target = sl
	}

	d := s.interval(timeout)

	if target != nil {
		target.ready <- MsgOK
		target.ready = nil
	}

	wake := make(chan Status, 1)
	s.caller = wake

	s.mu.Unlock()

	return Result{Status: s.suspend(ctx, wake, d)}
}

// queryTarget resolves the handle passed as status query argument.
func (s *System) queryTarget(addr uint64) (int, bool) {
	if addr > math.MaxUint32 {
		return 0, false
	}

	return s.lookup(Handle(addr))
}

// discover resolves the NUL terminated service name held in the caller
// buffer, the buffer last byte is forced to NUL to bound the name.
func (s *System) discover(addr uint64, n uint64) Status {
	if !s.window.Contains(addr, n) {
		s.misuse.Warningf("SM discovery with invalid buffer %#x+%#x", addr, n)
		return InvalidArgs
	}

	if n == 0 {
		return NoSuchService
	}

	buf := s.memory.Bytes(addr, n)
	buf[n-1] = 0

	name := buf[:bytes.IndexByte(buf, 0)]
	i, ok := s.registry.Lookup(string(name))

	if !ok {
		log.Debugf("SM discovery of unknown service %q", name)
		return NoSuchService
	}

	return Status(indexHandle(i))
}

// interval converts a time slice in microseconds to a duration, rounded up to
// the kernel tick and clamped to the configured ceiling.
func (s *System) interval(us uint32) time.Duration {
	d := time.Duration(us) * time.Microsecond

	if s.tick > 0 {
		d = (d + s.tick - 1) / s.tick * s.tick
	}

	if d > s.maxTimeout {
		d = s.maxTimeout
	}

	return d
}

// suspend blocks the caller until it is resumed by a service acknowledgment,
// the time slice expires, ctx is done or the system is closed.
func (s *System) suspend(ctx context.Context, wake chan Status, d time.Duration) Status {
	if d <= 0 {
		return s.wakeup(wake, TimedOut)
	}

	t := s.clock.NewTimer(d)
	defer t.Stop()

	select {
	case st := <-wake:
		return st
	case <-t.C():
		return s.wakeup(wake, TimedOut)
	case <-ctx.Done():
		return s.wakeup(wake, Interrupted)
	case <-s.done:
		return s.wakeup(wake, Interrupted)
	}
}

// wakeup clears the caller reference, a resume racing with the wakeup
// reason takes precedence.
func (s *System) wakeup(wake chan Status, reason Status) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.caller == wake {
		s.caller = nil
		return reason
	}

	return <-wake
}

// Raise broadcasts event flags to the Non-secure World.
func (s *System) Raise(flags uint32) {
	s.source.Broadcast(syncevent.Set(flags))
}

// Events returns the service event source, services may subscribe their own
// receivers to it.
func (s *System) Events() syncevent.Source {
	return &s.source
}

// drain returns, and clears, the event flags raised since the previous
// drain.
func (s *System) drain() uint32 {
	return uint32(s.listener.Receiver().PendingAndAckAll() & allFlags)
}
