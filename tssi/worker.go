// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tssi

import (
	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/pkg/sync"
)

// Request represents the Non-secure buffer assigned to a service.
type Request struct {
	// Handle is the service handle the request was dispatched to.
	Handle Handle
	// Addr and Len describe the buffer in the Non-secure address space.
	Addr uint64
	Len  uint64
	// Data is the buffer itself, it is Non-secure memory and is not
	// copied: the caller may observe service writes.
	Data []byte
}

// Worker is the Secure World side of a service, it is handed to the service
// entry routine.
type Worker struct {
	sys   *System
	index int
	once  sync.Once
}

// Handle returns the service handle.
func (w *Worker) Handle() Handle {
	return indexHandle(w.index)
}

// Name returns the service name.
func (w *Worker) Name() string {
	return w.sys.registry.Descriptor(w.index).Name
}

func (w *Worker) arm() {
	w.once.Do(func() {
		close(w.sys.slots[w.index].armed)
	})
}

// SetStatus sets the completion code of the current request, it is returned
// to the caller blocked on the next WaitRequest and to status queries.
func (w *Worker) SetStatus(st Status) {
	s := w.sys

	s.mu.Lock()
	s.slots[w.index].status = st
	s.mu.Unlock()
}

// Raise broadcasts event flags to the Non-secure World, they are delivered
// with the return value of the next monitor call.
func (w *Worker) Raise(flags uint32) {
	w.sys.Raise(flags)
}

// WaitRequest acknowledges the previous request (if any) to the Non-secure
// caller, marks the service as available and blocks until a new request is
// dispatched.
//
// The returned message is MsgOK for a new request and MsgReset when the
// system is closing, in which case the worker must return.
func (w *Worker) WaitRequest() (msg Message, req Request) {
	s := w.sys

	s.mu.Lock()

	sl := &s.slots[w.index]

	if sl.pending {
		sl.pending = false
		sl.completions++
	}

	if s.caller != nil {
		// The caller is resumed with our status but it is not
		// scheduled until it is its turn.
		s.caller <- sl.status
		s.caller = nil
	}

	if s.closed {
		s.mu.Unlock()
		w.arm()

		return MsgReset, Request{}
	}

	ready := make(chan Message, 1)
	sl.ready = ready

	s.mu.Unlock()
	w.arm()

	if msg = <-ready; msg != MsgOK {
		return
	}

	s.mu.Lock()
	req = Request{
		Handle: w.Handle(),
		Addr:   sl.addr,
		Len:    sl.n,
	}
	s.mu.Unlock()

	req.Data = s.memory.Bytes(req.Addr, req.Len)

	return
}

// Serve runs the canonical service loop: every request is passed to fn and
// its result is set as completion status. Serve returns when the system is
// closed.
func (w *Worker) Serve(fn func(req Request) Status) {
	for {
		msg, req := w.WaitRequest()

		if msg != MsgOK {
			log.Debugf("SM service %q reset", w.Name())
			return
		}

		w.SetStatus(fn(req))
	}
}
