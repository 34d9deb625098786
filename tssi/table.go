// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tssi

// State represents the handshake state of a Service State slot.
type State int

const (
	// Unused marks a slot without a registered service.
	Unused State = iota
	// Available marks an idle worker blocked waiting for a request.
	Available
	// Processing marks a worker busy with a request.
	Processing
)

func (s State) String() string {
	switch s {
	case Available:
		return "available"
	case Processing:
		return "busy"
	default:
		return "unused"
	}
}

// slot is the mutable runtime state of a service, it is guarded by the
// System lock.
type slot struct {
	// ready is the worker rendezvous, it is non-nil only while the worker
	// is idle and blocked in WaitRequest.
	ready chan Message
	// status is the last completion code.
	status Status

	// addr and n describe the request buffer assigned to the worker, they
	// are valid only while ready is nil.
	addr uint64
	n    uint64

	// pending is set by the dispatcher and cleared by the worker
	// acknowledgment.
	pending bool

	requests    uint64
	completions uint64

	// armed is closed the first time the worker becomes available.
	armed chan struct{}
}

func (sl *slot) available() bool {
	return sl.ready != nil
}

// SlotInfo is a point in time copy of a Service State slot.
type SlotInfo struct {
	Name        string
	Handle      Handle
	Priority    int
	State       State
	Status      Status
	Addr        uint64
	Len         uint64
	Requests    uint64
	Completions uint64
}

// Snapshot returns the current state of every Service State slot.
func (s *System) Snapshot() []SlotInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := make([]SlotInfo, len(s.slots))

	for i := range s.slots {
		sl := &s.slots[i]
		d := s.registry.Descriptor(i)

		info[i] = SlotInfo{
			Name:     d.Name,
			Handle:   indexHandle(i),
			Priority: d.Priority,
			Status:   sl.status,
		}

		if !s.registry.used(i) {
			continue
		}

		info[i].Requests = sl.requests
		info[i].Completions = sl.completions

		if sl.available() {
			info[i].State = Available
		} else {
			info[i].State = Processing
			info[i].Addr = sl.addr
			info[i].Len = sl.n
		}
	}

	return info
}

// Valid reports whether h addresses a Service State slot, reserved
// pseudo-handles, out of range and misaligned values are invalid.
func (s *System) Valid(h Handle) bool {
	_, ok := s.lookup(h)
	return ok
}

func (s *System) lookup(h Handle) (int, bool) {
	i, ok := handleIndex(h, len(s.slots))

	if !ok || !s.registry.used(i) {
		return 0, false
	}

	return i, true
}
