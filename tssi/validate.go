// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tssi

import (
	"fmt"
	"math/bits"
)

// Handle is the opaque service reference exposed to the Non-secure World.
//
// A handle encodes a Service State Table index, it never carries a Secure
// World address.
type Handle uint32

// Reserved pseudo-handles, they never address a table slot.
const (
	// Idle yields the caller time slice and collects pending events.
	Idle Handle = 0
	// Discovery resolves a service name into its handle.
	Discovery Handle = 1
	// Query returns the last status of the service whose handle is passed
	// as request address.
	Query Handle = 2
)

const (
	// HandleBase is the handle of the first Service State slot.
	HandleBase Handle = 0x1000
	// HandleStride is the distance between two consecutive slot handles.
	HandleStride Handle = 0x10
)

func (h Handle) String() string {
	switch h {
	case Idle:
		return "IDLE"
	case Discovery:
		return "DISCOVERY"
	case Query:
		return "QUERY"
	}

	return fmt.Sprintf("%#x", uint32(h))
}

// Window represents the Non-secure World address range.
type Window struct {
	Start uint64
	Size  uint64
}

// End returns the first address past the window.
func (w Window) End() uint64 {
	return w.Start + w.Size
}

// Contains reports whether [addr, addr+n) lies entirely within the window, a
// zero length region is valid when its address is within the window.
func (w Window) Contains(addr uint64, n uint64) bool {
	if w.Size == 0 || addr < w.Start || addr-w.Start >= w.Size {
		return false
	}

	end, carry := bits.Add64(addr, n, 0)

	if carry != 0 {
		return false
	}

	return end-w.Start <= w.Size
}

func (w Window) String() string {
	return fmt.Sprintf("%#x-%#x", w.Start, w.End())
}

// handleIndex converts a handle into a table index, the range is verified
// before the alignment so that no arithmetic is performed on out of range
// values.
func handleIndex(h Handle, capacity int) (int, bool) {
	if h < HandleBase {
		return 0, false
	}

	off := uint64(h - HandleBase)

	if off >= uint64(capacity)*uint64(HandleStride) {
		return 0, false
	}

	if off%uint64(HandleStride) != 0 {
		return 0, false
	}

	return int(off / uint64(HandleStride)), true
}

func indexHandle(i int) Handle {
	return HandleBase + Handle(i)*HandleStride
}
