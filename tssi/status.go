// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tssi

import (
	"fmt"
)

// Status is the 32-bit completion code returned to the Non-secure World in
// the low word of every monitor call.
type Status int32

// Monitor call status codes.
const (
	// OK is the generic success value.
	OK Status = 0
	// Interrupted reports a caller woken before its time slice ended by
	// something other than a service completion.
	Interrupted Status = -1
	// Busy reports a service with a pending request.
	Busy Status = -2
	// InvalidArgs reports a request buffer outside Non-secure memory.
	InvalidArgs Status = -3
	// NoSuchService reports a failed discovery.
	NoSuchService Status = -4
	// BadHandle reports a handle which does not address a service slot.
	BadHandle Status = -5
	// TimedOut reports the end of the caller time slice.
	TimedOut Status = -6
)

var statusNames = map[Status]string{
	OK:            "OK",
	Interrupted:   "Interrupted",
	Busy:          "Busy",
	InvalidArgs:   "InvalidArgs",
	NoSuchService: "NoSuchService",
	BadHandle:     "BadHandle",
	TimedOut:      "TimedOut",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("Status(%d)", int32(s))
}

// Message is the wake reason delivered to a service worker.
type Message int

const (
	// MsgOK reports a new request to be processed.
	MsgOK Message = iota
	// MsgReset reports that the system is shutting down, the worker must
	// return.
	MsgReset
)

// Result is the decoded return value of a monitor call.
type Result struct {
	Status Status
	Events uint32
}

// Pack encodes the result in the 64-bit monitor call ABI: status in the low
// word, event flags in the high word.
func (r Result) Pack() uint64 {
	return uint64(uint32(r.Status)) | uint64(r.Events)<<32
}

// Unpack decodes a 64-bit monitor call return value, the status is sign
// extended.
func Unpack(v uint64) Result {
	return Result{
		Status: Status(int32(uint32(v))),
		Events: uint32(v >> 32),
	}
}

func (r Result) String() string {
	return fmt.Sprintf("status:%v events:%#.8x", r.Status, r.Events)
}
