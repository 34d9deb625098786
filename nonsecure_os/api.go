// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package main

import (
	"unsafe"

	"github.com/usbarmory/GoTEE/syscall"

	"github.com/usbarmory/GoTEE-tssi/tssi"
)

const (
	SYS_WRITE = syscall.SYS_WRITE
	SYS_EXIT  = syscall.SYS_EXIT
	SYS_TSSI  = tssi.SYS_TSSI
)

// defined in api_arm.s
func printSecure(byte)
func exit()
func smc(h uint32, addr uint32, n uint32, timeout uint32) (lo uint32, hi uint32)

// trap issues the trusted services monitor call.
func trap(h uint32, addr uint32, n uint32, timeout uint32) uint64 {
	lo, hi := smc(h, addr, n, timeout)
	return uint64(hi)<<32 | uint64(lo)
}

// addr returns the physical address of a buffer, Normal World memory is
// identity mapped.
func addr(buf []byte) uint32 {
	if len(buf) == 0 {
		return 0
	}

	return uint32(uintptr(unsafe.Pointer(&buf[0])))
}
