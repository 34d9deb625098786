// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package mem

import (
	"unsafe"

	"github.com/usbarmory/tamago/dma"
)

var (
	NonSecureRegion *dma.Region
	NonSecureMemory *Region
)

// Init reserves the Non-secure World memory, preventing Secure World
// allocations within it, and maps it for access to Non-secure buffers.
func Init() {
	NonSecureRegion, _ = dma.NewRegion(NonSecureStart, NonSecureSize, false)
	NonSecureRegion.Reserve(NonSecureSize, 0)

	NonSecureMemory = &Region{
		start: NonSecureStart,
		buf:   unsafe.Slice((*byte)(unsafe.Pointer(uintptr(NonSecureStart))), NonSecureSize),
	}
}
