// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mem defines the example memory layout and the Secure World view of
// Non-secure World memory.
package mem

import (
	"github.com/usbarmory/GoTEE-tssi/tssi"
)

// This example memory layout allocates 256MB to the Main OS, the remainder of
// the DDR is Secure World only.
const (
	// Secure Monitor
	SecureStart = 0x90000000
	SecureSize  = 0x07f00000 // 127MB

	// Secure Monitor DMA (relocated to avoid conflicts with Main OS)
	SecureDMAStart = 0x97f00000
	SecureDMASize  = 0x00100000 // 1MB

	// Main OS
	NonSecureStart = 0x80000000
	NonSecureSize  = 0x10000000 // 256MB
)

// NonSecureWindow is the Non-secure World address range of this layout.
var NonSecureWindow = tssi.Window{
	Start: NonSecureStart,
	Size:  NonSecureSize,
}
