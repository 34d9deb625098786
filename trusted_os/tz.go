// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package main

import (
	"fmt"

	"github.com/usbarmory/tamago/arm"
	"github.com/usbarmory/tamago/arm/tzc380"
	"github.com/usbarmory/tamago/soc/nxp/csu"
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"

	"gvisor.dev/gvisor/pkg/log"

	"github.com/usbarmory/GoTEE-tssi/mem"
	"github.com/usbarmory/GoTEE-tssi/tssi"
)

// section descriptor Execute Never bit
const tteXN = 1 << 4

// configureTrustZone partitions memory between the two security states, the
// Non-secure window is mapped non executable in the Secure World.
func configureTrustZone(w tssi.Window) (err error) {
	if w != mem.NonSecureWindow {
		return fmt.Errorf("window %v does not match the memory layout", w)
	}

	// grant NonSecure access to CP10 and CP11
	imx6ul.ARM.NonSecureAccessControl(1<<11 | 1<<10)

	start := uint32(w.Start)
	end := uint32(w.End())

	// caller buffers are data, never code
	imx6ul.ARM.ConfigureMMU(start, end, start, arm.MemoryRegion|arm.TTE_AP_011<<10|tteXN)

	log.Infof("SM mapped Non-secure window %v as non executable", w)

	if !imx6ul.Native {
		return
	}

	// grant NonSecure access to all peripherals
	for i := csu.CSL_MIN; i <= csu.CSL_MAX; i++ {
		if err = imx6ul.CSU.SetSecurityLevel(i, 0, csu.SEC_LEVEL_0, false); err != nil {
			return
		}

		if err = imx6ul.CSU.SetSecurityLevel(i, 1, csu.SEC_LEVEL_0, false); err != nil {
			return
		}
	}

	// set default TZASC region (entire memory space) to NonSecure access
	if err = imx6ul.TZASC.EnableRegion(0, 0, 0, (1<<tzc380.SP_NW_RD)|(1<<tzc380.SP_NW_WR)); err != nil {
		return
	}

	// enable OCRAM TrustZone support
	if err = imx6ul.SetOCRAMProtection(imx6ul.OCRAM_START); err != nil {
		return
	}

	// restrict Secure World memory
	if err = imx6ul.TZASC.EnableRegion(1, mem.SecureStart, mem.SecureSize+mem.SecureDMASize, (1<<tzc380.SP_SW_RD)|(1<<tzc380.SP_SW_WR)); err != nil {
		return
	}

	// restrict access to TZASC
	if err = imx6ul.CSU.SetSecurityLevel(16, 1, csu.SEC_LEVEL_4, false); err != nil {
		return
	}

	if imx6ul.DCP != nil {
		// restrict access to DCP, it holds the KDF master key
		if err = imx6ul.CSU.SetSecurityLevel(34, 0, csu.SEC_LEVEL_4, false); err != nil {
			return
		}

		// set DCP as Secure
		if err = imx6ul.CSU.SetAccess(14, true, false); err != nil {
			return
		}
	}

	return
}
