// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package main

import (
	"errors"
	"fmt"

	"github.com/usbarmory/tamago/arm"

	"github.com/usbarmory/GoTEE/monitor"
	"github.com/usbarmory/GoTEE/syscall"

	"gvisor.dev/gvisor/pkg/log"

	"github.com/usbarmory/GoTEE-tssi/tssi"
	"github.com/usbarmory/GoTEE-tssi/util"
)

// symbols resolves Normal World fault addresses.
var symbols *util.Symbols

func goHandler(ctx *monitor.ExecCtx) (err error) {
	if ctx.ExceptionVector == arm.DATA_ABORT && ctx.NonSecure() {
		log.Warningf("SM trapped Non-secure data abort pc:%#.8x %s", ctx.R15-8, symbols.PCToLine(uint64(ctx.R15-8)))
		log.Warningf("%s", ctx)

		ctx.Stop()

		return
	}

	if ctx.ExceptionVector != arm.SUPERVISOR {
		return fmt.Errorf("exception %x", ctx.ExceptionVector)
	}

	switch ctx.A0() {
	case syscall.SYS_WRITE:
		// Override write syscall to avoid interleaved logs.
		console.Log(byte(ctx.A1()), !ctx.NonSecure())
	case syscall.SYS_EXIT:
		ctx.Stop()
	case tssi.SYS_TSSI:
		if !ctx.NonSecure() {
			return errors.New("dispatch from Secure World")
		}

		// the Non-secure World is suspended until the call returns,
		// service goroutines run meanwhile
		res := sys.Trap(ctx.R1, ctx.R2, ctx.R3, ctx.R4)

		ctx.R0 = uint32(res)
		ctx.R1 = uint32(res >> 32)
	default:
		if ctx.NonSecure() {
			log.Warningf("%s", ctx)
			return errors.New("unexpected monitor call")
		}

		return monitor.SecureHandler(ctx)
	}

	return
}
