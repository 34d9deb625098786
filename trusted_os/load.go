// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package main

import (
	_ "embed"
	"fmt"

	"github.com/usbarmory/tamago/arm"

	"github.com/usbarmory/GoTEE/monitor"

	"github.com/usbarmory/armory-boot/exec"

	"gvisor.dev/gvisor/pkg/log"

	"github.com/usbarmory/GoTEE-tssi/mem"
	"github.com/usbarmory/GoTEE-tssi/util"
)

// The Normal World ELF binary is embedded within the monitor executable, the
// loading strategy is up to implementers (see armory-boot).
//
//go:embed assets/nonsecure_os.elf
var osELF []byte

// loadNormalWorld loads a TamaGo unikernel as Normal World OS.
func loadNormalWorld() (os *monitor.ExecCtx, err error) {
	image := &exec.ELFImage{
		Region: mem.NonSecureRegion,
		ELF:    osELF,
	}

	if err = image.Load(); err != nil {
		return nil, fmt.Errorf("SM could not load kernel, %v", err)
	}

	if os, err = monitor.Load(image.Entry(), image.Region, false); err != nil {
		return nil, fmt.Errorf("SM could not load kernel, %v", err)
	}

	log.Infof("SM loaded kernel addr:%#x entry:%#x size:%d", os.Memory.Start(), os.R15, len(osELF))

	// symbols are optional, stripped kernels are traced by address only
	symbols, _ = util.NewSymbols(osELF)

	// override default handler to serve trusted services and improve
	// logging
	os.Handler = goHandler

	return
}

func run(ctx *monitor.ExecCtx) {
	mode := arm.ModeName(int(ctx.SPSR) & 0x1f)
	ns := ctx.NonSecure()

	log.Infof("SM starting mode:%s sp:%#.8x pc:%#.8x ns:%v", mode, ctx.R13, ctx.R15, ns)

	err := ctx.Run()

	log.Infof("SM stopped mode:%s sp:%#.8x lr:%#.8x pc:%#.8x ns:%v err:%v", mode, ctx.R13, ctx.R14, ctx.R15, ns, err)

	if err != nil {
		log.Warningf("stack trace:\n  %s\n  %s", symbols.PCToLine(uint64(ctx.R15)), symbols.PCToLine(uint64(ctx.R14)))
	}
}
