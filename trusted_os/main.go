// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package main

import (
	"fmt"
	"os"
	"runtime"
	"time"
	_ "unsafe"

	"github.com/usbarmory/tamago/dma"
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"

	"gvisor.dev/gvisor/pkg/log"

	"github.com/usbarmory/GoTEE-tssi/mem"
	"github.com/usbarmory/GoTEE-tssi/services"
	"github.com/usbarmory/GoTEE-tssi/tssi"
	"github.com/usbarmory/GoTEE-tssi/util"
)

//go:linkname ramStart runtime.ramStart
var ramStart uint32 = mem.SecureStart

//go:linkname ramSize runtime.ramSize
var ramSize uint32 = mem.SecureSize

// console is shared by both security states, Non-secure output is received
// through the write monitor call.
var console = &util.Output{Writer: os.Stdout}

// sys is the booted trusted services layer, served by the monitor handler.
var sys *tssi.System

func init() {
	log.SetTarget(log.GoogleEmitter{Writer: &log.Writer{Next: console.Stream(true)}})

	// Move DMA region to prevent NonSecure access, alternatively
	// iRAM/OCRAM (default DMA region) can be locked down on its own (as it
	// is outside TZASC control).
	dma.Init(mem.SecureDMAStart, mem.SecureDMASize)

	// Reserve the Non-secure World memory and map it for access to
	// caller buffers.
	mem.Init()

	if imx6ul.Native {
		imx6ul.SetARMFreq(900)

		imx6ul.DCP.Init()
		imx6ul.DCP.DeriveKeyMemory = dma.Default()
	}

	log.Infof("%s/%s (%s) • TEE security monitor (Secure World system/monitor)", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func halt(reason string) {
	console.Flush()
	panic(fmt.Sprintf("SM halted, %s", reason))
}

// masterKey returns the KDF secret, on hardware it is derived from the SoC
// unique OTPMK and never leaves the DCP.
func masterKey() (key []byte, err error) {
	if !imx6ul.Native {
		return
	}

	return imx6ul.DCP.DeriveKey([]byte("GoTEE-tssi"), make([]byte, 16), -1)
}

func registry() (r *tssi.Registry, err error) {
	rng, err := services.NewRNG()

	if err != nil {
		return
	}

	key, err := masterKey()

	if err != nil {
		return
	}

	kdf, err := services.NewKDF(key)

	if err != nil {
		return
	}

	return tssi.NewRegistry(
		tssi.Descriptor{Name: "echo", Entry: services.Echo, Priority: tssi.NormalPriority + 1},
		tssi.Descriptor{Name: "rng", Entry: rng.Entry, Priority: tssi.NormalPriority + 16},
		tssi.Descriptor{Name: "kdf", Entry: kdf.Entry, Priority: tssi.NormalPriority + 16},
		tssi.Descriptor{Name: "notify", Entry: services.Notify, Priority: tssi.HighPriority - 1},
	), nil
}

func main() {
	r, err := registry()

	if err != nil {
		halt(fmt.Sprintf("could not initialize services, %v", err))
	}

	ns, err := loadNormalWorld()

	if err != nil {
		halt(err.Error())
	}

	cfg := tssi.Config{
		Window:    mem.NonSecureWindow,
		Memory:    mem.NonSecureMemory,
		Registry:  r,
		Tick:      time.Millisecond,
		Partition: configureTrustZone,
		Halt:      halt,
	}

	// never returns
	tssi.Boot(cfg, func(s *tssi.System) {
		sys = s
		run(ns)
	})
}
