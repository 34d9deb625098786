// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

package main

import (
	"encoding/binary"
	"log"
	"os"
	"runtime"
	_ "unsafe"

	"github.com/usbarmory/tamago/soc/nxp/imx6ul"

	"github.com/usbarmory/GoTEE-tssi/mem"
	"github.com/usbarmory/GoTEE-tssi/tssi"
)

// time slice requested by every call (µs)
const sliceTime = 10000

//go:linkname ramStart runtime.ramStart
var ramStart uint32 = mem.NonSecureStart

//go:linkname ramSize runtime.ramSize
var ramSize uint32 = mem.NonSecureSize

//go:linkname hwinit runtime.hwinit
func hwinit() {
	imx6ul.Init()
}

//go:linkname printk runtime.printk
func printk(c byte) {
	printSecure(c)
}

var client = &tssi.Client{Trap: trap}

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)
}

func discover(name string) tssi.Handle {
	buf := append([]byte(name), 0)
	h, res := client.Discover(addr(buf), uint32(len(buf)))

	log.Printf("supervisor discovered %q handle:%v %v", name, h, res)

	return h
}

// call dispatches buf and polls the service until it completes.
func call(h tssi.Handle, buf []byte) tssi.Result {
	res := client.Call(h, addr(buf), uint32(len(buf)), sliceTime)

	for res.Status == tssi.TimedOut {
		res = client.Query(h, sliceTime)
	}

	return res
}

func main() {
	log.Printf("%s/%s (%s) • system/supervisor (Non-secure)", runtime.GOOS, runtime.GOARCH, runtime.Version())

	if h := discover("rng"); h != 0 {
		buf := make([]byte, 16)
		res := call(h, buf)

		log.Printf("supervisor obtained %d random bytes from monitor: %x (%v)", len(buf), buf, res)
	}

	if h := discover("kdf"); h != 0 {
		info := []byte("nonsecure_os")
		buf := append([]byte{byte(len(info))}, info...)
		buf = append(buf, make([]byte, 32)...)

		res := call(h, buf)

		log.Printf("supervisor derived key: %x (%v)", buf[1+len(info):], res)
	}

	if h := discover("notify"); h != 0 {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, 1<<31)

		call(h, buf)
	}

	// collect any event not yet delivered
	client.Yield(0)

	log.Printf("supervisor received events:%#.8x", client.Events)

	// yield back to secure monitor
	log.Printf("supervisor is about to yield back")
	exit()

	// this should be unreachable
	log.Printf("supervisor says goodbye")
}
