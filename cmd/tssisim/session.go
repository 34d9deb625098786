// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/usbarmory/GoTEE-tssi/mem"
	"github.com/usbarmory/GoTEE-tssi/tssi"
)

const (
	// time slice requested by every call (µs)
	sliceTime = 100000
	// status queries issued before giving up on a request
	maxRetries = 100

	nameOffset = 0x000
	dataOffset = 0x100
)

// session is the scripted Non-secure World, it drives every configured
// service through the monitor call ABI.
type session struct {
	client *tssi.Client
	region *mem.Region
	log    *log.Logger
}

func newSession(trap func(h, addr, n, timeout uint32) uint64, region *mem.Region, out io.Writer) *session {
	return &session{
		client: &tssi.Client{Trap: trap},
		region: region,
		log:    log.New(out, "", log.Ltime),
	}
}

func (s *session) addr(off uint32) uint32 {
	return uint32(s.region.Start()) + off
}

func (s *session) discover(name string) (h tssi.Handle, err error) {
	buf := append([]byte(name), 0)

	if err = s.region.Write(uint64(s.addr(nameOffset)), buf); err != nil {
		return
	}

	h, res := s.client.Discover(s.addr(nameOffset), uint32(len(buf)))

	if h == 0 {
		return 0, fmt.Errorf("could not discover %q, %v", name, res.Status)
	}

	s.log.Printf("supervisor discovered %q handle:%v", name, h)

	return
}

// call dispatches buf to the service and waits for its completion, the
// reply is read back in buf.
func (s *session) call(h tssi.Handle, buf []byte) (st tssi.Status, err error) {
	addr := s.addr(dataOffset)

	if err = s.region.Write(uint64(addr), buf); err != nil {
		return
	}

	res := s.client.Call(h, addr, uint32(len(buf)), sliceTime)

	for i := 0; res.Status == tssi.TimedOut; i++ {
		if i == maxRetries {
			return res.Status, fmt.Errorf("service %v did not complete", h)
		}

		res = s.client.Query(h, sliceTime)
	}

	reply, err := s.region.Read(uint64(addr), len(buf))

	if err != nil {
		return
	}

	copy(buf, reply)

	return res.Status, nil
}

func (s *session) run(svcs []serviceConfig) (err error) {
	s.log.Printf("supervisor session started")

	for _, sc := range svcs {
		if sc.Kind == "" || sc.Name == "" {
			continue
		}

		var h tssi.Handle

		if h, err = s.discover(sc.Name); err != nil {
			return
		}

		if err = s.exercise(sc.Kind, h); err != nil {
			return fmt.Errorf("%s: %w", sc.Name, err)
		}
	}

	if res := s.client.Call(tssi.HandleBase+1, s.addr(dataOffset), 1, 0); res.Status != tssi.BadHandle {
		return fmt.Errorf("misaligned handle returned %v", res.Status)
	}

	res := s.client.Yield(0)
	s.log.Printf("supervisor yielded status:%v events:%#x", res.Status, s.client.Events)

	return
}

func (s *session) exercise(kind string, h tssi.Handle) (err error) {
	var st tssi.Status
	var buf []byte

	switch kind {
	case "echo":
		buf = []byte("hello")
	case "rng":
		buf = make([]byte, 16)
	case "kdf":
		info := []byte("tssisim")
		buf = append([]byte{byte(len(info))}, info...)
		buf = append(buf, make([]byte, 32)...)
	case "notify":
		buf = make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, 0x1)
	default:
		return fmt.Errorf("unsupported kind %q", kind)
	}

	if st, err = s.call(h, buf); err != nil {
		return
	}

	if st != tssi.OK {
		return errors.New(st.String())
	}

	s.log.Printf("supervisor %s reply:%x events:%#x", kind, buf, s.client.Events)

	if res := s.client.Query(h, 0); res.Status != tssi.OK {
		return fmt.Errorf("status query returned %v", res.Status)
	}

	return
}
