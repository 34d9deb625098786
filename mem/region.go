// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mem

import (
	"errors"
	"fmt"

	"github.com/usbarmory/GoTEE-tssi/tssi"
)

// Region represents a memory area addressed by its bus addresses, the Secure
// World accesses Non-secure buffers through it.
type Region struct {
	start uint64
	buf   []byte
}

// NewRegion allocates a heap backed region, it stands in for Non-secure DDR
// when the monitor is not running on hardware.
func NewRegion(start uint64, size int) (r *Region, err error) {
	if size <= 0 {
		return nil, errors.New("invalid region size")
	}

	if start+uint64(size) < start {
		return nil, fmt.Errorf("region %#x+%#x overflows", start, size)
	}

	return &Region{
		start: start,
		buf:   make([]byte, size),
	}, nil
}

// Start returns the region start address.
func (r *Region) Start() uint64 {
	return r.start
}

// End returns the first address past the region.
func (r *Region) End() uint64 {
	return r.start + uint64(len(r.buf))
}

// Size returns the region size.
func (r *Region) Size() int {
	return len(r.buf)
}

// Window returns the region address range.
func (r *Region) Window() tssi.Window {
	return tssi.Window{
		Start: r.start,
		Size:  uint64(len(r.buf)),
	}
}

// Bytes implements tssi.Memory, it panics when the range is not within the
// region.
func (r *Region) Bytes(addr uint64, n uint64) []byte {
	if !r.Window().Contains(addr, n) {
		panic(fmt.Sprintf("access outside region %#x+%#x", addr, n))
	}

	off := addr - r.start

	return r.buf[off : off+n : off+n]
}

// Write copies buf at addr.
func (r *Region) Write(addr uint64, buf []byte) (err error) {
	if !r.Window().Contains(addr, uint64(len(buf))) {
		return fmt.Errorf("write outside region %#x+%#x", addr, len(buf))
	}

	copy(r.Bytes(addr, uint64(len(buf))), buf)

	return
}

// Read copies n bytes from addr.
func (r *Region) Read(addr uint64, n int) (buf []byte, err error) {
	if n < 0 || !r.Window().Contains(addr, uint64(n)) {
		return nil, fmt.Errorf("read outside region %#x+%#x", addr, n)
	}

	buf = make([]byte, n)
	copy(buf, r.Bytes(addr, uint64(n)))

	return
}
