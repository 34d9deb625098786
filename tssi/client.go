// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tssi

// Client is the Non-secure World side of the monitor call ABI.
type Client struct {
	// Trap issues the monitor call and returns its packed result.
	Trap func(h uint32, addr uint32, n uint32, timeout uint32) uint64

	// Events accumulates the event flags returned by every call, it is
	// reset by the caller.
	Events uint32
}

func (c *Client) call(h Handle, addr uint32, n uint32, timeout uint32) Result {
	res := Unpack(c.Trap(uint32(h), addr, n, timeout))
	c.Events |= res.Events

	return res
}

// Discover resolves the NUL terminated service name held at addr, n must
// include the terminator.
func (c *Client) Discover(addr uint32, n uint32) (h Handle, res Result) {
	res = c.call(Discovery, addr, n, 0)

	if res.Status > 0 {
		h = Handle(res.Status)
	}

	return
}

// Call dispatches the buffer at addr to the service and yields for up to
// timeout microseconds.
func (c *Client) Call(h Handle, addr uint32, n uint32, timeout uint32) Result {
	return c.call(h, addr, n, timeout)
}

// Query returns the last status of an available service, when the service is
// busy the call yields for up to timeout microseconds.
func (c *Client) Query(target Handle, timeout uint32) Result {
	return c.call(Query, uint32(target), 0, timeout)
}

// Yield hands the time slice to the Secure World and collects the pending
// events.
func (c *Client) Yield(timeout uint32) Result {
	return c.call(Idle, 0, 0, timeout)
}
