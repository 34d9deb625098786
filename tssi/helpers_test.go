// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tssi

import (
	"context"
	"testing"
	"time"

	testclock "k8s.io/utils/clock/testing"
)

const (
	testStart = 0x80000000
	testSize  = 0x10000
	testPrio  = NormalPriority + 1
)

type testMemory struct {
	start uint64
	buf   []byte
}

func newTestMemory() *testMemory {
	return &testMemory{
		start: testStart,
		buf:   make([]byte, testSize),
	}
}

func (m *testMemory) Bytes(addr uint64, n uint64) []byte {
	off := addr - m.start
	return m.buf[off : off+n]
}

func (m *testMemory) put(addr uint64, b []byte) {
	copy(m.Bytes(addr, uint64(len(b))), b)
}

// testService hands every request to the test and completes it with the
// status the test releases.
type testService struct {
	requests chan Request
	release  chan Status
}

func newTestService() *testService {
	return &testService{
		requests: make(chan Request, 1),
		release:  make(chan Status),
	}
}

func (ts *testService) entry(w *Worker) {
	w.Serve(func(req Request) Status {
		ts.requests <- req
		return <-ts.release
	})
}

func (ts *testService) next(t *testing.T) Request {
	t.Helper()

	select {
	case req := <-ts.requests:
		return req
	case <-time.After(10 * time.Second):
		t.Fatalf("service did not receive a request")
	}

	return Request{}
}

// serveOK is a service completing every request with OK.
func serveOK(w *Worker) {
	w.Serve(func(Request) Status {
		return OK
	})
}

type testSystem struct {
	*System
	mem   *testMemory
	clock *testclock.FakeClock
}

func testConfig(descs ...Descriptor) (Config, *testMemory, *testclock.FakeClock) {
	m := newTestMemory()
	fc := testclock.NewFakeClock(time.Now())

	cfg := Config{
		Window:     Window{Start: testStart, Size: testSize},
		Memory:     m,
		Registry:   NewRegistry(descs...),
		MaxTimeout: 100 * time.Millisecond,
		Clock:      fc,
	}

	return cfg, m, fc
}

func newTestSystem(t *testing.T, descs ...Descriptor) *testSystem {
	t.Helper()

	cfg, m, fc := testConfig(descs...)
	s := Start(cfg)

	if s == nil {
		t.Fatalf("Start() = nil")
	}

	return &testSystem{
		System: s,
		mem:    m,
		clock:  fc,
	}
}

// dispatch issues a monitor call on its own goroutine.
func (ts *testSystem) dispatch(h Handle, addr uint64, n uint64, timeout uint32) <-chan Result {
	res := make(chan Result, 1)

	go func() {
		res <- ts.Dispatch(context.Background(), h, addr, n, timeout)
	}()

	return res
}

// expire waits for the caller time slice timer and fires it.
func (ts *testSystem) expire(t *testing.T, d time.Duration) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)

	for !ts.clock.HasWaiters() {
		if time.Now().After(deadline) {
			t.Fatalf("caller never suspended")
		}

		time.Sleep(time.Millisecond)
	}

	ts.clock.Step(d)
}

func wait(t *testing.T, res <-chan Result) Result {
	t.Helper()

	select {
	case r := <-res:
		return r
	case <-time.After(10 * time.Second):
		t.Fatalf("monitor call did not return")
	}

	return Result{}
}

// expectHalt runs fn with a halt function that aborts it, and returns the
// halt reason.
func expectHalt(t *testing.T, cfg Config) (reason string) {
	t.Helper()

	type halted struct{ reason string }

	cfg.Halt = func(r string) {
		panic(halted{r})
	}

	defer func() {
		h, ok := recover().(halted)

		if !ok {
			t.Fatalf("system did not halt")
		}

		reason = h.reason
	}()

	if s := Start(cfg); s != nil {
		s.Close()
	}

	return
}
