// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tssi

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(
		Descriptor{Name: "echo", Entry: serveOK, Priority: testPrio},
		Descriptor{},
		Descriptor{Name: "hidden", Priority: testPrio},
		Descriptor{Name: "rng", Entry: serveOK, Priority: testPrio},
		Descriptor{Name: "echo", Entry: serveOK, Priority: testPrio},
	)

	for _, tt := range []struct {
		name  string
		index int
		ok    bool
	}{
		{"echo", 0, true},
		{"rng", 3, true},
		{"hidden", 0, false},
		{"", 0, false},
		{"missing", 0, false},
	} {
		index, ok := r.Lookup(tt.name)

		if ok != tt.ok || index != tt.index {
			t.Errorf("Lookup(%q) = %d, %v, want %d, %v", tt.name, index, ok, tt.index, tt.ok)
		}
	}
}

func TestRegistryImplicitSlots(t *testing.T) {
	r := NewRegistry(
		Descriptor{Name: "a", Entry: serveOK, Priority: testPrio},
		Descriptor{Name: "b", Entry: serveOK, Priority: testPrio},
		Descriptor{Name: "c", Entry: serveOK, Priority: testPrio, Slot: 2},
	)

	for i := 0; i < r.Len(); i++ {
		if got := r.Descriptor(i).Slot; got != i {
			t.Errorf("Descriptor(%d).Slot = %d, want %d", i, got, i)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name    string
		descs   []Descriptor
		mutate  func(*Config)
		service int
	}{
		{
			name:    "no services",
			service: -1,
		},
		{
			name:    "normal priority",
			descs:   []Descriptor{{Name: "a", Entry: serveOK, Priority: NormalPriority}},
			service: 0,
		},
		{
			name:    "high priority",
			descs:   []Descriptor{{Name: "a", Entry: serveOK, Priority: testPrio}, {Name: "b", Entry: serveOK, Priority: HighPriority}},
			service: 1,
		},
		{
			name:    "slot mismatch",
			descs:   []Descriptor{{Name: "a", Entry: serveOK, Priority: testPrio}, {Name: "b", Entry: serveOK, Priority: testPrio, Slot: 3}},
			service: 1,
		},
		{
			name:    "empty window",
			descs:   []Descriptor{{Name: "a", Entry: serveOK, Priority: testPrio}},
			mutate:  func(cfg *Config) { cfg.Window = Window{} },
			service: -1,
		},
		{
			name:    "missing memory",
			descs:   []Descriptor{{Name: "a", Entry: serveOK, Priority: testPrio}},
			mutate:  func(cfg *Config) { cfg.Memory = nil },
			service: -1,
		},
	} {
		cfg, _, _ := testConfig(tt.descs...)

		if tt.mutate != nil {
			tt.mutate(&cfg)
		}

		err := Validate(cfg)

		var ce *ConfigError

		if !errors.As(err, &ce) {
			t.Errorf("%s: Validate() = %v, want *ConfigError", tt.name, err)
			continue
		}

		if ce.Service != tt.service {
			t.Errorf("%s: ConfigError.Service = %d, want %d", tt.name, ce.Service, tt.service)
		}
	}
}

func TestValidateUnusedRows(t *testing.T) {
	// rows without an entry are not checked
	cfg, _, _ := testConfig(
		Descriptor{},
		Descriptor{Name: "a", Entry: serveOK, Priority: testPrio},
	)

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestStartHaltsOnBadPriority(t *testing.T) {
	cfg, _, _ := testConfig(Descriptor{Name: "a", Entry: serveOK, Priority: 1})

	if reason := expectHalt(t, cfg); !strings.Contains(reason, "bad priority") {
		t.Errorf("halt reason = %q, want bad priority", reason)
	}
}

func TestStartHaltsOnPartitionError(t *testing.T) {
	cfg, _, _ := testConfig(Descriptor{Name: "a", Entry: serveOK, Priority: testPrio})

	cfg.Partition = func(Window) error {
		return errors.New("no TZASC")
	}

	if reason := expectHalt(t, cfg); !strings.Contains(reason, "no TZASC") {
		t.Errorf("halt reason = %q, want partition error", reason)
	}
}

func TestStartPartitionsBeforeStartingServices(t *testing.T) {
	var started bool
	var partitioned Window

	cfg, _, _ := testConfig(Descriptor{
		Name: "a",
		Entry: func(w *Worker) {
			started = true
			serveOK(w)
		},
		Priority: testPrio,
	})

	cfg.Partition = func(w Window) error {
		if started {
			t.Errorf("service started before memory partitioning")
		}

		partitioned = w
		return nil
	}

	s := Start(cfg)
	defer s.Close()

	if diff := cmp.Diff(cfg.Window, partitioned); diff != "" {
		t.Errorf("partitioned window mismatch (-want +got):\n%s", diff)
	}
}

func TestStartArmsEveryService(t *testing.T) {
	s := newTestSystem(t,
		Descriptor{Name: "a", Entry: serveOK, Priority: testPrio},
		Descriptor{},
		Descriptor{Name: "c", Entry: serveOK, Priority: HighPriority - 1},
	)
	defer s.Close()

	want := []SlotInfo{
		{Name: "a", Handle: HandleBase, Priority: testPrio, State: Available},
		{Handle: HandleBase + HandleStride},
		{Name: "c", Handle: HandleBase + 2*HandleStride, Priority: HighPriority - 1, State: Available},
	}

	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Errorf("Snapshot() mismatch (-want +got):\n%s", diff)
	}
}

func TestEnterHaltsWhenNonSecureReturns(t *testing.T) {
	s := newTestSystem(t, Descriptor{Name: "a", Entry: serveOK, Priority: testPrio})
	defer s.Close()

	var reason string
	var entered bool

	s.halt = func(r string) {
		reason = r
	}

	s.Enter(func(*System) {
		entered = true
	})

	if !entered || reason == "" {
		t.Errorf("Enter() entered:%v halt:%q, want entry and halt", entered, reason)
	}
}

func TestCloseResetsWorkers(t *testing.T) {
	done := make(chan struct{})

	s := newTestSystem(t, Descriptor{
		Name: "a",
		Entry: func(w *Worker) {
			defer close(done)

			if msg, _ := w.WaitRequest(); msg != MsgReset {
				t.Errorf("WaitRequest() = %v, want MsgReset", msg)
			}
		},
		Priority: testPrio,
	})

	s.Close()

	select {
	case <-done:
	default:
		t.Fatalf("Close() returned before the worker")
	}

	if r := s.Dispatch(context.Background(), Idle, 0, 0, 0); r.Status != Interrupted {
		t.Errorf("Dispatch() after Close = %v, want Interrupted", r.Status)
	}
}
