// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package tssi

// Service priorities, a service priority must lie strictly between
// NormalPriority and HighPriority.
const (
	NormalPriority = 128
	HighPriority   = 255
)

// MaxServices is the Service State Table capacity limit.
const MaxServices = 1024

// Descriptor represents a build time trusted service definition.
type Descriptor struct {
	// Name is the discovery name, an empty name hides the service from
	// discovery.
	Name string
	// Entry is the service routine, it is started on its own goroutine
	// and is expected to loop on Worker.WaitRequest. A nil entry marks an
	// unused row.
	Entry func(w *Worker)
	// Priority is the fixed service priority.
	Priority int
	// Slot is the Service State slot index backing the descriptor, it
	// must match the registry row. A zero value is bound to the row by
	// NewRegistry.
	Slot int
}

// Registry represents the immutable service table.
type Registry struct {
	descs []Descriptor
}

// NewRegistry returns a registry holding a private copy of the descriptors,
// row i is backed by Service State slot i.
func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{
		descs: make([]Descriptor, len(descs)),
	}

	copy(r.descs, descs)

	for i := range r.descs {
		if r.descs[i].Slot == 0 {
			r.descs[i].Slot = i
		}
	}

	return r
}

// Len returns the number of registry rows, including unused ones.
func (r *Registry) Len() int {
	return len(r.descs)
}

// Descriptor returns the descriptor at row i.
func (r *Registry) Descriptor(i int) Descriptor {
	return r.descs[i]
}

// Lookup returns the row of the first service matching the given name.
func (r *Registry) Lookup(name string) (int, bool) {
	if name == "" {
		return 0, false
	}

	for i, d := range r.descs {
		if d.Name == "" || d.Entry == nil {
			continue
		}

		if d.Name == name {
			return i, true
		}
	}

	return 0, false
}

// used reports whether row i defines a service.
func (r *Registry) used(i int) bool {
	return r.descs[i].Entry != nil
}
