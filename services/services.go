// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package services implements trusted services which can be registered on
// the dispatch layer.
package services

import (
	"fmt"
	"sort"

	"github.com/usbarmory/GoTEE-tssi/tssi"
)

// Kinds lists the building blocks of every available service kind.
var Kinds = map[string]func() (func(w *tssi.Worker), error){
	"echo":   func() (func(*tssi.Worker), error) { return Echo, nil },
	"notify": func() (func(*tssi.Worker), error) { return Notify, nil },
	"rng": func() (entry func(*tssi.Worker), err error) {
		r, err := NewRNG()

		if err != nil {
			return
		}

		return r.Entry, nil
	},
	"kdf": func() (entry func(*tssi.Worker), err error) {
		k, err := NewKDF(nil)

		if err != nil {
			return
		}

		return k.Entry, nil
	},
}

// Names returns the sorted list of service kinds.
func Names() (names []string) {
	for name := range Kinds {
		names = append(names, name)
	}

	sort.Strings(names)

	return
}

// New returns the entry routine of a service kind.
func New(kind string) (entry func(w *tssi.Worker), err error) {
	fn, ok := Kinds[kind]

	if !ok {
		return nil, fmt.Errorf("unknown service kind %q", kind)
	}

	if entry, err = fn(); err != nil {
		return nil, fmt.Errorf("could not initialize %s service, %v", kind, err)
	}

	return
}

// Echo leaves the caller buffer untouched, its content is the reply.
func Echo(w *tssi.Worker) {
	w.Serve(func(req tssi.Request) tssi.Status {
		if req.Len == 0 {
			return tssi.InvalidArgs
		}

		return tssi.OK
	})
}
