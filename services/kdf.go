// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package services

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/usbarmory/GoTEE-tssi/tssi"
)

const (
	// MasterKeySize is the size of the KDF secret, which never leaves the
	// Secure World.
	MasterKeySize = 32
	// MaxDerivedSize is the HKDF-SHA256 output limit.
	MaxDerivedSize = 255 * sha256.Size
)

// KDF derives keys bound to a Secure World master key.
//
// The caller buffer carries a one byte info length followed by the info
// string, the remaining bytes are overwritten with the derived key.
type KDF struct {
	master []byte
}

// NewKDF returns a KDF service, a random master key is generated when key is
// nil.
func NewKDF(key []byte) (k *KDF, err error) {
	if key == nil {
		key = make([]byte, MasterKeySize)

		if _, err = io.ReadFull(rand.Reader, key); err != nil {
			return
		}
	}

	k = &KDF{
		master: append([]byte(nil), key...),
	}

	return
}

// Derive fills out with key material for the given info string.
func (k *KDF) Derive(info []byte, out []byte) (err error) {
	_, err = io.ReadFull(hkdf.New(sha256.New, k.master, nil, info), out)
	return
}

// Entry is the KDF service routine.
func (k *KDF) Entry(w *tssi.Worker) {
	w.Serve(func(req tssi.Request) tssi.Status {
		buf := req.Data

		if len(buf) < 2 {
			return tssi.InvalidArgs
		}

		n := 1 + int(buf[0])

		if n >= len(buf) || len(buf)-n > MaxDerivedSize {
			return tssi.InvalidArgs
		}

		// the info string is copied as it shares the buffer with the output
		info := append([]byte(nil), buf[1:n]...)

		if err := k.Derive(info, buf[n:]); err != nil {
			return tssi.InvalidArgs
		}

		return tssi.OK
	})
}
