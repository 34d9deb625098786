// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package services

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20"

	"github.com/usbarmory/GoTEE-tssi/tssi"
)

// RekeyInterval is the amount of keystream bytes after which the RNG cipher
// is re-keyed.
const RekeyInterval = 1 << 20

// RNG fills the caller buffer with random bytes.
type RNG struct {
	// Entropy seeds the keystream, it defaults to crypto/rand.
	Entropy io.Reader

	cipher *chacha20.Cipher
	count  int
}

// NewRNG returns a keyed RNG service.
func NewRNG() (r *RNG, err error) {
	r = &RNG{
		Entropy: rand.Reader,
	}

	if err = r.rekey(); err != nil {
		return nil, err
	}

	return
}

func (r *RNG) rekey() (err error) {
	key := make([]byte, chacha20.KeySize)
	nonce := make([]byte, chacha20.NonceSize)

	if _, err = io.ReadFull(r.Entropy, key); err != nil {
		return
	}

	if _, err = io.ReadFull(r.Entropy, nonce); err != nil {
		return
	}

	r.cipher, err = chacha20.NewUnauthenticatedCipher(key, nonce)
	r.count = 0

	return
}

// Read fills buf with keystream bytes.
func (r *RNG) Read(buf []byte) (n int, err error) {
	for n < len(buf) {
		if r.count >= RekeyInterval {
			if err = r.rekey(); err != nil {
				return
			}
		}

		chunk := buf[n:]

		if rem := RekeyInterval - r.count; len(chunk) > rem {
			chunk = chunk[:rem]
		}

		for i := range chunk {
			chunk[i] = 0
		}

		r.cipher.XORKeyStream(chunk, chunk)

		r.count += len(chunk)
		n += len(chunk)
	}

	return
}

// Entry is the RNG service routine.
func (r *RNG) Entry(w *tssi.Worker) {
	w.Serve(func(req tssi.Request) tssi.Status {
		if _, err := r.Read(req.Data); err != nil {
			return tssi.Interrupted
		}

		return tssi.OK
	})
}
