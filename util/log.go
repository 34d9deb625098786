// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package util implements the console shared by both security states.
package util

import (
	"bytes"
	"io"
	"sync"

	"golang.org/x/term"
)

const outputLimit = 1024
const flushChr = 0x0a // \n

// Output line buffers the Secure and Non-secure World consoles and writes
// them, without interleaving, to a single destination.
type Output struct {
	sync.Mutex

	// Writer is the plain destination, it is used when Term is nil.
	Writer io.Writer
	// Term, when set, colour codes lines by security state.
	Term *term.Terminal

	secure    bytes.Buffer
	nonSecure bytes.Buffer
}

// Log buffers a console character, the buffer is flushed on newlines
// or when it exceeds its limit.
func (o *Output) Log(c byte, secure bool) {
	o.Lock()
	defer o.Unlock()

	o.write(c, secure)
}

func (o *Output) write(c byte, secure bool) {
	var buf *bytes.Buffer

	if secure {
		buf = &o.secure
	} else {
		buf = &o.nonSecure
	}

	buf.WriteByte(c)

	if c == flushChr || buf.Len() > outputLimit {
		o.flush(buf, secure)
	}
}

func (o *Output) flush(buf *bytes.Buffer, secure bool) {
	if buf.Len() == 0 {
		return
	}

	if t := o.Term; t != nil {
		color := t.Escape.Red

		if secure {
			color = t.Escape.Green
		}

		t.Write(color)
		t.Write(buf.Bytes())
		t.Write(t.Escape.Reset)
	} else if o.Writer != nil {
		o.Writer.Write(buf.Bytes())
	}

	buf.Reset()
}

// Flush writes any partial line of both consoles.
func (o *Output) Flush() {
	o.Lock()
	defer o.Unlock()

	o.flush(&o.secure, true)
	o.flush(&o.nonSecure, false)
}

// Stream returns the console of one security state as io.Writer.
func (o *Output) Stream(secure bool) io.Writer {
	return &stream{o, secure}
}

type stream struct {
	o      *Output
	secure bool
}

func (s *stream) Write(p []byte) (int, error) {
	s.o.Lock()
	defer s.o.Unlock()

	for _, c := range p {
		s.o.write(c, s.secure)
	}

	return len(p), nil
}
