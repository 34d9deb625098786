// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/hkdf"

	"github.com/usbarmory/GoTEE-tssi/mem"
	"github.com/usbarmory/GoTEE-tssi/tssi"
)

const (
	regionStart = 0x80000000
	bufAddr     = regionStart + 0x1000
	nameAddr    = regionStart + 0x100
	timeout     = 1000000
)

type session struct {
	sys    *tssi.System
	region *mem.Region
	client *tssi.Client
}

func newSession(t *testing.T, descs ...tssi.Descriptor) *session {
	t.Helper()

	region, err := mem.NewRegion(regionStart, 0x10000)

	if err != nil {
		t.Fatal(err)
	}

	sys := tssi.Start(tssi.Config{
		Window:     region.Window(),
		Memory:     region,
		Registry:   tssi.NewRegistry(descs...),
		MaxTimeout: 10 * time.Second,
	})

	t.Cleanup(sys.Close)

	return &session{
		sys:    sys,
		region: region,
		client: &tssi.Client{Trap: sys.Trap},
	}
}

func (s *session) discover(t *testing.T, name string) tssi.Handle {
	t.Helper()

	buf := append([]byte(name), 0)

	if err := s.region.Write(nameAddr, buf); err != nil {
		t.Fatal(err)
	}

	h, res := s.client.Discover(nameAddr, uint32(len(buf)))

	if h == 0 {
		t.Fatalf("Discover(%q) = %v", name, res)
	}

	return h
}

func (s *session) call(t *testing.T, name string, buf []byte) ([]byte, tssi.Status) {
	t.Helper()

	h := s.discover(t, name)

	if err := s.region.Write(bufAddr, buf); err != nil {
		t.Fatal(err)
	}

	res := s.client.Call(h, bufAddr, uint32(len(buf)), timeout)
	out, err := s.region.Read(bufAddr, len(buf))

	if err != nil {
		t.Fatal(err)
	}

	return out, res.Status
}

func service(name string, entry func(*tssi.Worker)) tssi.Descriptor {
	return tssi.Descriptor{
		Name:     name,
		Entry:    entry,
		Priority: tssi.NormalPriority + 1,
	}
}

func TestEcho(t *testing.T) {
	s := newSession(t, service("echo", Echo))

	out, st := s.call(t, "echo", []byte("hello"))

	if st != tssi.OK || string(out) != "hello" {
		t.Errorf("echo = %q, %v", out, st)
	}

	if _, st := s.call(t, "echo", nil); st != tssi.InvalidArgs {
		t.Errorf("empty echo = %v, want InvalidArgs", st)
	}
}

func TestRNG(t *testing.T) {
	r, err := NewRNG()

	if err != nil {
		t.Fatal(err)
	}

	s := newSession(t, service("rng", r.Entry))

	a, st := s.call(t, "rng", make([]byte, 64))

	if st != tssi.OK {
		t.Fatalf("rng = %v", st)
	}

	b, _ := s.call(t, "rng", make([]byte, 64))

	if bytes.Equal(a, make([]byte, 64)) || bytes.Equal(a, b) {
		t.Errorf("rng returned non random data %x %x", a, b)
	}
}

// countingReader returns a constant byte stream and counts reads.
type countingReader struct {
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++

	for i := range p {
		p[i] = byte(c.reads)
	}

	return len(p), nil
}

func TestRNGRekey(t *testing.T) {
	entropy := &countingReader{}
	r := &RNG{Entropy: entropy}

	if err := r.rekey(); err != nil {
		t.Fatal(err)
	}

	// key and nonce
	if entropy.reads != 2 {
		t.Fatalf("initial rekey reads = %d, want 2", entropy.reads)
	}

	buf := make([]byte, RekeyInterval/2+1)

	for i := 0; i < 2; i++ {
		if _, err := r.Read(buf); err != nil {
			t.Fatal(err)
		}
	}

	if entropy.reads != 4 {
		t.Errorf("reads after %d bytes = %d, want one rekey", 2*len(buf), entropy.reads)
	}

	if r.count != 2 {
		t.Errorf("keystream count = %d, want 2", r.count)
	}
}

func TestKDF(t *testing.T) {
	master := bytes.Repeat([]byte{0xaa}, MasterKeySize)
	k, err := NewKDF(master)

	if err != nil {
		t.Fatal(err)
	}

	s := newSession(t, service("kdf", k.Entry))

	info := []byte("disk")
	req := append([]byte{byte(len(info))}, info...)
	req = append(req, make([]byte, 32)...)

	out, st := s.call(t, "kdf", req)

	if st != tssi.OK {
		t.Fatalf("kdf = %v", st)
	}

	want := make([]byte, 32)

	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, info), want); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(want, out[1+len(info):]); diff != "" {
		t.Errorf("derived key mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(req[:1+len(info)], out[:1+len(info)]); diff != "" {
		t.Errorf("info overwritten (-want +got):\n%s", diff)
	}

	for _, bad := range [][]byte{
		{0},
		{4, 'd', 'i', 's', 'k'},
		{8, 'd', 'i', 's', 'k'},
	} {
		if _, st := s.call(t, "kdf", bad); st != tssi.InvalidArgs {
			t.Errorf("kdf(%x) = %v, want InvalidArgs", bad, st)
		}
	}
}

func TestNotify(t *testing.T) {
	s := newSession(t, service("notify", Notify))

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, 0x10001)

	if _, st := s.call(t, "notify", buf); st != tssi.OK {
		t.Fatalf("notify = %v", st)
	}

	if s.client.Events != 0x10001 {
		t.Errorf("events = %#x, want 0x10001", s.client.Events)
	}

	s.client.Events = 0
	s.client.Yield(0)

	if s.client.Events != 0 {
		t.Errorf("events delivered twice: %#x", s.client.Events)
	}

	if _, st := s.call(t, "notify", []byte{1}); st != tssi.InvalidArgs {
		t.Errorf("short notify = %v, want InvalidArgs", st)
	}
}

func TestNew(t *testing.T) {
	if diff := cmp.Diff([]string{"echo", "kdf", "notify", "rng"}, Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	for _, kind := range Names() {
		if entry, err := New(kind); err != nil || entry == nil {
			t.Errorf("New(%q) = %v", kind, err)
		}
	}

	if _, err := New("missing"); err == nil {
		t.Errorf("New(missing) succeeded")
	}
}
