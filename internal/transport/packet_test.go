// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"pdmcap/internal/pdm"
)

// nativeSamples returns vals encoded the way the driver delivers them.
func nativeSamples(vals ...int16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.NativeEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func TestPackUnpack(t *testing.T) {
	f := pdm.Format{SampleRate: 16000, Channels: 2, Size: pdm.Signed16}
	p := NewPacker(f)
	now := time.Unix(1700000000, 123)

	samples := nativeSamples(-32768, -1, 0, 1, 32767, 42)
	pkt := p.Pack(samples, 6, now)
	if len(pkt) != HeaderSize+12 {
		t.Fatalf("packet length = %d, want %d", len(pkt), HeaderSize+12)
	}

	h, body, err := Unpack(pkt)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if h.Sequence != 1 || p.Sequence() != 1 {
		t.Errorf("sequence = %d (packer %d), want 1", h.Sequence, p.Sequence())
	}
	if !h.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", h.Timestamp, now)
	}
	if h.Format != f || h.SampleCount != 6 {
		t.Errorf("header = %+v", h)
	}
	want := []int16{-32768, -1, 0, 1, 32767, 42}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(body[2*i:])); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}

	p.Pack(samples, 2, now)
	if p.Sequence() != 2 {
		t.Errorf("sequence after second pack = %d, want 2", p.Sequence())
	}
}

func TestPackUnsigned8(t *testing.T) {
	f := pdm.Format{SampleRate: 8000, Channels: 1, Size: pdm.Unsigned8}
	pkt := NewPacker(f).Pack([]byte{0, 128, 255, 9}, 3, time.Now())

	h, body, err := Unpack(pkt)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if h.Format.Size != pdm.Unsigned8 || len(body) != 3 {
		t.Fatalf("header %+v, body %d bytes", h, len(body))
	}
	if body[0] != 0 || body[1] != 128 || body[2] != 255 {
		t.Errorf("body = %v", body)
	}
}

func TestUnpackShort(t *testing.T) {
	if _, _, err := Unpack(make([]byte, HeaderSize-1)); !errors.Is(err, ErrShortPacket) {
		t.Errorf("truncated header: err = %v, want ErrShortPacket", err)
	}

	f := pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16}
	pkt := NewPacker(f).Pack(nativeSamples(1, 2, 3), 3, time.Now())
	if _, _, err := Unpack(pkt[:len(pkt)-1]); !errors.Is(err, ErrShortPacket) {
		t.Errorf("truncated body: err = %v, want ErrShortPacket", err)
	}
}

func TestPackAllocs(t *testing.T) {
	p := NewPacker(pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16})
	samples := make([]byte, 512)
	now := time.Now()
	p.Pack(samples, 256, now)

	allocs := testing.AllocsPerRun(100, func() {
		p.Pack(samples, 256, now)
	})
	if allocs != 0 {
		t.Errorf("Pack allocated %v times, want 0", allocs)
	}
}

func BenchmarkPack(b *testing.B) {
	p := NewPacker(pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16})
	samples := make([]byte, 1024)
	now := time.Now()
	b.SetBytes(int64(len(samples)))
	for b.Loop() {
		p.Pack(samples, 512, now)
	}
}
