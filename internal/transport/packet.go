// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"pdmcap/internal/pdm"
)

/*
Packet Structure (header BigEndian, samples LittleEndian)

+------------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description              |
|-------------------|----------------|--------------|--------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing |
| Timestamp         | int64          | 8            | Nanoseconds since epoch  |
| Sample Rate       | uint32         | 4            | Delivered rate in Hz     |
| Sample Count      | uint16         | 2            | Number of samples (N)    |
| Output Size       | uint8          | 1            | pdm.OutputSize           |
| Channels          | uint8          | 1            | 1 mono, 2 interleaved    |
| Samples           | []byte         | N * 1 or 2   | As delivered, LE 16-bit  |
+------------------------------------------------------------------------------+
*/

// HeaderSize is the fixed packet header length.
const HeaderSize = 20

var ErrShortPacket = errors.New("transport: short packet")

// Header is the decoded packet header.
type Header struct {
	Sequence    uint32
	Timestamp   time.Time
	SampleCount int
	Format      pdm.Format
}

// Packer frames buffers for datagram and message transports. It reuses one
// packet buffer and is not safe for concurrent use.
type Packer struct {
	format   pdm.Format
	sequence uint32
	packet   []byte
}

func NewPacker(f pdm.Format) *Packer {
	return &Packer{format: f}
}

// Pack returns the framed packet for samples. The result is only valid
// until the next call.
func (p *Packer) Pack(samples []byte, numSamples int, now time.Time) []byte {
	size := p.format.Size.SampleSize()
	need := HeaderSize + numSamples*size
	if cap(p.packet) < need {
		p.packet = make([]byte, need)
	}
	pkt := p.packet[:need]

	p.sequence++
	binary.BigEndian.PutUint32(pkt[0:], p.sequence)
	binary.BigEndian.PutUint64(pkt[4:], uint64(now.UnixNano()))
	binary.BigEndian.PutUint32(pkt[12:], uint32(p.format.SampleRate))
	binary.BigEndian.PutUint16(pkt[16:], uint16(numSamples))
	pkt[18] = byte(p.format.Size)
	pkt[19] = byte(p.format.Channels)
	putSamplesLE(pkt[HeaderSize:], samples, numSamples, p.format.Size)
	return pkt
}

// Sequence returns the number of the last packed buffer.
func (p *Packer) Sequence() uint32 { return p.sequence }

// Unpack decodes a packet. The returned samples alias pkt and are little
// endian for the 16-bit sizes.
func Unpack(pkt []byte) (Header, []byte, error) {
	if len(pkt) < HeaderSize {
		return Header{}, nil, ErrShortPacket
	}
	h := Header{
		Sequence:    binary.BigEndian.Uint32(pkt[0:]),
		Timestamp:   time.Unix(0, int64(binary.BigEndian.Uint64(pkt[4:]))),
		SampleCount: int(binary.BigEndian.Uint16(pkt[16:])),
		Format: pdm.Format{
			SampleRate: int(binary.BigEndian.Uint32(pkt[12:])),
			Size:       pdm.OutputSize(pkt[18]),
			Channels:   int(pkt[19]),
		},
	}
	want := HeaderSize + h.SampleCount*h.Format.Size.SampleSize()
	if len(pkt) < want {
		return h, nil, fmt.Errorf("%w: %d bytes, header announces %d", ErrShortPacket, len(pkt), want)
	}
	return h, pkt[HeaderSize:want], nil
}

// putSamplesLE copies delivered samples (native byte order) into dst as
// little endian.
func putSamplesLE(dst, samples []byte, numSamples int, size pdm.OutputSize) {
	if size == pdm.Unsigned8 {
		copy(dst, samples[:numSamples])
		return
	}
	for i := range numSamples {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(size.Sample(samples, i)))
	}
}
