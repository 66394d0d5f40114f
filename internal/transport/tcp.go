// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"pdmcap/internal/pdm"
)

var ErrClosed = errors.New("transport: closed")

// TCPClient streams raw little-endian PCM to a server, the format the
// companion capture server writes straight into a WAV file.
type TCPClient struct {
	mu           sync.Mutex // Protects conn during Close
	conn         net.Conn
	format       pdm.Format
	writeTimeout time.Duration
	scratch      []byte
	sent         int64
}

// DialTCP connects to address. A zero dialTimeout waits as long as the OS
// allows; a zero writeTimeout never times out writes.
func DialTCP(address string, f pdm.Format, dialTimeout, writeTimeout time.Duration) (*TCPClient, error) {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial TCP target '%s': %w", address, err)
	}
	logger.Infof("TCP client: connected to %s", conn.RemoteAddr())
	return &TCPClient{conn: conn, format: f, writeTimeout: writeTimeout}, nil
}

func (c *TCPClient) Send(samples []byte, numSamples int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrClosed
	}
	n := numSamples * c.format.Size.SampleSize()
	if cap(c.scratch) < n {
		c.scratch = make([]byte, n)
	}
	buf := c.scratch[:n]
	putSamplesLE(buf, samples, numSamples, c.format.Size)

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("failed to send TCP data: %w", err)
	}
	c.sent += int64(n)
	return nil
}

// BytesSent returns the PCM bytes written so far.
func (c *TCPClient) BytesSent() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	logger.Infof("TCP client: closing connection to %s (%d bytes sent)", c.conn.RemoteAddr(), c.sent)
	err := c.conn.Close()
	c.conn = nil
	return err
}

var _ Transport = (*TCPClient)(nil)
