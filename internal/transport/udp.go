// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"pdmcap/internal/pdm"
)

// UDPSender sends each buffer as one framed datagram (see Packer).
type UDPSender struct {
	conn       *net.UDPConn
	targetAddr *net.UDPAddr
	mu         sync.Mutex // Protects conn and packer
	packer     *Packer
	closed     bool
}

// NewUDPSender creates a new UDPSender targeting the specified address.
// The address should be in the format "host:port", e.g., "127.0.0.1:9090".
func NewUDPSender(targetAddress string, f pdm.Format) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	// No local port needed for sending.
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	logger.Infof("UDP sender: connection established to %s", conn.RemoteAddr())

	return &UDPSender{
		conn:       conn,
		targetAddr: udpAddr,
		packer:     NewPacker(f),
	}, nil
}

// Send transmits one packet. It is safe for concurrent use.
func (s *UDPSender) Send(samples []byte, numSamples int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	pkt := s.packer.Pack(samples, numSamples, time.Now())
	if _, err := s.conn.Write(pkt); err != nil {
		logger.Debugf("UDP sender: error sending packet %d: %v", s.packer.Sequence(), err)
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the underlying UDP connection.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	logger.Infof("UDP sender: closing connection to %s after %d packets", s.targetAddr, s.packer.Sequence())
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

var _ Transport = (*UDPSender)(nil)
