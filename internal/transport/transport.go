// SPDX-License-Identifier: MIT
// Package transport streams converted sample buffers off the device:
// raw PCM over TCP, framed packets over UDP, and binary WebSocket
// broadcasts. All transports run on the consumer side; Send copies or
// writes the samples before returning.
package transport

import (
	"fmt"
	"strings"
	"time"

	applog "pdmcap/internal/log"
	"pdmcap/internal/pdm"
)

var logger = applog.For("transport")

// Transport defines a generic interface for sending converted buffers.
// Implementations should be thread-safe.
type Transport interface {
	Send(samples []byte, numSamples int) error
	Close() error
}

// Kinds accepted by New.
const (
	KindTCP       = "tcp"
	KindUDP       = "udp"
	KindWebSocket = "websocket"
	KindLog       = "log"
)

// Config selects and addresses a transport.
type Config struct {
	Kind         string
	Address      string        // host:port to dial (tcp, udp) or listen on (websocket)
	DialTimeout  time.Duration // tcp
	WriteTimeout time.Duration // tcp, websocket
	QueueSize    int           // websocket broadcast queue, in buffers
}

// New creates the transport named by cfg.Kind.
func New(cfg Config, f pdm.Format) (Transport, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindTCP:
		return DialTCP(cfg.Address, f, cfg.DialTimeout, cfg.WriteTimeout)
	case KindUDP:
		return NewUDPSender(cfg.Address, f)
	case KindWebSocket, "ws":
		return NewWebSocketTransport(cfg.Address, f, cfg.QueueSize, cfg.WriteTimeout)
	case KindLog, "":
		return NewLoggingTransport(f), nil
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", cfg.Kind)
	}
}
