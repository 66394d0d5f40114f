// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pdmcap/internal/pdm"
)

// WebSocketTransport serves /ws and broadcasts every buffer to all
// connected clients as one binary packet (see Packer). Send never blocks:
// when the queue is full the buffer is dropped.
type WebSocketTransport struct {
	upgrader     websocket.Upgrader
	clients      map[*websocket.Conn]bool
	clientsMu    sync.Mutex
	broadcast    chan []byte
	server       *http.Server
	listener     net.Listener
	writeTimeout time.Duration

	packMu sync.Mutex
	packer *Packer

	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   int64
}

// NewWebSocketTransport listens on addr (":0" picks a free port).
func NewWebSocketTransport(addr string, f pdm.Format, queueSize int, writeTimeout time.Duration) (*WebSocketTransport, error) {
	if queueSize <= 0 {
		queueSize = 64
	}
	if writeTimeout <= 0 {
		writeTimeout = time.Second
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		clients:      make(map[*websocket.Conn]bool),
		broadcast:    make(chan []byte, queueSize),
		listener:     ln,
		writeTimeout: writeTimeout,
		packer:       NewPacker(f),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		logger.Infof("WebSocket: serving on %s", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("WebSocket: server error: %v", err)
		}
	}()
	go wst.handleBroadcasts()

	return wst, nil
}

// Addr returns the listening address.
func (wst *WebSocketTransport) Addr() net.Addr { return wst.listener.Addr() }

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("WebSocket: upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	logger.Infof("WebSocket: client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients only listen; a read error means they went away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	wst.drop(conn)
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	conn.Close()
	if ok {
		logger.Infof("WebSocket: client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for msg := range wst.broadcast {
		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.SetWriteDeadline(time.Now().Add(wst.writeTimeout))
			if err := client.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				logger.Warnf("WebSocket: error sending to client: %v", err)
				client.Close()
				delete(wst.clients, client)
			}
		}
		wst.clientsMu.Unlock()
	}
}

// Send queues the buffer for broadcast.
func (wst *WebSocketTransport) Send(samples []byte, numSamples int) error {
	wst.packMu.Lock()
	defer wst.packMu.Unlock()

	if wst.packer == nil {
		return ErrClosed
	}
	pkt := wst.packer.Pack(samples, numSamples, time.Now())
	msg := make([]byte, len(pkt))
	copy(msg, pkt)

	select {
	case wst.broadcast <- msg:
	default:
		// Queue full, drop message
		wst.dropped++
	}
	return nil
}

// Dropped returns the buffers discarded because the queue was full.
func (wst *WebSocketTransport) Dropped() int64 {
	wst.packMu.Lock()
	defer wst.packMu.Unlock()
	return wst.dropped
}

// Close shuts down the server, disconnects clients and waits for the
// background goroutines.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		logger.Infof("WebSocket: closing server")

		wst.packMu.Lock()
		wst.packer = nil
		close(wst.broadcast)
		wst.packMu.Unlock()

		err = wst.server.Close()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
