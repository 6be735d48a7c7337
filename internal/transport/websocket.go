package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	broadcastQueue = 256
	writeTimeout   = 2 * time.Second
)

// wsClient serializes writes to one connection. Broadcasts and command
// replies come from different goroutines.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// WebSocketTransport serves /ws, broadcasts frames as JSON to every client
// and hands inbound messages to a CommandHandler.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*wsClient]bool
	clientsMu sync.Mutex
	broadcast chan any
	handler   CommandHandler
	listener  net.Listener
	server    *http.Server
	done      chan struct{}
	closeOnce sync.Once
	dropped   uint64
}

// NewWebSocketTransport listens on addr and starts serving. handler may be
// nil, in which case inbound messages are ignored.
func NewWebSocketTransport(addr string, handler CommandHandler) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // Renderers are served from arbitrary local origins.
			},
		},
		clients:   make(map[*wsClient]bool),
		broadcast: make(chan any, broadcastQueue),
		handler:   handler,
		listener:  ln,
		done:      make(chan struct{}),
	}
	wst.start()
	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() string { return wst.listener.Addr().String() }

func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)

	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("websocket server listening on ws://%s/ws", wst.Addr())
		if err := wst.server.Serve(wst.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("websocket server: %v", err)
		}
	}()

	go wst.handleBroadcasts()
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade: %v", err)
		return
	}
	client := &wsClient{conn: conn}

	wst.clientsMu.Lock()
	wst.clients[client] = true
	n := len(wst.clients)
	wst.clientsMu.Unlock()
	logger.Infof("client %s connected, total: %d", conn.RemoteAddr(), n)

	go wst.readLoop(client)
}

// readLoop handles inbound commands until the client goes away.
func (wst *WebSocketTransport) readLoop(client *wsClient) {
	defer wst.drop(client)
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if wst.handler == nil {
			continue
		}

		reply := Reply{OK: true}
		cmd, err := ParseCommand(data)
		if err == nil {
			reply.Type = cmd.Type
			reply.Result, err = wst.handler(cmd)
		}
		if err != nil {
			logger.Warnf("client %s: %v", client.conn.RemoteAddr(), err)
			reply.OK = false
			reply.Error = err.Error()
		}
		if err := client.writeJSON(reply); err != nil {
			return
		}
	}
}

func (wst *WebSocketTransport) drop(client *wsClient) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[client]
	delete(wst.clients, client)
	n := len(wst.clients)
	wst.clientsMu.Unlock()

	client.conn.Close()
	if ok {
		logger.Infof("client %s disconnected, total: %d", client.conn.RemoteAddr(), n)
	}
}

// handleBroadcasts sends messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			clients := make([]*wsClient, 0, len(wst.clients))
			for c := range wst.clients {
				clients = append(clients, c)
			}
			wst.clientsMu.Unlock()

			for _, c := range clients {
				if err := c.writeJSON(data); err != nil {
					logger.Warnf("send to %s: %v", c.conn.RemoteAddr(), err)
					wst.drop(c)
				}
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Send queues data for broadcast. When the queue is full the message is
// dropped; slow clients must not stall the render loop.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return errors.New("websocket transport closed")
	default:
	}
	select {
	case wst.broadcast <- data:
	default:
		wst.clientsMu.Lock()
		wst.dropped++
		wst.clientsMu.Unlock()
	}
	return nil
}

// Dropped returns the number of messages discarded because the queue was full.
func (wst *WebSocketTransport) Dropped() uint64 {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return wst.dropped
}

// Close disconnects every client and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		logger.Infof("closing websocket server")
		close(wst.done)

		wst.clientsMu.Lock()
		for c := range wst.clients {
			c.conn.Close()
		}
		wst.clients = make(map[*wsClient]bool)
		wst.clientsMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err = wst.server.Shutdown(ctx)
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
