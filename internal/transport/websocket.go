// Package transport adapts concrete message channels (a gorilla WebSocket or a
// pion DataChannel) to the transfer.Conn interface.
package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/wsxfer/internal/util"
)

// closeGrace bounds how long Close waits to deliver the close frame.
const closeGrace = time.Second

// WebSocket makes a gorilla websocket.Conn binary-oriented and message-framed.
// Writes are serialized; reads happen on a single loop started by the first
// OnMessage call, so nothing is consumed before a handler exists.
type WebSocket struct {
	conn *websocket.Conn

	writeMu      sync.Mutex
	writeTimeout time.Duration

	readOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}

	handlerMu sync.RWMutex
	handler   func([]byte)
}

// NewWebSocket wraps conn. A positive writeTimeout sets a deadline on every
// write; zero disables it.
func NewWebSocket(conn *websocket.Conn, writeTimeout time.Duration) *WebSocket {
	return &WebSocket{
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// Send writes msg as one binary message.
func (ws *WebSocket) Send(msg []byte) error {
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	if ws.writeTimeout > 0 {
		if err := ws.conn.SetWriteDeadline(time.Now().Add(ws.writeTimeout)); err != nil {
			return err
		}
	}
	if err := ws.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		return err
	}
	util.Stats.AddSent(len(msg))
	return nil
}

// OnMessage sets the inbound handler and starts the read loop if it is not
// running yet. Calling it again replaces the handler.
func (ws *WebSocket) OnMessage(fn func([]byte)) {
	ws.handlerMu.Lock()
	ws.handler = fn
	ws.handlerMu.Unlock()

	ws.readOnce.Do(func() { go ws.readLoop() })
}

// Done is closed when the read loop has ended.
func (ws *WebSocket) Done() <-chan struct{} {
	return ws.done
}

// Close sends a normal close frame and closes the socket. Safe to call
// multiple times.
func (ws *WebSocket) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		ws.writeMu.Lock()
		werr := ws.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace))
		ws.writeMu.Unlock()
		if errors.Is(werr, websocket.ErrCloseSent) {
			werr = nil
		}
		err = errors.Join(werr, ws.conn.Close())
	})
	return err
}

func (ws *WebSocket) readLoop() {
	defer close(ws.done)

	for {
		typ, data, err := ws.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				util.LogDebug("websocket read ended: %v", err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		util.Stats.AddRecv(len(data))

		ws.handlerMu.RLock()
		fn := ws.handler
		ws.handlerMu.RUnlock()
		fn(data)
	}
}
