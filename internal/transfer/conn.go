// Package transfer implements the chunked transfer sessions and the
// per-connection demultiplexer that routes frames to them.
//
// A Mux owns one connection. Senders call SendFile or SendStream, receivers
// learn about incoming transfers through Listen and accept them with
// ReceiveFile or ReceiveStream. Every session runs on its own goroutine and
// terminates exactly once.
package transfer

// Conn is a connected, reliable, ordered, message-framed duplex channel.
// transport.WebSocket and transport.Peer implement it.
type Conn interface {
	// Send writes one whole binary message. It must be safe for concurrent
	// use and must never interleave two messages.
	Send(msg []byte) error

	// OnMessage sets the handler for inbound binary messages. Messages are
	// delivered one at a time, in arrival order.
	OnMessage(fn func(msg []byte))

	// Done is closed once the connection is gone. Every message received
	// before that has already been passed to the handler.
	Done() <-chan struct{}
}
