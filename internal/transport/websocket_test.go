package transport_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/wsxfer/internal/protocol"
	"github.com/1ureka/wsxfer/internal/transfer"
	"github.com/1ureka/wsxfer/internal/transport"
)

// Compile-time interface checks.
var (
	_ transfer.Conn = (*transport.WebSocket)(nil)
	_ transfer.Conn = (*transport.Peer)(nil)
)

// wsPair returns a connected (client, server) pair of wrapped WebSockets.
func wsPair(t *testing.T) (client, server *transport.WebSocket) {
	t.Helper()

	c, s := rawPair(t)
	client = transport.NewWebSocket(c, time.Second)
	server = transport.NewWebSocket(s, time.Second)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func collect(ws *transport.WebSocket) <-chan []byte {
	ch := make(chan []byte, 16)
	ws.OnMessage(func(msg []byte) { ch <- msg })
	return ch
}

func TestWebSocketBinaryRoundTrip(t *testing.T) {
	client, server := wsPair(t)
	got := collect(server)

	msgs := [][]byte{
		protocol.Ready(1),
		protocol.Data(1, 1, []byte("hello")),
		protocol.Fin(1),
	}
	for _, m := range msgs {
		require.NoError(t, client.Send(m))
	}
	for i, want := range msgs {
		select {
		case msg := <-got:
			assert.Equal(t, want, msg, "message %d", i)
		case <-time.After(5 * time.Second):
			t.Fatalf("message %d not delivered", i)
		}
	}
}

func TestWebSocketIgnoresTextMessages(t *testing.T) {
	c, s := rawPair(t)
	server := transport.NewWebSocket(s, 0)
	defer server.Close()
	got := collect(server)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"offer"}`)))
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte{0x03, 1, 0, 0, 0, 0, 0, 0, 0}))

	select {
	case msg := <-got:
		assert.Equal(t, []byte{0x03, 1, 0, 0, 0, 0, 0, 0, 0}, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("binary message not delivered")
	}
	select {
	case msg := <-got:
		t.Fatalf("unexpected extra message %q", msg)
	default:
	}
}

func TestWebSocketDoneAfterPeerClose(t *testing.T) {
	client, server := wsPair(t)
	collect(server)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "Close must be idempotent")

	select {
	case <-server.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server Done not closed after peer close")
	}
	assert.Error(t, client.Send([]byte("late")))
}

// TestTransferOverWebSocket runs a complete transfer across a real socket.
func TestTransferOverWebSocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, server := wsPair(t)
	sender := transfer.NewMux(client)
	receiver := transfer.NewMux(server)

	data := bytes.Repeat([]byte("0123456789abcdef"), 4096) // 64 KiB
	var sink bytes.Buffer
	recvErr := make(chan error, 1)
	defer receiver.Listen(func(o transfer.Offer) {
		go func() { recvErr <- receiver.ReceiveStream(ctx, &sink, o.ReceiveOptions()) }()
	})()

	err := sender.SendStream(ctx, bytes.NewReader(data), transfer.SendOptions{
		ID:   0xCAFE,
		Meta: &protocol.Meta{Size: int64(len(data))},
	})
	require.NoError(t, err)
	require.NoError(t, <-recvErr)
	assert.True(t, bytes.Equal(data, sink.Bytes()))
}

// rawPair returns unwrapped gorilla connections for frame-level control.
func rawPair(t *testing.T) (client, server *websocket.Conn) {
	t.Helper()

	serverCh := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverCh <- c
	}))
	t.Cleanup(srv.Close)

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	select {
	case server = <-serverCh:
	case <-time.After(5 * time.Second):
		t.Fatal("server side never upgraded")
	}
	return c, server
}
