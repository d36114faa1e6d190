package transfer

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/1ureka/wsxfer/internal/protocol"
)

// Compile-time interface check.
var _ Conn = (*mockConn)(nil)

var errMockClosed = errors.New("mock connection closed")

// mockConn implements Conn for in-process testing. Two linked mockConns
// simulate one connection: a message sent on one end is handed to the other
// end's handler synchronously, so delivery order is preserved and every
// message sent before Close has been dispatched when Done fires.
type mockConn struct {
	deliverMu sync.Mutex // serializes deliveries into this end
	mu        sync.Mutex
	handler   func([]byte)
	pending   [][]byte // arrived before OnMessage

	peer *mockConn
	done chan struct{} // shared by both ends
	once *sync.Once
}

// mockConns creates the two ends of one connection.
func mockConns() (a, b *mockConn) {
	done := make(chan struct{})
	once := &sync.Once{}
	a = &mockConn{done: done, once: once}
	b = &mockConn{done: done, once: once}
	a.peer, b.peer = b, a
	return a, b
}

// Close tears down both ends. Safe to call multiple times.
func (m *mockConn) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *mockConn) Done() <-chan struct{} {
	return m.done
}

func (m *mockConn) OnMessage(fn func([]byte)) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	m.handler = fn
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, msg := range pending {
		fn(msg)
	}
}

func (m *mockConn) Send(msg []byte) error {
	select {
	case <-m.done:
		return errMockClosed
	default:
	}
	m.peer.deliver(append([]byte(nil), msg...))
	return nil
}

func (m *mockConn) deliver(msg []byte) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	fn := m.handler
	if fn == nil {
		m.pending = append(m.pending, msg)
	}
	m.mu.Unlock()

	if fn != nil {
		fn(msg)
	}
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// recorder plays a hand-driven peer: it decodes and keeps every frame it
// receives.
type recorder struct {
	mu     sync.Mutex
	frames []*protocol.Frame
}

func (r *recorder) handle(msg []byte) {
	f, err := protocol.Decode(msg)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *recorder) count(typ protocol.Type, id uint32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.frames {
		if f.Type == typ && f.ID == id {
			n++
		}
	}
	return n
}

func (r *recorder) has(typ protocol.Type, id uint32) bool {
	return r.count(typ, id) > 0
}

func (r *recorder) waitFor(t *testing.T, typ protocol.Type, id uint32) {
	t.Helper()
	require.Eventually(t, func() bool { return r.has(typ, id) }, 5*time.Second, 2*time.Millisecond,
		"no %s frame for %08x", typ, id)
}

// rawPeer returns a Mux on one end and a recorder-driven raw end.
func rawPeer(t *testing.T) (*Mux, *mockConn, *recorder) {
	t.Helper()
	local, peer := mockConns()
	t.Cleanup(local.Close)
	rec := &recorder{}
	peer.OnMessage(rec.handle)
	return NewMux(local), peer, rec
}

// chunkReader returns one predefined chunk per Read, then io.EOF.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

// makeTestData generates deterministic test data of the given size.
func makeTestData(size int, seed byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i%251) ^ seed
	}
	return data
}
