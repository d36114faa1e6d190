package transfer

import (
	"errors"
	"sync"

	"github.com/1ureka/wsxfer/internal/protocol"
	"github.com/1ureka/wsxfer/internal/util"
)

// Offer is an announced inbound transfer, surfaced by Listen.
type Offer struct {
	ID   uint32
	Meta *protocol.Meta
}

// ReceiveOptions returns options that accept this offer.
func (o Offer) ReceiveOptions() ReceiveOptions {
	return ReceiveOptions{ID: o.ID, Meta: o.Meta}
}

type listener struct {
	fn func(Offer)
}

// maxBacklog bounds the offers held while no listener is attached.
const maxBacklog = 64

// Mux maintains the transfer-id → session-inbox route table for one
// connection. The connection's message callback decodes every frame once
// and hands it to the matching session; START frames go to listeners.
type Mux struct {
	conn Conn

	// offerMu orders listener calls: backlog replay and live START delivery
	// never overlap. It is taken before mu.
	offerMu sync.Mutex

	mu        sync.Mutex
	routes    map[uint32]*inbox
	listeners []*listener
	backlog   []Offer // START frames seen before any listener existed
}

// NewMux attaches a Mux to conn. It takes over conn's message handler, so
// only one Mux may be created per connection.
func NewMux(conn Conn) *Mux {
	m := &Mux{
		conn:   conn,
		routes: make(map[uint32]*inbox),
	}
	conn.OnMessage(m.dispatch)
	return m
}

// Listen registers fn to be called with every inbound START frame, one at a
// time and in arrival order. Offers that arrived while no listener was
// attached are replayed to fn first, on the calling goroutine; later ones
// run on the connection's read goroutine. fn must not block or call Listen;
// accept the offer from a new goroutine. The returned detach func is safe
// to call repeatedly.
func (m *Mux) Listen(fn func(Offer)) (detach func()) {
	l := &listener{fn: fn}

	m.offerMu.Lock()
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	backlog := m.backlog
	m.backlog = nil
	m.mu.Unlock()

	for _, o := range backlog {
		fn(o)
	}
	m.offerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, x := range m.listeners {
				if x == l {
					m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// dispatch is the connection's message handler.
func (m *Mux) dispatch(msg []byte) {
	f, err := protocol.Decode(msg)
	if err != nil {
		if errors.Is(err, protocol.ErrShortFrame) {
			util.LogDebug("dropping frame: %v", err)
		} else {
			util.LogWarning("dropping frame: %v", err)
		}
		return
	}

	if f.Type == protocol.TypeStart {
		m.offer(Offer{ID: f.ID, Meta: f.Meta})
		return
	}

	m.mu.Lock()
	in, ok := m.routes[f.ID]
	m.mu.Unlock()

	if !ok {
		util.TransferLog(f.ID).Debug("no session, dropping %s", f.Type)
		return
	}
	in.push(f)
}

func (m *Mux) offer(o Offer) {
	m.offerMu.Lock()
	defer m.offerMu.Unlock()

	m.mu.Lock()
	fns := make([]func(Offer), len(m.listeners))
	for i, l := range m.listeners {
		fns[i] = l.fn
	}
	if len(fns) == 0 {
		held := len(m.backlog) < maxBacklog
		if held {
			m.backlog = append(m.backlog, o)
		}
		m.mu.Unlock()
		if !held {
			util.TransferLog(o.ID).Debug("START with no listener, ignoring")
		}
		return
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(o)
	}
}

// register creates the inbox for id. It fails if a live session already
// owns the id.
func (m *Mux) register(id uint32) (*inbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.routes[id]; exists {
		return nil, wrapID(id, ErrDuplicateID)
	}
	in := newInbox()
	m.routes[id] = in
	return in, nil
}

// unregister removes id from the route table if it still points at in.
func (m *Mux) unregister(id uint32, in *inbox) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.routes[id] == in {
		delete(m.routes, id)
	}
}

// Active returns the number of live sessions on this connection.
func (m *Mux) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.routes)
}

// ---------------------------------------------------------------------------
// inbox
// ---------------------------------------------------------------------------

// inbox is an unbounded FIFO of frames for one session. push never blocks,
// so a slow session cannot stall the connection's read loop.
type inbox struct {
	mu     sync.Mutex
	queue  []*protocol.Frame
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{signal: make(chan struct{}, 1)}
}

func (q *inbox) push(f *protocol.Frame) {
	q.mu.Lock()
	q.queue = append(q.queue, f)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// ready fires when at least one frame may be waiting.
func (q *inbox) ready() <-chan struct{} {
	return q.signal
}

// drain returns all queued frames in arrival order.
func (q *inbox) drain() []*protocol.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.queue
	q.queue = nil
	return out
}
