package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/wsxfer/internal/util"
)

const (
	highWaterMark = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark  = 64 * 1024  // resume sending when bufferedAmount drops below this
)

// DefaultICEServers are used when the configuration names none. No TURN; the
// tool targets direct P2P connectivity.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Peer wraps a single PeerConnection + DataChannel pair, providing the
// signaling methods used during setup and a transfer.Conn once the channel
// is open.
//
// Its lifecycle is governed by the DataChannel state and the context passed
// at construction time. The PeerConnection state is recorded but only a
// failed connection ends the Peer.
type Peer struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	openSignal  chan struct{}
	drainSignal chan struct{}
	sendMu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState

	handlerMu sync.Mutex
	handler   func([]byte)
	pending   [][]byte // arrived before OnMessage
}

// NewPeer creates a Peer backed by a new PeerConnection and a pre-negotiated
// DataChannel. Both sides create the channel independently (negotiated, ID 0),
// so neither depends on OnDataChannel.
func NewPeer(ctx context.Context, iceServers []string) (*Peer, error) {
	if len(iceServers) == 0 {
		iceServers = DefaultICEServers
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	})
	if err != nil {
		return nil, err
	}

	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	pCtx, pCancel := context.WithCancel(ctx)
	p := &Peer{
		pc:          pc,
		dc:          dc,
		openSignal:  make(chan struct{}),
		drainSignal: make(chan struct{}, 1),
		ctx:         pCtx,
		cancel:      pCancel,
		pcState:     webrtc.PeerConnectionStateNew,
	}

	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(p.openSignal) })
	})
	dc.OnClose(func() {
		util.LogDebug("DataChannel closed")
		pCancel()
	})

	dc.OnMessage(p.deliver)

	dc.SetBufferedAmountLowThreshold(lowWaterMark)
	dc.OnBufferedAmountLow(func() {
		select {
		case p.drainSignal <- struct{}{}:
		default:
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		p.mu.Lock()
		p.pcState = state
		p.mu.Unlock()
		if state == webrtc.PeerConnectionStateFailed {
			pCancel()
		}
	})

	return p, nil
}

// newDataChannel creates the pre-negotiated DataChannel. It is ordered and
// reliable: transfers treat any reordering within an id as fatal.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	negotiated := true
	id := uint16(0)

	return pc.CreateDataChannel("wsxfer", &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Ready returns a channel that is closed when the DataChannel is open.
func (p *Peer) Ready() <-chan struct{} {
	return p.openSignal
}

// Done returns a channel that is closed when the Peer is shut down
// (DataChannel closed, connection failed or parent context cancelled).
func (p *Peer) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Close shuts down the DataChannel and PeerConnection.
func (p *Peer) Close() error {
	p.cancel()
	return errors.Join(p.dc.Close(), p.pc.Close())
}

// ConnectionState returns the last observed PeerConnection state.
func (p *Peer) ConnectionState() webrtc.PeerConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer for the local side.
func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer to the applied remote offer.
func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

// SetLocalDescription applies sdp as the local description and starts ICE gathering.
func (p *Peer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the description received from the remote peer.
func (p *Peer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. A nil candidate signals the end of gathering.
func (p *Peer) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	p.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (p *Peer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// ErrPeerClosed is returned by Send once the Peer has shut down.
var ErrPeerClosed = errors.New("peer connection closed")

// Send writes msg as one binary DataChannel message. It waits for the channel
// to open and, while bufferedAmount is above the high watermark, for the
// buffer to drain.
func (p *Peer) Send(msg []byte) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	select {
	case <-p.openSignal:
	case <-p.ctx.Done():
		return ErrPeerClosed
	}

	if p.dc.BufferedAmount() > highWaterMark {
		select {
		case <-p.drainSignal:
		case <-p.ctx.Done():
			return ErrPeerClosed
		}
	}

	if err := p.dc.Send(msg); err != nil {
		return err
	}
	util.Stats.AddSent(len(msg))
	return nil
}

// OnMessage sets the handler for inbound binary messages. Messages that
// arrived before the first call are delivered to fn first. String messages
// are ignored.
func (p *Peer) OnMessage(fn func([]byte)) {
	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	p.handler = fn
	for _, msg := range p.pending {
		fn(msg)
	}
	p.pending = nil
}

func (p *Peer) deliver(msg webrtc.DataChannelMessage) {
	if msg.IsString {
		return
	}
	util.Stats.AddRecv(len(msg.Data))

	p.handlerMu.Lock()
	defer p.handlerMu.Unlock()
	if p.handler == nil {
		p.pending = append(p.pending, msg.Data)
		return
	}
	p.handler(msg.Data)
}
