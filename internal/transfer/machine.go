package transfer

import "github.com/1ureka/wsxfer/internal/protocol"

// The state machines below hold no I/O. The session run loops feed them
// events and carry out the returned effects.

// ---------------------------------------------------------------------------
// Sender
// ---------------------------------------------------------------------------

type senderState int

const (
	senderAwaitingSize senderState = iota
	senderAwaitingReady
	senderStreaming
	senderTerminated
)

func (s senderState) String() string {
	switch s {
	case senderAwaitingSize:
		return "awaiting-size"
	case senderAwaitingReady:
		return "awaiting-ready"
	case senderStreaming:
		return "streaming"
	default:
		return "terminated"
	}
}

type senderMachine struct {
	state senderState
	seq   uint32 // seq of the next DATA frame
	sent  int64
	size  int64 // declared size, 0 if unknown
}

// announced moves past AwaitingSize once START is on the wire.
func (m *senderMachine) announced(size int64) {
	m.size = size
	m.state = senderAwaitingReady
}

// onFrame applies an inbound frame. stream is true when the source should
// be opened; a non-nil err is terminal.
func (m *senderMachine) onFrame(t protocol.Type) (stream bool, err error) {
	switch {
	case t == protocol.TypeAbort:
		err = ErrAborted
	case t != protocol.TypeReady:
		err = ErrInvalidType
	case m.state != senderAwaitingReady:
		err = ErrInvalidSequence
	default:
		m.state = senderStreaming
		m.seq = 1
		return true, nil
	}
	m.state = senderTerminated
	return false, err
}

// onChunk accounts for n bytes about to be sent and returns the DATA seq.
func (m *senderMachine) onChunk(n int) (uint32, Progress) {
	seq := m.seq
	m.seq++
	m.sent += int64(n)
	return seq, makeProgress(m.sent, m.size)
}

// onEOF finishes the stream. ErrIncomplete means the source produced a
// different byte count than was announced.
func (m *senderMachine) onEOF() error {
	m.state = senderTerminated
	if m.size > 0 && m.sent != m.size {
		return ErrIncomplete
	}
	return nil
}

// ---------------------------------------------------------------------------
// Receiver
// ---------------------------------------------------------------------------

type receiverState int

const (
	receiverArmed receiverState = iota
	receiverReceiving
	receiverTerminated
)

func (s receiverState) String() string {
	switch s {
	case receiverArmed:
		return "armed"
	case receiverReceiving:
		return "receiving"
	default:
		return "terminated"
	}
}

type receiverMachine struct {
	state    receiverState
	lastSeq  uint32
	received int64
	size     int64
}

// recvEffect is what the run loop must do after one frame.
type recvEffect struct {
	write    []byte    // append to the sink
	progress *Progress // report after a successful write
	done     bool      // session is over; err says how
	err      error
}

func (m *receiverMachine) armed() {
	m.state = receiverReceiving
}

func (m *receiverMachine) step(f *protocol.Frame) recvEffect {
	switch f.Type {
	case protocol.TypeAbort:
		m.state = receiverTerminated
		return recvEffect{done: true, err: ErrAborted}

	case protocol.TypeFin:
		m.state = receiverTerminated
		if m.size > 0 && m.received != m.size {
			return recvEffect{done: true, err: ErrIncomplete}
		}
		return recvEffect{done: true}

	case protocol.TypeData:
		if f.Seq != m.lastSeq+1 {
			m.state = receiverTerminated
			return recvEffect{done: true, err: ErrInvalidSequence}
		}
		m.lastSeq = f.Seq
		m.received += int64(len(f.Payload))
		p := makeProgress(m.received, m.size)
		return recvEffect{write: f.Payload, progress: &p}

	default:
		return recvEffect{}
	}
}
