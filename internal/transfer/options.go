package transfer

import (
	"time"

	"github.com/1ureka/wsxfer/internal/protocol"
)

// Tuning defaults.
const (
	DefaultTimeout      = 30 * time.Second // idle time before a session fails
	DefaultPollInterval = 5 * time.Second  // watchdog polling period
	DefaultChunkSize    = 16 * 1024        // bytes per DATA frame payload
)

// Progress is reported after every chunk sent or received.
type Progress struct {
	LengthComputable bool  // Total is known
	Loaded           int64 // bytes moved so far
	Total            int64 // declared size, 0 if unknown
}

func makeProgress(loaded, total int64) Progress {
	return Progress{LengthComputable: total > 0, Loaded: loaded, Total: total}
}

// Options are shared by both roles.
type Options struct {
	// Timeout is the idle window; zero means DefaultTimeout.
	Timeout time.Duration
	// PollInterval is how often the watchdog checks; zero means
	// DefaultPollInterval. It is clamped to Timeout.
	PollInterval time.Duration
	// Progress, if set, is called on the session goroutine after each chunk.
	Progress func(Progress)
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o Options) pollInterval() time.Duration {
	if o.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return o.PollInterval
}

func (o Options) report(p Progress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

// SendOptions configure an outbound transfer.
type SendOptions struct {
	Options

	// ID identifies the transfer on the connection. Zero derives one from
	// the current time and the source name.
	ID uint32
	// Meta is announced in the START frame. If nil, SendFile stats the file
	// and SendStream announces an unknown length.
	Meta *protocol.Meta
	// ChunkSize caps each DATA payload; zero means DefaultChunkSize.
	ChunkSize int
}

func (o SendOptions) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

// ReceiveOptions configure an inbound transfer. ID and Meta normally come
// from the Offer being accepted.
type ReceiveOptions struct {
	Options

	ID   uint32
	Meta *protocol.Meta
}

func (o ReceiveOptions) size() int64 {
	if o.Meta == nil || o.Meta.Size < 0 {
		return 0
	}
	return o.Meta.Size
}
