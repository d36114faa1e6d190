package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/1ureka/wsxfer/internal/protocol"
	"github.com/1ureka/wsxfer/internal/util"
)

// session holds what both roles share: identity, the route, the watchdog
// and the exactly-once termination guard. It is goroutine-local; only the
// owning run loop touches it.
type session struct {
	id  uint32
	mux *Mux
	in  *inbox
	wd  *watchdog
	log util.TransferLog

	closeOnce sync.Once
	err       error
}

func (m *Mux) newSession(id uint32, in *inbox, o Options) *session {
	return &session{
		id:  id,
		mux: m,
		in:  in,
		wd:  newWatchdog(o.timeout(), o.pollInterval()),
		log: util.TransferLog(id),
	}
}

// send writes one frame and counts it as activity. A write that fails on a
// connection that is already done reports ErrSocketClosed.
func (s *session) send(msg []byte) error {
	if err := s.mux.conn.Send(msg); err != nil {
		select {
		case <-s.mux.conn.Done():
			return errors.Join(ErrSocketClosed, err)
		default:
		}
		return err
	}
	s.wd.touch()
	return nil
}

// abortPeer tells the other side to give up. Delivery is best effort.
func (s *session) abortPeer() {
	if err := s.mux.conn.Send(protocol.Abort(s.id)); err != nil {
		s.log.Debug("ABORT not delivered: %v", err)
	}
}

// release stops the watchdog and frees the transfer id.
func (s *session) release() {
	s.wd.stop()
	s.mux.unregister(s.id, s.in)
}

// conclude records the terminal result. Called once, from closeOnce.
func (s *session) conclude(err error) {
	if err != nil {
		util.Stats.AddFailed()
		s.err = wrapID(s.id, err)
		s.log.Warning("transfer failed: %v", err)
		return
	}
	util.Stats.AddSucceeded()
	s.log.Debug("transfer complete")
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
}
