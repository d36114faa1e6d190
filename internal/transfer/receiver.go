package transfer

import (
	"context"
	"io"
	"os"

	"github.com/1ureka/wsxfer/internal/protocol"
	"github.com/1ureka/wsxfer/internal/util"
)

type openSink func() (io.Writer, io.Closer, error)

// ReceiveFile accepts a transfer into a new file at path and returns path on
// success. The file is created before READY is sent; if that fails the peer
// is never contacted. On failure the partial file is removed.
func (m *Mux) ReceiveFile(ctx context.Context, path string, opts ReceiveOptions) (string, error) {
	open := func() (io.Writer, io.Closer, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
	if err := m.receive(ctx, path, open, opts); err != nil {
		return "", err
	}
	return path, nil
}

// ReceiveStream accepts a transfer into w. w stays owned by the caller and
// is never closed.
func (m *Mux) ReceiveStream(ctx context.Context, w io.Writer, opts ReceiveOptions) error {
	open := func() (io.Writer, io.Closer, error) { return w, nil, nil }
	return m.receive(ctx, "", open, opts)
}

// recvSession is the receiver role: READY, then DATA until FIN.
type recvSession struct {
	*session
	machine receiverMachine
	opts    ReceiveOptions

	w      io.Writer
	closer io.Closer
	path   string // self-created file, removed on failure
}

func (m *Mux) receive(ctx context.Context, path string, open openSink, opts ReceiveOptions) error {
	in, err := m.register(opts.ID)
	if err != nil {
		return err
	}

	w, c, err := open()
	if err != nil {
		m.unregister(opts.ID, in)
		return wrapID(opts.ID, err)
	}

	s := &recvSession{
		session: m.newSession(opts.ID, in, opts.Options),
		opts:    opts,
		w:       w,
		closer:  c,
		path:    path,
	}
	s.machine.size = opts.size()
	util.Stats.AddStarted()

	if err := s.send(protocol.Ready(s.id)); err != nil {
		return s.finish(err)
	}
	s.machine.armed()
	s.log.Debug("READY sent (size=%d)", s.machine.size)

	return s.run(ctx)
}

// run is the session event loop.
func (s *recvSession) run(ctx context.Context) error {
	for {
		select {
		case <-s.in.ready():
			if done, err := s.handleFrames(); done {
				return s.finish(err)
			}

		case now := <-s.wd.C():
			if s.wd.expired(now) {
				return s.finish(ErrTimeout)
			}

		case <-s.mux.conn.Done():
			// A FIN that arrived right before the close still completes.
			if done, err := s.handleFrames(); done {
				return s.finish(err)
			}
			return s.finish(ErrSocketClosed)

		case <-ctx.Done():
			return s.finish(canceled(ctx))
		}
	}
}

func (s *recvSession) handleFrames() (bool, error) {
	for _, f := range s.in.drain() {
		s.wd.touch()
		eff := s.machine.step(f)
		if eff.done {
			if eff.err != nil {
				s.log.Debug("%s seq=%d while expecting seq=%d", f.Type, f.Seq, s.machine.lastSeq+1)
			}
			return true, eff.err
		}
		if len(eff.write) > 0 {
			if _, err := s.w.Write(eff.write); err != nil {
				return true, err
			}
		}
		if eff.progress != nil {
			s.opts.report(*eff.progress)
		}
	}
	return false, nil
}

// finish runs the termination path exactly once.
func (s *recvSession) finish(err error) error {
	s.closeOnce.Do(func() {
		s.release()

		if s.closer != nil {
			if cerr := s.closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}

		if err != nil {
			s.abortPeer()
			if s.path != "" {
				if rerr := os.Remove(s.path); rerr != nil {
					s.log.Debug("remove partial file: %v", rerr)
				}
			}
		}
		s.conclude(err)
	})
	return s.err
}
