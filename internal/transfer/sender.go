package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/1ureka/wsxfer/internal/protocol"
	"github.com/1ureka/wsxfer/internal/util"
)

// openSource yields the reader to stream and, for self-opened sources, the
// closer to release it with.
type openSource func() (io.Reader, io.Closer, error)

// SendFile transfers the file at path and returns path on success. When
// opts.Meta is nil the file is stat-ed for its size and base name. The file
// is opened only after the peer answers READY.
func (m *Mux) SendFile(ctx context.Context, path string, opts SendOptions) (string, error) {
	if opts.Meta == nil {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("stat source: %w", err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("source %s is a directory", path)
		}
		opts.Meta = &protocol.Meta{Size: info.Size(), Filename: filepath.Base(path)}
	}

	open := func() (io.Reader, io.Closer, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
	if err := m.send(ctx, path, open, opts); err != nil {
		return "", err
	}
	return path, nil
}

// SendStream transfers everything read from r. r stays owned by the caller
// and is never closed. A Read that blocks forever keeps one goroutine alive
// after the session has ended.
func (m *Mux) SendStream(ctx context.Context, r io.Reader, opts SendOptions) error {
	var name string
	if opts.Meta != nil {
		name = opts.Meta.Filename
	}
	open := func() (io.Reader, io.Closer, error) { return r, nil, nil }
	return m.send(ctx, name, open, opts)
}

// sendSession is the sender role: START, wait for READY, stream, FIN.
type sendSession struct {
	*session
	machine senderMachine
	opts    SendOptions
	open    openSource

	closer    io.Closer
	chunks    chan chunk // nil until streaming
	stop      chan struct{}
	announced bool // START is on the wire, so the peer knows the id
}

func (m *Mux) send(ctx context.Context, name string, open openSource, opts SendOptions) error {
	meta := opts.Meta
	if meta == nil {
		meta = &protocol.Meta{}
	}
	id := opts.ID
	if id == 0 {
		id = util.TransferID(name, time.Now())
	}

	in, err := m.register(id)
	if err != nil {
		return err
	}

	s := &sendSession{
		session: m.newSession(id, in, opts.Options),
		opts:    opts,
		open:    open,
		stop:    make(chan struct{}),
	}
	util.Stats.AddStarted()

	s.log.Debug("sending START (size=%d, name=%q)", meta.Size, meta.Filename)
	if err := s.send(protocol.Start(id, meta)); err != nil {
		return s.finish(err)
	}
	s.announced = true
	s.machine.announced(meta.Size)

	return s.run(ctx)
}

// run is the session event loop.
func (s *sendSession) run(ctx context.Context) error {
	for {
		select {
		case <-s.in.ready():
			if done, err := s.handleFrames(); done {
				return s.finish(err)
			}

		case c := <-s.chunks:
			if done, err := s.handleChunk(c); done {
				return s.finish(err)
			}

		case now := <-s.wd.C():
			if s.wd.expired(now) {
				return s.finish(ErrTimeout)
			}

		case <-s.mux.conn.Done():
			// Frames that arrived before the close still count.
			if done, err := s.handleFrames(); done {
				return s.finish(err)
			}
			return s.finish(ErrSocketClosed)

		case <-ctx.Done():
			return s.finish(canceled(ctx))
		}
	}
}

func (s *sendSession) handleFrames() (bool, error) {
	for _, f := range s.in.drain() {
		s.wd.touch()
		prev := s.machine.state
		stream, err := s.machine.onFrame(f.Type)
		if err != nil {
			s.log.Debug("%s while %s", f.Type, prev)
			return true, err
		}
		if stream {
			if err := s.startStreaming(); err != nil {
				return true, err
			}
		}
	}
	return false, nil
}

func (s *sendSession) startStreaming() error {
	r, c, err := s.open()
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	s.closer = c
	s.chunks = make(chan chunk)
	go pump(r, s.opts.chunkSize(), s.chunks, s.stop)
	s.log.Debug("READY received, streaming")
	return nil
}

func (s *sendSession) handleChunk(c chunk) (bool, error) {
	if c.err != nil {
		if errors.Is(c.err, io.EOF) {
			return true, s.machine.onEOF()
		}
		return true, fmt.Errorf("read source: %w", c.err)
	}

	seq, p := s.machine.onChunk(len(c.data))
	if err := s.send(protocol.Data(s.id, seq, c.data)); err != nil {
		return true, err
	}
	s.opts.report(p)
	return false, nil
}

// finish runs the termination path exactly once. A clean end and a short
// or long source both close the stream with FIN, so the receiver performs
// its own size check; every other failure sends ABORT.
func (s *sendSession) finish(err error) error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.release()

		switch {
		case err == nil || errors.Is(err, ErrIncomplete):
			if ferr := s.send(protocol.Fin(s.id)); ferr != nil && err == nil {
				err = ferr
			}
		case s.announced:
			s.abortPeer()
		}

		if s.closer != nil {
			if cerr := s.closer.Close(); cerr != nil {
				s.log.Debug("close source: %v", cerr)
			}
		}
		s.conclude(err)
	})
	return s.err
}

// ---------------------------------------------------------------------------
// Source → chunks
// ---------------------------------------------------------------------------

type chunk struct {
	data []byte
	err  error // terminal; io.EOF on clean end
}

// pump reads r into chunks of at most size bytes, in order, followed by one
// terminal chunk. It exits early once stop is closed.
func pump(r io.Reader, size int, out chan<- chunk, stop <-chan struct{}) {
	for {
		buf := make([]byte, size)
		n, err := r.Read(buf)

		if n > 0 {
			select {
			case out <- chunk{data: buf[:n]}:
			case <-stop:
				return
			}
		}

		if err != nil {
			select {
			case out <- chunk{err: err}:
			case <-stop:
			}
			return
		}
	}
}
