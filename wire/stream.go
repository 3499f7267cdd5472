package wire

import (
	"context"
	"errors"
	"io"
	"sync"
)

const defaultReadSize = 4096

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithReadSize sets the size of the buffer passed to Read.
func WithReadSize(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.readSize = n
		}
	}
}

// WithFramer makes the stream use f instead of a default Framer.
func WithFramer(f *Framer) StreamOption {
	return func(s *Stream) {
		if f != nil {
			s.framer = f
		}
	}
}

// Stream frames an io.Reader in a background goroutine. Payloads are
// delivered one at a time: the goroutine neither reads nor frames further
// input until the current payload's Next has been called.
type Stream struct {
	r        io.Reader
	framer   *Framer
	readSize int
	payloads chan *Payload

	mu  sync.Mutex
	err error
}

// NewStream starts framing r. The goroutine stops at end of input, on a read
// or framing error, or when ctx is done; Payloads is closed afterwards.
func NewStream(ctx context.Context, r io.Reader, opts ...StreamOption) *Stream {
	s := &Stream{
		r:        r,
		readSize: defaultReadSize,
		payloads: make(chan *Payload),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.framer == nil {
		s.framer = NewFramer()
	}
	go s.run(ctx)
	return s
}

// Payloads returns the channel of framed payloads.
func (s *Stream) Payloads() <-chan *Payload {
	return s.payloads
}

// Err returns the error that stopped the stream, or nil after a clean end of
// input. It is meaningful once Payloads has been closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.payloads)

	emit := func(p *Payload) error {
		done := make(chan struct{})
		p.next = func() { close(done) }
		select {
		case s.payloads <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	buf := make([]byte, s.readSize)
	for {
		if err := ctx.Err(); err != nil {
			s.setErr(err)
			return
		}
		n, err := s.r.Read(buf)
		if n > 0 {
			if ferr := s.framer.Feed(buf[:n], emit); ferr != nil {
				s.setErr(ferr)
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if s.framer.Pending() {
					s.setErr(io.ErrUnexpectedEOF)
				}
				return
			}
			s.setErr(err)
			return
		}
	}
}
