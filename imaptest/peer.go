// Package imaptest provides test infrastructure for IMAP client testing.
//
// A Peer plays the server side of an in-memory connection. Tests drive it
// from a script goroutine: write server responses, optionally split into
// small chunks, and check the exact bytes the client sent.
package imaptest

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// DefaultTimeout bounds every read made by a Peer.
const DefaultTimeout = 5 * time.Second

// Peer is the server end of a net.Pipe.
type Peer struct {
	t    testing.TB
	conn net.Conn
	r    *bufio.Reader

	mu       sync.Mutex
	received strings.Builder
	chunk    int
}

// NewPeer creates a connected pair and returns the server side together with
// the connection to hand to the client. Both ends are closed when the test
// finishes.
func NewPeer(t testing.TB) (*Peer, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	p := &Peer{t: t, conn: server, r: bufio.NewReader(server)}
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return p, client
}

// Run executes script in its own goroutine. The returned channel is closed
// when the script returns.
func (p *Peer) Run(script func(p *Peer)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		script(p)
	}()
	return done
}

// SetChunkSize makes Send split its data into writes of at most n bytes.
// Zero writes everything at once.
func (p *Peer) SetChunkSize(n int) {
	p.mu.Lock()
	p.chunk = n
	p.mu.Unlock()
}

// Send writes the given server data verbatim.
func (p *Peer) Send(data ...string) {
	p.mu.Lock()
	size := p.chunk
	p.mu.Unlock()

	b := []byte(strings.Join(data, ""))
	for len(b) > 0 {
		n := len(b)
		if size > 0 && n > size {
			n = size
		}
		if _, err := p.conn.Write(b[:n]); err != nil {
			p.t.Errorf("imaptest: write: %v", err)
			return
		}
		b = b[n:]
	}
}

// ReadLine reads one line sent by the client and returns it without the
// line terminator.
func (p *Peer) ReadLine() string {
	_ = p.conn.SetReadDeadline(time.Now().Add(DefaultTimeout))
	line, err := p.r.ReadString('\n')
	p.record(line)
	if err != nil {
		p.t.Errorf("imaptest: read line: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

// Expect reads exactly len(want) bytes and reports a test error if they
// differ from want.
func (p *Peer) Expect(want string) bool {
	_ = p.conn.SetReadDeadline(time.Now().Add(DefaultTimeout))
	buf := make([]byte, len(want))
	n, err := io.ReadFull(p.r, buf)
	p.record(string(buf[:n]))
	if err != nil {
		p.t.Errorf("imaptest: expecting %q: %v (got %q)", want, err, buf[:n])
		return false
	}
	if string(buf) != want {
		p.t.Errorf("imaptest: got %q, want %q", buf, want)
		return false
	}
	return true
}

// Received returns every byte the client has sent so far.
func (p *Peer) Received() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received.String()
}

// Close closes the server end, which the client sees as end of input.
func (p *Peer) Close() error {
	return p.conn.Close()
}

func (p *Peer) record(s string) {
	p.mu.Lock()
	p.received.WriteString(s)
	p.mu.Unlock()
}
