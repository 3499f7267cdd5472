// Package client implements an IMAP client connection on top of the wire
// codec.
//
// The client supports pipelining (sending multiple commands before waiting
// for responses), the synchronizing literal handshake, and LITERAL+ or
// LITERAL- when the server advertises them. It does not interpret mailbox
// data; untagged responses are handed to the caller as parsed trees.
package client

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	imap "github.com/meszmate/imap-codec"
	"github.com/meszmate/imap-codec/wire"
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("client: connection closed")

// Client is an IMAP client connection.
type Client struct {
	conn    net.Conn
	options *Options
	tags    *tagGenerator
	pending *pendingCommands
	stream  *wire.Stream
	cancel  context.CancelFunc

	// writeMu is held for the whole of a command, so that literal chunks of
	// two commands never interleave.
	writeMu sync.Mutex

	// continuationCh signals continuation requests to the waiting command.
	continuationCh chan *imap.Response

	mu       sync.Mutex
	caps     *imap.CapSet
	greeting *imap.Response
	closed   bool
	err      error
	done     chan struct{}
}

// New creates a new Client from an existing connection and reads the server
// greeting.
func New(conn net.Conn, opts ...Option) (*Client, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	ctx, cancel := context.WithCancel(context.Background())
	framer := wire.NewFramer(wire.WithMaxLiteralSize(options.MaxLiteralSize))
	c := &Client{
		conn:           conn,
		options:        options,
		tags:           newTagGenerator(options.TagPrefix),
		pending:        newPendingCommands(),
		stream:         wire.NewStream(ctx, conn, wire.WithReadSize(options.ReadBufferSize), wire.WithFramer(framer)),
		cancel:         cancel,
		continuationCh: make(chan *imap.Response, 1),
		caps:           imap.NewCapSet(),
		done:           make(chan struct{}),
	}

	greeting, err := c.readGreeting()
	if err != nil {
		cancel()
		return nil, err
	}
	c.greeting = greeting
	if caps := imap.CapsFromResponse(greeting); caps != nil {
		c.caps = caps
	}

	c.options.Logger.Debug().
		Str("status", greeting.Command).
		Str("text", greeting.HumanReadable).
		Msg("greeting")

	go c.readLoop()

	return c, nil
}

func (c *Client) readGreeting() (*imap.Response, error) {
	p, ok := <-c.stream.Payloads()
	if !ok {
		err := c.stream.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, "reading greeting")
	}
	c.options.Metrics.ObservePayload(p)
	resp, err := wire.ParsePayload(p)
	p.Next()
	if err != nil {
		c.options.Metrics.ObserveParseError(err)
		return nil, errors.Wrap(err, "parsing greeting")
	}

	if !resp.IsUntagged() {
		return nil, errors.Errorf("unexpected greeting tag %q", resp.Tag)
	}
	switch imap.StatusResponseType(resp.Command) {
	case imap.StatusResponseTypeOK, imap.StatusResponseTypePREAUTH:
		return resp, nil
	case imap.StatusResponseTypeBYE:
		return nil, errors.Wrap(resp.Err(), "server rejected connection")
	default:
		return nil, errors.Errorf("unexpected greeting %q", resp.Command)
	}
}

// Dial connects to an IMAP server at the given address.
func Dial(addr string, opts ...Option) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	return New(conn, opts...)
}

// DialTLS connects to an IMAP server using TLS. A nil config falls back to
// the TLSConfig option.
func DialTLS(addr string, config *tls.Config, opts ...Option) (*Client, error) {
	if config == nil {
		options := DefaultOptions()
		for _, opt := range opts {
			opt(options)
		}
		config = options.TLSConfig
	}
	conn, err := tls.Dial("tcp", addr, config)
	if err != nil {
		return nil, errors.Wrap(err, "dial TLS")
	}
	return New(conn, opts...)
}

// Greeting returns the server greeting.
func (c *Client) Greeting() *imap.Response {
	return c.greeting
}

// Caps returns the server's capabilities as last announced.
func (c *Client) Caps() *imap.CapSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps
}

func (c *Client) setCaps(caps *imap.CapSet) {
	c.mu.Lock()
	c.caps = caps
	c.mu.Unlock()
}

// Done returns a channel that is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended, or nil while it is alive.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	return c.conn.Close()
}

// Execute sends cmd and waits for its tagged completion. A tag is assigned
// when cmd.Tag is empty. A NO or BAD completion is not an error here; see
// Result.Err.
//
// If ctx ends while the server still expects literal data, the connection
// is closed, since the remaining bytes of the command can no longer be sent.
func (c *Client) Execute(ctx context.Context, cmd *imap.Command) (*Result, error) {
	start := time.Now()
	out := *cmd
	if out.Tag == "" {
		out.Tag = c.tags.Next()
	}
	name := strings.ToUpper(out.Command)

	c.writeMu.Lock()
	pc := c.pending.Add(out.Tag)
	select {
	case <-c.done:
		c.writeMu.Unlock()
		c.pending.Remove(out.Tag)
		return nil, c.Err()
	default:
	}

	if c.options.DebugLog {
		c.options.Logger.Debug().Str("tag", out.Tag).Str("command", wire.LogString(&out)).Msg("send")
	}

	chunks := wire.CompileChunks(&out, c.compileOptions())
	n, res, err := c.send(ctx, pc, chunks)
	c.writeMu.Unlock()
	if err != nil {
		c.pending.Remove(out.Tag)
		c.options.Metrics.command(name, "error", start, n)
		return nil, err
	}

	if res == nil {
		select {
		case res = <-pc.done:
		case <-ctx.Done():
			c.pending.Remove(out.Tag)
			c.options.Metrics.command(name, "error", start, n)
			return nil, ctx.Err()
		}
	}
	if res.err != nil {
		c.options.Metrics.command(name, "error", start, n)
		return nil, res.err
	}

	c.options.Metrics.command(name, strings.ToLower(res.resp.Command), start, n)
	return &Result{Status: res.resp, Untagged: pc.collected()}, nil
}

// send writes the chunks of one command, waiting for a continuation request
// before each chunk after the first. A non-nil result means the server
// completed the command before all chunks were sent.
func (c *Client) send(ctx context.Context, pc *pendingCommand, chunks [][]byte) (int, *commandResult, error) {
	drain(c.continuationCh)

	written := 0
	for i, chunk := range chunks {
		if i > 0 {
			select {
			case <-c.continuationCh:
			case res := <-pc.done:
				return written, res, nil
			case <-ctx.Done():
				_ = c.Close()
				return written, nil, ctx.Err()
			case <-c.done:
				return written, nil, c.Err()
			}
		}
		if i == len(chunks)-1 {
			chunk = append(chunk, '\r', '\n')
		}
		n, err := c.write(chunk)
		written += n
		if err != nil {
			return written, nil, errors.Wrap(err, "writing command")
		}
	}
	return written, nil, nil
}

func (c *Client) write(b []byte) (int, error) {
	if c.options.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return c.conn.Write(b)
}

func (c *Client) compileOptions() wire.CompileOptions {
	caps := c.Caps()
	return wire.CompileOptions{
		LiteralPlus:  c.options.LiteralPlus || caps.Has(imap.CapLiteralPlus),
		LiteralMinus: c.options.LiteralMinus || caps.Has(imap.CapLiteralMinus),
	}
}

// Capability requests the server capabilities and records them.
func (c *Client) Capability(ctx context.Context) (*imap.CapSet, error) {
	res, err := c.Execute(ctx, &imap.Command{Command: imap.CommandCapability})
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	caps := imap.NewCapSet()
	for _, resp := range res.Untagged {
		if cs := imap.CapsFromResponse(resp); cs != nil {
			caps = cs
		}
	}
	if cs := imap.CapsFromResponse(res.Status); cs != nil {
		caps = cs
	}
	c.setCaps(caps)
	return caps, nil
}

func drain(ch chan *imap.Response) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
