package client

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imap "github.com/meszmate/imap-codec"
	"github.com/meszmate/imap-codec/imaptest"
	"github.com/meszmate/imap-codec/wire"
)

func newTestClient(t *testing.T, greeting string, script func(p *imaptest.Peer), opts ...Option) *Client {
	t.Helper()
	peer, conn := imaptest.NewPeer(t)
	peer.Run(func(p *imaptest.Peer) {
		p.Send(greeting)
		if script != nil {
			script(p)
		}
	})
	c, err := New(conn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func execute(t *testing.T, c *Client, cmd *imap.Command) *Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Execute(ctx, cmd)
	require.NoError(t, err)
	return res
}

// ---------- Greeting ----------

func TestNew_Greeting(t *testing.T) {
	c := newTestClient(t, "* OK [CAPABILITY IMAP4rev1 LITERAL+] ready\r\n", nil)

	assert.True(t, c.Caps().Has(imap.CapLiteralPlus))
	assert.True(t, c.Caps().Has(imap.CapIMAP4rev1))
	assert.Equal(t, "OK", c.Greeting().Command)
	assert.Equal(t, "ready", c.Greeting().HumanReadable)
}

func TestNew_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		greeting string
	}{
		{"bye", "* BYE too many connections\r\n"},
		{"tagged", "A1 OK ready\r\n"},
		{"not a status", "* 3 EXISTS\r\n"},
		{"syntax error", "*  OK\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer, conn := imaptest.NewPeer(t)
			peer.Run(func(p *imaptest.Peer) { p.Send(tt.greeting) })
			_, err := New(conn)
			assert.Error(t, err)
		})
	}
}

func TestNew_ClosedBeforeGreeting(t *testing.T) {
	peer, conn := imaptest.NewPeer(t)
	peer.Run(func(p *imaptest.Peer) { p.Close() })
	_, err := New(conn)
	assert.Error(t, err)
}

// ---------- Execute ----------

func TestExecute_Noop(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 NOOP\r\n")
		p.Send("* 3 EXISTS\r\n", "A1 OK NOOP completed\r\n")
	})

	res := execute(t, c, &imap.Command{Command: "NOOP"})
	require.NoError(t, res.Err())
	assert.Equal(t, "A1", res.Status.Tag)
	assert.Equal(t, "NOOP completed", res.Status.HumanReadable)
	require.Len(t, res.Untagged, 1)
	assert.Equal(t, "3", res.Untagged[0].Command)
	assert.Equal(t, []imap.Attribute{imap.Atom("EXISTS")}, res.Untagged[0].Attributes)
}

func TestExecute_TagPrefix(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("T1 NOOP\r\n")
		p.Send("T1 OK\r\n")
		p.Expect("T2 NOOP\r\n")
		p.Send("T2 OK\r\n")
		p.Expect("mine NOOP\r\n")
		p.Send("mine OK\r\n")
	}, WithTagPrefix("T"))

	assert.Equal(t, "T1", execute(t, c, &imap.Command{Command: "NOOP"}).Status.Tag)
	assert.Equal(t, "T2", execute(t, c, &imap.Command{Command: "NOOP"}).Status.Tag)
	assert.Equal(t, "mine", execute(t, c, &imap.Command{Tag: "mine", Command: "NOOP"}).Status.Tag)
}

func TestExecute_SynchronizingLiterals(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 LOGIN {4}\r\n")
		p.Send("+ Ready for literal data\r\n")
		p.Expect("user {4}\r\n")
		p.Send("+ go ahead\r\n")
		p.Expect("pass\r\n")
		p.Send("A1 OK logged in\r\n")
	})

	res := execute(t, c, &imap.Command{Command: "LOGIN", Attributes: []imap.Attribute{
		imap.Literal([]byte("user")), imap.Literal([]byte("pass")),
	}})
	assert.NoError(t, res.Err())
}

func TestExecute_EmptyLiteral(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 APPEND INBOX {0}\r\n")
		p.Send("+ ok\r\n")
		p.Expect("\r\n")
		p.Send("A1 OK appended\r\n")
	})

	res := execute(t, c, &imap.Command{Command: "APPEND", Attributes: []imap.Attribute{
		imap.Atom("INBOX"), imap.Literal(nil),
	}})
	assert.NoError(t, res.Err())
}

func TestExecute_LiteralPlusAdvertised(t *testing.T) {
	c := newTestClient(t, "* OK [CAPABILITY IMAP4rev1 LITERAL+] ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 APPEND INBOX {5+}\r\nhello\r\n")
		p.Send("A1 OK appended\r\n")
	})

	res := execute(t, c, &imap.Command{Command: "APPEND", Attributes: []imap.Attribute{
		imap.Atom("INBOX"), imap.Literal([]byte("hello")),
	}})
	assert.NoError(t, res.Err())
}

func TestExecute_LiteralPlusOption(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 APPEND INBOX {5+}\r\nhello\r\n")
		p.Send("A1 OK appended\r\n")
	}, WithLiteralPlus(true))

	res := execute(t, c, &imap.Command{Command: "APPEND", Attributes: []imap.Attribute{
		imap.Atom("INBOX"), imap.Literal([]byte("hello")),
	}})
	assert.NoError(t, res.Err())
}

func TestExecute_LiteralRejected(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 APPEND INBOX {5}\r\n")
		p.Send("A1 NO [TOOBIG] message too large\r\n")
	})

	res := execute(t, c, &imap.Command{Command: "APPEND", Attributes: []imap.Attribute{
		imap.Atom("INBOX"), imap.Literal([]byte("hello")),
	}})
	require.Error(t, res.Err())
	sr := res.Status.Status()
	require.NotNil(t, sr)
	assert.Equal(t, imap.StatusResponseTypeNO, sr.Type)
	assert.Equal(t, imap.ResponseCode("TOOBIG"), sr.Code)
}

func TestExecute_ServerLiteralInChunks(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 FETCH 1 BODY[]\r\n")
		p.SetChunkSize(1)
		p.Send("* 1 FETCH (BODY[] {7}\r\nhi\r\nyou)\r\n", "A1 OK done\r\n")
	})

	res := execute(t, c, &imap.Command{Command: "FETCH", Attributes: []imap.Attribute{
		imap.Sequence("1"), imap.SectionOf("BODY"),
	}})
	require.Len(t, res.Untagged, 1)
	assert.Equal(t, []imap.Attribute{
		imap.Atom("FETCH"),
		imap.List(imap.SectionOf("BODY"), imap.Literal([]byte("hi\r\nyou"))),
	}, res.Untagged[0].Attributes)
}

func TestExecute_SyntaxErrorIsDropped(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 NOOP\r\n")
		p.Send("* 1 FETCH (UID 1\r\n", "A1 OK done\r\n")
	}, WithMetrics(m))

	res := execute(t, c, &imap.Command{Command: "NOOP"})
	assert.NoError(t, res.Err())
	assert.Empty(t, res.Untagged)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Payloads))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParseErrors.WithLabelValues("syntax")))
	assert.Equal(t, float64(len("A1 NOOP\r\n")), testutil.ToFloat64(m.CommandBytes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Commands))
}

func TestExecute_LiteralTooLarge(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 FETCH 1 BODY[]\r\n")
		p.Send("* 1 FETCH (BODY[] {100}\r\n")
	}, WithMaxLiteralSize(10))

	_, err := c.Execute(context.Background(), &imap.Command{Command: "FETCH", Attributes: []imap.Attribute{
		imap.Sequence("1"), imap.SectionOf("BODY"),
	}})
	assert.ErrorIs(t, err, wire.FatalLiteralTooLarge)

	<-c.Done()
	assert.True(t, wire.IsFatal(c.Err()))
}

func TestExecute_Disconnect(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 NOOP\r\n")
		p.Close()
	})

	_, err := c.Execute(context.Background(), &imap.Command{Command: "NOOP"})
	assert.Error(t, err)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() not closed after disconnect")
	}
}

func TestExecute_DisconnectWhileWaitingContinuation(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 APPEND INBOX {5}\r\n")
		p.Close()
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), &imap.Command{Command: "APPEND", Attributes: []imap.Attribute{
			imap.Atom("INBOX"), imap.Literal([]byte("hello")),
		}})
		done <- err
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Execute() timed out waiting for disconnect")
	}
}

func TestExecute_ContextCancelledDuringLiteral(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 APPEND INBOX {5}\r\n")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Execute(ctx, &imap.Command{Command: "APPEND", Attributes: []imap.Attribute{
		imap.Atom("INBOX"), imap.Literal([]byte("hello")),
	}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not closed after abandoning a literal")
	}
	assert.ErrorIs(t, c.Err(), ErrClosed)
}

func TestExecute_AfterClose(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", nil)
	require.NoError(t, c.Close())
	<-c.Done()

	_, err := c.Execute(context.Background(), &imap.Command{Command: "NOOP"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, c.Close())
}

// ---------- Capability ----------

func TestCapability(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 CAPABILITY\r\n")
		p.Send("* CAPABILITY IMAP4rev1 LITERAL-\r\n", "A1 OK done\r\n")
		p.Expect("A2 APPEND INBOX {5+}\r\nhello\r\n")
		p.Send("A2 OK appended\r\n")
	})

	assert.False(t, c.Caps().Has(imap.CapLiteralMinus))
	caps, err := c.Capability(context.Background())
	require.NoError(t, err)
	assert.True(t, caps.Has(imap.CapLiteralMinus))
	assert.True(t, c.Caps().Has(imap.CapLiteralMinus))

	res := execute(t, c, &imap.Command{Command: "APPEND", Attributes: []imap.Attribute{
		imap.Atom("INBOX"), imap.Literal([]byte("hello")),
	}})
	assert.NoError(t, res.Err())
}

func TestCapability_Refused(t *testing.T) {
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 CAPABILITY\r\n")
		p.Send("A1 BAD not now\r\n")
	})

	_, err := c.Capability(context.Background())
	var ie *imap.IMAPError
	assert.ErrorAs(t, err, &ie)
}

// ---------- Unilateral data and logging ----------

func TestUnilateralDataHandler(t *testing.T) {
	got := make(chan *imap.Response, 1)
	newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Send("* 4 EXPUNGE\r\n")
	}, WithUnilateralDataHandler(func(r *imap.Response) { got <- r }))

	select {
	case r := <-got:
		assert.Equal(t, "4", r.Command)
		assert.Equal(t, []imap.Attribute{imap.Atom("EXPUNGE")}, r.Attributes)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

func TestDebugLog_HidesSensitiveValues(t *testing.T) {
	var buf bytes.Buffer
	c := newTestClient(t, "* OK ready\r\n", func(p *imaptest.Peer) {
		p.Expect("A1 LOGIN user \"hunter2\"\r\n")
		p.Send("A1 OK welcome\r\n")
	}, WithLogger(zerolog.New(&buf)), WithDebugLog(true))

	execute(t, c, &imap.Command{Command: "LOGIN", Attributes: []imap.Attribute{
		imap.Atom("user"), imap.String("hunter2").AsSensitive(),
	}})

	out := buf.String()
	assert.Contains(t, out, "(* value hidden *)")
	assert.NotContains(t, out, "hunter2")
}
