package wire

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s *Stream) []string {
	t.Helper()
	var out []string
	for p := range s.Payloads() {
		out = append(out, string(p.Text))
		p.Next()
	}
	return out
}

// ---------- Stream ----------

func TestStream_OneByteReader(t *testing.T) {
	input := "* OK ready\r\n* 1 FETCH (BODY[] {10}\r\n0123456789)\r\nA1 OK done\r\n"
	s := NewStream(context.Background(), iotest.OneByteReader(strings.NewReader(input)))

	var texts []string
	var literals [][]byte
	for p := range s.Payloads() {
		texts = append(texts, string(p.Text))
		literals = append(literals, p.Literals...)
		p.Next()
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []string{"* OK ready", "* 1 FETCH (BODY[] {10}\r\n)", "A1 OK done"}, texts)
	assert.Equal(t, [][]byte{[]byte("0123456789")}, literals)
}

func TestStream_ReadSizes(t *testing.T) {
	input := strings.Repeat("* 1 EXISTS\r\n", 50)
	for _, size := range []int{1, 3, 7, 64, 4096} {
		s := NewStream(context.Background(), strings.NewReader(input), WithReadSize(size))
		got := collect(t, s)
		require.NoError(t, s.Err(), "read size %d", size)
		assert.Len(t, got, 50, "read size %d", size)
	}
}

func TestStream_Backpressure(t *testing.T) {
	s := NewStream(context.Background(), strings.NewReader("* A\r\n* B\r\n"))

	first := <-s.Payloads()
	require.NotNil(t, first)
	assert.Equal(t, "* A", string(first.Text))

	select {
	case p := <-s.Payloads():
		t.Fatalf("received %q before Next", p.Text)
	case <-time.After(50 * time.Millisecond):
	}

	first.Next()
	second := <-s.Payloads()
	require.NotNil(t, second)
	assert.Equal(t, "* B", string(second.Text))
	second.Next()

	_, ok := <-s.Payloads()
	assert.False(t, ok)
	assert.NoError(t, s.Err())
}

func TestStream_UnexpectedEOF(t *testing.T) {
	s := NewStream(context.Background(), strings.NewReader("* OK\r\n* 1 FETCH (BODY[] {5}\r\nab"))
	got := collect(t, s)
	assert.Equal(t, []string{"* OK"}, got)
	assert.ErrorIs(t, s.Err(), io.ErrUnexpectedEOF)
}

func TestStream_ReadError(t *testing.T) {
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("* OK\r\n"), iotest.ErrReader(boom))
	s := NewStream(context.Background(), r)
	got := collect(t, s)
	assert.Equal(t, []string{"* OK"}, got)
	assert.ErrorIs(t, s.Err(), boom)
}

func TestStream_FatalError(t *testing.T) {
	f := NewFramer(WithMaxLiteralSize(3))
	s := NewStream(context.Background(), strings.NewReader("* 1 FETCH (BODY[] {4}\r\nabcd)\r\n"), WithFramer(f))
	assert.Empty(t, collect(t, s))
	assert.ErrorIs(t, s.Err(), FatalLiteralTooLarge)
	assert.True(t, IsFatal(s.Err()))
}

func TestStream_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream(ctx, strings.NewReader("* A\r\n* B\r\n"))

	first := <-s.Payloads()
	require.NotNil(t, first)
	cancel()

	for p := range s.Payloads() {
		p.Next()
	}
	assert.ErrorIs(t, s.Err(), context.Canceled)
}
