package wire

import (
	"bytes"
	"math"
	"strconv"
	"sync"
)

// Payload is one complete server response as cut from the byte stream.
type Payload struct {
	// Text is the response with its final line terminator removed. Literal
	// markers such as {5}\r\n stay in place; the literal bytes themselves
	// are in Literals.
	Text []byte
	// Literals holds the literal bytes in the order their markers appear.
	Literals [][]byte

	once sync.Once
	next func()
}

// Next releases the producer to frame the next payload. It must be called
// once the payload has been processed; further calls are no-ops.
func (p *Payload) Next() {
	p.once.Do(func() {
		if p.next != nil {
			p.next()
		}
	})
}

// LiteralBytes returns the total size of the payload's literals.
func (p *Payload) LiteralBytes() int {
	n := 0
	for _, l := range p.Literals {
		n += len(l)
	}
	return n
}

type framerState int

const (
	stateLine framerState = iota
	stateLiteral
)

// FramerOption configures a Framer.
type FramerOption func(*Framer)

// WithMaxLiteralSize lowers the largest literal the framer accepts. Values
// outside (0, MaxLiteralSize] are ignored.
func WithMaxLiteralSize(n int64) FramerOption {
	return func(f *Framer) {
		if n > 0 && n <= MaxLiteralSize {
			f.maxLiteral = n
		}
	}
}

// Framer splits a chunked byte stream into Payloads. It is not safe for
// concurrent use; one Framer serves one connection.
type Framer struct {
	state      framerState
	maxLiteral int64

	line      []byte
	literals  [][]byte
	literal   []byte
	remaining int64

	err error
}

// NewFramer creates a Framer in line state.
func NewFramer(opts ...FramerOption) *Framer {
	f := &Framer{maxLiteral: MaxLiteralSize}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Feed consumes chunk and calls emit for every payload it completes, in
// order. Feed returns only after emit has returned for each of them, so a
// blocking emit holds back the rest of the chunk. An error from emit stops
// Feed and is returned as is. A literal above the size limit yields a
// *FatalError; every later call returns the same error.
func (f *Framer) Feed(chunk []byte, emit func(*Payload) error) error {
	if f.err != nil {
		return f.err
	}
	for len(chunk) > 0 {
		if f.state == stateLiteral {
			n := int64(len(chunk))
			if n > f.remaining {
				n = f.remaining
			}
			f.literal = append(f.literal, chunk[:n]...)
			chunk = chunk[n:]
			f.remaining -= n
			if f.remaining == 0 {
				f.literals = append(f.literals, f.literal)
				f.literal = nil
				f.state = stateLine
			}
			continue
		}

		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			f.line = append(f.line, chunk...)
			return nil
		}
		f.line = append(f.line, chunk[:idx+1]...)
		chunk = chunk[idx+1:]

		size, ok := literalMarker(f.line)
		if ok {
			if size > f.maxLiteral {
				f.err = &FatalError{Code: FatalLiteralTooLarge, Value: size, Limit: f.maxLiteral}
				return f.err
			}
			if size > 0 {
				f.state = stateLiteral
				f.remaining = size
				f.literal = make([]byte, 0, minInt64(size, 64*1024))
			}
			continue
		}

		p := &Payload{Text: trimLineEnd(f.line), Literals: f.literals}
		f.line = nil
		f.literals = nil
		if err := emit(p); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports whether the framer holds bytes of an incomplete payload.
func (f *Framer) Pending() bool {
	return len(f.line) > 0 || len(f.literals) > 0 || f.state == stateLiteral
}

// Reset drops any partial payload and clears a fatal error.
func (f *Framer) Reset() {
	f.state = stateLine
	f.line = nil
	f.literals = nil
	f.literal = nil
	f.remaining = 0
	f.err = nil
}

// literalMarker reports whether line, which ends in LF, ends with a
// {n} or {n+} marker and returns n. Lengths that do not fit an int64 are
// reported as math.MaxInt64 so that they fail the size check.
func literalMarker(line []byte) (int64, bool) {
	end := len(line) - 1 // LF
	if end > 0 && line[end-1] == '\r' {
		end--
	}
	if end < 1 || line[end-1] != '}' {
		return 0, false
	}
	end--
	if end > 0 && line[end-1] == '+' {
		end--
	}
	start := end
	for start > 0 && isDigit(line[start-1]) {
		start--
	}
	if start == end || start == 0 || line[start-1] != '{' {
		return 0, false
	}
	n, err := strconv.ParseInt(string(line[start:end]), 10, 64)
	if err != nil {
		return math.MaxInt64, true
	}
	return n, true
}

func trimLineEnd(line []byte) []byte {
	line = line[:len(line)-1]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
