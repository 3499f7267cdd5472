package wire

import "strconv"

const (
	// MaxLiteralSize is the default upper bound for a single literal, 1 GiB.
	MaxLiteralSize int64 = 1 << 30

	// MaxNestingDepth bounds how deep lists and sections may nest.
	MaxNestingDepth = 25

	// LiteralMinusMaxSize is the largest literal that may be sent
	// non-synchronizing under LITERAL- (RFC 7888).
	LiteralMinusMaxSize = 4096

	// redactThreshold is the size above which strings and literals are
	// replaced by a placeholder in logging output.
	redactThreshold = 100
)

// LiteralMode tells the compiler how to place literal content.
type LiteralMode int

const (
	// LiteralInline appends the content right after the {n} header.
	LiteralInline LiteralMode = iota
	// LiteralSplit ends the current chunk after the header. The next chunk
	// starts with the content and may only be sent after the server's
	// continuation request.
	LiteralSplit
)

func (m LiteralMode) String() string {
	if m == LiteralSplit {
		return "split"
	}
	return "inline"
}

// LiteralDecision is the result of DecideLiteral.
type LiteralDecision struct {
	Mode    LiteralMode
	NonSync bool
}

// DecideLiteral chooses how a literal of size bytes is sent. With LITERAL+
// every literal is non-synchronizing. LITERAL- makes literals of at most
// LiteralMinusMaxSize bytes non-synchronizing whether or not LiteralPlus is
// set. Everything else is a synchronizing literal that is split when
// compiling into chunks and inlined when compiling into a single buffer.
func DecideLiteral(size int, opts CompileOptions, chunked bool) LiteralDecision {
	if opts.LiteralPlus || (opts.LiteralMinus && size <= LiteralMinusMaxSize) {
		return LiteralDecision{Mode: LiteralInline, NonSync: true}
	}
	if chunked {
		return LiteralDecision{Mode: LiteralSplit}
	}
	return LiteralDecision{Mode: LiteralInline}
}

// literalHeader formats {n}, {n+} or ~{n}.
func literalHeader(size int, literal8, nonSync bool) []byte {
	b := make([]byte, 0, 16)
	if literal8 {
		b = append(b, '~')
	}
	b = append(b, '{')
	b = strconv.AppendInt(b, int64(size), 10)
	if nonSync {
		b = append(b, '+')
	}
	return append(b, '}')
}
