package wire

import (
	"math"
	"strconv"

	imap "github.com/meszmate/imap-codec"
)

// CompileOptions controls Compile and CompileChunks.
type CompileOptions struct {
	// LiteralPlus sends every literal as {n+} (RFC 7888 LITERAL+).
	LiteralPlus bool
	// LiteralMinus sends literals of up to 4096 bytes as {n+} (RFC 7888
	// LITERAL-).
	LiteralMinus bool
	// Logging replaces long strings and literals, and every sensitive
	// attribute, with placeholders. The output is for logs only.
	Logging bool
}

const hiddenValue = `"(* value hidden *)"`

// Compile renders cmd as a single buffer without the trailing CRLF.
// Literals are always inlined.
func Compile(cmd *imap.Command, opts CompileOptions) []byte {
	c := &compiler{opts: opts}
	c.command(cmd)
	return c.buf
}

// CompileChunks renders cmd split at every synchronizing literal. Each chunk
// after the first starts with literal content and may only be written once
// the server has answered the previous chunk with a continuation request.
// The last chunk may be empty when the command ends with an empty literal.
// None of the chunks carries the trailing CRLF.
func CompileChunks(cmd *imap.Command, opts CompileOptions) [][]byte {
	c := &compiler{opts: opts, chunked: true}
	c.command(cmd)
	return append(c.chunks, c.buf)
}

// LogString renders cmd for logging: literals and strings over 100 bytes
// are summarized and sensitive attributes are hidden.
func LogString(cmd *imap.Command) string {
	return string(Compile(cmd, CompileOptions{Logging: true}))
}

type compiler struct {
	opts    CompileOptions
	chunked bool

	buf          []byte
	chunks       [][]byte
	afterLiteral bool
}

func (c *compiler) command(cmd *imap.Command) {
	c.buf = append(c.buf, cmd.Tag...)
	if cmd.Command != "" {
		c.buf = append(c.buf, ' ')
		c.buf = append(c.buf, cmd.Command...)
	}
	for i := range cmd.Attributes {
		c.attribute(&cmd.Attributes[i], false)
	}
}

// separate writes the space before an attribute. noSep is set for the
// elements of a list made only of lists.
func (c *compiler) separate(noSep bool) {
	forced := c.afterLiteral
	c.afterLiteral = false
	if noSep {
		return
	}
	if forced {
		c.buf = append(c.buf, ' ')
		return
	}
	if len(c.buf) == 0 {
		return
	}
	switch c.buf[len(c.buf)-1] {
	case '(', '[', '<':
		return
	}
	c.buf = append(c.buf, ' ')
}

func (c *compiler) attribute(a *imap.Attribute, noSep bool) {
	switch a.Kind {
	case imap.KindNil, imap.KindAtom, imap.KindSection, imap.KindString,
		imap.KindLiteral, imap.KindSequence, imap.KindText, imap.KindNumber, imap.KindList:
	default:
		return
	}

	c.separate(noSep)

	if c.opts.Logging && a.Sensitive {
		c.buf = append(c.buf, hiddenValue...)
		return
	}

	switch a.Kind {
	case imap.KindNil:
		c.buf = append(c.buf, "NIL"...)

	case imap.KindString:
		if c.opts.Logging && len(a.Value) > redactThreshold {
			c.redact(len(a.Value), "string")
			return
		}
		c.buf = appendQuoted(c.buf, a.Value)

	case imap.KindNumber:
		n := a.Number
		if math.IsNaN(n) || math.IsInf(n, 0) {
			n = 0
		}
		n = math.Round(n)
		if n == 0 {
			n = 0 // drops the sign of -0
		}
		c.buf = strconv.AppendFloat(c.buf, n, 'f', 0, 64)

	case imap.KindText, imap.KindSequence:
		c.buf = append(c.buf, a.Value...)

	case imap.KindLiteral:
		c.literal(a)

	case imap.KindAtom, imap.KindSection:
		if a.Section == nil || a.Value != "" {
			if NeedsQuoting(a.Value) {
				c.buf = appendQuoted(c.buf, a.Value)
			} else {
				c.buf = append(c.buf, a.Value...)
			}
		}
		if a.Section != nil {
			c.buf = append(c.buf, '[')
			for i := range a.Section {
				c.attribute(&a.Section[i], false)
			}
			c.buf = append(c.buf, ']')
		}
		if a.Partial != nil {
			c.buf = append(c.buf, '<')
			c.buf = append(c.buf, a.Partial.String()...)
			c.buf = append(c.buf, '>')
		}

	case imap.KindList:
		c.buf = append(c.buf, '(')
		allLists := len(a.List) > 1
		for i := range a.List {
			if a.List[i].Kind != imap.KindList {
				allLists = false
				break
			}
		}
		for i := range a.List {
			c.attribute(&a.List[i], allLists && i > 0)
		}
		c.buf = append(c.buf, ')')
	}
}

func (c *compiler) literal(a *imap.Attribute) {
	size := len(a.Value)
	if c.opts.Logging && size > redactThreshold {
		c.redact(size, "literal")
		return
	}
	d := DecideLiteral(size, c.opts, c.chunked && !c.opts.Logging)
	c.buf = append(c.buf, literalHeader(size, a.Literal8, d.NonSync)...)
	c.buf = append(c.buf, '\r', '\n')
	if d.Mode == LiteralSplit {
		c.chunks = append(c.chunks, c.buf)
		c.buf = nil
	}
	c.buf = append(c.buf, a.Value...)
	c.afterLiteral = true
}

func (c *compiler) redact(size int, kind string) {
	c.buf = append(c.buf, `"(* `...)
	c.buf = strconv.AppendInt(c.buf, int64(size), 10)
	c.buf = append(c.buf, "B "...)
	c.buf = append(c.buf, kind...)
	c.buf = append(c.buf, ` *)"`...)
}

// appendQuoted appends s as a double-quoted string with JSON-style escapes.
// Bytes outside ASCII are copied unchanged.
func appendQuoted(b []byte, s string) []byte {
	const hex = "0123456789abcdef"
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"', '\\':
			b = append(b, '\\', ch)
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		case '\b':
			b = append(b, '\\', 'b')
		case '\f':
			b = append(b, '\\', 'f')
		default:
			if ch < 0x20 {
				b = append(b, '\\', 'u', '0', '0', hex[ch>>4], hex[ch&0xf])
			} else {
				b = append(b, ch)
			}
		}
	}
	return append(b, '"')
}
