package wire

import (
	"strings"

	imap "github.com/meszmate/imap-codec"
)

// ParseOptions controls Parse.
type ParseOptions struct {
	// Literals are passed on to the tokenizer, see TokenizeOptions.
	Literals [][]byte
	// MaxLiteralSize bounds declared literal lengths. Zero means
	// MaxLiteralSize.
	MaxLiteralSize int64
}

// ParsePayload parses a framed payload using its out-of-band literals.
func ParsePayload(p *Payload) (*imap.Response, error) {
	return Parse(string(p.Text), &ParseOptions{Literals: p.Literals})
}

// Parse parses one server response with its line terminator removed.
//
// Leading NUL bytes are dropped and counted. A response made only of NUL
// bytes is reported as an untagged BAD rather than an error.
func Parse(text string, opts *ParseOptions) (*imap.Response, error) {
	if opts == nil {
		opts = &ParseOptions{}
	}

	nulls := 0
	for nulls < len(text) && text[nulls] == 0 {
		nulls++
	}
	if nulls > 0 && nulls == len(text) {
		return &imap.Response{
			Tag:              imap.TagUntagged,
			Command:          string(imap.StatusResponseTypeBAD),
			NullBytesRemoved: nulls,
		}, nil
	}

	p := &parser{input: text[nulls:]}
	resp := &imap.Response{NullBytesRemoved: nulls}

	tag, err := p.tag()
	if err != nil {
		return nil, err
	}
	resp.Tag = tag

	if tag == imap.TagContinuation {
		if p.pos < len(p.input) {
			if err := p.space(); err != nil {
				return nil, err
			}
			resp.HumanReadable = strings.TrimSpace(p.input[p.pos:])
		}
		if resp.HumanReadable != "" {
			resp.Attributes = []imap.Attribute{imap.Text(resp.HumanReadable)}
		}
		return resp, nil
	}

	if err := p.space(); err != nil {
		return nil, err
	}
	command, err := p.command(tag)
	if err != nil {
		return nil, err
	}
	resp.Command = strings.ToUpper(command)

	if imap.IsCompoundCommand(resp.Command) {
		if err := p.space(); err != nil {
			return nil, err
		}
		sub, err := p.element(isCommandChar, CodeInvalidCommandChar)
		if err != nil {
			return nil, err
		}
		resp.Command += " " + strings.ToUpper(sub)
	}

	status := imap.IsStatusCommand(resp.Command)
	end := len(p.input)
	if status {
		rest := p.input[p.pos:]
		codeEnd := -1
		if trimmed := strings.TrimLeft(rest, " "); strings.HasPrefix(trimmed, "[") {
			if i := balancedEnd(trimmed); i >= 0 {
				codeEnd = len(rest) - len(trimmed) + i + 1
			}
		}
		if codeEnd >= 0 {
			resp.HumanReadable = strings.TrimSpace(rest[codeEnd:])
			end = p.pos + codeEnd
		} else {
			resp.HumanReadable = strings.TrimSpace(rest)
			end = p.pos
		}
	}

	if strings.TrimSpace(p.input[p.pos:end]) != "" {
		if err := p.space(); err != nil {
			return nil, err
		}
		if status {
			// Extra spaces may precede a response code, as they may text.
			for p.pos < end && p.input[p.pos] == ' ' {
				p.pos++
			}
		}
		if p.pos >= end {
			return nil, syntaxErr(CodeUnexpectedEOF, p.pos, p.input)
		}
		if isSpace(p.input[p.pos]) {
			return nil, syntaxErr(CodeUnexpectedWhitespace, p.pos, p.input)
		}
		attrs, err := tokenize(p.input[:end], p.pos, &TokenizeOptions{
			Literals:       opts.Literals,
			ResponseCode:   status,
			MaxLiteralSize: opts.MaxLiteralSize,
		})
		if err != nil {
			return nil, err
		}
		resp.Attributes = attrs
	}

	if resp.HumanReadable != "" {
		resp.Attributes = append(resp.Attributes, imap.Text(resp.HumanReadable))
	}
	return resp, nil
}

type parser struct {
	input string
	pos   int
}

// element reads the run of bytes up to the next SP or end of input and
// checks each one with valid.
func (p *parser) element(valid func(byte) bool, code ErrorCode) (string, error) {
	if p.pos >= len(p.input) {
		return "", syntaxErr(CodeUnexpectedEOF, p.pos, p.input)
	}
	if isSpace(p.input[p.pos]) {
		return "", syntaxErr(CodeUnexpectedWhitespace, p.pos, p.input)
	}
	end := p.pos
	for end < len(p.input) && !isSpace(p.input[end]) {
		end++
	}
	for i := p.pos; i < end; i++ {
		if !valid(p.input[i]) {
			return "", syntaxErr(code, i, p.input)
		}
	}
	elem := p.input[p.pos:end]
	p.pos = end
	return elem, nil
}

// command reads the response verb. Some Exchange front ends answer with
// "Server Unavailable. 15" instead of a greeting; that is reported with its
// own code.
func (p *parser) command(tag string) (string, error) {
	start := p.pos
	cmd, err := p.element(isCommandChar, CodeInvalidCommandChar)
	if err == nil {
		return cmd, nil
	}
	if tag == "Server" || tag == "Server:" {
		end := strings.IndexByte(p.input[start:], ' ')
		word := p.input[start:]
		if end >= 0 {
			word = word[:end]
		}
		if strings.EqualFold(word, "Unavailable.") {
			return "", syntaxErr(CodeServerUnavailable, start, p.input)
		}
	}
	return "", err
}

func (p *parser) space() error {
	if p.pos >= len(p.input) {
		return syntaxErr(CodeUnexpectedEOF, p.pos, p.input)
	}
	if p.input[p.pos] != ' ' {
		return syntaxErr(CodeMissingSeparator, p.pos, p.input)
	}
	p.pos++
	return nil
}

// tag reads the response tag: "*", "+" or a run of tag characters.
func (p *parser) tag() (string, error) {
	if p.pos < len(p.input) {
		switch c := p.input[p.pos]; c {
		case '*', '+':
			if p.pos+1 == len(p.input) || isSpace(p.input[p.pos+1]) {
				p.pos++
				return string(c), nil
			}
		}
	}
	return p.element(isTagChar, CodeInvalidTagChar)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// balancedEnd returns the index of the "]" matching the "[" that s starts
// with, or -1.
func balancedEnd(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
