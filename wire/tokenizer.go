package wire

import (
	"strconv"
	"strings"

	imap "github.com/meszmate/imap-codec"
)

// TokenizeOptions controls Tokenize.
type TokenizeOptions struct {
	// Literals are literal bodies cut out by the Framer. They are used in
	// order for each non-empty {n} marker; once exhausted, literal bytes are
	// read from the text itself.
	Literals [][]byte
	// ResponseCode makes a top-level "[" open a status response code.
	ResponseCode bool
	// MaxLiteralSize bounds declared literal lengths. Zero means
	// MaxLiteralSize.
	MaxLiteralSize int64
}

// Tokenize turns the argument part of a response into attributes.
func Tokenize(text string, opts *TokenizeOptions) ([]imap.Attribute, error) {
	return tokenize(text, 0, opts)
}

// tokenize scans input starting at offset. Error positions are relative to
// the start of input.
func tokenize(input string, offset int, opts *TokenizeOptions) ([]imap.Attribute, error) {
	if opts == nil {
		opts = &TokenizeOptions{}
	}
	t := &tokenizer{
		input:      input,
		pos:        offset,
		literals:   opts.Literals,
		respCode:   opts.ResponseCode,
		maxLiteral: opts.MaxLiteralSize,
	}
	if t.maxLiteral <= 0 || t.maxLiteral > MaxLiteralSize {
		t.maxLiteral = MaxLiteralSize
	}
	t.nodes = append(t.nodes, node{kind: nodeTree, parent: -1})
	if err := t.run(); err != nil {
		return nil, err
	}
	if err := t.finish(); err != nil {
		return nil, err
	}
	return t.build(0)
}

type tokenState int

const (
	tokNormal tokenState = iota
	tokAtom
	tokString
	tokLiteral
	tokSequence
	tokPartial
)

type nodeKind int

const (
	nodeTree nodeKind = iota
	nodeList
	nodeSection
	nodeAtom
	nodeString
	nodeLiteral
	nodeSequence
	nodePartial
)

type node struct {
	kind     nodeKind
	parent   int
	children []int
	depth    int
	start    int
	closed   bool
	value    []byte
	// brackets counts "[" inside an atom not yet matched by "]".
	brackets int

	// literal bookkeeping
	literal8 bool
	digits   int
	size     int64
	plus     bool
	reading  bool
}

type tokenizer struct {
	input      string
	pos        int
	nodes      []node
	cur        int
	state      tokenState
	literals   [][]byte
	nextLit    int
	respCode   bool
	maxLiteral int64
}

func (t *tokenizer) errAt(code ErrorCode, pos int) error {
	return syntaxErr(code, pos, t.input)
}

func (t *tokenizer) node(i int) *node { return &t.nodes[i] }

func (t *tokenizer) current() *node { return &t.nodes[t.cur] }

// open appends a child of parent and returns its index. Lists and sections
// count towards the nesting limit.
func (t *tokenizer) open(parent int, kind nodeKind) (int, error) {
	depth := t.nodes[parent].depth
	if kind == nodeList || kind == nodeSection {
		depth++
		if depth > MaxNestingDepth {
			return 0, &FatalError{Code: FatalNestingTooDeep, Value: int64(depth), Limit: MaxNestingDepth}
		}
	}
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{kind: kind, parent: parent, depth: depth, start: t.pos})
	t.nodes[parent].children = append(t.nodes[parent].children, idx)
	return idx, nil
}

// closeCurrent closes the current node and moves the cursor to its parent.
func (t *tokenizer) closeCurrent() error {
	n := t.current()
	if n.parent < 0 {
		return &InternalError{Msg: "closing the root node"}
	}
	n.closed = true
	t.cur = n.parent
	t.state = tokNormal
	return nil
}

func (t *tokenizer) parentKind() nodeKind {
	p := t.current().parent
	if p < 0 {
		return nodeTree
	}
	return t.nodes[p].kind
}

func (t *tokenizer) run() error {
	for t.pos < len(t.input) {
		var err error
		switch t.state {
		case tokNormal:
			err = t.normal()
		case tokAtom:
			err = t.atom()
		case tokString:
			err = t.quoted()
		case tokLiteral:
			err = t.literal()
		case tokSequence:
			err = t.sequence()
		case tokPartial:
			err = t.partial()
		default:
			err = &InternalError{Msg: "unknown tokenizer state"}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *tokenizer) normal() error {
	c := t.input[t.pos]
	switch c {
	case ' ':
		t.pos++
		return nil

	case '"':
		idx, err := t.open(t.cur, nodeString)
		if err != nil {
			return err
		}
		t.cur, t.state = idx, tokString
		t.pos++
		return nil

	case '(':
		idx, err := t.open(t.cur, nodeList)
		if err != nil {
			return err
		}
		t.cur = idx
		t.pos++
		return nil

	case ')':
		if t.current().kind != nodeList {
			return t.errAt(CodeUnexpectedListEnd, t.pos)
		}
		t.pos++
		return t.closeCurrent()

	case ']':
		if t.current().kind != nodeSection {
			return t.errAt(CodeUnexpectedSectionEnd, t.pos)
		}
		t.pos++
		return t.closeCurrent()

	case '<':
		if t.afterSection() {
			idx, err := t.open(t.cur, nodePartial)
			if err != nil {
				return err
			}
			t.cur, t.state = idx, tokPartial
			t.pos++
			return nil
		}
		return t.startAtom(c)

	case '{':
		idx, err := t.open(t.cur, nodeLiteral)
		if err != nil {
			return err
		}
		t.cur, t.state = idx, tokLiteral
		t.pos++
		return nil

	case '~':
		if t.pos+1 >= len(t.input) || t.input[t.pos+1] != '{' {
			return t.errAt(CodeInvalidLiteral8Start, t.pos)
		}
		idx, err := t.open(t.cur, nodeLiteral)
		if err != nil {
			return err
		}
		t.node(idx).literal8 = true
		t.cur, t.state = idx, tokLiteral
		t.pos += 2
		return nil

	case '*':
		idx, err := t.open(t.cur, nodeSequence)
		if err != nil {
			return err
		}
		t.node(idx).value = append(t.node(idx).value, c)
		t.cur, t.state = idx, tokSequence
		t.pos++
		return nil

	case '[':
		if t.respCode && t.current().kind == nodeTree {
			return t.responseCode()
		}
		return t.startAtom(c)
	}

	if !isAtomChar(c) && c != '\\' && c != '%' {
		return t.errAt(CodeUnexpectedChar, t.pos)
	}
	return t.startAtom(c)
}

// afterSection reports whether the previous byte closed a section that is
// the last child of the current node.
func (t *tokenizer) afterSection() bool {
	if t.pos == 0 || t.input[t.pos-1] != ']' {
		return false
	}
	children := t.current().children
	if len(children) == 0 {
		return false
	}
	return t.nodes[children[len(children)-1]].kind == nodeSection
}

func (t *tokenizer) startAtom(c byte) error {
	idx, err := t.open(t.cur, nodeAtom)
	if err != nil {
		return err
	}
	t.node(idx).value = append(t.node(idx).value, c)
	if c == '[' {
		t.node(idx).brackets++
	}
	t.cur, t.state = idx, tokAtom
	t.pos++
	return nil
}

// responseCode opens the [...] of a status response: an empty atom followed
// by a section. The URL argument of REFERRAL may contain any character up
// to "]" and is taken verbatim.
func (t *tokenizer) responseCode() error {
	atom, err := t.open(t.cur, nodeAtom)
	if err != nil {
		return err
	}
	t.node(atom).closed = true
	sec, err := t.open(t.cur, nodeSection)
	if err != nil {
		return err
	}
	t.cur = sec
	t.pos++

	const referral = "REFERRAL "
	rest := t.input[t.pos:]
	if len(rest) < len(referral) || !strings.EqualFold(rest[:len(referral)], referral) {
		return nil
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return t.errAt(CodeUnclosedSection, len(t.input))
	}
	kw, err := t.open(sec, nodeAtom)
	if err != nil {
		return err
	}
	t.node(kw).value = []byte("REFERRAL")
	t.node(kw).closed = true
	url, err := t.open(sec, nodeAtom)
	if err != nil {
		return err
	}
	t.node(url).value = []byte(rest[len(referral):end])
	t.node(url).closed = true
	t.pos += end + 1
	return t.closeCurrent()
}

var sectionAtoms = map[string]bool{
	"BODY":        true,
	"BODY.PEEK":   true,
	"BINARY":      true,
	"BINARY.PEEK": true,
}

func (t *tokenizer) atom() error {
	c := t.input[t.pos]
	n := t.current()

	switch {
	case c == ' ':
		t.pos++
		return t.closeCurrent()

	case c == ')' && t.parentKind() == nodeList,
		c == ']' && n.brackets == 0 && t.parentKind() == nodeSection:
		t.pos++
		if err := t.closeCurrent(); err != nil {
			return err
		}
		return t.closeCurrent()

	case c == ']' && n.brackets > 0:
		n.brackets--
		n.value = append(n.value, c)
		t.pos++
		return nil

	case (c == ',' || c == ':') && isAllDigits(n.value):
		n.kind = nodeSequence
		n.value = append(n.value, c)
		t.state = tokSequence
		t.pos++
		return nil

	case c == '[' && sectionAtoms[strings.ToUpper(string(n.value))]:
		parent := n.parent
		if err := t.closeCurrent(); err != nil {
			return err
		}
		idx, err := t.open(parent, nodeSection)
		if err != nil {
			return err
		}
		t.cur = idx
		t.pos++
		return nil

	case c == '[':
		n.brackets++

	case c == '<':
		return t.errAt(CodeUnexpectedPartialStart, t.pos)
	}

	if string(n.value) == `\*` {
		return t.errAt(CodeInvalidFlagWildcard, t.pos)
	}
	if !isAtomChar(c) && c != ']' && !(c == '*' && string(n.value) == `\`) {
		return t.errAt(CodeInvalidAtomChar, t.pos)
	}
	n.value = append(n.value, c)
	t.pos++
	return nil
}

func (t *tokenizer) quoted() error {
	c := t.input[t.pos]
	n := t.current()
	switch c {
	case '"':
		t.pos++
		return t.closeCurrent()
	case '\\':
		t.pos++
		if t.pos >= len(t.input) {
			return t.errAt(CodeUnterminatedEscape, t.pos-1)
		}
		c = t.input[t.pos]
	}
	n.value = append(n.value, c)
	t.pos++
	return nil
}

func (t *tokenizer) literal() error {
	n := t.current()

	if n.reading {
		need := n.size - int64(len(n.value))
		avail := int64(len(t.input) - t.pos)
		if need > avail {
			need = avail
		}
		n.value = append(n.value, t.input[t.pos:t.pos+int(need)]...)
		t.pos += int(need)
		if int64(len(n.value)) == n.size {
			return t.closeCurrent()
		}
		return nil
	}

	c := t.input[t.pos]
	switch {
	case c == '+':
		if n.digits == 0 || n.plus {
			return t.errAt(CodeLiteralPlusPosition, t.pos)
		}
		n.plus = true
		t.pos++
		return nil

	case c == '}':
		if n.digits == 0 {
			return t.errAt(CodeLiteralPrefixEnd, t.pos)
		}
		rest := t.input[t.pos+1:]
		switch {
		case strings.HasPrefix(rest, "\r\n"):
			t.pos += 3
		case strings.HasPrefix(rest, "\n"):
			t.pos += 2
		default:
			return t.errAt(CodeLiteralMissingCRLF, t.pos+1)
		}
		if n.size == 0 {
			return t.closeCurrent()
		}
		if t.nextLit < len(t.literals) {
			n.value = t.literals[t.nextLit]
			t.nextLit++
			return t.closeCurrent()
		}
		n.reading = true
		n.value = make([]byte, 0, minInt64(n.size, int64(len(t.input)-t.pos)))
		return nil

	case isDigit(c):
		if n.plus {
			return t.errAt(CodeLiteralPlusPosition, t.pos-1)
		}
		if n.digits == 1 && n.size == 0 {
			return t.errAt(CodeLiteralLeadingZero, t.pos-1)
		}
		n.size = n.size*10 + int64(c-'0')
		n.digits++
		if n.size > t.maxLiteral {
			return &FatalError{Code: FatalLiteralTooLarge, Value: n.size, Limit: t.maxLiteral}
		}
		t.pos++
		return nil
	}
	return t.errAt(CodeLiteralNonDigit, t.pos)
}

func sequenceCanEnd(v []byte) bool {
	last := v[len(v)-1]
	return isDigit(last) || last == '*'
}

func (t *tokenizer) sequence() error {
	c := t.input[t.pos]
	n := t.current()
	last := n.value[len(n.value)-1]

	switch {
	case c == ' ':
		if !sequenceCanEnd(n.value) {
			return t.errAt(CodeSequenceWhitespace, t.pos)
		}
		t.pos++
		return t.closeCurrent()

	case c == ')' && t.parentKind() == nodeList,
		c == ']' && t.parentKind() == nodeSection:
		if !sequenceCanEnd(n.value) {
			return t.errAt(CodeUnterminatedSequence, t.pos)
		}
		t.pos++
		if err := t.closeCurrent(); err != nil {
			return err
		}
		return t.closeCurrent()

	case c == ':':
		if !isDigit(last) && last != '*' {
			return t.errAt(CodeSequenceRangeSeparator, t.pos)
		}

	case c == '*':
		if last != ',' && last != ':' {
			return t.errAt(CodeSequenceWildcard, t.pos)
		}

	case c == ',':
		if !isDigit(last) && last != '*' {
			return t.errAt(CodeSequenceSeparator, t.pos)
		}
		if last == '*' && (len(n.value) < 2 || n.value[len(n.value)-2] != ':') {
			return t.errAt(CodeSequenceSeparator, t.pos)
		}

	case isDigit(c):
		if last == '*' {
			return t.errAt(CodeSequenceNumberAfterWildcard, t.pos)
		}

	default:
		return t.errAt(CodeSequenceNonDigit, t.pos)
	}

	n.value = append(n.value, c)
	t.pos++
	return nil
}

func (t *tokenizer) partial() error {
	c := t.input[t.pos]
	n := t.current()
	dot := strings.IndexByte(string(n.value), '.')

	switch {
	case c == '>':
		if dot < 0 {
			return t.errAt(CodePartialMissingSeparator, t.pos)
		}
		if dot == len(n.value)-1 {
			return t.errAt(CodePartialTrailingSeparator, t.pos)
		}
		t.pos++
		return t.closeCurrent()

	case c == '.':
		if len(n.value) == 0 {
			return t.errAt(CodePartialEmptySeparator, t.pos)
		}
		if dot >= 0 {
			return t.errAt(CodePartialDoubleSeparator, t.pos)
		}

	case !isDigit(c):
		return t.errAt(CodePartialNonDigit, t.pos)

	default:
		if string(n.value) == "0" || strings.HasSuffix(string(n.value), ".0") {
			return t.errAt(CodePartialLeadingZero, t.pos-1)
		}
	}

	n.value = append(n.value, c)
	t.pos++
	return nil
}

// finish runs at end of input. An open atom ends there; a sequence set
// ends there when it is complete. Any other open node is reported,
// innermost first.
func (t *tokenizer) finish() error {
	switch t.state {
	case tokAtom:
		if err := t.closeCurrent(); err != nil {
			return err
		}
	case tokSequence:
		if !sequenceCanEnd(t.current().value) {
			return t.errAt(CodeUnterminatedSequence, len(t.input))
		}
		if err := t.closeCurrent(); err != nil {
			return err
		}
	}
	if t.cur != 0 {
		return t.unclosed(t.current())
	}
	return nil
}

// build walks the children of the node at idx.
func (t *tokenizer) build(idx int) ([]imap.Attribute, error) {
	var out []imap.Attribute
	if t.nodes[idx].kind != nodeTree {
		out = []imap.Attribute{}
	}
	for _, ci := range t.nodes[idx].children {
		n := &t.nodes[ci]
		if !n.closed {
			return nil, t.unclosed(n)
		}
		switch n.kind {
		case nodeAtom:
			if strings.EqualFold(string(n.value), "NIL") {
				out = append(out, imap.Nil())
			} else {
				out = append(out, imap.Atom(string(n.value)))
			}
		case nodeString:
			out = append(out, imap.String(string(n.value)))
		case nodeLiteral:
			out = append(out, imap.Attribute{Kind: imap.KindLiteral, Value: string(n.value), Literal8: n.literal8})
		case nodeSequence:
			out = append(out, imap.Sequence(string(n.value)))
		case nodeList:
			children, err := t.build(ci)
			if err != nil {
				return nil, err
			}
			out = append(out, imap.List(children...))
		case nodeSection:
			children, err := t.build(ci)
			if err != nil {
				return nil, err
			}
			if len(out) == 0 {
				return nil, &InternalError{Msg: "section without preceding atom"}
			}
			out[len(out)-1].Section = children
		case nodePartial:
			p, err := t.partialRange(n)
			if err != nil {
				return nil, err
			}
			if len(out) == 0 {
				return nil, &InternalError{Msg: "partial without preceding section"}
			}
			out[len(out)-1].Partial = p
		default:
			return nil, &InternalError{Msg: "unexpected node kind " + strconv.Itoa(int(n.kind))}
		}
	}
	return out, nil
}

func (t *tokenizer) partialRange(n *node) (*imap.Partial, error) {
	startText, lengthText, _ := strings.Cut(string(n.value), ".")
	start, err := strconv.ParseUint(startText, 10, 64)
	if err != nil {
		return nil, t.errAt(CodePartialNonDigit, n.start)
	}
	length, err := strconv.ParseUint(lengthText, 10, 64)
	if err != nil {
		return nil, t.errAt(CodePartialNonDigit, n.start)
	}
	return &imap.Partial{Start: start, Length: length}, nil
}

func (t *tokenizer) unclosed(n *node) error {
	end := len(t.input)
	switch n.kind {
	case nodeList:
		return t.errAt(CodeUnclosedList, end)
	case nodeSection:
		return t.errAt(CodeUnclosedSection, end)
	case nodeString:
		return t.errAt(CodeUnterminatedString, end)
	case nodeLiteral:
		return t.errAt(CodeUnterminatedLiteral, end)
	case nodePartial:
		return t.errAt(CodeUnterminatedPartial, end)
	case nodeSequence:
		return t.errAt(CodeUnterminatedSequence, end)
	}
	return &InternalError{Msg: "unclosed node at end of input"}
}
