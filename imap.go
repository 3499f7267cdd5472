// Package imap holds the data model shared by the IMAP wire codec.
//
// A server response is parsed into a Response whose Attributes form a tree of
// Attribute values. The same Attribute type is used to describe outgoing
// commands, which the wire package compiles back into protocol bytes
// (RFC 3501, RFC 7888 LITERAL+/LITERAL-, RFC 3516 LITERAL8).
package imap

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies the grammar production an Attribute was produced from.
type Kind int

const (
	// KindNil is the protocol's NIL, an absent value. It is the zero Kind.
	KindNil Kind = iota
	// KindAtom is a bare word such as FLAGS, \Seen or BODY.
	KindAtom
	// KindString is a quoted string.
	KindString
	// KindLiteral is a length-prefixed {n} string.
	KindLiteral
	// KindSequence is a sequence set such as 1:*,5.
	KindSequence
	// KindSection is an atom that carries a [...] section when compiling.
	KindSection
	// KindText is free human-readable text from a status response.
	KindText
	// KindNumber is a numeric value for outgoing commands.
	KindNumber
	// KindList is a parenthesized list.
	KindList
)

var kindNames = [...]string{
	KindNil:      "NIL",
	KindAtom:     "ATOM",
	KindString:   "STRING",
	KindLiteral:  "LITERAL",
	KindSequence: "SEQUENCE",
	KindSection:  "SECTION",
	KindText:     "TEXT",
	KindNumber:   "NUMBER",
	KindList:     "LIST",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("KIND(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	name := strings.ToUpper(string(b))
	for i, n := range kindNames {
		if n == name {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("imap: unknown attribute kind %q", string(b))
}

// Partial is a <start.length> byte range following a section.
type Partial struct {
	Start  uint64 `json:"start" yaml:"start"`
	Length uint64 `json:"length" yaml:"length"`
}

// String returns the partial in wire form without the angle brackets.
func (p Partial) String() string {
	return fmt.Sprintf("%d.%d", p.Start, p.Length)
}

// Attribute is one node of a response or command tree.
//
// Value is a Go string and may hold arbitrary bytes. Section is non-nil,
// possibly empty, when the atom was followed by [...]: BODY[] yields an empty
// Section while BODY yields none.
type Attribute struct {
	Kind      Kind        `json:"type" yaml:"type"`
	Value     string      `json:"value,omitempty" yaml:"value,omitempty"`
	Number    float64     `json:"number,omitempty" yaml:"number,omitempty"`
	List      []Attribute `json:"list,omitempty" yaml:"list,omitempty"`
	Section   []Attribute `json:"section,omitempty" yaml:"section,omitempty"`
	Partial   *Partial    `json:"partial,omitempty" yaml:"partial,omitempty"`
	Literal8  bool        `json:"literal8,omitempty" yaml:"literal8,omitempty"`
	Sensitive bool        `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`
}

// MarshalJSON keeps an empty but present Section, so BODY[] survives a
// round trip through JSON.
func (a Attribute) MarshalJSON() ([]byte, error) {
	type plain Attribute
	out := struct {
		plain
		Section *[]Attribute `json:"section,omitempty"`
	}{plain: plain(a)}
	if a.Section != nil {
		out.Section = &a.Section
	}
	return json.Marshal(out)
}

// Nil returns a NIL attribute.
func Nil() Attribute { return Attribute{} }

// Atom returns an atom attribute.
func Atom(s string) Attribute { return Attribute{Kind: KindAtom, Value: s} }

// String returns a quoted string attribute.
func String(s string) Attribute { return Attribute{Kind: KindString, Value: s} }

// Literal returns a literal attribute holding b.
func Literal(b []byte) Attribute { return Attribute{Kind: KindLiteral, Value: string(b)} }

// Literal8 returns a binary literal attribute, sent as ~{n}.
func Literal8(b []byte) Attribute {
	return Attribute{Kind: KindLiteral, Value: string(b), Literal8: true}
}

// Sequence returns a sequence set attribute. The set is kept verbatim.
func Sequence(set string) Attribute { return Attribute{Kind: KindSequence, Value: set} }

// Text returns a free-text attribute.
func Text(s string) Attribute { return Attribute{Kind: KindText, Value: s} }

// Number returns a numeric attribute.
func Number(n float64) Attribute { return Attribute{Kind: KindNumber, Number: n} }

// List returns a parenthesized list of children.
func List(children ...Attribute) Attribute {
	if children == nil {
		children = []Attribute{}
	}
	return Attribute{Kind: KindList, List: children}
}

// SectionOf returns atom followed by a [...] section, e.g.
// SectionOf("BODY.PEEK", Atom("HEADER")) for BODY.PEEK[HEADER].
func SectionOf(atom string, children ...Attribute) Attribute {
	if children == nil {
		children = []Attribute{}
	}
	return Attribute{Kind: KindAtom, Value: atom, Section: children}
}

// WithPartial returns a copy of a with a <start.length> range attached.
func (a Attribute) WithPartial(start, length uint64) Attribute {
	a.Partial = &Partial{Start: start, Length: length}
	return a
}

// AsSensitive returns a copy of a that is hidden in logging output.
func (a Attribute) AsSensitive() Attribute {
	a.Sensitive = true
	return a
}

// IsNil reports whether a is NIL.
func (a Attribute) IsNil() bool { return a.Kind == KindNil }

// HasSection reports whether a was followed by a [...] section.
func (a Attribute) HasSection() bool { return a.Section != nil }

// Upper returns the value in upper case, for case-insensitive keyword matching.
func (a Attribute) Upper() string { return strings.ToUpper(a.Value) }

// Is reports whether a is an atom equal to keyword, ignoring case.
func (a Attribute) Is(keyword string) bool {
	return a.Kind == KindAtom && strings.EqualFold(a.Value, keyword)
}

// SeqSet parses a sequence set attribute. Atoms made only of digits are
// accepted too, since a single number is tokenized as an atom.
func (a Attribute) SeqSet() (*SeqSet, error) {
	switch a.Kind {
	case KindSequence, KindAtom:
		return ParseSeqSet(a.Value)
	default:
		return nil, fmt.Errorf("imap: %s attribute is not a sequence set", a.Kind)
	}
}
