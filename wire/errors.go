package wire

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the grammar production a SyntaxError violated.
type ErrorCode int

// Syntax error codes. Each one names a single violated production so that
// callers and tests can tell malformed responses apart.
const (
	codeUnknown ErrorCode = iota

	// Response line structure.
	CodeUnexpectedEOF
	CodeMissingSeparator
	CodeUnexpectedWhitespace
	CodeInvalidTagChar
	CodeInvalidCommandChar
	CodeServerUnavailable

	// Top-level dispatch.
	CodeUnexpectedChar
	CodeUnexpectedListEnd
	CodeUnexpectedSectionEnd
	CodeUnclosedList
	CodeUnclosedSection

	// Atoms.
	CodeInvalidAtomChar
	CodeUnexpectedPartialStart
	CodeInvalidFlagWildcard

	// Quoted strings.
	CodeUnterminatedString
	CodeUnterminatedEscape

	// Literals.
	CodeInvalidLiteral8Start
	CodeLiteralPrefixEnd
	CodeLiteralNonDigit
	CodeLiteralLeadingZero
	CodeLiteralPlusPosition
	CodeLiteralMissingCRLF
	CodeUnterminatedLiteral

	// Partial ranges.
	CodePartialNonDigit
	CodePartialLeadingZero
	CodePartialEmptySeparator
	CodePartialDoubleSeparator
	CodePartialTrailingSeparator
	CodePartialMissingSeparator
	CodeUnterminatedPartial

	// Sequence sets.
	CodeSequenceWhitespace
	CodeSequenceNonDigit
	CodeSequenceRangeSeparator
	CodeSequenceSeparator
	CodeSequenceWildcard
	CodeSequenceNumberAfterWildcard
	CodeUnterminatedSequence
)

var codeText = map[ErrorCode]string{
	CodeUnexpectedEOF:               "unexpected end of input",
	CodeMissingSeparator:            "expected SP",
	CodeUnexpectedWhitespace:        "unexpected whitespace",
	CodeInvalidTagChar:              "invalid tag character",
	CodeInvalidCommandChar:          "invalid command character",
	CodeServerUnavailable:           "server returned an unavailable error",
	CodeUnexpectedChar:              "unexpected character",
	CodeUnexpectedListEnd:           "unexpected list terminator )",
	CodeUnexpectedSectionEnd:        "unexpected section terminator ]",
	CodeUnclosedList:                "unclosed list",
	CodeUnclosedSection:             "unclosed section",
	CodeInvalidAtomChar:             "invalid atom character",
	CodeUnexpectedPartialStart:      "unexpected start of partial",
	CodeInvalidFlagWildcard:         "unexpected character after flag wildcard",
	CodeUnterminatedString:          "unterminated quoted string",
	CodeUnterminatedEscape:          "unterminated escape in quoted string",
	CodeInvalidLiteral8Start:        "expected { after ~",
	CodeLiteralPrefixEnd:            "unexpected literal prefix end }",
	CodeLiteralNonDigit:             "non-digit in literal length",
	CodeLiteralLeadingZero:          "leading zero in literal length",
	CodeLiteralPlusPosition:         "misplaced + in literal length",
	CodeLiteralMissingCRLF:          "expected CRLF after literal length",
	CodeUnterminatedLiteral:         "literal data shorter than declared",
	CodePartialNonDigit:             "non-digit in partial",
	CodePartialLeadingZero:          "leading zero in partial",
	CodePartialEmptySeparator:       "partial separator . without start",
	CodePartialDoubleSeparator:      "duplicate partial separator .",
	CodePartialTrailingSeparator:    "partial ends with separator .",
	CodePartialMissingSeparator:     "partial without separator .",
	CodeUnterminatedPartial:         "unterminated partial",
	CodeSequenceWhitespace:          "unexpected whitespace in sequence set",
	CodeSequenceNonDigit:            "unexpected character in sequence set",
	CodeSequenceRangeSeparator:      "unexpected range separator :",
	CodeSequenceSeparator:           "unexpected sequence separator ,",
	CodeSequenceWildcard:            "unexpected range wildcard *",
	CodeSequenceNumberAfterWildcard: "unexpected number after wildcard *",
	CodeUnterminatedSequence:        "unterminated sequence set",
}

// String returns a short description of the code.
func (c ErrorCode) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return fmt.Sprintf("syntax error %d", int(c))
}

// Error makes an ErrorCode usable as an errors.Is target:
// errors.Is(err, wire.CodeLiteralNonDigit).
func (c ErrorCode) Error() string {
	return "imap: " + c.String()
}

// SyntaxError reports malformed input. It is recoverable: the response that
// produced it should be dropped, the connection can continue.
type SyntaxError struct {
	Code ErrorCode
	// Pos is the byte offset into Input.
	Pos int
	// Input is a copy of the text being parsed.
	Input string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("imap: %s at position %d", e.Code.String(), e.Pos)
}

// Is reports whether target is e's ErrorCode.
func (e *SyntaxError) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.Code
}

func syntaxErr(code ErrorCode, pos int, input string) *SyntaxError {
	return &SyntaxError{Code: code, Pos: pos, Input: input}
}

// FatalCode identifies a resource limit violation.
type FatalCode int

const (
	// FatalLiteralTooLarge: a literal length above the configured maximum.
	FatalLiteralTooLarge FatalCode = iota + 1
	// FatalNestingTooDeep: list or section nesting above MaxNestingDepth.
	FatalNestingTooDeep
)

func (c FatalCode) String() string {
	switch c {
	case FatalLiteralTooLarge:
		return "literal too large"
	case FatalNestingTooDeep:
		return "nesting too deep"
	default:
		return fmt.Sprintf("fatal %d", int(c))
	}
}

// Error makes a FatalCode usable as an errors.Is target.
func (c FatalCode) Error() string {
	return "imap: " + c.String()
}

// FatalError reports a violated resource limit. The stream cannot be
// resynchronized after it; the connection must be closed.
type FatalError struct {
	Code  FatalCode
	Value int64
	Limit int64
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("imap: %s: %d exceeds limit %d", e.Code.String(), e.Value, e.Limit)
}

// Is reports whether target is e's FatalCode.
func (e *FatalError) Is(target error) bool {
	code, ok := target.(FatalCode)
	return ok && code == e.Code
}

// InternalError reports a broken codec invariant. It indicates a bug, not
// malformed input.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "imap: internal error: " + e.Msg
}

// IsFatal reports whether err is a FatalError or InternalError, i.e. whether
// the connection has to be torn down rather than the single response dropped.
func IsFatal(err error) bool {
	var fe *FatalError
	var ie *InternalError
	return errors.As(err, &fe) || errors.As(err, &ie)
}
