package imap

import (
	"fmt"
	"strings"
)

// Special tags.
const (
	// TagUntagged marks an untagged response.
	TagUntagged = "*"
	// TagContinuation marks a continuation request.
	TagContinuation = "+"
)

// StatusResponseType represents the type of a status response.
type StatusResponseType string

const (
	StatusResponseTypeOK      StatusResponseType = "OK"
	StatusResponseTypeNO      StatusResponseType = "NO"
	StatusResponseTypeBAD     StatusResponseType = "BAD"
	StatusResponseTypeBYE     StatusResponseType = "BYE"
	StatusResponseTypePREAUTH StatusResponseType = "PREAUTH"
)

// IsStatusCommand reports whether command is one of OK, NO, BAD, BYE or
// PREAUTH, the commands that may carry a response code and free text.
func IsStatusCommand(command string) bool {
	switch StatusResponseType(strings.ToUpper(command)) {
	case StatusResponseTypeOK, StatusResponseTypeNO, StatusResponseTypeBAD,
		StatusResponseTypeBYE, StatusResponseTypePREAUTH:
		return true
	}
	return false
}

// ResponseCode represents a response code in brackets.
type ResponseCode string

// Standard response codes.
const (
	ResponseCodeAlert          ResponseCode = "ALERT"
	ResponseCodeBadCharset     ResponseCode = "BADCHARSET"
	ResponseCodeCapability     ResponseCode = "CAPABILITY"
	ResponseCodeParse          ResponseCode = "PARSE"
	ResponseCodePermanentFlags ResponseCode = "PERMANENTFLAGS"
	ResponseCodeReadOnly       ResponseCode = "READ-ONLY"
	ResponseCodeReadWrite      ResponseCode = "READ-WRITE"
	ResponseCodeTryCreate      ResponseCode = "TRYCREATE"
	ResponseCodeUIDNext        ResponseCode = "UIDNEXT"
	ResponseCodeUIDValidity    ResponseCode = "UIDVALIDITY"
	ResponseCodeUnseen         ResponseCode = "UNSEEN"
	ResponseCodeAppendUID      ResponseCode = "APPENDUID"
	ResponseCodeCopyUID        ResponseCode = "COPYUID"
	ResponseCodeReferral       ResponseCode = "REFERRAL"

	// RFC 7162 - CONDSTORE / QRESYNC
	ResponseCodeHighestModSeq ResponseCode = "HIGHESTMODSEQ"
	ResponseCodeModified      ResponseCode = "MODIFIED"
	ResponseCodeNoModSeq      ResponseCode = "NOMODSEQ"
	ResponseCodeClosed        ResponseCode = "CLOSED"
)

// Response is one parsed server response.
type Response struct {
	// Tag is the command tag, TagUntagged or TagContinuation.
	Tag string `json:"tag"`
	// Command is the upper-level verb, e.g. "OK", "FETCH" or "UID FETCH".
	// Numeric untagged responses ("* 3 EXISTS") carry the number here.
	Command string `json:"command,omitempty"`
	// Attributes are the parsed arguments. Status responses end with a
	// KindText attribute holding HumanReadable.
	Attributes []Attribute `json:"attributes,omitempty"`
	// HumanReadable is the free text of a status or continuation response.
	HumanReadable string `json:"humanReadable,omitempty"`
	// NullBytesRemoved counts leading NUL bytes stripped from the input.
	NullBytesRemoved int `json:"nullBytesRemoved,omitempty"`
}

// IsUntagged reports whether r is an untagged response.
func (r *Response) IsUntagged() bool { return r.Tag == TagUntagged }

// IsContinuation reports whether r is a continuation request.
func (r *Response) IsContinuation() bool { return r.Tag == TagContinuation }

// Status returns the status view of an OK, NO, BAD, BYE or PREAUTH
// response, or nil for any other response.
func (r *Response) Status() *StatusResponse {
	if !IsStatusCommand(r.Command) {
		return nil
	}
	sr := &StatusResponse{
		Type: StatusResponseType(strings.ToUpper(r.Command)),
		Text: r.HumanReadable,
	}
	if len(r.Attributes) > 0 {
		first := r.Attributes[0]
		if first.Kind == KindAtom && first.Value == "" && len(first.Section) > 0 {
			sr.Code = ResponseCode(first.Section[0].Upper())
			sr.CodeArgs = first.Section[1:]
		}
	}
	return sr
}

// Err returns an *IMAPError for NO, BAD and BYE responses and nil otherwise.
func (r *Response) Err() error {
	sr := r.Status()
	if sr == nil {
		return nil
	}
	switch sr.Type {
	case StatusResponseTypeNO, StatusResponseTypeBAD, StatusResponseTypeBYE:
		return &IMAPError{StatusResponse: sr}
	}
	return nil
}

// StatusResponse represents an IMAP status response.
type StatusResponse struct {
	// Type is the response type (OK, NO, BAD, BYE, PREAUTH).
	Type StatusResponseType
	// Code is the optional response code.
	Code ResponseCode
	// CodeArgs are the attributes following the code inside the brackets.
	CodeArgs []Attribute
	// Text is the human-readable text.
	Text string
}

// Error returns the status response as an error string.
func (r *StatusResponse) Error() string {
	var b strings.Builder
	b.WriteString(string(r.Type))
	if r.Code != "" {
		b.WriteString(" [")
		b.WriteString(string(r.Code))
		for _, arg := range r.CodeArgs {
			b.WriteString(" ")
			b.WriteString(describe(arg))
		}
		b.WriteString("]")
	}
	if r.Text != "" {
		b.WriteString(" ")
		b.WriteString(r.Text)
	}
	return b.String()
}

// IMAPError is an error type that wraps an IMAP status response.
type IMAPError struct {
	*StatusResponse
}

// Error implements the error interface.
func (e *IMAPError) Error() string {
	return e.StatusResponse.Error()
}

// describe renders an attribute for human consumption in error messages.
func describe(a Attribute) string {
	switch a.Kind {
	case KindNil:
		return "NIL"
	case KindList:
		parts := make([]string, len(a.List))
		for i, c := range a.List {
			parts[i] = describe(c)
		}
		return "(" + strings.Join(parts, " ") + ")"
	case KindNumber:
		return fmt.Sprint(a.Number)
	default:
		return a.Value
	}
}
