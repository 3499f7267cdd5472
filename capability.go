package imap

import (
	"sort"
	"strings"
	"sync"
)

// Cap represents an IMAP capability.
type Cap string

// Capabilities that change how the codec frames or compiles data.
const (
	CapIMAP4rev1 Cap = "IMAP4rev1"
	CapIMAP4rev2 Cap = "IMAP4rev2"

	// RFC 7888 - LITERAL+ / LITERAL-
	CapLiteralPlus  Cap = "LITERAL+"
	CapLiteralMinus Cap = "LITERAL-"

	// RFC 3516 - BINARY (LITERAL8)
	CapBinary Cap = "BINARY"

	// RFC 7162 - CONDSTORE / QRESYNC response codes
	CapCondStore Cap = "CONDSTORE"
	CapQResync   Cap = "QRESYNC"

	// RFC 6855 - UTF8=ACCEPT
	CapUTF8Accept Cap = "UTF8=ACCEPT"

	// RFC 2177 - IDLE
	CapIdle Cap = "IDLE"
)

// CapSet is a set of IMAP capabilities. Names are compared case-insensitively.
type CapSet struct {
	mu   sync.RWMutex
	caps map[Cap]bool
}

// NewCapSet creates a new CapSet with the given capabilities.
func NewCapSet(caps ...Cap) *CapSet {
	cs := &CapSet{caps: make(map[Cap]bool, len(caps))}
	cs.Add(caps...)
	return cs
}

// CapsFromResponse extracts the capability list from an untagged CAPABILITY
// response or from a status response carrying a [CAPABILITY ...] code.
// It returns nil when r announces no capabilities.
func CapsFromResponse(r *Response) *CapSet {
	var attrs []Attribute
	switch {
	case strings.EqualFold(r.Command, "CAPABILITY"):
		attrs = r.Attributes
	default:
		sr := r.Status()
		if sr == nil || sr.Code != ResponseCodeCapability {
			return nil
		}
		attrs = sr.CodeArgs
	}
	cs := NewCapSet()
	for _, a := range attrs {
		if a.Kind == KindAtom {
			cs.Add(Cap(a.Value))
		}
	}
	return cs
}

// Has returns true if the set contains the given capability.
func (cs *CapSet) Has(c Cap) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.caps[normalizeCap(c)]
}

// Add adds capabilities to the set.
func (cs *CapSet) Add(caps ...Cap) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range caps {
		cs.caps[normalizeCap(c)] = true
	}
}

// Len returns the number of capabilities in the set.
func (cs *CapSet) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.caps)
}

// String returns the capabilities as a sorted, space-separated string.
func (cs *CapSet) String() string {
	cs.mu.RLock()
	strs := make([]string, 0, len(cs.caps))
	for c := range cs.caps {
		strs = append(strs, string(c))
	}
	cs.mu.RUnlock()
	sort.Strings(strs)
	return strings.Join(strs, " ")
}

func normalizeCap(c Cap) Cap {
	return Cap(strings.ToUpper(string(c)))
}
