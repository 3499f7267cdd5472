package imap

import (
	"fmt"
	"strconv"
	"strings"
)

// NumRange represents a range of sequence numbers or UIDs.
// If Start == Stop, it represents a single number.
// A zero Start or Stop stands for "*".
type NumRange struct {
	Start uint32
	Stop  uint32
}

// Contains checks if a number is within this range. Star is the value "*"
// resolves to, usually the highest number in the mailbox.
func (r NumRange) Contains(num, star uint32) bool {
	start, stop := r.Start, r.Stop
	if start == 0 {
		start = star
	}
	if stop == 0 {
		stop = star
	}
	if start > stop {
		start, stop = stop, start
	}
	return num >= start && num <= stop
}

// String returns the string representation of the range.
func (r NumRange) String() string {
	if r.Start == r.Stop {
		return formatSeqNum(r.Start)
	}
	return formatSeqNum(r.Start) + ":" + formatSeqNum(r.Stop)
}

// SeqSet is a parsed sequence set. The wire codec keeps sequence sets as
// opaque strings; SeqSet is the structured view for callers that need it.
type SeqSet struct {
	Set []NumRange
}

// ParseSeqSet parses a sequence set string like "1,2:5,10:*".
func ParseSeqSet(s string) (*SeqSet, error) {
	if s == "" {
		return nil, fmt.Errorf("imap: empty sequence set")
	}

	parts := strings.Split(s, ",")
	ss := &SeqSet{Set: make([]NumRange, 0, len(parts))}
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("imap: empty range in sequence set %q", s)
		}
		startStr, stopStr, isRange := strings.Cut(part, ":")
		start, err := parseSeqNum(startStr)
		if err != nil {
			return nil, err
		}
		stop := start
		if isRange {
			if stop, err = parseSeqNum(stopStr); err != nil {
				return nil, err
			}
		}
		ss.Set = append(ss.Set, NumRange{Start: start, Stop: stop})
	}
	return ss, nil
}

// String returns the IMAP string representation.
func (ss *SeqSet) String() string {
	parts := make([]string, len(ss.Set))
	for i, r := range ss.Set {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// Dynamic returns true if the set contains "*".
func (ss *SeqSet) Dynamic() bool {
	for _, r := range ss.Set {
		if r.Start == 0 || r.Stop == 0 {
			return true
		}
	}
	return false
}

// Contains checks if num is in the set, resolving "*" to star.
func (ss *SeqSet) Contains(num, star uint32) bool {
	for _, r := range ss.Set {
		if r.Contains(num, star) {
			return true
		}
	}
	return false
}

// AddNum adds single numbers to the set.
func (ss *SeqSet) AddNum(nums ...uint32) {
	for _, n := range nums {
		ss.Set = append(ss.Set, NumRange{Start: n, Stop: n})
	}
}

// AddRange adds a range to the set. Use 0 for "*".
func (ss *SeqSet) AddRange(start, stop uint32) {
	ss.Set = append(ss.Set, NumRange{Start: start, Stop: stop})
}

// Attribute returns the set as a SEQUENCE attribute for a command tree.
func (ss *SeqSet) Attribute() Attribute {
	return Sequence(ss.String())
}

func parseSeqNum(s string) (uint32, error) {
	if s == "*" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("imap: invalid sequence number %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("imap: sequence number must be non-zero")
	}
	return uint32(n), nil
}

func formatSeqNum(n uint32) string {
	if n == 0 {
		return "*"
	}
	return strconv.FormatUint(uint64(n), 10)
}
