// Package wire implements the IMAP wire codec: a stream framer that splits
// server output into responses and out-of-band literals, a tokenizer and
// response parser that turn those into imap.Response values, and a command
// compiler that turns attribute trees back into protocol bytes.
//
// The grammar follows RFC 3501 with LITERAL+/LITERAL- (RFC 7888), LITERAL8
// (RFC 3516) and the CONDSTORE/QRESYNC response codes (RFC 7162).
package wire

// isAtomChar returns true if the byte is a valid atom character.
// Atom characters are any CHAR except atom-specials.
func isAtomChar(b byte) bool {
	if b < 0x20 || b > 0x7e {
		return false
	}
	switch b {
	case '(', ')', '{', ' ', '%', '*', '"', '\\', ']':
		return false
	}
	return true
}

// isTagChar returns true for ASTRING-CHAR except "+".
func isTagChar(b byte) bool {
	return (isAtomChar(b) || b == ']') && b != '+'
}

// isCommandChar returns true for the characters a response verb is made of.
func isCommandChar(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || isDigit(b) || b == '-'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isAllDigits(s []byte) bool {
	if len(s) == 0 {
		return false
	}
	for _, b := range s {
		if !isDigit(b) {
			return false
		}
	}
	return true
}

// IsAtomSpecial returns true if the byte is an atom-special character.
func IsAtomSpecial(b byte) bool {
	return !isAtomChar(b)
}

// NeedsQuoting returns true if the atom s cannot be sent bare. A single
// leading backslash is allowed so that system flags like \Seen stay atoms.
func NeedsQuoting(s string) bool {
	if s == "" {
		return true
	}
	if s[0] == '\\' {
		s = s[1:]
	}
	for i := 0; i < len(s); i++ {
		if !isAtomChar(s[i]) {
			return true
		}
	}
	return false
}
