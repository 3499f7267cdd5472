package imap

import "strings"

// Command names the codec treats specially.
const (
	// CommandUID and CommandAuthenticate take a second word in responses
	// ("UID FETCH", "AUTHENTICATE PLAIN").
	CommandUID          = "UID"
	CommandAuthenticate = "AUTHENTICATE"

	CommandCapability = "CAPABILITY"
	CommandLogin      = "LOGIN"
	CommandAppend     = "APPEND"
	CommandFetch      = "FETCH"
)

// IsCompoundCommand reports whether command consumes one more word, as in
// "UID FETCH".
func IsCompoundCommand(command string) bool {
	switch strings.ToUpper(command) {
	case CommandUID, CommandAuthenticate:
		return true
	}
	return false
}

// Command is an outgoing command ready to be compiled to wire bytes.
type Command struct {
	Tag        string      `json:"tag" yaml:"tag"`
	Command    string      `json:"command,omitempty" yaml:"command,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}
