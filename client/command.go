package client

import (
	"fmt"
	"sync"
	"sync/atomic"

	imap "github.com/meszmate/imap-codec"
)

// Result is the outcome of a command.
type Result struct {
	// Status is the tagged completion response.
	Status *imap.Response
	// Untagged holds the untagged responses received while the command was
	// in flight.
	Untagged []*imap.Response
}

// Err returns the command's NO, BAD or BYE status as an error.
func (r *Result) Err() error {
	return r.Status.Err()
}

// pendingCommand represents a command awaiting its tagged response.
type pendingCommand struct {
	tag  string
	done chan *commandResult

	mu       sync.Mutex
	untagged []*imap.Response
}

// commandResult is the result of a completed command.
type commandResult struct {
	resp *imap.Response
	err  error // non-nil if the connection failed before the tagged response
}

// tagGenerator generates unique command tags.
type tagGenerator struct {
	counter atomic.Int64
	prefix  string
}

// newTagGenerator creates a new tag generator.
func newTagGenerator(prefix string) *tagGenerator {
	return &tagGenerator{prefix: prefix}
}

// Next returns the next unique tag.
func (g *tagGenerator) Next() string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s%d", g.prefix, n)
}

// pendingCommands tracks commands awaiting responses.
type pendingCommands struct {
	mu       sync.Mutex
	commands map[string]*pendingCommand
}

func newPendingCommands() *pendingCommands {
	return &pendingCommands{
		commands: make(map[string]*pendingCommand),
	}
}

// Add registers a new pending command and returns it.
func (pc *pendingCommands) Add(tag string) *pendingCommand {
	cmd := &pendingCommand{
		tag:  tag,
		done: make(chan *commandResult, 1),
	}
	pc.mu.Lock()
	pc.commands[tag] = cmd
	pc.mu.Unlock()
	return cmd
}

// Remove forgets a command without completing it.
func (pc *pendingCommands) Remove(tag string) {
	pc.mu.Lock()
	delete(pc.commands, tag)
	pc.mu.Unlock()
}

// Len returns the number of commands in flight.
func (pc *pendingCommands) Len() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.commands)
}

// Broadcast records an untagged response on every command in flight.
func (pc *pendingCommands) Broadcast(resp *imap.Response) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	for _, cmd := range pc.commands {
		cmd.mu.Lock()
		cmd.untagged = append(cmd.untagged, resp)
		cmd.mu.Unlock()
	}
}

// Complete completes a pending command with the given result. It reports
// whether a command with that tag was waiting.
func (pc *pendingCommands) Complete(tag string, result *commandResult) bool {
	pc.mu.Lock()
	cmd, ok := pc.commands[tag]
	if ok {
		delete(pc.commands, tag)
	}
	pc.mu.Unlock()

	if ok {
		cmd.done <- result
	}
	return ok
}

// CompleteAll completes all pending commands with an error.
func (pc *pendingCommands) CompleteAll(err error) {
	pc.mu.Lock()
	commands := pc.commands
	pc.commands = make(map[string]*pendingCommand)
	pc.mu.Unlock()

	for _, cmd := range commands {
		cmd.done <- &commandResult{err: err}
	}
}

func (cmd *pendingCommand) collected() []*imap.Response {
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	return cmd.untagged
}
